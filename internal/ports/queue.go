package ports

import "github.com/kneurasense/kneuraflow/internal/domain"

// RejectQueue keeps the most recent payloads that failed to decode.
type RejectQueue interface {
	Push(r domain.Rejected)
	Snapshot() []domain.Rejected
	Len() int
}
