package ports

import (
	"context"

	"github.com/kneurasense/kneuraflow/internal/domain"
)

type Sink interface {
	WriteSnapshot(ctx context.Context, snap *domain.Snapshot) error
	Name() string
}
