package ports

import (
	"context"

	"github.com/kneurasense/kneuraflow/internal/domain"
)

// WeatherProvider resolves ambient conditions for a position.
type WeatherProvider interface {
	Lookup(ctx context.Context, at domain.Coordinates) (domain.Conditions, error)
	Name() string
}
