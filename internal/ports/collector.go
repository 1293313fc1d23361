package ports

import "github.com/kneurasense/kneuraflow/internal/domain"

// Collector streams decoded samples from a transport into the pipeline.
type Collector interface {
	Start(out chan<- *domain.Sample) error
	Stop() error
	Connected() bool
}
