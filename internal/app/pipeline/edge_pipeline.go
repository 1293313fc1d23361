package pipeline

import (
	"context"
	"fmt"

	"github.com/kneurasense/kneuraflow/internal/domain"
	"github.com/kneurasense/kneuraflow/internal/ports"
)

// RunEdgePipeline starts the collector on a bounded channel and the single
// ingest worker draining it. The returned channel is closed once the worker
// has exited after ctx is cancelled.
func RunEdgePipeline(ctx context.Context, col ports.Collector, pol ports.Policy, ing Ingest) (<-chan struct{}, error) {
	if ing.State == nil || ing.Watchdog == nil || ing.Obs == nil {
		return nil, fmt.Errorf("edge pipeline: state, watchdog and observability are required")
	}
	size := pol.MaxQueueLen
	if size <= 0 {
		size = 1
	}
	ch := make(chan *domain.Sample, size)

	if err := col.Start(ch); err != nil {
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		RunIngestPipeline(ctx, ch, ing)
	}()
	return done, nil
}
