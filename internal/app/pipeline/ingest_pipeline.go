package pipeline

import (
	"context"

	"github.com/kneurasense/kneuraflow/internal/domain"
	"github.com/kneurasense/kneuraflow/internal/ports"
)

// Ingest bundles what the ingest worker updates for every accepted sample.
// Enrichment may be nil when weather lookups are disabled.
type Ingest struct {
	State      *State
	Watchdog   *Watchdog
	Enrichment *EnrichmentCache
	Obs        ports.Observability
}

// RunIngestPipeline applies samples in arrival order until ctx is done or in
// is closed.
func RunIngestPipeline(ctx context.Context, in <-chan *domain.Sample, ing Ingest) {
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-in:
			if !ok {
				return
			}
			ing.apply(ctx, s)
		}
	}
}

func (ing Ingest) apply(ctx context.Context, s *domain.Sample) {
	if !ing.State.ApplySample(s) {
		ing.Obs.LogWarn("sample_out_of_order", nil, ports.Field{Key: "seq", Value: s.Seq})
		return
	}
	ing.Obs.IncCounter(ports.MetricSamplesReceived, 1)
	ing.Obs.SetGauge(ports.GaugeRiskScore, float64(s.RiskScore))
	ing.Obs.SetGauge(ports.GaugeBatteryPct, float64(s.BatteryPct))

	ing.Watchdog.Observe(s.ReceivedAt)

	if ing.Enrichment != nil {
		ing.Enrichment.Offer(ctx, s)
	}
}
