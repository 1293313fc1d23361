package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kneurasense/kneuraflow/internal/domain"
	"github.com/kneurasense/kneuraflow/internal/ports"
)

type PersistenceConfig struct {
	OwnerID      string
	Interval     time.Duration
	WriteTimeout time.Duration
}

// PersistenceJob periodically writes one snapshot of the projection. It
// never writes while the device is Offline and never writes the same sample
// twice.
type PersistenceJob struct {
	cfg   PersistenceConfig
	state *State
	sink  ports.Sink
	obs   ports.Observability
	now   func() time.Time

	// tickMu serialises Tick.
	tickMu  sync.Mutex
	lastSeq atomic.Uint64
}

func NewPersistenceJob(cfg PersistenceConfig, state *State, sink ports.Sink, obs ports.Observability) (*PersistenceJob, error) {
	if cfg.OwnerID == "" {
		return nil, errors.New("persistence: owner id is required")
	}
	if state == nil || sink == nil || obs == nil {
		return nil, errors.New("persistence: state, sink and observability are required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	return &PersistenceJob{cfg: cfg, state: state, sink: sink, obs: obs, now: time.Now}, nil
}

// Tick runs one persistence cycle and reports whether a snapshot was written.
// A failed write is dropped; the next tick starts again from fresh state.
func (j *PersistenceJob) Tick(ctx context.Context) (bool, error) {
	j.tickMu.Lock()
	defer j.tickMu.Unlock()

	view := j.state.View()
	if view.Liveness != domain.Online {
		j.obs.IncCounter(ports.MetricSnapshotsOffline, 1)
		return false, nil
	}
	if view.Sample == nil || view.Sample.Seq <= j.lastSeq.Load() {
		j.obs.IncCounter(ports.MetricSnapshotsStale, 1)
		return false, nil
	}

	tier, err := j.state.Thresholds().Classify(view.Sample.RiskScore)
	if err != nil {
		// retrying cannot fix the sample, so it is skipped for good
		j.lastSeq.Store(view.Sample.Seq)
		j.obs.IncCounter(ports.MetricSnapshotFailures, 1)
		return false, fmt.Errorf("classify sample %d: %w", view.Sample.Seq, err)
	}
	snap := domain.NewSnapshot(j.cfg.OwnerID, view.Sample, tier, view.Enrichment, j.now())

	wctx, cancel := context.WithTimeout(ctx, j.cfg.WriteTimeout)
	defer cancel()

	start := time.Now()
	if err := j.sink.WriteSnapshot(wctx, snap); err != nil {
		j.obs.IncCounter(ports.MetricSnapshotFailures, 1)
		return false, fmt.Errorf("%s write: %w", j.sink.Name(), err)
	}
	j.obs.ObserveLatency(ports.LatencySnapshotWrite, time.Since(start).Seconds())
	j.obs.IncCounter(ports.MetricSnapshotsWritten, 1)
	j.lastSeq.Store(snap.SampleSeq)
	return true, nil
}

// LastWritten returns the seq of the last sample persisted successfully or
// discarded as unclassifiable.
func (j *PersistenceJob) LastWritten() uint64 {
	return j.lastSeq.Load()
}

// Run ticks every interval until ctx is done.
func (j *PersistenceJob) Run(ctx context.Context) {
	ticker := time.NewTicker(j.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			written, err := j.Tick(ctx)
			if err != nil {
				j.obs.LogError("snapshot_write_failed", err, ports.Field{Key: "sink", Value: j.sink.Name()})
				continue
			}
			if written {
				j.obs.LogInfo("snapshot_written",
					ports.Field{Key: "sink", Value: j.sink.Name()},
					ports.Field{Key: "seq", Value: j.LastWritten()})
			}
		}
	}
}
