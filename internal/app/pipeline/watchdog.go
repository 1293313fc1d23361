package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/kneurasense/kneuraflow/internal/domain"
	"github.com/kneurasense/kneuraflow/internal/ports"
)

// Watchdog infers device liveness from the arrival of samples. Silence is the
// signal, so the deadline is polled rather than armed as a timer.
type Watchdog struct {
	timeout  time.Duration
	interval time.Duration
	onChange func(domain.Liveness)
	now      func() time.Time

	mu       sync.Mutex
	state    domain.Liveness
	lastSeen time.Time
	seen     bool
}

// NewWatchdog builds an Offline watchdog. onChange runs under the watchdog
// lock once per transition and must not call back into the watchdog.
func NewWatchdog(timeout, interval time.Duration, onChange func(domain.Liveness)) *Watchdog {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Watchdog{
		timeout:  timeout,
		interval: interval,
		onChange: onChange,
		now:      time.Now,
		state:    domain.Offline,
	}
}

// Observe records a received sample.
func (w *Watchdog) Observe(at time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.seen || at.After(w.lastSeen) {
		w.lastSeen = at
	}
	w.seen = true
	w.transition(domain.Online)
}

// Check flips Online to Offline once the silence exceeds the timeout and
// reports whether it did.
func (w *Watchdog) Check(now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.seen || w.state != domain.Online {
		return false
	}
	if now.Sub(w.lastSeen) <= w.timeout {
		return false
	}
	return w.transition(domain.Offline)
}

func (w *Watchdog) State() domain.Liveness {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// LastSeen returns the arrival time of the most recent sample.
func (w *Watchdog) LastSeen() (time.Time, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSeen, w.seen
}

// Run polls the deadline every interval until ctx is done.
func (w *Watchdog) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Check(w.now())
		}
	}
}

func (w *Watchdog) transition(to domain.Liveness) bool {
	if w.state == to {
		return false
	}
	w.state = to
	if w.onChange != nil {
		w.onChange(to)
	}
	return true
}

// LivenessRecorder mirrors watchdog transitions into the projection and metrics.
func LivenessRecorder(state *State, obs ports.Observability) func(domain.Liveness) {
	return func(l domain.Liveness) {
		state.SetLiveness(l)
		obs.IncCounter(ports.MetricLivenessTransitions, 1)
		if l == domain.Online {
			obs.SetGauge(ports.GaugeDeviceOnline, 1)
			obs.LogInfo("device_online")
			return
		}
		obs.SetGauge(ports.GaugeDeviceOnline, 0)
		obs.LogWarn("device_offline", nil)
	}
}
