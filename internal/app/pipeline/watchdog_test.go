package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/kneurasense/kneuraflow/internal/domain"
)

func TestWatchdogNeverSeenStaysOffline(t *testing.T) {
	var changes []domain.Liveness
	w := NewWatchdog(8*time.Second, 2*time.Second, func(l domain.Liveness) { changes = append(changes, l) })

	if w.Check(time.Now().Add(time.Hour)) {
		t.Fatalf("a device that never reported must not transition")
	}
	if w.State() != domain.Offline || len(changes) != 0 {
		t.Fatalf("expected silent offline state, got %s with %v", w.State(), changes)
	}
}

func TestWatchdogStaysOnlineWithinTimeout(t *testing.T) {
	w := NewWatchdog(8*time.Second, 2*time.Second, nil)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		at := base.Add(time.Duration(i) * 2 * time.Second)
		w.Observe(at)
		w.Check(at.Add(1900 * time.Millisecond))
		if w.State() != domain.Online {
			t.Fatalf("expected online at tick %d", i)
		}
	}
}

func TestWatchdogGoesOfflineAfterSilence(t *testing.T) {
	var changes []domain.Liveness
	w := NewWatchdog(8*time.Second, 2*time.Second, func(l domain.Liveness) { changes = append(changes, l) })
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	w.Observe(base)
	if w.Check(base.Add(8 * time.Second)) {
		t.Fatalf("silence equal to the timeout must not flip the state")
	}
	// the next tick after the deadline
	if !w.Check(base.Add(10 * time.Second)) {
		t.Fatalf("expected offline transition one tick after the deadline")
	}
	if w.Check(base.Add(12 * time.Second)) {
		t.Fatalf("offline to offline must not notify again")
	}
	if len(changes) != 2 || changes[0] != domain.Online || changes[1] != domain.Offline {
		t.Fatalf("unexpected transitions %v", changes)
	}

	w.Observe(base.Add(20 * time.Second))
	if w.State() != domain.Online || len(changes) != 3 {
		t.Fatalf("expected immediate recovery to online, got %s %v", w.State(), changes)
	}
}

func TestWatchdogIgnoresOlderArrival(t *testing.T) {
	w := NewWatchdog(8*time.Second, 2*time.Second, nil)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	w.Observe(base.Add(5 * time.Second))
	w.Observe(base)
	if last, _ := w.LastSeen(); !last.Equal(base.Add(5 * time.Second)) {
		t.Fatalf("last-seen moved backwards to %s", last)
	}
}

func TestWatchdogRunStopsOnCancel(t *testing.T) {
	w := NewWatchdog(time.Millisecond, time.Millisecond, nil)
	w.Observe(time.Now().Add(-time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	deadline := time.After(time.Second)
	for w.State() != domain.Offline {
		select {
		case <-deadline:
			t.Fatalf("watchdog never flipped offline")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("run did not return after cancel")
	}
}

func TestLivenessRecorderUpdatesStateAndGauge(t *testing.T) {
	state := NewState(domain.DefaultThresholds())
	obs := newMockObs()
	rec := LivenessRecorder(state, obs)

	rec(domain.Online)
	if state.View().Liveness != domain.Online || obs.gauge("kneura_device_online") != 1 {
		t.Fatalf("expected online state and gauge")
	}
	rec(domain.Offline)
	if state.View().Liveness != domain.Offline || obs.gauge("kneura_device_online") != 0 {
		t.Fatalf("expected offline state and gauge")
	}
	if obs.counter("kneura_liveness_transitions_total") != 2 {
		t.Fatalf("expected two transitions counted")
	}
}
