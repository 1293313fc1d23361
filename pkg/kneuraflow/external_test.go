package kneuraflow

import (
	"errors"
	"testing"
	"time"

	"github.com/kneurasense/kneuraflow/internal/adapters/queue"
)

func TestPushCollectorRequiresStart(t *testing.T) {
	pc := NewPushCollector("", Policy{MaxQueueLen: 1, OnQueueFull: "drop"})
	if err := pc.Publish([]byte(`{"angle":1,"fsr":1,"skin_temp":30,"bat":50,"risk_score":10}`)); !errors.Is(err, ErrCollectorStopped) {
		t.Fatalf("expected ErrCollectorStopped, got %v", err)
	}
	if pc.Connected() {
		t.Fatalf("expected collector to report disconnected before Start")
	}
}

func TestPushCollectorSequencesSamples(t *testing.T) {
	pc := NewPushCollector("", Policy{MaxQueueLen: 4, OnQueueFull: "drop"})
	out := make(chan *Sample, 4)
	if err := pc.Start(out); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer pc.Stop()

	if err := pc.Publish([]byte(`{"angle":10,"fsr":200,"skin_temp":32,"bat":120,"risk_score":30}`)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	in := Sample{RiskScore: 80, Seq: 999}
	if err := pc.PublishSample(in); err != nil {
		t.Fatalf("publish sample: %v", err)
	}

	first, second := <-out, <-out
	if first.Seq != 1 || second.Seq != 2 {
		t.Fatalf("expected seq 1,2 got %d,%d", first.Seq, second.Seq)
	}
	if first.BatteryPct != 100 {
		t.Fatalf("expected battery clamped to 100, got %d", first.BatteryPct)
	}
	if second.ReceivedAt.IsZero() || second.ReceivedAt.Before(first.ReceivedAt) {
		t.Fatalf("expected arrival time to be stamped in order")
	}
	if in.Seq != 999 {
		t.Fatalf("caller sample must not be mutated")
	}
}

func TestPushCollectorDropsWhenFull(t *testing.T) {
	pc := NewPushCollector("", Policy{MaxQueueLen: 1, OnQueueFull: "drop"})
	out := make(chan *Sample, 1)
	if err := pc.Start(out); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer pc.Stop()

	if err := pc.PublishSample(Sample{}); err != nil {
		t.Fatalf("first publish: %v", err)
	}
	if err := pc.PublishSample(Sample{}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestPushCollectorRecordsRejects(t *testing.T) {
	pc := NewPushCollector("ble", Policy{MaxQueueLen: 1, OnQueueFull: "drop"})
	rejects := queue.NewMemQueue(2)
	pc.bind(&stubObservability{}, rejects)
	if err := pc.Start(make(chan *Sample, 1)); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer pc.Stop()

	if err := pc.Publish([]byte(`not json`)); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	got := rejects.Snapshot()
	if len(got) != 1 || got[0].Topic != "ble" || got[0].Payload != "not json" {
		t.Fatalf("unexpected rejects: %+v", got)
	}
}

func TestPushCollectorStopUnblocksPublisher(t *testing.T) {
	pc := NewPushCollector("", Policy{MaxQueueLen: 1, OnQueueFull: "block"})
	out := make(chan *Sample, 1)
	if err := pc.Start(out); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := pc.PublishSample(Sample{}); err != nil {
		t.Fatalf("first publish: %v", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- pc.PublishSample(Sample{}) }()
	time.Sleep(20 * time.Millisecond)
	_ = pc.Stop()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrCollectorStopped) {
			t.Fatalf("expected ErrCollectorStopped, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Stop did not unblock the publisher")
	}
}

func TestPushCollectorClampsHostSamples(t *testing.T) {
	pc := NewPushCollector("", Policy{MaxQueueLen: 2, OnQueueFull: "drop"})
	out := make(chan *Sample, 2)
	if err := pc.Start(out); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer pc.Stop()

	if err := pc.PublishSample(Sample{RiskScore: 150, BatteryPct: -5}); err != nil {
		t.Fatalf("publish sample: %v", err)
	}
	got := <-out
	if got.RiskScore != 100 || got.BatteryPct != 0 {
		t.Fatalf("expected risk 100 and battery 0, got risk=%d bat=%d", got.RiskScore, got.BatteryPct)
	}

	if err := pc.PublishSample(Sample{ForceNewtons: -3}); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for negative force, got %v", err)
	}
}
