package kneuraflow

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testSnapshot() *Snapshot {
	lat, lng, temp := 52.52, 13.40, 18.5
	return &Snapshot{
		OwnerID:      "patient-7",
		SampleSeq:    42,
		RiskScore:    75,
		RiskTier:     "critical",
		Latitude:     &lat,
		Longitude:    &lng,
		WeatherTempC: &temp,
		ReceivedAt:   time.Unix(100, 0),
		RecordedAt:   time.Unix(101, 0),
	}
}

func TestNewCallbackSink(t *testing.T) {
	var received []Snapshot
	sink := NewCallbackSink("cb", func(ctx context.Context, snap Snapshot) error {
		received = append(received, snap)
		return nil
	})

	input := testSnapshot()
	if err := sink.WriteSnapshot(context.Background(), input); err != nil {
		t.Fatalf("WriteSnapshot returned error: %v", err)
	}
	if len(received) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(received))
	}
	got := received[0]
	if got.OwnerID != input.OwnerID || got.SampleSeq != input.SampleSeq {
		t.Fatalf("mismatched snapshot: %+v vs %+v", got, input)
	}

	*input.Latitude = 0
	if *got.Latitude != 52.52 {
		t.Fatalf("expected coordinates to be copied, got %v", *got.Latitude)
	}
}

func TestNewCallbackSinkNilHandler(t *testing.T) {
	sink := NewCallbackSink("", nil)
	if sink.Name() != "callback" {
		t.Fatalf("expected default name, got %s", sink.Name())
	}
	if err := sink.WriteSnapshot(context.Background(), testSnapshot()); err == nil {
		t.Fatalf("expected error when callback is nil")
	}
}

func TestNewChannelSink(t *testing.T) {
	sink, ch, closeFn := NewChannelSink("chan", 0)
	defer closeFn()

	errCh := make(chan error, 1)
	go func() {
		errCh <- sink.WriteSnapshot(context.Background(), testSnapshot())
	}()

	var got Snapshot
	select {
	case got = <-ch:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel snapshot")
	}
	if err := <-errCh; err != nil {
		t.Fatalf("WriteSnapshot returned error: %v", err)
	}
	if got.SampleSeq != 42 {
		t.Fatalf("unexpected snapshot: %+v", got)
	}

	closeFn()
	if err := sink.WriteSnapshot(context.Background(), testSnapshot()); !errors.Is(err, ErrChannelSinkClosed) {
		t.Fatalf("expected ErrChannelSinkClosed, got %v", err)
	}
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel to be closed")
	}
}

func TestChannelSinkCloseUnblocksWriter(t *testing.T) {
	sink, _, closeFn := NewChannelSink("chan", 0)

	errCh := make(chan error, 1)
	go func() {
		errCh <- sink.WriteSnapshot(context.Background(), testSnapshot())
	}()
	time.Sleep(20 * time.Millisecond)
	closeFn()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrChannelSinkClosed) {
			t.Fatalf("expected ErrChannelSinkClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("close did not unblock the writer")
	}
}

func TestChannelSinkHonoursContext(t *testing.T) {
	sink, _, closeFn := NewChannelSink("chan", 0)
	defer closeFn()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := sink.WriteSnapshot(ctx, testSnapshot()); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
