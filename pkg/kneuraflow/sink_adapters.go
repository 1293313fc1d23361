package kneuraflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrChannelSinkClosed is returned when a channel sink is written to after being closed.
var ErrChannelSinkClosed = errors.New("kneuraflow: channel sink closed")

// SnapshotFunc receives each snapshot written by the persistence job.
type SnapshotFunc func(ctx context.Context, snap Snapshot) error

// NewCallbackSink adapts a SnapshotFunc into a full Sink implementation so
// callers can plug arbitrary functions without defining structs.
func NewCallbackSink(name string, fn SnapshotFunc) Sink {
	if name == "" {
		name = "callback"
	}
	return &callbackSink{name: name, fn: fn}
}

// NewChannelSink exposes snapshots via a channel; it returns the sink, the
// read-only channel, and a close function that the caller should invoke
// during shutdown.
func NewChannelSink(name string, buffer int) (Sink, <-chan Snapshot, func()) {
	if name == "" {
		name = "channel"
	}
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan Snapshot, buffer)
	s := &channelSink{
		name:   name,
		ch:     ch,
		closed: make(chan struct{}),
	}
	return s, ch, s.close
}

type callbackSink struct {
	name string
	fn   SnapshotFunc
}

func (s *callbackSink) WriteSnapshot(ctx context.Context, snap *Snapshot) error {
	if s.fn == nil {
		return fmt.Errorf("callback sink %q: nil handler", s.name)
	}
	if snap == nil {
		return nil
	}
	return s.fn(ctx, copySnapshot(snap))
}

func (s *callbackSink) Name() string { return s.name }

type channelSink struct {
	name   string
	ch     chan Snapshot
	closed chan struct{}

	// senders hold the read lock so close never races a send
	mu   sync.RWMutex
	once sync.Once
}

func (s *channelSink) WriteSnapshot(ctx context.Context, snap *Snapshot) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	default:
	}
	if snap == nil {
		return nil
	}

	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	case <-ctx.Done():
		return ctx.Err()
	case s.ch <- copySnapshot(snap):
		return nil
	}
}

func (s *channelSink) Name() string { return s.name }

func (s *channelSink) close() {
	s.once.Do(func() {
		close(s.closed)
		s.mu.Lock()
		close(s.ch)
		s.mu.Unlock()
	})
}

func copySnapshot(s *Snapshot) Snapshot {
	out := *s
	if s.Latitude != nil {
		v := *s.Latitude
		out.Latitude = &v
	}
	if s.Longitude != nil {
		v := *s.Longitude
		out.Longitude = &v
	}
	if s.WeatherTempC != nil {
		v := *s.WeatherTempC
		out.WeatherTempC = &v
	}
	return out
}
