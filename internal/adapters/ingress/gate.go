package ingress

import (
	"errors"
	"sync"
	"time"

	"github.com/kneurasense/kneuraflow/internal/codec"
	"github.com/kneurasense/kneuraflow/internal/domain"
	"github.com/kneurasense/kneuraflow/internal/ports"
)

// rejected payloads are kept for inspection up to this many bytes
const rejectPreviewBytes = 1024

var (
	// ErrClosed is returned for payloads arriving while the gate is closed.
	ErrClosed = errors.New("ingress closed")
	// ErrQueueFull is returned when the queue policy gave up on a sample.
	ErrQueueFull = errors.New("ingest queue full")
)

// Gate turns raw payloads into sequenced samples on the ingest channel. It is
// shared by every collector so ordering and queue policy behave the same.
type Gate struct {
	policy  ports.Policy
	obs     ports.Observability
	rejects ports.RejectQueue
	now     func() time.Time

	mu   sync.Mutex
	out  chan<- *domain.Sample
	done chan struct{}
	open bool
	seq  uint64
}

// NewGate builds a closed gate. rejects may be nil.
func NewGate(pol ports.Policy, obs ports.Observability, rejects ports.RejectQueue) *Gate {
	return &Gate{policy: pol, obs: obs, rejects: rejects, now: time.Now}
}

// SetRejects swaps the reject buffer.
func (g *Gate) SetRejects(q ports.RejectQueue) {
	g.mu.Lock()
	g.rejects = q
	g.mu.Unlock()
}

// SetObservability swaps the observability backend.
func (g *Gate) SetObservability(obs ports.Observability) {
	g.mu.Lock()
	g.obs = obs
	g.mu.Unlock()
}

func (g *Gate) Open(out chan<- *domain.Sample) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.open {
		return errors.New("ingress already open")
	}
	g.out = out
	g.done = make(chan struct{})
	g.open = true
	return nil
}

// Close stops delivery and unblocks pending senders. It reports whether the
// gate was open.
func (g *Gate) Close() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.open {
		return false
	}
	g.open = false
	close(g.done)
	return true
}

func (g *Gate) IsOpen() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.open
}

// Accept decodes one payload and delivers it. Decode failures wrap
// codec.ErrMalformed and are recorded in the reject buffer.
func (g *Gate) Accept(topic string, payload []byte) (*domain.Sample, error) {
	sample, err := codec.Decode(payload)
	if err != nil {
		g.reject(topic, payload, err)
		return nil, err
	}
	if err := g.Admit(sample); err != nil {
		return nil, err
	}
	return sample, nil
}

// Admit normalizes the sample, assigns the arrival sequence and time, then
// hands it to the ingest channel according to the queue policy. A sample that
// fails normalization is counted as rejected and never sequenced.
func (g *Gate) Admit(sample *domain.Sample) error {
	g.mu.Lock()
	if !g.open {
		g.mu.Unlock()
		return ErrClosed
	}
	if err := codec.Normalize(sample); err != nil {
		obs := g.obs
		g.mu.Unlock()
		obs.IncCounter(ports.MetricSamplesRejected, 1)
		obs.LogWarn("sample_rejected", err)
		return err
	}
	g.seq++
	sample.Seq = g.seq
	sample.ReceivedAt = g.now()
	out, done, obs := g.out, g.done, g.obs
	g.mu.Unlock()

	if g.deliver(out, done, sample) {
		return nil
	}
	select {
	case <-done:
		return ErrClosed
	default:
	}
	obs.IncCounter(ports.MetricSamplesDropped, 1)
	obs.LogWarn("ingest_queue_full_drop", nil,
		ports.Field{Key: "seq", Value: sample.Seq},
		ports.Field{Key: "capacity", Value: g.policy.MaxQueueLen})
	return ErrQueueFull
}

func (g *Gate) deliver(out chan<- *domain.Sample, done <-chan struct{}, s *domain.Sample) bool {
	if g.policy.OnQueueFull == "drop" {
		select {
		case out <- s:
			return true
		case <-done:
			return false
		default:
			return false
		}
	}

	var timeout <-chan time.Time
	if g.policy.BlockTimeout > 0 {
		timer := time.NewTimer(g.policy.BlockTimeout)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case out <- s:
		return true
	case <-done:
		return false
	case <-timeout:
		return false
	}
}

func (g *Gate) reject(topic string, payload []byte, err error) {
	g.mu.Lock()
	obs, rejects := g.obs, g.rejects
	g.mu.Unlock()

	obs.IncCounter(ports.MetricSamplesRejected, 1)
	obs.LogWarn("telemetry_decode_failed", err,
		ports.Field{Key: "topic", Value: topic},
		ports.Field{Key: "bytes", Value: len(payload)})

	if rejects == nil {
		return
	}
	preview := payload
	if len(preview) > rejectPreviewBytes {
		preview = preview[:rejectPreviewBytes]
	}
	rejects.Push(domain.Rejected{
		Topic:   topic,
		Payload: string(preview),
		Reason:  err.Error(),
		At:      g.now(),
	})
	obs.SetGauge(ports.GaugeRejectBufferLen, float64(rejects.Len()))
}
