package kneuraflow

import (
	"errors"
	"fmt"
	"sync"

	"github.com/kneurasense/kneuraflow/internal/adapters/ingress"
	"github.com/kneurasense/kneuraflow/internal/codec"
	"github.com/kneurasense/kneuraflow/internal/domain"
	"github.com/kneurasense/kneuraflow/internal/ports"
)

var (
	// ErrQueueFull indicates the ingest queue rejected the sample according to policy.
	ErrQueueFull = ingress.ErrQueueFull
	// ErrCollectorStopped is returned by Publish before Start or after Stop.
	ErrCollectorStopped = errors.New("kneuraflow: collector stopped")
	// ErrMalformed wraps every payload decode failure.
	ErrMalformed = codec.ErrMalformed
)

// PushCollector lets a host hand device payloads to the pipeline when they
// arrive through some other channel (a websocket, a BLE bridge, a test).
type PushCollector struct {
	topic string

	mu        sync.Mutex
	gate      *ingress.Gate
	connected bool
}

// NewPushCollector builds a collector that applies pol to every Publish.
// topic labels rejects and defaults to "push".
func NewPushCollector(topic string, pol Policy) *PushCollector {
	if topic == "" {
		topic = "push"
	}
	return &PushCollector{
		topic: topic,
		gate:  ingress.NewGate(pol, nopObservability{}, nil),
	}
}

// bind lets the runtime share its observability and reject buffer.
func (p *PushCollector) bind(obs ports.Observability, rejects ports.RejectQueue) {
	p.gate.SetObservability(obs)
	p.gate.SetRejects(rejects)
}

func (p *PushCollector) Start(out chan<- *domain.Sample) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.gate.Open(out); err != nil {
		return fmt.Errorf("push collector: %w", err)
	}
	p.connected = true
	return nil
}

func (p *PushCollector) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gate.Close()
	p.connected = false
	return nil
}

func (p *PushCollector) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Publish decodes a raw device payload and enqueues it according to policy.
func (p *PushCollector) Publish(payload []byte) error {
	_, err := p.gate.Accept(p.topic, payload)
	return mapGateErr(err)
}

// PublishSample enqueues an already decoded reading. Seq and ReceivedAt are
// assigned on arrival; the caller's value is not retained.
func (p *PushCollector) PublishSample(s Sample) error {
	return mapGateErr(p.gate.Admit(s.Clone()))
}

func mapGateErr(err error) error {
	if errors.Is(err, ingress.ErrClosed) {
		return ErrCollectorStopped
	}
	return err
}

type nopObservability struct{}

func (nopObservability) LogInfo(string, ...ports.Field)            {}
func (nopObservability) LogWarn(string, error, ...ports.Field)     {}
func (nopObservability) LogError(string, error, ...ports.Field)    {}
func (nopObservability) LogCritical(string, error, ...ports.Field) {}
func (nopObservability) IncCounter(string, float64)                {}
func (nopObservability) ObserveLatency(string, float64)            {}
func (nopObservability) SetGauge(string, float64)                  {}

var _ Collector = (*PushCollector)(nil)
