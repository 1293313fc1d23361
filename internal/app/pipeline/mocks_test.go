package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/kneurasense/kneuraflow/internal/domain"
	"github.com/kneurasense/kneuraflow/internal/ports"
)

type mockObs struct {
	mu       sync.Mutex
	counters map[string]float64
	gauges   map[string]float64
	errors   []string
	warns    []string
}

func newMockObs() *mockObs {
	return &mockObs{counters: map[string]float64{}, gauges: map[string]float64{}}
}

func (m *mockObs) LogInfo(string, ...ports.Field) {}
func (m *mockObs) LogWarn(msg string, _ error, _ ...ports.Field) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warns = append(m.warns, msg)
}
func (m *mockObs) LogError(msg string, _ error, _ ...ports.Field) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}
func (m *mockObs) LogCritical(msg string, err error, fields ...ports.Field) {
	m.LogError(msg, err, fields...)
}
func (m *mockObs) ObserveLatency(string, float64) {}
func (m *mockObs) IncCounter(name string, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name] += v
}
func (m *mockObs) SetGauge(name string, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[name] = v
}
func (m *mockObs) counter(name string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}
func (m *mockObs) gauge(name string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gauges[name]
}

type mockSink struct {
	mu      sync.Mutex
	written []*domain.Snapshot
	fail    bool
}

func (m *mockSink) WriteSnapshot(ctx context.Context, snap *domain.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("storage unavailable")
	}
	m.written = append(m.written, snap)
	return nil
}

func (m *mockSink) Name() string { return "mock" }

func (m *mockSink) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.written)
}

type mockWeather struct {
	mu      sync.Mutex
	calls   []domain.Coordinates
	err     error
	release chan struct{}
	temp    float64
}

func (m *mockWeather) Lookup(ctx context.Context, at domain.Coordinates) (domain.Conditions, error) {
	m.mu.Lock()
	m.calls = append(m.calls, at)
	release, err, temp := m.release, m.err, m.temp
	m.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return domain.Conditions{}, ctx.Err()
		}
	}
	if err != nil {
		return domain.Conditions{}, err
	}
	return domain.Conditions{AmbientTempC: temp, Condition: "Clear"}, nil
}

func (m *mockWeather) Name() string { return "mock-weather" }

func (m *mockWeather) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type mockCollector struct {
	out     chan<- *domain.Sample
	started bool
	err     error
}

func (m *mockCollector) Start(out chan<- *domain.Sample) error {
	if m.err != nil {
		return m.err
	}
	m.out = out
	m.started = true
	return nil
}
func (m *mockCollector) Stop() error     { return nil }
func (m *mockCollector) Connected() bool { return m.started }

func fptr(v float64) *float64 { return &v }
