package kneuraflow

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := ParseConfig([]byte(`
device: {owner_id: patient-7}
mqtt: {broker: "tcp://localhost:1883"}
policy: {max_queue_len: 8, on_queue_full: drop}
liveness: {timeout: 2s, interval: 50ms}
persistence: {interval: 20ms, write_timeout: 1s}
`))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.HTTP.Addr = ""
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewRuntimeWithCustomAdapters(t *testing.T) {
	cfg := testConfig(t)

	col := &stubCollector{}
	snk := &stubSink{}
	obs := &stubObservability{}
	wx := &stubWeather{}

	rt, err := NewRuntime(cfg,
		WithCollector(col),
		WithSink(snk),
		WithObservability(obs),
		WithWeatherProvider(wx),
	)
	if err != nil {
		t.Fatalf("NewRuntime returned error: %v", err)
	}
	if rt.collector != col {
		t.Fatalf("expected custom collector to be used")
	}
	if rt.sink != snk {
		t.Fatalf("expected custom sink to be used")
	}
	if rt.obs != obs {
		t.Fatalf("expected custom observability to be used")
	}
	if rt.cache == nil {
		t.Fatalf("expected enrichment cache when a weather provider is injected")
	}
	if len(rt.closers) != 0 {
		t.Fatalf("expected no owned sink connections, got %d", len(rt.closers))
	}
}

func TestNewRuntimeWithoutWeather(t *testing.T) {
	rt, err := NewRuntime(testConfig(t), WithCollector(&stubCollector{}), WithSink(&stubSink{}), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("NewRuntime returned error: %v", err)
	}
	if rt.cache != nil {
		t.Fatalf("expected no enrichment cache when weather is disabled")
	}
}

func TestNewRuntimeOpensJournalByDefault(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Journal.Dir = t.TempDir()

	rt, err := NewRuntime(cfg, WithCollector(&stubCollector{}), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("NewRuntime returned error: %v", err)
	}
	if rt.sink.Name() != "journal" {
		t.Fatalf("expected journal sink, got %s", rt.sink.Name())
	}
	if err := rt.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestRuntimeEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	push := NewPushCollector("esp32/data", cfg.Policy)
	snk, snaps, closeSink := NewChannelSink("test", 4)
	defer closeSink()

	rt, err := NewRuntime(cfg,
		WithCollector(push),
		WithSink(snk),
		WithLogger(quietLogger()),
	)
	if err != nil {
		t.Fatalf("NewRuntime returned error: %v", err)
	}
	if err := rt.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer rt.Shutdown(context.Background())

	if err := rt.Start(); err == nil {
		t.Fatalf("expected second Start to fail")
	}

	if err := push.Publish([]byte(`{"angle":12.5,"fsr":300,"skin_temp":33.1,"bat":80,"risk_score":45,"lat":"52.52","lng":"13.40"}`)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	var snap Snapshot
	select {
	case snap = <-snaps:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	if snap.OwnerID != "patient-7" || snap.SampleSeq != 1 {
		t.Fatalf("unexpected snapshot identity: %+v", snap)
	}
	if snap.RiskTier != "moderate" {
		t.Fatalf("expected moderate tier, got %s", snap.RiskTier)
	}
	if snap.Latitude == nil || *snap.Latitude != 52.52 {
		t.Fatalf("expected latitude to be carried, got %v", snap.Latitude)
	}

	view := rt.Dashboard()
	if view.Liveness != Online {
		t.Fatalf("expected device online, got %s", view.Liveness)
	}

	err = push.Publish([]byte(`{"angle":"oops"}`))
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	if got := rt.Rejected(); len(got) != 1 || got[0].Topic != "esp32/data" {
		t.Fatalf("expected one reject on esp32/data, got %+v", got)
	}
	if view := rt.Dashboard(); view.Sample == nil || view.Sample.Seq != 1 {
		t.Fatalf("malformed payload must not change the projection: %+v", view.Sample)
	}

	select {
	case extra := <-snaps:
		t.Fatalf("expected no second snapshot without a new sample, got %+v", extra)
	case <-time.After(100 * time.Millisecond):
	}

	if err := rt.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := push.Publish([]byte(`{"angle":1,"fsr":1,"skin_temp":30,"bat":50,"risk_score":10}`)); !errors.Is(err, ErrCollectorStopped) {
		t.Fatalf("expected ErrCollectorStopped after shutdown, got %v", err)
	}
}

func TestRuntimePersistsClampedHostSample(t *testing.T) {
	cfg := testConfig(t)
	push := NewPushCollector("", cfg.Policy)
	snk, snaps, closeSink := NewChannelSink("test", 4)
	defer closeSink()

	rt, err := NewRuntime(cfg, WithCollector(push), WithSink(snk), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("NewRuntime returned error: %v", err)
	}
	if err := rt.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer rt.Shutdown(context.Background())

	if err := push.PublishSample(Sample{RiskScore: 150, BatteryPct: -5}); err != nil {
		t.Fatalf("publish sample: %v", err)
	}

	select {
	case snap := <-snaps:
		if snap.RiskScore != 100 || snap.RiskTier != "critical" || snap.BatteryPct != 0 {
			t.Fatalf("unexpected snapshot: %+v", snap)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	if view := rt.Dashboard(); view.Risk == nil || *view.Risk != Critical {
		t.Fatalf("expected critical risk on the dashboard, got %v", view.Risk)
	}
}

func TestShutdownTimeoutDefersSinkClose(t *testing.T) {
	cfg := testConfig(t)
	push := NewPushCollector("", cfg.Policy)
	snk := &blockingSink{started: make(chan struct{}, 1), release: make(chan struct{})}

	rt, err := NewRuntime(cfg, WithCollector(push), WithSink(snk), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("NewRuntime returned error: %v", err)
	}
	rt.closers = append(rt.closers, snk)
	if err := rt.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := push.PublishSample(Sample{RiskScore: 10}); err != nil {
		t.Fatalf("publish sample: %v", err)
	}
	select {
	case <-snk.started:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the write to start")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := rt.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected shutdown to time out, got %v", err)
	}
	if snk.isClosed() {
		t.Fatalf("sink closed while a write was still in flight")
	}

	close(snk.release)
	deadline := time.Now().Add(2 * time.Second)
	for !snk.isClosed() {
		if time.Now().After(deadline) {
			t.Fatal("sink was never closed after the write finished")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if snk.closedDuringWrite() {
		t.Fatalf("sink closed during a write")
	}
}

func TestRuntimeHandlerServesDashboard(t *testing.T) {
	rt, err := NewRuntime(testConfig(t), WithCollector(&stubCollector{}), WithSink(&stubSink{}), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("NewRuntime returned error: %v", err)
	}

	rec := httptest.NewRecorder()
	rt.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var view DashboardView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode dashboard: %v", err)
	}
	if view.Liveness != Offline || view.Sample != nil {
		t.Fatalf("expected empty offline dashboard, got %+v", view)
	}

	rec = httptest.NewRecorder()
	rt.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected metrics 200, got %d", rec.Code)
	}
}

type stubCollector struct{}

func (s *stubCollector) Start(out chan<- *Sample) error { return nil }
func (s *stubCollector) Stop() error                    { return nil }
func (s *stubCollector) Connected() bool                { return false }

type stubSink struct{}

func (s *stubSink) WriteSnapshot(ctx context.Context, snap *Snapshot) error { return nil }
func (s *stubSink) Name() string                                            { return "stub" }

type blockingSink struct {
	started chan struct{}
	release chan struct{}

	mu          sync.Mutex
	writing     bool
	closed      bool
	overlapping bool
}

func (s *blockingSink) WriteSnapshot(ctx context.Context, snap *Snapshot) error {
	s.mu.Lock()
	s.writing = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.writing = false
		s.mu.Unlock()
	}()

	select {
	case s.started <- struct{}{}:
	default:
	}
	<-s.release
	return nil
}

func (s *blockingSink) Name() string { return "blocking" }

func (s *blockingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.overlapping = s.overlapping || s.writing
	return nil
}

func (s *blockingSink) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *blockingSink) closedDuringWrite() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overlapping
}

type stubWeather struct{}

func (s *stubWeather) Lookup(ctx context.Context, at Coordinates) (Conditions, error) {
	return Conditions{AmbientTempC: 21, Condition: "Clear"}, nil
}
func (s *stubWeather) Name() string { return "stub" }

type stubObservability struct{}

func (s *stubObservability) LogInfo(string, ...Field)            {}
func (s *stubObservability) LogWarn(string, error, ...Field)     {}
func (s *stubObservability) LogError(string, error, ...Field)    {}
func (s *stubObservability) LogCritical(string, error, ...Field) {}
func (s *stubObservability) IncCounter(string, float64)          {}
func (s *stubObservability) ObserveLatency(string, float64)      {}
func (s *stubObservability) SetGauge(string, float64)            {}
