package kneuraflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/kneurasense/kneuraflow/internal/adapters/httpapi"
	"github.com/kneurasense/kneuraflow/internal/adapters/journal"
	"github.com/kneurasense/kneuraflow/internal/adapters/mqtt"
	"github.com/kneurasense/kneuraflow/internal/adapters/observability"
	"github.com/kneurasense/kneuraflow/internal/adapters/queue"
	"github.com/kneurasense/kneuraflow/internal/adapters/sink"
	"github.com/kneurasense/kneuraflow/internal/adapters/weather"
	"github.com/kneurasense/kneuraflow/internal/app/pipeline"
	"github.com/kneurasense/kneuraflow/internal/logging"
	"github.com/kneurasense/kneuraflow/internal/ports"
)

// RuntimeOption customizes the dependencies used by Runtime.
type RuntimeOption func(*runtimeOverrides)

type runtimeOverrides struct {
	collector     Collector
	sink          Sink
	weather       WeatherProvider
	observability Observability
	logger        *slog.Logger
}

// WithCollector injects a custom collector (push collector, simulators, other brokers).
func WithCollector(col Collector) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.collector = col
	}
}

// WithSink injects a custom sink so snapshots can be sent to any database or API.
func WithSink(s Sink) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.sink = s
	}
}

// WithWeatherProvider enables enrichment with a caller-provided provider,
// regardless of weather.enabled.
func WithWeatherProvider(p WeatherProvider) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.weather = p
	}
}

// WithObservability plugs in a custom observability backend.
func WithObservability(obs Observability) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.observability = obs
	}
}

// WithLogger routes the default observability backend to logger.
func WithLogger(l *slog.Logger) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.logger = l
	}
}

// Runtime wires the collector → projection → persistence pipeline together
// with the liveness watchdog and weather enrichment, and exposes lifecycle
// hooks for embedding it inside any Go service.
type Runtime struct {
	cfg       *Config
	obs       ports.Observability
	registry  *prometheus.Registry
	rejects   *queue.MemQueue
	collector ports.Collector
	sink      ports.Sink

	closeMu sync.Mutex
	closers []io.Closer

	state    *pipeline.State
	watchdog *pipeline.Watchdog
	cache    *pipeline.EnrichmentCache
	job      *pipeline.PersistenceJob

	mu         sync.Mutex
	started    bool
	cancel     context.CancelFunc
	ingestDone <-chan struct{}
	workers    sync.WaitGroup
	srv        *http.Server
}

// NewRuntime bootstraps the default adapters (MQTT collector, the sink named
// by storage.driver, Open-Meteo enrichment, Prometheus observability).
// RuntimeOption values override any of them.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var overrides runtimeOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	obs := overrides.observability
	if obs == nil {
		logger := overrides.logger
		if logger == nil {
			logger = logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
		}
		obs = observability.NewPromObs(reg, logger)
	}

	rt := &Runtime{
		cfg:      cfg,
		obs:      obs,
		registry: reg,
		rejects:  queue.NewMemQueue(cfg.Policy.RejectBufferLen),
		state:    pipeline.NewState(cfg.Risk),
	}

	var err error
	col := overrides.collector
	if col == nil {
		col, err = mqtt.NewCollector(cfg.MQTT, cfg.Policy, obs, rt.rejects)
		if err != nil {
			return nil, err
		}
	}
	if pc, ok := col.(*PushCollector); ok {
		pc.bind(obs, rt.rejects)
	}
	rt.collector = col

	rt.sink = overrides.sink
	if rt.sink == nil {
		rt.sink, err = rt.openSink()
		if err != nil {
			return nil, err
		}
	}

	rt.watchdog = pipeline.NewWatchdog(cfg.Liveness.Timeout, cfg.Liveness.Interval,
		pipeline.LivenessRecorder(rt.state, obs))

	provider := overrides.weather
	if provider == nil && cfg.Weather.Enabled {
		client, err := weather.NewClient(cfg.Weather)
		if err != nil {
			rt.closeSinks()
			return nil, err
		}
		provider = client
	}
	if provider != nil {
		rt.cache = pipeline.NewEnrichmentCache(provider, pipeline.EnrichmentConfig{
			ToleranceDeg: cfg.Weather.ToleranceDeg,
			Timeout:      cfg.Weather.Timeout,
			MinInterval:  cfg.Weather.MinInterval,
		}, obs, rt.state.SetEnrichment)
	}

	rt.job, err = pipeline.NewPersistenceJob(pipeline.PersistenceConfig{
		OwnerID:      cfg.Device.OwnerID,
		Interval:     cfg.Persistence.Interval,
		WriteTimeout: cfg.Persistence.WriteTimeout,
	}, rt.state, rt.sink, obs)
	if err != nil {
		rt.closeSinks()
		return nil, err
	}

	return rt, nil
}

func (e *Runtime) openSink() (ports.Sink, error) {
	st := e.cfg.Storage
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch st.Driver {
	case "postgres":
		s, err := sink.OpenPostgresSink(ctx, st.Postgres.ConnString, st.Postgres.Table)
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, s)
		return s, nil
	case "sqlite":
		s, err := sink.OpenSQLiteSink(st.SQLite.Path, st.SQLite.Table)
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, s)
		return s, nil
	case "dynamodb":
		client, err := sink.NewDynamoDBClient(ctx, st.DynamoDB.Region, st.DynamoDB.Endpoint)
		if err != nil {
			return nil, err
		}
		return sink.NewDynamoDBSink(client, st.DynamoDB.Table, st.DynamoDB.TTL)
	case "http":
		return sink.NewHTTPSink(st.HTTP.URL, st.HTTP.Token, st.HTTP.Timeout)
	case "journal", "":
		j, err := journal.Open(st.Journal.Dir, st.Journal.Fsync)
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, j)
		return j, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", st.Driver)
	}
}

// Start begins ingestion, the watchdog, the persistence job and the HTTP API.
// It returns immediately; call Run to block on a context instead.
func (e *Runtime) Start() error {
	if e == nil {
		return fmt.Errorf("runtime is nil")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return fmt.Errorf("runtime already started")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done, err := pipeline.RunEdgePipeline(ctx, e.collector, e.cfg.Policy, pipeline.Ingest{
		State:      e.state,
		Watchdog:   e.watchdog,
		Enrichment: e.cache,
		Obs:        e.obs,
	})
	if err != nil {
		cancel()
		return err
	}
	e.started = true
	e.cancel = cancel
	e.ingestDone = done

	e.spawn(func() { e.watchdog.Run(ctx) })
	e.spawn(func() { e.job.Run(ctx) })
	e.spawn(func() { e.recordResourceGauges(ctx, time.Second) })

	if e.cfg.HTTP.Addr != "" {
		e.startHTTP()
	}

	e.obs.LogInfo("runtime_started",
		ports.Field{Key: "owner_id", Value: e.cfg.Device.OwnerID},
		ports.Field{Key: "sink", Value: e.sink.Name()},
		ports.Field{Key: "weather", Value: e.cache != nil})
	return nil
}

// Run starts the runtime and blocks until the provided context is cancelled.
// Upon cancellation it attempts a graceful shutdown.
func (e *Runtime) Run(ctx context.Context) error {
	if err := e.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// Shutdown stops the collector, the background workers, the HTTP server and
// the sink connections.
func (e *Runtime) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return e.closeSinks()
	}
	e.started = false
	cancel, srv, ingestDone := e.cancel, e.srv, e.ingestDone
	e.srv = nil
	e.mu.Unlock()

	var errs []error

	if err := e.collector.Stop(); err != nil {
		errs = append(errs, err)
	}
	cancel()

	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	}

	drained := make(chan struct{})
	go func() {
		<-ingestDone
		e.workers.Wait()
		if e.cache != nil {
			e.cache.Wait()
		}
		close(drained)
	}()
	select {
	case <-drained:
		if err := e.closeSinks(); err != nil {
			errs = append(errs, err)
		}
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("waiting for workers: %w", ctx.Err()))
		// a write may still be in flight; close once the workers are gone
		go func() {
			<-drained
			if err := e.closeSinks(); err != nil {
				e.obs.LogError("sink_close_failed", err)
			}
		}()
	}
	e.obs.LogInfo("runtime_stopped")
	return errors.Join(errs...)
}

// Dashboard returns a copy of the current projection.
func (e *Runtime) Dashboard() DashboardView {
	return e.state.View()
}

// Rejected returns the buffered undecodable payloads, oldest first.
func (e *Runtime) Rejected() []Rejected {
	return e.rejects.Snapshot()
}

// Connected reports whether the collector's transport is up.
func (e *Runtime) Connected() bool {
	return e.collector.Connected()
}

// Handler returns the read API (/healthz, /metrics, /api/dashboard,
// /api/rejects) so it can be mounted on an existing server.
func (e *Runtime) Handler() http.Handler {
	return httpapi.NewRouter(e, e.registry)
}

// Registry exposes the runtime's Prometheus registry.
func (e *Runtime) Registry() *prometheus.Registry {
	return e.registry
}

func (e *Runtime) spawn(fn func()) {
	e.workers.Add(1)
	go func() {
		defer e.workers.Done()
		fn()
	}()
}

func (e *Runtime) startHTTP() {
	e.srv = &http.Server{
		Addr:              e.cfg.HTTP.Addr,
		Handler:           e.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	srv := e.srv
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.obs.LogError("http_server_exited", err, ports.Field{Key: "addr", Value: srv.Addr})
		}
	}()
}

func (e *Runtime) recordResourceGauges(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.obs.SetGauge(ports.GaugeRejectBufferLen, float64(e.rejects.Len()))
			if e.collector.Connected() {
				e.obs.SetGauge(ports.GaugeTransportConnected, 1)
			} else {
				e.obs.SetGauge(ports.GaugeTransportConnected, 0)
			}
		}
	}
}

func (e *Runtime) closeSinks() error {
	e.closeMu.Lock()
	defer e.closeMu.Unlock()

	var errs []error
	for _, c := range e.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}

var _ httpapi.Source = (*Runtime)(nil)
