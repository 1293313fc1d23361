package observability

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kneurasense/kneuraflow/internal/ports"
)

type PromObs struct {
	logger   *slog.Logger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

// NewPromObs registers the pipeline metrics on reg (the default registerer
// when nil) and routes log calls to logger (slog.Default when nil).
func NewPromObs(reg prometheus.Registerer, logger *slog.Logger) *PromObs {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = slog.Default()
	}

	counterHelp := map[string]string{
		ports.MetricSamplesReceived:     "Samples accepted from the device transport.",
		ports.MetricSamplesRejected:     "Inbound messages discarded because they failed to decode.",
		ports.MetricSamplesDropped:      "Decoded samples dropped because the ingest queue was full.",
		ports.MetricWeatherLookups:      "Weather lookups issued to the provider.",
		ports.MetricWeatherFailures:     "Weather lookups that failed or timed out.",
		ports.MetricWeatherCacheHits:    "Samples whose position was served by the cached weather record.",
		ports.MetricSnapshotsWritten:    "Snapshots persisted to storage.",
		ports.MetricSnapshotFailures:    "Snapshots dropped because the storage write failed.",
		ports.MetricSnapshotsOffline:    "Persistence ticks skipped because the device was offline.",
		ports.MetricSnapshotsStale:      "Persistence ticks skipped because no new sample arrived.",
		ports.MetricLivenessTransitions: "Online/offline transitions of the device.",
	}
	gaugeHelp := map[string]string{
		ports.GaugeDeviceOnline:       "1 while the wearable is considered online.",
		ports.GaugeTransportConnected: "1 while the transport connection is up.",
		ports.GaugeRiskScore:          "Risk score of the latest sample.",
		ports.GaugeBatteryPct:         "Battery level of the latest sample.",
		ports.GaugeRejectBufferLen:    "Rejected payloads currently buffered for inspection.",
	}

	p := &PromObs{
		logger:   logger,
		counters: make(map[string]prometheus.Counter, len(counterHelp)),
		gauges:   make(map[string]prometheus.Gauge, len(gaugeHelp)),
		histos:   make(map[string]prometheus.Observer, 2),
	}

	var collectors []prometheus.Collector
	for name, help := range counterHelp {
		c := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
		p.counters[name] = c
		collectors = append(collectors, c)
	}
	for name, help := range gaugeHelp {
		g := prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
		p.gauges[name] = g
		collectors = append(collectors, g)
	}

	lookup := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    ports.LatencyWeatherLookup,
		Help:    "Latency of weather provider lookups.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
	})
	write := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    ports.LatencySnapshotWrite,
		Help:    "Latency of snapshot writes to storage.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})
	p.histos[ports.LatencyWeatherLookup] = lookup
	p.histos[ports.LatencySnapshotWrite] = write
	collectors = append(collectors, lookup, write)

	reg.MustRegister(collectors...)
	return p
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.logger.Info(msg, attrs(nil, fields)...)
}

func (p *PromObs) LogWarn(msg string, err error, fields ...ports.Field) {
	p.logger.Warn(msg, attrs(err, fields)...)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	p.logger.Error(msg, attrs(err, fields)...)
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	p.logger.Error(msg, append(attrs(err, fields), "critical", true)...)
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func attrs(err error, fields []ports.Field) []any {
	out := make([]any, 0, len(fields)*2+2)
	if err != nil {
		out = append(out, "error", err)
	}
	for _, f := range fields {
		out = append(out, f.Key, f.Value)
	}
	return out
}

var _ ports.Observability = (*PromObs)(nil)
