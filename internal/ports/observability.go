package ports

type Observability interface {
	LogInfo(msg string, fields ...Field)
	LogWarn(msg string, err error, fields ...Field)
	LogError(msg string, err error, fields ...Field)
	LogCritical(msg string, err error, fields ...Field)

	IncCounter(name string, v float64)
	ObserveLatency(name string, seconds float64)

	SetGauge(name string, v float64)
}

type Field struct {
	Key   string
	Value any
}

// Metric names understood by the Prometheus adapter.
const (
	MetricSamplesReceived     = "kneura_samples_received_total"
	MetricSamplesRejected     = "kneura_samples_rejected_total"
	MetricSamplesDropped      = "kneura_samples_dropped_total"
	MetricWeatherLookups      = "kneura_weather_lookups_total"
	MetricWeatherFailures     = "kneura_weather_lookup_failures_total"
	MetricWeatherCacheHits    = "kneura_weather_cache_hits_total"
	MetricSnapshotsWritten    = "kneura_snapshots_written_total"
	MetricSnapshotFailures    = "kneura_snapshot_failures_total"
	MetricSnapshotsOffline    = "kneura_snapshots_skipped_offline_total"
	MetricSnapshotsStale      = "kneura_snapshots_skipped_stale_total"
	MetricLivenessTransitions = "kneura_liveness_transitions_total"
	GaugeDeviceOnline         = "kneura_device_online"
	GaugeTransportConnected   = "kneura_transport_connected"
	GaugeRiskScore            = "kneura_risk_score"
	GaugeBatteryPct           = "kneura_battery_pct"
	GaugeRejectBufferLen      = "kneura_reject_buffer_length"
	LatencyWeatherLookup      = "kneura_weather_lookup_seconds"
	LatencySnapshotWrite      = "kneura_snapshot_write_seconds"
)
