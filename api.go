package kneuraflow

import (
	"log/slog"

	base "github.com/kneurasense/kneuraflow/pkg/kneuraflow"
)

// Re-exported errors for convenience.
var (
	ErrQueueFull         = base.ErrQueueFull
	ErrCollectorStopped  = base.ErrCollectorStopped
	ErrMalformed         = base.ErrMalformed
	ErrChannelSinkClosed = base.ErrChannelSinkClosed
)

// Type aliases so consumers can import github.com/kneurasense/kneuraflow directly.
type (
	Config            = base.Config
	Policy            = base.Policy
	MQTTConfig        = base.MQTTConfig
	WeatherConfig     = base.WeatherConfig
	DeviceConfig      = base.DeviceConfig
	LivenessConfig    = base.LivenessConfig
	PersistenceConfig = base.PersistenceConfig
	StorageConfig     = base.StorageConfig
	JournalConfig     = base.JournalConfig
	HTTPConfig        = base.HTTPConfig
	LogConfig         = base.LogConfig
	Flow              = base.Flow
	FlowOption        = base.FlowOption
	StreamInOption    = base.StreamInOption
	StreamOutOption   = base.StreamOutOption
	Runtime           = base.Runtime
	RuntimeOption     = base.RuntimeOption
	Sample            = base.Sample
	Snapshot          = base.Snapshot
	SnapshotFunc      = base.SnapshotFunc
	Rejected          = base.Rejected
	DashboardView     = base.DashboardView
	Enrichment        = base.Enrichment
	Coordinates       = base.Coordinates
	Conditions        = base.Conditions
	Thresholds        = base.Thresholds
	Liveness          = base.Liveness
	RiskTier          = base.RiskTier
	Collector         = base.Collector
	Sink              = base.Sink
	WeatherProvider   = base.WeatherProvider
	Observability     = base.Observability
	Field             = base.Field
	PushCollector     = base.PushCollector
)

const (
	Offline  = base.Offline
	Online   = base.Online
	Safe     = base.Safe
	Moderate = base.Moderate
	Critical = base.Critical
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

func ParseConfig(raw []byte) (*Config, error) {
	return base.ParseConfig(raw)
}

func DefaultThresholds() Thresholds {
	return base.DefaultThresholds()
}

// Flow builder helpers.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	return base.Conf(path, opts...)
}

func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	return base.ConfFromConfig(cfg, opts...)
}

func WithFlowOptions(opts ...RuntimeOption) FlowOption {
	return base.WithFlowOptions(opts...)
}

func StreamInCollector(col Collector) StreamInOption {
	return base.StreamInCollector(col)
}

func StreamInWeather(p WeatherProvider) StreamInOption {
	return base.StreamInWeather(p)
}

func StreamInObservability(obs Observability) StreamInOption {
	return base.StreamInObservability(obs)
}

func StreamOutSink(s Sink) StreamOutOption {
	return base.StreamOutSink(s)
}

func StreamOutObservability(obs Observability) StreamOutOption {
	return base.StreamOutObservability(obs)
}

func StreamOutCallback(name string, fn SnapshotFunc) StreamOutOption {
	return base.StreamOutCallback(name, fn)
}

// Runtime and options.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	return base.NewRuntime(cfg, opts...)
}

func WithCollector(col Collector) RuntimeOption {
	return base.WithCollector(col)
}

func WithSink(s Sink) RuntimeOption {
	return base.WithSink(s)
}

func WithWeatherProvider(p WeatherProvider) RuntimeOption {
	return base.WithWeatherProvider(p)
}

func WithObservability(obs Observability) RuntimeOption {
	return base.WithObservability(obs)
}

func WithLogger(l *slog.Logger) RuntimeOption {
	return base.WithLogger(l)
}

// Sink adapters.
func NewCallbackSink(name string, fn SnapshotFunc) Sink {
	return base.NewCallbackSink(name, fn)
}

func NewChannelSink(name string, buffer int) (Sink, <-chan Snapshot, func()) {
	return base.NewChannelSink(name, buffer)
}

// Push collector.
func NewPushCollector(topic string, pol Policy) *PushCollector {
	return base.NewPushCollector(topic, pol)
}
