package kneuraflow

import (
	"context"
	"fmt"
)

// Flow assembles a Runtime in three steps that mirror the data path of the
// wearable: load the device config, choose where readings come from, choose
// where snapshots go.
//
//	flow, _ := kneuraflow.Conf("./data/config.yaml")
//	err := flow.StreamIN(kneuraflow.StreamInCollector(push)).
//		Run(ctx, kneuraflow.StreamOutCallback("stdout", print))
type Flow struct {
	cfg  *Config
	opts []RuntimeOption
}

// FlowOption adjusts a Flow right after its config is loaded.
type FlowOption func(*Flow)

// StreamInOption selects the reading side: collector, weather provider, telemetry.
type StreamInOption func(*Flow)

// StreamOutOption selects the snapshot side: sink or callback.
type StreamOutOption func(*Flow)

// Conf reads the YAML config at path and starts a Flow from it.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return ConfFromConfig(cfg, opts...)
}

// ConfFromConfig starts a Flow from a config built in code.
func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	f := &Flow{cfg: cfg}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f, nil
}

// Config exposes the loaded config, e.g. to set device.owner_id per patient
// before the runtime is built.
func (f *Flow) Config() *Config {
	if f == nil {
		return nil
	}
	return f.cfg
}

func (f *Flow) StreamIN(opts ...StreamInOption) *Flow {
	if f == nil {
		return nil
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// StreamOUT applies the sink side and builds the Runtime without starting it.
func (f *Flow) StreamOUT(opts ...StreamOutOption) (*Runtime, error) {
	if f == nil {
		return nil, fmt.Errorf("flow is nil")
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return NewRuntime(f.cfg, f.opts...)
}

// Run builds the Runtime and blocks until ctx is cancelled.
func (f *Flow) Run(ctx context.Context, opts ...StreamOutOption) error {
	rt, err := f.StreamOUT(opts...)
	if err != nil {
		return err
	}
	return rt.Run(ctx)
}

// WithFlowOptions passes RuntimeOption values straight through, e.g. WithLogger.
func WithFlowOptions(opts ...RuntimeOption) FlowOption {
	return func(f *Flow) {
		f.add(opts...)
	}
}

// StreamInCollector replaces the MQTT collector, typically with a PushCollector.
func StreamInCollector(col Collector) StreamInOption {
	if col == nil {
		return nil
	}
	return func(f *Flow) { f.add(WithCollector(col)) }
}

// StreamInWeather turns enrichment on with p, even when weather.enabled is false.
func StreamInWeather(p WeatherProvider) StreamInOption {
	if p == nil {
		return nil
	}
	return func(f *Flow) { f.add(WithWeatherProvider(p)) }
}

// StreamInObservability replaces the Prometheus/slog backend.
func StreamInObservability(obs Observability) StreamInOption {
	if obs == nil {
		return nil
	}
	return func(f *Flow) { f.add(WithObservability(obs)) }
}

// StreamOutSink replaces the sink named by storage.driver.
func StreamOutSink(s Sink) StreamOutOption {
	if s == nil {
		return nil
	}
	return func(f *Flow) { f.add(WithSink(s)) }
}

// StreamOutObservability is StreamInObservability for callers configuring the sink side last.
func StreamOutObservability(obs Observability) StreamOutOption {
	if obs == nil {
		return nil
	}
	return func(f *Flow) { f.add(WithObservability(obs)) }
}

// StreamOutCallback hands every persisted snapshot to fn instead of storage.
func StreamOutCallback(name string, fn SnapshotFunc) StreamOutOption {
	return func(f *Flow) { f.add(WithSink(NewCallbackSink(name, fn))) }
}

func (f *Flow) add(opts ...RuntimeOption) {
	if f == nil {
		return
	}
	for _, opt := range opts {
		if opt != nil {
			f.opts = append(f.opts, opt)
		}
	}
}
