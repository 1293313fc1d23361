package kneuraflow

import (
	"github.com/kneurasense/kneuraflow/internal/adapters/mqtt"
	"github.com/kneurasense/kneuraflow/internal/adapters/weather"
	"github.com/kneurasense/kneuraflow/internal/app/config"
	"github.com/kneurasense/kneuraflow/internal/ports"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	// Policy controls the ingest queue and reject buffer.
	Policy = ports.Policy
	// MQTTConfig holds broker and topic details.
	MQTTConfig = mqtt.Config
	// WeatherConfig configures the Open-Meteo lookups.
	WeatherConfig = weather.Config
	// DeviceConfig identifies the patient the wearable belongs to.
	DeviceConfig = config.DeviceConfig
	// LivenessConfig tunes the watchdog.
	LivenessConfig = config.LivenessConfig
	// PersistenceConfig tunes the snapshot job.
	PersistenceConfig = config.PersistenceConfig
	// StorageConfig selects the snapshot sink.
	StorageConfig = config.StorageConfig
	// JournalConfig configures the local snapshot journal.
	JournalConfig = config.JournalConfig
	// HTTPConfig configures the read API and metrics server.
	HTTPConfig = config.HTTPConfig
	// LogConfig configures structured logging.
	LogConfig = config.LogConfig
)

// LoadConfig loads YAML from disk using the internal config reader.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// ParseConfig decodes YAML held in memory.
func ParseConfig(raw []byte) (*Config, error) {
	return config.Parse(raw)
}
