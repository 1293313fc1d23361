package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kneurasense/kneuraflow/internal/adapters/mqtt"
	"github.com/kneurasense/kneuraflow/internal/adapters/weather"
	"github.com/kneurasense/kneuraflow/internal/domain"
	"github.com/kneurasense/kneuraflow/internal/ports"
)

type Config struct {
	Device      DeviceConfig      `yaml:"device"`
	Policy      ports.Policy      `yaml:"policy"`
	MQTT        mqtt.Config       `yaml:"mqtt"`
	Liveness    LivenessConfig    `yaml:"liveness"`
	Weather     weather.Config    `yaml:"weather"`
	Risk        domain.Thresholds `yaml:"risk"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Storage     StorageConfig     `yaml:"storage"`
	HTTP        HTTPConfig        `yaml:"http"`
	Log         LogConfig         `yaml:"log"`
}

type DeviceConfig struct {
	OwnerID string `yaml:"owner_id"`
}

type LivenessConfig struct {
	Timeout  time.Duration `yaml:"timeout"`
	Interval time.Duration `yaml:"interval"`
}

type PersistenceConfig struct {
	Interval     time.Duration `yaml:"interval"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// StorageConfig selects one snapshot sink by Driver.
type StorageConfig struct {
	Driver   string         `yaml:"driver"` // "postgres", "sqlite", "dynamodb", "http", "journal"
	Postgres PostgresConfig `yaml:"postgres"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	DynamoDB DynamoDBConfig `yaml:"dynamodb"`
	HTTP     HTTPSinkConfig `yaml:"http"`
	Journal  JournalConfig  `yaml:"journal"`
}

type PostgresConfig struct {
	ConnString string `yaml:"conn_string"`
	Table      string `yaml:"table"`
}

type SQLiteConfig struct {
	Path  string `yaml:"path"`
	Table string `yaml:"table"`
}

type DynamoDBConfig struct {
	Region   string        `yaml:"region"`
	Endpoint string        `yaml:"endpoint"`
	Table    string        `yaml:"table"`
	TTL      time.Duration `yaml:"ttl"`
}

type HTTPSinkConfig struct {
	URL     string        `yaml:"url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

type JournalConfig struct {
	Dir   string `yaml:"dir"`
	Fsync bool   `yaml:"fsync"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a YAML file, expanding ${VAR} references from the environment.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// Parse decodes, defaults and validates raw YAML.
func Parse(raw []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(raw))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) ApplyDefaults() {
	if c.Policy.MaxQueueLen == 0 {
		c.Policy.MaxQueueLen = 256
	}
	if c.Policy.RejectBufferLen == 0 {
		c.Policy.RejectBufferLen = 64
	}
	if c.Policy.OnQueueFull == "" {
		c.Policy.OnQueueFull = "block"
	}
	if c.Policy.OnQueueFull == "block" && c.Policy.BlockTimeout == 0 {
		c.Policy.BlockTimeout = time.Second
	}
	if c.Liveness.Timeout == 0 {
		c.Liveness.Timeout = 8 * time.Second
	}
	if c.Liveness.Interval == 0 {
		c.Liveness.Interval = 2 * time.Second
	}
	if c.Risk == (domain.Thresholds{}) {
		c.Risk = domain.DefaultThresholds()
	}
	if c.Persistence.Interval == 0 {
		c.Persistence.Interval = 5 * time.Second
	}
	if c.Persistence.WriteTimeout == 0 {
		c.Persistence.WriteTimeout = 5 * time.Second
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "journal"
	}
	if c.Storage.Postgres.Table == "" {
		c.Storage.Postgres.Table = "knee_snapshots"
	}
	if c.Storage.SQLite.Path == "" {
		c.Storage.SQLite.Path = "./data/kneura.db"
	}
	if c.Storage.SQLite.Table == "" {
		c.Storage.SQLite.Table = "snapshots"
	}
	if c.Storage.DynamoDB.TTL == 0 {
		c.Storage.DynamoDB.TTL = 30 * 24 * time.Hour
	}
	if c.Storage.HTTP.Timeout == 0 {
		c.Storage.HTTP.Timeout = 10 * time.Second
	}
	if c.Storage.Journal.Dir == "" {
		c.Storage.Journal.Dir = "./data/journal"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":9100"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	c.MQTT.ApplyDefaults()
	c.Weather.ApplyDefaults()
}

func (c *Config) Validate() error {
	if c.Device.OwnerID == "" {
		return fmt.Errorf("device.owner_id is required")
	}
	if err := c.MQTT.Validate(); err != nil {
		return fmt.Errorf("mqtt config: %w", err)
	}
	if c.Weather.Enabled {
		if err := c.Weather.Validate(); err != nil {
			return fmt.Errorf("weather config: %w", err)
		}
	}
	if err := c.Risk.Validate(); err != nil {
		return fmt.Errorf("risk config: %w", err)
	}
	switch c.Policy.OnQueueFull {
	case "block", "drop":
	default:
		return fmt.Errorf("policy.on_queue_full must be block or drop, got %q", c.Policy.OnQueueFull)
	}
	if c.Policy.MaxQueueLen < 1 || c.Policy.RejectBufferLen < 1 {
		return fmt.Errorf("policy.max_queue_len and policy.reject_buffer_len must be positive")
	}
	if c.Liveness.Timeout <= 0 || c.Liveness.Interval <= 0 {
		return fmt.Errorf("liveness.timeout and liveness.interval must be positive")
	}
	if c.Liveness.Interval > c.Liveness.Timeout {
		return fmt.Errorf("liveness.interval (%s) must not exceed liveness.timeout (%s)", c.Liveness.Interval, c.Liveness.Timeout)
	}
	if c.Persistence.Interval <= 0 || c.Persistence.WriteTimeout <= 0 {
		return fmt.Errorf("persistence.interval and persistence.write_timeout must be positive")
	}
	return c.Storage.validate()
}

func (s *StorageConfig) validate() error {
	switch s.Driver {
	case "postgres":
		if s.Postgres.ConnString == "" {
			return fmt.Errorf("storage.postgres.conn_string is required")
		}
	case "sqlite":
		if s.SQLite.Path == "" {
			return fmt.Errorf("storage.sqlite.path is required")
		}
	case "dynamodb":
		if s.DynamoDB.Table == "" {
			return fmt.Errorf("storage.dynamodb.table is required")
		}
	case "http":
		if s.HTTP.URL == "" {
			return fmt.Errorf("storage.http.url is required")
		}
	case "journal":
		if s.Journal.Dir == "" {
			return fmt.Errorf("storage.journal.dir is required")
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", s.Driver)
	}
	return nil
}
