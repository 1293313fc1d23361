package mqtt

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/kneurasense/kneuraflow/internal/adapters/ingress"
	"github.com/kneurasense/kneuraflow/internal/domain"
	"github.com/kneurasense/kneuraflow/internal/ports"
)

// Config captures the broker session used to receive wearable readings.
type Config struct {
	Broker               string        `yaml:"broker"`
	ClientID             string        `yaml:"client_id"`
	Username             string        `yaml:"username"`
	Password             string        `yaml:"password"`
	Topic                string        `yaml:"topic"`
	QoS                  byte          `yaml:"qos"`
	ConnectTimeout       time.Duration `yaml:"connect_timeout"`
	KeepAlive            time.Duration `yaml:"keep_alive"`
	ReconnectInterval    time.Duration `yaml:"reconnect_interval"`
	MaxReconnectInterval time.Duration `yaml:"max_reconnect_interval"`
	InsecureSkipVerify   bool          `yaml:"insecure_skip_verify"`
}

func (c *Config) ApplyDefaults() {
	if c.ClientID == "" {
		c.ClientID = "kneura_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	}
	if c.Topic == "" {
		c.Topic = "esp32/data"
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.KeepAlive <= 0 {
		c.KeepAlive = 30 * time.Second
	}
	if c.ReconnectInterval <= 0 {
		c.ReconnectInterval = time.Second
	}
	if c.MaxReconnectInterval <= 0 {
		c.MaxReconnectInterval = 30 * time.Second
	}
}

func (c *Config) Validate() error {
	if c.Broker == "" {
		return errors.New("broker is required")
	}
	u, err := url.Parse(c.Broker)
	if err != nil {
		return fmt.Errorf("broker url: %w", err)
	}
	switch u.Scheme {
	case "tcp", "mqtt", "ssl", "tls", "mqtts", "ws", "wss":
	default:
		return fmt.Errorf("unsupported broker scheme %q", u.Scheme)
	}
	if c.Topic == "" {
		return errors.New("topic is required")
	}
	if c.QoS > 2 {
		return fmt.Errorf("qos must be 0, 1 or 2, got %d", c.QoS)
	}
	return nil
}

// Collector subscribes to the wearable topic and emits decoded samples in
// arrival order. Reconnection is delegated to the paho client.
type Collector struct {
	cfg  Config
	obs  ports.Observability
	gate *ingress.Gate

	mu        sync.Mutex
	client    paho.Client
	connected atomic.Bool
}

func NewCollector(cfg Config, pol ports.Policy, obs ports.Observability, rejects ports.RejectQueue) (*Collector, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if obs == nil {
		return nil, errors.New("observability is required")
	}
	return &Collector{
		cfg:  cfg,
		obs:  obs,
		gate: ingress.NewGate(pol, obs, rejects),
	}, nil
}

func (c *Collector) Start(out chan<- *domain.Sample) error {
	c.mu.Lock()
	if err := c.gate.Open(out); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("mqtt collector: %w", err)
	}
	client := paho.NewClient(c.clientOptions())
	c.client = client
	c.mu.Unlock()

	token := client.Connect()
	if !token.WaitTimeout(c.cfg.ConnectTimeout) {
		// the client keeps retrying in the background
		c.obs.LogWarn("mqtt_connect_pending", nil,
			ports.Field{Key: "broker", Value: c.cfg.Broker},
			ports.Field{Key: "waited", Value: c.cfg.ConnectTimeout.String()})
		return nil
	}
	if err := token.Error(); err != nil {
		_ = c.Stop()
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

func (c *Collector) Stop() error {
	c.mu.Lock()
	if !c.gate.Close() {
		c.mu.Unlock()
		return nil
	}
	client := c.client
	c.client = nil
	c.mu.Unlock()

	var err error
	if client != nil {
		if client.IsConnectionOpen() {
			tok := client.Unsubscribe(c.cfg.Topic)
			if tok.WaitTimeout(time.Second) && tok.Error() != nil {
				err = fmt.Errorf("mqtt unsubscribe: %w", tok.Error())
			}
		}
		client.Disconnect(250)
	}
	c.setConnected(false)
	return err
}

func (c *Collector) Connected() bool {
	return c.connected.Load()
}

func (c *Collector) clientOptions() *paho.ClientOptions {
	opts := paho.NewClientOptions().
		AddBroker(c.cfg.Broker).
		SetClientID(c.cfg.ClientID).
		SetCleanSession(true).
		SetOrderMatters(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(c.cfg.ReconnectInterval).
		SetMaxReconnectInterval(c.cfg.MaxReconnectInterval).
		SetConnectTimeout(c.cfg.ConnectTimeout).
		SetKeepAlive(c.cfg.KeepAlive).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost).
		SetReconnectingHandler(c.onReconnecting)

	if c.cfg.Username != "" {
		opts.SetUsername(c.cfg.Username)
		opts.SetPassword(c.cfg.Password)
	}
	if c.cfg.InsecureSkipVerify {
		opts.SetTLSConfig(&tls.Config{InsecureSkipVerify: true, MinVersion: tls.VersionTLS12})
	}
	return opts
}

// onConnect runs after every (re)connect; the session is clean so the
// subscription has to be renewed each time.
func (c *Collector) onConnect(client paho.Client) {
	c.setConnected(true)
	c.obs.LogInfo("mqtt_connected", ports.Field{Key: "broker", Value: c.cfg.Broker})

	tok := client.Subscribe(c.cfg.Topic, c.cfg.QoS, c.onMessage)
	if !tok.WaitTimeout(c.cfg.ConnectTimeout) {
		c.obs.LogWarn("mqtt_subscribe_pending", nil, ports.Field{Key: "topic", Value: c.cfg.Topic})
		return
	}
	if err := tok.Error(); err != nil {
		c.obs.LogError("mqtt_subscribe_failed", err, ports.Field{Key: "topic", Value: c.cfg.Topic})
		return
	}
	c.obs.LogInfo("mqtt_subscribed", ports.Field{Key: "topic", Value: c.cfg.Topic})
}

func (c *Collector) onConnectionLost(_ paho.Client, err error) {
	c.setConnected(false)
	c.obs.LogWarn("mqtt_connection_lost", err, ports.Field{Key: "broker", Value: c.cfg.Broker})
}

func (c *Collector) onReconnecting(_ paho.Client, _ *paho.ClientOptions) {
	c.obs.LogInfo("mqtt_reconnecting", ports.Field{Key: "broker", Value: c.cfg.Broker})
}

func (c *Collector) onMessage(_ paho.Client, msg paho.Message) {
	c.handleMessage(msg.Topic(), msg.Payload())
}

// handleMessage reports whether a sample was delivered.
func (c *Collector) handleMessage(topic string, payload []byte) bool {
	_, err := c.gate.Accept(topic, payload)
	return err == nil
}

func (c *Collector) setConnected(up bool) {
	c.connected.Store(up)
	v := 0.0
	if up {
		v = 1
	}
	c.obs.SetGauge(ports.GaugeTransportConnected, v)
}

var _ ports.Collector = (*Collector)(nil)
