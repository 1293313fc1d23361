package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kneurasense/kneuraflow/internal/domain"
	"github.com/kneurasense/kneuraflow/internal/ports"
)

const (
	defaultBaseURL = "https://api.open-meteo.com/v1/forecast"
	// spacing between lookups so a failing provider is not hit on every sample
	defaultMinInterval = 30 * time.Second
)

// Config holds Open-Meteo client configuration.
type Config struct {
	Enabled      bool          `yaml:"enabled"`
	BaseURL      string        `yaml:"base_url"`
	Timeout      time.Duration `yaml:"timeout"`
	ToleranceDeg float64       `yaml:"tolerance_deg"`
	MinInterval  time.Duration `yaml:"min_interval"`
}

func (c *Config) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.ToleranceDeg <= 0 {
		c.ToleranceDeg = 0.01
	}
	if c.MinInterval == 0 {
		c.MinInterval = defaultMinInterval
	}
}

func (c *Config) Validate() error {
	if _, err := url.ParseRequestURI(c.BaseURL); err != nil {
		return fmt.Errorf("base_url: %w", err)
	}
	if c.ToleranceDeg > 1 {
		return fmt.Errorf("tolerance_deg %.3f is too coarse for weather lookups", c.ToleranceDeg)
	}
	if c.MinInterval < 0 {
		return fmt.Errorf("min_interval must not be negative")
	}
	return nil
}

// Client queries the Open-Meteo current weather endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a new Open-Meteo client.
func NewClient(cfg Config) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
	}, nil
}

func (c *Client) Name() string { return "open-meteo" }

type forecastResponse struct {
	CurrentWeather *struct {
		Temperature float64 `json:"temperature"`
		WeatherCode int     `json:"weathercode"`
	} `json:"current_weather"`
}

// Lookup fetches the current conditions at a position.
func (c *Client) Lookup(ctx context.Context, at domain.Coordinates) (domain.Conditions, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(at.Lat, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(at.Lng, 'f', 4, 64))
	q.Set("current_weather", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return domain.Conditions{}, fmt.Errorf("creating weather request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Conditions{}, fmt.Errorf("weather request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.Conditions{}, fmt.Errorf("weather lookup returned status %d: %s", resp.StatusCode, body)
	}

	var fr forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
		return domain.Conditions{}, fmt.Errorf("decoding weather response: %w", err)
	}
	if fr.CurrentWeather == nil {
		return domain.Conditions{}, fmt.Errorf("weather response has no current_weather block")
	}

	return domain.Conditions{
		AmbientTempC: fr.CurrentWeather.Temperature,
		WeatherCode:  fr.CurrentWeather.WeatherCode,
		Condition:    Describe(fr.CurrentWeather.WeatherCode),
	}, nil
}

// Describe maps a WMO weather interpretation code to a short label.
func Describe(code int) string {
	switch {
	case code == 0:
		return "Clear"
	case code >= 1 && code <= 3:
		return "Partly cloudy"
	case code == 45 || code == 48:
		return "Fog"
	case code >= 51 && code <= 57:
		return "Drizzle"
	case code >= 61 && code <= 67:
		return "Rain"
	case code >= 71 && code <= 77:
		return "Snow"
	case code >= 80 && code <= 86:
		return "Showers"
	case code >= 95 && code <= 99:
		return "Thunderstorm"
	default:
		return "Unknown"
	}
}

var _ ports.WeatherProvider = (*Client)(nil)
