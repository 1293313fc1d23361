package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kneurasense/kneuraflow/internal/domain"
	"github.com/kneurasense/kneuraflow/internal/ports"
)

// ErrUnexpectedStatus is returned when the endpoint answers outside 2xx.
var ErrUnexpectedStatus = errors.New("unexpected status")

// saveLogBody is the payload accepted by the dashboard's save-log endpoint.
type saveLogBody struct {
	PatientID   string   `json:"patientId"`
	Angle       float64  `json:"angle"`
	FSR         int      `json:"fsr"`
	SkinTemp    float64  `json:"skin_temp"`
	Bat         int      `json:"bat"`
	RiskScore   int      `json:"risk_score"`
	RiskTier    string   `json:"risk_tier"`
	Lat         *float64 `json:"lat"`
	Lng         *float64 `json:"lng"`
	WeatherTemp *float64 `json:"weatherTemp"`
	ReceivedAt  string   `json:"received_at"`
}

// HTTPSink posts snapshots to a remote collector endpoint.
type HTTPSink struct {
	client *http.Client
	url    string
	token  string
}

func NewHTTPSink(url, token string, timeout time.Duration) (*HTTPSink, error) {
	if url == "" {
		return nil, errors.New("http sink url is required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSink{client: &http.Client{Timeout: timeout}, url: url, token: token}, nil
}

func (h *HTTPSink) Name() string { return "http" }

func (h *HTTPSink) WriteSnapshot(ctx context.Context, snap *domain.Snapshot) error {
	if snap == nil {
		return nil
	}
	body, err := json.Marshal(saveLogBody{
		PatientID:   snap.OwnerID,
		Angle:       snap.JointAngleDeg,
		FSR:         snap.ForceNewtons,
		SkinTemp:    snap.SkinTempC,
		Bat:         snap.BatteryPct,
		RiskScore:   snap.RiskScore,
		RiskTier:    snap.RiskTier,
		Lat:         snap.Latitude,
		Lng:         snap.Longitude,
		WeatherTemp: snap.WeatherTempC,
		ReceivedAt:  snap.ReceivedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("save-log: %w %d: %s", ErrUnexpectedStatus, resp.StatusCode, bytes.TrimSpace(msg))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

var _ ports.Sink = (*HTTPSink)(nil)
