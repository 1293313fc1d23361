package domain

import (
	"errors"
	"fmt"
)

// ErrScoreOutOfRange is returned when a risk score falls outside [0,100].
var ErrScoreOutOfRange = errors.New("risk score out of range")

// RiskTier is the bounded category shown on the dashboard.
type RiskTier uint8

const (
	Safe RiskTier = iota
	Moderate
	Critical
)

func (t RiskTier) String() string {
	switch t {
	case Moderate:
		return "moderate"
	case Critical:
		return "critical"
	default:
		return "safe"
	}
}

func (t RiskTier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *RiskTier) UnmarshalText(b []byte) error {
	switch string(b) {
	case "safe":
		*t = Safe
	case "moderate":
		*t = Moderate
	case "critical":
		*t = Critical
	default:
		return fmt.Errorf("unknown risk tier %q", b)
	}
	return nil
}

// Thresholds are exclusive lower bounds: a score strictly above CriticalAbove
// is Critical, strictly above ModerateAbove is Moderate.
type Thresholds struct {
	ModerateAbove int `yaml:"moderate_above" json:"moderate_above"`
	CriticalAbove int `yaml:"critical_above" json:"critical_above"`
}

// DefaultThresholds matches the boundaries used by the patient dashboard gauge.
func DefaultThresholds() Thresholds {
	return Thresholds{ModerateAbove: 40, CriticalAbove: 70}
}

func (t Thresholds) Validate() error {
	if t.ModerateAbove < 0 || t.CriticalAbove > 100 {
		return fmt.Errorf("thresholds must lie within [0,100]: moderate=%d critical=%d", t.ModerateAbove, t.CriticalAbove)
	}
	if t.ModerateAbove >= t.CriticalAbove {
		return fmt.Errorf("moderate_above (%d) must be below critical_above (%d)", t.ModerateAbove, t.CriticalAbove)
	}
	return nil
}

// Classify maps a risk score to its tier.
func (t Thresholds) Classify(score int) (RiskTier, error) {
	if score < 0 || score > 100 {
		return Safe, fmt.Errorf("%w: %d", ErrScoreOutOfRange, score)
	}
	switch {
	case score > t.CriticalAbove:
		return Critical, nil
	case score > t.ModerateAbove:
		return Moderate, nil
	default:
		return Safe, nil
	}
}
