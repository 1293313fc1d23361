// Package codec turns raw wearable payloads into domain samples.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kneurasense/kneuraflow/internal/domain"
)

// MaxPayloadBytes bounds a single inbound message.
const MaxPayloadBytes = 32 * 1024

var (
	ErrMalformed    = errors.New("malformed telemetry payload")
	ErrMissingField = fmt.Errorf("%w: missing field", ErrMalformed)
	ErrWrongType    = fmt.Errorf("%w: wrong type", ErrMalformed)
	ErrOutOfRange   = fmt.Errorf("%w: value out of range", ErrMalformed)
)

// largest magnitude accepted for integer fields before conversion
const maxInteger = 1 << 31

type wirePayload struct {
	Angle     json.RawMessage `json:"angle"`
	FSR       json.RawMessage `json:"fsr"`
	SkinTemp  json.RawMessage `json:"skin_temp"`
	Bat       json.RawMessage `json:"bat"`
	RiskScore json.RawMessage `json:"risk_score"`
	Lat       json.RawMessage `json:"lat"`
	Lng       json.RawMessage `json:"lng"`
}

// Decode parses one device message. Battery and risk score are clamped to
// [0,100]; a missing or mistyped mandatory field rejects the whole message.
// GPS is optional: absent, partial or unparsable coordinates mean "no fix".
// Seq and ReceivedAt are left for the collector to assign.
func Decode(payload []byte) (*domain.Sample, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformed)
	}
	if len(payload) > MaxPayloadBytes {
		return nil, fmt.Errorf("%w: payload of %d bytes exceeds %d", ErrMalformed, len(payload), MaxPayloadBytes)
	}

	var w wirePayload
	if err := json.Unmarshal(payload, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	angle, err := number("angle", w.Angle)
	if err != nil {
		return nil, err
	}
	skinTemp, err := number("skin_temp", w.SkinTemp)
	if err != nil {
		return nil, err
	}
	force, err := integer("fsr", w.FSR)
	if err != nil {
		return nil, err
	}
	bat, err := integer("bat", w.Bat)
	if err != nil {
		return nil, err
	}
	risk, err := integer("risk_score", w.RiskScore)
	if err != nil {
		return nil, err
	}

	s := &domain.Sample{
		JointAngleDeg: angle,
		ForceNewtons:  force,
		SkinTempC:     skinTemp,
		BatteryPct:    bat,
		RiskScore:     risk,
	}
	s.Latitude, s.Longitude = position(w.Lat, w.Lng)
	if err := Normalize(s); err != nil {
		return nil, err
	}
	return s, nil
}

// Normalize applies the sample invariants in place: battery and risk score
// are clamped to [0,100], a partial or out-of-range fix is cleared, and a
// negative force or non-finite reading is rejected.
func Normalize(s *domain.Sample) error {
	if s == nil {
		return fmt.Errorf("%w: nil sample", ErrMalformed)
	}
	if !finite(s.JointAngleDeg) {
		return fmt.Errorf("%w: angle=%v", ErrOutOfRange, s.JointAngleDeg)
	}
	if !finite(s.SkinTempC) {
		return fmt.Errorf("%w: skin_temp=%v", ErrOutOfRange, s.SkinTempC)
	}
	if s.ForceNewtons < 0 {
		return fmt.Errorf("%w: fsr=%d", ErrOutOfRange, s.ForceNewtons)
	}
	s.BatteryPct = clamp(s.BatteryPct, 0, 100)
	s.RiskScore = clamp(s.RiskScore, 0, 100)

	if s.Latitude == nil || s.Longitude == nil ||
		!finite(*s.Latitude) || !finite(*s.Longitude) ||
		math.Abs(*s.Latitude) > 90 || math.Abs(*s.Longitude) > 180 {
		s.Latitude, s.Longitude = nil, nil
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func number(field string, raw json.RawMessage) (float64, error) {
	if absent(raw) {
		return 0, fmt.Errorf("%w: %s", ErrMissingField, field)
	}
	if raw[0] != '-' && (raw[0] < '0' || raw[0] > '9') {
		return 0, fmt.Errorf("%w: %s=%s", ErrWrongType, field, raw)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrWrongType, field, err)
	}
	return f, nil
}

func integer(field string, raw json.RawMessage) (int, error) {
	f, err := number(field, raw)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: %s=%v is not an integer", ErrWrongType, field, f)
	}
	if math.Abs(f) > maxInteger {
		return 0, fmt.Errorf("%w: %s=%v", ErrOutOfRange, field, f)
	}
	return int(f), nil
}

func position(latRaw, lngRaw json.RawMessage) (*float64, *float64) {
	lat, ok := coordinate(latRaw)
	if !ok || math.Abs(lat) > 90 {
		return nil, nil
	}
	lng, ok := coordinate(lngRaw)
	if !ok || math.Abs(lng) > 180 {
		return nil, nil
	}
	return &lat, &lng
}

// coordinate accepts a JSON number or a numeric string.
func coordinate(raw json.RawMessage) (float64, bool) {
	if absent(raw) {
		return 0, false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || !finite(f) {
			return 0, false
		}
		return f, true
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	return f, true
}

func absent(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
