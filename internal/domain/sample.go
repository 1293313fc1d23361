package domain

import "time"

// Sample is one decoded reading from the knee wearable. Samples are created by
// a collector on arrival and never mutated afterwards; the next reading
// supersedes the previous one.
type Sample struct {
	Seq           uint64    `json:"seq"`
	JointAngleDeg float64   `json:"angle"`
	ForceNewtons  int       `json:"fsr"`
	SkinTempC     float64   `json:"skin_temp"`
	BatteryPct    int       `json:"bat"`
	RiskScore     int       `json:"risk_score"`
	Latitude      *float64  `json:"lat,omitempty"`
	Longitude     *float64  `json:"lng,omitempty"`
	ReceivedAt    time.Time `json:"received_at"`
}

// Position returns the GPS fix carried by the sample, if any.
func (s *Sample) Position() (Coordinates, bool) {
	if s == nil || s.Latitude == nil || s.Longitude == nil {
		return Coordinates{}, false
	}
	return Coordinates{Lat: *s.Latitude, Lng: *s.Longitude}, true
}

// Clone returns a deep copy so readers never share the optional coordinate pointers.
func (s *Sample) Clone() *Sample {
	if s == nil {
		return nil
	}
	out := *s
	if s.Latitude != nil {
		lat := *s.Latitude
		out.Latitude = &lat
	}
	if s.Longitude != nil {
		lng := *s.Longitude
		out.Longitude = &lng
	}
	return &out
}

// Rejected records an inbound payload that could not be decoded.
type Rejected struct {
	Topic   string    `json:"topic"`
	Payload string    `json:"payload"`
	Reason  string    `json:"reason"`
	At      time.Time `json:"at"`
}
