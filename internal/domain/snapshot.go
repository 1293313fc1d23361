package domain

import "time"

// Snapshot is the durable row written by the persistence job.
type Snapshot struct {
	OwnerID          string    `json:"owner_id" dynamodbav:"patient_id"`
	SampleSeq        uint64    `json:"sample_seq" dynamodbav:"sample_seq"`
	JointAngleDeg    float64   `json:"angle" dynamodbav:"angle"`
	ForceNewtons     int       `json:"force" dynamodbav:"force"`
	SkinTempC        float64   `json:"skin_temp" dynamodbav:"skin_temp"`
	BatteryPct       int       `json:"battery" dynamodbav:"battery"`
	RiskScore        int       `json:"risk_score" dynamodbav:"risk_score"`
	RiskTier         string    `json:"risk_tier" dynamodbav:"risk_tier"`
	Latitude         *float64  `json:"lat" dynamodbav:"lat,omitempty"`
	Longitude        *float64  `json:"lng" dynamodbav:"lng,omitempty"`
	WeatherTempC     *float64  `json:"weather_temp" dynamodbav:"weather_temp,omitempty"`
	WeatherCondition string    `json:"weather_condition,omitempty" dynamodbav:"weather_condition,omitempty"`
	ReceivedAt       time.Time `json:"received_at" dynamodbav:"received_at"`
	RecordedAt       time.Time `json:"recorded_at" dynamodbav:"recorded_at"`
}

// NewSnapshot derives a snapshot from the latest sample and the enrichment
// available at fire time. enr may be nil.
func NewSnapshot(ownerID string, s *Sample, tier RiskTier, enr *Enrichment, now time.Time) *Snapshot {
	c := s.Clone()
	snap := &Snapshot{
		OwnerID:       ownerID,
		SampleSeq:     c.Seq,
		JointAngleDeg: c.JointAngleDeg,
		ForceNewtons:  c.ForceNewtons,
		SkinTempC:     c.SkinTempC,
		BatteryPct:    c.BatteryPct,
		RiskScore:     c.RiskScore,
		RiskTier:      tier.String(),
		Latitude:      c.Latitude,
		Longitude:     c.Longitude,
		ReceivedAt:    c.ReceivedAt,
		RecordedAt:    now,
	}
	if enr != nil {
		temp := enr.AmbientTempC
		snap.WeatherTempC = &temp
		snap.WeatherCondition = enr.Condition
	}
	return snap
}

// DashboardView is a point-in-time copy of the dashboard projection.
type DashboardView struct {
	Sample     *Sample     `json:"sample"`
	Liveness   Liveness    `json:"liveness"`
	Enrichment *Enrichment `json:"enrichment"`
	Risk       *RiskTier   `json:"risk,omitempty"`
}
