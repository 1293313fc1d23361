package kneuraflow

import (
	"github.com/kneurasense/kneuraflow/internal/domain"
	"github.com/kneurasense/kneuraflow/internal/ports"
)

// Sample is one decoded wearable reading.
type Sample = domain.Sample

// Snapshot is the row handed to a Sink by the persistence job.
type Snapshot = domain.Snapshot

// Rejected describes a payload that failed to decode.
type Rejected = domain.Rejected

// DashboardView is a point-in-time copy of the dashboard projection.
type DashboardView = domain.DashboardView

// Enrichment is the cached weather record shown next to the sample.
type Enrichment = domain.Enrichment

// Thresholds are the risk tier boundaries.
type Thresholds = domain.Thresholds

type (
	// Coordinates is a GPS fix in decimal degrees.
	Coordinates = domain.Coordinates
	// Conditions is what a WeatherProvider returns for a position.
	Conditions = domain.Conditions
)

type (
	Liveness = domain.Liveness
	RiskTier = domain.RiskTier
)

const (
	Offline  = domain.Offline
	Online   = domain.Online
	Safe     = domain.Safe
	Moderate = domain.Moderate
	Critical = domain.Critical
)

// Collector streams samples from any transport into the pipeline.
type Collector = ports.Collector

// Sink persists snapshots to any downstream system.
type Sink = ports.Sink

// WeatherProvider resolves ambient conditions for a position.
type WeatherProvider = ports.WeatherProvider

// Observability emits metrics and logs about the pipeline.
type Observability = ports.Observability

// Field is a structured log field used by Observability implementations.
type Field = ports.Field

// DefaultThresholds returns the stock risk tier boundaries.
func DefaultThresholds() Thresholds {
	return domain.DefaultThresholds()
}
