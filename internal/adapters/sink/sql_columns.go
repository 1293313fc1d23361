package sink

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kneurasense/kneuraflow/internal/domain"
)

var snapshotColumns = []string{
	"patient_id", "sample_seq", "angle", "force", "skin_temp", "battery",
	"risk_score", "risk_tier", "lat", "lng", "weather_temp", "weather_condition",
	"received_at", "recorded_at",
}

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

func validTable(name string) error {
	if !tableNamePattern.MatchString(name) {
		return fmt.Errorf("invalid table name %q", name)
	}
	return nil
}

// snapshotArgs returns values in snapshotColumns order. Nil pointers become NULL.
func snapshotArgs(s *domain.Snapshot) []any {
	return []any{
		s.OwnerID,
		s.SampleSeq,
		s.JointAngleDeg,
		s.ForceNewtons,
		s.SkinTempC,
		s.BatteryPct,
		s.RiskScore,
		s.RiskTier,
		s.Latitude,
		s.Longitude,
		s.WeatherTempC,
		s.WeatherCondition,
		s.ReceivedAt,
		s.RecordedAt,
	}
}

func insertStatement(verb, table string, placeholder func(i int) string, suffix string) string {
	var b strings.Builder
	b.WriteString(verb)
	b.WriteString(" INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	b.WriteString(strings.Join(snapshotColumns, ", "))
	b.WriteString(") VALUES (")
	for i := range snapshotColumns {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(placeholder(i + 1))
	}
	b.WriteString(")")
	if suffix != "" {
		b.WriteString(" ")
		b.WriteString(suffix)
	}
	return b.String()
}
