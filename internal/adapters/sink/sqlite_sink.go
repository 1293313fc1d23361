package sink

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kneurasense/kneuraflow/internal/domain"
	"github.com/kneurasense/kneuraflow/internal/ports"
)

// SQLiteSink keeps snapshots in a local SQLite file, creating the table on open.
type SQLiteSink struct {
	db    *sql.DB
	query string
}

// OpenSQLiteSink opens the database at path.
func OpenSQLiteSink(path, table string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	s, err := NewSQLiteSink(db, table)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteSink wraps an open handle and runs the migration.
func NewSQLiteSink(db *sql.DB, table string) (*SQLiteSink, error) {
	if err := validTable(table); err != nil {
		return nil, err
	}
	s := &SQLiteSink{
		db:    db,
		query: insertStatement("INSERT OR IGNORE", table, func(int) string { return "?" }, ""),
	}
	if err := s.migrate(table); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *SQLiteSink) migrate(table string) error {
	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %[1]s (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		patient_id TEXT NOT NULL,
		sample_seq INTEGER NOT NULL,
		angle REAL NOT NULL,
		force INTEGER NOT NULL,
		skin_temp REAL NOT NULL,
		battery INTEGER NOT NULL,
		risk_score INTEGER NOT NULL,
		risk_tier TEXT NOT NULL,
		lat REAL,
		lng REAL,
		weather_temp REAL,
		weather_condition TEXT,
		received_at TIMESTAMP NOT NULL,
		recorded_at TIMESTAMP NOT NULL,
		UNIQUE(patient_id, received_at)
	);

	CREATE INDEX IF NOT EXISTS idx_%[2]s_patient_recorded ON %[1]s(patient_id, recorded_at);
	`, table, indexSuffix(table))

	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

func indexSuffix(table string) string {
	out := []byte(table)
	for i, c := range out {
		if c == '.' {
			out[i] = '_'
		}
	}
	return string(out)
}

func (s *SQLiteSink) Name() string { return "sqlite" }

func (s *SQLiteSink) WriteSnapshot(ctx context.Context, snap *domain.Snapshot) error {
	if snap == nil {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, s.query, snapshotArgs(snap)...); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

var _ ports.Sink = (*SQLiteSink)(nil)
