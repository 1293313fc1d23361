package sink

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/kneurasense/kneuraflow/internal/domain"
	"github.com/kneurasense/kneuraflow/internal/ports"
)

// PostgresSink writes snapshots into a Postgres (or TimescaleDB) table keyed
// by (patient_id, received_at).
type PostgresSink struct {
	db    *sql.DB
	query string
}

// OpenPostgresSink connects with a lib/pq connection string and verifies the
// connection.
func OpenPostgresSink(ctx context.Context, connString, table string) (*PostgresSink, error) {
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	p, err := NewPostgresSink(db, table)
	if err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

func NewPostgresSink(db *sql.DB, table string) (*PostgresSink, error) {
	if err := validTable(table); err != nil {
		return nil, err
	}
	q := insertStatement("INSERT", table, func(i int) string { return fmt.Sprintf("$%d", i) },
		"ON CONFLICT (patient_id, received_at) DO NOTHING")
	return &PostgresSink{db: db, query: q}, nil
}

func (p *PostgresSink) Name() string { return "postgres" }

func (p *PostgresSink) WriteSnapshot(ctx context.Context, snap *domain.Snapshot) error {
	if snap == nil {
		return nil
	}
	_, err := p.db.ExecContext(ctx, p.query, snapshotArgs(snap)...)
	return err
}

func (p *PostgresSink) Close() error {
	return p.db.Close()
}

var _ ports.Sink = (*PostgresSink)(nil)
