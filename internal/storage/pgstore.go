package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier abstracts the subset of pgxpool.Pool used by PGStore.
// This allows injection of a mock in tests.
type Querier interface {
	MigrationPool
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
}

// PGStore keeps the latest and history tables in PostgreSQL.
type PGStore struct {
	q Querier
}

// NewPGStore constructs a PGStore backed by the given pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{q: pool}
}

// NewPGStoreWithQuerier constructs a PGStore with a custom Querier (for tests).
func NewPGStoreWithQuerier(q Querier) *PGStore {
	return &PGStore{q: q}
}

var columnList = strings.Join(Columns, ", ")

// undefinedTable is the SQLSTATE for a missing relation.
const undefinedTable = "42P01"

func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == undefinedTable {
		return fmt.Errorf("%w: %v", ErrTableMissing, err)
	}
	return err
}

// WriteLatest replaces the contents of forecast_latest in one transaction.
// Rows are copied in slice order so that id order matches it.
func (s *PGStore) WriteLatest(ctx context.Context, rows []Row) error {
	tx, err := s.q.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning latest write: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM forecast_latest`); err != nil {
		return fmt.Errorf("clearing latest table: %w", classify(err))
	}

	values := make([][]any, len(rows))
	for i, r := range rows {
		vals := r.values()
		values[i] = make([]any, len(vals))
		for j, v := range vals {
			values[i][j] = v
		}
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"forecast_latest"}, Columns, pgx.CopyFromRows(values)); err != nil {
		return fmt.Errorf("copying latest rows: %w", classify(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing latest write: %w", err)
	}
	return nil
}

// AppendHistory upserts rows into forecast_history keyed on
// (location, date, period); the incoming row wins on conflict.
func (s *PGStore) AppendHistory(ctx context.Context, rows []Row) error {
	const q = `
		INSERT INTO forecast_history (location, pid, date, period, sky_condition, temp_min, temp_max,
			feels_like_min, feels_like_max, precipitation_probability, wind_scale, uv_index)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (location, date, period) DO UPDATE
		SET pid                       = EXCLUDED.pid,
		    sky_condition             = EXCLUDED.sky_condition,
		    temp_min                  = EXCLUDED.temp_min,
		    temp_max                  = EXCLUDED.temp_max,
		    feels_like_min            = EXCLUDED.feels_like_min,
		    feels_like_max            = EXCLUDED.feels_like_max,
		    precipitation_probability = EXCLUDED.precipitation_probability,
		    wind_scale                = EXCLUDED.wind_scale,
		    uv_index                  = EXCLUDED.uv_index,
		    updated_at                = NOW()
	`

	tx, err := s.q.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning history append: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, r := range rows {
		vals := r.values()
		args := make([]any, len(vals))
		for i, v := range vals {
			args[i] = v
		}
		if _, err := tx.Exec(ctx, q, args...); err != nil {
			return fmt.Errorf("upserting history row %s/%s/%s: %w", r.PID, r.Date, r.Period, classify(err))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing history append: %w", err)
	}
	return nil
}

// Read returns latest rows whose location contains fragment (case-sensitive)
// and whose period matches, in insertion order.
func (s *PGStore) Read(ctx context.Context, fragment, period string) ([]Row, error) {
	q := `SELECT ` + columnList + `
		FROM forecast_latest
		WHERE strpos(location, $1) > 0
		AND period = $2
		ORDER BY id`

	return s.queryRows(ctx, "reading latest rows", q, fragment, period)
}

// History returns the history rows for one location id sorted by date and
// period.
func (s *PGStore) History(ctx context.Context, pid string) ([]Row, error) {
	q := `SELECT ` + columnList + `
		FROM forecast_history
		WHERE pid = $1
		ORDER BY pid, date, period`

	return s.queryRows(ctx, "reading history rows", q, pid)
}

// Dates lists the distinct dates in forecast_latest.
func (s *PGStore) Dates(ctx context.Context) ([]string, error) {
	const q = `SELECT date FROM forecast_latest GROUP BY date ORDER BY MIN(id)`

	rows, err := s.q.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("querying latest dates: %w", classify(err))
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scanning date: %w", err)
		}
		dates = append(dates, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating dates: %w", classify(err))
	}
	return dates, nil
}

// Ping checks database connectivity.
func (s *PGStore) Ping(ctx context.Context) error {
	return s.q.Ping(ctx)
}

func (s *PGStore) queryRows(ctx context.Context, op, q string, args ...any) ([]Row, error) {
	rows, err := s.q.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classify(err))
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(r.fields()...); err != nil {
			return nil, fmt.Errorf("scanning forecast row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating forecast rows: %w", classify(err))
	}
	return out, nil
}
