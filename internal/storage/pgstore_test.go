package storage_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neexbeast/starwatch/internal/storage"
)

// ---- mock Querier ----

type mockQuerier struct {
	beginFn func(ctx context.Context) (pgx.Tx, error)
	queryFn func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	execFn  func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	pingErr error
}

func (m *mockQuerier) Begin(ctx context.Context) (pgx.Tx, error) { return m.beginFn(ctx) }
func (m *mockQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return m.queryFn(ctx, sql, args...)
}
func (m *mockQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return m.execFn(ctx, sql, args...)
}
func (m *mockQuerier) Ping(_ context.Context) error { return m.pingErr }

// ---- mock pgx.Rows ----

type fakeRows struct {
	rows    [][]string
	idx     int
	rowErr  error
	scanErr error
}

func (f *fakeRows) Next() bool                                   { f.idx++; return f.idx <= len(f.rows) }
func (f *fakeRows) Err() error                                   { return f.rowErr }
func (f *fakeRows) Close()                                       {}
func (f *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (f *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (f *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (f *fakeRows) RawValues() [][]byte                          { return nil }
func (f *fakeRows) Conn() *pgx.Conn                              { return nil }

func (f *fakeRows) Scan(dest ...any) error {
	if f.scanErr != nil {
		return f.scanErr
	}
	row := f.rows[f.idx-1]
	for i, d := range dest {
		if i >= len(row) {
			break
		}
		*d.(*string) = row[i]
	}
	return nil
}

// ---- mock MigrationPool ----

type mockMigrationPool struct {
	beginFn func(ctx context.Context) (pgx.Tx, error)
}

func (m *mockMigrationPool) Begin(ctx context.Context) (pgx.Tx, error) {
	return m.beginFn(ctx)
}

// mockTx is a minimal pgx.Tx implementation.
type mockTx struct {
	execFn     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	copyFn     func(ctx context.Context, table pgx.Identifier, cols []string, src pgx.CopyFromSource) (int64, error)
	commitFn   func(ctx context.Context) error
	rollbackFn func(ctx context.Context) error
	committed  bool
}

func (t *mockTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.execFn(ctx, sql, args...)
}
func (t *mockTx) Commit(ctx context.Context) error {
	if t.commitFn != nil {
		if err := t.commitFn(ctx); err != nil {
			return err
		}
	}
	t.committed = true
	return nil
}
func (t *mockTx) Rollback(ctx context.Context) error {
	if t.rollbackFn != nil {
		return t.rollbackFn(ctx)
	}
	return nil
}
func (t *mockTx) CopyFrom(ctx context.Context, table pgx.Identifier, cols []string, src pgx.CopyFromSource) (int64, error) {
	return t.copyFn(ctx, table, cols, src)
}

// pgx.Tx has many more methods; stub them out.
func (t *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { return nil, nil }

func (t *mockTx) SendBatch(_ context.Context, _ *pgx.Batch) pgx.BatchResults { return nil }
func (t *mockTx) LargeObjects() pgx.LargeObjects                             { return pgx.LargeObjects{} }
func (t *mockTx) Prepare(_ context.Context, _, _ string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (t *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *mockTx) Conn() *pgx.Conn { return nil }

func okExec(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func sampleRow(location, date, period, sky string) storage.Row {
	return storage.Row{
		Location: location, PID: "F017", Date: date, Period: period, Sky: sky,
		TempMin: "8", TempMax: "14", FeelsLikeMin: "6", FeelsLikeMax: "12",
		PrecipProb: "10%", WindScale: "2", UVIndex: "-",
	}
}

func rowStrings(r storage.Row) []string {
	return []string{r.Location, r.PID, r.Date, r.Period, r.Sky, r.TempMin, r.TempMax,
		r.FeelsLikeMin, r.FeelsLikeMax, r.PrecipProb, r.WindScale, r.UVIndex}
}

// ---- WriteLatest ----

func TestPGWriteLatest_DeletesThenCopiesInOrder(t *testing.T) {
	var execs []string
	var copied [][]any
	tx := &mockTx{
		execFn: func(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
			execs = append(execs, sql)
			return pgconn.CommandTag{}, nil
		},
		copyFn: func(_ context.Context, table pgx.Identifier, cols []string, src pgx.CopyFromSource) (int64, error) {
			assert.Equal(t, pgx.Identifier{"forecast_latest"}, table)
			assert.Equal(t, storage.Columns, cols)
			for src.Next() {
				vals, err := src.Values()
				require.NoError(t, err)
				copied = append(copied, vals)
			}
			return int64(len(copied)), nil
		},
	}
	q := &mockQuerier{beginFn: func(_ context.Context) (pgx.Tx, error) { return tx, nil }}

	rows := []storage.Row{
		sampleRow("鹿林天文台", "01/01", "night", "晴"),
		sampleRow("鹿林天文台", "01/02", "night", "多雲"),
	}
	err := storage.NewPGStoreWithQuerier(q).WriteLatest(context.Background(), rows)
	require.NoError(t, err)

	require.Len(t, execs, 1)
	assert.Contains(t, execs[0], "DELETE FROM forecast_latest")
	require.Len(t, copied, 2)
	assert.Equal(t, "01/01", copied[0][2])
	assert.Equal(t, "多雲", copied[1][4])
	assert.True(t, tx.committed)
}

func TestPGWriteLatest_CopyErrorRollsBack(t *testing.T) {
	rolledBack := false
	tx := &mockTx{
		execFn: okExec,
		copyFn: func(_ context.Context, _ pgx.Identifier, _ []string, _ pgx.CopyFromSource) (int64, error) {
			return 0, fmt.Errorf("copy failed")
		},
		rollbackFn: func(_ context.Context) error { rolledBack = true; return nil },
	}
	q := &mockQuerier{beginFn: func(_ context.Context) (pgx.Tx, error) { return tx, nil }}

	err := storage.NewPGStoreWithQuerier(q).WriteLatest(context.Background(), []storage.Row{sampleRow("a", "01/01", "night", "晴")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "copying latest rows")
	assert.True(t, rolledBack)
	assert.False(t, tx.committed)
}

func TestPGWriteLatest_MissingTable(t *testing.T) {
	tx := &mockTx{
		execFn: func(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
			return pgconn.CommandTag{}, &pgconn.PgError{Code: "42P01", Message: "relation does not exist"}
		},
	}
	q := &mockQuerier{beginFn: func(_ context.Context) (pgx.Tx, error) { return tx, nil }}

	err := storage.NewPGStoreWithQuerier(q).WriteLatest(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, storage.ErrTableMissing))
}

// ---- AppendHistory ----

func TestPGAppendHistory_UpsertsEachRow(t *testing.T) {
	var args [][]any
	tx := &mockTx{
		execFn: func(_ context.Context, sql string, a ...any) (pgconn.CommandTag, error) {
			assert.Contains(t, sql, "ON CONFLICT (location, date, period) DO UPDATE")
			args = append(args, a)
			return pgconn.CommandTag{}, nil
		},
	}
	q := &mockQuerier{beginFn: func(_ context.Context) (pgx.Tx, error) { return tx, nil }}

	rows := []storage.Row{
		sampleRow("鹿林天文台", "01/01", "night", "晴"),
		sampleRow("鹿林天文台", "01/01", "day", "陰"),
	}
	require.NoError(t, storage.NewPGStoreWithQuerier(q).AppendHistory(context.Background(), rows))

	require.Len(t, args, 2)
	require.Len(t, args[0], len(storage.Columns))
	assert.Equal(t, "鹿林天文台", args[0][0])
	assert.Equal(t, "day", args[1][3])
	assert.True(t, tx.committed)
}

func TestPGAppendHistory_ExecError(t *testing.T) {
	tx := &mockTx{
		execFn: func(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
			return pgconn.CommandTag{}, fmt.Errorf("db error")
		},
	}
	q := &mockQuerier{beginFn: func(_ context.Context) (pgx.Tx, error) { return tx, nil }}

	err := storage.NewPGStoreWithQuerier(q).AppendHistory(context.Background(), []storage.Row{sampleRow("a", "01/01", "night", "晴")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upserting history row")
	assert.False(t, tx.committed)
}

func TestPGAppendHistory_BeginError(t *testing.T) {
	q := &mockQuerier{beginFn: func(_ context.Context) (pgx.Tx, error) { return nil, fmt.Errorf("pool closed") }}

	err := storage.NewPGStoreWithQuerier(q).AppendHistory(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "beginning history append")
}

// ---- Read / Dates / History ----

func TestPGRead_FiltersInSQL(t *testing.T) {
	want := sampleRow("鹿林天文台", "01/01", "night", "晴")
	q := &mockQuerier{
		queryFn: func(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
			assert.Contains(t, sql, "strpos(location, $1) > 0")
			assert.Contains(t, sql, "ORDER BY id")
			assert.Equal(t, []any{"鹿林", "night"}, args)
			return &fakeRows{rows: [][]string{rowStrings(want)}}, nil
		},
	}

	got, err := storage.NewPGStoreWithQuerier(q).Read(context.Background(), "鹿林", "night")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, want, got[0])
}

func TestPGRead_Errors(t *testing.T) {
	tests := []struct {
		name string
		fn   func(context.Context, string, ...any) (pgx.Rows, error)
		want string
	}{
		{"query", func(context.Context, string, ...any) (pgx.Rows, error) { return nil, fmt.Errorf("boom") }, "reading latest rows"},
		{"scan", func(context.Context, string, ...any) (pgx.Rows, error) {
			return &fakeRows{rows: [][]string{{"x"}}, scanErr: fmt.Errorf("bad")}, nil
		}, "scanning"},
		{"rows", func(context.Context, string, ...any) (pgx.Rows, error) {
			return &fakeRows{rowErr: fmt.Errorf("broken pipe")}, nil
		}, "iterating"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := storage.NewPGStoreWithQuerier(&mockQuerier{queryFn: tt.fn}).Read(context.Background(), "x", "night")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestPGDates(t *testing.T) {
	q := &mockQuerier{
		queryFn: func(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
			return &fakeRows{rows: [][]string{{"01/01"}, {"01/02"}}}, nil
		},
	}

	dates, err := storage.NewPGStoreWithQuerier(q).Dates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"01/01", "01/02"}, dates)
}

func TestPGDates_MissingTable(t *testing.T) {
	q := &mockQuerier{
		queryFn: func(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
			return nil, &pgconn.PgError{Code: "42P01"}
		},
	}

	_, err := storage.NewPGStoreWithQuerier(q).Dates(context.Background())
	assert.True(t, errors.Is(err, storage.ErrTableMissing))
}

func TestPGHistory(t *testing.T) {
	q := &mockQuerier{
		queryFn: func(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
			assert.Contains(t, sql, "FROM forecast_history")
			assert.Equal(t, []any{"F017"}, args)
			return &fakeRows{}, nil
		},
	}

	rows, err := storage.NewPGStoreWithQuerier(q).History(context.Background(), "F017")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestPGPing(t *testing.T) {
	assert.NoError(t, storage.NewPGStoreWithQuerier(&mockQuerier{}).Ping(context.Background()))
	assert.Error(t, storage.NewPGStoreWithQuerier(&mockQuerier{pingErr: fmt.Errorf("down")}).Ping(context.Background()))
}

func TestNewPGStore_NotNil(t *testing.T) {
	assert.NotNil(t, storage.NewPGStore(nil))
}

// ---- RunMigrations ----

func writeSQLFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func okPool(order *[]string) *mockMigrationPool {
	tx := &mockTx{
		execFn: func(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
			if order != nil {
				*order = append(*order, sql)
			}
			return pgconn.CommandTag{}, nil
		},
	}
	return &mockMigrationPool{beginFn: func(_ context.Context) (pgx.Tx, error) { return tx, nil }}
}

func TestRunMigrations_MissingDir(t *testing.T) {
	fsys, err := storage.Migrations("/nonexistent/dir")
	require.NoError(t, err)
	require.Error(t, storage.RunMigrations(context.Background(), nil, fsys))
}

func TestRunMigrations_EmptyDir(t *testing.T) {
	fsys, err := storage.Migrations(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, storage.RunMigrations(context.Background(), nil, fsys))
}

func TestRunMigrations_Embedded(t *testing.T) {
	fsys, err := storage.Migrations("")
	require.NoError(t, err)

	var order []string
	require.NoError(t, storage.RunMigrations(context.Background(), okPool(&order), fsys))
	require.NotEmpty(t, order)
	assert.True(t, strings.Contains(order[0], "forecast_latest"))
	assert.True(t, strings.Contains(order[0], "UNIQUE (location, date, period)"))
}

func TestRunMigrations_SortsFilesLexicographically(t *testing.T) {
	dir := t.TempDir()
	writeSQLFile(t, dir, "003_c.sql", "SELECT 3;")
	writeSQLFile(t, dir, "001_a.sql", "SELECT 1;")
	writeSQLFile(t, dir, "002_b.sql", "SELECT 2;")
	writeSQLFile(t, dir, "notes.txt", "ignored")

	fsys, err := storage.Migrations(dir)
	require.NoError(t, err)

	var order []string
	require.NoError(t, storage.RunMigrations(context.Background(), okPool(&order), fsys))
	assert.Equal(t, []string{"SELECT 1;", "SELECT 2;", "SELECT 3;"}, order)
}

func TestRunMigrations_Failures(t *testing.T) {
	fsys := fstest.MapFS{"001_test.sql": &fstest.MapFile{Data: []byte("SELECT 1;")}}

	tests := []struct {
		name string
		pool *mockMigrationPool
	}{
		{"begin", &mockMigrationPool{beginFn: func(_ context.Context) (pgx.Tx, error) { return nil, fmt.Errorf("cannot begin") }}},
		{"exec", &mockMigrationPool{beginFn: func(_ context.Context) (pgx.Tx, error) {
			return &mockTx{execFn: func(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
				return pgconn.CommandTag{}, fmt.Errorf("syntax error")
			}}, nil
		}}},
		{"commit", &mockMigrationPool{beginFn: func(_ context.Context) (pgx.Tx, error) {
			return &mockTx{execFn: okExec, commitFn: func(_ context.Context) error { return fmt.Errorf("commit failed") }}, nil
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := storage.RunMigrations(context.Background(), tt.pool, fsys)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "executing migration 001_test.sql")
		})
	}
}

// ---- Connect ----

func TestConnect_BadURL(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := storage.Connect(ctx, "postgres://invalid-host-xyz:5432/db?sslmode=disable")
	require.Error(t, err)
}

func TestConnect_UnparsableURL(t *testing.T) {
	_, err := storage.Connect(context.Background(), "://nope")
	require.Error(t, err)
}
