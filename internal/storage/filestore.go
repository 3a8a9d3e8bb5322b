package storage

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// File names inside the data directory.
const (
	LatestFile  = "all_taiwan_star_forecast.csv"
	HistoryFile = "history_repository.csv"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// FileStore keeps the latest and history tables as UTF-8 CSV files (with a
// byte-order mark, for spreadsheet tools). Writes go through a temp file and
// a rename, and the mutex orders them before any later read.
type FileStore struct {
	dir string
	log *slog.Logger

	mu sync.RWMutex
}

// NewFileStore constructs a FileStore rooted at dir.
func NewFileStore(dir string, log *slog.Logger) *FileStore {
	if log == nil {
		log = slog.Default()
	}
	return &FileStore{dir: dir, log: log}
}

func (s *FileStore) path(name string) string { return filepath.Join(s.dir, name) }

// WriteLatest replaces the latest table.
func (s *FileStore) WriteLatest(ctx context.Context, rows []Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeCSV(s.path(LatestFile), rows); err != nil {
		return fmt.Errorf("writing latest table: %w", err)
	}
	return nil
}

// AppendHistory merges rows into the history table. A history file that
// cannot be parsed is replaced by the incoming rows.
func (s *FileStore) AppendHistory(ctx context.Context, rows []Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := readCSV(s.path(HistoryFile))
	switch {
	case err == nil:
	case errors.Is(err, ErrTableMissing):
	case errors.Is(err, ErrTableCorrupt):
		s.log.Warn("history table unreadable, starting over", "path", s.path(HistoryFile), "err", err)
		existing = nil
	default:
		return fmt.Errorf("reading history table: %w", err)
	}

	if err := writeCSV(s.path(HistoryFile), MergeHistory(existing, rows)); err != nil {
		return fmt.Errorf("writing history table: %w", err)
	}
	return nil
}

// Read returns latest-table rows matching a location fragment and period.
func (s *FileStore) Read(ctx context.Context, fragment, period string) ([]Row, error) {
	rows, err := s.latest(ctx)
	if err != nil {
		return nil, err
	}
	return FilterRows(rows, fragment, period), nil
}

// Dates lists the distinct dates in the latest table.
func (s *FileStore) Dates(ctx context.Context) ([]string, error) {
	rows, err := s.latest(ctx)
	if err != nil {
		return nil, err
	}
	return DistinctDates(rows), nil
}

// History returns the history rows for one location id, in table order.
func (s *FileStore) History(ctx context.Context, pid string) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := readCSV(s.path(HistoryFile))
	if err != nil {
		return nil, fmt.Errorf("reading history table: %w", err)
	}
	var out []Row
	for _, r := range rows {
		if r.PID == pid {
			out = append(out, r)
		}
	}
	return out, nil
}

// Ping checks that the data directory exists.
func (s *FileStore) Ping(_ context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("checking data dir %s: %w", s.dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("data dir %s is not a directory", s.dir)
	}
	return nil
}

func (s *FileStore) latest(ctx context.Context) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := readCSV(s.path(LatestFile))
	if err != nil {
		return nil, fmt.Errorf("reading latest table: %w", err)
	}
	return rows, nil
}

func readCSV(path string) ([]Row, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, ErrTableMissing)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	records, err := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(raw, utf8BOM))).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", path, ErrTableCorrupt, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: %w: no header", path, ErrTableCorrupt)
	}

	index := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		index[name] = i
	}
	for _, required := range []string{"location", "date", "period"} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("%s: %w: missing column %s", path, ErrTableCorrupt, required)
		}
	}

	rows := make([]Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		var r Row
		dst := r.fields()
		for col, name := range Columns {
			v := ""
			if i, ok := index[name]; ok && i < len(rec) {
				v = rec[i]
			}
			*dst[col].(*string) = orUnknown(v)
		}
		rows = append(rows, r)
	}
	return rows, nil
}

func writeCSV(path string, rows []Row) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(utf8BOM); err != nil {
		return fmt.Errorf("writing %s: %w", tmp.Name(), err)
	}
	w := csv.NewWriter(tmp)
	if err = w.Write(Columns); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, r := range rows {
		if err = w.Write(r.values()); err != nil {
			return fmt.Errorf("writing row %s: %w", r.Key(), err)
		}
	}
	w.Flush()
	if err = w.Error(); err != nil {
		return fmt.Errorf("flushing %s: %w", tmp.Name(), err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmp.Name(), err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming into %s: %w", path, err)
	}
	return nil
}
