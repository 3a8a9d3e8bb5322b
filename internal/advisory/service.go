// Package advisory is the boundary the messaging layer calls into. Every
// public method returns user-facing text (or a plain error for refreshes) and
// never lets a panic escape.
package advisory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/neexbeast/starwatch/internal/cache"
	"github.com/neexbeast/starwatch/internal/forecast"
	"github.com/neexbeast/starwatch/internal/location"
	"github.com/neexbeast/starwatch/internal/scoring"
	"github.com/neexbeast/starwatch/internal/storage"
)

// ErrNoCatalogLocations means a weekly payload matched none of the catalog ids.
var ErrNoCatalogLocations = errors.New("payload contains no catalog locations")

// Fetcher downloads a forecast dataset.
type Fetcher interface {
	Fetch(ctx context.Context, dataset string) (forecast.Payload, error)
}

// Table is the tabular store.
type Table interface {
	WriteLatest(ctx context.Context, rows []storage.Row) error
	AppendHistory(ctx context.Context, rows []storage.Row) error
	Read(ctx context.Context, fragment, period string) ([]storage.Row, error)
	Dates(ctx context.Context) ([]string, error)
}

// Cache holds rendered advisories.
type Cache interface {
	Get(ctx context.Context, kind, name string) (*cache.Entry, error)
	Set(ctx context.Context, kind, name string, e *cache.Entry) error
	Purge(ctx context.Context, kind string) error
}

// Service answers weekly and tonight questions for catalog locations.
type Service struct {
	fetcher Fetcher
	table   Table
	cache   Cache
	catalog *location.Catalog
	log     *slog.Logger
	now     func() time.Time

	refreshes singleflight.Group
}

// Option customises a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService constructs a Service. A nil cache disables caching.
func NewService(f Fetcher, t Table, c Cache, catalog *location.Catalog, log *slog.Logger, opts ...Option) *Service {
	if c == nil {
		c = cache.NopCache{}
	}
	if log == nil {
		log = slog.Default()
	}
	s := &Service{
		fetcher: f,
		table:   t,
		cache:   c,
		catalog: catalog,
		log:     log,
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Catalog exposes the location catalog for selection UIs.
func (s *Service) Catalog() *location.Catalog { return s.catalog }

func (s *Service) recoverText(op string, text *string) {
	if r := recover(); r != nil {
		s.log.Error("advisory panicked", "op", op, "panic", r, "stack", string(debug.Stack()))
		*text = MsgInternalError
	}
}

// WeeklyAdvisory renders up to seven upcoming nights for the first catalog
// location whose name contains name. The store is refreshed first when it
// lacks today's date; a failed refresh still serves whatever the store holds.
func (s *Service) WeeklyAdvisory(ctx context.Context, name string) (text string) {
	defer s.recoverText("weekly", &text)

	name = strings.TrimSpace(name)
	if name == "" {
		return msgNotFound(name)
	}
	if cached, ok := s.cached(ctx, cache.KindWeekly, name); ok {
		return cached
	}

	if s.stale(ctx) {
		if err := s.RefreshWeeklyData(ctx); err != nil {
			s.log.Warn("weekly refresh before read failed", "err", err)
		}
	}

	rows, err := s.table.Read(ctx, name, forecast.PeriodNight)
	if err != nil {
		s.log.Warn("reading weekly table failed", "location", name, "err", err)
		return MsgStoreUnavailable
	}
	if len(rows) == 0 {
		return msgNotFound(name)
	}
	if len(rows) > WeeklyNights {
		rows = rows[:WeeklyNights]
	}

	text = renderWeekly(name, rows)
	s.remember(ctx, cache.KindWeekly, name, text)
	return text
}

// stale reports whether the latest table lacks today's local date, or cannot
// be read at all.
func (s *Service) stale(ctx context.Context) bool {
	dates, err := s.table.Dates(ctx)
	if err != nil {
		s.log.Info("weekly table needs refresh", "reason", err)
		return true
	}
	today := s.now().In(forecast.Taipei).Format("01/02")
	if !slices.Contains(dates, today) {
		s.log.Info("weekly table is stale", "today", today, "dates", len(dates))
		return true
	}
	return false
}

// ImpromptuAdvisory checks the coming night at one location using the
// short-range dataset. name is used for display only; an empty name falls
// back to the catalog name.
func (s *Service) ImpromptuAdvisory(ctx context.Context, id, name string) (text string) {
	defer s.recoverText("tonight", &text)

	id = strings.TrimSpace(id)
	if strings.TrimSpace(name) == "" {
		name = s.catalog.ResolveName(id)
	}
	if cached, ok := s.cached(ctx, cache.KindTonight, id); ok {
		return cached
	}

	payload, err := s.fetcher.Fetch(ctx, forecast.DatasetShortRange)
	if err != nil {
		s.log.Warn("short-range fetch failed", "location", id, "err", err)
		return MsgBusy
	}

	slots, err := forecast.Normalize(payload, id)
	if errors.Is(err, forecast.ErrLocationNotFound) {
		return msgNoData(name)
	}
	if err != nil {
		s.log.Error("normalizing short-range payload failed", "location", id, "err", err)
		return MsgInternalError
	}

	var points []forecast.HourlyPoint
	for _, slot := range slots {
		points = append(points, forecast.ExpandHourly(slot)...)
	}
	outlook := scoring.AssessNight(points, s.now())

	text = renderTonight(name, outlook)
	if outlook.Verdict != scoring.VerdictNoData {
		s.remember(ctx, cache.KindTonight, id, text)
	}
	return text
}

// RefreshWeeklyData fetches the weekly dataset and rewrites both tables.
// Concurrent callers share one refresh.
func (s *Service) RefreshWeeklyData(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("weekly refresh panicked", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("weekly refresh panicked: %v", r)
		}
	}()

	_, err, _ = s.refreshes.Do("weekly", func() (any, error) {
		return nil, s.refresh(ctx)
	})
	return err
}

func (s *Service) refresh(ctx context.Context) error {
	payload, err := s.fetcher.Fetch(ctx, forecast.DatasetWeekly)
	if err != nil {
		return fmt.Errorf("refreshing weekly data: %w", err)
	}

	var rows []storage.Row
	found := 0
	for _, loc := range s.catalog.All() {
		slots, err := forecast.Normalize(payload, loc.ID)
		if errors.Is(err, forecast.ErrLocationNotFound) {
			s.log.Debug("location absent from weekly payload", "location", loc.ID)
			continue
		}
		if err != nil {
			return fmt.Errorf("normalizing %s: %w", loc.ID, err)
		}
		found++
		for i := range slots {
			slots[i].LocationName = loc.Name
		}
		rows = append(rows, storage.RowsFromSlots(slots)...)
	}
	if found == 0 {
		return fmt.Errorf("refreshing weekly data: %w", ErrNoCatalogLocations)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.table.WriteLatest(gctx, rows) })
	g.Go(func() error { return s.table.AppendHistory(gctx, rows) })
	if err := g.Wait(); err != nil {
		return fmt.Errorf("writing weekly tables: %w", err)
	}

	if err := s.cache.Purge(ctx, cache.KindWeekly); err != nil {
		s.log.Warn("purging weekly advisories failed", "err", err)
	}

	s.log.Info("weekly data refreshed", "locations", found, "rows", len(rows))
	return nil
}

// Coverage splits the catalog into locations present in and missing from a
// dataset.
func (s *Service) Coverage(ctx context.Context, dataset string) (present, missing []location.Location, err error) {
	payload, err := s.fetcher.Fetch(ctx, dataset)
	if err != nil {
		return nil, nil, fmt.Errorf("checking coverage of %s: %w", dataset, err)
	}

	ids := forecast.LocationIDs(payload)
	for _, loc := range s.catalog.All() {
		if slices.Contains(ids, loc.ID) {
			present = append(present, loc)
		} else {
			missing = append(missing, loc)
		}
	}
	return present, missing, nil
}

func (s *Service) cached(ctx context.Context, kind, name string) (string, bool) {
	e, err := s.cache.Get(ctx, kind, name)
	if err != nil {
		s.log.Warn("advisory cache get failed", "kind", kind, "name", name, "err", err)
		return "", false
	}
	if e == nil {
		return "", false
	}
	return e.Text, true
}

func (s *Service) remember(ctx context.Context, kind, name, text string) {
	e := &cache.Entry{Location: name, Text: text, CreatedAt: s.now()}
	if err := s.cache.Set(ctx, kind, name, e); err != nil {
		s.log.Warn("advisory cache set failed", "kind", kind, "name", name, "err", err)
	}
}
