package storage

import (
	"errors"
	"sort"
	"strings"

	"github.com/neexbeast/starwatch/internal/forecast"
)

var (
	// ErrTableMissing means the table has never been written.
	ErrTableMissing = errors.New("forecast table missing")
	// ErrTableCorrupt means the table exists but cannot be parsed.
	ErrTableCorrupt = errors.New("forecast table corrupt")
)

// Columns is the persisted column order.
var Columns = []string{
	"location",
	"pid",
	"date",
	"period",
	"sky_condition",
	"temp_min",
	"temp_max",
	"feels_like_min",
	"feels_like_max",
	"precipitation_probability",
	"wind_scale",
	"uv_index",
}

// Row is one persisted forecast slot. Every column is text; absent values
// are stored as forecast.Unknown.
type Row struct {
	Location     string `json:"location"`
	PID          string `json:"pid"`
	Date         string `json:"date"`
	Period       string `json:"period"`
	Sky          string `json:"sky_condition"`
	TempMin      string `json:"temp_min"`
	TempMax      string `json:"temp_max"`
	FeelsLikeMin string `json:"feels_like_min"`
	FeelsLikeMax string `json:"feels_like_max"`
	PrecipProb   string `json:"precipitation_probability"`
	WindScale    string `json:"wind_scale"`
	UVIndex      string `json:"uv_index"`
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return forecast.Unknown
	}
	return s
}

// RowsFromSlots flattens weekly slots into rows. The location column holds
// the display name so that name-fragment reads work against it.
func RowsFromSlots(slots []forecast.Slot) []Row {
	rows := make([]Row, 0, len(slots))
	for _, s := range slots {
		rows = append(rows, Row{
			Location:     orUnknown(s.LocationName),
			PID:          s.LocationID,
			Date:         s.Date(),
			Period:       s.Period,
			Sky:          orUnknown(string(s.Sky)),
			TempMin:      s.TempMin.String(),
			TempMax:      s.TempMax.String(),
			FeelsLikeMin: s.FeelsLikeMin.String(),
			FeelsLikeMax: s.FeelsLikeMax.String(),
			PrecipProb:   s.PrecipProb.Percent(),
			WindScale:    orUnknown(s.WindScale),
			UVIndex:      orUnknown(s.UVIndex),
		})
	}
	return rows
}

// Slot rebuilds the scoring-relevant view of a stored row. Start and End are
// not persisted and stay zero.
func (r Row) Slot() forecast.Slot {
	unknownToEmpty := func(s string) string {
		if s == forecast.Unknown {
			return ""
		}
		return s
	}
	return forecast.Slot{
		LocationID:   r.PID,
		LocationName: r.Location,
		Period:       r.Period,
		Sky:          forecast.Sky(unknownToEmpty(r.Sky)),
		TempMin:      forecast.ParseValue(r.TempMin),
		TempMax:      forecast.ParseValue(r.TempMax),
		FeelsLikeMin: forecast.ParseValue(r.FeelsLikeMin),
		FeelsLikeMax: forecast.ParseValue(r.FeelsLikeMax),
		PrecipProb:   forecast.ParseValue(r.PrecipProb),
		WindScale:    unknownToEmpty(r.WindScale),
		UVIndex:      unknownToEmpty(r.UVIndex),
	}
}

// Key is the history identity (location, date, period).
func (r Row) Key() string {
	return r.Location + "\x00" + r.Date + "\x00" + r.Period
}

func (r Row) values() []string {
	return []string{
		r.Location, r.PID, r.Date, r.Period, r.Sky,
		r.TempMin, r.TempMax, r.FeelsLikeMin, r.FeelsLikeMax,
		r.PrecipProb, r.WindScale, r.UVIndex,
	}
}

// fields returns pointers in Columns order, for scanning.
func (r *Row) fields() []any {
	return []any{
		&r.Location, &r.PID, &r.Date, &r.Period, &r.Sky,
		&r.TempMin, &r.TempMax, &r.FeelsLikeMin, &r.FeelsLikeMax,
		&r.PrecipProb, &r.WindScale, &r.UVIndex,
	}
}

// MergeHistory de-duplicates existing+incoming on Key with the last
// occurrence winning, then sorts by pid, date and period.
func MergeHistory(existing, incoming []Row) []Row {
	merged := make([]Row, 0, len(existing)+len(incoming))
	index := make(map[string]int, len(existing)+len(incoming))
	for _, batch := range [][]Row{existing, incoming} {
		for _, r := range batch {
			if i, ok := index[r.Key()]; ok {
				merged[i] = r
				continue
			}
			index[r.Key()] = len(merged)
			merged = append(merged, r)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		if a.PID != b.PID {
			return a.PID < b.PID
		}
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		return a.Period < b.Period
	})
	return merged
}

// FilterRows keeps rows whose location contains fragment (case-sensitive)
// and whose period matches exactly, preserving order.
func FilterRows(rows []Row, fragment, period string) []Row {
	var out []Row
	for _, r := range rows {
		if strings.Contains(r.Location, fragment) && r.Period == period {
			out = append(out, r)
		}
	}
	return out
}

// DistinctDates lists the date column values in first-seen order.
func DistinctDates(rows []Row) []string {
	seen := make(map[string]bool)
	var dates []string
	for _, r := range rows {
		if !seen[r.Date] {
			seen[r.Date] = true
			dates = append(dates, r.Date)
		}
	}
	return dates
}
