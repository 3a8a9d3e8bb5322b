package forecast

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ExpandHourly spreads a slot over one point per whole hour in [Start, End),
// each carrying the slot's sky. A slot without a usable End yields a single
// point at Start.
func ExpandHourly(s Slot) []HourlyPoint {
	if s.Start.IsZero() {
		return nil
	}
	if !s.End.After(s.Start) {
		return []HourlyPoint{{At: s.Start, Sky: s.Sky}}
	}

	points := make([]HourlyPoint, 0, int(s.End.Sub(s.Start)/time.Hour)+1)
	for t := s.Start; t.Before(s.End); t = t.Add(time.Hour) {
		points = append(points, HourlyPoint{At: t, Sky: s.Sky})
	}
	return points
}

// MergeToRanges renders a set of "HH:MM" clock times as contiguous hourly
// ranges, e.g. "21:00-23:00、01:00-02:00". When any hour is 18 or later the
// early-morning hours 00-05 are treated as belonging to the same night.
// Duplicates and unparsable entries are ignored.
func MergeToRanges(clocks []string) string {
	seen := make(map[int]bool, len(clocks))
	hours := make([]int, 0, len(clocks))
	evening := false
	for _, c := range clocks {
		h, ok := clockHour(c)
		if !ok || seen[h] {
			continue
		}
		seen[h] = true
		hours = append(hours, h)
		if h >= 18 {
			evening = true
		}
	}
	if len(hours) == 0 {
		return ""
	}

	if evening {
		for i, h := range hours {
			if h <= 5 {
				hours[i] = h + 24
			}
		}
	}
	sort.Ints(hours)

	var ranges []string
	start, prev := hours[0], hours[0]
	flush := func() {
		ranges = append(ranges, fmt.Sprintf("%02d:00-%02d:00", start%24, (prev+1)%24))
	}
	for _, h := range hours[1:] {
		if h == prev+1 {
			prev = h
			continue
		}
		flush()
		start, prev = h, h
	}
	flush()

	return strings.Join(ranges, "、")
}

func clockHour(clock string) (int, bool) {
	head, _, _ := strings.Cut(strings.TrimSpace(clock), ":")
	h, err := strconv.Atoi(head)
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	return h, true
}
