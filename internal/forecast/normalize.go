package forecast

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrLocationNotFound means the payload has no block for the requested id.
// A block that exists but carries no time entries yields zero slots instead.
var ErrLocationNotFound = errors.New("location not in payload")

type elementKind int

const (
	elemUnknown elementKind = iota
	elemWeather
	elemTemp
	elemMinTemp
	elemMaxTemp
	elemFeelsLike
	elemMinFeelsLike
	elemMaxFeelsLike
	elemPrecip
	elemWind
	elemUV
)

// elementAliases maps upstream element names (Chinese file-API names and the
// English/abbreviated names used by other CWA products) to element kinds.
// ASCII names are matched case-insensitively.
var elementAliases = map[string]elementKind{
	"天氣現象":                       elemWeather,
	"weather":                    elemWeather,
	"wx":                         elemWeather,
	"溫度":                         elemTemp,
	"temperature":                elemTemp,
	"t":                          elemTemp,
	"最低溫度":                       elemMinTemp,
	"mintemperature":             elemMinTemp,
	"mint":                       elemMinTemp,
	"最高溫度":                       elemMaxTemp,
	"maxtemperature":             elemMaxTemp,
	"maxt":                       elemMaxTemp,
	"體感溫度":                       elemFeelsLike,
	"apparenttemperature":        elemFeelsLike,
	"at":                         elemFeelsLike,
	"最低體感溫度":                     elemMinFeelsLike,
	"minapparenttemperature":     elemMinFeelsLike,
	"minat":                      elemMinFeelsLike,
	"最高體感溫度":                     elemMaxFeelsLike,
	"maxapparenttemperature":     elemMaxFeelsLike,
	"maxat":                      elemMaxFeelsLike,
	"12小時降雨機率":                   elemPrecip,
	"6小時降雨機率":                    elemPrecip,
	"3小時降雨機率":                    elemPrecip,
	"降雨機率":                       elemPrecip,
	"probabilityofprecipitation": elemPrecip,
	"pop12h":                     elemPrecip,
	"pop6h":                      elemPrecip,
	"pop3h":                      elemPrecip,
	"蒲福風級":                       elemWind,
	"風速":                         elemWind,
	"beaufortscale":              elemWind,
	"紫外線指數":                      elemUV,
	"uvindex":                    elemUV,
	"uvi":                        elemUV,
}

// valueKeys lists, per element kind, the ElementValue keys to try in order.
var valueKeys = map[elementKind][]string{
	elemWeather:      {"Weather", "Wx", "Value"},
	elemTemp:         {"Temperature", "Value"},
	elemMinTemp:      {"MinTemperature", "Temperature", "Value"},
	elemMaxTemp:      {"MaxTemperature", "Temperature", "Value"},
	elemFeelsLike:    {"ApparentTemperature", "Value"},
	elemMinFeelsLike: {"MinApparentTemperature", "ApparentTemperature", "Value"},
	elemMaxFeelsLike: {"MaxApparentTemperature", "ApparentTemperature", "Value"},
	elemPrecip:       {"ProbabilityOfPrecipitation", "Value"},
	elemWind:         {"BeaufortScale", "Value"},
	elemUV:           {"UVIndex", "Value"},
}

func classifyElement(name string) elementKind {
	name = strings.TrimSpace(name)
	if k, ok := elementAliases[name]; ok {
		return k
	}
	return elementAliases[strings.ToLower(name)]
}

// field looks key up in node, trying the exact casing, then the casing with
// the first letter flipped, then any case-insensitive match.
func field(node any, key string) (any, bool) {
	m, ok := node.(map[string]any)
	if !ok {
		return nil, false
	}
	if v, ok := m[key]; ok {
		return v, true
	}
	if alt := flipFirst(key); alt != key {
		if v, ok := m[alt]; ok {
			return v, true
		}
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

func flipFirst(s string) string {
	if s == "" {
		return s
	}
	first := s[:1]
	if lower := strings.ToLower(first); lower != first {
		return lower + s[1:]
	}
	return strings.ToUpper(first) + s[1:]
}

func get(node any, key string) any {
	v, _ := field(node, key)
	return v
}

// asList treats a single object as a one-element list.
func asList(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	default:
		return []any{t}
	}
}

// text renders a scalar leaf. Empty strings, null and "-" are unknown.
func text(v any) (string, bool) {
	var s string
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		s = t
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		s = t.String()
	case bool:
		s = strconv.FormatBool(t)
	default:
		return "", false
	}
	s = strings.TrimSpace(s)
	if s == "" || s == Unknown {
		return "", false
	}
	return s, true
}

func textOf(node any, key string) string {
	s, _ := text(get(node, key))
	return s
}

// locationBlocks walks cwaopendata > dataset > locations > location. The
// locations node may itself be a list of groups.
func locationBlocks(p Payload) []any {
	root := get(map[string]any(p), "cwaopendata")
	dataset := get(root, "Dataset")

	var blocks []any
	for _, group := range asList(get(dataset, "Locations")) {
		blocks = append(blocks, asList(get(group, "Location"))...)
	}
	return blocks
}

func blockID(block any) string {
	params := asList(get(get(block, "ParameterSet"), "Parameter"))
	for _, p := range params {
		if textOf(p, "ParameterName") == "id" {
			return textOf(p, "ParameterValue")
		}
	}
	return ""
}

// LocationIDs lists the location ids present in a payload, in payload order.
func LocationIDs(p Payload) []string {
	var ids []string
	for _, block := range locationBlocks(p) {
		if id := blockID(block); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func findLocation(p Payload, pid string) (any, bool) {
	for _, block := range locationBlocks(p) {
		if blockID(block) == pid {
			return block, true
		}
	}
	return nil, false
}

// Normalize extracts the slots for one location. Slots follow the weather
// phenomenon element's time axis; other elements are aligned by position and
// fall back to unknown where their lists run short.
func Normalize(p Payload, pid string) ([]Slot, error) {
	block, ok := findLocation(p, pid)
	if !ok {
		return nil, fmt.Errorf("normalizing %s: %w", pid, ErrLocationNotFound)
	}

	name := textOf(block, "LocationName")

	elements := make(map[elementKind][]any)
	for _, el := range asList(get(block, "WeatherElement")) {
		kind := classifyElement(textOf(el, "ElementName"))
		if kind == elemUnknown {
			continue
		}
		if _, seen := elements[kind]; seen {
			continue
		}
		elements[kind] = asList(get(el, "Time"))
	}

	axis := elements[elemWeather]
	slots := make([]Slot, 0, len(axis))
	for i, entry := range axis {
		start, end, ok := entryTimes(entry)
		if !ok {
			continue
		}

		slot := Slot{
			LocationID:   pid,
			LocationName: name,
			Start:        start,
			End:          end,
			Period:       periodLabel(start, end),
			Sky:          Sky(elementValue(entry, elemWeather)),
			TempMin:      ParseValue(valueAt(elements, i, elemMinTemp, elemTemp)),
			TempMax:      ParseValue(valueAt(elements, i, elemMaxTemp, elemTemp)),
			FeelsLikeMin: ParseValue(valueAt(elements, i, elemMinFeelsLike, elemFeelsLike)),
			FeelsLikeMax: ParseValue(valueAt(elements, i, elemMaxFeelsLike, elemFeelsLike)),
			PrecipProb:   ParseValue(valueAt(elements, i, elemPrecip)),
			WindScale:    valueAt(elements, i, elemWind),
			UVIndex:      valueAt(elements, i, elemUV),
		}
		slots = append(slots, slot)
	}

	return slots, nil
}

// valueAt returns the value of the first listed element kind that has an
// entry at index i, or "" when none does.
func valueAt(elements map[elementKind][]any, i int, kinds ...elementKind) string {
	for _, kind := range kinds {
		list := elements[kind]
		if i >= len(list) {
			continue
		}
		if v := elementValue(list[i], kind); v != "" {
			return v
		}
	}
	return ""
}

func elementValue(entry any, kind elementKind) string {
	ev := get(entry, "ElementValue")
	if list := asList(ev); len(list) > 0 {
		ev = list[0]
	}

	if _, isMap := ev.(map[string]any); !isMap {
		s, _ := text(ev)
		if kind == elemUV {
			return FormatUVIndex(s)
		}
		return s
	}

	if kind == elemUV {
		idx := textOf(ev, "UVIndex")
		level := textOf(ev, "UVExposureLevel")
		if idx != "" && level != "" {
			return FormatUVIndex(idx + level)
		}
		if idx != "" {
			return idx
		}
	}

	for _, key := range valueKeys[kind] {
		if s := textOf(ev, key); s != "" {
			if kind == elemUV {
				return FormatUVIndex(s)
			}
			return s
		}
	}

	// Unfamiliar layout: take the first value by key order.
	m := ev.(map[string]any)
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if s, ok := text(m[k]); ok {
			if kind == elemUV {
				return FormatUVIndex(s)
			}
			return s
		}
	}
	return ""
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

func parseTime(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, Taipei); err == nil {
			return t.In(Taipei), true
		}
	}
	return time.Time{}, false
}

// entryTimes reads StartTime/EndTime, or DataTime for point forecasts.
func entryTimes(entry any) (time.Time, time.Time, bool) {
	raw := textOf(entry, "StartTime")
	if raw == "" {
		raw = textOf(entry, "DataTime")
	}
	start, ok := parseTime(raw)
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	end, _ := parseTime(textOf(entry, "EndTime"))
	return start, end, true
}

// periodLabel names long buckets day/night and short buckets by clock hour.
func periodLabel(start, end time.Time) string {
	local := start.In(Taipei)
	if !end.IsZero() && end.Sub(start) > 6*time.Hour {
		if h := local.Hour(); h >= 18 || h < 6 {
			return PeriodNight
		}
		return PeriodDay
	}
	return local.Format("15:04")
}

var uvPattern = regexp.MustCompile(`^(\d+)(.*)$`)

// FormatUVIndex turns "2低量級" into "低量級(指數2)". Values without a leading
// digit run pass through unchanged.
func FormatUVIndex(raw string) string {
	m := uvPattern.FindStringSubmatch(raw)
	if m == nil {
		return raw
	}
	return m[2] + "(指數" + m[1] + ")"
}
