package forecast

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Dataset codes on the CWA file API.
const (
	DatasetWeekly     = "F-B0053-069" // one-week outlook, 12-hour buckets
	DatasetShortRange = "F-B0053-071" // three-day outlook, 3-hour buckets
)

// Period labels for weekly slots. Short-range slots use the clock hour ("21:00").
const (
	PeriodDay   = "day"
	PeriodNight = "night"
)

// Unknown is how an absent value is rendered.
const Unknown = "-"

// Taipei is the fixed local zone of every forecast site.
var Taipei = time.FixedZone("CST", 8*60*60)

// Payload is a decoded file-API response. Its shape is not trusted; only
// Normalize reads it.
type Payload map[string]any

// Value is an optional number. The zero value is unknown.
type Value struct {
	Num   float64
	Valid bool
}

// Known wraps a number as a valid Value.
func Known(n float64) Value { return Value{Num: n, Valid: true} }

// ParseValue reads a number out of upstream or stored text. Empty strings,
// "-" and anything unparsable are unknown. A trailing "%" and stray dots
// ("18..") are tolerated.
func ParseValue(s string) Value {
	s = strings.TrimSpace(s)
	if s == "" || s == Unknown {
		return Value{}
	}
	s = strings.TrimSuffix(s, "%")
	s = strings.TrimRight(s, ".")
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Value{}
	}
	return Known(n)
}

func (v Value) String() string {
	if !v.Valid {
		return Unknown
	}
	return strconv.FormatFloat(v.Num, 'f', -1, 64)
}

// Percent renders the value with a % suffix, or Unknown.
func (v Value) Percent() string {
	if !v.Valid {
		return Unknown
	}
	return v.String() + "%"
}

// Sky is the upstream weather-phenomenon text. The vocabulary is open, so it
// is classified by substring.
type Sky string

// IsBad reports overcast (陰) or rain (雨) anywhere in the text.
func (s Sky) IsBad() bool {
	return strings.Contains(string(s), "陰") || strings.Contains(string(s), "雨")
}

// IsClear reports any clear-sky signal (晴, including 晴時多雲 and 多雲時晴).
func (s Sky) IsClear() bool {
	return strings.Contains(string(s), "晴")
}

// IsPartlyCloudy reports 多雲 without any clear-sky signal.
func (s Sky) IsPartlyCloudy() bool {
	return strings.Contains(string(s), "多雲") && !s.IsClear()
}

// Slot is one location's weather for one time window.
type Slot struct {
	LocationID   string
	LocationName string
	Start        time.Time
	End          time.Time
	Period       string
	Sky          Sky
	TempMin      Value
	TempMax      Value
	FeelsLikeMin Value
	FeelsLikeMax Value
	PrecipProb   Value
	WindScale    string
	UVIndex      string
}

var digitRun = regexp.MustCompile(`\d+`)

// WindLevel parses the Beaufort scale. Threshold notation such as "≥6" or
// "4-5" resolves to the last digit group.
func (s Slot) WindLevel() (int, bool) {
	runs := digitRun.FindAllString(s.WindScale, -1)
	if len(runs) == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(runs[len(runs)-1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// Date is the slot's local calendar day as MM/DD.
func (s Slot) Date() string {
	return s.Start.In(Taipei).Format("01/02")
}

// HourlyPoint is one synthetic hour produced by ExpandHourly.
type HourlyPoint struct {
	At  time.Time
	Sky Sky
}

// Clock renders the point's local time as HH:MM.
func (p HourlyPoint) Clock() string {
	return p.At.In(Taipei).Format("15:04")
}
