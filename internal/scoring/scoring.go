// Package scoring turns normalized forecast slots into stargazing ratings.
package scoring

import (
	"strings"
	"time"

	"github.com/neexbeast/starwatch/internal/forecast"
)

const (
	MinStars = 1
	MaxStars = 5

	// WindPenaltyLevel is the Beaufort level from which a star is deducted.
	WindPenaltyLevel = 5
)

// Advisory fragments.
const (
	NotRecommended = "今晚不適合觀星。"
	ClearOpener    = "今晚高機率看到星星哦！"
	CloudyOpener   = "今晚雲量較多，很想看星星的話可碰碰運氣。"

	NoteCold        = "另今晚天氣寒冷，外出觀星建議多穿保暖衣物！"
	NoteCool        = "另今晚天氣稍涼，外出觀星建議穿件薄外套！"
	NoteComfortable = "另今晚天氣舒適，絕佳觀星日！"
	NoteWarm        = "另今晚是適合觀星的溫熱夜晚！"
	NoteNoTemp      = "\n(溫度資料暫缺，請注意氣溫變化)"
	NoteWindy       = "\n(風勢偏強，請注意保暖並固定好觀星器材)"
)

// Rating is the derived suitability of one slot.
type Rating struct {
	Stars    int
	Advisory string
}

// Score rates a slot. Bad weather vetoes everything else; otherwise a clear
// or partly cloudy sky sets the base, the feels-like minimum adds comfort
// stars and a note, and strong wind costs a star.
func Score(s forecast.Slot) Rating {
	var (
		stars int
		msg   strings.Builder
	)

	switch {
	case s.Sky.IsBad():
		return Rating{Stars: MinStars, Advisory: NotRecommended}
	case s.Sky.IsClear():
		stars = 3
		msg.WriteString(ClearOpener)
	case s.Sky.IsPartlyCloudy():
		stars = 2
		msg.WriteString(CloudyOpener)
	default:
		return Rating{Stars: MinStars, Advisory: NotRecommended}
	}

	if fl := s.FeelsLikeMin; fl.Valid {
		stars += temperatureBonus(fl.Num)
		msg.WriteString(temperatureNote(fl.Num))
	} else {
		msg.WriteString(NoteNoTemp)
	}

	if lvl, ok := s.WindLevel(); ok && lvl >= WindPenaltyLevel {
		stars--
		msg.WriteString(NoteWindy)
	}

	return Rating{Stars: clamp(stars), Advisory: msg.String()}
}

func temperatureBonus(fl float64) int {
	bonus := 0
	if fl > 15 {
		bonus++
	}
	if fl >= 20 && fl <= 25 {
		bonus++
	}
	return bonus
}

func temperatureNote(fl float64) string {
	switch {
	case fl < 15:
		return NoteCold
	case fl < 20:
		return NoteCool
	case fl <= 25:
		return NoteComfortable
	default:
		return NoteWarm
	}
}

func clamp(stars int) int {
	if stars < MinStars {
		return MinStars
	}
	if stars > MaxStars {
		return MaxStars
	}
	return stars
}

// Glyphs renders a star count as repeated ⭐.
func Glyphs(stars int) string {
	if stars < 0 {
		stars = 0
	}
	return strings.Repeat("⭐", stars)
}

// Verdict is the coarse outcome of the short-range night check.
type Verdict int

const (
	VerdictNoData Verdict = iota
	VerdictBad
	VerdictClear
	VerdictPartlyCloudy
)

func (v Verdict) String() string {
	switch v {
	case VerdictBad:
		return "bad"
	case VerdictClear:
		return "clear"
	case VerdictPartlyCloudy:
		return "partly_cloudy"
	default:
		return "no_data"
	}
}

// NightOutlook is the result of AssessNight. Window is set only for the
// clear and partly cloudy verdicts.
type NightOutlook struct {
	Verdict Verdict
	Window  string
}

// NightWindow is how far ahead of now the night check looks.
const NightWindow = 24 * time.Hour

// InNightWindow reports whether t is a night hour (18:00 through 05:xx local)
// strictly after now and no more than NightWindow ahead.
func InNightWindow(t, now time.Time) bool {
	if !t.After(now) || t.Sub(now) > NightWindow {
		return false
	}
	h := t.In(forecast.Taipei).Hour()
	return h >= 18 || h <= 5
}

// AssessNight judges the coming night from hourly points. Any bad-weather
// hour vetoes the night. Otherwise clear hours take priority over partly
// cloudy ones, and the reported window merges the winning set. Points that
// are neither still count as a bad night.
func AssessNight(points []forecast.HourlyPoint, now time.Time) NightOutlook {
	var clear, cloudy []string
	seen := 0
	for _, p := range points {
		if !InNightWindow(p.At, now) {
			continue
		}
		seen++
		switch {
		case p.Sky.IsBad():
			return NightOutlook{Verdict: VerdictBad}
		case p.Sky.IsClear():
			clear = append(clear, p.Clock())
		case p.Sky.IsPartlyCloudy():
			cloudy = append(cloudy, p.Clock())
		}
	}

	switch {
	case len(clear) > 0:
		return NightOutlook{Verdict: VerdictClear, Window: forecast.MergeToRanges(clear)}
	case len(cloudy) > 0:
		return NightOutlook{Verdict: VerdictPartlyCloudy, Window: forecast.MergeToRanges(cloudy)}
	case seen == 0:
		return NightOutlook{Verdict: VerdictNoData}
	default:
		return NightOutlook{Verdict: VerdictBad}
	}
}
