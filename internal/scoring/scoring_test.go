package scoring_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/neexbeast/starwatch/internal/forecast"
	"github.com/neexbeast/starwatch/internal/scoring"
)

func slot(sky string, feelsLike forecast.Value, wind string) forecast.Slot {
	return forecast.Slot{
		Period:       forecast.PeriodNight,
		Sky:          forecast.Sky(sky),
		FeelsLikeMin: feelsLike,
		WindScale:    wind,
	}
}

func TestScore_VetoDominates(t *testing.T) {
	for _, sky := range []string{"多雲時陰", "陰", "短暫陣雨", "晴午後短暫雷陣雨"} {
		for _, fl := range []forecast.Value{forecast.Known(22), forecast.Known(-5), {}} {
			for _, wind := range []string{"1", "≥6", ""} {
				r := scoring.Score(slot(sky, fl, wind))
				assert.Equal(t, 1, r.Stars, "%s/%v/%s", sky, fl, wind)
				assert.Equal(t, scoring.NotRecommended, r.Advisory)
			}
		}
	}
}

func TestScore_ClearComfortableCalm(t *testing.T) {
	r := scoring.Score(slot("晴", forecast.Known(22), "3"))

	assert.Equal(t, 5, r.Stars)
	assert.True(t, strings.HasPrefix(r.Advisory, scoring.ClearOpener))
	assert.Contains(t, r.Advisory, scoring.NoteComfortable)
	assert.NotContains(t, r.Advisory, scoring.NoteWindy)
}

func TestScore_OvercastComfortable(t *testing.T) {
	r := scoring.Score(slot("陰天", forecast.Known(22), "3"))

	assert.Equal(t, 1, r.Stars)
	assert.Equal(t, scoring.NotRecommended, r.Advisory)
}

func TestScore_Table(t *testing.T) {
	tests := []struct {
		name  string
		sky   string
		fl    forecast.Value
		wind  string
		stars int
		note  string
	}{
		{"clear cold", "晴", forecast.Known(8), "2", 3, scoring.NoteCold},
		{"clear exactly 15", "晴", forecast.Known(15), "2", 3, scoring.NoteCool},
		{"clear cool", "晴時多雲", forecast.Known(17), "2", 4, scoring.NoteCool},
		{"clear 25", "多雲時晴", forecast.Known(25), "2", 5, scoring.NoteComfortable},
		{"clear warm", "晴", forecast.Known(28), "2", 4, scoring.NoteWarm},
		{"clear windy", "晴", forecast.Known(22), "≥6", 4, scoring.NoteWindy},
		{"clear cold windy", "晴", forecast.Known(5), "7", 2, scoring.NoteWindy},
		{"cloudy cold windy clamps", "多雲", forecast.Known(5), "5", 1, scoring.NoteWindy},
		{"cloudy comfortable", "多雲", forecast.Known(21), "1", 4, scoring.NoteComfortable},
		{"clear unknown temp", "晴", forecast.Value{}, "2", 3, scoring.NoteNoTemp},
		{"cloudy unknown temp", "多雲", forecast.Value{}, "", 2, scoring.NoteNoTemp},
		{"wind range takes last group", "晴", forecast.Known(22), "4-5", 4, scoring.NoteWindy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := scoring.Score(slot(tt.sky, tt.fl, tt.wind))
			assert.Equal(t, tt.stars, r.Stars)
			assert.Contains(t, r.Advisory, tt.note)
		})
	}
}

func TestScore_UnknownTemperatureNeverAddsStars(t *testing.T) {
	r := scoring.Score(slot("晴", forecast.Value{}, "0"))
	assert.Equal(t, 3, r.Stars)
}

func TestScore_UnclassifiedSky(t *testing.T) {
	for _, sky := range []string{"", "有霧", "Unknown"} {
		r := scoring.Score(slot(sky, forecast.Known(22), "1"))
		assert.Equal(t, 1, r.Stars)
		assert.Equal(t, scoring.NotRecommended, r.Advisory)
	}
}

func TestScore_AlwaysInRange(t *testing.T) {
	skies := []string{"晴", "多雲", "陰", "雨", "", "晴時多雲"}
	winds := []string{"", "0", "5", "≥6", "12"}
	for _, sky := range skies {
		for temp := -20.0; temp <= 45; temp += 0.5 {
			for _, wind := range winds {
				r := scoring.Score(slot(sky, forecast.Known(temp), wind))
				assert.GreaterOrEqual(t, r.Stars, scoring.MinStars)
				assert.LessOrEqual(t, r.Stars, scoring.MaxStars)
			}
		}
	}
}

func TestGlyphs(t *testing.T) {
	assert.Equal(t, "⭐⭐⭐", scoring.Glyphs(3))
	assert.Equal(t, "", scoring.Glyphs(0))
	assert.Equal(t, "", scoring.Glyphs(-2))
}

func hourly(now time.Time, offsets map[int]string) []forecast.HourlyPoint {
	var pts []forecast.HourlyPoint
	for h := 0; h < 30; h++ {
		if sky, ok := offsets[h]; ok {
			pts = append(pts, forecast.HourlyPoint{At: now.Add(time.Duration(h) * time.Hour), Sky: forecast.Sky(sky)})
		}
	}
	return pts
}

func TestAssessNight(t *testing.T) {
	// 17:00 local; offsets are hours after now.
	now := time.Date(2025, 3, 4, 17, 0, 0, 0, forecast.Taipei)

	tests := []struct {
		name    string
		points  map[int]string
		verdict scoring.Verdict
		window  string
	}{
		{"no points", nil, scoring.VerdictNoData, ""},
		{"only daytime", map[int]string{15: "晴", 16: "晴"}, scoring.VerdictNoData, ""},
		{"clear across midnight", map[int]string{6: "晴", 7: "晴", 8: "晴"}, scoring.VerdictClear, "23:00-02:00"},
		{"one rain hour vetoes", map[int]string{1: "晴", 2: "晴", 5: "短暫雨"}, scoring.VerdictBad, ""},
		{"clear beats cloudy", map[int]string{1: "多雲", 2: "晴時多雲", 5: "晴"}, scoring.VerdictClear, "19:00-20:00、22:00-23:00"},
		{"cloudy only", map[int]string{3: "多雲", 4: "多雲"}, scoring.VerdictPartlyCloudy, "20:00-22:00"},
		{"unclassified counts as bad", map[int]string{2: "有霧"}, scoring.VerdictBad, ""},
		{"beyond 24h ignored", map[int]string{25: "陰"}, scoring.VerdictNoData, ""},
		{"now itself excluded", map[int]string{0: "雨", 1: "晴"}, scoring.VerdictClear, "18:00-19:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scoring.AssessNight(hourly(now, tt.points), now)
			assert.Equal(t, tt.verdict, got.Verdict)
			assert.Equal(t, tt.window, got.Window)
		})
	}
}

func TestInNightWindow_IncludesFiveOClock(t *testing.T) {
	now := time.Date(2025, 3, 4, 17, 0, 0, 0, forecast.Taipei)
	assert.True(t, scoring.InNightWindow(time.Date(2025, 3, 5, 5, 0, 0, 0, forecast.Taipei), now))
	assert.False(t, scoring.InNightWindow(time.Date(2025, 3, 5, 6, 0, 0, 0, forecast.Taipei), now))
	assert.True(t, scoring.InNightWindow(time.Date(2025, 3, 4, 18, 0, 0, 0, forecast.Taipei), now))
}
