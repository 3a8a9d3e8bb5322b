package advisory

import (
	"fmt"
	"strings"

	"github.com/neexbeast/starwatch/internal/scoring"
	"github.com/neexbeast/starwatch/internal/storage"
)

// User-facing messages.
const (
	MsgBusy             = "⚠️ 氣象署連線忙碌中，請稍後再試。"
	MsgStoreUnavailable = "⚠️ 資料庫暫時無法讀取，請稍後再試。"
	MsgInternalError    = "❌ 讀取資料失敗，請稍後再試。"
)

// WeeklyNights caps the number of nights in a weekly digest.
const WeeklyNights = 7

func msgNotFound(name string) string { return "找不到「" + name + "」的資料。" }

func msgNoData(name string) string { return "❌ 無資料: " + name }

func renderWeekly(name string, rows []storage.Row) string {
	blocks := make([]string, 0, len(rows))
	for _, r := range rows {
		rating := scoring.Score(r.Slot())
		blocks = append(blocks, strings.Join([]string{
			fmt.Sprintf("📅 %s (晚上)", r.Date),
			"天氣: " + r.Sky,
			fmt.Sprintf("氣溫: %s~%s°C", r.TempMin, r.TempMax),
			fmt.Sprintf("體感: %s~%s°C", r.FeelsLikeMin, r.FeelsLikeMax),
			"觀星推薦指數: " + scoring.Glyphs(rating.Stars),
			"📝綜合評估: " + rating.Advisory,
		}, "\n"))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🌌 【%s】未來一週觀星指南\n", name)
	b.WriteString("----------------------\n")
	b.WriteString(strings.Join(blocks, "\n\n"))
	b.WriteString("\n\n----------------\n🔔 溫馨提醒：當日可再確認晴朗的晚間時段哦！")
	return b.String()
}

func renderTonight(name string, o scoring.NightOutlook) string {
	switch o.Verdict {
	case scoring.VerdictClear:
		return fmt.Sprintf("🔭 【%s】觀星建議：😊 \n太棒了！今晚最適合觀星的時段為：%s", name, o.Window)
	case scoring.VerdictPartlyCloudy:
		return fmt.Sprintf("🔭 【%s】觀星建議：😐 \n今晚雲量較多，可碰運氣的時段為：%s", name, o.Window)
	case scoring.VerdictBad:
		return fmt.Sprintf("🔭 【%s】觀星建議：😭 \n今晚天氣不佳，不建議前往觀星，請好好睡覺。", name)
	default:
		return fmt.Sprintf("🔭 【%s】\n目前中央氣象署資料更新中，請稍晚再試。", name)
	}
}
