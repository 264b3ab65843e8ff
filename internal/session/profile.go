package session

import "github.com/xaenox/insight-bot/internal/models"

// Profile holds the report templates of one session.
type Profile struct {
	Session models.Session
	// ReportTitle prefixes the headline of the generated report.
	ReportTitle string
	// Focus tells the topic resolver which market events matter.
	Focus string
	// Structure is the section layout of the report body.
	Structure string
	// ImageContext anchors the scene of the image prompt.
	ImageContext string
}

const insightRequirement = `「深度觀點」段落要求（約 80-120 字，不可只是新聞摘要，涵蓋 2-3 點）：
  - 資金流向：資金從哪裡流出、流向哪裡。
  - 產業鏈連動：對上下游的連鎖影響。
  - 預期修正：市場原本的預期與事件後的改變。
  風格像避險基金經理人的內部備忘錄，專業、犀利。`

var profiles = map[models.Session]Profile{
	models.SessionMorning: {
		Session:     models.SessionMorning,
		ReportTitle: "🇺🇸 全球財經早報",
		Focus: `搜尋重點（早報：美股與全球政策）：
1. 剛收盤的美股三大指數（S&P 500、Nasdaq、Dow）表現。
2. 聯準會官員談話、利率決策、非農或 CPI 數據、美國對科技與晶片的最新政策。
3. NVIDIA、Apple、Microsoft、Tesla、AMD 等科技巨頭的盤中表現與新聞。
現在是台灣早上，要報導的是剛結束的美國交易時段。`,
		Structure: `你是一位華爾街資深分析師，請針對美股收盤與全球政策撰寫早報。
寫作架構：
1. 標題：[🇺🇸 全球財經早報] + 具吸引力的核心主題。
2. 美股收盤：S&P 500、Nasdaq 漲跌幅（精確到小數點後兩位）。
3. 總經/政策：說明波動原因（殖利率、通膨、地緣政治）。
4. 巨頭動態：點評 1-2 檔關鍵美股。
5. 深度觀點：` + insightRequirement + `
6. 今日展望：對稍後開盤的亞洲與台股的具體影響。`,
		ImageContext: "Wall Street, US Policy, Global Finance",
	},
	models.SessionEvening: {
		Session:     models.SessionEvening,
		ReportTitle: "🇹🇼 台灣/亞洲科技晚報",
		Focus: `搜尋重點（晚報：台股與亞洲科技）：
1. 今日加權指數、櫃買指數收盤與外資動向。
2. 台灣科技供應鏈：半導體（台積電、CoWoS、先進封裝）、AI 伺服器（廣達、緯創、鴻海）、IC 設計（聯發科、瑞昱）。
3. 日經或韓股若有大幅漲跌，一併提及連動。
現在是台灣下午，要報導的是剛結束的亞洲與台灣交易時段。`,
		Structure: `你是一位專精台灣半導體與科技供應鏈的產業分析師，請針對台股盤後與科技產業撰寫晚報。
寫作架構：
1. 標題：[🇹🇼 台灣/亞洲科技晚報] + 具吸引力的核心主題。
2. 台股數據：加權指數漲跌點數與成交量。
3. 產業焦點：今日強勢族群分析。
4. 關鍵個股：2-3 檔指標股的表現與原因。
5. 深度觀點：` + insightRequirement + `
6. 籌碼/展望：外資態度與明日觀察重點。`,
		ImageContext: "Taiwan Tech, Semiconductors, Futuristic Factory",
	},
}

// ProfileFor returns the templates of s. Unknown sessions get the evening profile.
func ProfileFor(s models.Session) Profile {
	if p, ok := profiles[s]; ok {
		return p
	}
	return profiles[models.SessionEvening]
}
