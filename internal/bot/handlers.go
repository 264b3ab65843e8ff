package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/xaenox/insight-bot/internal/autopost"
	"github.com/xaenox/insight-bot/internal/dispatch"
	"github.com/xaenox/insight-bot/internal/generator"
	"github.com/xaenox/insight-bot/internal/models"
)

const (
	historyPageSize = 5
	maxSourcesShown = 5
)

func (b *Bot) handleStart(message *tgbotapi.Message) {
	welcome := `歡迎使用 FinTech Insight 📈
我會用即時搜尋撰寫財經與科技市場貼文。

直接傳送主題（例如「台積電法說會」）即可生成貼文。
輸入 /trending 取得今日熱門話題，/help 查看所有指令。`

	b.sendMessage(message.Chat.ID, welcome)
}

func (b *Bot) handleHelp(message *tgbotapi.Message) {
	help := `可用指令：
/generate <主題> - 生成貼文（直接傳送文字也可以）
/trending - 今日熱門話題
/format <blog|linkedin|twitter|facebook|telegram> - 輸出格式
/tone <professional|bullish|bearish|educational> - 語氣
/style <editorial|cyberpunk|minimalist|isometric|abstract|photorealistic> - 配圖風格
/model <模型> - 選擇模型
/settings - 目前設定
/history - 最近的生成紀錄
/push - 將最新一篇推送到頻道
/autopost [morning|evening] - 立即執行自動早晚報`

	b.sendMessage(message.Chat.ID, help)
}

func (b *Bot) handleGenerate(ctx context.Context, message *tgbotapi.Message, topic string) {
	chatID := message.Chat.ID
	if topic == "" {
		b.sendMessage(chatID, "請提供主題，例如：/generate 台積電法說會")
		return
	}

	prefs := b.preferences(ctx, chatID)
	req := prefs.Request(topic)
	b.sendMessage(chatID, fmt.Sprintf("⏳ 正在撰寫「%s」(%s / %s)...", topic, req.TargetFormat.Label(), req.Model.Label()))

	result, err := b.deps.Generator.GeneratePost(ctx, b.deps.Settings, req, topic, nil)
	if err != nil {
		b.logger.Error("Failed to generate post",
			zap.Error(err),
			zap.Int64("chat_id", chatID),
			zap.String("topic", topic))
		b.sendErrorMessage(chatID, generationErrorText(err))
		return
	}

	item := &models.HistoryItem{ChatID: chatID, Topic: topic, Result: *result}
	if err := b.deps.Storage.SaveHistory(ctx, item); err != nil {
		b.logger.Error("Failed to save history",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}

	b.sendMessage(chatID, result.Content)
	if result.HasImagePrompt() {
		b.sendMessage(chatID, dispatch.FormatImagePrompt(req.VisualStyle, *result.ImagePrompt))
	}
	if len(result.Sources) > 0 {
		b.sendMessage(chatID, formatSources(result.Sources))
	}
	b.sendMessage(chatID, fmt.Sprintf("🕒 %s · 輸入 /push 推送到頻道", result.Timestamp))
}

func (b *Bot) handleTrending(ctx context.Context, message *tgbotapi.Message) {
	topics := b.deps.Generator.FetchTrendingTopics(ctx, b.deps.Settings, b.deps.Generator.DateLabel())

	var sb strings.Builder
	sb.WriteString("🔥 今日熱門話題：\n")
	for i, t := range topics {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, t))
	}
	sb.WriteString("\n傳送任一主題即可生成貼文。")
	b.sendMessage(message.Chat.ID, sb.String())
}

func (b *Bot) handleFormat(ctx context.Context, message *tgbotapi.Message, arg string) {
	chatID := message.Chat.ID
	prefs := b.preferences(ctx, chatID)
	if arg == "" {
		b.sendMessage(chatID, optionList("輸出格式", string(prefs.TargetFormat), models.TargetFormats, models.TargetFormat.Label))
		return
	}
	f, err := models.ParseTargetFormat(arg)
	if err != nil {
		b.sendErrorMessage(chatID, err.Error())
		return
	}
	prefs.TargetFormat = f
	if b.savePreferences(ctx, chatID, prefs) {
		b.sendMessage(chatID, "✅ 輸出格式："+f.Label())
	}
}

func (b *Bot) handleTone(ctx context.Context, message *tgbotapi.Message, arg string) {
	chatID := message.Chat.ID
	prefs := b.preferences(ctx, chatID)
	if arg == "" {
		b.sendMessage(chatID, optionList("語氣", string(prefs.Tone), models.Tones, models.Tone.Label))
		return
	}
	t, err := models.ParseTone(arg)
	if err != nil {
		b.sendErrorMessage(chatID, err.Error())
		return
	}
	prefs.Tone = t
	if b.savePreferences(ctx, chatID, prefs) {
		b.sendMessage(chatID, "✅ 語氣："+t.Label())
	}
}

func (b *Bot) handleStyle(ctx context.Context, message *tgbotapi.Message, arg string) {
	chatID := message.Chat.ID
	prefs := b.preferences(ctx, chatID)
	if arg == "" {
		b.sendMessage(chatID, optionList("配圖風格", string(prefs.VisualStyle), models.VisualStyles, models.VisualStyle.Label))
		return
	}
	s, err := models.ParseVisualStyle(arg)
	if err != nil {
		b.sendErrorMessage(chatID, err.Error())
		return
	}
	prefs.VisualStyle = s
	if b.savePreferences(ctx, chatID, prefs) {
		b.sendMessage(chatID, "✅ 配圖風格："+s.Label())
	}
}

func (b *Bot) handleModel(ctx context.Context, message *tgbotapi.Message, arg string) {
	chatID := message.Chat.ID
	prefs := b.preferences(ctx, chatID)
	if arg == "" {
		b.sendMessage(chatID, optionList("模型", string(prefs.Model), models.Models, models.ModelChoice.Label))
		return
	}
	m, ok := models.ParseModelChoice(arg)
	if !ok {
		b.sendErrorMessage(chatID, "請提供模型名稱。")
		return
	}
	prefs.Model = m
	if b.savePreferences(ctx, chatID, prefs) {
		b.sendMessage(chatID, fmt.Sprintf("✅ 模型：%s (%s)", m.Label(), m))
	}
}

func (b *Bot) handleSettings(ctx context.Context, message *tgbotapi.Message) {
	prefs := b.preferences(ctx, message.Chat.ID)

	response := "*目前設定：*\n"
	response += fmt.Sprintf("模型: %s\n", escapeMarkdown(prefs.Model.Label()))
	response += fmt.Sprintf("格式: %s\n", escapeMarkdown(prefs.TargetFormat.Label()))
	response += fmt.Sprintf("語氣: %s\n", escapeMarkdown(prefs.Tone.Label()))
	response += fmt.Sprintf("配圖: %s\n", escapeMarkdown(prefs.VisualStyle.Label()))
	b.sendMarkdown(message.Chat.ID, response)
}

func (b *Bot) handleHistory(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	items, err := b.deps.Storage.ListHistory(ctx, chatID, historyPageSize)
	if err != nil {
		b.logger.Error("Failed to list history",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
		b.sendErrorMessage(chatID, "無法讀取生成紀錄。")
		return
	}

	if len(items) == 0 {
		b.sendMessage(chatID, "目前沒有生成紀錄。")
		return
	}

	response := "*最近的生成紀錄：*\n\n"
	for _, item := range items {
		response += fmt.Sprintf("*%s*\n", escapeMarkdown(item.Topic))
		response += fmt.Sprintf("_%s · %s_\n\n",
			escapeMarkdown(item.Result.Timestamp),
			escapeMarkdown(item.Result.TargetFormat.Label()))
	}
	b.sendMarkdown(chatID, response)
}

func (b *Bot) handlePush(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	items, err := b.deps.Storage.ListHistory(ctx, chatID, 1)
	if err != nil || len(items) == 0 {
		if err != nil {
			b.logger.Error("Failed to load latest history item",
				zap.Error(err),
				zap.Int64("chat_id", chatID))
		}
		b.sendErrorMessage(chatID, "沒有可推送的內容，請先生成貼文。")
		return
	}

	latest := items[0]
	prefs := b.preferences(ctx, chatID)
	report := dispatch.SendResult(ctx, b.deps.Dispatcher, b.deps.Target, &latest.Result, prefs.VisualStyle)
	b.sendMessage(chatID, formatDispatchReport(latest.Topic, report))
}

func (b *Bot) handleAutoPost(ctx context.Context, message *tgbotapi.Message, arg string) {
	chatID := message.Chat.ID
	if b.deps.AutoPost == nil {
		b.sendErrorMessage(chatID, "自動發文未啟用。")
		return
	}

	b.sendMessage(chatID, "⏳ 執行自動發文中...")
	var lines []string
	_, err := b.deps.AutoPost.Run(ctx, autopost.Options{
		ForceSession:  arg,
		FallbackTopic: true,
		Log:           func(line string) { lines = append(lines, line) },
	})
	if err != nil {
		lines = append(lines, "❌ "+generationErrorText(err))
	}
	b.sendMessage(chatID, strings.Join(lines, "\n"))
}

func generationErrorText(err error) string {
	switch {
	case errors.Is(err, generator.ErrMissingCredential):
		return "API 金鑰未設定或無效，請檢查設定。"
	case errors.Is(err, generator.ErrEmptyTopic):
		return "無法決定主題，請換個主題再試。"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "生成已取消。"
	case errors.Is(err, generator.ErrGenerationFailed):
		return "生成失敗：" + err.Error()
	}
	return "發生未預期的錯誤：" + err.Error()
}

func dispatchErrorText(err error) string {
	var delivery *dispatch.DeliveryError
	var transport *dispatch.TransportError
	switch {
	case errors.Is(err, dispatch.ErrConfigIncomplete):
		return "頻道設定不完整（需要 bot token 與 chat id）"
	case errors.As(err, &delivery):
		return "Telegram 拒絕：" + delivery.Description
	case errors.As(err, &transport):
		return "傳輸失敗（網路或代理）：" + transport.Error()
	}
	return err.Error()
}

func formatDispatchReport(topic string, report dispatch.Report) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📨 推送「%s」\n", topic))
	if report.Content != nil {
		sb.WriteString("❌ 內文：" + dispatchErrorText(report.Content) + "\n")
	} else {
		sb.WriteString("✅ 內文已送出\n")
	}
	if report.ImagePromptTried {
		if report.ImagePrompt != nil {
			sb.WriteString("❌ 配圖指令：" + dispatchErrorText(report.ImagePrompt) + "\n")
		} else {
			sb.WriteString("✅ 配圖指令已送出\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatSources(sources []models.GroundingSource) string {
	var sb strings.Builder
	sb.WriteString("📚 資料來源：\n")
	for i, s := range sources {
		if i == maxSourcesShown {
			sb.WriteString(fmt.Sprintf("…以及另外 %d 個來源\n", len(sources)-maxSourcesShown))
			break
		}
		title := s.Title
		if title == "" {
			title = s.URI
		}
		sb.WriteString(fmt.Sprintf("%d. %s\n%s\n", i+1, title, s.URI))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func optionList[T ~string](title, current string, options []T, label func(T) string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s（目前：%s）\n", title, current))
	for _, o := range options {
		marker := "•"
		if string(o) == current {
			marker = "✅"
		}
		sb.WriteString(fmt.Sprintf("%s %s - %s\n", marker, o, label(o)))
	}
	return strings.TrimRight(sb.String(), "\n")
}
