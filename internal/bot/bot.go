// Package bot is the Telegram front-end: users request posts and trending
// topics, tune their preferences and push results to the channel.
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
	"github.com/xaenox/insight-bot/internal/storage"
)

// Sender is the message-sending half of *tgbotapi.BotAPI.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Generator is the part of *generator.Service the bot uses.
type Generator interface {
	GeneratePost(ctx context.Context, settings generator.Settings, req models.GenerationRequest, topic string, sess *models.Session) (*models.GenerationResult, error)
	FetchTrendingTopics(ctx context.Context, settings generator.Settings, dateLabel string) []string
	DateLabel() string
}

// AutoPoster runs the unattended report on demand.
type AutoPoster interface {
	Run(ctx context.Context, opts autopost.Options) (*autopost.Result, error)
}

// Deps are the collaborators of a Bot. AutoPost may be nil.
type Deps struct {
	Generator    Generator
	Storage      storage.Storage
	Dispatcher   dispatch.Sender
	Target       dispatch.Target
	AutoPost     AutoPoster
	Settings     generator.Settings
	DefaultModel models.ModelChoice
}

type Bot struct {
	api    *tgbotapi.BotAPI
	sender Sender
	deps   Deps
	logger *zap.Logger
}

func New(token string, deps Deps, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	logger.Info("Authorized on Telegram", zap.String("username", api.Self.UserName))
	b := newBot(api, deps, logger)
	b.api = api
	return b, nil
}

func newBot(sender Sender, deps Deps, logger *zap.Logger) *Bot {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.DefaultModel == "" {
		deps.DefaultModel = models.ModelGeminiPro
	}
	return &Bot{
		sender: sender,
		deps:   deps,
		logger: logger,
	}
}

// Start polls for updates until ctx is done.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			go b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.IsCommand() {
		b.handleCommand(ctx, message)
		return
	}

	topic := strings.TrimSpace(message.Text)
	if topic == "" {
		return
	}
	b.handleGenerate(ctx, message, topic)
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	args := strings.TrimSpace(message.CommandArguments())
	switch message.Command() {
	case "start":
		b.handleStart(message)
	case "help":
		b.handleHelp(message)
	case "generate":
		b.handleGenerate(ctx, message, args)
	case "trending":
		b.handleTrending(ctx, message)
	case "format":
		b.handleFormat(ctx, message, args)
	case "tone":
		b.handleTone(ctx, message, args)
	case "style":
		b.handleStyle(ctx, message, args)
	case "model":
		b.handleModel(ctx, message, args)
	case "settings":
		b.handleSettings(ctx, message)
	case "history":
		b.handleHistory(ctx, message)
	case "push":
		b.handlePush(ctx, message)
	case "autopost":
		b.handleAutoPost(ctx, message, args)
	default:
		b.sendMessage(message.Chat.ID, "未知的指令，輸入 /help 查看可用指令。")
	}
}

// preferences loads the chat's preferences, falling back to defaults.
func (b *Bot) preferences(ctx context.Context, chatID int64) *models.Preferences {
	prefs, err := b.deps.Storage.GetPreferences(ctx, chatID)
	if err == nil {
		return prefs
	}
	if !errors.Is(err, storage.ErrNotFound) {
		b.logger.Error("Failed to load preferences",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
	return models.DefaultPreferences(chatID, b.deps.DefaultModel)
}

func (b *Bot) savePreferences(ctx context.Context, chatID int64, prefs *models.Preferences) bool {
	if err := b.deps.Storage.SavePreferences(ctx, prefs); err != nil {
		b.logger.Error("Failed to save preferences",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
		b.sendErrorMessage(chatID, "無法儲存設定，請稍後再試。")
		return false
	}
	return true
}

// Add this helper function to escape special characters for MarkdownV2
func escapeMarkdown(text string) string {
	specialChars := []string{"\\", "_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!"}
	escaped := text
	for _, char := range specialChars {
		escaped = strings.ReplaceAll(escaped, char, "\\"+char)
	}
	return escaped
}

// sendMessage sends plain text, split to fit Telegram's length limit.
func (b *Bot) sendMessage(chatID int64, text string) {
	for _, part := range dispatch.SplitMessage(text, dispatch.MaxMessageLength) {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.DisableWebPagePreview = true
		if _, err := b.sender.Send(msg); err != nil {
			b.logger.Error("Failed to send message",
				zap.Error(err),
				zap.Int64("chat_id", chatID))
			return
		}
	}
}

func (b *Bot) sendMarkdown(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.DisableWebPagePreview = true
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("Failed to send markdown message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendErrorMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, "⚠️ "+text)
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("Failed to send error message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}
