package main

import (
	"fmt"
	"os"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/xaenox/insight-bot/internal/app"
	"github.com/xaenox/insight-bot/internal/dispatch"
	"github.com/xaenox/insight-bot/pkg/config"
)

func main() {
	configPath := pflag.String("config", "config.yaml", "path to the config file")
	token := pflag.String("token", "", "bot token (defaults to dispatch.bot_token / TELEGRAM_BOT_TOKEN)")
	debug := pflag.Bool("debug", false, "enable development logging")
	pflag.Parse()

	logger, err := app.NewLogger(*debug)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if *token == "" {
		cfg, err := config.LoadConfig(*configPath, nil)
		if err != nil {
			logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", *configPath))
		}
		*token = cfg.Dispatch.BotToken
	}
	if *token == "" {
		logger.Fatal("Bot token is not set (--token or TELEGRAM_BOT_TOKEN)")
	}

	api, err := tgbotapi.NewBotAPI(*token)
	if err != nil {
		logger.Fatal("Failed to connect to Telegram", zap.Error(err))
	}
	logger.Info("Authorized on Telegram", zap.String("username", api.Self.UserName))

	channels, err := dispatch.DiscoverChannels(api)
	if err != nil {
		logger.Fatal("Failed to list chats", zap.Error(err))
	}
	if len(channels) == 0 {
		fmt.Fprintln(os.Stderr, "No chats found. Add the bot to the channel as an admin, post a message there, then run again.")
		return
	}
	for _, ch := range channels {
		name := ch.Title
		if ch.Username != "" {
			name += " (@" + ch.Username + ")"
		}
		fmt.Printf("%d\t%s\t%s\n", ch.ID, ch.Type, name)
	}
}
