package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/xaenox/insight-bot/internal/app"
	"github.com/xaenox/insight-bot/internal/bot"
	"github.com/xaenox/insight-bot/pkg/config"
)

func main() {
	configPath := pflag.String("config", "config.yaml", "path to the config file")
	debug := pflag.Bool("debug", false, "enable development logging")
	pflag.Parse()

	// Initialize logger
	logger, err := app.NewLogger(*debug)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath, pflag.CommandLine)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", *configPath))
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid config", zap.Error(err))
	}
	if cfg.Telegram.Token == "" {
		logger.Fatal("Telegram bot token is not set (TELEGRAM_TOKEN)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := app.OpenStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer store.Close()

	gen, err := app.NewGenerator(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize generator", zap.Error(err))
	}
	dispatcher := app.NewDispatcher(cfg.Dispatch, logger)
	runner, err := app.NewRunner(cfg, gen, dispatcher, logger)
	if err != nil {
		logger.Fatal("Failed to initialize autopost", zap.Error(err))
	}

	// Initialize bot
	b, err := bot.New(cfg.Telegram.Token, bot.Deps{
		Generator:    gen,
		Storage:      store,
		Dispatcher:   dispatcher,
		Target:       cfg.Dispatch.Target(),
		AutoPost:     runner,
		Settings:     cfg.Settings(cfg.Retry.Interactive),
		DefaultModel: cfg.Generator.DefaultModel,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create bot", zap.Error(err))
	}

	// Start the bot
	if err := b.Start(ctx); err != nil {
		logger.Fatal("Bot error", zap.Error(err))
	}
	logger.Info("Bot stopped")
}
