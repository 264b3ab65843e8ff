package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/xaenox/insight-bot/internal/app"
	"github.com/xaenox/insight-bot/internal/server"
	"github.com/xaenox/insight-bot/pkg/config"
)

func main() {
	configPath := pflag.String("config", "config.yaml", "path to the config file")
	debug := pflag.Bool("debug", false, "enable development logging")
	pflag.String("addr", "", "listen address (overrides server.addr)")
	pflag.Parse()

	logger, err := app.NewLogger(*debug)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.LoadConfig(*configPath, pflag.CommandLine)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", *configPath))
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid config", zap.Error(err))
	}
	if !*debug {
		gin.SetMode(gin.ReleaseMode)
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

	srv := server.New(cfg.Server, server.Deps{
		Generator:  gen,
		Storage:    store,
		Dispatcher: dispatcher,
		Target:     cfg.Dispatch.Target(),
		AutoPost:   runner,
		Settings:   cfg.Settings(cfg.Retry.Interactive),
	}, logger)

	if err := srv.Run(ctx); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
}
