package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/xaenox/insight-bot/internal/app"
	"github.com/xaenox/insight-bot/internal/autopost"
	"github.com/xaenox/insight-bot/pkg/config"
)

func main() {
	configPath := pflag.String("config", "config.yaml", "path to the config file")
	debug := pflag.Bool("debug", false, "enable development logging")
	loop := pflag.Bool("loop", false, "keep running and post on the cron schedule instead of once")
	pflag.String("schedule", "", "cron expression in the report timezone (overrides autopost.schedule)")
	pflag.String("session", "", "force the session: morning or evening")
	pflag.String("model", "", "model identifier (overrides autopost.preferred_model)")
	pflag.String("timezone", "", "report timezone (overrides autopost.timezone)")
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gen, err := app.NewGenerator(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize generator", zap.Error(err))
	}
	runner, err := app.NewRunner(cfg, gen, app.NewDispatcher(cfg.Dispatch, logger), logger)
	if err != nil {
		logger.Fatal("Failed to initialize autopost", zap.Error(err))
	}
	opts := autopost.Options{ForceSession: cfg.AutoPost.ForceSession}

	if !*loop {
		runCtx, cancel := context.WithTimeout(ctx, cfg.AutoPost.Timeout)
		defer cancel()
		result, err := runner.Run(runCtx, opts)
		if err != nil {
			logger.Fatal("Autopost failed", zap.Error(err))
		}
		if !result.Dispatch.OK() {
			logger.Warn("Autopost generated but not fully dispatched", zap.Error(result.Dispatch.Err()))
		}
		return
	}

	scheduler := autopost.NewScheduler(runner, cfg.AutoPost.Timeout, opts, logger)
	if err := scheduler.Start(cfg.AutoPost.Schedule); err != nil {
		logger.Fatal("Failed to start scheduler", zap.Error(err))
	}
	logger.Info("Next autopost", zap.Time("at", scheduler.Next()))

	<-ctx.Done()
	scheduler.Stop()
}
