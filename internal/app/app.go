// Package app wires configuration into the services shared by the binaries.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xaenox/insight-bot/internal/autopost"
	"github.com/xaenox/insight-bot/internal/dispatch"
	"github.com/xaenox/insight-bot/internal/generator"
	"github.com/xaenox/insight-bot/internal/llm"
	"github.com/xaenox/insight-bot/internal/session"
	"github.com/xaenox/insight-bot/internal/storage"
	"github.com/xaenox/insight-bot/pkg/config"
)

func NewLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// Clock returns the clock for the configured report timezone.
func Clock(cfg *config.Config) (session.Clock, error) {
	loc, err := session.LoadLocation(cfg.AutoPost.Timezone)
	if err != nil {
		return session.Clock{}, err
	}
	return session.NewClock(loc), nil
}

// NewGenerator builds the generation service with both backends and the
// operator's keys as defaults for interactive calls.
func NewGenerator(cfg *config.Config, logger *zap.Logger) (*generator.Service, error) {
	clock, err := Clock(cfg)
	if err != nil {
		return nil, err
	}
	svc, err := generator.New(
		llm.NewGeminiProvider(logger),
		cfg.Generator,
		generator.WithOpenAI(llm.NewOpenAIProvider(cfg.LLM.OpenAIBaseURL, logger)),
		generator.WithDefaults(cfg.Settings(cfg.Retry.Interactive)),
		generator.WithClock(clock),
		generator.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create generator: %w", err)
	}
	return svc, nil
}

func NewDispatcher(cfg config.DispatchConfig, logger *zap.Logger) *dispatch.Telegram {
	return dispatch.NewTelegram(
		dispatch.WithEndpoint(cfg.Endpoint),
		dispatch.WithProxy(cfg.Proxy),
		dispatch.WithTimeout(cfg.Timeout),
		dispatch.WithLogger(logger),
	)
}

// NewRunner builds the unattended runner, retrying with the unattended policy
// and preferring the configured model.
func NewRunner(cfg *config.Config, gen autopost.Generator, sender dispatch.Sender, logger *zap.Logger) (*autopost.Runner, error) {
	clock, err := Clock(cfg)
	if err != nil {
		return nil, err
	}
	settings := cfg.Settings(cfg.Retry.Unattended)
	settings.Model = cfg.AutoPost.PreferredModel
	return autopost.NewRunner(gen, sender, cfg.Dispatch.Target(), settings, clock, autopost.WithLogger(logger)), nil
}

// OpenStorage opens the configured history store.
func OpenStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory storage")
	} else {
		logger.Info("Using PostgreSQL storage",
			zap.String("host", cfg.Database.Host),
			zap.String("dbname", cfg.Database.DBName))
	}
	store, err := storage.Open(ctx, cfg.Database.Storage())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return store, nil
}
