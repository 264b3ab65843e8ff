// Package server is the JSON HTTP API behind the web front-end.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/xaenox/insight-bot/internal/autopost"
	"github.com/xaenox/insight-bot/internal/dispatch"
	"github.com/xaenox/insight-bot/internal/generator"
	"github.com/xaenox/insight-bot/internal/models"
	"github.com/xaenox/insight-bot/internal/storage"
)

// webChatID is the history owner for API requests.
const webChatID int64 = 0

type Generator interface {
	GeneratePost(ctx context.Context, settings generator.Settings, req models.GenerationRequest, topic string, sess *models.Session) (*models.GenerationResult, error)
	FetchTrendingTopics(ctx context.Context, settings generator.Settings, dateLabel string) []string
	DateLabel() string
}

type AutoPoster interface {
	Run(ctx context.Context, opts autopost.Options) (*autopost.Result, error)
}

// Deps are the collaborators of the API. AutoPost may be nil.
type Deps struct {
	Generator  Generator
	Storage    storage.Storage
	Dispatcher dispatch.Sender
	Target     dispatch.Target
	AutoPost   AutoPoster
	Settings   generator.Settings
}

type Config struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigin      string        `mapstructure:"cors_origin"`
}

type Server struct {
	router *gin.Engine
	cfg    Config
	deps   Deps
	logger *zap.Logger
}

func New(cfg Config, deps Deps, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(logger))
	router.Use(CORS(cfg.CORSOrigin))

	s := &Server{
		router: router,
		cfg:    cfg,
		deps:   deps,
		logger: logger,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.router.Group("/api")
	api.POST("/generate", s.handleGenerate)
	api.GET("/trending", s.handleTrending)
	api.GET("/history", s.handleListHistory)
	api.DELETE("/history", s.handleClearHistory)
	api.DELETE("/history/:id", s.handleDeleteHistory)
	api.GET("/history/:id/preview", s.handlePreview)
	api.POST("/dispatch", s.handleDispatch)
	api.POST("/autopost", s.handleAutoPost)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", s.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	s.logger.Info("HTTP server stopped")
	return nil
}
