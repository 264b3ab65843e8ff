// Package generator produces market posts, report topics and trending
// suggestions on top of a search-grounded generative model.
package generator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xaenox/insight-bot/internal/llm"
	"github.com/xaenox/insight-bot/internal/models"
	"github.com/xaenox/insight-bot/internal/retry"
	"github.com/xaenox/insight-bot/internal/session"
)

var (
	// ErrMissingCredential is returned when no API key resolves or the
	// upstream rejects the key.
	ErrMissingCredential = errors.New("missing or rejected API key")
	// ErrEmptyTopic is returned when topic resolution yields nothing usable.
	ErrEmptyTopic = errors.New("topic resolution returned an empty topic")
	// ErrGenerationFailed wraps every other upstream failure.
	ErrGenerationFailed = errors.New("generation failed")

	errEmptyResponse = errors.New("empty response")
)

// Budgets are deliberation token budgets per call kind.
type Budgets struct {
	Interactive int32 `mapstructure:"interactive"`
	Report      int32 `mapstructure:"report"`
	Topic       int32 `mapstructure:"topic"`
}

// Temperatures are sampling temperatures per call kind.
type Temperatures struct {
	Deep     float32 `mapstructure:"deep"`
	Standard float32 `mapstructure:"standard"`
	Topic    float32 `mapstructure:"topic"`
	Trending float32 `mapstructure:"trending"`
}

type Config struct {
	Language      string             `mapstructure:"language"`
	DefaultModel  models.ModelChoice `mapstructure:"default_model"`
	TrendingModel models.ModelChoice `mapstructure:"trending_model"`
	Budgets       Budgets            `mapstructure:"budgets"`
	Temperatures  Temperatures       `mapstructure:"temperatures"`
}

func DefaultConfig() Config {
	return Config{
		Language:      "Traditional Chinese (Taiwan)",
		DefaultModel:  models.ModelGeminiPro,
		TrendingModel: models.ModelGeminiFlash3,
		Budgets: Budgets{
			Interactive: 16000,
			Report:      24000,
			Topic:       8000,
		},
		Temperatures: Temperatures{
			Deep:     0.3,
			Standard: 0.7,
			Topic:    0.2,
			Trending: 0.5,
		},
	}
}

// Settings are the per-call caller settings. Empty fields fall back to the
// service defaults.
type Settings struct {
	APIKey    string
	OpenAIKey string
	Model     models.ModelChoice
	Retry     *retry.Policy
}

// Service talks to the generative backends. It holds no per-call state and is
// safe for concurrent use.
type Service struct {
	gemini   llm.Provider
	openai   llm.Provider
	cfg      Config
	defaults Settings
	clock    session.Clock
	now      func() time.Time
	logger   *zap.Logger
}

type Option func(*Service)

// WithOpenAI routes OpenAI-family models to p.
func WithOpenAI(p llm.Provider) Option {
	return func(s *Service) { s.openai = p }
}

// WithDefaults sets the settings used when a call leaves a field empty.
func WithDefaults(d Settings) Option {
	return func(s *Service) { s.defaults = d }
}

func WithClock(c session.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithNow replaces the wall clock.
func WithNow(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func New(gemini llm.Provider, cfg Config, opts ...Option) (*Service, error) {
	if gemini == nil {
		return nil, errors.New("gemini provider is required")
	}
	def := DefaultConfig()
	if cfg.Language == "" {
		cfg.Language = def.Language
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = def.DefaultModel
	}
	if cfg.TrendingModel == "" {
		cfg.TrendingModel = def.TrendingModel
	}
	if cfg.Budgets == (Budgets{}) {
		cfg.Budgets = def.Budgets
	}
	if cfg.Temperatures == (Temperatures{}) {
		cfg.Temperatures = def.Temperatures
	}

	loc, err := session.LoadLocation("")
	if err != nil {
		return nil, err
	}
	s := &Service{
		gemini: gemini,
		cfg:    cfg,
		clock:  session.NewClock(loc),
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s, nil
}

// Clock returns the clock used for labels and timestamps.
func (s *Service) Clock() session.Clock {
	return s.clock
}

// DateLabel renders today as "2026年10月19日 (星期一)" in the target timezone.
func (s *Service) DateLabel() string {
	now := s.now()
	return fmt.Sprintf("%s (%s)", s.clock.DateLabel(now), s.clock.WeekdayLabel(now))
}

// call is one resolved upstream invocation.
type call struct {
	model    llm.Model
	choice   models.ModelChoice
	executor *retry.Executor
}

// connect resolves settings into a connected model and an executor. override
// wins over the settings model when non-empty.
func (s *Service) connect(ctx context.Context, settings Settings, override models.ModelChoice) (*call, error) {
	choice := override
	if choice == "" {
		choice = settings.Model
	}
	if choice == "" {
		choice = s.defaults.Model
	}
	if choice == "" {
		choice = s.cfg.DefaultModel
	}

	provider := s.gemini
	key := firstNonEmpty(settings.APIKey, s.defaults.APIKey)
	if choice.IsOpenAI() {
		if s.openai == nil {
			return nil, fmt.Errorf("%w: no backend configured for model %s", ErrGenerationFailed, choice)
		}
		provider = s.openai
		key = firstNonEmpty(settings.OpenAIKey, s.defaults.OpenAIKey)
	}
	if key == "" {
		return nil, ErrMissingCredential
	}

	model, err := provider.Connect(ctx, key)
	if err != nil {
		if llm.IsCredentialRejected(err) {
			return nil, fmt.Errorf("%w: %w", ErrMissingCredential, err)
		}
		return nil, fmt.Errorf("%w: connect: %w", ErrGenerationFailed, err)
	}

	policy := retry.Interactive()
	if settings.Retry != nil {
		policy = *settings.Retry
	} else if s.defaults.Retry != nil {
		policy = *s.defaults.Retry
	}
	return &call{
		model:    model,
		choice:   choice,
		executor: retry.NewExecutor(policy, llm.IsTransientOverload, s.logger),
	}, nil
}

func (c *call) generate(ctx context.Context, name string, req *llm.Request) (*llm.Response, error) {
	req.Model = c.choice
	return retry.Run(ctx, c.executor, name, func(ctx context.Context) (*llm.Response, error) {
		return c.model.Generate(ctx, req)
	})
}

// classify maps an upstream failure into the package errors.
func classify(stage string, err error) error {
	switch {
	case errors.Is(err, ErrMissingCredential), errors.Is(err, ErrGenerationFailed):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", stage, err)
	case llm.IsCredentialRejected(err):
		return fmt.Errorf("%w: %w", ErrMissingCredential, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrGenerationFailed, stage, err)
}

// thinkingBudget returns budget for deep-reasoning models and zero otherwise.
func thinkingBudget(m models.ModelChoice, budget int32) int32 {
	if m.DeepReasoning() {
		return budget
	}
	return 0
}

func (s *Service) postTemperature(m models.ModelChoice) float32 {
	if m.DeepReasoning() {
		return s.cfg.Temperatures.Deep
	}
	return s.cfg.Temperatures.Standard
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
