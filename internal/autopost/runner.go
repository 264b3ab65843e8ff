// Package autopost runs the unattended morning and evening reports.
package autopost

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xaenox/insight-bot/internal/dispatch"
	"github.com/xaenox/insight-bot/internal/generator"
	"github.com/xaenox/insight-bot/internal/models"
	"github.com/xaenox/insight-bot/internal/session"
)

// Generator is the part of *generator.Service a run needs.
type Generator interface {
	ResolveTopic(ctx context.Context, settings generator.Settings, sess models.Session, dateLabel string) (string, error)
	ResolveTopicOrDefault(ctx context.Context, settings generator.Settings, sess models.Session, dateLabel string) (string, error)
	GeneratePost(ctx context.Context, settings generator.Settings, req models.GenerationRequest, topic string, sess *models.Session) (*models.GenerationResult, error)
}

// Options override a single run.
type Options struct {
	// ForceSession is "morning", "evening" or empty for clock detection.
	ForceSession string
	Model        models.ModelChoice
	// FallbackTopic uses generator.DefaultTopic when no topic can be
	// resolved. Manual runs set it; scheduled runs fail instead.
	FallbackTopic bool
	// Log receives a human readable line per step, for callers that relay
	// progress to a user.
	Log func(line string)
}

// Result describes a finished run.
type Result struct {
	Session  models.Session
	Topic    string
	Style    models.VisualStyle
	Post     *models.GenerationResult
	Dispatch dispatch.Report
}

// Runner executes one report: classify, resolve topic, generate, dispatch.
type Runner struct {
	generator Generator
	sender    dispatch.Sender
	target    dispatch.Target
	settings  generator.Settings
	clock     session.Clock
	now       func() time.Time
	logger    *zap.Logger

	mu   sync.Mutex
	rand *rand.Rand
}

type Option func(*Runner)

func WithNow(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithRand seeds the visual style picker.
func WithRand(rnd *rand.Rand) Option {
	return func(r *Runner) { r.rand = rnd }
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

func NewRunner(gen Generator, sender dispatch.Sender, target dispatch.Target, settings generator.Settings, clock session.Clock, opts ...Option) *Runner {
	r := &Runner{
		generator: gen,
		sender:    sender,
		target:    target,
		settings:  settings,
		clock:     clock,
		now:       time.Now,
		logger:    zap.NewNop(),
		rand:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run produces and dispatches one report. Topic and generation failures end
// the run with an error. Dispatch failures are logged and reported in the
// result without failing the run.
func (r *Runner) Run(ctx context.Context, opts Options) (*Result, error) {
	logf := func(format string, args ...any) {
		line := fmt.Sprintf(format, args...)
		r.logger.Info(line)
		if opts.Log != nil {
			opts.Log(line)
		}
	}

	now := r.now()
	sess := session.Classify(now, r.clock.Location, opts.ForceSession)
	dateLabel := fmt.Sprintf("%s (%s)", r.clock.DateLabel(now), r.clock.WeekdayLabel(now))
	logf("🚀 Starting %s run for %s", sess.Label(), dateLabel)

	settings := r.settings
	if opts.Model != "" {
		settings.Model = opts.Model
	}

	resolve := r.generator.ResolveTopic
	if opts.FallbackTopic {
		resolve = r.generator.ResolveTopicOrDefault
	}
	topic, err := resolve(ctx, settings, sess, dateLabel)
	if err != nil {
		r.logger.Error("Failed to resolve topic",
			zap.String("session", string(sess)),
			zap.Error(err))
		return nil, fmt.Errorf("failed to resolve topic: %w", err)
	}
	logf("🎯 Topic: %s", topic)

	style := r.pickStyle()
	logf("🎨 Visual style: %s", style.Label())

	req := models.GenerationRequest{
		Topic:        topic,
		TargetFormat: models.FormatTelegram,
		Tone:         models.ToneProfessional,
		VisualStyle:  style,
		Model:        settings.Model,
	}
	post, err := r.generator.GeneratePost(ctx, settings, req, topic, &sess)
	if err != nil {
		r.logger.Error("Failed to generate report",
			zap.String("topic", topic),
			zap.Error(err))
		return nil, fmt.Errorf("failed to generate report: %w", err)
	}
	logf("✅ Report generated at %s (%d characters, %d sources)", post.Timestamp, len([]rune(post.Content)), len(post.Sources))

	report := dispatch.SendResult(ctx, r.sender, r.target, post, style)
	if report.Content != nil {
		r.logger.Error("Failed to dispatch report", zap.Error(report.Content))
		logf("❌ Report dispatch failed: %v", report.Content)
	} else {
		logf("📨 Report dispatched")
	}
	if report.ImagePromptTried {
		if report.ImagePrompt != nil {
			r.logger.Error("Failed to dispatch image prompt", zap.Error(report.ImagePrompt))
			logf("❌ Image prompt dispatch failed: %v", report.ImagePrompt)
		} else {
			logf("📨 Image prompt dispatched")
		}
	}

	return &Result{
		Session:  sess,
		Topic:    topic,
		Style:    style,
		Post:     post,
		Dispatch: report,
	}, nil
}

func (r *Runner) pickStyle() models.VisualStyle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return models.VisualStyles[r.rand.Intn(len(models.VisualStyles))]
}
