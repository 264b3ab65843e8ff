package autopost

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xaenox/insight-bot/internal/dispatch"
	"github.com/xaenox/insight-bot/internal/generator"
	"github.com/xaenox/insight-bot/internal/llm/llmtest"
	"github.com/xaenox/insight-bot/internal/models"
	"github.com/xaenox/insight-bot/internal/session"
)

type fakeGenerator struct {
	topic     string
	topicErr  error
	post      *models.GenerationResult
	postErr   error
	sessions  []models.Session
	settings  []generator.Settings
	requests  []models.GenerationRequest
	postCalls int
}

func (f *fakeGenerator) ResolveTopic(_ context.Context, settings generator.Settings, sess models.Session, _ string) (string, error) {
	f.sessions = append(f.sessions, sess)
	f.settings = append(f.settings, settings)
	return f.topic, f.topicErr
}

func (f *fakeGenerator) ResolveTopicOrDefault(ctx context.Context, settings generator.Settings, sess models.Session, dateLabel string) (string, error) {
	topic, err := f.ResolveTopic(ctx, settings, sess, dateLabel)
	if errors.Is(err, generator.ErrEmptyTopic) {
		return generator.DefaultTopic, nil
	}
	return topic, err
}

func (f *fakeGenerator) GeneratePost(_ context.Context, _ generator.Settings, req models.GenerationRequest, topic string, sess *models.Session) (*models.GenerationResult, error) {
	f.postCalls++
	f.requests = append(f.requests, req)
	if sess == nil {
		return nil, errors.New("report requires a session")
	}
	return f.post, f.postErr
}

type recordingSender struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (s *recordingSender) Send(_ context.Context, _ dispatch.Target, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	return s.err
}

// 2026-10-19 00:30 UTC is 08:30 in Taipei.
var morningUTC = time.Date(2026, 10, 19, 0, 30, 0, 0, time.UTC)

func newTestRunner(t *testing.T, gen Generator, sender dispatch.Sender) (*Runner, *observer.ObservedLogs) {
	t.Helper()
	loc, err := session.LoadLocation("")
	require.NoError(t, err)
	core, logs := observer.New(zapcore.InfoLevel)
	r := NewRunner(gen, sender,
		dispatch.Target{BotToken: "t", ChatID: "@insight"},
		generator.Settings{APIKey: "key", Model: models.ModelGeminiPro},
		session.NewClock(loc),
		WithNow(func() time.Time { return morningUTC }),
		WithRand(rand.New(rand.NewSource(1))),
		WithLogger(zap.New(core)),
	)
	return r, logs
}

func TestRun(t *testing.T) {
	prompt := "Wall Street at dawn --ar 16:9"
	gen := &fakeGenerator{
		topic: "NVIDIA財報創高",
		post:  &models.GenerationResult{Content: "report", ImagePrompt: &prompt, Timestamp: "2026/10/19 8:31:00"},
	}
	sender := &recordingSender{}
	r, _ := newTestRunner(t, gen, sender)

	var lines []string
	res, err := r.Run(context.Background(), Options{Log: func(l string) { lines = append(lines, l) }})
	require.NoError(t, err)

	assert.Equal(t, models.SessionMorning, res.Session)
	assert.Equal(t, "NVIDIA財報創高", res.Topic)
	assert.True(t, res.Style.Valid())
	assert.True(t, res.Dispatch.OK())
	assert.Len(t, sender.texts, 2)

	require.Len(t, gen.requests, 1)
	assert.Equal(t, models.FormatTelegram, gen.requests[0].TargetFormat)
	assert.Equal(t, res.Style, gen.requests[0].VisualStyle)
	assert.Equal(t, models.ModelGeminiPro, gen.settings[0].Model)

	joined := strings.Join(lines, "\n")
	assert.Contains(t, joined, "NVIDIA財報創高")
	assert.Contains(t, joined, "Report dispatched")
	assert.Contains(t, joined, "Image prompt dispatched")
}

func TestRunForcedSessionAndModel(t *testing.T) {
	gen := &fakeGenerator{topic: "台積電法說會", post: &models.GenerationResult{Content: "report"}}
	r, _ := newTestRunner(t, gen, &recordingSender{})

	res, err := r.Run(context.Background(), Options{ForceSession: "Evening", Model: models.ModelGeminiFlash25})
	require.NoError(t, err)

	assert.Equal(t, models.SessionEvening, res.Session)
	assert.Equal(t, []models.Session{models.SessionEvening}, gen.sessions)
	assert.Equal(t, models.ModelGeminiFlash25, gen.settings[0].Model)
	assert.Equal(t, models.ModelGeminiFlash25, gen.requests[0].Model)
}

func TestRunEmptyTopicIsFatal(t *testing.T) {
	gen := &fakeGenerator{topicErr: generator.ErrEmptyTopic}
	sender := &recordingSender{}
	r, _ := newTestRunner(t, gen, sender)

	_, err := r.Run(context.Background(), Options{})
	assert.ErrorIs(t, err, generator.ErrEmptyTopic)
	assert.Zero(t, gen.postCalls)
	assert.Empty(t, sender.texts)
}

// newServiceRunner runs against a real generator whose model answers with
// replies in order.
func newServiceRunner(t *testing.T, sender dispatch.Sender, replies ...llmtest.Reply) (*Runner, *llmtest.Model) {
	t.Helper()
	model := llmtest.NewModel(replies...)
	svc, err := generator.New(llmtest.NewProvider(model), generator.Config{},
		generator.WithNow(func() time.Time { return morningUTC }))
	require.NoError(t, err)
	r, _ := newTestRunner(t, svc, sender)
	return r, model
}

func TestManualRunFallsBackToDefaultTopic(t *testing.T) {
	sender := &recordingSender{}
	r, model := newServiceRunner(t, sender,
		llmtest.Text("  "),
		llmtest.Text("morning report"),
		llmtest.Text("Wall Street at dawn --ar 16:9"),
	)

	res, err := r.Run(context.Background(), Options{FallbackTopic: true})
	require.NoError(t, err)

	assert.Equal(t, generator.DefaultTopic, res.Topic)
	assert.Equal(t, "morning report", res.Post.Content)
	assert.Contains(t, model.Request(1).Prompt, generator.DefaultTopic)
	assert.Len(t, sender.texts, 2)
}

func TestScheduledRunEmptyTopicFails(t *testing.T) {
	sender := &recordingSender{}
	r, model := newServiceRunner(t, sender, llmtest.Text("  "))

	_, err := r.Run(context.Background(), Options{})
	assert.ErrorIs(t, err, generator.ErrEmptyTopic)
	assert.Equal(t, 1, model.Calls())
	assert.Empty(t, sender.texts)

	core, logs := observer.New(zapcore.InfoLevel)
	NewScheduler(r, time.Minute, Options{}, zap.New(core)).runScheduled()
	assert.Equal(t, 1, logs.FilterMessage("Scheduled autopost failed").Len())
	assert.Empty(t, sender.texts)
}

func TestRunGenerationFailure(t *testing.T) {
	gen := &fakeGenerator{topic: "NVDA", postErr: generator.ErrGenerationFailed}
	sender := &recordingSender{}
	r, _ := newTestRunner(t, gen, sender)

	_, err := r.Run(context.Background(), Options{})
	assert.ErrorIs(t, err, generator.ErrGenerationFailed)
	assert.Empty(t, sender.texts)
}

func TestRunDispatchFailureIsLoggedNotFatal(t *testing.T) {
	prompt := "p"
	gen := &fakeGenerator{topic: "NVDA", post: &models.GenerationResult{Content: "report", ImagePrompt: &prompt}}
	rejected := &dispatch.DeliveryError{StatusCode: 403, Description: "Forbidden"}
	r, logs := newTestRunner(t, gen, &recordingSender{err: rejected})

	res, err := r.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.ErrorIs(t, res.Dispatch.Content, rejected)
	assert.ErrorIs(t, res.Dispatch.ImagePrompt, rejected)
	assert.Equal(t, 1, logs.FilterMessage("Failed to dispatch report").Len())
	assert.Equal(t, 1, logs.FilterMessage("Failed to dispatch image prompt").Len())
}

func TestPickStyleIsSeedable(t *testing.T) {
	a, _ := newTestRunner(t, &fakeGenerator{}, &recordingSender{})
	b, _ := newTestRunner(t, &fakeGenerator{}, &recordingSender{})
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.pickStyle(), b.pickStyle())
	}
}

func TestValidateSchedule(t *testing.T) {
	assert.NoError(t, ValidateSchedule(DefaultSchedule))
	assert.Error(t, ValidateSchedule("every morning"))
}

func TestSchedulerUsesRunnerTimezone(t *testing.T) {
	r, _ := newTestRunner(t, &fakeGenerator{}, &recordingSender{})
	s := NewScheduler(r, time.Minute, Options{}, nil)
	require.NoError(t, s.Start(DefaultSchedule))
	defer s.Stop()

	next := s.Next().In(r.clock.Location)
	assert.Contains(t, []int{8, 17}, next.Hour())
	assert.Zero(t, next.Minute())
	assert.Error(t, NewScheduler(r, time.Minute, Options{}, nil).Start("bad"))
}
