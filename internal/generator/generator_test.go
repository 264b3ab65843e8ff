package generator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/genai"

	"github.com/xaenox/insight-bot/internal/llm"
	"github.com/xaenox/insight-bot/internal/llm/llmtest"
	"github.com/xaenox/insight-bot/internal/models"
	"github.com/xaenox/insight-bot/internal/retry"
)

var fastRetry = &retry.Policy{MaxRetries: 3, InitialDelay: time.Millisecond, Multiplier: 1}

// 2026-10-19 06:05:09 UTC is 14:05:09 on a Monday in Taipei.
var fixedNow = time.Date(2026, 10, 19, 6, 5, 9, 0, time.UTC)

func newTestService(t *testing.T, model *llmtest.Model, opts ...Option) (*Service, *llmtest.Provider, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	provider := llmtest.NewProvider(model)
	opts = append([]Option{
		WithNow(func() time.Time { return fixedNow }),
		WithLogger(zap.New(core)),
	}, opts...)
	svc, err := New(provider, Config{}, opts...)
	require.NoError(t, err)
	return svc, provider, logs
}

func settingsFor(m models.ModelChoice) Settings {
	return Settings{APIKey: "test-key", Model: m, Retry: fastRetry}
}

func telegramRequest(topic string) models.GenerationRequest {
	return models.GenerationRequest{
		Topic:        topic,
		TargetFormat: models.FormatTelegram,
		Tone:         models.ToneBullish,
		VisualStyle:  models.StyleCyberpunk,
	}
}

func TestGeneratePost(t *testing.T) {
	model := llmtest.NewModel(llmtest.Reply{Response: &llm.Response{
		Text: "🏷️ NVIDIA 財報\n• 營收創高\n---IMAGE_PROMPT---\nA neon chip --ar 16:9",
		Citations: []llm.Citation{
			{Web: &llm.WebSource{Title: "Reuters", URI: "https://reuters.com/nvda"}},
			{Web: &llm.WebSource{Title: "Reuters dup", URI: "https://reuters.com/nvda"}},
			{},
		},
	}})
	svc, provider, _ := newTestService(t, model)

	res, err := svc.GeneratePost(context.Background(), settingsFor(models.ModelGeminiPro), telegramRequest("NVIDIA 財報"), "", nil)
	require.NoError(t, err)

	assert.Equal(t, "🏷️ NVIDIA 財報\n• 營收創高", res.Content)
	require.True(t, res.HasImagePrompt())
	assert.Equal(t, "A neon chip --ar 16:9", *res.ImagePrompt)
	assert.Equal(t, []models.GroundingSource{{Title: "Reuters", URI: "https://reuters.com/nvda"}}, res.Sources)
	assert.Equal(t, "2026/10/19 14:05:09", res.Timestamp)
	assert.Equal(t, models.FormatTelegram, res.TargetFormat)

	assert.Equal(t, []string{"test-key"}, provider.Keys)
	require.Equal(t, 1, model.Calls())
	req := model.Request(0)
	assert.Equal(t, models.ModelGeminiPro, req.Model)
	assert.True(t, req.Search)
	assert.Equal(t, int32(16000), req.ThinkingBudget)
	require.NotNil(t, req.Temperature)
	assert.InDelta(t, 0.3, *req.Temperature, 1e-6)
	assert.Contains(t, req.System, "2026年10月19日 (星期一)")
	assert.Contains(t, req.System, ImagePromptDelimiter)
	assert.Contains(t, req.Prompt, "NVIDIA 財報")
}

func TestGeneratePostStandardModelHasNoThinkingBudget(t *testing.T) {
	model := llmtest.NewModel(llmtest.Text("post\n---IMAGE_PROMPT---\nprompt"))
	svc, _, _ := newTestService(t, model)

	_, err := svc.GeneratePost(context.Background(), settingsFor(models.ModelGeminiFlash25), telegramRequest("台積電"), "", nil)
	require.NoError(t, err)

	req := model.Request(0)
	assert.Zero(t, req.ThinkingBudget)
	assert.InDelta(t, 0.7, *req.Temperature, 1e-6)
}

func TestGeneratePostRequestModelWinsOverSettings(t *testing.T) {
	model := llmtest.NewModel(llmtest.Text("post\n---IMAGE_PROMPT---\nprompt"))
	svc, _, _ := newTestService(t, model)

	req := telegramRequest("台積電")
	req.Model = models.ModelGeminiFlash
	_, err := svc.GeneratePost(context.Background(), settingsFor(models.ModelGeminiPro), req, "", nil)
	require.NoError(t, err)

	assert.Equal(t, models.ModelGeminiFlash, model.Request(0).Model)
}

func TestGeneratePostMissingCredential(t *testing.T) {
	model := llmtest.NewModel(llmtest.Text("unused"))
	svc, provider, _ := newTestService(t, model)

	_, err := svc.GeneratePost(context.Background(), Settings{}, telegramRequest("NVDA"), "", nil)
	assert.ErrorIs(t, err, ErrMissingCredential)
	assert.Zero(t, provider.Connections())
	assert.Zero(t, model.Calls())
}

func TestGeneratePostDefaultKeyIsUsedWhenCallHasNone(t *testing.T) {
	model := llmtest.NewModel(llmtest.Text("post\n---IMAGE_PROMPT---\nprompt"))
	svc, provider, _ := newTestService(t, model, WithDefaults(Settings{APIKey: "process-key"}))

	_, err := svc.GeneratePost(context.Background(), Settings{Retry: fastRetry}, telegramRequest("NVDA"), "", nil)
	require.NoError(t, err)

	_, err = svc.GeneratePost(context.Background(), Settings{APIKey: "explicit", Retry: fastRetry}, telegramRequest("NVDA"), "", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"process-key", "explicit"}, provider.Keys)
}

func TestGeneratePostRejectedKey(t *testing.T) {
	rejected := genai.APIError{Code: 400, Message: "API key not valid. Please pass a valid API key.", Status: "INVALID_ARGUMENT"}
	model := llmtest.NewModel(llmtest.Fail(rejected))
	svc, _, _ := newTestService(t, model)

	_, err := svc.GeneratePost(context.Background(), settingsFor(models.ModelGeminiPro), telegramRequest("NVDA"), "", nil)
	assert.ErrorIs(t, err, ErrMissingCredential)
	assert.Equal(t, 1, model.Calls())
}

func TestGeneratePostRetriesOverload(t *testing.T) {
	overloaded := genai.APIError{Code: 503, Message: "The model is overloaded."}
	model := llmtest.NewModel(
		llmtest.Fail(overloaded),
		llmtest.Fail(overloaded),
		llmtest.Text("post\n---IMAGE_PROMPT---\nprompt"),
	)
	svc, _, logs := newTestService(t, model)

	res, err := svc.GeneratePost(context.Background(), settingsFor(models.ModelGeminiPro), telegramRequest("NVDA"), "", nil)
	require.NoError(t, err)
	assert.Equal(t, "post", res.Content)
	assert.Equal(t, 3, model.Calls())
	assert.Equal(t, 2, logs.FilterMessage("Upstream overloaded, retrying").Len())
}

func TestGeneratePostFailureKeepsUpstreamMessage(t *testing.T) {
	model := llmtest.NewModel(llmtest.Fail(genai.APIError{Code: 400, Message: "request contains an invalid argument"}))
	svc, _, _ := newTestService(t, model)

	_, err := svc.GeneratePost(context.Background(), settingsFor(models.ModelGeminiPro), telegramRequest("NVDA"), "", nil)
	require.ErrorIs(t, err, ErrGenerationFailed)
	assert.Contains(t, err.Error(), "request contains an invalid argument")
	assert.Equal(t, 1, model.Calls())
}

func TestGeneratePostExhaustedRetries(t *testing.T) {
	model := llmtest.NewModel(llmtest.Fail(llm.ErrOverloaded))
	svc, _, _ := newTestService(t, model)

	_, err := svc.GeneratePost(context.Background(), settingsFor(models.ModelGeminiPro), telegramRequest("NVDA"), "", nil)
	assert.ErrorIs(t, err, ErrGenerationFailed)
	assert.ErrorIs(t, err, llm.ErrOverloaded)
	assert.Equal(t, fastRetry.MaxRetries+1, model.Calls())
}

func TestGeneratePostEmptyResponse(t *testing.T) {
	model := llmtest.NewModel(llmtest.Text("   "))
	svc, _, _ := newTestService(t, model)

	_, err := svc.GeneratePost(context.Background(), settingsFor(models.ModelGeminiPro), telegramRequest("NVDA"), "", nil)
	assert.ErrorIs(t, err, ErrGenerationFailed)
}

func TestGeneratePostEmptyTopic(t *testing.T) {
	model := llmtest.NewModel(llmtest.Text("unused"))
	svc, provider, _ := newTestService(t, model)

	_, err := svc.GeneratePost(context.Background(), settingsFor(models.ModelGeminiPro), telegramRequest("  "), "", nil)
	assert.ErrorIs(t, err, ErrEmptyTopic)
	assert.Zero(t, provider.Connections())
}

func TestGeneratePostSecondaryImagePrompt(t *testing.T) {
	model := llmtest.NewModel(
		llmtest.Text("post without a prompt"),
		llmtest.Text("`A trading floor at dawn --ar 16:9`"),
	)
	svc, _, _ := newTestService(t, model)

	res, err := svc.GeneratePost(context.Background(), settingsFor(models.ModelGeminiPro), telegramRequest("NVDA"), "", nil)
	require.NoError(t, err)
	assert.Equal(t, "post without a prompt", res.Content)
	require.NotNil(t, res.ImagePrompt)
	assert.Equal(t, "A trading floor at dawn --ar 16:9", *res.ImagePrompt)
	require.Equal(t, 2, model.Calls())
	assert.False(t, model.Request(1).Search)
	assert.Contains(t, model.Request(1).Prompt, "cyberpunk")
}

func TestGeneratePostSecondaryFailureKeepsContent(t *testing.T) {
	model := llmtest.NewModel(
		llmtest.Text("post without a prompt"),
		llmtest.Fail(errors.New("quota exceeded")),
	)
	svc, _, logs := newTestService(t, model)

	res, err := svc.GeneratePost(context.Background(), settingsFor(models.ModelGeminiPro), telegramRequest("NVDA"), "", nil)
	require.NoError(t, err)
	assert.Equal(t, "post without a prompt", res.Content)
	assert.Nil(t, res.ImagePrompt)
	assert.Equal(t, 1, logs.FilterMessage("Image prompt generation failed").Len())
}

func TestGeneratePostReport(t *testing.T) {
	model := llmtest.NewModel(
		llmtest.Text("[🇹🇼 台灣/亞洲科技晚報] 台積電"),
		llmtest.Text("Futuristic fab --ar 16:9"),
	)
	svc, _, _ := newTestService(t, model)
	evening := models.SessionEvening

	res, err := svc.GeneratePost(context.Background(), settingsFor(models.ModelGeminiPro), telegramRequest(""), "台積電法說會", &evening)
	require.NoError(t, err)

	assert.Equal(t, "[🇹🇼 台灣/亞洲科技晚報] 台積電", res.Content)
	require.NotNil(t, res.ImagePrompt)
	assert.Equal(t, "Futuristic fab --ar 16:9", *res.ImagePrompt)

	primary := model.Request(0)
	assert.Equal(t, int32(24000), primary.ThinkingBudget)
	assert.Contains(t, primary.System, "台灣/亞洲科技晚報")
	assert.Contains(t, primary.Prompt, "台積電法說會")
	assert.Contains(t, model.Request(1).Prompt, "Taiwan Tech")
}

func TestGeneratePostReportSplitsDelimiter(t *testing.T) {
	model := llmtest.NewModel(
		llmtest.Text("[🇺🇸 全球財經早報] Fed\n---IMAGE_PROMPT---\nWall Street at dawn --ar 16:9"),
	)
	svc, _, _ := newTestService(t, model)
	morning := models.SessionMorning

	res, err := svc.GeneratePost(context.Background(), settingsFor(models.ModelGeminiPro), telegramRequest(""), "Fed 利率決議", &morning)
	require.NoError(t, err)

	assert.Equal(t, "[🇺🇸 全球財經早報] Fed", res.Content)
	assert.NotContains(t, res.Content, "---IMAGE_PROMPT---")
	require.NotNil(t, res.ImagePrompt)
	assert.Equal(t, "Wall Street at dawn --ar 16:9", *res.ImagePrompt)
	assert.Equal(t, 1, model.Calls())
}

func TestGeneratePostOpenAIRouting(t *testing.T) {
	geminiModel := llmtest.NewModel(llmtest.Text("unused"))
	openaiModel := llmtest.NewModel(llmtest.Text("gpt post\n---IMAGE_PROMPT---\nprompt"))
	openaiProvider := llmtest.NewProvider(openaiModel)
	svc, geminiProvider, _ := newTestService(t, geminiModel, WithOpenAI(openaiProvider))

	settings := Settings{APIKey: "gemini-key", OpenAIKey: "openai-key", Model: models.ModelGPT4o, Retry: fastRetry}
	res, err := svc.GeneratePost(context.Background(), settings, telegramRequest("NVDA"), "", nil)
	require.NoError(t, err)

	assert.Equal(t, "gpt post", res.Content)
	assert.Zero(t, geminiProvider.Connections())
	assert.Equal(t, []string{"openai-key"}, openaiProvider.Keys)
	assert.Zero(t, openaiModel.Request(0).ThinkingBudget)

	_, err = svc.GeneratePost(context.Background(), Settings{APIKey: "gemini-key", Model: models.ModelGPT4o}, telegramRequest("NVDA"), "", nil)
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func TestResolveTopic(t *testing.T) {
	model := llmtest.NewModel(llmtest.Text("  'NVDA Earnings'.  "))
	svc, _, _ := newTestService(t, model)

	topic, err := svc.ResolveTopic(context.Background(), settingsFor(models.ModelGeminiPro), models.SessionMorning, "2026年10月19日 (星期一)")
	require.NoError(t, err)
	assert.Equal(t, "NVDA Earnings", topic)

	req := model.Request(0)
	assert.True(t, req.Search)
	assert.InDelta(t, 0.2, *req.Temperature, 1e-6)
	assert.Equal(t, int32(8000), req.ThinkingBudget)
	assert.Contains(t, req.Prompt, "2026年10月19日 (星期一)")
	assert.Contains(t, req.Prompt, "美股")
}

func TestResolveTopicEmpty(t *testing.T) {
	model := llmtest.NewModel(llmtest.Text(` "" `))
	svc, _, logs := newTestService(t, model)

	_, err := svc.ResolveTopic(context.Background(), settingsFor(models.ModelGeminiPro), models.SessionEvening, "today")
	assert.ErrorIs(t, err, ErrEmptyTopic)

	topic, err := svc.ResolveTopicOrDefault(context.Background(), settingsFor(models.ModelGeminiPro), models.SessionEvening, "today")
	require.NoError(t, err)
	assert.Equal(t, DefaultTopic, topic)
	assert.Equal(t, 1, logs.FilterMessage("Topic resolution failed, using default topic").Len())
}

func TestResolveTopicOrDefaultKeepsCredentialError(t *testing.T) {
	svc, _, _ := newTestService(t, llmtest.NewModel(llmtest.Text("NVDA")))

	_, err := svc.ResolveTopicOrDefault(context.Background(), Settings{}, models.SessionMorning, "today")
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func TestResolveTopicCancelled(t *testing.T) {
	model := llmtest.NewModel(llmtest.Fail(llm.ErrOverloaded))
	svc, _, _ := newTestService(t, model)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.ResolveTopicOrDefault(ctx, settingsFor(models.ModelGeminiPro), models.SessionMorning, "today")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, model.Calls())
}

func TestFetchTrendingTopics(t *testing.T) {
	model := llmtest.NewModel(llmtest.Text("NVIDIA 🚀; 台積電 🏗️; 日圓 💴"))
	svc, _, _ := newTestService(t, model)

	topics := svc.FetchTrendingTopics(context.Background(), settingsFor(models.ModelGeminiPro), "today")
	assert.Equal(t, []string{"NVIDIA 🚀", "台積電 🏗️", "日圓 💴"}, topics)

	req := model.Request(0)
	assert.Equal(t, models.ModelGeminiFlash3, req.Model)
	assert.InDelta(t, 0.5, *req.Temperature, 1e-6)
	assert.Zero(t, req.ThinkingBudget)
}

func TestFetchTrendingTopicsFallback(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		reply    llmtest.Reply
	}{
		{"upstream error", settingsFor(models.ModelGeminiPro), llmtest.Fail(llm.ErrOverloaded)},
		{"empty reply", settingsFor(models.ModelGeminiPro), llmtest.Text(" ; ")},
		{"missing key", Settings{}, llmtest.Text("unused")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := llmtest.NewModel(tt.reply)
			svc, _, logs := newTestService(t, model)

			topics := svc.FetchTrendingTopics(context.Background(), tt.settings, "today")
			assert.Equal(t, FallbackTopics, topics)
			assert.LessOrEqual(t, model.Calls(), 1)
			assert.Equal(t, 1, logs.FilterMessage("Failed to fetch trending topics, using fallback").Len())
		})
	}
}

func TestDateLabel(t *testing.T) {
	svc, _, _ := newTestService(t, llmtest.NewModel())
	assert.Equal(t, "2026年10月19日 (星期一)", svc.DateLabel())
}
