package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIProvider connects to OpenAI or any OpenAI-compatible endpoint.
type OpenAIProvider struct {
	baseURL string
	logger  *zap.Logger
}

func NewOpenAIProvider(baseURL string, logger *zap.Logger) *OpenAIProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAIProvider{baseURL: baseURL, logger: logger}
}

func (p *OpenAIProvider) Connect(_ context.Context, apiKey string) (Model, error) {
	cfg := openai.DefaultConfig(apiKey)
	if p.baseURL != "" {
		cfg.BaseURL = p.baseURL
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), logger: p.logger}, nil
}

// OpenAI implements Model over chat completions. It has no search grounding,
// so responses never carry citations.
type OpenAI struct {
	client *openai.Client
	logger *zap.Logger
}

func (o *OpenAI) Generate(ctx context.Context, req *Request) (*Response, error) {
	if req.Search || req.ThinkingBudget > 0 {
		o.logger.Debug("Grounding and thinking budget are not supported by this backend",
			zap.String("model", string(req.Model)))
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	chatReq := openai.ChatCompletionRequest{
		Model:    string(req.Model),
		Messages: messages,
	}
	if req.Temperature != nil {
		chatReq.Temperature = *req.Temperature
	}

	resp, err := o.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai: empty choices")
	}
	return &Response{Text: strings.TrimSpace(resp.Choices[0].Message.Content)}, nil
}
