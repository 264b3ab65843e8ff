package generator

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/xaenox/insight-bot/internal/llm"
	"github.com/xaenox/insight-bot/internal/models"
	"github.com/xaenox/insight-bot/internal/session"
)

// GeneratePost writes one post about topic. With a nil sess it follows the
// request's format and tone; with a session it writes that session's deep
// report. topic defaults to req.Topic.
func (s *Service) GeneratePost(ctx context.Context, settings Settings, req models.GenerationRequest, topic string, sess *models.Session) (*models.GenerationResult, error) {
	topic = strings.TrimSpace(firstNonEmpty(topic, req.Topic))
	if topic == "" {
		return nil, ErrEmptyTopic
	}
	req.Topic = topic
	if !req.TargetFormat.Valid() {
		req.TargetFormat = models.FormatTelegram
	}

	c, err := s.connect(ctx, settings, req.Model)
	if err != nil {
		return nil, err
	}

	dateLabel := s.DateLabel()
	llmReq := &llm.Request{
		Search:      true,
		Temperature: llm.Temperature(s.postTemperature(c.choice)),
	}
	imageContext := ""
	if sess != nil {
		profile := session.ProfileFor(*sess)
		imageContext = profile.ImageContext
		llmReq.System = reportInstruction(profile, s.cfg.Language, dateLabel)
		llmReq.Prompt = reportPrompt(topic)
		llmReq.ThinkingBudget = thinkingBudget(c.choice, s.cfg.Budgets.Report)
	} else {
		llmReq.System = postInstruction(req, s.cfg.Language, dateLabel)
		llmReq.Prompt = postPrompt(req)
		llmReq.ThinkingBudget = thinkingBudget(c.choice, s.cfg.Budgets.Interactive)
	}

	s.logger.Info("Generating post",
		zap.String("topic", topic),
		zap.String("model", string(c.choice)),
		zap.String("format", string(req.TargetFormat)),
		zap.Bool("report", sess != nil),
		zap.Int32("thinking_budget", llmReq.ThinkingBudget))

	resp, err := c.generate(ctx, "generate_post", llmReq)
	if err != nil {
		return nil, classify("generate post", err)
	}
	if strings.TrimSpace(resp.Text) == "" {
		return nil, classify("generate post", errEmptyResponse)
	}

	content, imagePrompt := SplitContent(resp.Text)
	if imagePrompt == nil || *imagePrompt == "" {
		imagePrompt = s.generateImagePrompt(ctx, c, topic, req.VisualStyle, imageContext)
	}

	return &models.GenerationResult{
		Content:      content,
		ImagePrompt:  imagePrompt,
		Sources:      ExtractSources(resp.Citations),
		Timestamp:    s.clock.Timestamp(s.now()),
		TargetFormat: req.TargetFormat,
	}, nil
}

func (s *Service) imagePrompt(ctx context.Context, c *call, topic string, style models.VisualStyle, imageContext string) (string, error) {
	resp, err := c.generate(ctx, "generate_image_prompt", &llm.Request{
		Prompt:      imagePromptRequest(topic, style, imageContext),
		Temperature: llm.Temperature(s.cfg.Temperatures.Standard),
	})
	if err != nil {
		return "", classify("generate image prompt", err)
	}
	prompt := strings.TrimSpace(strings.Trim(strings.TrimSpace(resp.Text), "`"))
	if prompt == "" {
		return "", classify("generate image prompt", errEmptyResponse)
	}
	return prompt, nil
}

// generateImagePrompt is the best-effort secondary call of GeneratePost. A
// failure leaves the prompt nil.
func (s *Service) generateImagePrompt(ctx context.Context, c *call, topic string, style models.VisualStyle, imageContext string) *string {
	prompt, err := s.imagePrompt(ctx, c, topic, style, imageContext)
	if err != nil {
		s.logger.Warn("Image prompt generation failed",
			zap.String("topic", topic),
			zap.Error(err))
		return nil
	}
	return &prompt
}
