package generator

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/xaenox/insight-bot/internal/llm"
	"github.com/xaenox/insight-bot/internal/models"
	"github.com/xaenox/insight-bot/internal/session"
)

// DefaultTopic is used by interactive callers when resolution fails.
const DefaultTopic = "市場熱點 📈"

// ResolveTopic asks the model for the single most important topic of the
// session's market window on dateLabel.
func (s *Service) ResolveTopic(ctx context.Context, settings Settings, sess models.Session, dateLabel string) (string, error) {
	c, err := s.connect(ctx, settings, "")
	if err != nil {
		return "", err
	}

	profile := session.ProfileFor(sess)
	req := &llm.Request{
		Prompt:         topicPrompt(profile, s.cfg.Language, dateLabel),
		Search:         true,
		Temperature:    llm.Temperature(s.cfg.Temperatures.Topic),
		ThinkingBudget: thinkingBudget(c.choice, s.cfg.Budgets.Topic),
	}
	resp, err := c.generate(ctx, "resolve_topic", req)
	if err != nil {
		return "", classify("resolve topic", err)
	}

	topic := CleanTopic(resp.Text)
	if topic == "" {
		return "", ErrEmptyTopic
	}

	s.logger.Info("Resolved topic",
		zap.String("session", string(sess)),
		zap.String("topic", topic))
	return topic, nil
}

// ResolveTopicOrDefault falls back to DefaultTopic when the model returns
// nothing usable. Missing credentials and cancellation still fail.
func (s *Service) ResolveTopicOrDefault(ctx context.Context, settings Settings, sess models.Session, dateLabel string) (string, error) {
	topic, err := s.ResolveTopic(ctx, settings, sess, dateLabel)
	switch {
	case err == nil:
		return topic, nil
	case errors.Is(err, ErrEmptyTopic), errors.Is(err, ErrGenerationFailed):
		s.logger.Warn("Topic resolution failed, using default topic",
			zap.String("default", DefaultTopic),
			zap.Error(err))
		return DefaultTopic, nil
	}
	return "", err
}
