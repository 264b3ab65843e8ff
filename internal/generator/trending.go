package generator

import (
	"context"

	"go.uber.org/zap"

	"github.com/xaenox/insight-bot/internal/llm"
	"github.com/xaenox/insight-bot/internal/retry"
)

// FallbackTopics are suggested when trending topics cannot be fetched.
var FallbackTopics = []string{
	"NVIDIA AI 領漲 🚀",
	"台積電 2330 展望 🏗️",
	"比特幣突破行情 🧡",
	"聯準會降息預期 🏦",
	"日經指數新高 🇯🇵",
	"AI 手機新趨勢 📱",
}

// FetchTrendingTopics returns up to MaxTrendingTopics current market
// keywords. It never fails: any problem yields a copy of FallbackTopics.
// The call is made once, without retries.
func (s *Service) FetchTrendingTopics(ctx context.Context, settings Settings, dateLabel string) []string {
	settings.Model = s.cfg.TrendingModel
	settings.Retry = &retry.Policy{}
	c, err := s.connect(ctx, settings, "")
	if err != nil {
		return s.fallbackTopics(err)
	}

	resp, err := c.generate(ctx, "fetch_trending", &llm.Request{
		Prompt:      trendingPrompt(s.cfg.Language, dateLabel),
		Search:      true,
		Temperature: llm.Temperature(s.cfg.Temperatures.Trending),
	})
	if err != nil {
		return s.fallbackTopics(err)
	}

	topics := ParseTrendingTopics(resp.Text)
	if len(topics) == 0 {
		return s.fallbackTopics(errEmptyResponse)
	}
	return topics
}

func (s *Service) fallbackTopics(err error) []string {
	s.logger.Warn("Failed to fetch trending topics, using fallback",
		zap.Error(err))
	return append([]string(nil), FallbackTopics...)
}
