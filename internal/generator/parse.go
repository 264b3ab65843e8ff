package generator

import (
	"strings"

	"github.com/xaenox/insight-bot/internal/llm"
	"github.com/xaenox/insight-bot/internal/models"
)

// ImagePromptDelimiter separates the post from the image prompt in a response.
const ImagePromptDelimiter = "---IMAGE_PROMPT---"

// MaxTrendingTopics caps the trending suggestions.
const MaxTrendingTopics = 6

const quoteChars = "\"'“”‘’「」『』"

// SplitContent splits raw at the first delimiter. Without a delimiter the
// whole trimmed text is the content and the image prompt is nil.
func SplitContent(raw string) (string, *string) {
	before, after, found := strings.Cut(raw, ImagePromptDelimiter)
	content := strings.TrimSpace(before)
	if !found {
		return content, nil
	}
	prompt := strings.TrimSpace(after)
	return content, &prompt
}

// ExtractSources keeps web citations, deduplicated by URI in first-seen order.
func ExtractSources(citations []llm.Citation) []models.GroundingSource {
	sources := make([]models.GroundingSource, 0, len(citations))
	seen := make(map[string]bool, len(citations))
	for _, c := range citations {
		if c.Web == nil || seen[c.Web.URI] {
			continue
		}
		seen[c.Web.URI] = true
		sources = append(sources, models.GroundingSource{Title: c.Web.Title, URI: c.Web.URI})
	}
	return sources
}

// CleanTopic strips the decoration models put around a bare topic label:
// surrounding space, wrapping quotes, a leading "Topic:" and one trailing period.
func CleanTopic(raw string) string {
	s := strings.TrimSpace(raw)
	s, stripped := trimPeriod(s)
	s = trimTopicLabel(s)
	s = strings.TrimSpace(strings.Trim(s, quoteChars))
	s = trimTopicLabel(s)
	if !stripped {
		s, _ = trimPeriod(s)
	}
	return strings.TrimSpace(s)
}

func trimPeriod(s string) (string, bool) {
	for _, p := range []string{".", "。"} {
		if strings.HasSuffix(s, p) {
			return strings.TrimSpace(strings.TrimSuffix(s, p)), true
		}
	}
	return s, false
}

func trimTopicLabel(s string) string {
	const label = "topic:"
	if len(s) >= len(label) && strings.EqualFold(s[:len(label)], label) {
		return strings.TrimSpace(s[len(label):])
	}
	return s
}

// ParseTrendingTopics splits a semicolon separated list into at most
// MaxTrendingTopics clean labels.
func ParseTrendingTopics(raw string) []string {
	raw = strings.ReplaceAll(raw, "；", ";")
	var topics []string
	for _, part := range strings.Split(raw, ";") {
		t := strings.TrimSpace(part)
		t = strings.TrimSpace(strings.Trim(t, quoteChars+"[]【】()（）"))
		if t == "" {
			continue
		}
		topics = append(topics, t)
		if len(topics) == MaxTrendingTopics {
			break
		}
	}
	return topics
}
