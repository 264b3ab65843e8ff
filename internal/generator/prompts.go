package generator

import (
	"fmt"
	"strings"

	"github.com/xaenox/insight-bot/internal/models"
	"github.com/xaenox/insight-bot/internal/session"
)

// formatRules are the structural templates of each target format.
var formatRules = map[models.TargetFormat]string{
	models.FormatBlog: `FORMAT: long-form article for a blogging platform.
- Markdown is allowed: use "##" section headings and **bold** for key figures.
- Sections in order: 🏷️ 標題, 📊 盤勢焦點 (latest data), 🔍 重點解析 (key news as a list), 💡 深度洞察 (capital flows and global linkage, with reasoning depth), 🏁 投資觀點.
- Up to 1200 words.`,
	models.FormatLinkedIn: `FORMAT: professional network post.
- No markdown syntax (no #, no **). Plain paragraphs separated by blank lines.
- Open with a one-line hook, then 3-4 short paragraphs each starting with an emoji marker (📊, 🔍, 💡, 🏁).
- End with a question to the reader and 3-5 hashtags.
- Up to 300 words.`,
	models.FormatTwitter: `FORMAT: micro-blog post.
- No markdown. No bullet lists.
- One headline sentence, two or three punchy lines, at most two emojis.
- End with 2-3 hashtags.
- Up to 120 words in total.`,
	models.FormatFacebook: `FORMAT: social feed post.
- No markdown syntax. Short paragraphs with emoji section markers.
- Conversational but data-backed; close with a call to discuss.
- Up to 400 words.`,
	models.FormatTelegram: `FORMAT: chat channel blast.
- No markdown emphasis; the text is sent as plain text.
- Every section starts with an emoji: 🚀 for growth, ⚠️ for risk, 💡 for insight.
- Sections in order: 🏷️ 標題, 📊 盤勢焦點, 🔍 重點解析, 💡 深度洞察, 🏁 投資觀點.
- Use "•" as the bullet marker, never "-" or "*".
- Up to 600 words. Add hashtags on the last line (#Stock #Tech ...).`,
}

var toneRules = map[models.Tone]string{
	models.ToneProfessional: "Neutral, precise and data-driven, like a sell-side research note.",
	models.ToneBullish:      "Constructive and optimistic, highlighting catalysts and upside, while still naming the key risks.",
	models.ToneBearish:      "Cautious and risk-focused, highlighting downside scenarios and warning signs.",
	models.ToneEducational:  "Explain concepts and jargon for retail readers, with simple analogies.",
}

var styleRules = map[models.VisualStyle]string{
	models.StyleEditorial:      "editorial news illustration, clean vector shapes, muted palette",
	models.StyleCyberpunk:      "cyberpunk, neon lights, rain-soaked futuristic city, high contrast",
	models.StyleMinimalist:     "minimalist, flat colors, generous negative space, single focal object",
	models.StyleIsometric:      "3D isometric render, soft global illumination, miniature diorama",
	models.StyleAbstract:       "abstract data visualization, flowing particles and charts, dark background",
	models.StylePhotorealistic: "photorealistic, 35mm lens, natural light, shallow depth of field",
}

func formatRule(f models.TargetFormat) string {
	if r, ok := formatRules[f]; ok {
		return r
	}
	return formatRules[models.FormatTelegram]
}

func toneRule(t models.Tone) string {
	if r, ok := toneRules[t]; ok {
		return r
	}
	return toneRules[models.ToneProfessional]
}

func styleRule(s models.VisualStyle) string {
	if r, ok := styleRules[s]; ok {
		return r
	}
	return styleRules[models.StyleEditorial]
}

// dateAnchor pins "latest" to the target-timezone date.
func dateAnchor(dateLabel string) string {
	return fmt.Sprintf(`TODAY: %s.
- Treat this date as "now" when searching for the latest data.
- Never report events dated after today, and never invent figures you could not verify.`, dateLabel)
}

func postInstruction(req models.GenerationRequest, language, dateLabel string) string {
	var sb strings.Builder
	sb.WriteString("You are a world-class senior financial and technology analyst.\n")
	sb.WriteString(fmt.Sprintf("TASK: write a post in %s about %q.\n\n", language, req.Topic))
	sb.WriteString(dateAnchor(dateLabel))
	sb.WriteString("\n\nGROUNDING:\n")
	sb.WriteString("- Use Google Search for real-time prices, numbers and news, and cross-check the results.\n")
	sb.WriteString("- Cite only what the search results support.\n\n")
	sb.WriteString(formatRule(req.TargetFormat))
	sb.WriteString("\n\nTONE: ")
	sb.WriteString(toneRule(req.Tone))
	sb.WriteString("\n\nOUTPUT:\n")
	sb.WriteString("Write the post, then a line containing only ")
	sb.WriteString(ImagePromptDelimiter)
	sb.WriteString(", then one English Midjourney prompt that visualizes the post.\n")
	sb.WriteString(fmt.Sprintf("Image style: %s. End the image prompt with --ar 16:9.\n", styleRule(req.VisualStyle)))
	return sb.String()
}

func postPrompt(req models.GenerationRequest) string {
	return fmt.Sprintf("Topic: %q, Tone: %s. Use Google Search for the most recent updates.", req.Topic, req.Tone.Label())
}

func reportInstruction(profile session.Profile, language, dateLabel string) string {
	var sb strings.Builder
	sb.WriteString(dateAnchor(dateLabel))
	sb.WriteString("\n\nINSTRUCTION:\n")
	sb.WriteString(profile.Structure)
	sb.WriteString("\n\nGENERAL RULES:\n")
	sb.WriteString(fmt.Sprintf("- Language: %s.\n", language))
	sb.WriteString("- Tone: professional, concise, insightful.\n")
	sb.WriteString("- Use \"•\" bullet points for readability. No markdown emphasis.\n")
	sb.WriteString("- Keep it under 600 words.\n")
	sb.WriteString("- Add relevant hashtags on the last line (#Stock #Tech ...).\n")
	sb.WriteString("- Use Google Search so prices and percentages come from today's session.\n")
	return sb.String()
}

func reportPrompt(topic string) string {
	return fmt.Sprintf("Topic: %q\nPerform deep research on this topic and write the report.", topic)
}

func topicPrompt(profile session.Profile, language, dateLabel string) string {
	return fmt.Sprintf(`Current Date: %s.

Based on the following instruction, identify the single most critical market topic right now:
%s

CONSTRAINTS:
- Use Google Search to verify what actually happened in that trading session.
- Return ONLY the topic name as a concise string in %s, e.g. "NVIDIA財報創高", "台積電法說會", "聯準會降息一碼".
- No explanation, no quotes, no trailing punctuation.`, dateLabel, profile.Focus, language)
}

func imagePromptRequest(topic string, style models.VisualStyle, imageContext string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Create a high-quality Midjourney prompt (in English) to visualize: %q.\n", topic))
	sb.WriteString(fmt.Sprintf("Style: %s.\n", styleRule(style)))
	if imageContext != "" {
		sb.WriteString(fmt.Sprintf("Context: %s.\n", imageContext))
	}
	sb.WriteString("Structure: Subject + Environment + Art Style + Lighting + --ar 16:9.\n")
	sb.WriteString("Return ONLY the prompt string.")
	return sb.String()
}

func trendingPrompt(language, dateLabel string) string {
	return fmt.Sprintf(`Identify %d current trending keywords for today (%s) in global tech and stock markets (US, TW, JP, EU).

CRITICAL INSTRUCTIONS:
1. Output MUST be in %s, using local financial terminology.
2. Return ONLY semicolon separated strings.
3. Add 1-2 relevant emojis to each keyword.`, MaxTrendingTopics, dateLabel, language)
}
