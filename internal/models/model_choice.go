package models

import "strings"

// ModelChoice identifies the generative model used for a call.
type ModelChoice string

const (
	ModelGeminiPro     ModelChoice = "gemini-3-pro-preview"
	ModelGeminiFlash3  ModelChoice = "gemini-3-flash-preview"
	ModelGeminiFlash25 ModelChoice = "gemini-2.5-flash"
	ModelGeminiFlash   ModelChoice = "gemini-flash-latest"
	ModelGPT4o         ModelChoice = "gpt-4o"
	ModelGPT4oMini     ModelChoice = "gpt-4o-mini"
)

// Tier ranks a model by output quality. Higher tiers are slower.
type Tier int

const (
	TierFast Tier = iota
	TierStandard
	TierTop
)

type modelInfo struct {
	label    string
	tier     Tier
	thinking bool
}

var modelCatalogue = map[ModelChoice]modelInfo{
	ModelGeminiPro:     {label: "🧠 3 Pro 深度模式", tier: TierTop, thinking: true},
	ModelGeminiFlash3:  {label: "⚡ 3 Flash 現代模式", tier: TierStandard, thinking: true},
	ModelGeminiFlash25: {label: "💎 2.5 Flash 穩定模式", tier: TierStandard, thinking: true},
	ModelGeminiFlash:   {label: "🍃 2.0 Flash 極速模式", tier: TierFast},
	ModelGPT4o:         {label: "🤖 GPT-4o", tier: TierTop},
	ModelGPT4oMini:     {label: "🤖 GPT-4o mini", tier: TierFast},
}

// Models lists the catalogue in display order.
var Models = []ModelChoice{
	ModelGeminiPro, ModelGeminiFlash3, ModelGeminiFlash25, ModelGeminiFlash, ModelGPT4o, ModelGPT4oMini,
}

func (m ModelChoice) Label() string {
	if info, ok := modelCatalogue[m]; ok {
		return info.label
	}
	return "🤖 AI 模式"
}

// Tier reports the quality tier. Models outside the catalogue are standard.
func (m ModelChoice) Tier() Tier {
	if info, ok := modelCatalogue[m]; ok {
		return info.tier
	}
	return TierStandard
}

// SupportsThinking reports whether the model accepts a deliberation budget.
func (m ModelChoice) SupportsThinking() bool {
	if info, ok := modelCatalogue[m]; ok {
		return info.thinking
	}
	s := string(m)
	return strings.HasPrefix(s, "gemini-3") || strings.HasPrefix(s, "gemini-2.5")
}

// DeepReasoning is true for thinking-capable models in the top tier.
func (m ModelChoice) DeepReasoning() bool {
	return m.SupportsThinking() && m.Tier() == TierTop
}

// IsOpenAI reports whether the identifier belongs to the OpenAI-compatible family.
func (m ModelChoice) IsOpenAI() bool {
	s := string(m)
	return strings.HasPrefix(s, "gpt-") || strings.HasPrefix(s, "o1") || strings.HasPrefix(s, "o3")
}

// ParseModelChoice accepts catalogue identifiers, labels, or any non-empty custom identifier.
func ParseModelChoice(s string) (ModelChoice, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	for _, m := range Models {
		if strings.EqualFold(s, string(m)) || s == m.Label() {
			return m, true
		}
	}
	return ModelChoice(s), true
}
