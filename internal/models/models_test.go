package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelChoiceClassification(t *testing.T) {
	tests := []struct {
		model    ModelChoice
		thinking bool
		tier     Tier
		deep     bool
	}{
		{ModelGeminiPro, true, TierTop, true},
		{ModelGeminiFlash3, true, TierStandard, false},
		{ModelGeminiFlash25, true, TierStandard, false},
		{ModelGeminiFlash, false, TierFast, false},
		{ModelGPT4o, false, TierTop, false},
		{ModelChoice("gemini-2.5-pro-exp"), true, TierStandard, false},
		{ModelChoice("gemini-1.5-flash"), false, TierStandard, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.model), func(t *testing.T) {
			assert.Equal(t, tt.thinking, tt.model.SupportsThinking())
			assert.Equal(t, tt.tier, tt.model.Tier())
			assert.Equal(t, tt.deep, tt.model.DeepReasoning())
		})
	}
}

func TestParseOptions(t *testing.T) {
	f, err := ParseTargetFormat("LinkedIn")
	require.NoError(t, err)
	assert.Equal(t, FormatLinkedIn, f)

	f, err = ParseTargetFormat("Telegram (快訊)")
	require.NoError(t, err)
	assert.Equal(t, FormatTelegram, f)

	_, err = ParseTargetFormat("myspace")
	assert.Error(t, err)

	tone, err := ParseTone(" bearish ")
	require.NoError(t, err)
	assert.Equal(t, ToneBearish, tone)

	style, err := ParseVisualStyle("3D 等距 (3D Isometric)")
	require.NoError(t, err)
	assert.Equal(t, StyleIsometric, style)

	m, ok := ParseModelChoice("GEMINI-3-PRO-PREVIEW")
	require.True(t, ok)
	assert.Equal(t, ModelGeminiPro, m)

	m, ok = ParseModelChoice("custom-model")
	require.True(t, ok)
	assert.Equal(t, ModelChoice("custom-model"), m)
	assert.Equal(t, TierStandard, m.Tier())

	_, ok = ParseModelChoice("  ")
	assert.False(t, ok)
}

func TestPreferencesRequest(t *testing.T) {
	p := DefaultPreferences(42, ModelGeminiFlash25)
	p.Tone = ToneBullish

	req := p.Request("台積電法說會")
	assert.Equal(t, "台積電法說會", req.Topic)
	assert.Equal(t, FormatTelegram, req.TargetFormat)
	assert.Equal(t, ToneBullish, req.Tone)
	assert.Equal(t, ModelGeminiFlash25, req.Model)
}
