package models

import "time"

// GenerationRequest holds the user-selected parameters of one post.
type GenerationRequest struct {
	Topic        string       `json:"topic"`
	TargetFormat TargetFormat `json:"targetFormat"`
	Tone         Tone         `json:"tone"`
	VisualStyle  VisualStyle  `json:"visualStyle"`
	Model        ModelChoice  `json:"model"`
}

// GroundingSource is a web page cited by a search-grounded response.
type GroundingSource struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// GenerationResult is the output of one successful generation. It is never
// mutated after it is returned.
type GenerationResult struct {
	Content      string            `json:"content"`
	ImagePrompt  *string           `json:"imagePrompt,omitempty"`
	Sources      []GroundingSource `json:"sources"`
	Timestamp    string            `json:"timestamp"`
	TargetFormat TargetFormat      `json:"targetFormat"`
}

// HasImagePrompt reports whether an image prompt was produced.
func (r *GenerationResult) HasImagePrompt() bool {
	return r.ImagePrompt != nil && *r.ImagePrompt != ""
}

// HistoryItem is a stored generation shown in history views.
type HistoryItem struct {
	ID        string           `json:"id"`
	ChatID    int64            `json:"chatId,omitempty"`
	Topic     string           `json:"topic"`
	CreatedAt time.Time        `json:"createdAt"`
	Result    GenerationResult `json:"result"`
}

// Preferences are the per-chat defaults of the bot front-end.
type Preferences struct {
	ChatID       int64        `json:"chatId"`
	Model        ModelChoice  `json:"model"`
	TargetFormat TargetFormat `json:"targetFormat"`
	Tone         Tone         `json:"tone"`
	VisualStyle  VisualStyle  `json:"visualStyle"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// DefaultPreferences returns the defaults used before a chat changes anything.
func DefaultPreferences(chatID int64, model ModelChoice) *Preferences {
	return &Preferences{
		ChatID:       chatID,
		Model:        model,
		TargetFormat: FormatTelegram,
		Tone:         ToneProfessional,
		VisualStyle:  StyleEditorial,
	}
}

// Request builds a generation request for topic from the preferences.
func (p *Preferences) Request(topic string) GenerationRequest {
	return GenerationRequest{
		Topic:        topic,
		TargetFormat: p.TargetFormat,
		Tone:         p.Tone,
		VisualStyle:  p.VisualStyle,
		Model:        p.Model,
	}
}
