// Package llm is the boundary to hosted generative text APIs.
package llm

import (
	"context"

	"github.com/xaenox/insight-bot/internal/models"
)

// Request is one text generation call.
type Request struct {
	Model models.ModelChoice
	// System is the system instruction. Optional.
	System string
	Prompt string
	// Search enables web-search grounding where the backend supports it.
	Search      bool
	Temperature *float32
	// ThinkingBudget is the deliberation token budget. Zero sends none.
	ThinkingBudget int32
}

// WebSource is the web page behind a grounding citation.
type WebSource struct {
	Title string
	URI   string
}

// Citation is one grounding entry. Web is nil for non-web citations.
type Citation struct {
	Web *WebSource
}

// Response is the text of a call plus any grounding citations.
type Response struct {
	Text      string
	Citations []Citation
}

// Model generates text.
type Model interface {
	Generate(ctx context.Context, req *Request) (*Response, error)
}

// Provider opens a Model for an API key.
type Provider interface {
	Connect(ctx context.Context, apiKey string) (Model, error)
}

// Temperature returns a pointer suitable for Request.Temperature.
func Temperature(t float32) *float32 {
	return &t
}
