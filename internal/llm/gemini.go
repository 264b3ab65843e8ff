package llm

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// GeminiProvider connects to the Gemini API.
type GeminiProvider struct {
	logger *zap.Logger
}

func NewGeminiProvider(logger *zap.Logger) *GeminiProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GeminiProvider{logger: logger}
}

func (p *GeminiProvider) Connect(ctx context.Context, apiKey string) (Model, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &Gemini{client: client, logger: p.logger}, nil
}

// Gemini implements Model with Google Search grounding and thinking budgets.
type Gemini struct {
	client *genai.Client
	logger *zap.Logger
}

func (g *Gemini) Generate(ctx context.Context, req *Request) (*Response, error) {
	config := &genai.GenerateContentConfig{
		Temperature: req.Temperature,
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Search {
		config.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}
	if req.ThinkingBudget > 0 {
		config.ThinkingConfig = &genai.ThinkingConfig{
			ThinkingBudget: genai.Ptr(req.ThinkingBudget),
		}
	}

	g.logger.Debug("Calling Gemini",
		zap.String("model", string(req.Model)),
		zap.Bool("search", req.Search),
		zap.Int32("thinking_budget", req.ThinkingBudget),
		zap.Int("prompt_length", len(req.Prompt)))

	resp, err := g.client.Models.GenerateContent(ctx, string(req.Model), genai.Text(req.Prompt), config)
	if err != nil {
		return nil, err
	}
	return convertGeminiResponse(resp), nil
}

func convertGeminiResponse(resp *genai.GenerateContentResponse) *Response {
	out := &Response{}
	if resp == nil || len(resp.Candidates) == 0 {
		return out
	}

	candidate := resp.Candidates[0]
	if candidate.Content != nil {
		var sb strings.Builder
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Thought || part.Text == "" {
				continue
			}
			sb.WriteString(part.Text)
		}
		out.Text = sb.String()
	}

	if gm := candidate.GroundingMetadata; gm != nil {
		for _, chunk := range gm.GroundingChunks {
			if chunk == nil {
				continue
			}
			c := Citation{}
			if chunk.Web != nil {
				c.Web = &WebSource{Title: chunk.Web.Title, URI: chunk.Web.URI}
			}
			out.Citations = append(out.Citations, c)
		}
	}
	return out
}
