package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/sourcegraph/conc"

	"github.com/xaenox/insight-bot/internal/models"
)

// Report holds both outcomes of SendResult. ImagePromptTried is false when
// the result had no image prompt to send.
type Report struct {
	Content          error
	ImagePrompt      error
	ImagePromptTried bool
}

// OK reports whether every attempted message was delivered.
func (r Report) OK() bool {
	return r.Content == nil && r.ImagePrompt == nil
}

// Err joins both failures, labelled by message kind.
func (r Report) Err() error {
	var errs []error
	if r.Content != nil {
		errs = append(errs, fmt.Errorf("content: %w", r.Content))
	}
	if r.ImagePrompt != nil {
		errs = append(errs, fmt.Errorf("image prompt: %w", r.ImagePrompt))
	}
	return errors.Join(errs...)
}

// FormatImagePrompt renders the image prompt message.
func FormatImagePrompt(style models.VisualStyle, prompt string) string {
	return fmt.Sprintf("🎨 建議配圖指令 (%s):\n\n`%s`", style.Label(), prompt)
}

// SendResult sends the content and, when present, the image prompt as two
// independent messages in parallel and waits for both.
func SendResult(ctx context.Context, sender Sender, target Target, result *models.GenerationResult, style models.VisualStyle) Report {
	var report Report
	if err := target.Validate(); err != nil {
		report.Content = err
		if result.HasImagePrompt() {
			report.ImagePromptTried = true
			report.ImagePrompt = err
		}
		return report
	}

	var wg conc.WaitGroup
	wg.Go(func() {
		report.Content = sender.Send(ctx, target, result.Content)
	})
	if result.HasImagePrompt() {
		report.ImagePromptTried = true
		text := FormatImagePrompt(style, *result.ImagePrompt)
		wg.Go(func() {
			report.ImagePrompt = sender.Send(ctx, target, text)
		})
	}
	wg.Wait()
	return report
}
