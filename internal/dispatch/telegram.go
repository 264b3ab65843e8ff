// Package dispatch delivers finished content to a Telegram channel.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/go-resty/resty/v2"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const (
	// DefaultEndpoint is the Telegram Bot API base URL.
	DefaultEndpoint = "https://api.telegram.org"
	// MaxMessageLength is Telegram's limit in UTF-16 code units.
	MaxMessageLength = 4096
)

// ErrConfigIncomplete is returned before any request when a target field is empty.
var ErrConfigIncomplete = errors.New("dispatch target incomplete: bot token and chat id are required")

// Target is where a message goes. Both fields are passed through unvalidated
// apart from the non-empty check.
type Target struct {
	BotToken string
	ChatID   string
}

func (t Target) Validate() error {
	if strings.TrimSpace(t.BotToken) == "" || strings.TrimSpace(t.ChatID) == "" {
		return ErrConfigIncomplete
	}
	return nil
}

// DeliveryError means Telegram answered and refused the message.
type DeliveryError struct {
	StatusCode  int
	ErrorCode   int
	Description string
}

func (e *DeliveryError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("telegram rejected message (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("telegram rejected message (status %d): %s", e.StatusCode, e.Description)
}

// TransportError means no readable answer came back: the connection failed
// or a proxy returned something that is not a Bot API response.
type TransportError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("telegram transport failed: %v", e.Err)
	}
	return fmt.Sprintf("telegram transport failed (status %d, unparseable body %q): %v", e.StatusCode, e.Body, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Sender delivers one text to a target.
type Sender interface {
	Send(ctx context.Context, target Target, text string) error
}

// Telegram posts messages through the Bot API sendMessage method.
type Telegram struct {
	client   *resty.Client
	endpoint string
	logger   *zap.Logger
}

type Option func(*Telegram)

// WithEndpoint replaces the Bot API base URL.
func WithEndpoint(endpoint string) Option {
	return func(t *Telegram) {
		if endpoint != "" {
			t.endpoint = strings.TrimRight(endpoint, "/")
		}
	}
}

// WithProxy routes requests through proxyURL.
func WithProxy(proxyURL string) Option {
	return func(t *Telegram) {
		if proxyURL != "" {
			t.client.SetProxy(proxyURL)
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(t *Telegram) {
		if d > 0 {
			t.client.SetTimeout(d)
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(t *Telegram) {
		if l != nil {
			t.logger = l
		}
	}
}

func NewTelegram(opts ...Option) *Telegram {
	t := &Telegram{
		client: resty.New().
			SetHeader("User-Agent", "insight-bot/1.0").
			SetTimeout(30 * time.Second),
		endpoint: DefaultEndpoint,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

// Send delivers text, split into several messages when it exceeds
// MaxMessageLength. It stops at the first failed part.
func (t *Telegram) Send(ctx context.Context, target Target, text string) error {
	if err := target.Validate(); err != nil {
		return err
	}

	parts := SplitMessage(text, MaxMessageLength)
	for i, part := range parts {
		if err := t.sendMessage(ctx, target, part); err != nil {
			t.logger.Error("Failed to dispatch message",
				zap.String("chat_id", target.ChatID),
				zap.Int("part", i+1),
				zap.Int("parts", len(parts)),
				zap.Error(err))
			return err
		}
	}

	t.logger.Info("Message dispatched",
		zap.String("chat_id", target.ChatID),
		zap.Int("parts", len(parts)))
	return nil
}

func (t *Telegram) sendMessage(ctx context.Context, target Target, text string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.endpoint, target.BotToken)
	resp, err := t.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(sendMessageRequest{ChatID: target.ChatID, Text: text}).
		Post(url)
	if err != nil {
		// resty includes the URL, and with it the token, in the error text.
		return &TransportError{Err: redact(err, target.BotToken)}
	}

	var apiResp tgbotapi.APIResponse
	if err := json.Unmarshal(resp.Body(), &apiResp); err != nil {
		return &TransportError{
			StatusCode: resp.StatusCode(),
			Body:       truncate(resp.String(), 200),
			Err:        err,
		}
	}
	if resp.IsError() || !apiResp.Ok {
		return &DeliveryError{
			StatusCode:  resp.StatusCode(),
			ErrorCode:   apiResp.ErrorCode,
			Description: apiResp.Description,
		}
	}
	return nil
}

// SplitMessage cuts text into parts of at most limit UTF-16 code units,
// preferring line boundaries.
func SplitMessage(text string, limit int) []string {
	if utf16Len(text) <= limit {
		return []string{text}
	}

	var parts []string
	var current strings.Builder
	size := 0
	flush := func() {
		if p := strings.TrimRight(current.String(), "\n"); p != "" {
			parts = append(parts, p)
		}
		current.Reset()
		size = 0
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		n := utf16Len(line)
		if size+n > limit {
			flush()
		}
		if n <= limit {
			current.WriteString(line)
			size += n
			continue
		}
		for _, r := range line {
			rn := utf16.RuneLen(r)
			if size+rn > limit {
				flush()
			}
			current.WriteRune(r)
			size += rn
		}
	}
	flush()
	return parts
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }

func redact(err error, token string) error {
	if token == "" || !strings.Contains(err.Error(), token) {
		return err
	}
	return &redactedError{msg: strings.ReplaceAll(err.Error(), token, "<token>"), err: err}
}
