package llm

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

// ErrOverloaded marks an error as a temporary capacity problem upstream.
var ErrOverloaded = errors.New("upstream model overloaded")

// IsTransientOverload reports whether err signals a 503 or an overloaded
// model, judged by HTTP status, numeric error code, or message text.
func IsTransientOverload(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrOverloaded) {
		return true
	}
	if code, ok := statusCode(err); ok && code == http.StatusServiceUnavailable {
		return true
	}
	if status, ok := statusName(err); ok && status == "UNAVAILABLE" {
		return true
	}
	msg := err.Error()
	return standalone503.MatchString(msg) || strings.Contains(strings.ToLower(msg), "overloaded")
}

// standalone503 matches 503 as its own token, not inside ids or model names.
var standalone503 = regexp.MustCompile(`(^|[^\w.\-])503([^\w.\-]|$)`)

// IsCredentialRejected reports whether the upstream refused the API key.
func IsCredentialRejected(err error) bool {
	if err == nil {
		return false
	}
	if code, ok := statusCode(err); ok && (code == http.StatusUnauthorized || code == http.StatusForbidden) {
		return true
	}
	if status, ok := statusName(err); ok && (status == "UNAUTHENTICATED" || status == "PERMISSION_DENIED") {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "API_KEY_INVALID") ||
		strings.Contains(msg, "API key not valid") ||
		strings.Contains(msg, "invalid_api_key")
}

type statusCoder interface {
	StatusCode() int
}

func statusCode(err error) (int, bool) {
	var gv genai.APIError
	if errors.As(err, &gv) {
		return gv.Code, true
	}
	var gp *genai.APIError
	if errors.As(err, &gp) && gp != nil {
		return gp.Code, true
	}
	var oe *openai.APIError
	if errors.As(err, &oe) {
		if oe.HTTPStatusCode != 0 {
			return oe.HTTPStatusCode, true
		}
		return numericCode(oe.Code)
	}
	var re *openai.RequestError
	if errors.As(err, &re) {
		return re.HTTPStatusCode, true
	}
	var sc statusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode(), true
	}
	return 0, false
}

func statusName(err error) (string, bool) {
	var gv genai.APIError
	if errors.As(err, &gv) {
		return gv.Status, true
	}
	var gp *genai.APIError
	if errors.As(err, &gp) && gp != nil {
		return gp.Status, true
	}
	return "", false
}

func numericCode(code any) (int, bool) {
	switch c := code.(type) {
	case int:
		return c, true
	case float64:
		return int(c), true
	case string:
		var n int
		if _, err := fmt.Sscanf(c, "%d", &n); err == nil {
			return n, true
		}
	}
	return 0, false
}
