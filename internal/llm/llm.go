package llm

import (
	"context"
	"encoding/json"
	"strings"
)

// Request is one bounded generation call.
type Request struct {
	System      string
	Prompt      string
	Temperature float32
	MaxTokens   int32
}

// Generator produces free-form text. A nil Generator means no language
// service is configured, which is a valid runtime mode.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Prober reports whether the service is reachable right now.
type Prober interface {
	Healthy(ctx context.Context) bool
}

// StripCodeFence removes a surrounding ``` block that models like to add around JSON.
func StripCodeFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```")
	if i := strings.IndexByte(t, '\n'); i >= 0 {
		t = t[i+1:]
	}
	t = strings.TrimSuffix(strings.TrimSpace(t), "```")
	return strings.TrimSpace(t)
}

// Payload renders v as the JSON user prompt.
func Payload(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(raw)
}
