package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"screening-agent/internal/faults"
)

const (
	defaultModel = "gemini-2.5-flash"
	probeTTL     = 30 * time.Second
)

// Gemini is a Generator backed by the Gemini API.
type Gemini struct {
	client  *genai.Client
	model   string
	timeout time.Duration

	mu       sync.Mutex
	probedAt time.Time
	probeOK  bool
	clock    func() time.Time
}

// NewGemini returns a nil Generator and nil error when apiKey is empty, so the
// caller can wire the scripted path without special-casing.
func NewGemini(ctx context.Context, apiKey, model string, timeout time.Duration) (*Gemini, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Gemini{client: client, model: model, timeout: timeout, clock: time.Now}, nil
}

func (g *Gemini) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}

func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	if g == nil || g.client == nil {
		return "", faults.Provider("gemini", errors.New("not configured"))
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return "", errors.New("llm: prompt must not be empty")
	}

	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(req.Temperature)
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = req.MaxTokens
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", faults.Provider("gemini", err)
	}

	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(text)
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", faults.Provider("gemini", errors.New("empty response"))
	}
	return out, nil
}

// Healthy looks the configured model up, caching the answer briefly so the
// per-turn auto mode does not add a round trip to every webhook.
func (g *Gemini) Healthy(ctx context.Context) bool {
	if g == nil || g.client == nil {
		return false
	}
	g.mu.Lock()
	now := g.clock()
	if !g.probedAt.IsZero() && now.Sub(g.probedAt) < probeTTL {
		ok := g.probeOK
		g.mu.Unlock()
		return ok
	}
	g.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, err := g.client.Models.Get(ctx, g.model, nil)

	g.mu.Lock()
	g.probedAt = now
	g.probeOK = err == nil
	g.mu.Unlock()
	return err == nil
}
