// Package handoff answers candidate questions when it can and bridges the
// call to a human operator when it cannot.
package handoff

import (
	"context"
	"log/slog"
	"strings"

	"screening-agent/internal/faults"
	"screening-agent/internal/llm"
)

const (
	RepeatPrompt   = "Could you please repeat your question?"
	ConnectMessage = "I want to make sure you get the most accurate answer. Let me connect you with my manager now."
)

var uncertainMarkers = []string{"I DON'T KNOW", "NOT SURE", "CANNOT ANSWER"}

// Question is a candidate's question with the context needed to answer it.
type Question struct {
	Text           string
	JobTitle       string
	JobDescription string
	Company        string
}

// Decision is the policy outcome. When Handoff is set Answer holds the
// message told to the candidate.
type Decision struct {
	Answer  string
	Handoff bool
}

// Policy decides between answering and handing off. Gen may be nil.
type Policy struct {
	Gen llm.Generator
	Log *slog.Logger
}

func (p *Policy) Answer(ctx context.Context, q Question) Decision {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return Decision{Answer: RepeatPrompt}
	}
	if p == nil || p.Gen == nil {
		return Decision{Answer: ConnectMessage, Handoff: true}
	}
	out, err := p.Gen.Generate(ctx, llm.Request{
		System: "You are a recruiting assistant on a phone screen. Answer the candidate's question in at most two short spoken sentences " +
			"using only the job description. If the answer is not in the job description, reply exactly HANDOFF.",
		Prompt: llm.Payload(map[string]any{
			"company":         q.Company,
			"job_title":       q.JobTitle,
			"job_description": clip(q.JobDescription, 4000),
			"question":        clip(text, 700),
		}),
		Temperature: 0.2,
		MaxTokens:   120,
	})
	if err != nil {
		p.logger().Warn("candidate question fallback", "kind", faults.Kind(err), "err", err)
		return Decision{Answer: ConnectMessage, Handoff: true}
	}
	out = strings.TrimSpace(out)
	if Uncertain(out) {
		return Decision{Answer: ConnectMessage, Handoff: true}
	}
	return Decision{Answer: out}
}

// Uncertain reports an empty answer or one carrying a handoff marker.
func Uncertain(answer string) bool {
	up := strings.ToUpper(strings.TrimSpace(answer))
	if up == "" || strings.HasPrefix(up, "HANDOFF") {
		return true
	}
	up = strings.ReplaceAll(up, "’", "'")
	for _, m := range uncertainMarkers {
		if strings.Contains(up, m) {
			return true
		}
	}
	return false
}

func (p *Policy) logger() *slog.Logger {
	if p.Log != nil {
		return p.Log
	}
	return slog.Default()
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
