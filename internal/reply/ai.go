package reply

import (
	"context"

	"screening-agent/internal/llm"
	"screening-agent/internal/persona"
)

// AI asks the language service to acknowledge the answer and ask the next
// question.
type AI struct {
	Gen llm.Generator
}

func (a *AI) Name() string { return ProviderAI }

func (a *AI) Respond(ctx context.Context, req Request) (string, error) {
	system := req.Profile.SystemPromptFor(persona.PromptValues{
		Company:       req.Company,
		JobContext:    clip(req.JobDescription, 4000),
		CandidateInfo: clip(req.ResumeText, 4000),
		MustAsk:       req.MustAsk,
	})
	history := req.History
	if len(history) > 8 {
		history = history[len(history)-8:]
	}
	return a.Gen.Generate(ctx, llm.Request{
		System: system,
		Prompt: llm.Payload(map[string]any{
			"candidate_message":    clip(req.Answer, 700),
			"conversation_history": history,
			"job_title":            req.JobTitle,
			"candidate_name":       req.CandidateName,
			"next_question":        req.NextQuestion,
			"rules": []string{
				"Write one or two short spoken sentences",
				"First acknowledge the answer naturally without scoring it",
				"Then ask next_question exactly as provided, without edits",
			},
		}),
		Temperature: 0.35,
		MaxTokens:   140,
	})
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
