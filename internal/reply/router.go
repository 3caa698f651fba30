package reply

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"screening-agent/internal/faults"
	"screening-agent/internal/interview"
	"screening-agent/internal/llm"
	"screening-agent/internal/persona"
)

// Mode selects which responders may serve a turn.
type Mode string

const (
	ModeScripted Mode = "scripted"
	ModeAI       Mode = "ai"
	ModeAuto     Mode = "auto"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeScripted, ModeAI, ModeAuto:
		return m, nil
	case "":
		return ModeAuto, nil
	default:
		return "", fmt.Errorf("reply: unknown mode %q", s)
	}
}

const (
	ProviderScripted = "scripted"
	ProviderAI       = "ai"
	ProviderFallback = "fallback"
)

// Request is the context for one next-question turn.
type Request struct {
	Profile        persona.Profile
	Company        string
	CandidateName  string
	JobTitle       string
	JobDescription string
	ResumeText     string
	Answer         string
	NextQuestion   string
	MustAsk        []string
	History        []interview.Exchange
	LastReply      string
}

// Result is the utterance and the path that produced it.
type Result struct {
	Text     string
	Provider string
	Reason   string
}

// Responder is one strategy in the chain.
type Responder interface {
	Name() string
	Respond(ctx context.Context, req Request) (string, error)
}

// Router picks an ordered chain of responders per turn and always returns a
// reply that contains the next question verbatim.
type Router struct {
	mode     Mode
	scripted Responder
	ai       Responder
	probe    llm.Prober
	log      *slog.Logger
}

// NewRouter builds a router. gen and probe may be nil, which forces the
// scripted path regardless of mode.
func NewRouter(mode Mode, gen llm.Generator, probe llm.Prober, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	r := &Router{mode: mode, scripted: Scripted{}, probe: probe, log: log}
	if gen != nil {
		r.ai = &AI{Gen: gen}
	}
	return r
}

func (r *Router) Mode() Mode { return r.mode }

func (r *Router) chain(ctx context.Context) ([]Responder, string) {
	switch {
	case r.mode == ModeScripted:
		return []Responder{r.scripted}, "mode_scripted"
	case r.ai == nil:
		return []Responder{r.scripted}, "ai_not_configured"
	case r.mode == ModeAI:
		return []Responder{r.ai, r.scripted}, "mode_ai"
	case r.probe != nil && !r.probe.Healthy(ctx):
		return []Responder{r.scripted}, "auto_probe_failed"
	default:
		return []Responder{r.ai, r.scripted}, "auto_probe_ok"
	}
}

// Reply runs the chain. Errors from a responder fall through to the next one;
// if every responder fails the deterministic acknowledgment is used.
func (r *Router) Reply(ctx context.Context, req Request) Result {
	chain, reason := r.chain(ctx)
	next := strings.TrimSpace(req.NextQuestion)
	for _, rs := range chain {
		text, err := rs.Respond(ctx, req)
		if err != nil {
			r.log.Warn("responder failed", "responder", rs.Name(), "kind", faults.Kind(err), "err", err)
			reason = rs.Name() + "_error"
			continue
		}
		res := Result{Text: strings.TrimSpace(text), Provider: rs.Name(), Reason: reason}
		if rs.Name() == ProviderAI {
			res = r.enforce(res, req)
		}
		if res.Text != "" {
			return res
		}
	}
	return Result{Text: Acknowledge(next), Provider: ProviderFallback, Reason: reason}
}

// enforce applies the post-conditions on generated text.
func (r *Router) enforce(res Result, req Request) Result {
	next := strings.TrimSpace(req.NextQuestion)
	if next == "" {
		return res
	}
	if !strings.Contains(res.Text, next) {
		r.log.Debug("generated reply dropped the next question")
		res.Text = Acknowledge(next)
		res.Reason = "question_missing"
		return res
	}
	if req.LastReply != "" && strings.EqualFold(strings.TrimSpace(req.LastReply), res.Text) {
		res.Text = "Thanks for clarifying. " + next
		res.Reason = "repeat_guard"
	}
	return res
}

// Acknowledge is the deterministic fallback utterance.
func Acknowledge(next string) string {
	next = strings.TrimSpace(next)
	if next == "" {
		return "Thanks for sharing."
	}
	return "Thanks for sharing. " + next
}

// Scripted renders the persona's next-question template.
type Scripted struct{}

func (Scripted) Name() string { return ProviderScripted }

func (Scripted) Respond(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.NextQuestion) == "" {
		return "", errors.New("reply: no next question")
	}
	tpl := req.Profile.Script.NextQuestion
	if tpl == "" || !strings.Contains(tpl, "{next_question}") {
		tpl = "Thanks for sharing, {first_name}. {next_question}"
	}
	return persona.Render(tpl, persona.Values{
		FirstName:    req.CandidateName,
		AgentName:    req.Profile.AssistantName,
		Company:      req.Company,
		JobTitle:     req.JobTitle,
		NextQuestion: req.NextQuestion,
	}), nil
}
