package persona

import (
	"fmt"
	"strings"
)

// Values fill script placeholders.
type Values struct {
	FirstName     string
	AgentName     string
	Company       string
	JobTitle      string
	JobSummary    string
	FirstQuestion string
	NextQuestion  string
}

// Render substitutes placeholders in tpl. Unknown placeholders are left as is.
func Render(tpl string, v Values) string {
	name := strings.TrimSpace(v.FirstName)
	if name == "" {
		name = "there"
	}
	role := strings.TrimSpace(v.JobTitle)
	if role == "" {
		role = "this position"
	}
	r := strings.NewReplacer(
		"{first_name}", name,
		"{agent_name}", v.AgentName,
		"{company}", v.Company,
		"{job_title}", role,
		"{job_summary}", v.JobSummary,
		"{first_question}", v.FirstQuestion,
		"{next_question}", v.NextQuestion,
	)
	return strings.Join(strings.Fields(r.Replace(tpl)), " ")
}

// PromptValues fill a persona system prompt.
type PromptValues struct {
	Company       string
	JobContext    string
	CandidateInfo string
	MustAsk       []string
}

// SystemPromptFor renders the persona's system prompt.
func (p Profile) SystemPromptFor(v PromptValues) string {
	tpl := p.SystemPrompt
	if strings.TrimSpace(tpl) == "" {
		tpl = defaultSystemPrompt
	}
	var must strings.Builder
	for i, q := range v.MustAsk {
		if i == 12 {
			break
		}
		fmt.Fprintf(&must, "- %s\n", q)
	}
	orNA := func(s string) string {
		if strings.TrimSpace(s) == "" {
			return "Not provided"
		}
		return s
	}
	r := strings.NewReplacer(
		"{name}", p.AssistantName,
		"{company}", v.Company,
		"{jd_context}", orNA(v.JobContext),
		"{candidate_info}", orNA(v.CandidateInfo),
		"{must_ask}", orNA(strings.TrimSpace(must.String())),
	)
	return r.Replace(tpl)
}
