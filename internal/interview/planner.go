package interview

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"screening-agent/internal/faults"
	"screening-agent/internal/llm"
)

const (
	OpeningQuestion   = "Why are you looking for new job opportunities?"
	DefaultJobSummary = "It focuses on delivering reliable, high-quality work with strong collaboration across the team."

	maxPlanQuestions = 8
	generatedCount   = 3
)

var skillBank = []string{
	"linux administration", "unix", "process management", "troubleshooting",
	"shell scripting", "production operations", "networking", "security",
}

var defaultSkills = []string{"linux administration", "shell scripting", "troubleshooting"}

// ExtractSkills returns bank skills mentioned in the job description or resume.
func ExtractSkills(jd, resume string) []string {
	text := strings.ToLower(jd + " " + resume)
	var out []string
	for _, s := range skillBank {
		if strings.Contains(text, s) {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), defaultSkills...)
	}
	return out
}

var fallbackTemplates = [][3]string{
	{
		"How many years of hands-on experience do you have with %s?",
		"What recent project demonstrates your required competency in %s?",
		"Describe one real production issue you resolved involving %s.",
	},
	{
		"Tell me about a time you delivered results using %s.",
		"Describe a project where %s was essential to success.",
		"Walk me through a critical incident you handled related to %s.",
	},
	{
		"What is the most complex work you have completed involving %s?",
		"Share an example where your work in %s directly impacted outcomes.",
		"Describe a high-pressure situation where you applied %s effectively.",
	},
}

// Planner builds a session's question plan, intro summary and final
// recommendation. Gen may be nil.
type Planner struct {
	Gen llm.Generator
	Log *slog.Logger
}

func (p *Planner) logger() *slog.Logger {
	if p.Log != nil {
		return p.Log
	}
	return slog.Default()
}

// Plan returns the opening question followed by role-specific questions.
func (p *Planner) Plan(ctx context.Context, jobTitle, jd, resume string, skills []string) []string {
	if p.Gen != nil {
		qs, err := p.generate(ctx, jobTitle, jd)
		if err == nil && len(qs) >= generatedCount {
			return capPlan(append([]string{OpeningQuestion}, qs[:generatedCount]...))
		}
		p.logger().Warn("question generation fallback", "kind", faults.Kind(err), "err", err)
	}
	return capPlan(append([]string{OpeningQuestion}, BankQuestions(skills, len(jd))...))
}

func (p *Planner) generate(ctx context.Context, jobTitle, jd string) ([]string, error) {
	out, err := p.Gen.Generate(ctx, llm.Request{
		System: "You are a domain subject matter expert relevant to the job being evaluated. " +
			"Generate high-signal screening questions that determine if a candidate can realistically perform the job. " +
			`Return a JSON object {"questions": [...]} containing exactly 3 strings.`,
		Prompt: llm.Payload(map[string]any{
			"job_title":       jobTitle,
			"job_description": truncate(jd, 7000),
			"rules": []string{
				"The opening question about why they are looking is asked separately; do not repeat it",
				"Each question addresses one topic only",
				"No compound or multi-part questions",
				"Clear, open-ended, neutral and non-leading",
			},
		}),
		Temperature: 0.9,
		MaxTokens:   260,
	})
	if err != nil {
		return nil, err
	}
	var body struct {
		Questions []string `json:"questions"`
	}
	if err := json.Unmarshal([]byte(llm.StripCodeFence(out)), &body); err != nil {
		return nil, fmt.Errorf("interview: decode generated questions: %w", err)
	}
	return enforceQuestionRules(body.Questions), nil
}

// BankQuestions fills a template set with up to three skills. seed picks the
// template set deterministically.
func BankQuestions(skills []string, seed int) []string {
	picked := append([]string(nil), skills...)
	if len(picked) == 0 {
		picked = append(picked, defaultSkills...)
	}
	for len(picked) < 3 {
		picked = append(picked, picked[len(picked)-1])
	}
	if seed < 0 {
		seed = -seed
	}
	tpl := fallbackTemplates[seed%len(fallbackTemplates)]
	qs := make([]string, 0, 3)
	for i, t := range tpl {
		qs = append(qs, fmt.Sprintf(t, picked[i]))
	}
	return enforceQuestionRules(qs)
}

var compoundJoin = regexp.MustCompile(`(?i)\?\s*(and|also|plus)\b`)

func normalizeQuestion(q string) string {
	t := strings.Join(strings.Fields(q), " ")
	if t == "" || strings.Contains(strings.ToLower(t), " and/or ") {
		return ""
	}
	if loc := compoundJoin.FindStringIndex(t); loc != nil {
		t = strings.TrimSpace(t[:loc[0]+1])
	}
	if !strings.HasSuffix(t, "?") && !strings.HasSuffix(t, ".") {
		t += "?"
	}
	return t
}

func enforceQuestionRules(in []string) []string {
	seen := map[string]bool{strings.ToLower(OpeningQuestion): true}
	var out []string
	for _, raw := range in {
		q := normalizeQuestion(raw)
		if q == "" || seen[strings.ToLower(q)] {
			continue
		}
		seen[strings.ToLower(q)] = true
		out = append(out, q)
		if len(out) >= generatedCount {
			break
		}
	}
	return out
}

func capPlan(plan []string) []string {
	if len(plan) > maxPlanQuestions {
		return plan[:maxPlanQuestions]
	}
	return plan
}

// Summary is the short spoken description of the role used in the intro.
func (p *Planner) Summary(ctx context.Context, jobTitle, jd string) string {
	jd = strings.TrimSpace(jd)
	if jd == "" {
		return DefaultJobSummary
	}
	if p.Gen != nil {
		out, err := p.Gen.Generate(ctx, llm.Request{
			System:      "Create a concise, friendly, professional one- or two-sentence spoken summary for a recruitment call intro.",
			Prompt:      fmt.Sprintf("Job title: %s\nJob description:\n%s\n\nReturn only the short summary.", jobTitle, truncate(jd, 4000)),
			Temperature: 0.3,
			MaxTokens:   90,
		})
		if err == nil && strings.TrimSpace(out) != "" {
			return strings.TrimSpace(out)
		}
		p.logger().Warn("job summary fallback", "kind", faults.Kind(err), "err", err)
	}
	return FallbackSummary(jd)
}

// FallbackSummary joins the first two meaningful lines of jd.
func FallbackSummary(jd string) string {
	var parts []string
	for _, line := range strings.Split(strings.ReplaceAll(jd, "\r", ""), "\n") {
		line = strings.Trim(line, " •\t-")
		if line != "" {
			parts = append(parts, line)
		}
		if len(parts) == 2 {
			break
		}
	}
	brief := truncate(strings.Join(parts, " "), 240)
	if brief == "" {
		return DefaultJobSummary
	}
	return brief
}

// Recommend evaluates the completed answers. It never fails.
func (p *Planner) Recommend(ctx context.Context, s Session) string {
	if p.Gen != nil {
		out, err := p.Gen.Generate(ctx, llm.Request{
			System: "You are a recruitment evaluator. Return a concise hiring recommendation.",
			Prompt: llm.Payload(map[string]any{
				"job_title":       s.JobTitle,
				"job_description": truncate(s.JobDescription, 3000),
				"resume":          truncate(s.ResumeText, 3000),
				"qa":              s.CompletedQA,
			}),
			Temperature: 0.2,
			MaxTokens:   180,
		})
		if err == nil && strings.TrimSpace(out) != "" {
			return strings.TrimSpace(out)
		}
		p.logger().Warn("recommendation fallback", "kind", faults.Kind(err), "err", err)
	}
	return FallbackRecommendation(s.CompletedQA)
}

// FallbackRecommendation grades by how many questions got a non-empty answer.
func FallbackRecommendation(qa []QA) string {
	answered := 0
	for _, x := range qa {
		if strings.TrimSpace(x.Answer) != "" {
			answered++
		}
	}
	switch {
	case answered >= 4:
		return "Recommendation: Good fit for next round based on relevant responses and communication. Proceed to recruiter review."
	case answered >= 2:
		return "Recommendation: Potential fit, but needs deeper technical evaluation in the next round."
	default:
		return "Recommendation: Insufficient evidence from call responses. Re-screen or collect more details before proceeding."
	}
}

// FirstName guesses a first name from the resume's first line.
func FirstName(resume string) string {
	for _, line := range strings.Split(strings.ReplaceAll(resume, "\r", ""), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if n := len(strings.Fields(line)); n < 1 || n > 4 || len(line) > 60 {
			return ""
		}
		cleaned := strings.Map(func(r rune) rune {
			if r == ' ' || r == '-' || r == '.' || r == '\'' || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') {
				return r
			}
			return -1
		}, line)
		if f := strings.Fields(cleaned); len(f) > 0 {
			return f[0]
		}
		return ""
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
