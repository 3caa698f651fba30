package interview

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestExtractSkillsDefaults(t *testing.T) {
	got := ExtractSkills("Accountant", "Excel")
	if strings.Join(got, ",") != "linux administration,shell scripting,troubleshooting" {
		t.Fatalf("unexpected defaults %v", got)
	}
	got = ExtractSkills("Networking and Security", "")
	if len(got) != 2 || got[0] != "networking" || got[1] != "security" {
		t.Fatalf("unexpected skills %v", got)
	}
}

func TestPlanFallsBackOnGeneratorError(t *testing.T) {
	p := &Planner{Gen: &fakeGen{err: errors.New("quota")}}
	plan := p.Plan(context.Background(), "SRE", "jd", "resume", []string{"networking"})
	if len(plan) != 4 || plan[0] != OpeningQuestion {
		t.Fatalf("unexpected plan %v", plan)
	}
	for _, q := range plan[1:] {
		if !strings.Contains(q, "networking") {
			t.Fatalf("fallback question missing skill: %q", q)
		}
	}
}

func TestNormalizeQuestionDropsCompound(t *testing.T) {
	if q := normalizeQuestion("Do you use Go? And also Rust?"); q != "Do you use Go?" {
		t.Fatalf("got %q", q)
	}
	if q := normalizeQuestion("Tell me about CI and/or CD"); q != "" {
		t.Fatalf("and/or must be rejected, got %q", q)
	}
	if q := normalizeQuestion("Tell me about on-call"); q != "Tell me about on-call?" {
		t.Fatalf("got %q", q)
	}
}

func TestFallbackRecommendation(t *testing.T) {
	qa := []QA{{"a", "x"}, {"b", "y"}, {"c", " "}}
	if got := FallbackRecommendation(qa); !strings.HasPrefix(got, "Recommendation: Potential fit") {
		t.Fatalf("got %q", got)
	}
	qa = append(qa, QA{"d", "z"}, QA{"e", "w"})
	if got := FallbackRecommendation(qa); !strings.HasPrefix(got, "Recommendation: Good fit") {
		t.Fatalf("got %q", got)
	}
	if got := FallbackRecommendation(nil); !strings.HasPrefix(got, "Recommendation: Insufficient") {
		t.Fatalf("got %q", got)
	}
}

func TestFallbackSummary(t *testing.T) {
	if got := FallbackSummary("- Build APIs\n\n• Own uptime\nThird line"); got != "Build APIs Own uptime" {
		t.Fatalf("got %q", got)
	}
	if got := FallbackSummary("   "); got != DefaultJobSummary {
		t.Fatalf("got %q", got)
	}
}

func TestFirstName(t *testing.T) {
	if got := FirstName("\nJohn O'Neil\nEngineer"); got != "John" {
		t.Fatalf("got %q", got)
	}
	if got := FirstName("A very long first line that is clearly a sentence and not a name at all"); got != "" {
		t.Fatalf("got %q", got)
	}
}
