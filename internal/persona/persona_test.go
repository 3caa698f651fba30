package persona

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultsAndFallbackKey(t *testing.T) {
	c := Defaults("Acme", "Alex", "standard")
	if p := c.Get("ADAM"); !p.PromptDriven || p.VoiceID != "pNInz6obpgDQGcFmaJgB" {
		t.Fatalf("unexpected adam %+v", p)
	}
	if p := c.Get("nobody"); p.Key != ProfileStandard || p.PromptDriven {
		t.Fatalf("expected standard default, got %+v", p)
	}
	if p := c.Get("sara"); p.FallbackVoice != "Polly.Joanna" {
		t.Fatalf("unexpected sara fallback %q", p.FallbackVoice)
	}
}

func TestRender(t *testing.T) {
	got := Render("Hi {first_name}, {agent_name} from {company} about {job_title}.", Values{AgentName: "Sara", Company: "Acme"})
	if got != "Hi there, Sara from Acme about this position." {
		t.Fatalf("got %q", got)
	}
}

func TestLoadOverlaysYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scripts.yaml")
	body := `
script:
  wrap_up: "Custom wrap up."
profiles:
  sara:
    assistant_name: Sarah
  maya:
    assistant_name: Maya
    voice_id: v-maya
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := Load(path, Defaults("Acme", "Alex", "sara"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p := c.Get("sara"); p.AssistantName != "Sarah" || p.VoiceID != "21m00Tcm4TlvDq8ikWAM" {
		t.Fatalf("overlay lost defaults: %+v", p)
	}
	if p := c.Get("standard"); p.Script.WrapUp != "Custom wrap up." || p.Script.Intro == "" {
		t.Fatalf("global script overlay wrong: %+v", p.Script)
	}
	if p := c.Get("maya"); p.Key != "maya" || p.VoiceID != "v-maya" || p.Script.ConsentNo == "" {
		t.Fatalf("new profile not derived from standard: %+v", p)
	}
}

func TestSystemPromptFor(t *testing.T) {
	p := Defaults("Acme", "", "").Get("adam")
	out := p.SystemPromptFor(PromptValues{Company: "Acme", MustAsk: []string{"Q1?", "Q2?"}})
	if !strings.Contains(out, "You are Adam") || !strings.Contains(out, "- Q2?") || !strings.Contains(out, "Not provided") {
		t.Fatalf("unexpected prompt %q", out)
	}
}
