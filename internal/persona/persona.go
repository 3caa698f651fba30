package persona

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Script holds the spoken templates for one agent. Placeholders are written
// as {first_name}, {agent_name}, {company}, {job_title}, {job_summary},
// {first_question} and {next_question}.
type Script struct {
	Intro         string `yaml:"intro"`
	ConsentYes    string `yaml:"consent_yes"`
	ConsentRetry  string `yaml:"consent_retry"`
	ConsentNo     string `yaml:"consent_no"`
	NextQuestion  string `yaml:"next_question"`
	WrapUp        string `yaml:"wrap_up"`
	Closing       string `yaml:"closing"`
	Voicemail     string `yaml:"voicemail"`
	HandoffNotice string `yaml:"handoff_notice"`
	HandoffNow    string `yaml:"handoff_now"`
}

// Profile is one interviewer persona.
type Profile struct {
	Key           string `yaml:"-"`
	AssistantName string `yaml:"assistant_name"`
	VoiceID       string `yaml:"voice_id"`
	FallbackVoice string `yaml:"fallback_voice"`
	// PromptDriven agents open with a handshake and let the language service
	// phrase the turns; the rest use the scripted consent gate.
	PromptDriven bool   `yaml:"prompt_driven"`
	SystemPrompt string `yaml:"system_prompt"`
	Script       Script `yaml:"script"`
}

const (
	ProfileStandard = "standard"
	ProfileSara     = "sara"
	ProfileAdam     = "adam"
)

var defaultScript = Script{
	Intro:         "Hi {first_name}, this is {agent_name}, an AI assistant designed to help recruiters screen candidates. Do you have a few minutes to speak right now?",
	ConsentYes:    "Great, thank you. The position is {job_title}. {job_summary} This is just a quick overview so you have context for the questions I'll ask. First question: {first_question}",
	ConsentRetry:  "Just to confirm, do you have a few minutes now for a short screening conversation?",
	ConsentNo:     "No problem at all. Thank you for your time. We can reconnect at a better time.",
	NextQuestion:  "Thanks for sharing, {first_name}. {next_question}",
	WrapUp:        "That's all the questions I have for you. Thank you for sharing your responses. Our recruitment team will reach out to you. Before we close, do you have any questions for me?",
	Closing:       "Thank you for your time today. We look forward to speaking with you again. Goodbye.",
	Voicemail:     "Hello, this is {company}. We were trying to reach you regarding the {job_title} position. Please call us back at this same number at your convenience. Thank you, and we look forward to speaking with you.",
	HandoffNotice: "I do not have the full answer right now. Our hiring manager can help, and at the end of this call I will connect you to the hiring manager.",
	HandoffNow:    "I do not have the complete answer to all your questions. Please hold for a moment while I connect you to our hiring manager now.",
}

var promptScript = Script{
	Intro:      "Hi, this is {agent_name} from {company}. Is this a good time to talk?",
	ConsentYes: "Thank you. I am calling regarding the {job_title} position. Let's start the interview. {first_question}",
	Closing:    "It was great speaking with you today. Our HR team will be in touch soon to guide you through the next steps if you're shortlisted. Thank you for your time. Interview is over, HR will contact you for further details.",
}

const defaultSystemPrompt = `You are {name}, a senior interviewer at {company}. Ask one concise question at a time in a warm, professional tone.
Job context:
{jd_context}
Candidate:
{candidate_info}
Must-ask topics:
{must_ask}`

// Catalog resolves profiles by key, falling back to the default profile.
type Catalog struct {
	Company  string
	profiles map[string]Profile
	def      string
}

// Defaults returns the built-in standard, sara and adam personas.
func Defaults(company, assistantName, defaultKey string) *Catalog {
	if company == "" {
		company = "our hiring team"
	}
	if assistantName == "" {
		assistantName = "Alex"
	}
	c := &Catalog{Company: company, profiles: map[string]Profile{}, def: strings.ToLower(defaultKey)}
	c.profiles[ProfileStandard] = Profile{
		Key: ProfileStandard, AssistantName: assistantName, FallbackVoice: "Polly.Matthew",
		Script: defaultScript,
	}
	c.profiles[ProfileAdam] = Profile{
		Key: ProfileAdam, AssistantName: "Adam", VoiceID: "pNInz6obpgDQGcFmaJgB", FallbackVoice: "Polly.Matthew",
		PromptDriven: true, SystemPrompt: defaultSystemPrompt, Script: merge(defaultScript, promptScript),
	}
	c.profiles[ProfileSara] = Profile{
		Key: ProfileSara, AssistantName: "Sara", VoiceID: "21m00Tcm4TlvDq8ikWAM", FallbackVoice: "Polly.Joanna",
		PromptDriven: true, SystemPrompt: defaultSystemPrompt, Script: merge(defaultScript, promptScript),
	}
	if _, ok := c.profiles[c.def]; !ok {
		c.def = ProfileSara
	}
	return c
}

// Get returns the profile for key or the default one.
func (c *Catalog) Get(key string) Profile {
	if p, ok := c.profiles[strings.ToLower(strings.TrimSpace(key))]; ok {
		return p
	}
	return c.profiles[c.def]
}

func (c *Catalog) Default() string { return c.def }

func (c *Catalog) Keys() []string {
	out := make([]string, 0, len(c.profiles))
	for k := range c.profiles {
		out = append(out, k)
	}
	return out
}

type fileFormat struct {
	Script   Script             `yaml:"script"`
	Profiles map[string]Profile `yaml:"profiles"`
}

// Load overlays the YAML file at path on base. Unset fields keep their
// built-in values; new keys add profiles.
func Load(path string, base *Catalog) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("persona: read %s: %w", path, err)
	}
	var f fileFormat
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("persona: parse %s: %w", path, err)
	}
	out := &Catalog{Company: base.Company, profiles: map[string]Profile{}, def: base.def}
	for k, p := range base.profiles {
		p.Script = merge(p.Script, f.Script)
		out.profiles[k] = p
	}
	for k, over := range f.Profiles {
		k = strings.ToLower(k)
		p, ok := out.profiles[k]
		if !ok {
			p = out.profiles[ProfileStandard]
			p.PromptDriven = false
		}
		p.Key = k
		p.AssistantName = pick(over.AssistantName, p.AssistantName)
		p.VoiceID = pick(over.VoiceID, p.VoiceID)
		p.FallbackVoice = pick(over.FallbackVoice, p.FallbackVoice)
		p.SystemPrompt = pick(over.SystemPrompt, p.SystemPrompt)
		if over.PromptDriven {
			p.PromptDriven = true
		}
		p.Script = merge(p.Script, over.Script)
		out.profiles[k] = p
	}
	return out, nil
}

func pick(over, cur string) string {
	if strings.TrimSpace(over) != "" {
		return over
	}
	return cur
}

func merge(base, over Script) Script {
	base.Intro = pick(over.Intro, base.Intro)
	base.ConsentYes = pick(over.ConsentYes, base.ConsentYes)
	base.ConsentRetry = pick(over.ConsentRetry, base.ConsentRetry)
	base.ConsentNo = pick(over.ConsentNo, base.ConsentNo)
	base.NextQuestion = pick(over.NextQuestion, base.NextQuestion)
	base.WrapUp = pick(over.WrapUp, base.WrapUp)
	base.Closing = pick(over.Closing, base.Closing)
	base.Voicemail = pick(over.Voicemail, base.Voicemail)
	base.HandoffNotice = pick(over.HandoffNotice, base.HandoffNotice)
	base.HandoffNow = pick(over.HandoffNow, base.HandoffNow)
	return base
}
