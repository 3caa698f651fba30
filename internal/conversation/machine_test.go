package conversation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"screening-agent/internal/handoff"
	"screening-agent/internal/interview"
	"screening-agent/internal/llm"
	"screening-agent/internal/persona"
	"screening-agent/internal/reply"
	"screening-agent/internal/telephony"
)

var fixedNow = time.Unix(1700000000, 0).UTC()

type driftGen struct{ out string }

func (g driftGen) Generate(context.Context, llm.Request) (string, error) { return g.out, nil }

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newMachine(gen llm.Generator, bridge Bridger) *Machine {
	mode := reply.ModeScripted
	if gen != nil {
		mode = reply.ModeAI
	}
	return &Machine{
		Router:   reply.NewRouter(mode, gen, nil, quiet()),
		Policy:   &handoff.Policy{Gen: gen, Log: quiet()},
		Bridge:   bridge,
		Planner:  &interview.Planner{Log: quiet()},
		Personas: persona.Defaults("Acme", "Alex", persona.ProfileStandard),
		Log:      quiet(),
		Clock:    func() time.Time { return fixedNow },
	}
}

var plan = []string{
	"Why are you looking for new job opportunities?",
	"How many years of hands-on experience do you have with unix?",
	"Describe one real production issue you resolved involving troubleshooting.",
}

func readySession() *interview.Session {
	return &interview.Session{
		ID:             "0123456789abcdef",
		CandidateName:  "Jane",
		JobTitle:       "Site Reliability Engineer",
		JobSummary:     "Run production operations.",
		Stage:          interview.StageReady,
		Phase:          interview.PhaseReady,
		Ready:          true,
		StartTriggered: true,
		AgentProfile:   persona.ProfileStandard,
		QuestionPlan:   append([]string(nil), plan...),
		Calls: []interview.CallAttempt{{
			CallID: "CA1", Direction: interview.DirectionOutbound, Status: interview.CallStatusRinging,
			CreatedAt: fixedNow, UpdatedAt: fixedNow,
		}},
	}
}

func say(m *Machine, s *interview.Session, text string) Reply {
	return m.Advance(context.Background(), s, Turn{CallID: "CA1", Speech: text})
}

func TestInterviewReachesPostQuestions(t *testing.T) {
	m := newMachine(nil, nil)
	s := readySession()

	open := m.Open(context.Background(), s, Turn{CallID: "CA1", AnsweredBy: "human"})
	if s.Phase != interview.PhaseConsent || open.Action != ActionGather {
		t.Fatalf("expected consent gather, got phase=%s action=%s", s.Phase, open.Action)
	}
	if !strings.Contains(open.Text, "Hi Jane, this is Alex") {
		t.Fatalf("unexpected intro %q", open.Text)
	}

	r := say(m, s, "Yes, I have time.")
	if s.Phase != interview.PhaseQuestions || !strings.Contains(r.Text, plan[0]) {
		t.Fatalf("expected first question, got phase=%s text=%q", s.Phase, r.Text)
	}

	for _, a := range []string{"I was laid off last year.", "About six years.", "I fixed a disk outage on a database host."} {
		r = say(m, s, a)
	}
	if s.Phase != interview.PhasePostQuestions {
		t.Fatalf("expected post questions, got %s", s.Phase)
	}
	if len(s.CompletedQA) != 3 || s.Recommendation == "" {
		t.Fatalf("qa=%d recommendation=%q", len(s.CompletedQA), s.Recommendation)
	}
	if s.Completed || r.Action != ActionGather {
		t.Fatalf("session should stay open for candidate questions")
	}
	if s.Calls[0].Status != interview.CallStatusInProgress {
		t.Fatalf("attempt should be in progress, got %s", s.Calls[0].Status)
	}

	r = say(m, s, "No, that's all.")
	if !s.Completed || s.Phase != interview.PhaseCompleted || r.Action != ActionHangup || !r.Finalized {
		t.Fatalf("expected completed hangup, got phase=%s reply=%+v", s.Phase, r)
	}
}

func TestGeneratedReplyAlwaysCarriesNextQuestion(t *testing.T) {
	m := newMachine(driftGen{out: "Great, let's talk about something else entirely."}, nil)
	s := readySession()
	s.Phase = interview.PhaseQuestions

	r := say(m, s, "I want a bigger team.")
	if !strings.Contains(r.Text, s.QuestionPlan[s.CurrentQuestionIndex]) {
		t.Fatalf("reply %q lacks %q", r.Text, s.QuestionPlan[s.CurrentQuestionIndex])
	}
	if r.Provider != reply.ProviderAI || s.Calls[0].ProviderUsed != reply.ProviderAI {
		t.Fatalf("provider not recorded: %+v", r)
	}
}

func TestAnsweringMachineHangsUpWithoutGather(t *testing.T) {
	m := newMachine(nil, nil)
	s := readySession()
	r := m.Open(context.Background(), s, Turn{CallID: "CA1", AnsweredBy: "machine_start"})
	if r.Action != ActionHangup || !r.Missed || r.Text == "" {
		t.Fatalf("unexpected reply %+v", r)
	}
	if !s.Completed || s.Calls[0].Status != interview.CallStatusNoAnswer || s.LastCallStatus != interview.CallStatusNoAnswer {
		t.Fatalf("session not finalized as no-answer: %+v", s)
	}
}

func TestGreetingOnFirstUtteranceIsVoicemail(t *testing.T) {
	m := newMachine(nil, nil)
	s := readySession()
	m.Open(context.Background(), s, Turn{CallID: "CA1"})
	r := say(m, s, "Hi, you've reached Jane. Please leave a message after the tone.")
	if !r.Missed || r.Action != ActionHangup || len(s.CompletedQA) != 0 {
		t.Fatalf("greeting treated as answer: %+v", r)
	}
}

func TestCandidateQuestionWithoutGeneratorHandsOff(t *testing.T) {
	rec := telephony.NewRecorder()
	bridge := &handoff.Bridge{Dialer: rec, Operator: "+15550001111", From: "+15550002222", BaseURL: "https://x.test"}
	m := newMachine(nil, bridge)
	s := readySession()
	s.Phase = interview.PhaseQuestions

	r := say(m, s, "Can you guarantee a remote role?")
	if !s.HandoffRequested || !r.HandoffRequested {
		t.Fatal("handoff not requested")
	}
	if s.CurrentQuestionIndex != 0 || !strings.HasSuffix(r.Text, plan[0]) {
		t.Fatalf("question should be re-asked, got %q", r.Text)
	}
	if len(rec.Calls()) != 0 {
		t.Fatal("operator dialed before the call ended")
	}

	for _, a := range []string{"Better growth.", "Ten years.", "A kernel panic on a busy host."} {
		say(m, s, a)
	}
	r = say(m, s, "No.")
	if r.Action != ActionConference || r.Room == "" || s.Phase != interview.PhaseHandoff || !s.Completed {
		t.Fatalf("expected conference, got phase=%s reply=%+v", s.Phase, r)
	}
	calls := rec.Calls()
	if len(calls) != 1 || calls[0].To != "+15550001111" {
		t.Fatalf("operator not dialed: %+v", calls)
	}
	if s.HandoffRoom != r.Room {
		t.Fatalf("room not stored")
	}
}

func TestHandoffDialFailureStillCompletes(t *testing.T) {
	rec := telephony.NewRecorder()
	rec.Err = errors.New("carrier down")
	m := newMachine(nil, &handoff.Bridge{Dialer: rec, Operator: "+1555", BaseURL: "https://x.test"})
	s := readySession()
	s.Phase = interview.PhaseCandidateQnA
	s.CurrentQuestionIndex = len(s.QuestionPlan)
	s.HandoffRequested = true

	r := say(m, s, "Goodbye")
	if !s.Completed || s.Phase != interview.PhaseCompleted || s.HandoffFailure == "" || r.Action != ActionHangup {
		t.Fatalf("expected completed with failure reason, got phase=%s failure=%q reply=%+v", s.Phase, s.HandoffFailure, r)
	}
}

func TestConsentDeclined(t *testing.T) {
	m := newMachine(nil, nil)
	s := readySession()
	m.Open(context.Background(), s, Turn{CallID: "CA1"})
	r := say(m, s, "Not right now, sorry.")
	if !s.Completed || !r.Finalized || r.Action != ActionHangup {
		t.Fatalf("expected close, got %+v", r)
	}
}

func TestConsentUnclearRetries(t *testing.T) {
	m := newMachine(nil, nil)
	s := readySession()
	m.Open(context.Background(), s, Turn{CallID: "CA1"})
	r := say(m, s, "Who is this?")
	if s.Phase != interview.PhaseConsent || r.Action != ActionGather || s.CurrentQuestionIndex != 0 {
		t.Fatalf("expected retry, got phase=%s", s.Phase)
	}
}

func TestPromptDrivenProfileUsesHandshake(t *testing.T) {
	m := newMachine(nil, nil)
	s := readySession()
	s.AgentProfile = persona.ProfileSara
	r := m.Open(context.Background(), s, Turn{CallID: "CA1"})
	if s.Phase != interview.PhasePromptHandshake || !strings.Contains(r.Text, "this is Sara from Acme") {
		t.Fatalf("phase=%s text=%q", s.Phase, r.Text)
	}
	if r.Profile.VoiceID == "" {
		t.Fatal("expected persona voice")
	}
}

func TestCallbackResumesAtStoredIndex(t *testing.T) {
	m := newMachine(nil, nil)
	s := readySession()
	s.Phase = interview.PhaseCallbackConfirm
	s.CurrentQuestionIndex = 1

	open := m.Open(context.Background(), s, Turn{CallID: "CA1"})
	if !strings.Contains(open.Text, "thanks for calling back") {
		t.Fatalf("unexpected greeting %q", open.Text)
	}
	r := say(m, s, "Yes")
	if s.Phase != interview.PhaseQuestions || s.CurrentQuestionIndex != 1 || !strings.HasSuffix(r.Text, plan[1]) {
		t.Fatalf("phase=%s idx=%d text=%q", s.Phase, s.CurrentQuestionIndex, r.Text)
	}
}

func TestCallbackDeclined(t *testing.T) {
	m := newMachine(nil, nil)
	s := readySession()
	s.Phase = interview.PhaseCallbackConfirm
	r := m.Advance(context.Background(), s, Turn{CallID: "CA1", Digits: "2"})
	if !s.Completed || !strings.Contains(r.Text, "Site Reliability Engineer position") {
		t.Fatalf("unexpected reply %+v", r)
	}
}

func TestCompletedSessionOnlyCloses(t *testing.T) {
	m := newMachine(nil, nil)
	s := readySession()
	s.Phase = interview.PhaseCompleted
	s.Completed = true
	r := say(m, s, "Hello? Are you there?")
	if r.Action != ActionHangup || s.Phase != interview.PhaseCompleted || s.HandoffRequested {
		t.Fatalf("completed session changed: %+v", r)
	}
}

func TestSilenceRounds(t *testing.T) {
	m := newMachine(nil, nil)
	s := readySession()
	s.Phase = interview.PhaseQuestions

	if r := say(m, s, ""); r.Action != ActionListen {
		t.Fatalf("empty speech should listen, got %s", r.Action)
	}
	if r := m.Silence(context.Background(), s, "CA1", 2); r.Action != ActionGather || s.Completed {
		t.Fatalf("round 2 should keep listening")
	}
	r := m.Silence(context.Background(), s, "CA1", MaxSilentRounds)
	if r.Action != ActionHangup || !r.Missed || !s.Completed {
		t.Fatalf("expected voicemail after %d rounds, got %+v", MaxSilentRounds, r)
	}
}

func TestRepeatRequestDoesNotAdvance(t *testing.T) {
	m := newMachine(nil, nil)
	s := readySession()
	s.Phase = interview.PhaseQuestions
	s.TurnsThisCall = 1
	r := say(m, s, "Sorry, can you repeat that?")
	if s.CurrentQuestionIndex != 0 || r.Text != "Sure. "+plan[0] {
		t.Fatalf("idx=%d text=%q", s.CurrentQuestionIndex, r.Text)
	}
}

func TestPanicFallsBackToAcknowledgment(t *testing.T) {
	m := newMachine(nil, nil)
	m.Router = nil
	s := readySession()
	s.Phase = interview.PhaseQuestions
	s.TurnsThisCall = 1

	r := say(m, s, "Growth.")
	if r.Action != ActionGather || r.Text != "Thanks for sharing. "+plan[1] || r.Provider != reply.ProviderFallback {
		t.Fatalf("unexpected fallback %+v", r)
	}
}
