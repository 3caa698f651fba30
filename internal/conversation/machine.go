// Package conversation advances a session's phase one webhook at a time and
// decides what the candidate hears next.
package conversation

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"screening-agent/internal/handoff"
	"screening-agent/internal/interview"
	"screening-agent/internal/persona"
	"screening-agent/internal/reply"
	"screening-agent/internal/voicemail"
	"screening-agent/pkg/logger"
)

// Action is what the telephony leg does after the reply is spoken.
type Action string

const (
	ActionGather     Action = "gather"
	ActionListen     Action = "listen"
	ActionHangup     Action = "hangup"
	ActionConference Action = "conference"
)

// MaxSilentRounds is how many empty gathers end a call as unanswered.
const MaxSilentRounds = 4

const (
	notReadyText      = "I'm sorry, this screening is not ready yet. Please try again later."
	qnaPromptText     = "Absolutely. Please go ahead with your question."
	qnaRepromptText   = "Do you have any questions before we close? Please say yes or no."
	handoffFailedText = "I'm unable to connect right now, but our manager will call you back shortly."
	callbackAskText   = "Hi {first_name}, thanks for calling back. Are you calling about the {job_title} position?"
	callbackYesText   = "Great, thanks for confirming."
	callbackNoText    = "No problem. Thank you for your time. If needed, please call us again regarding the {job_title} position."
	callbackRetryText = "Just to confirm, are you calling about the {job_title} position? Please say yes to continue."
)

// Turn is one webhook delivery for a live leg.
type Turn struct {
	CallID     string
	Speech     string
	Digits     string
	AnsweredBy string
}

func (t Turn) utterance() string {
	if s := strings.TrimSpace(t.Speech); s != "" {
		return s
	}
	return strings.TrimSpace(t.Digits)
}

// Reply is the machine's decision for one turn.
type Reply struct {
	Text     string
	Action   Action
	Room     string
	Profile  persona.Profile
	Provider string
	Reason   string

	// Finalized is set on the turn that completed the session.
	Finalized bool
	// Missed marks a call that reached voicemail.
	Missed bool
	// HandoffRequested is set on the turn that first asked for a human.
	HandoffRequested bool
}

// Bridger connects the operator into a conference room.
type Bridger interface {
	Connect(ctx context.Context, sessionID string) (room, callID string, err error)
}

// Machine holds the collaborators of the state machine. Open, Advance and
// Silence mutate the session they are given and are meant to run inside the
// registry's per-session Update.
type Machine struct {
	Router   *reply.Router
	Policy   *handoff.Policy
	Bridge   Bridger
	Planner  *interview.Planner
	Personas *persona.Catalog
	Log      *slog.Logger
	Clock    func() time.Time
}

func (m *Machine) now() time.Time {
	if m.Clock != nil {
		return m.Clock().UTC()
	}
	return time.Now().UTC()
}

func (m *Machine) logger(ctx context.Context) *slog.Logger {
	if m.Log != nil {
		return m.Log
	}
	return logger.From(ctx)
}

func (m *Machine) profile(s *interview.Session) persona.Profile {
	return m.Personas.Get(s.AgentProfile)
}

func (m *Machine) render(s *interview.Session, tpl string) string {
	p := m.profile(s)
	return persona.Render(tpl, persona.Values{
		FirstName:     s.CandidateName,
		AgentName:     p.AssistantName,
		Company:       m.Personas.Company,
		JobTitle:      s.JobTitle,
		JobSummary:    s.JobSummary,
		FirstQuestion: s.CurrentQuestion(),
		NextQuestion:  s.CurrentQuestion(),
	})
}

func (m *Machine) reply(s *interview.Session, text string, action Action) Reply {
	return Reply{Text: text, Action: action, Profile: m.profile(s)}
}

// Open handles the answer webhook: a fresh leg for an outbound call or an
// inbound callback.
func (m *Machine) Open(ctx context.Context, s *interview.Session, t Turn) Reply {
	script := m.profile(s).Script
	if s.Completed {
		return m.reply(s, m.render(s, script.Closing), ActionHangup)
	}
	if !s.Ready || !s.StartTriggered {
		return m.reply(s, notReadyText, ActionHangup)
	}
	s.TurnsThisCall = 0
	s.LastGenerated = ""
	s.Touch(t.CallID, m.now())

	if voicemail.MachineAnswered(t.AnsweredBy) {
		m.logger(ctx).Info("answering machine detected", "session_id", s.ID, "answered_by", t.AnsweredBy)
		return m.voicemail(s, t.CallID)
	}

	var text string
	switch s.Phase {
	case interview.PhaseReady:
		next := interview.PhaseConsent
		if m.profile(s).PromptDriven {
			next = interview.PhasePromptHandshake
		}
		_ = s.Transition(next)
		text = m.render(s, script.Intro)
	case interview.PhaseConsent, interview.PhasePromptHandshake:
		text = m.render(s, script.Intro)
	case interview.PhaseCallbackConfirm:
		text = m.render(s, callbackAskText)
	case interview.PhaseQuestions:
		text = "Welcome back. " + s.CurrentQuestion()
	case interview.PhasePostQuestions:
		text = "Welcome back. Before we close, do you have any questions for me?"
	case interview.PhaseCandidateQnA:
		text = "Welcome back. Please go ahead with your question."
	default:
		return m.reply(s, notReadyText, ActionHangup)
	}
	s.Say(interview.RoleInterviewer, text)
	return m.reply(s, text, ActionGather)
}

// Advance applies one transcribed utterance. A panic while computing the
// reply degrades to the scripted acknowledgment so the call never drops.
func (m *Machine) Advance(ctx context.Context, s *interview.Session, t Turn) (out Reply) {
	defer func() {
		if r := recover(); r != nil {
			m.logger(ctx).Error("conversation turn panicked", "session_id", s.ID, "phase", s.Phase, "panic", r)
			out = m.reply(s, reply.Acknowledge(s.CurrentQuestion()), ActionGather)
			out.Provider = reply.ProviderFallback
			out.Reason = "panic"
		}
	}()

	script := m.profile(s).Script
	if s.Completed {
		return m.reply(s, m.render(s, script.Closing), ActionHangup)
	}
	if !s.Ready {
		return m.reply(s, notReadyText, ActionHangup)
	}
	s.Touch(t.CallID, m.now())

	said := t.utterance()
	if said == "" {
		return m.reply(s, "", ActionListen)
	}
	first := s.TurnsThisCall == 0
	s.TurnsThisCall++
	if first && voicemail.LooksLikeGreeting(said) {
		m.logger(ctx).Info("voicemail greeting detected", "session_id", s.ID, "speech", logger.Truncate(said, 200))
		return m.voicemail(s, t.CallID)
	}
	s.Say(interview.RoleCandidate, said)

	switch s.Phase {
	case interview.PhaseReady:
		return m.Open(ctx, s, t)
	case interview.PhaseConsent, interview.PhasePromptHandshake:
		out = m.consent(s, t)
	case interview.PhaseQuestions:
		out = m.questions(ctx, s, t)
	case interview.PhasePostQuestions:
		out = m.postQuestions(ctx, s, t)
	case interview.PhaseCandidateQnA:
		out = m.candidateQnA(ctx, s, t)
	case interview.PhaseCallbackConfirm:
		out = m.callbackConfirm(s, t)
	default:
		s.Finish(interview.PhaseCompleted)
		out = m.reply(s, m.render(s, script.Closing), ActionHangup)
	}
	s.Say(interview.RoleInterviewer, out.Text)
	return out
}

// Silence handles the n-th consecutive empty gather on a leg.
func (m *Machine) Silence(ctx context.Context, s *interview.Session, callID string, n int) Reply {
	if s.Completed {
		return m.reply(s, m.render(s, m.profile(s).Script.Closing), ActionHangup)
	}
	s.Touch(callID, m.now())
	if n >= MaxSilentRounds {
		m.logger(ctx).Info("no speech after listen rounds", "session_id", s.ID, "rounds", n)
		return m.voicemail(s, callID)
	}
	return m.reply(s, "", ActionGather)
}

func (m *Machine) voicemail(s *interview.Session, callID string) Reply {
	if callID != "" {
		s.RecordCall(callID, "", interview.CallStatusNoAnswer, m.now())
	}
	if !s.LastCallStatus.Terminal() {
		s.LastCallStatus = interview.CallStatusNoAnswer
	}
	s.Finish(interview.PhaseCompleted)
	out := m.reply(s, m.render(s, m.profile(s).Script.Voicemail), ActionHangup)
	out.Finalized = true
	out.Missed = true
	return out
}

func (m *Machine) consent(s *interview.Session, t Turn) Reply {
	script := m.profile(s).Script
	switch classify(t.Speech, t.Digits) {
	case intentYes:
		_ = s.Transition(interview.PhaseQuestions)
		if s.PlanExhausted() {
			_ = s.Transition(interview.PhasePostQuestions)
			return m.reply(s, m.render(s, script.WrapUp), ActionGather)
		}
		return m.reply(s, m.render(s, script.ConsentYes), ActionGather)
	case intentNo:
		s.Finish(interview.PhaseCompleted)
		out := m.reply(s, m.render(s, script.ConsentNo), ActionHangup)
		out.Finalized = true
		return out
	default:
		return m.reply(s, m.render(s, script.ConsentRetry), ActionGather)
	}
}

func (m *Machine) questions(ctx context.Context, s *interview.Session, t Turn) Reply {
	said := t.utterance()
	switch {
	case wantsToEnd(said):
		return m.finalize(ctx, s)
	case wantsRepeat(said):
		return m.reply(s, "Sure. "+s.CurrentQuestion(), ActionGather)
	case isQuestion(said):
		return m.answer(ctx, s, said, s.CurrentQuestion())
	}

	s.RecordAnswer(said)
	if s.PlanExhausted() {
		m.recommend(ctx, s)
		_ = s.Transition(interview.PhasePostQuestions)
		return m.reply(s, m.render(s, m.profile(s).Script.WrapUp), ActionGather)
	}

	res := m.Router.Reply(ctx, reply.Request{
		Profile:        m.profile(s),
		Company:        m.Personas.Company,
		CandidateName:  s.CandidateName,
		JobTitle:       s.JobTitle,
		JobDescription: s.JobDescription,
		ResumeText:     s.ResumeText,
		Answer:         said,
		NextQuestion:   s.CurrentQuestion(),
		MustAsk:        s.QuestionPlan[s.CurrentQuestionIndex:],
		History:        s.Dialogue,
		LastReply:      s.LastGenerated,
	})
	s.LastGenerated = res.Text
	s.MarkProvider(t.CallID, res.Provider, res.Reason)
	m.logger(ctx).Debug("reply generated", "session_id", s.ID, "provider", res.Provider, "reason", res.Reason,
		"text", logger.Truncate(res.Text, 1200))
	out := m.reply(s, res.Text, ActionGather)
	out.Provider = res.Provider
	out.Reason = res.Reason
	return out
}

func (m *Machine) postQuestions(ctx context.Context, s *interview.Session, t Turn) Reply {
	said := t.utterance()
	in := classify(t.Speech, t.Digits)
	switch {
	case wantsToEnd(said) || in == intentNo:
		return m.finalize(ctx, s)
	case isQuestion(said):
		_ = s.Transition(interview.PhaseCandidateQnA)
		return m.answer(ctx, s, said, "Do you have any other questions?")
	case in == intentYes:
		_ = s.Transition(interview.PhaseCandidateQnA)
		return m.reply(s, qnaPromptText, ActionGather)
	default:
		return m.reply(s, qnaRepromptText, ActionGather)
	}
}

func (m *Machine) candidateQnA(ctx context.Context, s *interview.Session, t Turn) Reply {
	said := t.utterance()
	in := classify(t.Speech, t.Digits)
	switch {
	case wantsToEnd(said) || in == intentNo:
		return m.finalize(ctx, s)
	case in == intentYes && !isQuestion(said):
		return m.reply(s, "Please go ahead with your question.", ActionGather)
	default:
		return m.answer(ctx, s, said, "Do you have any other questions?")
	}
}

func (m *Machine) callbackConfirm(s *interview.Session, t Turn) Reply {
	switch classify(t.Speech, t.Digits) {
	case intentYes:
		if s.PlanExhausted() {
			_ = s.Transition(interview.PhasePostQuestions)
			return m.reply(s, callbackYesText+" Before we close, do you have any questions for me?", ActionGather)
		}
		_ = s.Transition(interview.PhaseQuestions)
		return m.reply(s, callbackYesText+" "+s.CurrentQuestion(), ActionGather)
	case intentNo:
		s.Finish(interview.PhaseCompleted)
		out := m.reply(s, m.render(s, callbackNoText), ActionHangup)
		out.Finalized = true
		return out
	default:
		return m.reply(s, m.render(s, callbackRetryText), ActionGather)
	}
}

// answer routes a candidate question through the handoff policy and then
// returns to follow, which is re-asked verbatim.
func (m *Machine) answer(ctx context.Context, s *interview.Session, question, follow string) Reply {
	d := m.Policy.Answer(ctx, handoff.Question{
		Text:           question,
		JobTitle:       s.JobTitle,
		JobDescription: s.JobDescription,
		Company:        m.Personas.Company,
	})
	text := d.Answer
	first := false
	if d.Handoff {
		if !s.HandoffRequested {
			s.HandoffRequested = true
			first = true
			m.logger(ctx).Info("handoff requested", "session_id", s.ID, "question", logger.Truncate(question, 300))
		}
		text = m.render(s, m.profile(s).Script.HandoffNotice)
	}
	if follow != "" {
		text = strings.TrimSpace(text + " " + follow)
	}
	out := m.reply(s, text, ActionGather)
	out.HandoffRequested = first
	return out
}

func (m *Machine) recommend(ctx context.Context, s *interview.Session) {
	if s.Recommendation == "" && m.Planner != nil {
		s.Recommendation = m.Planner.Recommend(ctx, *s)
	}
	if s.Recommendation == "" {
		s.Recommendation = interview.FallbackRecommendation(s.CompletedQA)
	}
}

// finalize ends the interview: into the operator conference when a handoff
// was requested, otherwise with the closing script.
func (m *Machine) finalize(ctx context.Context, s *interview.Session) Reply {
	m.recommend(ctx, s)
	if !s.HandoffRequested {
		s.Finish(interview.PhaseCompleted)
		out := m.reply(s, m.render(s, m.profile(s).Script.Closing), ActionHangup)
		out.Finalized = true
		return out
	}

	var (
		room string
		err  error
	)
	if m.Bridge == nil {
		err = handoff.ErrNoOperator
	} else {
		room, _, err = m.Bridge.Connect(ctx, s.ID)
	}
	if err != nil {
		m.logger(ctx).Warn("handoff bridge failed", "session_id", s.ID, "err", err)
		s.HandoffFailure = err.Error()
		s.Finish(interview.PhaseCompleted)
		out := m.reply(s, handoffFailedText, ActionHangup)
		out.Finalized = true
		return out
	}
	s.HandoffRoom = room
	s.Finish(interview.PhaseHandoff)
	out := m.reply(s, m.render(s, m.profile(s).Script.HandoffNow), ActionConference)
	out.Room = room
	out.Finalized = true
	return out
}
