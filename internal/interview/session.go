package interview

import (
	"strings"
	"time"
)

// Stage tracks the background initialization pipeline.
type Stage string

const (
	StageStarting       Stage = "starting"
	StageParsingResume  Stage = "parsing_resume"
	StageParsingJD      Stage = "parsing_jd"
	StageSkillMapping   Stage = "skill_mapping"
	StagePlanGeneration Stage = "interview_plan_generation"
	StageAgentInit      Stage = "agent_session_initialization"
	StageReady          Stage = "ready"
	StageFailed         Stage = "failed"
)

var stageOrder = []Stage{
	StageStarting, StageParsingResume, StageParsingJD, StageSkillMapping,
	StagePlanGeneration, StageAgentInit, StageReady,
}

// Progress returns completion percent and the per-step flags polled by the UI.
func Progress(st Stage) (int, map[Stage]bool) {
	idx := 0
	for i, s := range stageOrder {
		if s == st {
			idx = i
		}
	}
	steps := make(map[Stage]bool, len(stageOrder)-1)
	for i, s := range stageOrder[1:] {
		steps[s] = i+1 <= idx
	}
	steps[StageReady] = st == StageReady
	return idx * 100 / (len(stageOrder) - 1), steps
}

// QA is one answered plan question.
type QA struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Exchange is one dialogue line kept for generation context.
type Exchange struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

const (
	RoleInterviewer = "interviewer"
	RoleCandidate   = "candidate"

	maxDialogue     = 16
	maxDialogueText = 1400
)

// Session is one screening attempt for one candidate/job pairing. Sessions are
// never deleted; Completed is monotonic.
type Session struct {
	ID          string `json:"session_id"`
	ResumedFrom string `json:"resumed_from,omitempty"`

	CandidateID    string `json:"candidate_id,omitempty"`
	CandidateName  string `json:"candidate_name,omitempty"`
	CandidatePhone string `json:"candidate_phone,omitempty"`
	CandidateEmail string `json:"candidate_email,omitempty"`

	JobID          string   `json:"job_id,omitempty"`
	JobTitle       string   `json:"job_title"`
	JobDescription string   `json:"job_description"`
	JobSummary     string   `json:"job_summary,omitempty"`
	ResumeText     string   `json:"resume_text"`
	Skills         []string `json:"skills,omitempty"`

	Stage Stage  `json:"stage"`
	Phase Phase  `json:"phase"`
	Error string `json:"error,omitempty"`

	QuestionPlan         []string `json:"question_plan"`
	CurrentQuestionIndex int      `json:"current_question_index"`
	CompletedQA          []QA     `json:"completed_qa"`

	AgentProfile   string `json:"agent_profile,omitempty"`
	Ready          bool   `json:"ready"`
	StartTriggered bool   `json:"start_triggered"`
	Completed      bool   `json:"completed"`
	CallInProgress bool   `json:"call_in_progress"`

	LastCallStatus CallStatus    `json:"last_call_status,omitempty"`
	Recommendation string        `json:"recommendation,omitempty"`
	Calls          []CallAttempt `json:"calls"`

	HandoffRequested bool   `json:"handoff_requested"`
	HandoffRoom      string `json:"handoff_room,omitempty"`
	HandoffFailure   string `json:"handoff_failure,omitempty"`
	CallbackReceived bool   `json:"callback_received"`

	Dialogue       []Exchange `json:"dialogue,omitempty"`
	LastGenerated  string     `json:"last_generated,omitempty"`
	TurnsThisCall  int        `json:"turns_this_call,omitempty"`
	ProviderUsed   string     `json:"provider_used,omitempty"`
	ProviderReason string     `json:"provider_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy safe to hand out of the store.
func (s Session) Clone() Session {
	out := s
	out.Skills = append([]string(nil), s.Skills...)
	out.QuestionPlan = append([]string(nil), s.QuestionPlan...)
	out.CompletedQA = append([]QA(nil), s.CompletedQA...)
	out.Calls = append([]CallAttempt(nil), s.Calls...)
	out.Dialogue = append([]Exchange(nil), s.Dialogue...)
	return out
}

// CurrentQuestion is the plan entry at the current index, or "" once exhausted.
func (s *Session) CurrentQuestion() string {
	if s.CurrentQuestionIndex < 0 || s.CurrentQuestionIndex >= len(s.QuestionPlan) {
		return ""
	}
	return s.QuestionPlan[s.CurrentQuestionIndex]
}

// PlanExhausted reports whether every plan question has been asked.
func (s *Session) PlanExhausted() bool {
	return s.CurrentQuestionIndex >= len(s.QuestionPlan)
}

// Transition moves the session to phase to if the table allows it. A
// completed session never transitions.
func (s *Session) Transition(to Phase) error {
	if s.Completed && to != s.Phase {
		return ErrTransition{From: s.Phase, To: to}
	}
	if !CanTransition(s.Phase, to) {
		return ErrTransition{From: s.Phase, To: to}
	}
	s.Phase = to
	return nil
}

// Finish marks the session completed in phase (completed or handoff).
func (s *Session) Finish(phase Phase) {
	if !s.Completed {
		if CanTransition(s.Phase, phase) {
			s.Phase = phase
		} else if !s.Phase.Final() {
			s.Phase = PhaseCompleted
		}
	}
	s.Completed = true
	s.CallInProgress = false
}

// Closed reports a completed session whose outcome has been recorded. Later
// legs may still be appended but no longer change the outcome.
func (s *Session) Closed() bool { return s.Completed && s.LastCallStatus.Terminal() }

// RecordAnswer stores answer against the current question and advances the
// index. A next entry equal to the question just answered is skipped once.
func (s *Session) RecordAnswer(answer string) {
	q := s.CurrentQuestion()
	if q == "" {
		return
	}
	s.CompletedQA = append(s.CompletedQA, QA{Question: q, Answer: answer})
	s.CurrentQuestionIndex++
	if next := s.CurrentQuestion(); next != "" && sameQuestion(next, q) {
		s.CurrentQuestionIndex++
	}
	if s.CurrentQuestionIndex > len(s.QuestionPlan) {
		s.CurrentQuestionIndex = len(s.QuestionPlan)
	}
}

func sameQuestion(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// Say appends a dialogue line, keeping the most recent entries.
func (s *Session) Say(role, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if len(text) > maxDialogueText {
		text = text[:maxDialogueText]
	}
	s.Dialogue = append(s.Dialogue, Exchange{Role: role, Text: text})
	if len(s.Dialogue) > maxDialogue {
		s.Dialogue = append([]Exchange(nil), s.Dialogue[len(s.Dialogue)-maxDialogue:]...)
	}
}

// Attempt returns the attempt with callID, or nil.
func (s *Session) Attempt(callID string) *CallAttempt {
	for i := range s.Calls {
		if s.Calls[i].CallID == callID {
			return &s.Calls[i]
		}
	}
	return nil
}

// ActiveAttempt returns the most recent non-terminal attempt, or nil.
func (s *Session) ActiveAttempt() *CallAttempt {
	for i := len(s.Calls) - 1; i >= 0; i-- {
		if !s.Calls[i].Status.Terminal() {
			return &s.Calls[i]
		}
	}
	return nil
}

// RecordCall appends a new attempt or, for a known callID, updates only its
// status and timestamp. The first terminal status of an attempt is final. It
// reports whether an attempt was created.
func (s *Session) RecordCall(callID, to string, status CallStatus, now time.Time) bool {
	if a := s.Attempt(callID); a != nil {
		if a.Status.Terminal() {
			return false
		}
		if status != "" {
			a.Status = status
		}
		a.UpdatedAt = now
		return false
	}
	s.Calls = append(s.Calls, CallAttempt{
		CallID:    callID,
		Direction: DirectionOutbound,
		To:        to,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	})
	return true
}

// Touch refreshes a live attempt's timestamp and promotes pre-answer statuses
// to in-progress. Terminal attempts are left alone.
func (s *Session) Touch(callID string, now time.Time) {
	a := s.Attempt(callID)
	if a == nil || a.Status.Terminal() {
		return
	}
	switch a.Status {
	case "", CallStatusInitiated, CallStatusQueued, CallStatusRinging, CallStatusAnswered:
		a.Status = CallStatusInProgress
	}
	a.UpdatedAt = now
}

// MarkProvider records which reply path served the latest turn on callID.
func (s *Session) MarkProvider(callID, provider, reason string) {
	s.ProviderUsed = provider
	s.ProviderReason = reason
	if a := s.Attempt(callID); a != nil {
		a.ProviderUsed = provider
		a.ProviderReason = reason
	}
}

// EffectiveCallStatus is LastCallStatus adjusted for stale attempts.
func (s *Session) EffectiveCallStatus(now time.Time, ttl time.Duration) CallStatus {
	if len(s.Calls) == 0 {
		return s.LastCallStatus
	}
	last := s.Calls[len(s.Calls)-1]
	if st := last.EffectiveStatus(now, ttl); st != last.Status {
		return st
	}
	return s.LastCallStatus
}
