package interview

import "fmt"

// Phase is the conversation state machine node of a session.
type Phase string

const (
	PhaseStarting        Phase = "starting"
	PhaseReady           Phase = "ready"
	PhaseConsent         Phase = "consent"
	PhasePromptHandshake Phase = "prompt_handshake"
	PhaseQuestions       Phase = "questions"
	PhasePostQuestions   Phase = "post_questions_prompt"
	PhaseCandidateQnA    Phase = "candidate_qna"
	PhaseCallbackConfirm Phase = "callback_confirm"
	PhaseHandoff         Phase = "handoff"
	PhaseCompleted       Phase = "completed"
	PhaseFailed          Phase = "failed"
)

// transitions is the closed transition table. Phases missing from a row's
// value set cannot be reached from that row; handoff, completed and failed
// have no exits.
var transitions = map[Phase][]Phase{
	PhaseStarting:        {PhaseReady, PhaseFailed},
	PhaseReady:           {PhaseConsent, PhasePromptHandshake, PhaseCallbackConfirm, PhaseCompleted},
	PhaseConsent:         {PhaseQuestions, PhaseCallbackConfirm, PhaseCompleted},
	PhasePromptHandshake: {PhaseQuestions, PhaseCallbackConfirm, PhaseCompleted},
	PhaseQuestions:       {PhasePostQuestions, PhaseCallbackConfirm, PhaseHandoff, PhaseCompleted},
	PhasePostQuestions:   {PhaseCandidateQnA, PhaseCallbackConfirm, PhaseHandoff, PhaseCompleted},
	PhaseCandidateQnA:    {PhaseCallbackConfirm, PhaseHandoff, PhaseCompleted},
	PhaseCallbackConfirm: {PhaseQuestions, PhasePostQuestions, PhaseCompleted},
	PhaseHandoff:         {},
	PhaseCompleted:       {},
	PhaseFailed:          {},
}

// Phases lists every phase in declaration order.
func Phases() []Phase {
	return []Phase{
		PhaseStarting, PhaseReady, PhaseConsent, PhasePromptHandshake, PhaseQuestions,
		PhasePostQuestions, PhaseCandidateQnA, PhaseCallbackConfirm, PhaseHandoff,
		PhaseCompleted, PhaseFailed,
	}
}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	_, ok := transitions[p]
	return ok
}

// Final reports phases with no exits.
func (p Phase) Final() bool {
	return p.Valid() && len(transitions[p]) == 0
}

// CanTransition reports whether from -> to is in the table. Staying in the
// same phase is always allowed for non-final phases (a re-prompt).
func CanTransition(from, to Phase) bool {
	if from == to {
		return !from.Final()
	}
	for _, p := range transitions[from] {
		if p == to {
			return true
		}
	}
	return false
}

// ErrTransition is returned for a move outside the table.
type ErrTransition struct {
	From, To Phase
}

func (e ErrTransition) Error() string {
	return fmt.Sprintf("interview: transition %s -> %s not allowed", e.From, e.To)
}
