package reporting

import (
	"time"

	"screening-agent/internal/interview"
)

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Recruiter-facing call outcome labels.
const (
	StatusAttended         = "Attended Call"
	StatusNeedCallBack     = "Need to Call Back"
	StatusCallBackRequired = "Call Back Required"
	StatusInProgress       = "In Progress"
	StatusNoResponse       = "No Response"
)

// SessionFilter narrows session listings. Zero values match everything.
type SessionFilter struct {
	JobID string
}

// SessionView is a session as listed for recruiters, with the call status
// adjusted for stale attempts.
type SessionView struct {
	SessionID        string               `json:"session_id"`
	JobID            string               `json:"job_id,omitempty"`
	JobTitle         string               `json:"job_title"`
	CandidateID      string               `json:"candidate_id,omitempty"`
	CandidateName    string               `json:"candidate_name,omitempty"`
	CandidatePhone   string               `json:"candidate_phone,omitempty"`
	Stage            interview.Stage      `json:"stage"`
	Phase            interview.Phase      `json:"phase"`
	Completed        bool                 `json:"completed"`
	CallInProgress   bool                 `json:"call_in_progress"`
	LastCallStatus   interview.CallStatus `json:"last_call_status,omitempty"`
	RecruiterStatus  string               `json:"recruiter_status"`
	Answered         int                  `json:"answered"`
	Recommendation   string               `json:"recommendation,omitempty"`
	ProviderUsed     string               `json:"provider_used,omitempty"`
	HandoffRequested bool                 `json:"handoff_requested"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

// ScreeningSummary aggregates sessions for the recruiter dashboard.
type ScreeningSummary struct {
	Sessions          int `json:"total_candidates_screened"`
	SessionsCompleted int `json:"sessions_completed"`
	CallsMade         int `json:"calls_made"`
	CallsResponded    int `json:"calls_responded"`
	CallsNoResponse   int `json:"calls_no_response"`
	ActiveCalls       int `json:"active_calls"`
	AnswersCaptured   int `json:"total_answers_captured"`
	Handoffs          int `json:"handoffs"`

	StrongFit   int `json:"recommendation_strong_fit"`
	ModerateFit int `json:"recommendation_moderate_fit"`
	NotYetFit   int `json:"recommendation_not_yet_fit"`
	Pending     int `json:"recommendation_pending"`
}
