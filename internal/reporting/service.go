package reporting

import (
	"context"
	"errors"
	"strings"
	"time"

	"screening-agent/internal/candidates"
	"screening-agent/internal/interview"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// SessionSource lists sessions, newest first. *interview.Registry satisfies it.
type SessionSource interface {
	List(ctx context.Context) ([]interview.Session, error)
}

// CandidateSource looks up candidate status. It may be nil.
type CandidateSource interface {
	Get(ctx context.Context, id string) (candidates.Candidate, error)
}

type Service struct {
	sessions   SessionSource
	candidates CandidateSource
	staleTTL   time.Duration
	clock      func() time.Time
}

func NewService(sessions SessionSource, cands CandidateSource, staleTTL time.Duration) *Service {
	return &Service{sessions: sessions, candidates: cands, staleTTL: staleTTL, clock: time.Now}
}

// RecruiterStatus maps a call status and candidate status to the label shown
// to recruiters. A completed call or screening always reads as attended.
func RecruiterStatus(last interview.CallStatus, cand candidates.Status) string {
	switch {
	case last == interview.CallStatusCompleted || cand == candidates.StatusScreeningCompleted:
		return StatusAttended
	case last.Terminal():
		return StatusNeedCallBack
	case cand == candidates.StatusCallbackReceived:
		return StatusCallBackRequired
	case last != "":
		return StatusInProgress
	default:
		return StatusNoResponse
	}
}

func (s *Service) candidateStatus(ctx context.Context, id string) candidates.Status {
	if s.candidates == nil || id == "" {
		return ""
	}
	c, err := s.candidates.Get(ctx, id)
	if err != nil {
		return ""
	}
	return c.Status
}

func (s *Service) View(ctx context.Context, sess interview.Session) SessionView {
	last := sess.EffectiveCallStatus(s.clock().UTC(), s.staleTTL)
	return SessionView{
		SessionID:        sess.ID,
		JobID:            sess.JobID,
		JobTitle:         sess.JobTitle,
		CandidateID:      sess.CandidateID,
		CandidateName:    sess.CandidateName,
		CandidatePhone:   sess.CandidatePhone,
		Stage:            sess.Stage,
		Phase:            sess.Phase,
		Completed:        sess.Completed,
		CallInProgress:   sess.CallInProgress && !last.Terminal(),
		LastCallStatus:   last,
		RecruiterStatus:  RecruiterStatus(last, s.candidateStatus(ctx, sess.CandidateID)),
		Answered:         answered(sess.CompletedQA),
		Recommendation:   sess.Recommendation,
		ProviderUsed:     sess.ProviderUsed,
		HandoffRequested: sess.HandoffRequested,
		CreatedAt:        sess.CreatedAt,
		UpdatedAt:        sess.UpdatedAt,
	}
}

func (s *Service) Sessions(ctx context.Context, f SessionFilter) ([]SessionView, error) {
	if s.sessions == nil {
		return nil, errors.New("reporting: session source not configured")
	}
	all, err := s.sessions.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]SessionView, 0, len(all))
	for _, sess := range all {
		if f.JobID != "" && sess.JobID != f.JobID {
			continue
		}
		out = append(out, s.View(ctx, sess))
	}
	return out, nil
}

// Summary aggregates sessions created inside r. A zero range covers all time.
func (s *Service) Summary(ctx context.Context, r TimeRange) (ScreeningSummary, error) {
	if !r.From.IsZero() && !r.To.IsZero() && !r.To.After(r.From) {
		return ScreeningSummary{}, ErrInvalidRequest
	}
	if s.sessions == nil {
		return ScreeningSummary{}, errors.New("reporting: session source not configured")
	}
	all, err := s.sessions.List(ctx)
	if err != nil {
		return ScreeningSummary{}, err
	}

	now := s.clock().UTC()
	var out ScreeningSummary
	for _, sess := range all {
		if !r.From.IsZero() && sess.CreatedAt.Before(r.From) {
			continue
		}
		if !r.To.IsZero() && !sess.CreatedAt.Before(r.To) {
			continue
		}
		last := sess.EffectiveCallStatus(now, s.staleTTL)
		n := answered(sess.CompletedQA)

		out.Sessions++
		out.CallsMade += len(sess.Calls)
		out.AnswersCaptured += n
		if sess.CallInProgress && !last.Terminal() {
			out.ActiveCalls++
		}
		if n > 0 {
			out.CallsResponded++
		}
		if last.Terminal() && n == 0 {
			out.CallsNoResponse++
		}
		if sess.Completed || last.Terminal() {
			out.SessionsCompleted++
		}
		if sess.HandoffRequested {
			out.Handoffs++
		}
		switch fit(sess.Recommendation) {
		case fitStrong:
			out.StrongFit++
		case fitModerate:
			out.ModerateFit++
		case fitLow:
			out.NotYetFit++
		default:
			out.Pending++
		}
	}
	return out, nil
}

type fitBucket int

const (
	fitPending fitBucket = iota
	fitStrong
	fitModerate
	fitLow
)

func fit(rec string) fitBucket {
	rec = strings.ToLower(rec)
	switch {
	case rec == "":
		return fitPending
	case containsAny(rec, "good fit", "strong fit", "proceed"):
		return fitStrong
	case containsAny(rec, "potential", "moderate", "deeper"):
		return fitModerate
	default:
		return fitLow
	}
}

func containsAny(s string, subs ...string) bool {
	for _, x := range subs {
		if strings.Contains(s, x) {
			return true
		}
	}
	return false
}

func answered(qa []interview.QA) int {
	n := 0
	for _, x := range qa {
		if strings.TrimSpace(x.Answer) != "" {
			n++
		}
	}
	return n
}
