package calls

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"screening-agent/internal/audit"
	"screening-agent/internal/candidates"
	"screening-agent/internal/faults"
	"screening-agent/internal/interview"
	"screening-agent/internal/telephony"
)

var (
	ErrNoPhone      = errors.New("calls: no phone number for candidate")
	ErrCallActive   = errors.New("calls: a call is already in progress for this session")
	ErrCallNotFound = errors.New("calls: call does not belong to session")
)

// Service places, refreshes and force-ends outbound screening calls.
type Service struct {
	Registry   *interview.Registry
	Dialer     telephony.Dialer
	Gate       *telephony.DialGate
	Candidates candidates.Repository
	Activity   *audit.Service
	Finalizer  Finalizer
	Log        *slog.Logger

	// Missing lists absent telephony credentials; placement fails while
	// it is non-empty.
	Missing  []string
	From     string
	BaseURL  string
	StaleTTL time.Duration
	Clock    func() time.Time
}

func (s *Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) logger() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}

func (s *Service) hook(path, sessionID string) string {
	return s.BaseURL + path + "?session_id=" + url.QueryEscape(sessionID)
}

// Place dials the candidate for a ready, start-triggered session. to
// overrides the candidate phone; profile, when set, switches the agent
// persona before the call connects.
func (s *Service) Place(ctx context.Context, sessionID, to, profile string) (interview.Session, telephony.CallInfo, error) {
	if len(s.Missing) > 0 || s.Dialer == nil {
		return interview.Session{}, telephony.CallInfo{}, &faults.ConfigurationError{Missing: s.Missing}
	}
	sess, err := s.Registry.Get(ctx, sessionID)
	if err != nil {
		return interview.Session{}, telephony.CallInfo{}, err
	}
	if sess.Completed {
		return sess, telephony.CallInfo{}, interview.ErrCompleted
	}
	if !sess.Ready || !sess.StartTriggered {
		return sess, telephony.CallInfo{}, interview.ErrNotReady
	}
	if to = candidates.NormalizePhone(to); to == "" {
		to = sess.CandidatePhone
	}
	if to == "" {
		return sess, telephony.CallInfo{}, ErrNoPhone
	}
	if a := sess.ActiveAttempt(); a != nil && a.EffectiveStatus(s.now(), s.StaleTTL) == a.Status {
		return sess, telephony.CallInfo{}, ErrCallActive
	}

	if err := s.Gate.Acquire(ctx); err != nil {
		return sess, telephony.CallInfo{}, err
	}
	info, err := s.Dialer.PlaceCall(ctx, telephony.CallRequest{
		To:               to,
		From:             s.From,
		URL:              s.hook("/twilio/voice", sessionID),
		StatusCallback:   s.hook("/twilio/status", sessionID),
		StatusEvents:     telephony.StatusEvents,
		MachineDetection: true,
	})
	if err != nil {
		_ = s.Gate.Release(context.WithoutCancel(ctx))
		return sess, telephony.CallInfo{}, faults.Provider("twilio", err)
	}

	if _, err := s.Registry.RecordCall(ctx, sessionID, info.CallID, to, interview.CallStatusInitiated); err != nil {
		return sess, info, err
	}
	sess, err = s.Registry.Update(ctx, sessionID, func(x *interview.Session) error {
		if profile != "" {
			x.AgentProfile = profile
		}
		if a := x.Attempt(info.CallID); a != nil {
			a.From = s.From
		}
		x.MarkProvider(info.CallID, "pending", "awaiting_first_turn")
		return nil
	})
	if err != nil {
		return sess, info, err
	}
	s.Registry.Persist(ctx, sess)

	if sess.CandidateID != "" && s.Candidates != nil {
		if err := s.Candidates.SetLastSession(ctx, sess.CandidateID, sess.ID); err != nil {
			err = faults.DataIntegrity("candidate status", err)
			s.logger().Warn("candidate status not updated", "kind", faults.Kind(err), "session_id", sessionID, "err", err)
		}
	}
	s.Activity.Record(ctx, sess.CandidateID, sess.ID, audit.EventStartCallClicked, info.CallID, fmt.Sprintf("outbound call to %s", to))
	s.logger().Info("call placed", "session_id", sessionID, "call_sid", info.CallID, "to", to)
	return sess, info, nil
}

// Refresh pulls the live status of callID from the provider and applies it.
func (s *Service) Refresh(ctx context.Context, sessionID, callID string) (interview.Session, telephony.CallInfo, error) {
	sess, err := s.Registry.Get(ctx, sessionID)
	if err != nil {
		return interview.Session{}, telephony.CallInfo{}, err
	}
	if sess.Attempt(callID) == nil {
		return sess, telephony.CallInfo{}, ErrCallNotFound
	}
	if s.Dialer == nil {
		return sess, telephony.CallInfo{}, &faults.ConfigurationError{Missing: s.Missing}
	}
	info, err := s.Dialer.FetchCall(ctx, callID)
	if err != nil {
		return sess, telephony.CallInfo{}, faults.Provider("twilio", err)
	}
	if st := interview.ParseCallStatus(info.Status); st != "" && s.Finalizer != nil {
		if err := s.Finalizer.ApplyStatus(ctx, sessionID, callID, st); err != nil {
			return sess, info, err
		}
	}
	sess, err = s.Registry.Get(ctx, sessionID)
	return sess, info, err
}

// ForceEnd hangs up the active call and finalizes the session. The session
// finalizes even when the provider rejects the hang-up; that error is
// returned alongside the finalized session.
func (s *Service) ForceEnd(ctx context.Context, sessionID string) (interview.Session, error) {
	sess, err := s.Registry.Get(ctx, sessionID)
	if err != nil {
		return interview.Session{}, err
	}
	var remote error
	if a := sess.ActiveAttempt(); a != nil {
		if s.Dialer != nil {
			if err := s.Dialer.EndCall(ctx, a.CallID); err != nil {
				remote = faults.Provider("twilio", err)
				s.logger().Warn("remote hang-up failed", "kind", faults.Kind(remote), "session_id", sessionID, "call_sid", a.CallID, "err", err)
			}
		}
		if s.Finalizer != nil {
			err = s.Finalizer.ApplyStatus(ctx, sessionID, a.CallID, interview.CallStatusCompleted)
		}
	} else if s.Finalizer != nil {
		err = s.Finalizer.Complete(ctx, sessionID)
	}
	if err != nil {
		return sess, err
	}
	sess, err = s.Registry.Get(ctx, sessionID)
	if err != nil {
		return sess, err
	}
	return sess, remote
}
