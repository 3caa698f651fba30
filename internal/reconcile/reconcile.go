// Package reconcile merges asynchronous call lifecycle events into session
// state and runs the side effects of a call ending.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"screening-agent/internal/audit"
	"screening-agent/internal/calls"
	"screening-agent/internal/candidates"
	"screening-agent/internal/events"
	"screening-agent/internal/faults"
	"screening-agent/internal/interview"
	"screening-agent/internal/persona"
	"screening-agent/internal/telephony"
	"screening-agent/pkg/logger"
)

// Event is one provider status delivery.
type Event struct {
	SessionID  string
	CallID     string
	Status     interview.CallStatus
	To         string
	From       string
	AnsweredBy string
	Duration   int
}

// Outcome reports what Apply did with an event.
type Outcome struct {
	Session interview.Session
	// Applied is true when the event changed the attempt.
	Applied bool
	// Conflict is true when the event tried to move a terminal attempt.
	Conflict bool
	// Terminal is true when this event ended the attempt.
	Terminal bool
	Ignored  bool
	// Late is true when the event belonged to a leg of an already closed
	// session. It is recorded without re-running the call-ending effects.
	Late bool
}

type Reconciler struct {
	Registry   *interview.Registry
	Planner    *interview.Planner
	Calls      calls.Repository
	Candidates candidates.Repository
	Activity   *audit.Service
	Events     events.Publisher
	Personas   *persona.Catalog
	Gate       *telephony.DialGate

	// Dialer and From place the voicemail-style callback after a missed call.
	Dialer telephony.Dialer
	From   string

	Log   *slog.Logger
	Clock func() time.Time
}

var _ calls.Finalizer = (*Reconciler)(nil)

func (r *Reconciler) now() time.Time {
	if r.Clock != nil {
		return r.Clock().UTC()
	}
	return time.Now().UTC()
}

func (r *Reconciler) logger(ctx context.Context) *slog.Logger {
	if r.Log != nil {
		return r.Log
	}
	return logger.From(ctx)
}

func (r *Reconciler) resolve(ctx context.Context, ev Event) (interview.Session, error) {
	if ev.SessionID != "" {
		s, err := r.Registry.Get(ctx, ev.SessionID)
		if err == nil || !errors.Is(err, interview.ErrNotFound) {
			return s, err
		}
	}
	return r.Registry.FindByCall(ctx, ev.CallID)
}

// Apply merges ev into its session. The first terminal status of an attempt
// wins; any later different status is dropped as a conflict. Side effects of
// the call ending run once, on the event that made the attempt terminal.
func (r *Reconciler) Apply(ctx context.Context, ev Event) (Outcome, error) {
	if ev.CallID == "" || ev.Status == "" {
		return Outcome{Ignored: true}, nil
	}
	snap, err := r.resolve(ctx, ev)
	if err != nil {
		return Outcome{Ignored: true}, err
	}
	log := r.logger(ctx).With("session_id", snap.ID, "call_sid", ev.CallID, "status", string(ev.Status))

	// The evaluator may call out to the language service; keep it off the lock.
	var recommendation string
	if a := snap.Attempt(ev.CallID); (a == nil || !a.Status.Terminal()) &&
		ev.Status.Terminal() && snap.Recommendation == "" && r.Planner != nil {
		recommendation = r.Planner.Recommend(ctx, snap)
	}

	var out Outcome
	s, err := r.Registry.Update(ctx, snap.ID, func(s *interview.Session) error {
		out = Outcome{}
		if a := s.Attempt(ev.CallID); a != nil && a.Status.Terminal() {
			if a.Status != ev.Status {
				out.Conflict = true
			} else {
				out.Ignored = true
			}
			return nil
		}
		closed := s.Closed()
		if closed && !ev.Status.Terminal() {
			out.Ignored = true
			return nil
		}

		created := s.RecordCall(ev.CallID, ev.To, ev.Status, r.now())
		if created && ev.From != "" {
			s.Attempt(ev.CallID).From = ev.From
		}
		out.Applied = true
		if closed {
			// A stray leg on a finished screening is kept for the record only.
			out.Late = true
			return nil
		}
		if created || !s.LastCallStatus.Terminal() {
			s.LastCallStatus = ev.Status
		}

		if !ev.Status.Terminal() {
			if !s.Completed {
				s.CallInProgress = true
			}
			return nil
		}
		out.Terminal = true
		s.CallInProgress = false
		if s.Recommendation == "" {
			if recommendation == "" {
				recommendation = interview.FallbackRecommendation(s.CompletedQA)
			}
			s.Recommendation = recommendation
		}
		s.Finish(interview.PhaseCompleted)
		return nil
	})
	if err != nil {
		return Outcome{Session: snap}, err
	}
	out.Session = s

	switch {
	case out.Conflict:
		prev := s.Attempt(ev.CallID).Status
		cerr := fmt.Errorf("%w: %s -> %s", faults.ErrReconciliationConflict, prev, ev.Status)
		log.Warn("status event dropped", "kind", faults.Kind(cerr), "recorded", string(prev), "err", cerr)
	case out.Ignored:
		log.Debug("status event ignored")
	case out.Terminal:
		log.Info("call ended")
		r.Settle(ctx, s, ev.CallID, ev.Status, ev.Duration, false)
	case out.Late:
		log.Info("late leg recorded on closed session")
		r.Registry.Persist(ctx, s)
		r.upsertCall(ctx, s, ev.CallID, ev.Duration)
	default:
		r.Registry.Persist(ctx, s)
		r.upsertCall(ctx, s, ev.CallID, 0)
	}
	return out, nil
}

// ApplyStatus applies a status read from the provider rather than pushed by it.
func (r *Reconciler) ApplyStatus(ctx context.Context, sessionID, callID string, status interview.CallStatus) error {
	_, err := r.Apply(ctx, Event{SessionID: sessionID, CallID: callID, Status: status})
	return err
}

// Complete finalizes a session that has no live attempt.
func (r *Reconciler) Complete(ctx context.Context, sessionID string) error {
	snap, err := r.Registry.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if snap.Completed {
		return nil
	}
	rec := snap.Recommendation
	if rec == "" && r.Planner != nil {
		rec = r.Planner.Recommend(ctx, snap)
	}
	s, err := r.Registry.Update(ctx, sessionID, func(s *interview.Session) error {
		if s.Recommendation == "" {
			s.Recommendation = rec
		}
		s.Finish(interview.PhaseCompleted)
		return nil
	})
	if err != nil {
		return err
	}
	r.Registry.Persist(ctx, s)
	r.candidateStatus(ctx, s, candidates.StatusScreeningCompleted)
	r.Activity.Record(ctx, s.CandidateID, s.ID, audit.EventScreeningCompleted, "", "session ended without an active call")
	r.publish(ctx, events.Event{Type: events.TypeSessionCompleted, SessionID: s.ID, CandidateID: s.CandidateID, Status: string(s.LastCallStatus)})
	return nil
}

// Settle runs the side effects of an attempt reaching status: persistence,
// candidate status, activity, events, the missed-call voicemail and releasing
// the dial slot of an outbound leg. voicemailLeft suppresses the voicemail callback when the
// message was already played on the live leg.
func (r *Reconciler) Settle(ctx context.Context, s interview.Session, callID string, status interview.CallStatus, duration int, voicemailLeft bool) {
	r.Registry.Persist(ctx, s)
	r.upsertCall(ctx, s, callID, duration)

	r.Activity.Record(ctx, s.CandidateID, s.ID, audit.EventCallStatusUpdated, callID, "call status "+string(status))
	if status.Missed() {
		r.candidateStatus(ctx, s, candidates.StatusOutboundNoAnswer)
		r.Activity.Record(ctx, s.CandidateID, s.ID, audit.EventMissedCall, callID, "candidate did not answer")
		r.publish(ctx, events.Event{Type: events.TypeCallMissed, SessionID: s.ID, CandidateID: s.CandidateID, CallID: callID, Status: string(status)})
		if !voicemailLeft {
			r.leaveVoicemail(ctx, s)
		}
	} else {
		r.candidateStatus(ctx, s, candidates.StatusScreeningCompleted)
		r.Activity.Record(ctx, s.CandidateID, s.ID, audit.EventScreeningCompleted, callID, logger.Truncate(s.Recommendation, 400))
		r.publish(ctx, events.Event{
			Type:        events.TypeSessionCompleted,
			SessionID:   s.ID,
			CandidateID: s.CandidateID,
			CallID:      callID,
			Status:      string(status),
			Data:        map[string]any{"answered": len(s.CompletedQA), "phase": string(s.Phase)},
		})
	}
	// Only outbound legs hold a dial slot.
	if a := s.Attempt(callID); a != nil && a.Direction != interview.DirectionInbound {
		if err := r.Gate.Release(context.WithoutCancel(ctx)); err != nil {
			r.logger(ctx).Warn("dial slot release failed", "session_id", s.ID, "err", err)
		}
	}
}

// HandoffRequested records that the candidate is waiting for a human.
func (r *Reconciler) HandoffRequested(ctx context.Context, s interview.Session, callID string) {
	r.Activity.Record(ctx, s.CandidateID, s.ID, audit.EventHandoffRequested, callID, "candidate question needs a human")
	r.publish(ctx, events.Event{
		Type:        events.TypeSessionHandoff,
		SessionID:   s.ID,
		CandidateID: s.CandidateID,
		CallID:      callID,
		Data:        map[string]any{"room": s.HandoffRoom, "failure": s.HandoffFailure},
	})
}

// CallbackReceived records a candidate calling back.
func (r *Reconciler) CallbackReceived(ctx context.Context, s interview.Session, callID string) {
	r.candidateStatus(ctx, s, candidates.StatusCallbackReceived)
	detail := "inbound callback"
	if s.ResumedFrom != "" {
		detail = "inbound callback resuming " + s.ResumedFrom
	}
	r.Activity.Record(ctx, s.CandidateID, s.ID, audit.EventCallbackReceived, callID, detail)
}

func (r *Reconciler) upsertCall(ctx context.Context, s interview.Session, callID string, duration int) {
	if r.Calls == nil {
		return
	}
	a := s.Attempt(callID)
	if a == nil {
		return
	}
	rec := calls.FromAttempt(s, *a)
	rec.DurationSeconds = duration
	if err := r.Calls.UpsertCall(ctx, rec); err != nil {
		err = faults.DataIntegrity("upsert call", err)
		r.logger(ctx).Warn("call record not saved", "kind", faults.Kind(err), "session_id", s.ID, "call_sid", callID, "err", err)
	}
}

func (r *Reconciler) candidateStatus(ctx context.Context, s interview.Session, st candidates.Status) {
	if r.Candidates == nil || s.CandidateID == "" {
		return
	}
	if err := r.Candidates.UpdateStatus(ctx, s.CandidateID, st, logger.Truncate(s.Recommendation, 2000)); err != nil {
		err = faults.DataIntegrity("candidate status", err)
		r.logger(ctx).Warn("candidate status not updated", "kind", faults.Kind(err), "session_id", s.ID, "err", err)
	}
}

func (r *Reconciler) publish(ctx context.Context, e events.Event) {
	if r.Events == nil {
		return
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = r.now()
	}
	if err := r.Events.Publish(ctx, e); err != nil {
		err = faults.DataIntegrity("publish "+e.Type, err)
		r.logger(ctx).Warn("event not published", "kind", faults.Kind(err), "session_id", e.SessionID, "err", err)
	}
}

// leaveVoicemail places a short one-way call reading the voicemail script.
// Failure is logged and otherwise ignored.
func (r *Reconciler) leaveVoicemail(ctx context.Context, s interview.Session) {
	if r.Dialer == nil || s.CandidatePhone == "" || r.Personas == nil {
		return
	}
	p := r.Personas.Get(s.AgentProfile)
	text := persona.Render(p.Script.Voicemail, persona.Values{
		FirstName: s.CandidateName,
		AgentName: p.AssistantName,
		Company:   r.Personas.Company,
		JobTitle:  s.JobTitle,
	})
	doc := telephony.NewResponse().Pause(1).Say(text, p.FallbackVoice).Hangup()
	twiml, err := doc.String()
	if err != nil {
		twiml = telephony.Fallback(text, p.FallbackVoice)
	}
	info, err := r.Dialer.PlaceCall(ctx, telephony.CallRequest{To: s.CandidatePhone, From: r.From, Twiml: twiml})
	if err != nil {
		err = faults.Provider("twilio", err)
		r.logger(ctx).Warn("voicemail callback failed", "kind", faults.Kind(err), "session_id", s.ID, "err", err)
		return
	}
	r.logger(ctx).Info("voicemail callback placed", "session_id", s.ID, "call_sid", info.CallID)
}
