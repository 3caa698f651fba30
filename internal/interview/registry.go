package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"screening-agent/internal/candidates"
	"screening-agent/internal/faults"
	"screening-agent/pkg/logger"
)

var (
	ErrInvalidInput = errors.New("interview: job description and resume text are required")
	ErrNotReady     = errors.New("interview: session is not ready")
	ErrCompleted    = errors.New("interview: session already completed")
)

// Persister is the durable side of the registry. All writes are upserts.
type Persister interface {
	SaveSession(ctx context.Context, s Session) error
	LoadSession(ctx context.Context, id string) (Session, error)
	// LatestForPhone returns the newest persisted session whose candidate
	// phone matches, or ErrNotFound.
	LatestForPhone(ctx context.Context, phone string) (Session, error)
}

// Identities resolves candidate records during initialization.
type Identities interface {
	Ensure(ctx context.Context, contact candidates.Contact, sessionID string) (candidates.Candidate, error)
}

// CreateRequest is the input to Create.
type CreateRequest struct {
	JobID          string
	JobTitle       string
	JobDescription string
	ResumeText     string
	AgentProfile   string
	CandidatePhone string
}

// Resolution describes how a webhook was matched to a session.
type Resolution struct {
	Callback   bool
	Rehydrated bool
	Derived    bool
}

// Registry creates sessions, resolves webhooks to them and records call
// attempts.
type Registry struct {
	store      Store
	planner    *Planner
	persist    Persister
	identities Identities
	log        *slog.Logger

	defaultProfile string
	callbackWindow time.Duration
	stageDelay     time.Duration
	clock          func() time.Time
	onReady        func(context.Context, Session)

	base context.Context
	wg   sync.WaitGroup
}

type RegistryOption func(*Registry)

func WithPersister(p Persister) RegistryOption { return func(r *Registry) { r.persist = p } }

func WithIdentities(i Identities) RegistryOption { return func(r *Registry) { r.identities = i } }

func WithLogger(l *slog.Logger) RegistryOption { return func(r *Registry) { r.log = l } }

func WithClock(c func() time.Time) RegistryOption { return func(r *Registry) { r.clock = c } }

func WithDefaultProfile(p string) RegistryOption { return func(r *Registry) { r.defaultProfile = p } }

func WithCallbackWindow(d time.Duration) RegistryOption {
	return func(r *Registry) { r.callbackWindow = d }
}

// WithStageDelay paces the pipeline so progress polling has something to see.
func WithStageDelay(d time.Duration) RegistryOption { return func(r *Registry) { r.stageDelay = d } }

// WithReadyHook runs fn after a session finishes initialization.
func WithReadyHook(fn func(context.Context, Session)) RegistryOption {
	return func(r *Registry) { r.onReady = fn }
}

// NewRegistry builds a registry. base bounds background pipelines.
func NewRegistry(base context.Context, store Store, planner *Planner, opts ...RegistryOption) *Registry {
	r := &Registry{
		store:          store,
		planner:        planner,
		log:            slog.Default(),
		defaultProfile: "sara",
		callbackWindow: 72 * time.Hour,
		clock:          time.Now,
		base:           base,
	}
	for _, o := range opts {
		o(r)
	}
	if r.planner == nil {
		r.planner = &Planner{Log: r.log}
	}
	return r
}

func (r *Registry) Store() Store { return r.store }

func (r *Registry) now() time.Time { return r.clock().UTC() }

// Create allocates a session in phase starting and schedules the
// initialization pipeline. Pipeline failures are recorded on the session.
func (r *Registry) Create(ctx context.Context, req CreateRequest) (Session, error) {
	if strings.TrimSpace(req.JobDescription) == "" || strings.TrimSpace(req.ResumeText) == "" {
		return Session{}, ErrInvalidInput
	}
	now := r.now()
	title := strings.TrimSpace(req.JobTitle)
	if title == "" {
		title = "this position"
	}
	profile := strings.ToLower(strings.TrimSpace(req.AgentProfile))
	if profile == "" {
		profile = r.defaultProfile
	}
	s := Session{
		ID:             strings.ReplaceAll(uuid.NewString(), "-", ""),
		JobID:          req.JobID,
		JobTitle:       title,
		JobDescription: req.JobDescription,
		ResumeText:     req.ResumeText,
		CandidatePhone: candidates.NormalizePhone(req.CandidatePhone),
		AgentProfile:   profile,
		Stage:          StageStarting,
		Phase:          PhaseStarting,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := r.store.Upsert(ctx, s); err != nil {
		return Session{}, err
	}
	r.save(ctx, s)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.runPipeline(r.base, s.ID)
	}()
	return s.Clone(), nil
}

// Wait blocks until every scheduled pipeline has returned.
func (r *Registry) Wait() { r.wg.Wait() }

func (r *Registry) save(ctx context.Context, s Session) {
	if r.persist == nil {
		return
	}
	if err := r.persist.SaveSession(ctx, s); err != nil {
		err = faults.DataIntegrity("save session", err)
		r.log.Warn("session persist failed", "kind", faults.Kind(err), "session_id", s.ID, "err", err)
	}
}

// Persist writes the current in-memory state through to storage.
func (r *Registry) Persist(ctx context.Context, s Session) { r.save(ctx, s) }

// Get returns a session from the live store, falling back to storage.
func (r *Registry) Get(ctx context.Context, id string) (Session, error) {
	s, err := r.store.Get(ctx, id)
	if err == nil || !errors.Is(err, ErrNotFound) || r.persist == nil {
		return s, err
	}
	s, err = r.persist.LoadSession(ctx, id)
	if err != nil {
		return Session{}, ErrNotFound
	}
	if err := r.store.Upsert(ctx, s); err != nil {
		return Session{}, err
	}
	return r.store.Get(ctx, id)
}

func (r *Registry) List(ctx context.Context) ([]Session, error) { return r.store.List(ctx) }

// Update applies fn under the session lock.
func (r *Registry) Update(ctx context.Context, id string, fn func(*Session) error) (Session, error) {
	return r.store.Update(ctx, id, fn)
}

// StartTrigger arms a ready session for calling.
func (r *Registry) StartTrigger(ctx context.Context, id string) (Session, error) {
	s, err := r.store.Update(ctx, id, func(s *Session) error {
		if s.Completed {
			return ErrCompleted
		}
		if !s.Ready {
			return ErrNotReady
		}
		s.StartTriggered = true
		return nil
	})
	if err == nil {
		r.save(ctx, s)
	}
	return s, err
}

// RecordCall adds or updates an attempt. A known call id never produces a
// second attempt, and a completed session never reads as live again.
func (r *Registry) RecordCall(ctx context.Context, id, callID, to string, status CallStatus) (Session, error) {
	return r.store.Update(ctx, id, func(s *Session) error {
		created := s.RecordCall(callID, to, status, r.now())
		if status == "" {
			return nil
		}
		switch {
		case s.Completed:
			// Only a terminal status may land on a completed session.
			if status.Terminal() && !s.LastCallStatus.Terminal() {
				s.LastCallStatus = status
			}
		case created || !s.LastCallStatus.Terminal():
			s.LastCallStatus = status
		}
		if created && !s.Completed && !status.Terminal() {
			s.CallInProgress = true
		}
		return nil
	})
}

// RecordInbound is RecordCall for a candidate-initiated leg.
func (r *Registry) RecordInbound(ctx context.Context, id, callID, from, to string) (Session, error) {
	return r.store.Update(ctx, id, func(s *Session) error {
		if s.RecordCall(callID, to, CallStatusInProgress, r.now()) {
			a := s.Attempt(callID)
			a.Direction = DirectionInbound
			a.From = from
		}
		if !s.Completed {
			s.CallInProgress = true
			s.LastCallStatus = CallStatusInProgress
		}
		return nil
	})
}

// FindByCall scans live sessions for an attempt with callID.
func (r *Registry) FindByCall(ctx context.Context, callID string) (Session, error) {
	if callID == "" {
		return Session{}, ErrNotFound
	}
	all, err := r.store.List(ctx)
	if err != nil {
		return Session{}, err
	}
	for _, s := range all {
		if s.Attempt(callID) != nil {
			return s, nil
		}
	}
	return Session{}, ErrNotFound
}

// Resolve maps a webhook to a session. An explicit id wins. Otherwise the
// caller's phone selects the newest session with an active or recent call,
// then the newest persisted one, which is rehydrated for a callback.
func (r *Registry) Resolve(ctx context.Context, explicitID, callerPhone string) (Session, Resolution, error) {
	if explicitID != "" {
		s, err := r.Get(ctx, explicitID)
		if err == nil {
			return s, Resolution{}, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return Session{}, Resolution{}, err
		}
	}
	if candidates.NormalizePhone(callerPhone) == "" {
		return Session{}, Resolution{}, ErrNotFound
	}

	if s, ok, err := r.byPhone(ctx, callerPhone); err != nil {
		return Session{}, Resolution{}, err
	} else if ok {
		return r.callback(ctx, s, Resolution{Callback: true})
	}

	if r.persist == nil {
		return Session{}, Resolution{}, ErrNotFound
	}
	stored, err := r.persist.LatestForPhone(ctx, callerPhone)
	if err != nil {
		return Session{}, Resolution{}, ErrNotFound
	}
	return r.rehydrate(ctx, stored)
}

func (r *Registry) byPhone(ctx context.Context, phone string) (Session, bool, error) {
	all, err := r.store.List(ctx)
	if err != nil {
		return Session{}, false, err
	}
	now := r.now()
	for _, s := range all {
		if !candidates.SamePhone(s.CandidatePhone, phone) || len(s.Calls) == 0 {
			continue
		}
		last := s.Calls[len(s.Calls)-1]
		if !last.Status.Terminal() || now.Sub(last.UpdatedAt) <= r.callbackWindow {
			return s, true, nil
		}
	}
	return Session{}, false, nil
}

// callback moves a live session into callback_confirm. A completed session is
// never reopened: a new session resuming its progress is derived instead.
func (r *Registry) callback(ctx context.Context, s Session, res Resolution) (Session, Resolution, error) {
	if s.Completed {
		derived := r.derive(s)
		if err := r.store.Upsert(ctx, derived); err != nil {
			return Session{}, res, err
		}
		r.save(ctx, derived)
		res.Derived = true
		return derived.Clone(), res, nil
	}
	if s.ActiveAttempt() != nil {
		// Same call still live; nothing to confirm.
		res.Callback = false
		return s, res, nil
	}
	updated, err := r.store.Update(ctx, s.ID, func(s *Session) error {
		s.CallbackReceived = true
		if s.Ready && CanTransition(s.Phase, PhaseCallbackConfirm) {
			s.Phase = PhaseCallbackConfirm
		}
		return nil
	})
	return updated, res, err
}

func (r *Registry) derive(prev Session) Session {
	now := r.now()
	next := prev.Clone()
	next.ID = strings.ReplaceAll(uuid.NewString(), "-", "")
	next.ResumedFrom = prev.ID
	next.Stage = StageReady
	next.Phase = PhaseCallbackConfirm
	next.Ready = true
	next.StartTriggered = true
	next.Completed = false
	next.CallInProgress = false
	next.Recommendation = ""
	next.Calls = nil
	next.LastCallStatus = ""
	next.HandoffRequested = false
	next.HandoffRoom = ""
	next.HandoffFailure = ""
	next.CallbackReceived = true
	next.LastGenerated = ""
	next.TurnsThisCall = 0
	next.CreatedAt = now
	next.UpdatedAt = now
	return next
}

func (r *Registry) rehydrate(ctx context.Context, stored Session) (Session, Resolution, error) {
	res := Resolution{Callback: true, Rehydrated: true}
	if live, err := r.store.Get(ctx, stored.ID); err == nil {
		return r.callback(ctx, live, Resolution{Callback: true})
	}
	s := stored.Clone()
	if len(s.QuestionPlan) == 0 {
		s.Skills = ExtractSkills(s.JobDescription, s.ResumeText)
		s.QuestionPlan = r.planner.Plan(ctx, s.JobTitle, s.JobDescription, s.ResumeText, s.Skills)
	}
	if s.JobSummary == "" {
		s.JobSummary = FallbackSummary(s.JobDescription)
	}
	if s.JobTitle == "" {
		s.JobTitle = "this position"
	}
	if s.AgentProfile == "" {
		s.AgentProfile = r.defaultProfile
	}
	if s.Completed {
		s = r.derive(s)
		res.Derived = true
	} else {
		s.Stage = StageReady
		s.Phase = PhaseCallbackConfirm
		s.Ready = true
		s.StartTriggered = true
		s.CallbackReceived = true
		s.CallInProgress = false
		s.Calls = nil
		if s.CreatedAt.IsZero() {
			s.CreatedAt = r.now()
		}
	}
	if s.CurrentQuestionIndex > len(s.QuestionPlan) {
		s.CurrentQuestionIndex = len(s.QuestionPlan)
	}
	if err := r.store.Upsert(ctx, s); err != nil {
		return Session{}, res, err
	}
	r.log.Info("session rehydrated for callback", "session_id", s.ID, "resumed_from", s.ResumedFrom)
	return s.Clone(), res, nil
}

// runPipeline is the detached initialization task. Cancellation of ctx marks
// the session failed.
func (r *Registry) runPipeline(ctx context.Context, id string) {
	log := r.log.With("session_id", id)
	ctx = logger.With(ctx, log)

	fail := func(err error) {
		log.Error("session init failed", "err", err)
		s, uerr := r.store.Update(context.WithoutCancel(ctx), id, func(s *Session) error {
			s.Stage = StageFailed
			s.Phase = PhaseFailed
			s.Error = err.Error()
			return nil
		})
		if uerr == nil {
			r.save(context.WithoutCancel(ctx), s)
		}
	}
	defer func() {
		if p := recover(); p != nil {
			fail(fmt.Errorf("pipeline panic: %v", p))
		}
	}()

	snap, err := r.store.Get(ctx, id)
	if err != nil {
		log.Error("session vanished before init", "err", err)
		return
	}

	steps := []struct {
		stage Stage
		run   func(*Session) error
	}{
		{StageParsingResume, func(s *Session) error { return r.resolveCandidate(ctx, s) }},
		{StageParsingJD, func(s *Session) error {
			s.JobSummary = r.planner.Summary(ctx, s.JobTitle, s.JobDescription)
			return nil
		}},
		{StageSkillMapping, func(s *Session) error {
			s.Skills = ExtractSkills(s.JobDescription, s.ResumeText)
			return nil
		}},
		{StagePlanGeneration, func(s *Session) error {
			s.QuestionPlan = r.planner.Plan(ctx, s.JobTitle, s.JobDescription, s.ResumeText, s.Skills)
			if s.CandidateName == "" {
				s.CandidateName = FirstName(s.ResumeText)
			}
			if len(s.QuestionPlan) == 0 {
				return errors.New("empty question plan")
			}
			return nil
		}},
		{StageAgentInit, func(s *Session) error { return nil }},
	}

	for _, st := range steps {
		if err := ctx.Err(); err != nil {
			fail(err)
			return
		}
		if _, err := r.store.Update(ctx, id, func(s *Session) error { s.Stage = st.stage; return nil }); err != nil {
			fail(err)
			return
		}
		if err := st.run(&snap); err != nil {
			fail(fmt.Errorf("%s: %w", st.stage, err))
			return
		}
		if r.stageDelay > 0 {
			select {
			case <-ctx.Done():
				fail(ctx.Err())
				return
			case <-time.After(r.stageDelay):
			}
		}
	}

	ready, err := r.store.Update(ctx, id, func(s *Session) error {
		s.CandidateID = snap.CandidateID
		s.CandidateName = snap.CandidateName
		s.CandidateEmail = snap.CandidateEmail
		if snap.CandidatePhone != "" {
			s.CandidatePhone = snap.CandidatePhone
		}
		s.JobSummary = snap.JobSummary
		s.Skills = snap.Skills
		s.QuestionPlan = snap.QuestionPlan
		s.Stage = StageReady
		s.Ready = true
		return s.Transition(PhaseReady)
	})
	if err != nil {
		fail(err)
		return
	}
	r.save(ctx, ready)
	if r.onReady != nil {
		r.onReady(ctx, ready)
	}
	log.Info("session ready", "questions", len(ready.QuestionPlan), "candidate_id", ready.CandidateID)
}

func (r *Registry) resolveCandidate(ctx context.Context, s *Session) error {
	contact := candidates.ExtractContact(s.ResumeText)
	if contact.Phone == "" {
		contact.Phone = s.CandidatePhone
	}
	if s.CandidatePhone == "" {
		s.CandidatePhone = candidates.NormalizePhone(contact.Phone)
	}
	s.CandidateEmail = candidates.NormalizeEmail(contact.Email)
	if r.identities == nil {
		return nil
	}
	c, err := r.identities.Ensure(ctx, contact, s.ID)
	if err != nil {
		// Identity is best-effort; the interview can run without it.
		err = faults.DataIntegrity("ensure candidate", err)
		logger.From(ctx).Warn("candidate upsert failed", "kind", faults.Kind(err), "err", err)
		return nil
	}
	s.CandidateID = c.ID
	s.CandidateEmail = c.Email
	if s.CandidateName == "" && c.FullName != "" && c.FullName != "Unknown Candidate" {
		s.CandidateName = strings.Fields(c.FullName)[0]
	}
	return nil
}
