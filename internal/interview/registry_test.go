package interview

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"screening-agent/internal/candidates"
	"screening-agent/internal/llm"
)

type fakeGen struct {
	out   string
	err   error
	panic bool
	calls int
}

func (f *fakeGen) Generate(ctx context.Context, req llm.Request) (string, error) {
	f.calls++
	if f.panic {
		panic("generator exploded")
	}
	return f.out, f.err
}

type memPersister struct {
	sessions map[string]Session
}

func newMemPersister() *memPersister { return &memPersister{sessions: map[string]Session{}} }

func (p *memPersister) SaveSession(ctx context.Context, s Session) error {
	p.sessions[s.ID] = s.Clone()
	return nil
}

func (p *memPersister) LoadSession(ctx context.Context, id string) (Session, error) {
	s, ok := p.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return s.Clone(), nil
}

func (p *memPersister) LatestForPhone(ctx context.Context, phone string) (Session, error) {
	var best *Session
	for _, s := range p.sessions {
		s := s
		if candidates.SamePhone(s.CandidatePhone, phone) && (best == nil || s.CreatedAt.After(best.CreatedAt)) {
			best = &s
		}
	}
	if best == nil {
		return Session{}, ErrNotFound
	}
	return *best, nil
}

const resume = "Jane Doe\njane@example.com\n+1 415 555 0134\nLinux administration and shell scripting for 6 years."

func newTestRegistry(gen llm.Generator, opts ...RegistryOption) *Registry {
	opts = append([]RegistryOption{WithClock(func() time.Time { return t0 })}, opts...)
	return NewRegistry(context.Background(), NewMemoryStore(), &Planner{Gen: gen}, opts...)
}

func TestCreateRunsPipelineToReady(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(nil, WithIdentities(candidates.NewService(candidates.NewMemoryRepo())))

	s, err := reg.Create(ctx, CreateRequest{JobTitle: "SRE", JobDescription: "Run production operations.\nOn-call.", ResumeText: resume})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if s.Phase != PhaseStarting || s.Ready {
		t.Fatalf("new session should be starting, got %s", s.Phase)
	}
	reg.Wait()

	got, err := reg.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Ready || got.Phase != PhaseReady || got.Stage != StageReady {
		t.Fatalf("expected ready session, got stage=%s phase=%s err=%s", got.Stage, got.Phase, got.Error)
	}
	if len(got.QuestionPlan) != 4 || got.QuestionPlan[0] != OpeningQuestion {
		t.Fatalf("unexpected plan %v", got.QuestionPlan)
	}
	if got.CandidateName != "Jane" || !strings.HasPrefix(got.CandidateID, "301") {
		t.Fatalf("identity not resolved: %+v", got)
	}
	if got.JobSummary != "Run production operations. On-call." {
		t.Fatalf("summary = %q", got.JobSummary)
	}
}

func TestCreateUsesGeneratedQuestions(t *testing.T) {
	gen := &fakeGen{out: "```json\n{\"questions\": [\"Tell me about Kubernetes?\", \"Describe an outage you led.\", \"How do you size capacity?\"]}\n```"}
	reg := newTestRegistry(gen)
	s, _ := reg.Create(context.Background(), CreateRequest{JobDescription: "jd", ResumeText: resume})
	reg.Wait()
	got, _ := reg.Get(context.Background(), s.ID)
	if len(got.QuestionPlan) != 4 || got.QuestionPlan[1] != "Tell me about Kubernetes?" {
		t.Fatalf("unexpected plan %v", got.QuestionPlan)
	}
}

func TestPipelineFailureIsRecorded(t *testing.T) {
	reg := newTestRegistry(&fakeGen{panic: true})
	s, err := reg.Create(context.Background(), CreateRequest{JobDescription: "jd", ResumeText: resume})
	if err != nil {
		t.Fatalf("create must not fail: %v", err)
	}
	reg.Wait()
	got, _ := reg.Get(context.Background(), s.ID)
	if got.Phase != PhaseFailed || got.Stage != StageFailed || got.Error == "" || got.Ready {
		t.Fatalf("expected failed session, got %+v", got)
	}
}

func TestCreateRejectsEmptyInput(t *testing.T) {
	reg := newTestRegistry(nil)
	if _, err := reg.Create(context.Background(), CreateRequest{JobDescription: "x"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func seedReady(t *testing.T, reg *Registry, s Session) Session {
	t.Helper()
	if s.ID == "" {
		s.ID = "sess-1"
	}
	s.Ready, s.StartTriggered = true, true
	if s.Phase == "" {
		s.Phase = PhaseQuestions
	}
	if s.QuestionPlan == nil {
		s.QuestionPlan = []string{"q1?", "q2?", "q3?"}
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = t0
	}
	if err := reg.store.Upsert(context.Background(), s); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return s
}

func TestResolveExplicitIDWins(t *testing.T) {
	reg := newTestRegistry(nil)
	seedReady(t, reg, Session{ID: "a", CandidatePhone: "+14155550134"})
	seedReady(t, reg, Session{ID: "b"})
	s, res, err := reg.Resolve(context.Background(), "b", "+14155550134")
	if err != nil || s.ID != "b" || res.Callback {
		t.Fatalf("expected explicit id, got %s %+v %v", s.ID, res, err)
	}
}

func TestResolveCallbackByPhone(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(nil)
	s := seedReady(t, reg, Session{CandidatePhone: "+14155550134", CurrentQuestionIndex: 1})
	_, _ = reg.RecordCall(ctx, s.ID, "CA1", s.CandidatePhone, CallStatusNoAnswer)

	got, res, err := reg.Resolve(ctx, "", "(415) 555-0134")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.ID != s.ID || !res.Callback || res.Derived {
		t.Fatalf("expected same session callback, got %s %+v", got.ID, res)
	}
	if got.Phase != PhaseCallbackConfirm || !got.CallbackReceived || got.CurrentQuestionIndex != 1 {
		t.Fatalf("unexpected callback state %+v", got)
	}
}

func TestResolveCallbackOnCompletedDerivesSession(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(nil)
	s := seedReady(t, reg, Session{CandidatePhone: "+14155550134", CurrentQuestionIndex: 2, CompletedQA: []QA{{"q1?", "a"}, {"q2?", "b"}}})
	_, _ = reg.RecordCall(ctx, s.ID, "CA1", s.CandidatePhone, CallStatusCompleted)
	_, _ = reg.Update(ctx, s.ID, func(s *Session) error { s.Finish(PhaseCompleted); return nil })

	got, res, err := reg.Resolve(ctx, "", "+14155550134")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !res.Derived || got.ID == s.ID || got.ResumedFrom != s.ID {
		t.Fatalf("expected derived session, got %+v", res)
	}
	if got.Completed || got.Phase != PhaseCallbackConfirm || got.CurrentQuestionIndex != 2 || len(got.CompletedQA) != 2 {
		t.Fatalf("derived session lost progress: %+v", got)
	}
	orig, _ := reg.Get(ctx, s.ID)
	if !orig.Completed {
		t.Fatalf("original session reopened")
	}
}

func TestResolveRehydratesFromStorage(t *testing.T) {
	ctx := context.Background()
	p := newMemPersister()
	p.sessions["old"] = Session{
		ID: "old", CandidateID: "3011234567", CandidatePhone: "+14155550134",
		JobTitle: "SRE", JobDescription: "Linux administration", ResumeText: resume,
		QuestionPlan: []string{"q1?", "q2?"}, CurrentQuestionIndex: 1, CreatedAt: t0,
	}
	reg := newTestRegistry(nil, WithPersister(p))

	got, res, err := reg.Resolve(ctx, "", "+14155550134")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !res.Rehydrated || got.Phase != PhaseCallbackConfirm || got.CurrentQuestion() != "q2?" {
		t.Fatalf("unexpected rehydrated session %+v %+v", got, res)
	}
	if _, err := reg.store.Get(ctx, "old"); err != nil {
		t.Fatalf("rehydrated session not in live store: %v", err)
	}
}

func TestResolveUnknownCaller(t *testing.T) {
	reg := newTestRegistry(nil)
	if _, _, err := reg.Resolve(context.Background(), "", "+19995550000"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRecordCallKeepsTerminalLastStatus(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(nil)
	s := seedReady(t, reg, Session{})
	_, _ = reg.RecordCall(ctx, s.ID, "CA1", "", CallStatusInitiated)
	_, _ = reg.RecordCall(ctx, s.ID, "CA1", "", CallStatusCompleted)
	got, _ := reg.RecordCall(ctx, s.ID, "CA1", "", CallStatusRinging)
	if got.LastCallStatus != CallStatusCompleted || len(got.Calls) != 1 {
		t.Fatalf("unexpected %s / %d attempts", got.LastCallStatus, len(got.Calls))
	}
}

func TestStartTriggerRequiresReady(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(nil)
	_ = reg.store.Upsert(ctx, Session{ID: "s", Phase: PhaseStarting})
	if _, err := reg.StartTrigger(ctx, "s"); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
}

func TestRecordCallOnCompletedSessionStaysTerminal(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(nil)
	s := seedReady(t, reg, Session{})
	_, _ = reg.RecordCall(ctx, s.ID, "CA1", "", CallStatusInProgress)
	_, _ = reg.Update(ctx, s.ID, func(s *Session) error {
		s.Finish(PhaseCompleted)
		return nil
	})
	_, _ = reg.RecordCall(ctx, s.ID, "CA1", "", CallStatusCompleted)

	got, err := reg.RecordCall(ctx, s.ID, "CA2", "", CallStatusInProgress)
	if err != nil {
		t.Fatal(err)
	}
	if got.LastCallStatus != CallStatusCompleted {
		t.Fatalf("last call status regressed to %s", got.LastCallStatus)
	}
	if got.CallInProgress || len(got.Calls) != 2 {
		t.Fatalf("late leg should be recorded but not live: in_progress=%v attempts=%d", got.CallInProgress, len(got.Calls))
	}
}
