package reconcile

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"screening-agent/internal/audit"
	"screening-agent/internal/calls"
	"screening-agent/internal/candidates"
	"screening-agent/internal/events"
	"screening-agent/internal/interview"
	"screening-agent/internal/persona"
	"screening-agent/internal/telephony"
)

var fixedNow = time.Unix(1700000000, 0).UTC()

type harness struct {
	rec        *Reconciler
	store      *interview.MemoryStore
	dialer     *telephony.Recorder
	events     *events.Memory
	activity   *audit.MemoryRepo
	calls      *calls.MemoryRepo
	candidates *candidates.MemoryRepo
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	h := &harness{
		store:      interview.NewMemoryStore(),
		dialer:     telephony.NewRecorder(),
		events:     &events.Memory{},
		activity:   audit.NewMemoryRepo(),
		calls:      calls.NewMemoryRepo(),
		candidates: candidates.NewMemoryRepo(),
	}
	clock := func() time.Time { return fixedNow }
	reg := interview.NewRegistry(ctx, h.store, &interview.Planner{}, interview.WithClock(clock))
	h.rec = &Reconciler{
		Registry:   reg,
		Planner:    &interview.Planner{},
		Calls:      h.calls,
		Candidates: h.candidates,
		Activity:   audit.NewService(h.activity),
		Events:     h.events,
		Personas:   persona.Defaults("Acme", "Sara", persona.ProfileStandard),
		Dialer:     h.dialer,
		From:       "+15550009999",
		Clock:      clock,
	}
	if _, err := h.candidates.Upsert(ctx, candidates.Candidate{ID: "3010000001", Email: "jane@example.com", FullName: "Jane Doe"}); err != nil {
		t.Fatal(err)
	}
	err := h.store.Upsert(ctx, interview.Session{
		ID:             "s1",
		CandidateID:    "3010000001",
		CandidateName:  "Jane",
		CandidatePhone: "+15550001111",
		JobTitle:       "Site Reliability Engineer",
		AgentProfile:   persona.ProfileStandard,
		Stage:          interview.StageReady,
		Phase:          interview.PhaseQuestions,
		Ready:          true,
		StartTriggered: true,
		CallInProgress: true,
		QuestionPlan:   []string{"Why are you looking for new job opportunities?"},
		LastCallStatus: interview.CallStatusInProgress,
		Calls: []interview.CallAttempt{{
			CallID:    "CA1",
			Direction: interview.DirectionOutbound,
			To:        "+15550001111",
			Status:    interview.CallStatusInProgress,
			CreatedAt: fixedNow,
			UpdatedAt: fixedNow,
		}},
		CreatedAt: fixedNow,
		UpdatedAt: fixedNow,
	})
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func TestApply_LateRegressionAfterCompletedIsDropped(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	out, err := h.rec.Apply(ctx, Event{SessionID: "s1", CallID: "CA1", Status: interview.CallStatusCompleted, Duration: 95})
	if err != nil {
		t.Fatal(err)
	}
	if !out.Terminal || !out.Session.Completed || out.Session.CallInProgress {
		t.Fatalf("expected terminal completion, got %+v", out)
	}
	if out.Session.Recommendation == "" {
		t.Fatalf("expected recommendation on terminal status")
	}

	out, err = h.rec.Apply(ctx, Event{SessionID: "s1", CallID: "CA1", Status: interview.CallStatusNoAnswer})
	if err != nil {
		t.Fatal(err)
	}
	if !out.Conflict {
		t.Fatalf("expected conflict, got %+v", out)
	}
	s, _ := h.store.Get(ctx, "s1")
	if s.LastCallStatus != interview.CallStatusCompleted {
		t.Fatalf("last_call_status = %q, want completed", s.LastCallStatus)
	}
	if len(h.events.OfType(events.TypeCallMissed)) != 0 {
		t.Fatalf("regression must not publish a missed call")
	}
	if len(h.dialer.Calls()) != 0 {
		t.Fatalf("regression must not place a voicemail")
	}
	if got := len(h.events.OfType(events.TypeSessionCompleted)); got != 1 {
		t.Fatalf("expected one completion event, got %d", got)
	}
	rec, ok := h.calls.Get("CA1")
	if !ok || rec.Status != interview.CallStatusCompleted || rec.DurationSeconds != 95 {
		t.Fatalf("unexpected call record %+v", rec)
	}
	c, _ := h.candidates.Get(ctx, "3010000001")
	if c.Status != candidates.StatusScreeningCompleted {
		t.Fatalf("candidate status = %q", c.Status)
	}
}

func TestApply_NonTerminalAfterTerminalKeepsTerminal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.rec.Apply(ctx, Event{SessionID: "s1", CallID: "CA1", Status: interview.CallStatusBusy}); err != nil {
		t.Fatal(err)
	}
	for _, st := range []interview.CallStatus{interview.CallStatusRinging, interview.CallStatusInProgress} {
		if _, err := h.rec.Apply(ctx, Event{SessionID: "s1", CallID: "CA1", Status: st}); err != nil {
			t.Fatal(err)
		}
	}
	out, err := h.rec.Apply(ctx, Event{SessionID: "s1", CallID: "CA2", Status: interview.CallStatusRinging})
	if err != nil {
		t.Fatal(err)
	}
	if !out.Ignored {
		t.Fatalf("late ringing for a finished session should be ignored")
	}

	s, _ := h.store.Get(ctx, "s1")
	if s.LastCallStatus != interview.CallStatusBusy || !s.Completed {
		t.Fatalf("unexpected session state: status=%q completed=%v", s.LastCallStatus, s.Completed)
	}
	if len(s.Calls) != 1 {
		t.Fatalf("expected 1 attempt, got %d", len(s.Calls))
	}
}

func TestApply_MissedCallLeavesVoicemail(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.rec.Apply(ctx, Event{CallID: "CA1", Status: interview.CallStatusNoAnswer}); err != nil {
		t.Fatal(err)
	}

	placed := h.dialer.Calls()
	if len(placed) != 1 {
		t.Fatalf("expected voicemail callback, got %d calls", len(placed))
	}
	if placed[0].To != "+15550001111" || placed[0].From != "+15550009999" {
		t.Fatalf("unexpected callback %+v", placed[0])
	}
	if !strings.Contains(placed[0].Twiml, "Please call us back") || !strings.Contains(placed[0].Twiml, "<Hangup") {
		t.Fatalf("unexpected voicemail twiml %s", placed[0].Twiml)
	}
	if got := h.events.OfType(events.TypeCallMissed); len(got) != 1 || got[0].CallID != "CA1" {
		t.Fatalf("expected call.missed event, got %+v", got)
	}
	c, _ := h.candidates.Get(ctx, "3010000001")
	if c.Status != candidates.StatusOutboundNoAnswer {
		t.Fatalf("candidate status = %q", c.Status)
	}

	var missed bool
	for _, e := range h.activity.Events() {
		if e.Type == audit.EventMissedCall {
			missed = true
		}
	}
	if !missed {
		t.Fatalf("expected missed_call activity")
	}
}

func TestApply_DuplicateTerminalRunsSideEffectsOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := h.rec.Apply(ctx, Event{SessionID: "s1", CallID: "CA1", Status: interview.CallStatusCompleted}); err != nil {
			t.Fatal(err)
		}
	}
	if got := len(h.events.OfType(events.TypeSessionCompleted)); got != 1 {
		t.Fatalf("expected one completion event, got %d", got)
	}
}

func TestApply_ProgressKeepsCallLive(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	out, err := h.rec.Apply(ctx, Event{SessionID: "s1", CallID: "CA1", Status: interview.CallStatusRinging})
	if err != nil {
		t.Fatal(err)
	}
	if !out.Applied || out.Terminal || !out.Session.CallInProgress || out.Session.Completed {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if _, ok := h.calls.Get("CA1"); !ok {
		t.Fatalf("expected call record upsert")
	}
}

func TestComplete_WithoutActiveCall(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.rec.Complete(ctx, "s1"); err != nil {
		t.Fatal(err)
	}
	s, _ := h.store.Get(ctx, "s1")
	if !s.Completed || s.Phase != interview.PhaseCompleted {
		t.Fatalf("expected completed session, got phase=%q completed=%v", s.Phase, s.Completed)
	}
	if err := h.rec.Complete(ctx, "s1"); err != nil {
		t.Fatal(err)
	}
	if got := len(h.events.OfType(events.TypeSessionCompleted)); got != 1 {
		t.Fatalf("expected one completion event, got %d", got)
	}
}

func TestApply_LateLegOnClosedSessionIsRecordOnly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.rec.Apply(ctx, Event{SessionID: "s1", CallID: "CA1", Status: interview.CallStatusCompleted}); err != nil {
		t.Fatal(err)
	}
	published := len(h.events.Events())

	for _, ev := range []Event{
		{SessionID: "s1", CallID: "CA2", Status: interview.CallStatusInProgress},
		{SessionID: "s1", CallID: "CA2", Status: interview.CallStatusNoAnswer},
		{SessionID: "s1", CallID: "CA3", Status: interview.CallStatusBusy},
	} {
		out, err := h.rec.Apply(ctx, ev)
		if err != nil {
			t.Fatal(err)
		}
		if out.Terminal {
			t.Fatalf("%s %s must not end the closed session again", ev.CallID, ev.Status)
		}
	}

	s, _ := h.store.Get(ctx, "s1")
	if s.LastCallStatus != interview.CallStatusCompleted {
		t.Fatalf("last_call_status = %q, want completed", s.LastCallStatus)
	}
	if a := s.Attempt("CA3"); a == nil || a.Status != interview.CallStatusBusy {
		t.Fatalf("late terminal leg not recorded: %+v", a)
	}
	if _, ok := h.calls.Get("CA3"); !ok {
		t.Fatalf("late leg call record not saved")
	}
	if n := len(h.events.Events()); n != published {
		t.Fatalf("events published for late legs: %d -> %d", published, n)
	}
	if len(h.dialer.Calls()) != 0 {
		t.Fatalf("late legs must not place a voicemail, got %d dials", len(h.dialer.Calls()))
	}
	c, _ := h.candidates.Get(ctx, "3010000001")
	if c.Status != candidates.StatusScreeningCompleted {
		t.Fatalf("candidate status changed to %q", c.Status)
	}
}

func TestSettle_OnlyOutboundLegsReleaseDialSlot(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	gate := telephony.NewDialGate(rdb, "test", 1)
	h.rec.Gate = gate

	if err := gate.Acquire(ctx); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := h.store.Upsert(ctx, interview.Session{
		ID:             "s2",
		CandidateID:    "3010000001",
		Phase:          interview.PhaseQuestions,
		Ready:          true,
		QuestionPlan:   []string{"q1?"},
		LastCallStatus: interview.CallStatusInProgress,
		Calls: []interview.CallAttempt{{
			CallID:    "CB1",
			Direction: interview.DirectionInbound,
			Status:    interview.CallStatusInProgress,
			CreatedAt: fixedNow,
			UpdatedAt: fixedNow,
		}},
		CreatedAt: fixedNow,
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := h.rec.Apply(ctx, Event{SessionID: "s2", CallID: "CB1", Status: interview.CallStatusCompleted}); err != nil {
		t.Fatal(err)
	}
	if err := gate.Acquire(ctx); !errors.Is(err, telephony.ErrDialCapReached) {
		t.Fatalf("inbound leg freed the outbound slot: %v", err)
	}

	if _, err := h.rec.Apply(ctx, Event{SessionID: "s1", CallID: "CA1", Status: interview.CallStatusCompleted}); err != nil {
		t.Fatal(err)
	}
	if err := gate.Acquire(ctx); err != nil {
		t.Fatalf("outbound leg should have released its slot: %v", err)
	}
}
