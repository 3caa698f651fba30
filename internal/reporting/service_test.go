package reporting

import (
	"context"
	"testing"
	"time"

	"screening-agent/internal/candidates"
	"screening-agent/internal/interview"
)

var fixedNow = time.Unix(1700000000, 0).UTC()

func TestRecruiterStatus(t *testing.T) {
	cases := []struct {
		last interview.CallStatus
		cand candidates.Status
		want string
	}{
		{interview.CallStatusCompleted, "", StatusAttended},
		{interview.CallStatusNoAnswer, candidates.StatusScreeningCompleted, StatusAttended},
		{interview.CallStatusBusy, candidates.StatusOutboundNoAnswer, StatusNeedCallBack},
		{interview.CallStatusCanceled, "", StatusNeedCallBack},
		{"", candidates.StatusCallbackReceived, StatusCallBackRequired},
		{interview.CallStatusRinging, "", StatusInProgress},
		{"", "", StatusNoResponse},
	}
	for _, tc := range cases {
		if got := RecruiterStatus(tc.last, tc.cand); got != tc.want {
			t.Fatalf("RecruiterStatus(%q, %q) = %q, want %q", tc.last, tc.cand, got, tc.want)
		}
	}
}

func seed(t *testing.T) *interview.MemoryStore {
	t.Helper()
	store := interview.NewMemoryStore()
	ctx := context.Background()
	sessions := []interview.Session{
		{
			ID: "done", JobID: "j1", CreatedAt: fixedNow.Add(-3 * time.Hour), Completed: true,
			LastCallStatus: interview.CallStatusCompleted,
			CompletedQA:    []interview.QA{{Question: "q1", Answer: "a1"}, {Question: "q2", Answer: "a2"}},
			Recommendation: "Recommendation: Good fit for next round.",
			Calls:          []interview.CallAttempt{{CallID: "CA1", Status: interview.CallStatusCompleted, UpdatedAt: fixedNow.Add(-3 * time.Hour)}},
		},
		{
			ID: "stale", JobID: "j2", CreatedAt: fixedNow.Add(-2 * time.Hour), CallInProgress: true,
			LastCallStatus: interview.CallStatusRinging,
			Calls:          []interview.CallAttempt{{CallID: "CA2", Status: interview.CallStatusRinging, UpdatedAt: fixedNow.Add(-10 * time.Minute)}},
		},
		{
			ID: "live", JobID: "j1", CreatedAt: fixedNow.Add(-time.Hour), CallInProgress: true,
			LastCallStatus: interview.CallStatusInProgress,
			Calls:          []interview.CallAttempt{{CallID: "CA3", Status: interview.CallStatusInProgress, UpdatedAt: fixedNow.Add(-30 * time.Second)}},
		},
	}
	for _, s := range sessions {
		if err := store.Upsert(ctx, s); err != nil {
			t.Fatal(err)
		}
	}
	return store
}

func TestSessions_StaleCallReadsAsNoAnswer(t *testing.T) {
	svc := NewService(seed(t), nil, 120*time.Second)
	svc.clock = func() time.Time { return fixedNow }

	views, err := svc.Sessions(context.Background(), SessionFilter{})
	if err != nil {
		t.Fatal(err)
	}
	byID := map[string]SessionView{}
	for _, v := range views {
		byID[v.SessionID] = v
	}
	if v := byID["stale"]; v.LastCallStatus != interview.CallStatusNoAnswer || v.CallInProgress || v.RecruiterStatus != StatusNeedCallBack {
		t.Fatalf("stale session view %+v", v)
	}
	if v := byID["live"]; v.LastCallStatus != interview.CallStatusInProgress || v.RecruiterStatus != StatusInProgress {
		t.Fatalf("live session view %+v", v)
	}
	if v := byID["done"]; v.RecruiterStatus != StatusAttended || v.Answered != 2 {
		t.Fatalf("done session view %+v", v)
	}
}

func TestSessions_FilterByJob(t *testing.T) {
	svc := NewService(seed(t), nil, 120*time.Second)
	svc.clock = func() time.Time { return fixedNow }

	views, err := svc.Sessions(context.Background(), SessionFilter{JobID: "j1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 sessions for j1, got %d", len(views))
	}
}

func TestSummary(t *testing.T) {
	svc := NewService(seed(t), nil, 120*time.Second)
	svc.clock = func() time.Time { return fixedNow }

	out, err := svc.Summary(context.Background(), TimeRange{})
	if err != nil {
		t.Fatal(err)
	}
	if out.Sessions != 3 || out.CallsMade != 3 || out.ActiveCalls != 1 {
		t.Fatalf("unexpected summary %+v", out)
	}
	if out.CallsResponded != 1 || out.CallsNoResponse != 1 || out.SessionsCompleted != 2 {
		t.Fatalf("unexpected summary %+v", out)
	}
	if out.StrongFit != 1 || out.Pending != 2 {
		t.Fatalf("unexpected fit buckets %+v", out)
	}

	if _, err := svc.Summary(context.Background(), TimeRange{From: fixedNow, To: fixedNow.Add(-time.Hour)}); err != ErrInvalidRequest {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}
