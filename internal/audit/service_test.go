package audit

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestService_AppendRequiresCandidateAndType(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	if err := svc.Append(context.Background(), Event{Type: EventMissedCall}); err == nil {
		t.Fatalf("expected error")
	}
	if err := svc.Append(context.Background(), Event{CandidateID: "3010000001"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestService_RecordTruncatesDetails(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	svc.Record(context.Background(), "3010000001", "s1", EventCallStatusUpdated, "CA1", strings.Repeat("x", 2500))
	svc.Record(context.Background(), "", "s1", EventCallStatusUpdated, "CA1", "skipped")

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event, got %d", len(evs))
	}
	if n := utf8.RuneCountInString(evs[0].Details); n > maxDetails {
		t.Fatalf("details not truncated: %d runes", n)
	}
	if evs[0].ID == "" || evs[0].CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp")
	}
}

func TestService_ListNewestFirst(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	ctx := context.Background()
	svc.Record(ctx, "c1", "s1", EventScreeningInitialized, "", "first")
	svc.Record(ctx, "c2", "s2", EventScreeningInitialized, "", "other")
	svc.Record(ctx, "c1", "s1", EventScreeningCompleted, "", "second")

	evs, err := svc.List(ctx, "c1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 2 || evs[0].Type != EventScreeningCompleted {
		t.Fatalf("unexpected events %+v", evs)
	}
}
