package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"screening-agent/internal/audit"
	"screening-agent/internal/auth"
	"screening-agent/internal/calls"
	"screening-agent/internal/candidates"
	"screening-agent/internal/config"
	"screening-agent/internal/interview"
	"screening-agent/internal/rbac"
	"screening-agent/internal/reporting"
	"screening-agent/internal/telephony"
)

type apiHarness struct {
	engine   *gin.Engine
	auth     *auth.Manager
	store    *interview.MemoryStore
	activity *audit.Service
}

func newAPIHarness(t *testing.T, missing []string) *apiHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	m, err := auth.NewManager(config.AuthConfig{JWTSecret: "secret"})
	if err != nil {
		t.Fatal(err)
	}
	store := interview.NewMemoryStore()
	reg := interview.NewRegistry(ctx, store, &interview.Planner{Log: quiet()}, interview.WithLogger(quiet()))
	cands := candidates.NewMemoryRepo()
	activity := audit.NewService(audit.NewMemoryRepo())
	h := Sessions{
		Registry: reg,
		Calls: &calls.Service{
			Registry:   reg,
			Dialer:     telephony.NewRecorder(),
			Candidates: cands,
			Activity:   activity,
			Missing:    missing,
			From:       "+15550009999",
			BaseURL:    "https://screen.example.com",
			StaleTTL:   120 * time.Second,
			Log:        quiet(),
		},
		Reporting:   reporting.NewService(reg, cands, 120*time.Second),
		ActivityLog: activity,
	}

	r := gin.New()
	v1 := r.Group("/v1")
	v1.Use(auth.RequireAccessToken(m), rbac.RequireUser())
	s := v1.Group("/sessions")
	s.Use(rbac.RequireAnyRole(rbac.RoleRecruiter, rbac.RoleAdmin))
	s.POST("", h.Create)
	s.GET("", h.List)
	s.GET("/:id", h.Get)
	s.POST("/:id/start", h.Start)
	s.POST("/:id/calls", h.PlaceCall)
	s.GET("/:id/activity", h.Activity)

	if err := store.Upsert(ctx, interview.Session{
		ID:             "s1",
		JobID:          "job-7",
		JobTitle:       "Site Reliability Engineer",
		CandidatePhone: "+15550001111",
		Stage:          interview.StageParsingJD,
		Phase:          interview.PhaseStarting,
		CreatedAt:      time.Now().UTC(),
	}); err != nil {
		t.Fatal(err)
	}
	return &apiHarness{engine: r, auth: m, store: store, activity: activity}
}

func (h *apiHarness) do(t *testing.T, method, target, role string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		tok, err := h.auth.IssueAccess(time.Now(), "user-1", role, time.Hour)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	h.engine.ServeHTTP(w, req)
	return w
}

func TestSessionRoutesRequireRole(t *testing.T) {
	h := newAPIHarness(t, nil)
	if w := h.do(t, http.MethodGet, "/v1/sessions", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	if w := h.do(t, http.MethodGet, "/v1/sessions", rbac.RoleViewer, nil); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for viewer, got %d", w.Code)
	}
	if w := h.do(t, http.MethodGet, "/v1/sessions", rbac.RoleSuperAdmin, nil); w.Code != http.StatusOK {
		t.Fatalf("expected super_admin bypass, got %d", w.Code)
	}
}

func TestCreateSessionValidates(t *testing.T) {
	h := newAPIHarness(t, nil)
	w := h.do(t, http.MethodPost, "/v1/sessions", rbac.RoleRecruiter, map[string]string{"job_title": "SRE"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without job description and resume, got %d: %s", w.Code, w.Body.String())
	}
}

func TestListFiltersByJob(t *testing.T) {
	h := newAPIHarness(t, nil)
	w := h.do(t, http.MethodGet, "/v1/sessions?job_id=job-7", rbac.RoleRecruiter, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: %d %s", w.Code, w.Body.String())
	}
	var out struct {
		Sessions []reporting.SessionView `json:"sessions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Sessions) != 1 || out.Sessions[0].SessionID != "s1" {
		t.Fatalf("unexpected sessions: %+v", out.Sessions)
	}

	w = h.do(t, http.MethodGet, "/v1/sessions?job_id=other", rbac.RoleRecruiter, nil)
	out.Sessions = nil
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if len(out.Sessions) != 0 {
		t.Fatalf("expected empty listing, got %+v", out.Sessions)
	}
}

func TestGetUnknownSessionIs404(t *testing.T) {
	h := newAPIHarness(t, nil)
	if w := h.do(t, http.MethodGet, "/v1/sessions/nope", rbac.RoleAdmin, nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestStartBeforeReadyConflicts(t *testing.T) {
	h := newAPIHarness(t, nil)
	if w := h.do(t, http.MethodPost, "/v1/sessions/s1/start", rbac.RoleRecruiter, nil); w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestPlaceCallWithoutCredentialsIs503(t *testing.T) {
	h := newAPIHarness(t, []string{"TWILIO_ACCOUNT_SID"})
	w := h.do(t, http.MethodPost, "/v1/sessions/s1/calls", rbac.RoleRecruiter, map[string]string{"to": "+15550001111"})
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", w.Code, w.Body.String())
	}
	var out struct {
		Missing []string `json:"missing"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Missing) != 1 || out.Missing[0] != "TWILIO_ACCOUNT_SID" {
		t.Fatalf("unexpected missing list: %+v", out.Missing)
	}
}

func TestActivityListsCandidateEvents(t *testing.T) {
	h := newAPIHarness(t, nil)
	ctx := context.Background()

	w := h.do(t, http.MethodGet, "/v1/sessions/s1/activity", rbac.RoleRecruiter, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("activity: %d %s", w.Code, w.Body.String())
	}
	var out struct {
		CandidateID string        `json:"candidate_id"`
		Events      []audit.Event `json:"events"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out.Events == nil || len(out.Events) != 0 {
		t.Fatalf("expected empty event list without a candidate, got %s", w.Body.String())
	}

	if err := h.store.Upsert(ctx, interview.Session{
		ID:             "s2",
		CandidateID:    "cand-9",
		CandidatePhone: "+15550002222",
		Stage:          interview.StageReady,
		Phase:          interview.PhaseStarting,
		CreatedAt:      time.Now().UTC(),
	}); err != nil {
		t.Fatal(err)
	}
	h.activity.Record(ctx, "cand-9", "s2", audit.EventScreeningInitialized, "", "session created")

	w = h.do(t, http.MethodGet, "/v1/sessions/s2/activity", rbac.RoleRecruiter, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("activity: %d %s", w.Code, w.Body.String())
	}
	out.Events = nil
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out.CandidateID != "cand-9" || len(out.Events) != 1 || out.Events[0].Type != audit.EventScreeningInitialized {
		t.Fatalf("unexpected activity: %s", w.Body.String())
	}
}
