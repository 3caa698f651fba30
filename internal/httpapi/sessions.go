package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"screening-agent/internal/audit"
	"screening-agent/internal/auth"
	"screening-agent/internal/calls"
	"screening-agent/internal/interview"
	"screening-agent/internal/reporting"
	"screening-agent/pkg/logger"
)

// Sessions groups the recruiter-facing handlers.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Sessions struct {
	Registry    *interview.Registry
	Calls       *calls.Service
	Reporting   *reporting.Service
	ActivityLog *audit.Service
}

type createSessionRequest struct {
	JobID          string `json:"job_id"`
	JobTitle       string `json:"job_title"`
	JobDescription string `json:"job_description"`
	ResumeText     string `json:"resume_text"`
	AgentProfile   string `json:"agent_profile"`
	CandidatePhone string `json:"candidate_phone"`
}

// Create starts the initialization pipeline and returns immediately; poll
// Status for progress.
func (h Sessions) Create(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	s, err := h.Registry.Create(c.Request.Context(), interview.CreateRequest{
		JobID:          strings.TrimSpace(req.JobID),
		JobTitle:       req.JobTitle,
		JobDescription: req.JobDescription,
		ResumeText:     req.ResumeText,
		AgentProfile:   strings.TrimSpace(req.AgentProfile),
		CandidatePhone: strings.TrimSpace(req.CandidatePhone),
	})
	if err != nil {
		abortError(c, err)
		return
	}
	uid, _ := auth.UserID(c.Request.Context())
	logger.Enrich(c, "session_id", s.ID).Info("screening session created", "user_id", uid, "job_id", s.JobID)
	c.JSON(http.StatusAccepted, gin.H{"session_id": s.ID, "stage": s.Stage, "phase": s.Phase})
}

func (h Sessions) List(c *gin.Context) {
	views, err := h.Reporting.Sessions(c.Request.Context(), reporting.SessionFilter{JobID: c.Query("job_id")})
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": views})
}

func (h Sessions) Get(c *gin.Context) {
	s, err := h.Registry.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": s, "view": h.Reporting.View(c.Request.Context(), s)})
}

// Status reports pipeline progress.
func (h Sessions) Status(c *gin.Context) {
	s, err := h.Registry.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortError(c, err)
		return
	}
	pct, steps := interview.Progress(s.Stage)
	c.JSON(http.StatusOK, gin.H{
		"session_id": s.ID,
		"stage":      s.Stage,
		"progress":   pct,
		"steps":      steps,
		"ready":      s.Ready,
		"error":      s.Error,
	})
}

func (h Sessions) Start(c *gin.Context) {
	ctx := c.Request.Context()
	if _, err := h.Registry.Get(ctx, c.Param("id")); err != nil {
		abortError(c, err)
		return
	}
	s, err := h.Registry.StartTrigger(ctx, c.Param("id"))
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": s.ID, "start_triggered": s.StartTriggered})
}

type placeCallRequest struct {
	To           string `json:"to"`
	AgentProfile string `json:"agent_profile"`
}

func (h Sessions) PlaceCall(c *gin.Context) {
	var req placeCallRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}
	ctx := c.Request.Context()
	if _, err := h.Registry.Get(ctx, c.Param("id")); err != nil {
		abortError(c, err)
		return
	}
	s, info, err := h.Calls.Place(ctx, c.Param("id"), strings.TrimSpace(req.To), strings.TrimSpace(req.AgentProfile))
	if err != nil {
		abortError(c, err)
		return
	}
	logger.Enrich(c, "session_id", s.ID, "call_sid", info.CallID).Info("screening call placed")
	c.JSON(http.StatusOK, gin.H{"session_id": s.ID, "call": info})
}

func (h Sessions) RefreshCall(c *gin.Context) {
	s, info, err := h.Calls.Refresh(c.Request.Context(), c.Param("id"), c.Param("call_id"))
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id":       s.ID,
		"call":             info,
		"last_call_status": s.LastCallStatus,
		"completed":        s.Completed,
	})
}

func (h Sessions) End(c *gin.Context) {
	s, err := h.Calls.ForceEnd(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": s.ID, "completed": s.Completed, "last_call_status": s.LastCallStatus})
}

func (h Sessions) Activity(c *gin.Context) {
	s, err := h.Registry.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortError(c, err)
		return
	}
	if s.CandidateID == "" {
		c.JSON(http.StatusOK, gin.H{"events": []audit.Event{}})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	evs, err := h.ActivityLog.List(c.Request.Context(), s.CandidateID, limit)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"candidate_id": s.CandidateID, "events": evs})
}

// Summary aggregates sessions created in [from, to). Both bounds are RFC 3339
// and optional.
func (h Sessions) Summary(c *gin.Context) {
	var r reporting.TimeRange
	for key, dst := range map[string]*time.Time{"from": &r.From, "to": &r.To} {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": key + " must be RFC 3339"})
			return
		}
		*dst = t.UTC()
	}
	out, err := h.Reporting.Summary(c.Request.Context(), r)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
