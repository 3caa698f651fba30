package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"screening-agent/internal/auth"
	"screening-agent/internal/httpapi"
	"screening-agent/internal/rbac"
)

// registerPublicRoutes wires health, audio and the provider webhooks.
// signature may be nil when validation is disabled.
func registerPublicRoutes(r *gin.Engine, h *httpapi.Webhooks, signature gin.HandlerFunc) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/audio/:name", h.ServeAudio)

	tw := r.Group("/twilio")
	if signature != nil {
		tw.Use(signature)
	}
	{
		tw.POST("/voice", h.Voice)
		tw.POST("/process", h.Process)
		tw.POST("/listen", h.Listen)
		tw.POST("/status", h.Status)
		tw.POST("/operator/join", h.OperatorJoin)
	}
}

// registerProtectedRoutes wires the recruiter API behind bearer auth.
// Keep this file free of business logic. Handlers delegate to internal modules.
func registerProtectedRoutes(r *gin.Engine, authMW gin.HandlerFunc, h httpapi.Sessions) {
	v1 := r.Group("/v1")
	v1.Use(authMW, rbac.RequireUser())
	{
		v1.GET("/me", func(c *gin.Context) {
			uid, _ := auth.UserID(c.Request.Context())
			role, _ := auth.Role(c.Request.Context())
			c.JSON(http.StatusOK, gin.H{"user_id": uid, "role": role})
		})

		sessions := v1.Group("/sessions")
		sessions.Use(rbac.RequireAnyRole(rbac.RoleRecruiter, rbac.RoleAdmin))
		{
			sessions.POST("", h.Create)
			sessions.GET("", h.List)
			sessions.GET("/:id", h.Get)
			sessions.GET("/:id/status", h.Status)
			sessions.POST("/:id/start", h.Start)
			sessions.POST("/:id/calls", h.PlaceCall)
			sessions.GET("/:id/calls/:call_id", h.RefreshCall)
			sessions.POST("/:id/end", h.End)
			sessions.GET("/:id/activity", h.Activity)
		}

		reports := v1.Group("/reports")
		reports.Use(rbac.RequireAnyRole(rbac.RoleRecruiter, rbac.RoleAdmin, rbac.RoleViewer))
		{
			reports.GET("/summary", h.Summary)
		}
	}
}
