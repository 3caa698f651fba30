package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"screening-agent/internal/calls"
	"screening-agent/internal/faults"
	"screening-agent/internal/interview"
	"screening-agent/internal/reporting"
	"screening-agent/internal/telephony"
	"screening-agent/pkg/logger"
)

// abortError maps service errors onto status codes. Unknown errors are logged
// and reported as 500 without detail.
func abortError(c *gin.Context, err error) {
	var cfgErr *faults.ConfigurationError
	switch {
	case errors.As(err, &cfgErr):
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": err.Error(), "missing": cfgErr.Missing})
	case errors.Is(err, interview.ErrNotFound), errors.Is(err, calls.ErrCallNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, interview.ErrCompleted), errors.Is(err, interview.ErrNotReady),
		errors.Is(err, calls.ErrCallActive):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, telephony.ErrDialCapReached):
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
	case errors.Is(err, interview.ErrInvalidInput), errors.Is(err, calls.ErrNoPhone),
		errors.Is(err, reporting.ErrInvalidRequest):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, faults.ErrProviderUnavailable):
		logger.FromGin(c).Warn("provider failure", "kind", faults.Kind(err), "err", err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
