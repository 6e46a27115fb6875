package rest

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	headerRequestID      = "X-Request-ID"
	headerIdempotencyKey = "Idempotency-Key"
	headerReplayed       = "Idempotent-Replayed"
)

// observe присваивает запросу id, пишет access-лог и метрики.
func (h *Handler) observe(c *gin.Context) {
	requestID := c.GetHeader(headerRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header(headerRequestID, requestID)

	start := time.Now()
	finish := h.metrics.RequestStarted()
	c.Next()

	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	status := c.Writer.Status()
	finish(c.Request.Method, route, status)

	entry := h.logger.WithFields(log.Fields{
		"request_id":  requestID,
		"method":      c.Request.Method,
		"route":       route,
		"status":      status,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	switch {
	case status >= 500:
		entry.Error("request failed")
	case status >= 400:
		entry.Info("request rejected")
	default:
		entry.Debug("request served")
	}
}
