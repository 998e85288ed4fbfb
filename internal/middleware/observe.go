package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"

	"filemart/internal/logging"
	"filemart/internal/obs"
)

const RequestIDHeader = "X-Request-ID"

// Observe records request metrics, assigns a request id and writes one log
// line per request.
func Observe(log logging.Logger) gin.HandlerFunc {
	log = log.With("component", "HTTP")
	return func(c *gin.Context) {
		start := time.Now()
		obs.RequestStarted()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = ulid.Make().String()
		}
		c.Header(RequestIDHeader, requestID)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)
		obs.RequestFinished(c.Request.Method, route, strconv.Itoa(status), elapsed)

		log.Info(c.Request.Context(), "request",
			"requestId", requestID,
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"durationMs", elapsed.Milliseconds(),
			"ip", c.ClientIP(),
		)
	}
}
