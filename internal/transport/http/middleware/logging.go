package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	jww "github.com/spf13/jwalterweatherman"
)

// RequestLogger logs one line per request through jww.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		logger := jww.INFO
		switch {
		case status >= 500:
			logger = jww.ERROR
		case status >= 400:
			logger = jww.DEBUG
		}
		logger.Printf("[HTTP] %s %s %d %s", c.Request.Method, c.Request.URL.Path, status, time.Since(start).Round(time.Microsecond))
	}
}

// SecurityHeaders sets conservative response headers.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}
