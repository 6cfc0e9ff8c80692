// Package logging configures the process-global zerolog logger and a
// gin middleware that emits one structured line per request.
package logging

import (
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init sets the global zerolog logger's level and output. level is one
// of zerolog's recognized names ("debug", "info", "warn", "error");
// an unrecognized name falls back to info rather than failing startup.
func Init(level string, pretty bool) {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)

	var writer = os.Stderr
	if pretty {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: writer, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger()
		return
	}
	log.Logger = zerolog.New(writer).With().Timestamp().Logger()
}

// GinMiddleware logs one line per completed request with stage "http",
// method, route path, status, latency and client IP. It does not log a
// receipt_id.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		event := log.Info()
		if len(c.Errors) > 0 {
			event = log.Error()
		}

		event.Str("stage", "http").
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request completed")
	}
}
