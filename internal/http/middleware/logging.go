// Package middleware contains shared Gin middleware used by the public feed
// API and the development collaborator stack.
//
// This file provides request correlation, structured access logging and a
// panic-safe recovery handler:
//
//   - RequestID() propagates or mints an X-Request-ID and derives the numeric
//     req_id that every collaborator call carries.
//   - Logger() emits one structured access log per request and attaches a
//     request-scoped zerolog.Logger both to the Gin context (key "logger")
//     and to the request context, so services can log with zerolog.Ctx.
//   - Recovery() converts panics into JSON 500 responses.
//
// Recommended order: RequestID(), Logger() (or RedactingLogger), Recovery().
package middleware

import (
	"encoding/binary"
	"hash/fnv"
	"math"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// requestIDKey is the Gin context key holding the X-Request-ID string.
	requestIDKey = "requestID"
	// reqIDKey is the Gin context key holding the numeric req_id.
	reqIDKey = "reqID"
	// requestIDHeader is the HTTP header used to propagate the correlation ID.
	requestIDHeader = "X-Request-ID"
	// maxQueryLogLength caps the number of bytes of the raw query string logged.
	maxQueryLogLength = 2048
)

// RequestID attaches (or propagates) a correlation identifier per request.
//
// An incoming X-Request-ID is reused; otherwise a UUIDv4 is generated. The ID
// is echoed in the response header. The numeric req_id is the first 63 bits
// of the UUID, or an FNV-1a hash for non-UUID header values.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Set(reqIDKey, NumericReqID(rid))
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// NumericReqID maps a request ID string to a non-negative int64.
func NumericReqID(rid string) int64 {
	if u, err := uuid.Parse(rid); err == nil {
		return int64(binary.BigEndian.Uint64(u[:8]) & math.MaxInt64)
	}
	h := fnv.New64a()
	h.Write([]byte(rid))
	return int64(h.Sum64() & math.MaxInt64)
}

// RequestIDFrom returns the X-Request-ID set by RequestID, or "".
func RequestIDFrom(c *gin.Context) string {
	v, _ := c.Get(requestIDKey)
	return asString(v)
}

// ReqIDFrom returns the numeric req_id set by RequestID. Without the
// middleware it derives one from the request header, or returns 0.
func ReqIDFrom(c *gin.Context) int64 {
	if v, ok := c.Get(reqIDKey); ok {
		if id, ok := v.(int64); ok {
			return id
		}
	}
	if rid := c.GetHeader(requestIDHeader); rid != "" {
		return NumericReqID(rid)
	}
	return 0
}

// Logger writes a structured access log for each request.
//
// Level is chosen by outcome: error for 5xx or when Gin collected errors,
// warn for 4xx, info otherwise. The error code set by the handler (if any)
// is included.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		rid, _ := c.Get(requestIDKey)
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		l := log.With().
			Str("request_id", asString(rid)).
			Int64("req_id", ReqIDFrom(c)).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("remote_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Str("query", truncate(c.Request.URL.RawQuery, maxQueryLogLength)).
			Int64("bytes_in", c.Request.ContentLength).
			Logger()

		c.Set("logger", &l)
		c.Request = c.Request.WithContext(l.WithContext(c.Request.Context()))

		c.Next()

		ev := l.With().
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Int("bytes_out", c.Writer.Size()).
			Str("code", c.GetString(ErrorCodeKey)).
			Logger()

		switch status := c.Writer.Status(); {
		case len(c.Errors) > 0:
			ev.Error().Str("errors", c.Errors.String()).Msg("request")
		case status >= 500:
			ev.Error().Msg("request")
		case status >= 400:
			ev.Warn().Msg("request")
		default:
			ev.Info().Msg("request")
		}
	}
}

// Recovery intercepts panics, logs a stack trace, and returns a JSON 500
// error in the standard envelope when nothing has been written yet.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				rid := RequestIDFrom(c)
				log.Error().
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Str("request_id", rid).
					Msg("panic recovered")

				if !c.Writer.Written() {
					c.Header(requestIDHeader, rid)
					c.Set(ErrorCodeKey, "internal_error")
					c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
						"request_id": rid,
						"code":       "internal_error",
						"message":    "internal server error",
					})
					return
				}
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped zerolog.Logger, or a fallback
// without request fields.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get("logger"); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

func asString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// truncate caps s at max bytes, appending an ellipsis. A max <= 0 disables
// truncation.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
