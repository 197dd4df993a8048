package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-feed-backend/internal/domain"
	"github.com/tbourn/go-feed-backend/internal/http/middleware"
)

// ErrorResponse is the error envelope of the public API.
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// RPCErrorResponse is the error body of the collaborator-style endpoints.
// Callers read the error field.
type RPCErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// StatusResponse acknowledges a write.
type StatusResponse struct {
	Status string `json:"status"`
	PostID int64  `json:"post_id,omitempty"`
}

// PostsResponse wraps a feed window.
type PostsResponse struct {
	Posts []domain.Post `json:"posts"`
}

// fail aborts with an ErrorResponse. 5xx responses are logged with the
// request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	record(c, status, code, msg)
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// failRPC aborts with an RPCErrorResponse.
func failRPC(c *gin.Context, status int, code, msg string) {
	record(c, status, code, msg)
	c.AbortWithStatusJSON(status, RPCErrorResponse{Error: msg, Code: code})
}

func record(c *gin.Context, status int, code, msg string) {
	c.Set(middleware.ErrorCodeKey, code)
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}
}

// Fail is the exported variant of fail for router-level fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// failErr maps err through classify and responds in the public envelope.
func failErr(c *gin.Context, err error) {
	status, code, msg := classify(err)
	fail(c, status, code, msg)
}

// failErrRPC maps err through classify and responds in the RPC envelope.
func failErrRPC(c *gin.Context, err error) {
	status, code, msg := classify(err)
	failRPC(c, status, code, msg)
}

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
