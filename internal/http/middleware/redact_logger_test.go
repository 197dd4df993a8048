package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func TestRedact(t *testing.T) {
	in := "id=0123abcd-0000-4000-8000-000000000000&mail=bob@example.com&tel=212-555-1212"
	got := Redact(in)
	for _, leak := range []string{"0123abcd", "bob@example.com", "555-1212"} {
		if strings.Contains(got, leak) {
			t.Fatalf("%q leaked in %q", leak, got)
		}
	}
	for _, tag := range []string{"[REDACTED:id]", "[REDACTED:email]", "[REDACTED:phone]"} {
		if !strings.Contains(got, tag) {
			t.Fatalf("missing %s in %q", tag, got)
		}
	}
	if Redact("") != "" || Redact("username=alice") != "username=alice" {
		t.Fatalf("clean input must pass through")
	}
}

func TestRedactingLogger_MasksHeadersAndQuery(t *testing.T) {
	buf := captureLogger(t)
	r := newEngine(RequestID(), RedactingLogger(RedactOptions{MaskHeaders: []string{" X-Api-Key "}}))
	r.GET("/GetUserId", func(c *gin.Context) {
		zerolog.Ctx(c.Request.Context()).Info().Msg("lookup")
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/GetUserId?contact=bob@example.com", nil)
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("X-Api-Key", "k-123")
	req.Header.Set(requestIDHeader, "rid-1")
	r.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	for _, leak := range []string{"secret", "k-123", "bob@example.com"} {
		if strings.Contains(out, leak) {
			t.Fatalf("%q leaked:\n%s", leak, out)
		}
	}
	if !strings.Contains(out, `"message":"lookup"`) || strings.Count(out, `"request_id":"rid-1"`) != 2 {
		t.Fatalf("request-scoped logger missing:\n%s", out)
	}
	if !strings.Contains(out, `"level":"info"`) || !strings.Contains(out, `"http_request"`) {
		t.Fatalf("access log missing:\n%s", out)
	}
}

func TestRedactingLogger_Levels(t *testing.T) {
	buf := captureLogger(t)
	r := newEngine(RedactingLogger(RedactOptions{}))
	r.GET("/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/bad", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	out := buf.String()
	if !strings.Contains(out, `"level":"warn"`) || !strings.Contains(out, `"level":"error"`) {
		t.Fatalf("unexpected levels:\n%s", out)
	}
}
