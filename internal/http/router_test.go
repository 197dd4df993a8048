package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-feed-backend/internal/config"
	"github.com/tbourn/go-feed-backend/internal/domain"
	"github.com/tbourn/go-feed-backend/internal/services"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

type stubCompose struct{}

func (stubCompose) ComposePost(ctx context.Context, req services.ComposeRequest) (domain.Post, error) {
	return domain.Post{PostID: 42}, nil
}

type stubFeed struct{ posts []domain.Post }

func (s stubFeed) ReadFeed(ctx context.Context, reqID, ownerID int64, start, stop int, carrier map[string]string) ([]domain.Post, error) {
	return s.posts, nil
}

type stubWrites struct{}

func (stubWrites) WriteOwnFeed(context.Context, int64, int64, int64, int64, map[string]string) error {
	return nil
}

func (stubWrites) WriteHomeFeeds(context.Context, int64, int64, int64, int64, []int64, map[string]string) error {
	return nil
}

type stubLookup struct{}

func (stubLookup) ReadPost(ctx context.Context, reqID, postID int64, carrier map[string]string) (domain.Post, error) {
	return domain.Post{PostID: postID, Text: "stored"}, nil
}

func testConfig() config.Config {
	return config.Config{
		APIBasePath: "/api/v1",
		RateRPS:     100,
		RateBurst:   10,
		OTEL:        config.OTELConfig{ServiceName: "test-svc"},
	}
}

func newRouter(cfg config.Config, checks map[string]Pinger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, Deps{
		Compose:      stubCompose{},
		UserTimeline: stubFeed{posts: []domain.Post{{PostID: 1, Text: strings.Repeat("feed ", 400)}}},
		HomeTimeline: stubFeed{},
		Feeds:        stubWrites{},
		Posts:        stubLookup{},
		Checks:       checks,
	}, cfg)
	return r
}

func serve(r *gin.Engine, method, path, body string, hdr ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterRoutes_HealthMetricsFallbacks(t *testing.T) {
	r := newRouter(testConfig(), map[string]Pinger{
		"redis":    pingerFunc(func(context.Context) error { return nil }),
		"feed_log": pingerFunc(func(context.Context) error { return nil }),
	})

	w := serve(r, http.MethodGet, "/health", "", "Origin", "http://anywhere.test")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body.Status != "ok" || body.Checks["redis"] != "ok" || body.Checks["feed_log"] != "ok" {
		t.Fatalf("health body = %+v", body)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("allow-all CORS expected '*', got %q", got)
	}
	if w.Header().Get("X-Request-ID") == "" || w.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("request id / security headers missing: %v", w.Header())
	}

	if w := serve(r, http.MethodGet, "/metrics", ""); w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Fatalf("GET /metrics = %d", w.Code)
	}
	if w := serve(r, http.MethodGet, "/nope", ""); w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), "not_found") {
		t.Fatalf("NoRoute = %d %s", w.Code, w.Body.String())
	}
	if w := serve(r, http.MethodDelete, "/api/v1/posts", ""); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("NoMethod = %d", w.Code)
	}
}

func TestRegisterRoutes_HealthDegraded(t *testing.T) {
	r := newRouter(testConfig(), map[string]Pinger{
		"redis": pingerFunc(func(context.Context) error { return errors.New("connection refused") }),
	})
	w := serve(r, http.MethodGet, "/health", "")
	if w.Code != http.StatusServiceUnavailable || !strings.Contains(w.Body.String(), "connection refused") {
		t.Fatalf("degraded health = %d %s", w.Code, w.Body.String())
	}
}

func TestRegisterRoutes_CORSAllowList(t *testing.T) {
	cfg := testConfig()
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://frontend.test"}}
	r := newRouter(cfg, nil)

	w := serve(r, http.MethodGet, "/health", "", "Origin", "http://frontend.test")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://frontend.test" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}
	w = serve(r, http.MethodGet, "/health", "", "Origin", "http://evil.test")
	if w.Code != http.StatusForbidden {
		t.Fatalf("disallowed origin = %d", w.Code)
	}
}

func TestRegisterRoutes_FeedEndpoints(t *testing.T) {
	r := newRouter(testConfig(), nil)

	w := serve(r, http.MethodPost, "/api/v1/posts", `{"username":"alice","user_id":1}`)
	if w.Code != http.StatusCreated || !strings.Contains(w.Body.String(), `"post_id":42`) {
		t.Fatalf("POST /posts = %d %s", w.Code, w.Body.String())
	}

	w = serve(r, http.MethodGet, "/api/v1/posts/5", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"text":"stored"`) {
		t.Fatalf("GET /posts/5 = %d %s", w.Code, w.Body.String())
	}

	w = serve(r, http.MethodGet, "/api/v1/users/1/timeline", "", "Accept-Encoding", "gzip")
	if w.Code != http.StatusOK || w.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("timeline must be gzip-compressed: %d %v", w.Code, w.Header())
	}

	for _, p := range []string{"/ComposePost", "/WriteUserTimeline", "/ReadUserTimeline", "/WriteHomeTimeline", "/ReadHomeTimeline"} {
		body := `{"req_id":1,"post_id":1,"user_id":1,"username":"a","stop":10}`
		if w := serve(r, http.MethodPost, p, body); w.Code != http.StatusOK {
			t.Fatalf("POST %s = %d %s", p, w.Code, w.Body.String())
		}
	}
}

func TestRegisterRoutes_RateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.RateRPS, cfg.RateBurst = 0.0001, 1
	r := newRouter(cfg, nil)

	serve(r, http.MethodGet, "/api/v1/users/1/home-timeline", "", "X-Client-ID", "c1")
	w := serve(r, http.MethodGet, "/api/v1/users/1/home-timeline", "", "X-Client-ID", "c1")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request = %d", w.Code)
	}
}

func Test_limitBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})
	if w := serve(r, http.MethodPost, "/echo", "0123456789AB"); w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	groupWithPrefix(r, "/").GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	groupWithPrefix(r, "").GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })
	groupWithPrefix(r, "/api").GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		if w := serve(r, http.MethodGet, path, ""); w.Code != http.StatusOK || w.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, w.Code, w.Body.String())
		}
	}
}

func TestHealth_TimeoutPerCheck(t *testing.T) {
	var deadline time.Time
	h := health(map[string]Pinger{"slow": pingerFunc(func(ctx context.Context) error {
		deadline, _ = ctx.Deadline()
		return nil
	})})
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/h", h)
	serve(r, http.MethodGet, "/h", "")
	if deadline.IsZero() || time.Until(deadline) > healthTimeout {
		t.Fatalf("ping must run under a deadline, got %v", deadline)
	}
}

func TestRegisterRoutes_Swagger(t *testing.T) {
	if w := serve(newRouter(testConfig(), nil), http.MethodGet, "/swagger/doc.json", ""); w.Code != http.StatusNotFound {
		t.Fatalf("swagger must be off by default, got %d", w.Code)
	}

	cfg := testConfig()
	cfg.SwaggerEnabled = true
	r := newRouter(cfg, nil)

	w := serve(r, http.MethodGet, "/swagger/doc.json", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /swagger/doc.json = %d", w.Code)
	}
	var doc struct {
		Paths map[string]json.RawMessage `json:"paths"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil {
		t.Fatalf("doc.json is not JSON: %v", err)
	}
	for _, p := range []string{"/api/v1/posts", "/api/v1/posts/{id}", "/api/v1/users/{id}/timeline", "/api/v1/users/{id}/home-timeline", "/ComposePost", "/ReadUserTimeline", "/WriteHomeTimeline"} {
		if _, ok := doc.Paths[p]; !ok {
			t.Fatalf("path %s missing from OpenAPI doc", p)
		}
	}

	if w := serve(r, http.MethodGet, "/swagger/index.html", ""); w.Code != http.StatusOK {
		t.Fatalf("GET /swagger/index.html = %d", w.Code)
	}
}
