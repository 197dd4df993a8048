// Package httpapi wires the Gin transport to the feed services, middleware
// and route handlers. It owns cross-cutting HTTP concerns: tracing,
// correlation IDs, access logging, panic recovery, metrics, compression,
// rate limiting, CORS and security headers.
package httpapi

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	_ "github.com/tbourn/go-feed-backend/docs" // registers the OpenAPI spec served by /swagger
	"github.com/tbourn/go-feed-backend/internal/config"
	"github.com/tbourn/go-feed-backend/internal/http/handlers"
	"github.com/tbourn/go-feed-backend/internal/http/middleware"
	"github.com/tbourn/go-feed-backend/internal/services"
)

// maxBodyBytes caps request bodies. Compose bodies carry text and a few
// media ids, so this is generous.
const maxBodyBytes = 1 << 20

// healthTimeout bounds each dependency ping in /health.
const healthTimeout = 2 * time.Second

// Pinger is a dependency probed by /health: the cache router and the
// durable feed log.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps carries the services behind the routes.
type Deps struct {
	Compose      handlers.Composer
	UserTimeline handlers.FeedReader
	HomeTimeline handlers.FeedReader
	Feeds        services.FeedWrites
	Posts        handlers.PostLookup
	Checks       map[string]Pinger
}

// RegisterRoutes attaches middleware and endpoints to r.
//
// Middleware order:
//  1. OpenTelemetry
//  2. RequestID
//  3. Logger (attaches the request logger to the context)
//  4. Recovery
//  5. Body size limit
//  6. Metrics
//  7. Gzip
//  8. Rate limiter
//  9. CORS and security headers
//
// Swagger UI is served under /swagger when cfg.SwaggerEnabled is set.
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxBodyBytes))
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByClientOrIP())
	r.Use(rl.Handler())

	r.Use(cors.New(corsConfig(cfg.CORS)))
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      true,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", health(deps.Checks))

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(deps.Compose, deps.UserTimeline, deps.HomeTimeline, deps.Feeds, deps.Posts)

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		api.POST("/posts", h.CreatePost)
		api.GET("/posts/:id", h.GetPost)
		api.GET("/users/:id/timeline", h.GetUserTimeline)
		api.GET("/users/:id/home-timeline", h.GetHomeTimeline)
	}

	// Collaborator-style endpoints.
	r.POST("/ComposePost", h.ComposePost)
	r.POST("/WriteUserTimeline", h.WriteUserTimeline)
	r.POST("/ReadUserTimeline", h.ReadUserTimeline)
	r.POST("/WriteHomeTimeline", h.WriteHomeTimeline)
	r.POST("/ReadHomeTimeline", h.ReadHomeTimeline)
}

// corsConfig allows every origin when none are configured; credentials
// stay off in both cases.
func corsConfig(c config.CORSConfig) cors.Config {
	cc := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Request-ID", middleware.ClientHeader},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(c.AllowedOrigins) == 0 {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = c.AllowedOrigins
	}
	return cc
}

// health pings every check and answers 200 when all pass, 503 otherwise.
func health(checks map[string]Pinger) gin.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(c *gin.Context) {
		status, code := "ok", http.StatusOK
		results := make(map[string]string, len(names))
		for _, name := range names {
			ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
			err := checks[name].Ping(ctx)
			cancel()
			if err != nil {
				results[name] = err.Error()
				status, code = "degraded", http.StatusServiceUnavailable
				middleware.LoggerFrom(c).Warn().Err(err).Str("check", name).Msg("health check failed")
				continue
			}
			results[name] = "ok"
		}
		c.JSON(code, gin.H{"status": status, "checks": results})
	}
}

// limitBody caps request bodies with http.MaxBytesReader.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
