// Package devstack serves every collaborator the feed service calls (users,
// text, media, unique ids, social graph and post storage) from one process
// backed by a single SQL database. It speaks the same JSON-over-HTTP wire
// format as the clients package and is meant for local runs and end-to-end
// tests, not production.
package devstack

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-feed-backend/internal/http/middleware"
	"github.com/tbourn/go-feed-backend/internal/observability"
	"github.com/tbourn/go-feed-backend/internal/repo"
	"github.com/tbourn/go-feed-backend/internal/uniqueid"
)

// Server holds the state shared by the collaborator handlers.
type Server struct {
	db  *gorm.DB
	ids *uniqueid.Generator

	// shortCode returns the random part of a short link.
	shortCode func() string
}

// New returns a Server over db. The schema must already be migrated with
// repo.AutoMigrateDevStack.
func New(db *gorm.DB, ids *uniqueid.Generator) *Server {
	return &Server{db: db, ids: ids, shortCode: randomCode}
}

// Router builds a Gin engine with the collaborator routes and the request
// id, redacting access log, recovery and metrics middleware.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{}))
	r.Use(middleware.Recovery())
	r.Use(middleware.Metrics())
	s.Register(r)
	return r
}

// Register mounts the collaborator endpoints on r.
func (s *Server) Register(r gin.IRoutes) {
	r.GET("/health", s.health)

	// user service
	r.POST("/RegisterUserWithId", s.registerUserWithID)
	r.POST("/ComposeCreatorWithUserId", s.composeCreatorWithUserID)
	r.POST("/GetUserId", s.getUserID)

	// text, url-shorten and user-mention services
	r.POST("/ComposeText", s.composeText)
	r.POST("/ComposeUrls", s.composeURLs)
	r.POST("/GetExtendedUrls", s.getExtendedURLs)
	r.POST("/ComposeUserMentions", s.composeUserMentions)

	// media and unique-id services
	r.POST("/ComposeMedia", s.composeMedia)
	r.POST("/ComposeUniqueId", s.composeUniqueID)

	// social-graph service
	r.POST("/Follow", s.follow)
	r.POST("/Unfollow", s.unfollow)
	r.POST("/FollowWithUsername", s.followWithUsername)
	r.POST("/GetFollowers", s.getFollowers)
	r.POST("/GetFollowees", s.getFollowees)

	// post-storage service
	r.POST("/StorePost", s.storePost)
	r.POST("/ReadPost", s.readPost)
	r.POST("/ReadPosts", s.readPosts)
}

// envelope is the part of every request body the caller adds for tracing.
type envelope struct {
	ReqID   int64             `json:"req_id"`
	Carrier map[string]string `json:"carrier"`
}

func (e envelope) traceCarrier() map[string]string { return e.Carrier }

type carried interface{ traceCarrier() map[string]string }

// bind decodes the body into req and returns a context continuing the
// caller's trace. On failure it has already answered 400.
func bind(c *gin.Context, req carried) (context.Context, bool) {
	if err := c.ShouldBindJSON(req); err != nil {
		reject(c, http.StatusBadRequest, "invalid JSON body")
		return nil, false
	}
	return observability.ExtractCarrier(c.Request.Context(), req.traceCarrier()), true
}

// reject answers with the {"error": ...} body the rpc client understands.
func reject(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// fail maps a repository error to a response. Missing rows answer 404,
// unique violations 409, everything else 500.
func fail(ctx context.Context, c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		reject(c, http.StatusNotFound, op+": not found")
	case errors.Is(err, repo.ErrDuplicate):
		reject(c, http.StatusConflict, op+": already exists")
	default:
		zerolog.Ctx(ctx).Error().Err(err).Str("op", op).Msg("devstack storage error")
		reject(c, http.StatusInternalServerError, op+": storage error")
	}
}

func done(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) health(c *gin.Context) {
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
