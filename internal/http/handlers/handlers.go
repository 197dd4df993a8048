// Feed HTTP handlers.
//
// Two surfaces share the same services:
//
//   - The public API under the configured base path:
//     POST /posts, GET /posts/{id}, GET /users/{id}/timeline,
//     GET /users/{id}/home-timeline.
//   - Collaborator-style endpoints at the root, so other services can call
//     this one the way it calls its own collaborators: POST /ComposePost,
//     /WriteUserTimeline, /ReadUserTimeline, /WriteHomeTimeline,
//     /ReadHomeTimeline. Bodies carry req_id and a trace carrier.
//
// Handlers are transport-thin: they bind and validate input, call a service,
// and map errors with classify.
package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-feed-backend/internal/domain"
	"github.com/tbourn/go-feed-backend/internal/http/middleware"
	"github.com/tbourn/go-feed-backend/internal/observability"
	"github.com/tbourn/go-feed-backend/internal/services"
)

// Composer creates posts. *services.ComposeService implements it.
type Composer interface {
	ComposePost(ctx context.Context, req services.ComposeRequest) (domain.Post, error)
}

// FeedReader serves a feed window. *services.FeedReader implements it.
type FeedReader interface {
	ReadFeed(ctx context.Context, reqID, ownerID int64, start, stop int, carrier map[string]string) ([]domain.Post, error)
}

// PostLookup fetches one stored post. *clients.PostStorageClient
// implements it.
type PostLookup interface {
	ReadPost(ctx context.Context, reqID, postID int64, carrier map[string]string) (domain.Post, error)
}

// Handlers groups the feed endpoints.
type Handlers struct {
	compose  Composer
	userFeed FeedReader
	homeFeed FeedReader
	feeds    services.FeedWrites
	posts    PostLookup
}

// New binds handlers to their services.
func New(compose Composer, userFeed, homeFeed FeedReader, feeds services.FeedWrites, posts PostLookup) *Handlers {
	return &Handlers{compose: compose, userFeed: userFeed, homeFeed: homeFeed, feeds: feeds, posts: posts}
}

// reqID prefers the body's req_id and falls back to the one derived from
// X-Request-ID.
func reqID(c *gin.Context, fromBody int64) int64 {
	if fromBody != 0 {
		return fromBody
	}
	return middleware.ReqIDFrom(c)
}

// remoteContext parents the request context on the span found in carrier.
func remoteContext(c *gin.Context, carrier map[string]string) context.Context {
	return observability.ExtractCarrier(c.Request.Context(), carrier)
}

func nonNilPosts(ps []domain.Post) []domain.Post {
	if ps == nil {
		return []domain.Post{}
	}
	return ps
}
