package services

import (
	"context"
	"errors"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-feed-backend/internal/cache"
	"github.com/tbourn/go-feed-backend/internal/clients"
	"github.com/tbourn/go-feed-backend/internal/domain"
)

// UserResolver resolves a post's creator.
type UserResolver interface {
	ComposeCreatorWithUserID(ctx context.Context, reqID, userID int64, username string, carrier map[string]string) (domain.Creator, error)
}

// TextProcessor shortens URLs and resolves mentions.
type TextProcessor interface {
	ComposeText(ctx context.Context, reqID int64, text string, carrier map[string]string) (clients.TextResult, error)
}

// MediaResolver builds media attachments.
type MediaResolver interface {
	ComposeMedia(ctx context.Context, reqID int64, ids []int64, types []string, carrier map[string]string) ([]domain.Media, error)
}

// IDAllocator allocates post ids.
type IDAllocator interface {
	ComposeUniqueID(ctx context.Context, reqID int64, postType domain.PostType, carrier map[string]string) (int64, error)
}

// FollowerSource lists a user's followers.
type FollowerSource interface {
	GetFollowers(ctx context.Context, reqID, userID int64, carrier map[string]string) ([]int64, error)
}

// PostReader hydrates post ids into posts.
type PostReader interface {
	ReadPosts(ctx context.Context, reqID int64, ids []int64, carrier map[string]string) ([]domain.Post, error)
}

// PostStore persists and hydrates posts.
type PostStore interface {
	PostReader
	StorePost(ctx context.Context, reqID int64, post domain.Post, carrier map[string]string) error
}

// FeedCache is the sorted-set cache of feed entries. *cache.ShardRouter
// implements it.
type FeedCache interface {
	RangeDesc(ctx context.Context, key string, start, stop int64) ([]cache.Entry, error)
	InsertIfAbsent(ctx context.Context, key, member string, score float64) error
	ExecBatch(ctx context.Context, inserts []cache.Insert) error
}

// FeedLog is the durable, newest-first user-timeline log.
type FeedLog interface {
	Prepend(ctx context.Context, ownerID, postID, ts int64) error
	Newest(ctx context.Context, ownerID int64, k int) ([]domain.FeedEntry, error)
}

// UserTimelineKey is the cache key of ownerID's own posts.
func UserTimelineKey(ownerID int64) string {
	return "user-timeline:" + strconv.FormatInt(ownerID, 10)
}

// HomeTimelineKey is the cache key of ownerID's home feed.
func HomeTimelineKey(ownerID int64) string {
	return "home-timeline:" + strconv.FormatInt(ownerID, 10)
}

func member(postID int64) string { return strconv.FormatInt(postID, 10) }

// logDependencyFailure records err with its dependency and kind on the
// request logger carried by ctx.
func logDependencyFailure(ctx context.Context, op string, reqID int64, err error) {
	ev := zerolog.Ctx(ctx).Error().Err(err).Str("op", op).Int64("req_id", reqID)
	var de *domain.DependencyError
	if errors.As(err, &de) {
		ev = ev.Str("dependency", de.Dependency).Str("kind", de.Kind.String())
	}
	ev.Msg("dependency call failed")
}
