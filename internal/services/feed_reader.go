// Package services – FeedReader
//
// FeedReader serves a window [start, stop) of a feed, newest first. The
// cache answers first; when it holds fewer than stop-start entries past
// start and a durable log is configured, the remainder comes from the log.
// Every log entry scanned is written back into the cache with its original
// timestamp (read repair), concurrently with the single hydration call that
// turns post ids into posts.
//
// The home timeline has no durable log: it is cache-only and a cold cache
// returns whatever it holds.
package services

import (
	"context"
	"sort"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/tbourn/go-feed-backend/internal/cache"
	"github.com/tbourn/go-feed-backend/internal/domain"
)

// FeedReader reads one kind of feed.
type FeedReader struct {
	Name  string
	Cache FeedCache
	Log   FeedLog // nil for cache-only feeds
	Posts PostReader
	Key   func(ownerID int64) string
}

// NewUserTimelineReader reads user timelines backed by log.
func NewUserTimelineReader(c FeedCache, log FeedLog, posts PostReader) *FeedReader {
	return &FeedReader{Name: "user-timeline", Cache: c, Log: log, Posts: posts, Key: UserTimelineKey}
}

// NewHomeTimelineReader reads cache-only home timelines.
func NewHomeTimelineReader(c FeedCache, posts PostReader) *FeedReader {
	return &FeedReader{Name: "home-timeline", Cache: c, Posts: posts, Key: HomeTimelineKey}
}

// ReadFeed returns the posts at positions [start, stop) of ownerID's feed,
// sorted by timestamp descending. An empty or negative window returns an
// empty slice without touching any dependency.
func (r *FeedReader) ReadFeed(ctx context.Context, reqID, ownerID int64, start, stop int, carrier map[string]string) ([]domain.Post, error) {
	tr := otel.Tracer("services/FeedReader")
	ctx, span := tr.Start(ctx, "ReadFeed",
		trace.WithAttributes(
			attribute.String("feed", r.Name),
			attribute.Int64("req.id", reqID),
			attribute.Int64("user.id", ownerID),
			attribute.Int("start", start),
			attribute.Int("stop", stop),
		),
	)
	defer span.End()

	if start < 0 || stop <= start {
		return []domain.Post{}, nil
	}

	key := r.Key(ownerID)
	cached, err := r.Cache.RangeDesc(ctx, key, int64(start), int64(stop-1))
	if err != nil {
		span.RecordError(err)
		logDependencyFailure(ctx, "ReadFeed", reqID, err)
		return nil, err
	}

	ids := make([]int64, 0, len(cached))
	inCache := make(map[int64]struct{}, len(cached))
	for _, e := range cached {
		id, perr := strconv.ParseInt(e.Member, 10, 64)
		if perr != nil {
			continue
		}
		if _, dup := inCache[id]; dup {
			continue
		}
		inCache[id] = struct{}{}
		ids = append(ids, id)
	}

	var repair []cache.Insert
	if logStart := start + len(cached); logStart < stop && r.Log != nil {
		entries, err := r.Log.Newest(ctx, ownerID, stop)
		if err != nil {
			span.RecordError(err)
			logDependencyFailure(ctx, "ReadFeed", reqID, err)
			return nil, err
		}
		ids, repair = mergeLog(key, ids, inCache, entries, logStart)
	}
	span.SetAttributes(
		attribute.Int("cache.hits", len(cached)),
		attribute.Int("repair", len(repair)),
	)

	if len(ids) == 0 && len(repair) == 0 {
		return []domain.Post{}, nil
	}

	var (
		g     errgroup.Group
		posts []domain.Post
	)
	if len(repair) > 0 {
		g.Go(func() error {
			return r.Cache.ExecBatch(ctx, repair)
		})
	}
	if len(ids) > 0 {
		g.Go(func() error {
			var err error
			posts, err = r.Posts.ReadPosts(ctx, reqID, ids, carrier)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		logDependencyFailure(ctx, "ReadFeed", reqID, err)
		return nil, err
	}

	if posts == nil {
		posts = []domain.Post{}
	}
	SortByTimestampDesc(posts)
	return posts, nil
}

// mergeLog appends log entries at positions >= logStart whose ids are not
// already present, and returns every scanned entry as a cache repair.
func mergeLog(key string, ids []int64, seen map[int64]struct{}, entries []domain.FeedEntry, logStart int) ([]int64, []cache.Insert) {
	repair := make([]cache.Insert, 0, len(entries))
	for i, e := range entries {
		if i >= logStart {
			if _, ok := seen[e.PostID]; !ok {
				seen[e.PostID] = struct{}{}
				ids = append(ids, e.PostID)
			}
		}
		repair = append(repair, cache.Insert{Key: key, Member: member(e.PostID), Score: float64(e.Timestamp)})
	}
	return ids, repair
}

// SortByTimestampDesc orders posts newest first, keeping the relative order
// of posts with equal timestamps.
func SortByTimestampDesc(posts []domain.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].Timestamp > posts[j].Timestamp
	})
}
