// Package services – FeedWriter
//
// FeedWriter propagates a stored post into feeds:
//
//   - WriteOwnFeed records the post in the author's user timeline: first in
//     the durable log, then in the cache.
//   - WriteHomeFeeds inserts the post into the home timeline of every
//     follower and every mentioned user, as one batch that the cache router
//     splits into one pipeline per shard.
//
// Both writes are idempotent: the log ignores a repeated (owner, post) pair
// and the cache uses insert-if-absent, so replaying a post never changes its
// position in any feed.
package services

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-feed-backend/internal/cache"
)

var homeFanout = prometheus.NewHistogram(prometheus.HistogramOpts{
	Name:    "feed_home_fanout_recipients",
	Help:    "Number of home timelines a single post was written to.",
	Buckets: prometheus.ExponentialBuckets(1, 4, 10),
})

func init() {
	prometheus.MustRegister(homeFanout)
}

// FeedWriter writes posts into user and home timelines.
type FeedWriter struct {
	Cache     FeedCache
	Log       FeedLog
	Followers FollowerSource
}

// NewFeedWriter wires a FeedWriter.
func NewFeedWriter(c FeedCache, log FeedLog, followers FollowerSource) *FeedWriter {
	return &FeedWriter{Cache: c, Log: log, Followers: followers}
}

// WriteOwnFeed prepends postID to ownerID's durable log and then inserts it
// into the cached user timeline with score ts. A log failure skips the cache
// write.
func (w *FeedWriter) WriteOwnFeed(ctx context.Context, reqID, postID, ownerID, ts int64, carrier map[string]string) error {
	tr := otel.Tracer("services/FeedWriter")
	ctx, span := tr.Start(ctx, "WriteOwnFeed",
		trace.WithAttributes(
			attribute.Int64("req.id", reqID),
			attribute.Int64("post.id", postID),
			attribute.Int64("user.id", ownerID),
		),
	)
	defer span.End()

	if err := w.Log.Prepend(ctx, ownerID, postID, ts); err != nil {
		span.RecordError(err)
		logDependencyFailure(ctx, "WriteOwnFeed", reqID, err)
		return err
	}
	if err := w.Cache.InsertIfAbsent(ctx, UserTimelineKey(ownerID), member(postID), float64(ts)); err != nil {
		span.RecordError(err)
		logDependencyFailure(ctx, "WriteOwnFeed", reqID, err)
		return err
	}
	return nil
}

// WriteHomeFeeds inserts postID with score ts into the home timeline of
// every follower of authorID and every id in mentionIDs. Recipients are
// deduplicated. A follower lookup failure aborts before any write; a shard
// failure is returned after the other shards have been written.
func (w *FeedWriter) WriteHomeFeeds(ctx context.Context, reqID, postID, authorID, ts int64, mentionIDs []int64, carrier map[string]string) error {
	tr := otel.Tracer("services/FeedWriter")
	ctx, span := tr.Start(ctx, "WriteHomeFeeds",
		trace.WithAttributes(
			attribute.Int64("req.id", reqID),
			attribute.Int64("post.id", postID),
			attribute.Int64("user.id", authorID),
			attribute.Int("mentions", len(mentionIDs)),
		),
	)
	defer span.End()

	followers, err := w.Followers.GetFollowers(ctx, reqID, authorID, carrier)
	if err != nil {
		span.RecordError(err)
		logDependencyFailure(ctx, "WriteHomeFeeds", reqID, err)
		return err
	}

	recipients := Recipients(followers, mentionIDs)
	span.SetAttributes(attribute.Int("recipients", len(recipients)))
	homeFanout.Observe(float64(len(recipients)))
	if len(recipients) == 0 {
		return nil
	}

	m := member(postID)
	batch := make([]cache.Insert, 0, len(recipients))
	for _, id := range recipients {
		batch = append(batch, cache.Insert{Key: HomeTimelineKey(id), Member: m, Score: float64(ts)})
	}
	if err := w.Cache.ExecBatch(ctx, batch); err != nil {
		span.RecordError(err)
		logDependencyFailure(ctx, "WriteHomeFeeds", reqID, err)
		return err
	}
	return nil
}

// Recipients returns followers ∪ mentions without duplicates, keeping first
// occurrence order (followers first).
func Recipients(followers, mentions []int64) []int64 {
	seen := make(map[int64]struct{}, len(followers)+len(mentions))
	out := make([]int64, 0, len(followers)+len(mentions))
	for _, set := range [][]int64{followers, mentions} {
		for _, id := range set {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
