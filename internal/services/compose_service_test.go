package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-feed-backend/internal/domain"
	"github.com/tbourn/go-feed-backend/internal/repo"
)

func TestComposePost_EndToEnd(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	post, err := h.svc.ComposePost(ctx, h.request("hello @bob http://x.com"))
	if err != nil {
		t.Fatalf("compose: %v", err)
	}

	if post.PostID != 1001 || post.Creator.Username != "alice" || post.Timestamp != h.now.UnixMilli() {
		t.Fatalf("unexpected post: %+v", post)
	}
	if len(post.Media) != 1 || len(post.URLs) != 1 || len(post.UserMentions) != 1 {
		t.Fatalf("post parts missing: %+v", post)
	}
	if h.posts.stores != 1 {
		t.Fatalf("stores = %d", h.posts.stores)
	}

	// Own feed: durable log and cache.
	if n, _ := repo.CountFeedEntries(ctx, h.log.DB, 1); n != 1 {
		t.Fatalf("log entries for author = %d", n)
	}
	if s, err := h.mr.ZScore(UserTimelineKey(1), "1001"); err != nil || s != float64(post.Timestamp) {
		t.Fatalf("user timeline score = %v, %v", s, err)
	}

	// Home feeds: followers 2,3 and mention 42.
	for _, id := range []int64{2, 3, 42} {
		if !h.mr.Exists(HomeTimelineKey(id)) {
			t.Fatalf("home timeline of %d missing", id)
		}
	}
	if h.mr.Exists(HomeTimelineKey(1)) {
		t.Fatalf("author is not a recipient of their own home feed")
	}

	// Reading back through both readers.
	got, err := h.userReader.ReadFeed(ctx, 2, 1, 0, 10, nil)
	if err != nil || len(got) != 1 || got[0].PostID != 1001 {
		t.Fatalf("user timeline read = %+v, %v", got, err)
	}
	got, err = h.homeReader.ReadFeed(ctx, 3, 42, 0, 10, nil)
	if err != nil || len(got) != 1 || got[0].Text != "hello @bob http://x.com" {
		t.Fatalf("home timeline read = %+v, %v", got, err)
	}
}

func TestComposePost_TimestampFixedBeforeFanOut(t *testing.T) {
	h := newHarness(t)
	calls := 0
	h.svc.Now = func() time.Time {
		calls++
		return h.now.Add(time.Duration(calls) * time.Hour)
	}

	post, err := h.svc.ComposePost(context.Background(), h.request("x"))
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if calls != 1 {
		t.Fatalf("clock read %d times; want 1", calls)
	}
	score, _ := h.mr.ZScore(HomeTimelineKey(2), "1001")
	if int64(score) != post.Timestamp {
		t.Fatalf("home feed score %v != post timestamp %d", score, post.Timestamp)
	}
}

func TestComposePost_ResolversRunConcurrently(t *testing.T) {
	h := newHarness(t)
	rv := newRendezvous(4, 2*time.Second)
	h.users.enter = rv.wait
	h.text.enter = rv.wait
	h.media.enter = rv.wait
	h.ids.enter = rv.wait

	if _, err := h.svc.ComposePost(context.Background(), h.request("hello @bob")); err != nil {
		t.Fatalf("compose: %v", err)
	}
	if rv.missed.Load() {
		t.Fatal("creator, text, media and unique id must be resolved at the same time")
	}
}

func TestComposePost_ResolverFailureLeavesNoTrace(t *testing.T) {
	cases := []struct {
		name string
		dep  string
		set  func(h *harness, err error)
	}{
		{"creator", "user-service", func(h *harness, err error) { h.users.err = err }},
		{"text", "text-service", func(h *harness, err error) { h.text.err = err }},
		{"media", "media-service", func(h *harness, err error) { h.media.err = err }},
		{"unique id", "unique-id-service", func(h *harness, err error) { h.ids.err = err }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			tc.set(h, remoteFailure(tc.dep, "/op"))

			_, err := h.svc.ComposePost(context.Background(), h.request("hello @bob"))
			if !errors.Is(err, domain.ErrRemoteCallFailure) {
				t.Fatalf("expected remote call failure, got %v", err)
			}
			var de *domain.DependencyError
			if !errors.As(err, &de) || de.Dependency != tc.dep {
				t.Fatalf("error must name %s: %+v", tc.dep, de)
			}

			// All four resolvers still ran to completion.
			if h.users.calls.Load() != 1 || h.text.calls.Load() != 1 || h.media.calls.Load() != 1 || h.ids.calls.Load() != 1 {
				t.Fatalf("every resolver must be called exactly once")
			}
			if h.posts.stores != 0 || h.followers.calls.Load() != 0 {
				t.Fatalf("nothing after the resolvers may run")
			}
			if keys := h.mr.Keys(); len(keys) != 0 {
				t.Fatalf("cache must be empty, has %v", keys)
			}
			if n, _ := repo.CountFeedEntries(context.Background(), h.log.DB, 1); n != 0 {
				t.Fatalf("durable log must be empty, has %d", n)
			}
		})
	}
}

func TestComposePost_StoreFailureSkipsFeeds(t *testing.T) {
	h := newHarness(t)
	h.posts.storeErr = remoteFailure("post-storage-service", "/StorePost")

	_, err := h.svc.ComposePost(context.Background(), h.request("x"))
	if !errors.Is(err, domain.ErrRemoteCallFailure) {
		t.Fatalf("expected remote call failure, got %v", err)
	}
	if h.followers.calls.Load() != 0 || len(h.mr.Keys()) != 0 {
		t.Fatalf("feeds must not be written when storage fails")
	}
}

func TestComposePost_FeedFailureSurfaces(t *testing.T) {
	h := newHarness(t)
	h.followers.err = remoteFailure("social-graph-service", "/GetFollowers")

	_, err := h.svc.ComposePost(context.Background(), h.request("x"))
	var de *domain.DependencyError
	if !errors.As(err, &de) || de.Dependency != "social-graph-service" {
		t.Fatalf("expected social graph failure, got %v", err)
	}
	// The own-feed write ran concurrently and is not rolled back.
	if !h.mr.Exists(UserTimelineKey(1)) {
		t.Fatalf("own feed write should have completed")
	}
}

func TestComposePost_Validation(t *testing.T) {
	h := newHarness(t)
	cases := []struct {
		name string
		mut  func(r *ComposeRequest)
		want error
	}{
		{"no user", func(r *ComposeRequest) { r.UserID = 0 }, ErrInvalidUser},
		{"blank username", func(r *ComposeRequest) { r.Username = "  " }, ErrInvalidUser},
		{"bad type", func(r *ComposeRequest) { r.PostType = 9 }, ErrInvalidPostType},
		{"media mismatch", func(r *ComposeRequest) { r.MediaTypes = nil }, ErrMediaMismatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := h.request("x")
			tc.mut(&req)
			_, err := h.svc.ComposePost(context.Background(), req)
			if !errors.Is(err, tc.want) || !IsValidation(err) {
				t.Fatalf("got %v; want %v", err, tc.want)
			}
		})
	}
	if h.users.calls.Load() != 0 {
		t.Fatalf("validation failures must not reach collaborators")
	}
}
