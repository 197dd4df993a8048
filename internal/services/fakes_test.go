package services

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/tbourn/go-feed-backend/internal/cache"
	"github.com/tbourn/go-feed-backend/internal/clients"
	"github.com/tbourn/go-feed-backend/internal/domain"
	"github.com/tbourn/go-feed-backend/internal/repo"
)

func remoteFailure(dep, op string) error {
	return domain.NewDependencyError(domain.KindRemoteCallFailure, dep, op, errors.New("boom"))
}

// ----- Fake collaborators -----

type fakeUsers struct {
	err   error
	calls atomic.Int32
	enter func()
}

func (f *fakeUsers) ComposeCreatorWithUserID(ctx context.Context, reqID, userID int64, username string, carrier map[string]string) (domain.Creator, error) {
	f.calls.Add(1)
	arrive(f.enter)
	if f.err != nil {
		return domain.Creator{}, f.err
	}
	return domain.Creator{UserID: userID, Username: username}, nil
}

// fakeText resolves @mentions from a fixed directory and reports every
// http(s) word as a URL.
type fakeText struct {
	directory map[string]int64
	err       error
	calls     atomic.Int32
	enter     func()
}

func (f *fakeText) ComposeText(ctx context.Context, reqID int64, text string, carrier map[string]string) (clients.TextResult, error) {
	f.calls.Add(1)
	arrive(f.enter)
	if f.err != nil {
		return clients.TextResult{}, f.err
	}
	out := clients.TextResult{Text: text}
	for _, w := range strings.Fields(text) {
		switch {
		case strings.HasPrefix(w, "@"):
			if id, ok := f.directory[w[1:]]; ok {
				out.UserMentions = append(out.UserMentions, domain.UserMention{UserID: id, Username: w[1:]})
			}
		case strings.HasPrefix(w, "http://"), strings.HasPrefix(w, "https://"):
			out.URLs = append(out.URLs, domain.URL{ShortenedURL: "http://short-url/0123456789", ExpandedURL: w})
		}
	}
	return out, nil
}

type fakeMedia struct {
	err   error
	calls atomic.Int32
	enter func()
}

func (f *fakeMedia) ComposeMedia(ctx context.Context, reqID int64, ids []int64, types []string, carrier map[string]string) ([]domain.Media, error) {
	f.calls.Add(1)
	arrive(f.enter)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.Media, 0, len(ids))
	for i := range ids {
		out = append(out, domain.Media{MediaID: ids[i], MediaType: types[i]})
	}
	return out, nil
}

type fakeIDs struct {
	next  atomic.Int64
	err   error
	calls atomic.Int32
	enter func()
}

func (f *fakeIDs) ComposeUniqueID(ctx context.Context, reqID int64, postType domain.PostType, carrier map[string]string) (int64, error) {
	f.calls.Add(1)
	arrive(f.enter)
	if f.err != nil {
		return 0, f.err
	}
	return f.next.Add(1), nil
}

type fakeFollowers struct {
	ids   []int64
	err   error
	calls atomic.Int32
}

func (f *fakeFollowers) GetFollowers(ctx context.Context, reqID, userID int64, carrier map[string]string) ([]int64, error) {
	f.calls.Add(1)
	return f.ids, f.err
}

// memPosts is an in-memory post store that records hydration requests.
type memPosts struct {
	mu       sync.Mutex
	posts    map[int64]domain.Post
	storeErr error
	readErr  error
	stores   int
	reads    [][]int64
	onRead   func()
}

func newMemPosts(posts ...domain.Post) *memPosts {
	m := &memPosts{posts: map[int64]domain.Post{}}
	for _, p := range posts {
		m.posts[p.PostID] = p
	}
	return m
}

func (m *memPosts) StorePost(ctx context.Context, reqID int64, post domain.Post, carrier map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.storeErr != nil {
		return m.storeErr
	}
	m.stores++
	if _, ok := m.posts[post.PostID]; !ok {
		m.posts[post.PostID] = post
	}
	return nil
}

func (m *memPosts) ReadPosts(ctx context.Context, reqID int64, ids []int64, carrier map[string]string) ([]domain.Post, error) {
	arrive(m.onRead)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads = append(m.reads, append([]int64(nil), ids...))
	if m.readErr != nil {
		return nil, m.readErr
	}
	out := []domain.Post{}
	for _, id := range ids {
		if p, ok := m.posts[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// untouchedCache fails the test on any call.
type untouchedCache struct{ t *testing.T }

func (c untouchedCache) RangeDesc(context.Context, string, int64, int64) ([]cache.Entry, error) {
	c.t.Fatalf("cache must not be read")
	return nil, nil
}

func (c untouchedCache) InsertIfAbsent(context.Context, string, string, float64) error {
	c.t.Fatalf("cache must not be written")
	return nil
}

func (c untouchedCache) ExecBatch(context.Context, []cache.Insert) error {
	c.t.Fatalf("cache must not be written")
	return nil
}

// gatedCache runs onBatch before delegating ExecBatch.
type gatedCache struct {
	FeedCache
	onBatch func()
}

func (c gatedCache) ExecBatch(ctx context.Context, inserts []cache.Insert) error {
	arrive(c.onBatch)
	return c.FeedCache.ExecBatch(ctx, inserts)
}

func arrive(hook func()) {
	if hook != nil {
		hook()
	}
}

// rendezvous releases its parties only once all n have arrived. A party
// that waits longer than timeout gives up and marks the rendezvous missed,
// so calls made one after another are detected instead of deadlocking.
type rendezvous struct {
	arrived  sync.WaitGroup
	released chan struct{}
	timeout  time.Duration
	missed   atomic.Bool
}

func newRendezvous(n int, timeout time.Duration) *rendezvous {
	r := &rendezvous{released: make(chan struct{}), timeout: timeout}
	r.arrived.Add(n)
	go func() {
		r.arrived.Wait()
		close(r.released)
	}()
	return r
}

func (r *rendezvous) wait() {
	r.arrived.Done()
	select {
	case <-r.released:
	case <-time.After(r.timeout):
		r.missed.Store(true)
	}
}

// ----- Harness -----

type harness struct {
	svc        *ComposeService
	writer     *FeedWriter
	userReader *FeedReader
	homeReader *FeedReader

	mr     *miniredis.Miniredis
	router *cache.ShardRouter
	log    *repo.SQLFeedLog

	users     *fakeUsers
	text      *fakeText
	media     *fakeMedia
	ids       *fakeIDs
	followers *fakeFollowers
	posts     *memPosts

	now time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	router, err := cache.New(cache.Options{Mode: cache.ModeSingle, Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	t.Cleanup(func() { _ = router.Close() })

	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "feed.db"))
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	h := &harness{
		mr:        mr,
		router:    router,
		log:       repo.NewSQLFeedLog(db, 1000),
		users:     &fakeUsers{},
		text:      &fakeText{directory: map[string]int64{"bob": 42}},
		media:     &fakeMedia{},
		ids:       &fakeIDs{},
		followers: &fakeFollowers{ids: []int64{2, 3}},
		posts:     newMemPosts(),
		now:       time.UnixMilli(1_700_000_000_000),
	}
	h.ids.next.Store(1000)
	h.writer = NewFeedWriter(router, h.log, h.followers)
	h.svc = NewComposeService(h.users, h.text, h.media, h.ids, h.posts, h.writer)
	h.svc.Now = func() time.Time { return h.now }
	h.userReader = NewUserTimelineReader(router, h.log, h.posts)
	h.homeReader = NewHomeTimelineReader(router, h.posts)
	return h
}

func (h *harness) request(text string) ComposeRequest {
	return ComposeRequest{
		ReqID:      1,
		Username:   "alice",
		UserID:     1,
		Text:       text,
		MediaIDs:   []int64{5},
		MediaTypes: []string{"png"},
		PostType:   domain.PostTypePost,
		Carrier:    map[string]string{},
	}
}
