package repo

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/tbourn/go-feed-backend/internal/domain"
)

// newMongoLog connects to MONGO_URI in a throwaway database, or skips.
func newMongoLog(t *testing.T, depth int) *MongoFeedLog {
	t.Helper()
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbName := "feedtest_" + strconv.FormatInt(time.Now().UnixNano(), 36)
	l, err := OpenMongoFeedLog(ctx, uri, dbName, depth)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = l.coll.Database().Drop(ctx)
		_ = l.Close(ctx)
	})
	return l
}

func TestMongoFeedLog_PrependIdempotentAndNewest(t *testing.T) {
	l := newMongoLog(t, 100)
	ctx := context.Background()

	for _, e := range []domain.FeedEntry{
		{PostID: 70, Timestamp: 70},
		{PostID: 90, Timestamp: 90},
		{PostID: 80, Timestamp: 80},
		{PostID: 90, Timestamp: 999},
	} {
		if err := l.Prepend(ctx, 1, e.PostID, e.Timestamp); err != nil {
			t.Fatalf("prepend %+v: %v", e, err)
		}
	}

	got, err := l.Newest(ctx, 1, 10)
	if err != nil {
		t.Fatalf("newest: %v", err)
	}
	if len(got) != 3 || got[0].PostID != 90 || got[0].Timestamp != 90 || got[2].PostID != 70 {
		t.Fatalf("got %+v", got)
	}
	if err := l.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestMongoFeedLog_MissingOwnerIsEmpty(t *testing.T) {
	l := newMongoLog(t, 100)
	got, err := l.Newest(context.Background(), 12345, 5)
	if err != nil || len(got) != 0 {
		t.Fatalf("got %+v %v", got, err)
	}
}

func TestSortNewestFirst(t *testing.T) {
	es := []domain.FeedEntry{{PostID: 1, Timestamp: 10}, {PostID: 3, Timestamp: 30}, {PostID: 2, Timestamp: 30}}
	sortNewestFirst(es)
	if es[0].PostID != 3 || es[1].PostID != 2 || es[2].PostID != 1 {
		t.Fatalf("got %+v", es)
	}
}
