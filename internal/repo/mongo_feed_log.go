package repo

import (
	"context"
	"errors"
	"sort"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/tbourn/go-feed-backend/internal/domain"
)

// MongoCollection is the collection holding one timeline document per owner.
const MongoCollection = "user-timeline"

// timelineDoc is the stored form: the owner's posts, most recently
// prepended first.
type timelineDoc struct {
	UserID int64           `bson:"user_id"`
	Posts  []timelineEntry `bson:"posts"`
}

type timelineEntry struct {
	PostID    int64 `bson:"post_id"`
	Timestamp int64 `bson:"timestamp"`
}

// MongoFeedLog keeps the durable user-timeline log in MongoDB.
type MongoFeedLog struct {
	client   *mongo.Client
	coll     *mongo.Collection
	maxDepth int
}

// OpenMongoFeedLog connects to uri and ensures the unique owner index on
// database.user-timeline. A non-positive maxDepth means 1000.
func OpenMongoFeedLog(ctx context.Context, uri, database string, maxDepth int) (*MongoFeedLog, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, domain.Backend(FeedLogDependency, "connect", err)
	}
	if maxDepth <= 0 {
		maxDepth = 1000
	}
	l := &MongoFeedLog{
		client:   client,
		coll:     client.Database(database).Collection(MongoCollection),
		maxDepth: maxDepth,
	}
	if err := l.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return l, nil
}

// EnsureIndexes creates the unique index on user_id that makes concurrent
// first writes for one owner converge on a single document.
func (l *MongoFeedLog) EnsureIndexes(ctx context.Context) error {
	_, err := l.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.M{"user_id": 1},
		Options: options.Index().SetUnique(true),
	})
	return domain.Backend(FeedLogDependency, "create index", err)
}

// Prepend pushes the entry to the front of the owner's posts array, creating
// the document on first write. The filter excludes documents that already
// contain postID; when the owner exists, that turns the upsert into a
// duplicate-key insert, which is the no-op case.
func (l *MongoFeedLog) Prepend(ctx context.Context, ownerID, postID, ts int64) error {
	filter := bson.M{
		"user_id":       ownerID,
		"posts.post_id": bson.M{"$ne": postID},
	}
	update := bson.M{
		"$push": bson.M{
			"posts": bson.M{
				"$each":     bson.A{timelineEntry{PostID: postID, Timestamp: ts}},
				"$position": 0,
			},
		},
	}
	_, err := l.coll.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return domain.Backend(FeedLogDependency, "prepend", err)
}

// Newest returns up to k of the owner's most recently prepended entries,
// ordered by timestamp descending. A missing owner yields an empty slice.
func (l *MongoFeedLog) Newest(ctx context.Context, ownerID int64, k int) ([]domain.FeedEntry, error) {
	if k > l.maxDepth {
		k = l.maxDepth
	}
	if k <= 0 {
		return []domain.FeedEntry{}, nil
	}

	var doc timelineDoc
	err := l.coll.FindOne(ctx,
		bson.M{"user_id": ownerID},
		options.FindOne().SetProjection(bson.M{"posts": bson.M{"$slice": k}}),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return []domain.FeedEntry{}, nil
	}
	if err != nil {
		return nil, domain.Backend(FeedLogDependency, "newest", err)
	}

	out := make([]domain.FeedEntry, 0, len(doc.Posts))
	for _, p := range doc.Posts {
		out = append(out, domain.FeedEntry{OwnerID: ownerID, PostID: p.PostID, Timestamp: p.Timestamp})
	}
	sortNewestFirst(out)
	return out, nil
}

// Ping checks the primary is reachable.
func (l *MongoFeedLog) Ping(ctx context.Context) error {
	return domain.Backend(FeedLogDependency, "ping", l.client.Ping(ctx, nil))
}

// Close disconnects the client.
func (l *MongoFeedLog) Close(ctx context.Context) error {
	return l.client.Disconnect(ctx)
}

func sortNewestFirst(es []domain.FeedEntry) {
	sort.SliceStable(es, func(i, j int) bool {
		if es[i].Timestamp != es[j].Timestamp {
			return es[i].Timestamp > es[j].Timestamp
		}
		return es[i].PostID > es[j].PostID
	})
}
