// Package services – ComposeService
//
// ComposeService turns a compose request into a stored post and propagates
// it into feeds. The flow has three stages, each a barrier for the next:
//
//  1. Resolve: creator, text, media and post id are fetched concurrently.
//     All four run to completion; the first failure aborts the compose.
//  2. Store: the assembled post is written to post storage.
//  3. Propagate: the author's own feed and the home feeds are written
//     concurrently; either failure is reported.
//
// Nothing is retried. A failure in stage 1 leaves no trace anywhere; a
// failure in stage 3 may leave the post in some feeds but not others.
package services

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/tbourn/go-feed-backend/internal/clients"
	"github.com/tbourn/go-feed-backend/internal/domain"
)

// ComposeRequest carries everything needed to compose one post.
type ComposeRequest struct {
	ReqID      int64
	Username   string
	UserID     int64
	Text       string
	MediaIDs   []int64
	MediaTypes []string
	PostType   domain.PostType
	Carrier    map[string]string
}

// FeedWrites is the propagation stage of a compose. *FeedWriter implements it.
type FeedWrites interface {
	WriteOwnFeed(ctx context.Context, reqID, postID, ownerID, ts int64, carrier map[string]string) error
	WriteHomeFeeds(ctx context.Context, reqID, postID, authorID, ts int64, mentionIDs []int64, carrier map[string]string) error
}

// ComposeService orchestrates post composition.
type ComposeService struct {
	Users UserResolver
	Text  TextProcessor
	Media MediaResolver
	IDs   IDAllocator
	Posts PostStore
	Feeds FeedWrites

	// Now supplies the post timestamp; defaults to time.Now.
	Now func() time.Time
}

// NewComposeService wires a ComposeService.
func NewComposeService(users UserResolver, text TextProcessor, media MediaResolver, ids IDAllocator, posts PostStore, feeds FeedWrites) *ComposeService {
	return &ComposeService{
		Users: users,
		Text:  text,
		Media: media,
		IDs:   ids,
		Posts: posts,
		Feeds: feeds,
		Now:   time.Now,
	}
}

// ComposePost validates req, resolves the post's parts, stores it and
// writes it into feeds. It returns the stored post.
func (s *ComposeService) ComposePost(ctx context.Context, req ComposeRequest) (domain.Post, error) {
	tr := otel.Tracer("services/ComposeService")
	ctx, span := tr.Start(ctx, "ComposePost",
		trace.WithAttributes(
			attribute.Int64("req.id", req.ReqID),
			attribute.Int64("user.id", req.UserID),
			attribute.String("post.type", req.PostType.String()),
			attribute.Int("media", len(req.MediaIDs)),
		),
	)
	defer span.End()

	if err := validateCompose(req); err != nil {
		return domain.Post{}, err
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	ts := domain.UnixMillis(now())

	var (
		g       errgroup.Group
		creator domain.Creator
		text    clients.TextResult
		media   []domain.Media
		postID  int64
	)
	g.Go(func() (err error) {
		creator, err = s.Users.ComposeCreatorWithUserID(ctx, req.ReqID, req.UserID, req.Username, req.Carrier)
		return err
	})
	g.Go(func() (err error) {
		text, err = s.Text.ComposeText(ctx, req.ReqID, req.Text, req.Carrier)
		return err
	})
	g.Go(func() (err error) {
		media, err = s.Media.ComposeMedia(ctx, req.ReqID, req.MediaIDs, req.MediaTypes, req.Carrier)
		return err
	})
	g.Go(func() (err error) {
		postID, err = s.IDs.ComposeUniqueID(ctx, req.ReqID, req.PostType, req.Carrier)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.Post{}, s.fail(ctx, span, req.ReqID, err)
	}

	post := assemblePost(req, ts, postID, creator, text, media)
	span.SetAttributes(attribute.Int64("post.id", post.PostID))

	if err := s.Posts.StorePost(ctx, req.ReqID, post, req.Carrier); err != nil {
		return domain.Post{}, s.fail(ctx, span, req.ReqID, err)
	}

	var feeds errgroup.Group
	feeds.Go(func() error {
		return s.Feeds.WriteOwnFeed(ctx, req.ReqID, post.PostID, req.UserID, ts, req.Carrier)
	})
	feeds.Go(func() error {
		return s.Feeds.WriteHomeFeeds(ctx, req.ReqID, post.PostID, req.UserID, ts, post.MentionIDs(), req.Carrier)
	})
	if err := feeds.Wait(); err != nil {
		return domain.Post{}, s.fail(ctx, span, req.ReqID, err)
	}
	return post, nil
}

func (s *ComposeService) fail(ctx context.Context, span trace.Span, reqID int64, err error) error {
	span.RecordError(err)
	logDependencyFailure(ctx, "ComposePost", reqID, err)
	return err
}

func validateCompose(req ComposeRequest) error {
	if req.UserID <= 0 || strings.TrimSpace(req.Username) == "" {
		return ErrInvalidUser
	}
	if !req.PostType.Valid() {
		return ErrInvalidPostType
	}
	if len(req.MediaIDs) != len(req.MediaTypes) {
		return ErrMediaMismatch
	}
	return nil
}

func assemblePost(req ComposeRequest, ts, postID int64, creator domain.Creator, text clients.TextResult, media []domain.Media) domain.Post {
	p := domain.Post{
		PostID:       postID,
		Creator:      creator,
		ReqID:        req.ReqID,
		Text:         text.Text,
		UserMentions: text.UserMentions,
		Media:        media,
		URLs:         text.URLs,
		Timestamp:    ts,
		PostType:     req.PostType,
	}
	if p.UserMentions == nil {
		p.UserMentions = []domain.UserMention{}
	}
	if p.Media == nil {
		p.Media = []domain.Media{}
	}
	if p.URLs == nil {
		p.URLs = []domain.URL{}
	}
	return p
}
