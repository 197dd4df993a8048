// Package clients provides typed callers for each collaborator service.
//
// Every call goes through an rpc.Client, so it leases a pooled handle, posts
// a JSON body carrying req_id and the trace carrier, and maps failures to
// domain.DependencyError. The inbound carrier is copied and the current span
// injected before each call; the caller's map is never mutated.
package clients

import (
	"context"

	"github.com/tbourn/go-feed-backend/internal/domain"
	"github.com/tbourn/go-feed-backend/internal/observability"
	"github.com/tbourn/go-feed-backend/internal/rpc"
)

// Dependency names used in errors and metrics.
const (
	UserService        = "user-service"
	TextService        = "text-service"
	MediaService       = "media-service"
	UniqueIDService    = "unique-id-service"
	SocialGraphService = "social-graph-service"
	PostStorageService = "post-storage-service"
)

func envelope(ctx context.Context, reqID int64, carrier map[string]string) rpc.Envelope {
	return rpc.NewEnvelope(reqID, observability.InjectCarrier(ctx, carrier))
}

// UserClient calls the user service.
type UserClient struct{ c *rpc.Client }

// NewUserClient binds the user service at addr.
func NewUserClient(pool *rpc.Pool, addr string) *UserClient {
	return &UserClient{c: rpc.NewClient(pool, UserService, addr)}
}

// ComposeCreatorWithUserID resolves the creator record for a post.
func (u *UserClient) ComposeCreatorWithUserID(ctx context.Context, reqID, userID int64, username string, carrier map[string]string) (domain.Creator, error) {
	req := struct {
		rpc.Envelope
		UserID   int64  `json:"user_id"`
		Username string `json:"username"`
	}{envelope(ctx, reqID, carrier), userID, username}

	var out domain.Creator
	err := u.c.Call(ctx, "/ComposeCreatorWithUserId", req, &out)
	return out, err
}

// RegisterUserWithID creates a user with a caller-chosen id.
func (u *UserClient) RegisterUserWithID(ctx context.Context, reqID, userID int64, username string, carrier map[string]string) error {
	req := struct {
		rpc.Envelope
		UserID   int64  `json:"user_id"`
		Username string `json:"username"`
	}{envelope(ctx, reqID, carrier), userID, username}
	return u.c.Call(ctx, "/RegisterUserWithId", req, nil)
}

// TextResult is the processed form of a post's text.
type TextResult struct {
	Text         string               `json:"text"`
	URLs         []domain.URL         `json:"urls"`
	UserMentions []domain.UserMention `json:"user_mentions"`
}

// TextClient calls the text service.
type TextClient struct{ c *rpc.Client }

// NewTextClient binds the text service at addr.
func NewTextClient(pool *rpc.Pool, addr string) *TextClient {
	return &TextClient{c: rpc.NewClient(pool, TextService, addr)}
}

// ComposeText shortens URLs and resolves mentions in text.
func (t *TextClient) ComposeText(ctx context.Context, reqID int64, text string, carrier map[string]string) (TextResult, error) {
	req := struct {
		rpc.Envelope
		Text string `json:"text"`
	}{envelope(ctx, reqID, carrier), text}

	var out TextResult
	err := t.c.Call(ctx, "/ComposeText", req, &out)
	return out, err
}

// MediaClient calls the media service.
type MediaClient struct{ c *rpc.Client }

// NewMediaClient binds the media service at addr.
func NewMediaClient(pool *rpc.Pool, addr string) *MediaClient {
	return &MediaClient{c: rpc.NewClient(pool, MediaService, addr)}
}

// ComposeMedia pairs media ids with their types.
func (m *MediaClient) ComposeMedia(ctx context.Context, reqID int64, ids []int64, types []string, carrier map[string]string) ([]domain.Media, error) {
	if ids == nil {
		ids = []int64{}
	}
	if types == nil {
		types = []string{}
	}
	req := struct {
		rpc.Envelope
		MediaIDs   []int64  `json:"media_ids"`
		MediaTypes []string `json:"media_types"`
	}{envelope(ctx, reqID, carrier), ids, types}

	var out struct {
		Media []domain.Media `json:"media"`
	}
	if err := m.c.Call(ctx, "/ComposeMedia", req, &out); err != nil {
		return nil, err
	}
	if out.Media == nil {
		out.Media = []domain.Media{}
	}
	return out.Media, nil
}

// UniqueIDClient calls the unique-id service.
type UniqueIDClient struct{ c *rpc.Client }

// NewUniqueIDClient binds the unique-id service at addr.
func NewUniqueIDClient(pool *rpc.Pool, addr string) *UniqueIDClient {
	return &UniqueIDClient{c: rpc.NewClient(pool, UniqueIDService, addr)}
}

// ComposeUniqueID allocates a post id.
func (u *UniqueIDClient) ComposeUniqueID(ctx context.Context, reqID int64, postType domain.PostType, carrier map[string]string) (int64, error) {
	req := struct {
		rpc.Envelope
		PostType domain.PostType `json:"post_type"`
	}{envelope(ctx, reqID, carrier), postType}

	var out struct {
		UniqueID int64 `json:"unique_id"`
	}
	err := u.c.Call(ctx, "/ComposeUniqueId", req, &out)
	return out.UniqueID, err
}

// SocialGraphClient calls the social-graph service.
type SocialGraphClient struct{ c *rpc.Client }

// NewSocialGraphClient binds the social-graph service at addr.
func NewSocialGraphClient(pool *rpc.Pool, addr string) *SocialGraphClient {
	return &SocialGraphClient{c: rpc.NewClient(pool, SocialGraphService, addr)}
}

// GetFollowers returns the ids following userID.
func (s *SocialGraphClient) GetFollowers(ctx context.Context, reqID, userID int64, carrier map[string]string) ([]int64, error) {
	req := struct {
		rpc.Envelope
		UserID int64 `json:"user_id"`
	}{envelope(ctx, reqID, carrier), userID}

	var out struct {
		FollowersID []int64 `json:"followers_id"`
	}
	if err := s.c.Call(ctx, "/GetFollowers", req, &out); err != nil {
		return nil, err
	}
	return out.FollowersID, nil
}

// Follow makes followerID follow followeeID.
func (s *SocialGraphClient) Follow(ctx context.Context, reqID, followerID, followeeID int64, carrier map[string]string) error {
	req := struct {
		rpc.Envelope
		UserID     int64 `json:"user_id"`
		FolloweeID int64 `json:"followee_id"`
	}{envelope(ctx, reqID, carrier), followerID, followeeID}
	return s.c.Call(ctx, "/Follow", req, nil)
}

// PostStorageClient calls the post-storage service.
type PostStorageClient struct{ c *rpc.Client }

// NewPostStorageClient binds the post-storage service at addr.
func NewPostStorageClient(pool *rpc.Pool, addr string) *PostStorageClient {
	return &PostStorageClient{c: rpc.NewClient(pool, PostStorageService, addr)}
}

// StorePost persists post. Storing the same post id twice is harmless.
func (p *PostStorageClient) StorePost(ctx context.Context, reqID int64, post domain.Post, carrier map[string]string) error {
	req := struct {
		rpc.Envelope
		Post domain.Post `json:"post"`
	}{envelope(ctx, reqID, carrier), post}
	return p.c.Call(ctx, "/StorePost", req, nil)
}

// ReadPosts hydrates post ids. Unknown ids are absent from the result.
func (p *PostStorageClient) ReadPosts(ctx context.Context, reqID int64, ids []int64, carrier map[string]string) ([]domain.Post, error) {
	if ids == nil {
		ids = []int64{}
	}
	req := struct {
		rpc.Envelope
		PostIDs []int64 `json:"post_ids"`
	}{envelope(ctx, reqID, carrier), ids}

	var out struct {
		Posts []domain.Post `json:"posts"`
	}
	if err := p.c.Call(ctx, "/ReadPosts", req, &out); err != nil {
		return nil, err
	}
	return out.Posts, nil
}

// ReadPost fetches one post.
func (p *PostStorageClient) ReadPost(ctx context.Context, reqID, postID int64, carrier map[string]string) (domain.Post, error) {
	req := struct {
		rpc.Envelope
		PostID int64 `json:"post_id"`
	}{envelope(ctx, reqID, carrier), postID}

	var out domain.Post
	err := p.c.Call(ctx, "/ReadPost", req, &out)
	return out, err
}
