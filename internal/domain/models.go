// Package domain defines the post and feed types shared by the services, the
// collaborator clients and the persistence layer. Wire types carry the JSON
// field names used on every collaborator call; the GORM models below them
// back the durable feed log and the development collaborator stack.
package domain

import (
	"strconv"
	"time"
)

// PostType classifies a post at composition time.
type PostType int

const (
	PostTypePost PostType = iota
	PostTypeRepost
	PostTypeReply
	PostTypeDM
)

// String returns the lowercase name of the post type.
func (t PostType) String() string {
	switch t {
	case PostTypePost:
		return "post"
	case PostTypeRepost:
		return "repost"
	case PostTypeReply:
		return "reply"
	case PostTypeDM:
		return "dm"
	default:
		return "unknown(" + strconv.Itoa(int(t)) + ")"
	}
}

// Valid reports whether t is one of the known post types.
func (t PostType) Valid() bool { return t >= PostTypePost && t <= PostTypeDM }

// Creator identifies the author of a post.
type Creator struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

// Media is a single attachment reference.
type Media struct {
	MediaID   int64  `json:"media_id"`
	MediaType string `json:"media_type"`
}

// URL pairs a shortened link with the link it expands to.
type URL struct {
	ShortenedURL string `json:"shortened_url"`
	ExpandedURL  string `json:"expanded_url"`
}

// UserMention is an @username resolved to a user id.
type UserMention struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

// Post is immutable once stored. Timestamp is the composition time in
// milliseconds since the Unix epoch.
type Post struct {
	PostID       int64         `json:"post_id"`
	Creator      Creator       `json:"creator"`
	ReqID        int64         `json:"req_id"`
	Text         string        `json:"text"`
	UserMentions []UserMention `json:"user_mentions"`
	Media        []Media       `json:"media"`
	URLs         []URL         `json:"urls"`
	Timestamp    int64         `json:"timestamp"`
	PostType     PostType      `json:"post_type"`
}

// MentionIDs returns the user ids of every mention in order.
func (p Post) MentionIDs() []int64 {
	if len(p.UserMentions) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(p.UserMentions))
	for _, m := range p.UserMentions {
		ids = append(ids, m.UserID)
	}
	return ids
}

// FeedEntry references a post from one owner's feed.
type FeedEntry struct {
	OwnerID   int64 `json:"owner_id"`
	PostID    int64 `json:"post_id"`
	Timestamp int64 `json:"timestamp"`
}

// UnixMillis converts t to the millisecond timestamps used throughout feeds.
func UnixMillis(t time.Time) int64 { return t.UnixMilli() }

//
// Persistence models
//

// FeedLogEntry is one row of the durable user-timeline log. The unique index
// on (owner_id, post_id) makes re-delivery a no-op; the (owner_id, timestamp)
// index serves newest-first reads.
type FeedLogEntry struct {
	ID        uint      `gorm:"primaryKey"`
	OwnerID   int64     `gorm:"not null;uniqueIndex:ux_feed_owner_post,priority:1;index:idx_feed_owner_ts,priority:1"`
	PostID    int64     `gorm:"not null;uniqueIndex:ux_feed_owner_post,priority:2"`
	Timestamp int64     `gorm:"not null;index:idx_feed_owner_ts,priority:2"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName returns the database table name for FeedLogEntry.
func (FeedLogEntry) TableName() string { return "feed_log_entries" }

// StoredPost is the relational form of Post. Nested collections are kept as
// JSON columns since they are only ever read back with the post.
type StoredPost struct {
	PostID          int64         `gorm:"primaryKey;autoIncrement:false"`
	ReqID           int64         `gorm:"not null"`
	CreatorID       int64         `gorm:"not null;index"`
	CreatorUsername string        `gorm:"type:varchar(64);not null"`
	Text            string        `gorm:"type:text;not null"`
	UserMentions    []UserMention `gorm:"type:text;serializer:json"`
	Media           []Media       `gorm:"type:text;serializer:json"`
	URLs            []URL         `gorm:"type:text;serializer:json"`
	Timestamp       int64         `gorm:"not null"`
	PostType        PostType      `gorm:"not null;check:post_type BETWEEN 0 AND 3"`
	CreatedAt       time.Time     `gorm:"autoCreateTime"`
}

// TableName returns the database table name for StoredPost.
func (StoredPost) TableName() string { return "posts" }

// NewStoredPost maps a Post to its row form.
func NewStoredPost(p Post) *StoredPost {
	return &StoredPost{
		PostID:          p.PostID,
		ReqID:           p.ReqID,
		CreatorID:       p.Creator.UserID,
		CreatorUsername: p.Creator.Username,
		Text:            p.Text,
		UserMentions:    p.UserMentions,
		Media:           p.Media,
		URLs:            p.URLs,
		Timestamp:       p.Timestamp,
		PostType:        p.PostType,
	}
}

// Post maps the row back to a Post. Nil collections come back as empty slices
// so JSON encodes them as [] like the rest of the wire format.
func (s StoredPost) Post() Post {
	p := Post{
		PostID:       s.PostID,
		Creator:      Creator{UserID: s.CreatorID, Username: s.CreatorUsername},
		ReqID:        s.ReqID,
		Text:         s.Text,
		UserMentions: s.UserMentions,
		Media:        s.Media,
		URLs:         s.URLs,
		Timestamp:    s.Timestamp,
		PostType:     s.PostType,
	}
	if p.UserMentions == nil {
		p.UserMentions = []UserMention{}
	}
	if p.Media == nil {
		p.Media = []Media{}
	}
	if p.URLs == nil {
		p.URLs = []URL{}
	}
	return p
}

// User is a registered account in the development user registry.
// UsernameKey holds the case-folded username used for lookups.
type User struct {
	UserID      int64     `gorm:"primaryKey;autoIncrement:false"`
	Username    string    `gorm:"type:varchar(64);not null"`
	UsernameKey string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_users_username_key"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Follow is a directed edge of the social graph: FollowerID follows FolloweeID.
type Follow struct {
	FollowerID int64     `gorm:"primaryKey;autoIncrement:false"`
	FolloweeID int64     `gorm:"primaryKey;autoIncrement:false;index:idx_follows_followee"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

// TableName returns the database table name for Follow.
func (Follow) TableName() string { return "follows" }

// ShortURL maps a generated short link to its original target.
type ShortURL struct {
	ShortenedURL string    `gorm:"type:varchar(64);primaryKey"`
	ExpandedURL  string    `gorm:"type:text;not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

// TableName returns the database table name for ShortURL.
func (ShortURL) TableName() string { return "short_urls" }
