package devstack

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-feed-backend/internal/domain"
	"github.com/tbourn/go-feed-backend/internal/repo"
)

const (
	shortURLPrefix = "http://short-url/"
	shortCodeLen   = 10
)

var (
	mentionPattern = regexp.MustCompile(`@[a-zA-Z0-9_-]+`)
	urlPattern     = regexp.MustCompile(`(http://|https://)([a-zA-Z0-9_!~*'().&=+$%-]+)`)
)

func randomCode() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:shortCodeLen]
}

// shorten allocates a short link for every expanded URL and stores the
// mappings.
func (s *Server) shorten(ctx context.Context, expanded []string) ([]domain.URL, error) {
	urls := make([]domain.URL, 0, len(expanded))
	for _, e := range expanded {
		urls = append(urls, domain.URL{ShortenedURL: shortURLPrefix + s.shortCode(), ExpandedURL: e})
	}
	if err := repo.StoreShortURLs(ctx, s.db, urls); err != nil {
		return nil, err
	}
	return urls, nil
}

// mentions resolves usernames to registered users in first-mention order.
// Unknown names are dropped and repeats collapse to one mention.
func (s *Server) mentions(ctx context.Context, names []string) ([]domain.UserMention, error) {
	keys := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		k := usernameKey(strings.TrimPrefix(n, "@"))
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}

	users, err := repo.ListUsersByKeys(ctx, s.db, keys)
	if err != nil {
		return nil, err
	}
	byKey := make(map[string]domain.User, len(users))
	for _, u := range users {
		byKey[u.UsernameKey] = u
	}
	out := make([]domain.UserMention, 0, len(users))
	for _, k := range keys {
		if u, ok := byKey[k]; ok {
			out = append(out, domain.UserMention{UserID: u.UserID, Username: u.Username})
		}
	}
	return out, nil
}

type composeTextRequest struct {
	envelope
	Text string `json:"text"`
}

type composeTextResponse struct {
	Text         string               `json:"text"`
	URLs         []domain.URL         `json:"urls"`
	UserMentions []domain.UserMention `json:"user_mentions"`
}

// composeText shortens every URL in the text, rewrites the text to use the
// short forms, and resolves @mentions.
func (s *Server) composeText(c *gin.Context) {
	var req composeTextRequest
	ctx, ok := bind(c, &req)
	if !ok {
		return
	}

	urls, err := s.shorten(ctx, urlPattern.FindAllString(req.Text, -1))
	if err != nil {
		fail(ctx, c, "ComposeText", err)
		return
	}
	mentions, err := s.mentions(ctx, mentionPattern.FindAllString(req.Text, -1))
	if err != nil {
		fail(ctx, c, "ComposeText", err)
		return
	}

	// Each match gets its own short link, so a URL that appears twice maps
	// to two links.
	i := 0
	text := urlPattern.ReplaceAllStringFunc(req.Text, func(string) string {
		short := urls[i].ShortenedURL
		i++
		return short
	})
	c.JSON(http.StatusOK, composeTextResponse{Text: text, URLs: urls, UserMentions: mentions})
}

type composeURLsRequest struct {
	envelope
	URLs []string `json:"urls"`
}

func (s *Server) composeURLs(c *gin.Context) {
	var req composeURLsRequest
	ctx, ok := bind(c, &req)
	if !ok {
		return
	}
	urls, err := s.shorten(ctx, req.URLs)
	if err != nil {
		fail(ctx, c, "ComposeUrls", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"urls": urls})
}

type extendedURLsRequest struct {
	envelope
	ShortenedURLs []string `json:"shortened_urls"`
}

// getExtendedURLs expands short links in order. Unknown links expand to "".
func (s *Server) getExtendedURLs(c *gin.Context) {
	var req extendedURLsRequest
	ctx, ok := bind(c, &req)
	if !ok {
		return
	}
	out := make([]string, 0, len(req.ShortenedURLs))
	for _, short := range req.ShortenedURLs {
		target, err := repo.ExpandShortURL(ctx, s.db, short)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			fail(ctx, c, "GetExtendedUrls", err)
			return
		}
		out = append(out, target)
	}
	c.JSON(http.StatusOK, gin.H{"urls": out})
}

type composeMentionsRequest struct {
	envelope
	Usernames []string `json:"usernames"`
}

func (s *Server) composeUserMentions(c *gin.Context) {
	var req composeMentionsRequest
	ctx, ok := bind(c, &req)
	if !ok {
		return
	}
	mentions, err := s.mentions(ctx, req.Usernames)
	if err != nil {
		fail(ctx, c, "ComposeUserMentions", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_mentions": mentions})
}
