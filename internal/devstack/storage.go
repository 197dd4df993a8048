package devstack

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-feed-backend/internal/domain"
	"github.com/tbourn/go-feed-backend/internal/repo"
)

type storePostRequest struct {
	envelope
	Post domain.Post `json:"post"`
}

func (s *Server) storePost(c *gin.Context) {
	var req storePostRequest
	ctx, ok := bind(c, &req)
	if !ok {
		return
	}
	if req.Post.PostID <= 0 || !req.Post.PostType.Valid() {
		reject(c, http.StatusBadRequest, "post needs a positive post_id and a known post_type")
		return
	}
	if err := repo.StorePost(ctx, s.db, req.Post); err != nil {
		fail(ctx, c, "StorePost", err)
		return
	}
	done(c)
}

type readPostRequest struct {
	envelope
	PostID int64 `json:"post_id"`
}

func (s *Server) readPost(c *gin.Context) {
	var req readPostRequest
	ctx, ok := bind(c, &req)
	if !ok {
		return
	}
	p, err := repo.GetPost(ctx, s.db, req.PostID)
	if err != nil {
		fail(ctx, c, "ReadPost", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

type readPostsRequest struct {
	envelope
	PostIDs []int64 `json:"post_ids"`
}

func (s *Server) readPosts(c *gin.Context) {
	var req readPostsRequest
	ctx, ok := bind(c, &req)
	if !ok {
		return
	}
	posts, err := repo.GetPosts(ctx, s.db, req.PostIDs)
	if err != nil {
		fail(ctx, c, "ReadPosts", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}
