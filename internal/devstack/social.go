package devstack

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-feed-backend/internal/repo"
)

type followRequest struct {
	envelope
	UserID     int64 `json:"user_id"`
	FolloweeID int64 `json:"followee_id"`
}

func (r followRequest) valid() bool {
	return r.UserID > 0 && r.FolloweeID > 0 && r.UserID != r.FolloweeID
}

func (s *Server) follow(c *gin.Context) {
	var req followRequest
	ctx, ok := bind(c, &req)
	if !ok {
		return
	}
	if !req.valid() {
		reject(c, http.StatusBadRequest, "user_id and followee_id must be distinct positive ids")
		return
	}
	if err := repo.Follow(ctx, s.db, req.UserID, req.FolloweeID); err != nil {
		fail(ctx, c, "Follow", err)
		return
	}
	done(c)
}

func (s *Server) unfollow(c *gin.Context) {
	var req followRequest
	ctx, ok := bind(c, &req)
	if !ok {
		return
	}
	if !req.valid() {
		reject(c, http.StatusBadRequest, "user_id and followee_id must be distinct positive ids")
		return
	}
	if err := repo.Unfollow(ctx, s.db, req.UserID, req.FolloweeID); err != nil {
		fail(ctx, c, "Unfollow", err)
		return
	}
	done(c)
}

type followByNameRequest struct {
	envelope
	UserUsername     string `json:"user_username"`
	FolloweeUsername string `json:"followee_username"`
}

func (s *Server) followWithUsername(c *gin.Context) {
	var req followByNameRequest
	ctx, ok := bind(c, &req)
	if !ok {
		return
	}
	follower, err := repo.GetUserByKey(ctx, s.db, usernameKey(req.UserUsername))
	if err != nil {
		fail(ctx, c, "FollowWithUsername", err)
		return
	}
	followee, err := repo.GetUserByKey(ctx, s.db, usernameKey(req.FolloweeUsername))
	if err != nil {
		fail(ctx, c, "FollowWithUsername", err)
		return
	}
	if follower.UserID == followee.UserID {
		reject(c, http.StatusBadRequest, "a user cannot follow themselves")
		return
	}
	if err := repo.Follow(ctx, s.db, follower.UserID, followee.UserID); err != nil {
		fail(ctx, c, "FollowWithUsername", err)
		return
	}
	done(c)
}

type graphRequest struct {
	envelope
	UserID int64 `json:"user_id"`
}

func (s *Server) getFollowers(c *gin.Context) {
	var req graphRequest
	ctx, ok := bind(c, &req)
	if !ok {
		return
	}
	ids, err := repo.ListFollowers(ctx, s.db, req.UserID)
	if err != nil {
		fail(ctx, c, "GetFollowers", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"followers_id": ids})
}

func (s *Server) getFollowees(c *gin.Context) {
	var req graphRequest
	ctx, ok := bind(c, &req)
	if !ok {
		return
	}
	ids, err := repo.ListFollowees(ctx, s.db, req.UserID)
	if err != nil {
		fail(ctx, c, "GetFollowees", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"followees_id": ids})
}
