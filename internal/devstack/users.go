package devstack

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/cases"

	"github.com/tbourn/go-feed-backend/internal/domain"
	"github.com/tbourn/go-feed-backend/internal/repo"
)

// maxUsername matches the users.username column width.
const maxUsername = 64

// usernameKey folds a username for case-insensitive lookups, so "Bob",
// "BOB" and "bob" are one account.
func usernameKey(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

type userRequest struct {
	envelope
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

func (r userRequest) valid() bool {
	name := strings.TrimSpace(r.Username)
	return r.UserID > 0 && name != "" && len(name) <= maxUsername
}

func (s *Server) registerUserWithID(c *gin.Context) {
	var req userRequest
	ctx, ok := bind(c, &req)
	if !ok {
		return
	}
	if !req.valid() {
		reject(c, http.StatusBadRequest, "user_id and username are required")
		return
	}
	name := strings.TrimSpace(req.Username)
	if _, err := repo.CreateUser(ctx, s.db, req.UserID, name, usernameKey(name)); err != nil {
		fail(ctx, c, "RegisterUserWithId", err)
		return
	}
	done(c)
}

// composeCreatorWithUserID echoes the creator. The caller already
// authenticated the user, so nothing is looked up.
func (s *Server) composeCreatorWithUserID(c *gin.Context) {
	var req userRequest
	if _, ok := bind(c, &req); !ok {
		return
	}
	if !req.valid() {
		reject(c, http.StatusBadRequest, "user_id and username are required")
		return
	}
	c.JSON(http.StatusOK, domain.Creator{UserID: req.UserID, Username: req.Username})
}

func (s *Server) getUserID(c *gin.Context) {
	var req userRequest
	ctx, ok := bind(c, &req)
	if !ok {
		return
	}
	u, err := repo.GetUserByKey(ctx, s.db, usernameKey(req.Username))
	if err != nil {
		fail(ctx, c, "GetUserId", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": u.UserID})
}
