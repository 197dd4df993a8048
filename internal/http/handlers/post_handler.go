package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-feed-backend/internal/domain"
	"github.com/tbourn/go-feed-backend/internal/services"
	"github.com/tbourn/go-feed-backend/internal/utils"
)

// ComposePostRequest is the JSON body of POST /posts and /ComposePost.
type ComposePostRequest struct {
	ReqID      int64             `json:"req_id"`
	Username   string            `json:"username"`
	UserID     int64             `json:"user_id"`
	Text       string            `json:"text"`
	MediaIDs   []int64           `json:"media_ids"`
	MediaTypes []string          `json:"media_types"`
	PostType   domain.PostType   `json:"post_type"`
	Carrier    map[string]string `json:"carrier"`
}

func (r ComposePostRequest) toService(id int64) services.ComposeRequest {
	return services.ComposeRequest{
		ReqID:      id,
		Username:   r.Username,
		UserID:     r.UserID,
		Text:       r.Text,
		MediaIDs:   r.MediaIDs,
		MediaTypes: r.MediaTypes,
		PostType:   r.PostType,
		Carrier:    r.Carrier,
	}
}

// CreatePost godoc
// @ID          createPost
// @Summary     Compose a post
// @Description Resolves creator, text, media and post id concurrently, stores the post,
// @Description then writes it to the author's timeline and to every follower and mention.
// @Tags        Posts
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.ComposePostRequest  true  "Post to compose"
//
// @Success     201  {object}  handlers.StatusResponse  "Post created"
// @Failure     400  {object}  handlers.ErrorResponse   "Bad request"
// @Failure     502  {object}  handlers.ErrorResponse   "Collaborator failed"
// @Failure     503  {object}  handlers.ErrorResponse   "Collaborator unavailable"
// @Failure     500  {object}  handlers.ErrorResponse   "Internal error"
// @Router      /api/v1/posts [post]
func (h *Handlers) CreatePost(c *gin.Context) {
	var req ComposePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	post, err := h.compose.ComposePost(remoteContext(c, req.Carrier), req.toService(reqID(c, req.ReqID)))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, StatusResponse{Status: "ok", PostID: post.PostID})
}

// ComposePost godoc
// @ID          composePostRPC
// @Summary     Compose a post (collaborator call)
// @Description Same as POST /posts, answered in the collaborator wire format.
// @Tags        RPC
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.ComposePostRequest  true  "Post to compose"
// @Success     200  {object}  handlers.StatusResponse
// @Failure     400  {object}  handlers.RPCErrorResponse
// @Failure     502  {object}  handlers.RPCErrorResponse
// @Failure     503  {object}  handlers.RPCErrorResponse
// @Failure     500  {object}  handlers.RPCErrorResponse
// @Router      /ComposePost [post]
func (h *Handlers) ComposePost(c *gin.Context) {
	var req ComposePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failRPC(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	post, err := h.compose.ComposePost(remoteContext(c, req.Carrier), req.toService(reqID(c, req.ReqID)))
	if err != nil {
		failErrRPC(c, err)
		return
	}
	ok(c, http.StatusOK, StatusResponse{Status: "ok", PostID: post.PostID})
}

// GetPost godoc
// @ID          getPost
// @Summary     Get a post
// @Description Looks a single post up in post storage.
// @Tags        Posts
// @Produce     json
//
// @Param       id  path  int  true  "Post ID"  minimum(1)
//
// @Success     200  {object}  domain.Post            "Post"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     502  {object}  handlers.ErrorResponse  "Post storage failed or post unknown"
// @Failure     503  {object}  handlers.ErrorResponse  "Post storage unavailable"
// @Router      /api/v1/posts/{id} [get]
func (h *Handlers) GetPost(c *gin.Context) {
	id, valid := utils.ParseID(c.Param("id"))
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "post id must be a positive integer")
		return
	}
	post, err := h.posts.ReadPost(c.Request.Context(), reqID(c, 0), id, nil)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, post)
}
