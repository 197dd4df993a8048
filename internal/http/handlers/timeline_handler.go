package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-feed-backend/internal/utils"
)

// GetUserTimeline godoc
// @ID          getUserTimeline
// @Summary     Read a user timeline
// @Description Returns posts [start, stop) of the user's own posts, newest first.
// @Description Misses in the cache are filled from the durable feed log and written back.
// @Tags        Timelines
// @Produce     json
//
// @Param       id     path   int  true   "User ID"                        minimum(1)
// @Param       start  query  int  false  "First position (inclusive)"     default(0)
// @Param       stop   query  int  false  "Last position (exclusive)"      default(10)
//
// @Success     200  {object}  handlers.PostsResponse  "Feed window"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     502  {object}  handlers.ErrorResponse  "Collaborator failed"
// @Failure     503  {object}  handlers.ErrorResponse  "Collaborator unavailable"
// @Failure     500  {object}  handlers.ErrorResponse  "Backend failed"
// @Router      /api/v1/users/{id}/timeline [get]
func (h *Handlers) GetUserTimeline(c *gin.Context) { h.readPublic(c, h.userFeed) }

// GetHomeTimeline godoc
// @ID          getHomeTimeline
// @Summary     Read a home timeline
// @Description Returns posts [start, stop) from followees and mentions, newest first.
// @Tags        Timelines
// @Produce     json
//
// @Param       id     path   int  true   "User ID"                        minimum(1)
// @Param       start  query  int  false  "First position (inclusive)"     default(0)
// @Param       stop   query  int  false  "Last position (exclusive)"      default(10)
//
// @Success     200  {object}  handlers.PostsResponse  "Feed window"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     502  {object}  handlers.ErrorResponse  "Collaborator failed"
// @Failure     503  {object}  handlers.ErrorResponse  "Collaborator unavailable"
// @Failure     500  {object}  handlers.ErrorResponse  "Backend failed"
// @Router      /api/v1/users/{id}/home-timeline [get]
func (h *Handlers) GetHomeTimeline(c *gin.Context) { h.readPublic(c, h.homeFeed) }

func (h *Handlers) readPublic(c *gin.Context, feed FeedReader) {
	owner, valid := utils.ParseID(c.Param("id"))
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user id must be a positive integer")
		return
	}
	start, stop, err := utils.ParseWindow(c.Query("start"), c.Query("stop"))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}
	posts, err := feed.ReadFeed(c.Request.Context(), reqID(c, 0), owner, start, stop, nil)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, PostsResponse{Posts: nonNilPosts(posts)})
}

// ReadTimelineRequest is the body of /ReadUserTimeline and /ReadHomeTimeline.
type ReadTimelineRequest struct {
	ReqID   int64             `json:"req_id"`
	UserID  int64             `json:"user_id"`
	Start   int               `json:"start"`
	Stop    int               `json:"stop"`
	Carrier map[string]string `json:"carrier"`
}

// ReadUserTimeline godoc
// @ID       readUserTimelineRPC
// @Summary  Read a user timeline (collaborator call)
// @Tags     RPC
// @Accept   json
// @Produce  json
// @Param    body  body  handlers.ReadTimelineRequest  true  "Owner and window"
// @Success  200  {object}  handlers.PostsResponse
// @Failure  400  {object}  handlers.RPCErrorResponse
// @Failure  502  {object}  handlers.RPCErrorResponse
// @Failure  500  {object}  handlers.RPCErrorResponse
// @Router   /ReadUserTimeline [post]
func (h *Handlers) ReadUserTimeline(c *gin.Context) { h.readRPC(c, h.userFeed) }

// ReadHomeTimeline godoc
// @ID       readHomeTimelineRPC
// @Summary  Read a home timeline (collaborator call)
// @Tags     RPC
// @Accept   json
// @Produce  json
// @Param    body  body  handlers.ReadTimelineRequest  true  "Owner and window"
// @Success  200  {object}  handlers.PostsResponse
// @Failure  400  {object}  handlers.RPCErrorResponse
// @Failure  502  {object}  handlers.RPCErrorResponse
// @Failure  500  {object}  handlers.RPCErrorResponse
// @Router   /ReadHomeTimeline [post]
func (h *Handlers) ReadHomeTimeline(c *gin.Context) { h.readRPC(c, h.homeFeed) }

func (h *Handlers) readRPC(c *gin.Context, feed FeedReader) {
	var req ReadTimelineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failRPC(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	start, stop, _ := utils.ClampWindow(req.Start, req.Stop)
	posts, err := feed.ReadFeed(remoteContext(c, req.Carrier), reqID(c, req.ReqID), req.UserID, start, stop, req.Carrier)
	if err != nil {
		failErrRPC(c, err)
		return
	}
	ok(c, http.StatusOK, PostsResponse{Posts: nonNilPosts(posts)})
}

// WriteTimelineRequest is the body of /WriteUserTimeline and
// /WriteHomeTimeline. UserID is the owner (user timeline) or the author
// (home timelines).
type WriteTimelineRequest struct {
	ReqID          int64             `json:"req_id"`
	PostID         int64             `json:"post_id"`
	UserID         int64             `json:"user_id"`
	Timestamp      int64             `json:"timestamp"`
	UserMentionsID []int64           `json:"user_mentions_id"`
	Carrier        map[string]string `json:"carrier"`
}

func (r WriteTimelineRequest) valid() bool {
	return r.PostID > 0 && r.UserID > 0
}

// WriteUserTimeline godoc
// @ID          writeUserTimelineRPC
// @Summary     Append a post to its author's timeline (collaborator call)
// @Description Writes the durable log first, then the cache. Repeating a write is a no-op.
// @Tags        RPC
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.WriteTimelineRequest  true  "Post, owner and timestamp"
// @Success     200  {object}  handlers.StatusResponse
// @Failure     400  {object}  handlers.RPCErrorResponse
// @Failure     500  {object}  handlers.RPCErrorResponse
// @Router      /WriteUserTimeline [post]
func (h *Handlers) WriteUserTimeline(c *gin.Context) {
	var req WriteTimelineRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.valid() {
		failRPC(c, http.StatusBadRequest, ErrCodeBadRequest, "post_id and user_id are required")
		return
	}
	err := h.feeds.WriteOwnFeed(remoteContext(c, req.Carrier), reqID(c, req.ReqID), req.PostID, req.UserID, req.Timestamp, req.Carrier)
	if err != nil {
		failErrRPC(c, err)
		return
	}
	ok(c, http.StatusOK, StatusResponse{Status: "ok"})
}

// WriteHomeTimeline godoc
// @ID          writeHomeTimelineRPC
// @Summary     Fan a post out to home timelines (collaborator call)
// @Description Inserts the post into the home timeline of every follower of the author
// @Description and every mentioned user. Repeating a write is a no-op.
// @Tags        RPC
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.WriteTimelineRequest  true  "Post, author, timestamp and mentions"
// @Success     200  {object}  handlers.StatusResponse
// @Failure     400  {object}  handlers.RPCErrorResponse
// @Failure     502  {object}  handlers.RPCErrorResponse
// @Failure     500  {object}  handlers.RPCErrorResponse
// @Router      /WriteHomeTimeline [post]
func (h *Handlers) WriteHomeTimeline(c *gin.Context) {
	var req WriteTimelineRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.valid() {
		failRPC(c, http.StatusBadRequest, ErrCodeBadRequest, "post_id and user_id are required")
		return
	}
	err := h.feeds.WriteHomeFeeds(remoteContext(c, req.Carrier), reqID(c, req.ReqID), req.PostID, req.UserID, req.Timestamp, req.UserMentionsID, req.Carrier)
	if err != nil {
		failErrRPC(c, err)
		return
	}
	ok(c, http.StatusOK, StatusResponse{Status: "ok"})
}
