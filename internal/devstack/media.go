package devstack

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-feed-backend/internal/domain"
)

type composeMediaRequest struct {
	envelope
	MediaIDs   []int64  `json:"media_ids"`
	MediaTypes []string `json:"media_types"`
}

func (s *Server) composeMedia(c *gin.Context) {
	var req composeMediaRequest
	if _, ok := bind(c, &req); !ok {
		return
	}
	if len(req.MediaIDs) != len(req.MediaTypes) {
		reject(c, http.StatusBadRequest, "media_ids and media_types differ in length")
		return
	}
	media := make([]domain.Media, len(req.MediaIDs))
	for i, id := range req.MediaIDs {
		media[i] = domain.Media{MediaID: id, MediaType: req.MediaTypes[i]}
	}
	c.JSON(http.StatusOK, gin.H{"media": media})
}

type composeUniqueIDRequest struct {
	envelope
	PostType domain.PostType `json:"post_type"`
}

func (s *Server) composeUniqueID(c *gin.Context) {
	var req composeUniqueIDRequest
	if _, ok := bind(c, &req); !ok {
		return
	}
	if !req.PostType.Valid() {
		reject(c, http.StatusBadRequest, "unknown post_type")
		return
	}
	c.JSON(http.StatusOK, gin.H{"unique_id": s.ids.Next()})
}
