package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/taskhive/taskhive/internal/services"
	"github.com/taskhive/taskhive/pkg/response"
)

// ActivityHandler exposes the per-list activity feed.
type ActivityHandler struct {
	lists      *services.ListService
	activities *services.ActivityService
}

// NewActivityHandler constructs an activity handler.
func NewActivityHandler(lists *services.ListService, activities *services.ActivityService) *ActivityHandler {
	return &ActivityHandler{lists: lists, activities: activities}
}

// List returns the newest activity entries for a list. Any member may read
// the feed.
func (h *ActivityHandler) List(c *gin.Context) {
	listID := c.Param("id")

	// Membership gate; the feed itself has no per-entry permissions.
	if _, err := h.lists.Get(requestContext(c), currentUID(c), listID); err != nil {
		response.Error(c, err)
		return
	}
	limit := parseIntQuery(c, "limit", 50)
	offset := parseIntQuery(c, "offset", 0)

	rows, err := h.activities.ListForList(requestContext(c), listID, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, rows, &response.Meta{Limit: limit, Offset: offset})
}
