package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/taskhive/taskhive/internal/middleware"
	"github.com/taskhive/taskhive/internal/realtime"
	apperrors "github.com/taskhive/taskhive/pkg/errors"
	"github.com/taskhive/taskhive/pkg/response"
)

// RealtimeHandler upgrades HTTP connections into authenticated WebSocket streams.
type RealtimeHandler struct {
	hub *realtime.Hub
}

// NewRealtimeHandler constructs a realtime handler.
func NewRealtimeHandler(hub *realtime.Hub) *RealtimeHandler {
	return &RealtimeHandler{hub: hub}
}

// Stream upgrades the request and registers the caller with the hub. The Auth
// middleware has already resolved the credential (websocket clients pass it
// via the token query parameter), so only the identity lookup remains.
func (h *RealtimeHandler) Stream(c *gin.Context) {
	if h.hub == nil {
		response.Error(c, apperrors.ErrNotFound)
		return
	}

	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		response.Error(c, apperrors.ErrNoToken)
		return
	}

	h.hub.Serve(identity.UID, c.Writer, c.Request)
}
