package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/taskhive/taskhive/internal/middleware"
	"github.com/taskhive/taskhive/internal/services"
	apperrors "github.com/taskhive/taskhive/pkg/errors"
	"github.com/taskhive/taskhive/pkg/response"
)

// InvitationHandler exposes HTTP endpoints for the invitation lifecycle.
type InvitationHandler struct {
	invitations *services.InvitationService
}

// NewInvitationHandler constructs an invitation handler.
func NewInvitationHandler(invitations *services.InvitationService) *InvitationHandler {
	return &InvitationHandler{invitations: invitations}
}

// Invite creates a pending invitation for a list.
func (h *InvitationHandler) Invite(c *gin.Context) {
	var input services.InviteInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, apperrors.NewValidation(err.Error()))
		return
	}

	invitation, err := h.invitations.Invite(requestContext(c), currentUID(c), c.Param("id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, invitation)
}

// ListForList returns a list's pending invitations.
func (h *InvitationHandler) ListForList(c *gin.Context) {
	rows, err := h.invitations.ListForList(requestContext(c), currentUID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, rows)
}

// ListMine returns the caller's own pending invitations.
func (h *InvitationHandler) ListMine(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		response.Error(c, apperrors.ErrNoToken)
		return
	}

	rows, err := h.invitations.ListForEmail(requestContext(c), identity.Email)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, rows)
}

// Accept consumes an invitation and joins the caller to the list.
func (h *InvitationHandler) Accept(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		response.Error(c, apperrors.ErrNoToken)
		return
	}

	dto, err := h.invitations.Accept(requestContext(c), identity.UID, identity.Email, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, dto)
}

// Decline consumes an invitation without joining.
func (h *InvitationHandler) Decline(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		response.Error(c, apperrors.ErrNoToken)
		return
	}

	if err := h.invitations.Decline(requestContext(c), identity.Email, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"declined": true})
}
