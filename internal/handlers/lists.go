package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/taskhive/taskhive/internal/services"
	apperrors "github.com/taskhive/taskhive/pkg/errors"
	"github.com/taskhive/taskhive/pkg/response"
)

// ListHandler exposes HTTP endpoints for shared lists and their membership.
type ListHandler struct {
	lists *services.ListService
}

// NewListHandler constructs a list handler.
func NewListHandler(lists *services.ListService) *ListHandler {
	return &ListHandler{lists: lists}
}

// Create makes a new list owned by the caller.
func (h *ListHandler) Create(c *gin.Context) {
	var input services.CreateListInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, apperrors.NewValidation(err.Error()))
		return
	}

	dto, err := h.lists.Create(requestContext(c), currentUID(c), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, dto)
}

// List returns all lists the caller belongs to.
func (h *ListHandler) List(c *gin.Context) {
	dtos, err := h.lists.ListForUser(requestContext(c), currentUID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, dtos)
}

// Get returns a single list.
func (h *ListHandler) Get(c *gin.Context) {
	dto, err := h.lists.Get(requestContext(c), currentUID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, dto)
}

// Update renames or re-describes a list.
func (h *ListHandler) Update(c *gin.Context) {
	var input services.UpdateListInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, apperrors.NewValidation(err.Error()))
		return
	}

	dto, err := h.lists.Update(requestContext(c), currentUID(c), c.Param("id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, dto)
}

// Delete removes a list and everything scoped to it.
func (h *ListHandler) Delete(c *gin.Context) {
	if err := h.lists.Delete(requestContext(c), currentUID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// RemoveMember drops a member from the list.
func (h *ListHandler) RemoveMember(c *gin.Context) {
	memberUID := strings.TrimSpace(c.Param("userID"))
	if memberUID == "" {
		response.Error(c, apperrors.NewValidation("member id is required"))
		return
	}

	if err := h.lists.RemoveMember(requestContext(c), currentUID(c), c.Param("id"), memberUID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"removed": true})
}
