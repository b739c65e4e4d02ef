package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/taskhive/taskhive/internal/services"
	apperrors "github.com/taskhive/taskhive/pkg/errors"
	"github.com/taskhive/taskhive/pkg/response"
)

// TaskHandler exposes HTTP endpoints for tasks within a list.
type TaskHandler struct {
	tasks *services.TaskService
}

// NewTaskHandler constructs a task handler.
func NewTaskHandler(tasks *services.TaskService) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

// Create adds a task to the list.
func (h *TaskHandler) Create(c *gin.Context) {
	var input services.CreateTaskInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, apperrors.NewValidation(err.Error()))
		return
	}

	task, err := h.tasks.Create(requestContext(c), currentUID(c), c.Param("id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, task)
}

// List returns the list's tasks.
func (h *TaskHandler) List(c *gin.Context) {
	tasks, err := h.tasks.ListForList(requestContext(c), currentUID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, tasks)
}

// Get returns a single task.
func (h *TaskHandler) Get(c *gin.Context) {
	task, err := h.tasks.Get(requestContext(c), currentUID(c), c.Param("id"), c.Param("taskID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, task)
}

// Update applies a partial mutation to a task.
func (h *TaskHandler) Update(c *gin.Context) {
	var input services.UpdateTaskInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, apperrors.NewValidation(err.Error()))
		return
	}

	task, err := h.tasks.Update(requestContext(c), currentUID(c), c.Param("id"), c.Param("taskID"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, task)
}

// Delete removes a task.
func (h *TaskHandler) Delete(c *gin.Context) {
	if err := h.tasks.Delete(requestContext(c), currentUID(c), c.Param("id"), c.Param("taskID")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
