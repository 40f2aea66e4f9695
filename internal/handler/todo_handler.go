package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hsuzuki/taskbox-api/internal/models"
	"github.com/hsuzuki/taskbox-api/internal/service"
	appErrors "github.com/hsuzuki/taskbox-api/pkg/errors"
	"github.com/hsuzuki/taskbox-api/pkg/response"
)

// TodoHandler wires HTTP endpoints to the todo service. All routes sit
// behind the JWT middleware; the subject comes from verified claims only.
type TodoHandler struct {
	service *service.TodoService
}

// NewTodoHandler creates a new handler.
func NewTodoHandler(svc *service.TodoService) *TodoHandler {
	return &TodoHandler{service: svc}
}

// List godoc
// @Summary List tasks
// @Tags Todos
// @Produce json
// @Param status query string false "Filter by status"
// @Param priority query string false "Filter by priority"
// @Param due_before query string false "Due before (RFC3339)"
// @Param due_after query string false "Due after (RFC3339)"
// @Param sort query string false "Sort field"
// @Param order query string false "Sort order"
// @Param page query int false "Page number"
// @Param per_page query int false "Items per page"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /todos [get]
func (h *TodoHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter, err := parseTodoFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	todos, pagination, cacheHit, err := h.service.List(c.Request.Context(), claims.Subject, filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, todos, pagination, map[string]interface{}{"cache_hit": cacheHit})
}

// Create godoc
// @Summary Create task
// @Tags Todos
// @Accept json
// @Produce json
// @Param payload body models.CreateTodoRequest true "Create payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /todos [post]
func (h *TodoHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.CreateTodoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid todo payload"))
		return
	}

	todo, err := h.service.Create(c.Request.Context(), claims.Subject, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, todo)
}

// Get godoc
// @Summary Get task
// @Tags Todos
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /todos/{id} [get]
func (h *TodoHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	todo, err := h.service.Get(c.Request.Context(), c.Param("id"), claims.Subject)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, todo, nil)
}

// Update godoc
// @Summary Update task
// @Tags Todos
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param payload body models.UpdateTodoRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /todos/{id} [put]
func (h *TodoHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.UpdateTodoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid todo payload"))
		return
	}

	todo, err := h.service.Update(c.Request.Context(), c.Param("id"), claims.Subject, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, todo, nil)
}

// UpdateStatus godoc
// @Summary Update task status
// @Tags Todos
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param payload body models.UpdateTodoStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /todos/{id}/status [patch]
func (h *TodoHandler) UpdateStatus(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.UpdateTodoStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}

	todo, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), claims.Subject, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, todo, nil)
}

// Delete godoc
// @Summary Delete task
// @Tags Todos
// @Produce json
// @Param id path string true "Task ID"
// @Success 204 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /todos/{id} [delete]
func (h *TodoHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claims.Subject); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

func parseTodoFilter(c *gin.Context) (models.TodoFilter, error) {
	filter := models.TodoFilter{
		SortBy:    c.Query("sort"),
		SortOrder: c.Query("order"),
	}

	if raw := c.Query("status"); raw != "" {
		status := models.TodoStatus(raw)
		if !status.Valid() {
			return filter, appErrors.Clone(appErrors.ErrValidation, "invalid status filter")
		}
		filter.Status = &status
	}
	if raw := c.Query("priority"); raw != "" {
		priority := models.TodoPriority(raw)
		if !priority.Valid() {
			return filter, appErrors.Clone(appErrors.ErrValidation, "invalid priority filter")
		}
		filter.Priority = &priority
	}
	if raw := c.Query("due_before"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "invalid due_before timestamp")
		}
		filter.DueBefore = &ts
	}
	if raw := c.Query("due_after"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "invalid due_after timestamp")
		}
		filter.DueAfter = &ts
	}
	if raw := c.Query("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "invalid page")
		}
		filter.Page = page
	}
	if raw := c.Query("per_page"); raw != "" {
		perPage, err := strconv.Atoi(raw)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "invalid per_page")
		}
		filter.PerPage = perPage
	}

	return filter, nil
}
