package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/hsuzuki/taskbox-api/internal/models"
	appErrors "github.com/hsuzuki/taskbox-api/pkg/errors"
)

type todoStore interface {
	Create(ctx context.Context, todo *models.Todo) error
	FindByID(ctx context.Context, id, userID string) (*models.Todo, error)
	List(ctx context.Context, userID string, filter models.TodoFilter) ([]models.Todo, int, error)
	Update(ctx context.Context, todo *models.Todo) error
	Delete(ctx context.Context, id, userID string) error
}

// TodoService provides task-record use cases. Every operation is scoped to
// the authenticated subject; ownership is enforced at the repository query.
type TodoService struct {
	repo      todoStore
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTodoService constructs a TodoService instance.
func NewTodoService(repo todoStore, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *TodoService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &TodoService{repo: repo, cache: cache, validator: validate, logger: logger}
}

type cachedTodoList struct {
	Items []models.Todo `json:"items"`
	Total int           `json:"total"`
}

// Create stores a new task for the user.
func (s *TodoService) Create(ctx context.Context, userID string, req models.CreateTodoRequest) (*models.Todo, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid todo payload")
	}

	status := models.StatusPending
	if req.Status != nil {
		status = *req.Status
	}
	priority := models.PriorityMedium
	if req.Priority != nil {
		priority = *req.Priority
	}
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid status")
	}
	if !priority.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid priority")
	}

	todo := &models.Todo{
		UserID:      userID,
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		Status:      status,
		Priority:    priority,
	}
	if err := s.repo.Create(ctx, todo); err != nil {
		s.logger.Warn("failed to create todo", zap.String("user_id", userID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create todo")
	}

	s.invalidateLists(ctx, userID)
	return todo, nil
}

// List returns the user's tasks for the filter, serving from cache when
// possible. The boolean reports whether the result came from cache.
func (s *TodoService) List(ctx context.Context, userID string, filter models.TodoFilter) ([]models.Todo, *models.Pagination, bool, error) {
	key := listCacheKey(userID, filter)

	var cached cachedTodoList
	if s.cache.Get(ctx, key, &cached) {
		return cached.Items, paginationFor(filter, cached.Total), true, nil
	}

	todos, total, err := s.repo.List(ctx, userID, filter)
	if err != nil {
		s.logger.Warn("failed to list todos", zap.String("user_id", userID), zap.Error(err))
		return nil, nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list todos")
	}

	s.cache.Set(ctx, key, cachedTodoList{Items: todos, Total: total})
	return todos, paginationFor(filter, total), false, nil
}

// Get returns a single task owned by the user.
func (s *TodoService) Get(ctx context.Context, id, userID string) (*models.Todo, error) {
	todo, err := s.repo.FindByID(ctx, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "todo not found")
		}
		s.logger.Warn("failed to fetch todo", zap.String("todo_id", id), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch todo")
	}
	return todo, nil
}

// Update applies a partial update to a task owned by the user.
func (s *TodoService) Update(ctx context.Context, id, userID string, req models.UpdateTodoRequest) (*models.Todo, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid todo payload")
	}
	if req.Status != nil && !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid status")
	}
	if req.Priority != nil && !req.Priority.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid priority")
	}

	todo, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		todo.Title = *req.Title
	}
	if req.Description != nil {
		todo.Description = req.Description
	}
	if req.DueDate != nil {
		todo.DueDate = req.DueDate
	}
	if req.Status != nil {
		todo.Status = *req.Status
	}
	if req.Priority != nil {
		todo.Priority = *req.Priority
	}

	if err := s.repo.Update(ctx, todo); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "todo not found")
		}
		s.logger.Warn("failed to update todo", zap.String("todo_id", id), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update todo")
	}

	s.invalidateLists(ctx, userID)
	return todo, nil
}

// UpdateStatus moves a task to a new status.
func (s *TodoService) UpdateStatus(ctx context.Context, id, userID string, req models.UpdateTodoStatusRequest) (*models.Todo, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid status")
	}

	return s.Update(ctx, id, userID, models.UpdateTodoRequest{Status: &req.Status})
}

// Delete removes a task owned by the user.
func (s *TodoService) Delete(ctx context.Context, id, userID string) error {
	if err := s.repo.Delete(ctx, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "todo not found")
		}
		s.logger.Warn("failed to delete todo", zap.String("todo_id", id), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete todo")
	}

	s.invalidateLists(ctx, userID)
	return nil
}

func (s *TodoService) invalidateLists(ctx context.Context, userID string) {
	s.cache.Invalidate(ctx, fmt.Sprintf("todos:%s:*", userID))
}

// listCacheKey derives a stable cache key from the filter values. Pointer
// fields are dereferenced so equal filters hash identically across requests
// and processes.
func listCacheKey(userID string, filter models.TodoFilter) string {
	var b strings.Builder
	if filter.Status != nil {
		fmt.Fprintf(&b, "status=%s;", *filter.Status)
	}
	if filter.Priority != nil {
		fmt.Fprintf(&b, "priority=%s;", *filter.Priority)
	}
	if filter.DueBefore != nil {
		fmt.Fprintf(&b, "due_before=%d;", filter.DueBefore.Unix())
	}
	if filter.DueAfter != nil {
		fmt.Fprintf(&b, "due_after=%d;", filter.DueAfter.Unix())
	}
	fmt.Fprintf(&b, "sort=%s,%s;page=%d,%d", filter.SortBy, filter.SortOrder, filter.Page, filter.PerPage)

	sum := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("todos:%s:%s", userID, hex.EncodeToString(sum[:8]))
}

func paginationFor(filter models.TodoFilter, total int) *models.Pagination {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage <= 0 || perPage > 100 {
		perPage = 20
	}
	return &models.Pagination{Page: page, PageSize: perPage, TotalCount: total}
}
