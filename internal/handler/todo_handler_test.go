package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsuzuki/taskbox-api/internal/middleware"
	"github.com/hsuzuki/taskbox-api/internal/models"
	"github.com/hsuzuki/taskbox-api/internal/service"
)

type fakeTodoStore struct {
	todos map[string]*models.Todo
}

func newFakeTodoStore() *fakeTodoStore {
	return &fakeTodoStore{todos: make(map[string]*models.Todo)}
}

func (f *fakeTodoStore) Create(ctx context.Context, todo *models.Todo) error {
	if todo.ID == "" {
		todo.ID = fmt.Sprintf("todo-%d", len(f.todos)+1)
	}
	now := time.Now().UTC()
	todo.CreatedAt = now
	todo.UpdatedAt = now
	f.todos[todo.ID] = todo
	return nil
}

func (f *fakeTodoStore) FindByID(ctx context.Context, id, userID string) (*models.Todo, error) {
	todo, ok := f.todos[id]
	if !ok || todo.UserID != userID {
		return nil, sql.ErrNoRows
	}
	copied := *todo
	return &copied, nil
}

func (f *fakeTodoStore) List(ctx context.Context, userID string, filter models.TodoFilter) ([]models.Todo, int, error) {
	var out []models.Todo
	for _, todo := range f.todos {
		if todo.UserID == userID {
			out = append(out, *todo)
		}
	}
	return out, len(out), nil
}

func (f *fakeTodoStore) Update(ctx context.Context, todo *models.Todo) error {
	existing, ok := f.todos[todo.ID]
	if !ok || existing.UserID != todo.UserID {
		return sql.ErrNoRows
	}
	f.todos[todo.ID] = todo
	return nil
}

func (f *fakeTodoStore) Delete(ctx context.Context, id, userID string) error {
	existing, ok := f.todos[id]
	if !ok || existing.UserID != userID {
		return sql.ErrNoRows
	}
	delete(f.todos, id)
	return nil
}

func authAs(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserKey, &models.AccessClaims{
			Email:            userID + "@x.com",
			RegisteredClaims: jwt.RegisteredClaims{Subject: userID},
		})
		c.Next()
	}
}

func newTodoTestRouter(store *fakeTodoStore, authed bool) *gin.Engine {
	gin.SetMode(gin.TestMode)

	todoHandler := NewTodoHandler(service.NewTodoService(store, nil, nil, nil))

	r := gin.New()
	todos := r.Group("/api/todos")
	if authed {
		todos.Use(authAs("user-1"))
	}
	todos.GET("", todoHandler.List)
	todos.POST("", todoHandler.Create)
	todos.GET("/:id", todoHandler.Get)
	todos.PUT("/:id", todoHandler.Update)
	todos.PATCH("/:id/status", todoHandler.UpdateStatus)
	todos.DELETE("/:id", todoHandler.Delete)
	return r
}

func seedTodo(t *testing.T, store *fakeTodoStore, userID, title string) *models.Todo {
	t.Helper()
	todo := &models.Todo{UserID: userID, Title: title, Status: models.StatusPending, Priority: models.PriorityMedium}
	require.NoError(t, store.Create(context.Background(), todo))
	return todo
}

func TestTodoHandlerCreate(t *testing.T) {
	store := newFakeTodoStore()
	r := newTodoTestRouter(store, true)

	w := doJSON(t, r, http.MethodPost, "/api/todos", gin.H{"title": "write report"})
	require.Equal(t, http.StatusCreated, w.Code)

	data := decodeEnvelope(t, w).Data.(map[string]interface{})
	assert.Equal(t, "write report", data["title"])
	assert.Equal(t, "pending", data["status"])
	assert.Equal(t, "medium", data["priority"])
	assert.Equal(t, "user-1", data["user_id"])
}

func TestTodoHandlerCreateValidation(t *testing.T) {
	r := newTodoTestRouter(newFakeTodoStore(), true)

	w := doJSON(t, r, http.MethodPost, "/api/todos", gin.H{"description": "no title"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTodoHandlerListMeta(t *testing.T) {
	store := newFakeTodoStore()
	seedTodo(t, store, "user-1", "mine")
	seedTodo(t, store, "user-2", "not mine")
	r := newTodoTestRouter(store, true)

	req := httptest.NewRequest(http.MethodGet, "/api/todos", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	envelope := decodeEnvelope(t, w)

	items := envelope.Data.([]interface{})
	assert.Len(t, items, 1)
	require.NotNil(t, envelope.Pagination)
	assert.Equal(t, 1, envelope.Pagination.TotalCount)
	assert.Equal(t, 20, envelope.Pagination.PageSize)
	assert.Equal(t, false, envelope.Meta["cache_hit"])
}

func TestTodoHandlerListInvalidFilter(t *testing.T) {
	r := newTodoTestRouter(newFakeTodoStore(), true)

	for _, query := range []string{"status=archived", "priority=urgent", "due_before=tomorrow", "page=abc"} {
		req := httptest.NewRequest(http.MethodGet, "/api/todos?"+query, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code, query)
	}
}

func TestTodoHandlerGetNotFound(t *testing.T) {
	store := newFakeTodoStore()
	seedTodo(t, store, "user-2", "someone else's")
	r := newTodoTestRouter(store, true)

	req := httptest.NewRequest(http.MethodGet, "/api/todos/todo-1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTodoHandlerUpdateStatus(t *testing.T) {
	store := newFakeTodoStore()
	todo := seedTodo(t, store, "user-1", "task")
	r := newTodoTestRouter(store, true)

	w := doJSON(t, r, http.MethodPatch, "/api/todos/"+todo.ID+"/status", gin.H{"status": "completed"})
	require.Equal(t, http.StatusOK, w.Code)

	data := decodeEnvelope(t, w).Data.(map[string]interface{})
	assert.Equal(t, "completed", data["status"])
}

func TestTodoHandlerUpdateStatusInvalid(t *testing.T) {
	store := newFakeTodoStore()
	todo := seedTodo(t, store, "user-1", "task")
	r := newTodoTestRouter(store, true)

	w := doJSON(t, r, http.MethodPatch, "/api/todos/"+todo.ID+"/status", gin.H{"status": "archived"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTodoHandlerDelete(t *testing.T) {
	store := newFakeTodoStore()
	todo := seedTodo(t, store, "user-1", "gone soon")
	r := newTodoTestRouter(store, true)

	req := httptest.NewRequest(http.MethodDelete, "/api/todos/"+todo.ID, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	req = httptest.NewRequest(http.MethodDelete, "/api/todos/"+todo.ID, nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTodoHandlerRequiresClaims(t *testing.T) {
	r := newTodoTestRouter(newFakeTodoStore(), false)

	req := httptest.NewRequest(http.MethodGet, "/api/todos", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body, "error")
}
