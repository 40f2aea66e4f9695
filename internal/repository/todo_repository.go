package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/hsuzuki/taskbox-api/internal/models"
)

const todoColumns = "id, user_id, title, description, due_date, status, priority, created_at, updated_at"

// TodoRepository provides database access for task records. Every query is
// scoped by user_id so ownership checks happen at the row level.
type TodoRepository struct {
	db *sqlx.DB
}

// NewTodoRepository creates a new instance of TodoRepository.
func NewTodoRepository(db *sqlx.DB) *TodoRepository {
	return &TodoRepository{db: db}
}

// Create inserts a new task.
func (r *TodoRepository) Create(ctx context.Context, todo *models.Todo) error {
	if todo.ID == "" {
		todo.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if todo.CreatedAt.IsZero() {
		todo.CreatedAt = now
	}
	todo.UpdatedAt = now

	const query = `INSERT INTO todos (id, user_id, title, description, due_date, status, priority, created_at, updated_at) VALUES (:id, :user_id, :title, :description, :due_date, :status, :priority, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, todo); err != nil {
		return fmt.Errorf("create todo: %w", err)
	}
	return nil
}

// FindByID returns the task matching id and owner.
func (r *TodoRepository) FindByID(ctx context.Context, id, userID string) (*models.Todo, error) {
	query := fmt.Sprintf("SELECT %s FROM todos WHERE id = $1 AND user_id = $2 LIMIT 1", todoColumns)
	var todo models.Todo
	if err := r.db.GetContext(ctx, &todo, query, id, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find todo by id: %w", err)
	}
	return &todo, nil
}

// List returns the user's tasks matching the filter, with the total count.
// Conditions are accumulated as positional parameters; sort column and order
// are constrained to a whitelist.
func (r *TodoRepository) List(ctx context.Context, userID string, filter models.TodoFilter) ([]models.Todo, int, error) {
	baseQuery := `FROM todos WHERE user_id = $1`
	args := []interface{}{userID}
	var conditions []string

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.Priority != nil {
		conditions = append(conditions, fmt.Sprintf("priority = $%d", len(args)+1))
		args = append(args, *filter.Priority)
	}
	if filter.DueBefore != nil {
		conditions = append(conditions, fmt.Sprintf("due_date <= $%d", len(args)+1))
		args = append(args, *filter.DueBefore)
	}
	if filter.DueAfter != nil {
		conditions = append(conditions, fmt.Sprintf("due_date >= $%d", len(args)+1))
		args = append(args, *filter.DueAfter)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"created_at": true,
		"due_date":   true,
		"priority":   true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}

	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage <= 0 || perPage > 100 {
		perPage = 20
	}
	offset := (page - 1) * perPage

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", todoColumns, baseQuery, sortBy, sortOrder, perPage, offset)

	var todos []models.Todo
	if err := r.db.SelectContext(ctx, &todos, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list todos: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count todos: %w", err)
	}

	return todos, total, nil
}

// Update writes the mutable fields and returns sql.ErrNoRows when the task
// does not exist or belongs to another user.
func (r *TodoRepository) Update(ctx context.Context, todo *models.Todo) error {
	todo.UpdatedAt = time.Now().UTC()
	const query = `UPDATE todos SET title = :title, description = :description, due_date = :due_date, status = :status, priority = :priority, updated_at = :updated_at WHERE id = :id AND user_id = :user_id`
	res, err := r.db.NamedExecContext(ctx, query, todo)
	if err != nil {
		return fmt.Errorf("update todo: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update todo affected rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes the task matching id and owner.
func (r *TodoRepository) Delete(ctx context.Context, id, userID string) error {
	const query = `DELETE FROM todos WHERE id = $1 AND user_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete todo affected rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
