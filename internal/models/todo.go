package models

import "time"

// TodoStatus enumerates the lifecycle states of a task.
type TodoStatus string

const (
	StatusPending    TodoStatus = "pending"
	StatusInProgress TodoStatus = "in_progress"
	StatusCompleted  TodoStatus = "completed"
)

// Valid reports whether the status is one of the known states.
func (s TodoStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// TodoPriority enumerates task priorities.
type TodoPriority string

const (
	PriorityLow    TodoPriority = "low"
	PriorityMedium TodoPriority = "medium"
	PriorityHigh   TodoPriority = "high"
)

// Valid reports whether the priority is one of the known levels.
func (p TodoPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Todo represents a task record owned by a single user.
type Todo struct {
	ID          string       `db:"id" json:"id"`
	UserID      string       `db:"user_id" json:"user_id"`
	Title       string       `db:"title" json:"title"`
	Description *string      `db:"description" json:"description,omitempty"`
	DueDate     *time.Time   `db:"due_date" json:"due_date,omitempty"`
	Status      TodoStatus   `db:"status" json:"status"`
	Priority    TodoPriority `db:"priority" json:"priority"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updated_at"`
}

// CreateTodoRequest is the payload for creating a task.
type CreateTodoRequest struct {
	Title       string        `json:"title" validate:"required,min=1,max=255"`
	Description *string       `json:"description"`
	DueDate     *time.Time    `json:"due_date"`
	Status      *TodoStatus   `json:"status"`
	Priority    *TodoPriority `json:"priority"`
}

// UpdateTodoRequest is the payload for a partial update; nil fields are left
// untouched.
type UpdateTodoRequest struct {
	Title       *string       `json:"title" validate:"omitempty,min=1,max=255"`
	Description *string       `json:"description"`
	DueDate     *time.Time    `json:"due_date"`
	Status      *TodoStatus   `json:"status"`
	Priority    *TodoPriority `json:"priority"`
}

// UpdateTodoStatusRequest moves a task to a new status.
type UpdateTodoStatusRequest struct {
	Status TodoStatus `json:"status" validate:"required"`
}

// TodoFilter captures listing criteria for a user's tasks.
type TodoFilter struct {
	Status    *TodoStatus
	Priority  *TodoPriority
	DueBefore *time.Time
	DueAfter  *time.Time
	SortBy    string
	SortOrder string
	Page      int
	PerPage   int
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
