package domain

import (
	"strings"
	"time"
)

// Task statuses.
const (
	TaskPending    = "pending"
	TaskInProgress = "in_progress"
	TaskCompleted  = "completed"
)

// MaxTaskPriority is the highest priority a task may carry. Zero is the
// lowest.
const MaxTaskPriority = 5

// Task is a work item owned by a single user.
type Task struct {
	ID          string            `json:"id"`
	UserID      string            `json:"user_id"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Status      string            `json:"status"`
	Priority    int               `json:"priority"`
	DueDate     *time.Time        `json:"due_date,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func (t *Task) IsCompleted() bool {
	return t != nil && t.Status == TaskCompleted
}

// OwnedBy reports whether userID owns the task. An empty user owns nothing.
func (t *Task) OwnedBy(userID string) bool {
	return t != nil && userID != "" && t.UserID == userID
}

// Complete moves the task to completed and reports whether it changed.
func (t *Task) Complete() bool {
	if t.IsCompleted() {
		return false
	}
	t.Status = TaskCompleted
	return true
}

// Normalize trims the title, defaults an empty status to pending and then
// validates the task.
func (t *Task) Normalize() error {
	t.Title = strings.TrimSpace(t.Title)
	if t.Status == "" {
		t.Status = TaskPending
	}
	return t.Validate()
}

// Validate checks the client-editable fields.
func (t *Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return NewError(KindInvalid, "title is required")
	}
	switch t.Status {
	case TaskPending, TaskInProgress, TaskCompleted:
	default:
		return NewError(KindInvalid, "unknown status "+t.Status)
	}
	if t.Priority < 0 || t.Priority > MaxTaskPriority {
		return NewError(KindInvalid, "priority must be between 0 and 5")
	}
	return nil
}
