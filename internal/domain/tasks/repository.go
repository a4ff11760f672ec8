package tasks

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("task not found")

// Task statuses.
const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusDone       = "done"
)

// Task belongs to a project; its tenant is one hop away through the
// project's tenant_id. Assignments hang off tasks, two hops from the
// tenant.
type Task struct {
	ID        string
	ProjectID string
	Title     string
	Status    string
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Assignment struct {
	TaskID    string
	UserID    string
	CreatedAt time.Time
}

type Repository interface {
	Create(ctx context.Context, task Task) (*Task, error)
	GetByID(ctx context.Context, id string) (*Task, error)
	ListByProject(ctx context.Context, projectID string) ([]Task, error)
	UpdateStatus(ctx context.Context, id, status string) (*Task, error)

	Assign(ctx context.Context, taskID, userID string) error
	Unassign(ctx context.Context, taskID, userID string) error
	Assignees(ctx context.Context, taskID string) ([]string, error)
}
