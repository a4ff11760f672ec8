package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/relayworks/server/internal/domain/tasks"
)

var _ tasks.Repository = (*TaskRepository)(nil)

// TaskRepository persists tasks (one hop from the tenant through their
// project) and assignments (two hops: assignment → task → project →
// tenant). Both paths are compiled into the SQL.
type TaskRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func (r *TaskRepository) queryer() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

const taskColumns = `t.id, t.project_id, t.title, t.status, t.created_by, t.created_at, t.updated_at`

func scanTask(row pgx.Row) (*tasks.Task, error) {
	var task tasks.Task
	err := row.Scan(&task.ID, &task.ProjectID, &task.Title, &task.Status,
		&task.CreatedBy, &task.CreatedAt, &task.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, tasks.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}
	task.ID = strings.TrimSpace(task.ID)
	task.ProjectID = strings.TrimSpace(task.ProjectID)
	return &task, nil
}

func (r *TaskRepository) Create(ctx context.Context, task tasks.Task) (*tasks.Task, error) {
	scope, err := requireScope(ctx)
	if err != nil {
		return nil, err
	}

	// The insert resolves the parent project under the tenant predicate;
	// a project id from another tenant inserts nothing.
	const query = `
INSERT INTO tasks AS t (id, project_id, title, status, created_by)
SELECT $1, p.id, $3, $4, $5 FROM projects p WHERE p.id = $2 AND p.tenant_id = $6
RETURNING ` + taskColumns

	return scanTask(r.queryer().QueryRow(ctx, query,
		task.ID, task.ProjectID, task.Title, task.Status, task.CreatedBy, scope.TenantID))
}

func (r *TaskRepository) GetByID(ctx context.Context, id string) (*tasks.Task, error) {
	scope, err := requireScope(ctx)
	if err != nil {
		return nil, err
	}

	const query = `
SELECT ` + taskColumns + `
FROM tasks t
JOIN projects p ON p.id = t.project_id
WHERE t.id = $1 AND p.tenant_id = $2`

	return scanTask(r.queryer().QueryRow(ctx, query, id, scope.TenantID))
}

func (r *TaskRepository) ListByProject(ctx context.Context, projectID string) ([]tasks.Task, error) {
	scope, err := requireScope(ctx)
	if err != nil {
		return nil, err
	}

	const query = `
SELECT ` + taskColumns + `
FROM tasks t
JOIN projects p ON p.id = t.project_id
WHERE t.project_id = $1 AND p.tenant_id = $2
ORDER BY t.created_at ASC`

	rows, err := r.queryer().Query(ctx, query, projectID, scope.TenantID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var items []tasks.Task
	for rows.Next() {
		var task tasks.Task
		if err := rows.Scan(&task.ID, &task.ProjectID, &task.Title, &task.Status,
			&task.CreatedBy, &task.CreatedAt, &task.UpdatedAt); err != nil {
			return nil, fmt.Errorf("list tasks: %w", err)
		}
		task.ID = strings.TrimSpace(task.ID)
		task.ProjectID = strings.TrimSpace(task.ProjectID)
		items = append(items, task)
	}
	return items, rows.Err()
}

func (r *TaskRepository) UpdateStatus(ctx context.Context, id, status string) (*tasks.Task, error) {
	scope, err := requireScope(ctx)
	if err != nil {
		return nil, err
	}

	const query = `
UPDATE tasks AS t
SET status = $3, updated_at = now()
FROM projects p
WHERE t.id = $1 AND p.id = t.project_id AND p.tenant_id = $2
RETURNING ` + taskColumns

	return scanTask(r.queryer().QueryRow(ctx, query, id, scope.TenantID, status))
}

// Assign records a task assignment, two hops from the tenant. The insert
// threads through task and project so a foreign task id assigns nothing.
func (r *TaskRepository) Assign(ctx context.Context, taskID, userID string) error {
	scope, err := requireScope(ctx)
	if err != nil {
		return err
	}

	const query = `
INSERT INTO task_assignments (task_id, user_id)
SELECT t.id, $2
FROM tasks t
JOIN projects p ON p.id = t.project_id
WHERE t.id = $1 AND p.tenant_id = $3
ON CONFLICT DO NOTHING`

	tag, err := r.queryer().Exec(ctx, query, taskID, userID, scope.TenantID)
	if err != nil {
		return fmt.Errorf("assign task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, taskID); err != nil {
			return err
		}
	}
	return nil
}

func (r *TaskRepository) Unassign(ctx context.Context, taskID, userID string) error {
	scope, err := requireScope(ctx)
	if err != nil {
		return err
	}

	const query = `
DELETE FROM task_assignments a
USING tasks t, projects p
WHERE a.task_id = $1 AND a.user_id = $2
  AND t.id = a.task_id AND p.id = t.project_id AND p.tenant_id = $3`

	if _, err := r.queryer().Exec(ctx, query, taskID, userID, scope.TenantID); err != nil {
		return fmt.Errorf("unassign task: %w", err)
	}
	return nil
}

func (r *TaskRepository) Assignees(ctx context.Context, taskID string) ([]string, error) {
	scope, err := requireScope(ctx)
	if err != nil {
		return nil, err
	}

	const query = `
SELECT a.user_id
FROM task_assignments a
JOIN tasks t ON t.id = a.task_id
JOIN projects p ON p.id = t.project_id
WHERE a.task_id = $1 AND p.tenant_id = $2`

	rows, err := r.queryer().Query(ctx, query, taskID, scope.TenantID)
	if err != nil {
		return nil, fmt.Errorf("task assignees: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("task assignees: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
