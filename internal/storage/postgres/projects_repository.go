package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/relayworks/server/internal/domain/projects"
)

var _ projects.Repository = (*ProjectRepository)(nil)

// ProjectRepository persists the top-level tenant-isolated entity. The
// tenant predicate is a direct column: every statement carries
// tenant_id = $scope, and creates inject the scope's tenant into the row.
type ProjectRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func (r *ProjectRepository) queryer() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

const projectColumns = `id, tenant_id, name, description, created_by, created_at, updated_at`

func scanProject(row pgx.Row) (*projects.Project, error) {
	var project projects.Project
	err := row.Scan(&project.ID, &project.TenantID, &project.Name, &project.Description,
		&project.CreatedBy, &project.CreatedAt, &project.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, projects.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan project: %w", err)
	}
	project.ID = strings.TrimSpace(project.ID)
	return &project, nil
}

func (r *ProjectRepository) Create(ctx context.Context, project projects.Project) (*projects.Project, error) {
	scope, err := requireScope(ctx)
	if err != nil {
		return nil, err
	}

	const query = `
INSERT INTO projects (id, tenant_id, name, description, created_by)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + projectColumns

	return scanProject(r.queryer().QueryRow(ctx, query,
		project.ID, scope.TenantID, project.Name, project.Description, project.CreatedBy))
}

func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*projects.Project, error) {
	scope, err := requireScope(ctx)
	if err != nil {
		return nil, err
	}

	const query = `SELECT ` + projectColumns + ` FROM projects WHERE id = $1 AND tenant_id = $2`
	return scanProject(r.queryer().QueryRow(ctx, query, id, scope.TenantID))
}

func (r *ProjectRepository) List(ctx context.Context) ([]projects.Project, error) {
	scope, err := requireScope(ctx)
	if err != nil {
		return nil, err
	}

	const query = `SELECT ` + projectColumns + ` FROM projects WHERE tenant_id = $1 ORDER BY created_at DESC`
	rows, err := r.queryer().Query(ctx, query, scope.TenantID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var items []projects.Project
	for rows.Next() {
		var project projects.Project
		if err := rows.Scan(&project.ID, &project.TenantID, &project.Name, &project.Description,
			&project.CreatedBy, &project.CreatedAt, &project.UpdatedAt); err != nil {
			return nil, fmt.Errorf("list projects: %w", err)
		}
		project.ID = strings.TrimSpace(project.ID)
		items = append(items, project)
	}
	return items, rows.Err()
}

func (r *ProjectRepository) Update(ctx context.Context, id string, params projects.UpdateParams) (*projects.Project, error) {
	scope, err := requireScope(ctx)
	if err != nil {
		return nil, err
	}

	const query = `
UPDATE projects
SET name = COALESCE($3, name),
    description = COALESCE($4, description),
    updated_at = now()
WHERE id = $1 AND tenant_id = $2
RETURNING ` + projectColumns

	return scanProject(r.queryer().QueryRow(ctx, query, id, scope.TenantID, params.Name, params.Description))
}

func (r *ProjectRepository) Delete(ctx context.Context, id string) error {
	scope, err := requireScope(ctx)
	if err != nil {
		return err
	}

	const query = `DELETE FROM projects WHERE id = $1 AND tenant_id = $2`
	tag, err := r.queryer().Exec(ctx, query, id, scope.TenantID)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return projects.ErrNotFound
	}
	return nil
}
