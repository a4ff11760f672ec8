package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/relayworks/server/internal/domain/ids"
	"github.com/relayworks/server/internal/realtime"
	"github.com/relayworks/server/internal/tenant"
)

type Service struct {
	repo   Repository
	events realtime.Publisher
	logger zerolog.Logger
}

func NewService(repo Repository, events realtime.Publisher, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		events: events,
		logger: logger.With().Str("component", "tasks").Logger(),
	}
}

type CreateParams struct {
	ProjectID string
	Title     string
}

func (s *Service) Create(ctx context.Context, params CreateParams) (*Task, error) {
	scope := tenant.MustFromContext(ctx)

	if err := ids.ValidateULID(params.ProjectID); err != nil {
		return nil, ErrNotFound
	}
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return nil, fmt.Errorf("create task: title is required")
	}

	id, err := ids.NewULID()
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	task, err := s.repo.Create(ctx, Task{
		ID:        id,
		ProjectID: params.ProjectID,
		Title:     title,
		Status:    StatusOpen,
		CreatedBy: scope.UserID,
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, scope, task.ProjectID, "task:created", task)
	return task, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Task, error) {
	if err := ids.ValidateULID(id); err != nil {
		return nil, ErrNotFound
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByProject(ctx context.Context, projectID string) ([]Task, error) {
	if err := ids.ValidateULID(projectID); err != nil {
		return nil, ErrNotFound
	}
	return s.repo.ListByProject(ctx, projectID)
}

func (s *Service) UpdateStatus(ctx context.Context, id, status string) (*Task, error) {
	if err := ids.ValidateULID(id); err != nil {
		return nil, ErrNotFound
	}
	switch status {
	case StatusOpen, StatusInProgress, StatusDone:
	default:
		return nil, fmt.Errorf("update task: unknown status %q", status)
	}

	task, err := s.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, tenant.MustFromContext(ctx), task.ProjectID, "task:updated", task)
	return task, nil
}

func (s *Service) Assign(ctx context.Context, taskID, userID string) error {
	if err := ids.ValidateULID(taskID); err != nil {
		return ErrNotFound
	}
	if err := s.repo.Assign(ctx, taskID, userID); err != nil {
		return err
	}
	task, err := s.repo.GetByID(ctx, taskID)
	if err != nil {
		return err
	}
	s.publish(ctx, tenant.MustFromContext(ctx), task.ProjectID, "task:updated", task)
	return nil
}

func (s *Service) Unassign(ctx context.Context, taskID, userID string) error {
	if err := ids.ValidateULID(taskID); err != nil {
		return ErrNotFound
	}
	return s.repo.Unassign(ctx, taskID, userID)
}

func (s *Service) publish(ctx context.Context, scope tenant.Scope, projectID, event string, payload any) {
	if s.events == nil {
		return
	}
	room := realtime.ProjectRoom(scope.TenantID, projectID)
	if err := s.events.Publish(ctx, room, event, payload); err != nil {
		s.logger.Warn().Err(err).Str("event", event).Msg("broadcast failed")
	}
}
