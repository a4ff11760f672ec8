package projects

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
		logger: logger.With().Str("component", "projects").Logger(),
	}
}

func (s *Service) Create(ctx context.Context, params CreateParams) (*Project, error) {
	scope := tenant.MustFromContext(ctx)

	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, fmt.Errorf("create project: name is required")
	}

	id, err := ids.NewULID()
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}

	project, err := s.repo.Create(ctx, Project{
		ID:          id,
		Name:        name,
		Description: strings.TrimSpace(params.Description),
		CreatedBy:   scope.UserID,
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, scope, "project:created", project)
	return project, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Project, error) {
	if err := ids.ValidateULID(id); err != nil {
		return nil, ErrNotFound
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Project, error) {
	return s.repo.List(ctx)
}

func (s *Service) Update(ctx context.Context, id string, params UpdateParams) (*Project, error) {
	if err := ids.ValidateULID(id); err != nil {
		return nil, ErrNotFound
	}
	project, err := s.repo.Update(ctx, id, params)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, tenant.MustFromContext(ctx), "project:updated", project)
	return project, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := ids.ValidateULID(id); err != nil {
		return ErrNotFound
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, tenant.MustFromContext(ctx), "project:deleted", map[string]string{"id": id})
	return nil
}

// publish pushes to the tenant room. Broadcast failure never fails the
// mutation; clients reconcile on their next fetch.
func (s *Service) publish(ctx context.Context, scope tenant.Scope, event string, payload any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, realtime.TenantRoom(scope.TenantID), event, payload); err != nil {
		s.logger.Warn().Err(err).Str("event", event).Msg("broadcast failed")
	}
}
