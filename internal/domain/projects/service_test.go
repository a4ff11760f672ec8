package projects

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayworks/server/internal/domain/ids"
	"github.com/relayworks/server/internal/realtime"
	"github.com/relayworks/server/internal/tenant"
)

type fakeRepo struct {
	projects map[string]Project
	failWith error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{projects: make(map[string]Project)}
}

func (r *fakeRepo) Create(ctx context.Context, project Project) (*Project, error) {
	if r.failWith != nil {
		return nil, r.failWith
	}
	project.TenantID = tenant.MustFromContext(ctx).TenantID
	r.projects[project.ID] = project
	return &project, nil
}

func (r *fakeRepo) GetByID(ctx context.Context, id string) (*Project, error) {
	project, ok := r.projects[id]
	if !ok || project.TenantID != tenant.MustFromContext(ctx).TenantID {
		return nil, ErrNotFound
	}
	return &project, nil
}

func (r *fakeRepo) List(ctx context.Context) ([]Project, error) {
	tenantID := tenant.MustFromContext(ctx).TenantID
	var out []Project
	for _, project := range r.projects {
		if project.TenantID == tenantID {
			out = append(out, project)
		}
	}
	return out, nil
}

func (r *fakeRepo) Update(ctx context.Context, id string, params UpdateParams) (*Project, error) {
	project, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if params.Name != nil {
		project.Name = *params.Name
	}
	if params.Description != nil {
		project.Description = *params.Description
	}
	r.projects[id] = *project
	return project, nil
}

func (r *fakeRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	delete(r.projects, id)
	return nil
}

type recordedEvent struct {
	Room  realtime.Room
	Event string
}

type recordingPublisher struct {
	events []recordedEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, room realtime.Room, event string, payload any) error {
	p.events = append(p.events, recordedEvent{Room: room, Event: event})
	return nil
}

func scopedContext(tenantID string) context.Context {
	return tenant.WithScope(context.Background(), tenant.Scope{
		UserID:   "u1",
		TenantID: tenantID,
		Role:     tenant.RoleMember,
	})
}

func TestCreateProject(t *testing.T) {
	repo := newFakeRepo()
	publisher := &recordingPublisher{}
	service := NewService(repo, publisher, zerolog.Nop())
	ctx := scopedContext("t1")

	project, err := service.Create(ctx, CreateParams{Name: "  Launch Plan  ", Description: "Q3"})
	require.NoError(t, err)
	assert.Equal(t, "Launch Plan", project.Name)
	assert.Equal(t, "u1", project.CreatedBy)
	assert.NoError(t, ids.ValidateULID(project.ID))

	require.Len(t, publisher.events, 1)
	assert.Equal(t, realtime.TenantRoom("t1"), publisher.events[0].Room)
	assert.Equal(t, "project:created", publisher.events[0].Event)
}

func TestCreateProjectRequiresName(t *testing.T) {
	service := NewService(newFakeRepo(), nil, zerolog.Nop())
	_, err := service.Create(scopedContext("t1"), CreateParams{Name: "   "})
	require.Error(t, err)
}

func TestGetRejectsMalformedID(t *testing.T) {
	service := NewService(newFakeRepo(), nil, zerolog.Nop())

	// A malformed id is indistinguishable from a missing project; it must
	// not reach the repository at all.
	_, err := service.Get(scopedContext("t1"), "not-a-ulid")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetCrossTenantIsNotFound(t *testing.T) {
	repo := newFakeRepo()
	service := NewService(repo, nil, zerolog.Nop())

	project, err := service.Create(scopedContext("t1"), CreateParams{Name: "theirs"})
	require.NoError(t, err)

	_, err = service.Get(scopedContext("t2"), project.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateProject(t *testing.T) {
	repo := newFakeRepo()
	publisher := &recordingPublisher{}
	service := NewService(repo, publisher, zerolog.Nop())
	ctx := scopedContext("t1")

	project, err := service.Create(ctx, CreateParams{Name: "before"})
	require.NoError(t, err)

	name := "after"
	updated, err := service.Update(ctx, project.ID, UpdateParams{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "after", updated.Name)
	assert.Equal(t, "project:updated", publisher.events[len(publisher.events)-1].Event)
}

func TestDeleteProject(t *testing.T) {
	repo := newFakeRepo()
	publisher := &recordingPublisher{}
	service := NewService(repo, publisher, zerolog.Nop())
	ctx := scopedContext("t1")

	project, err := service.Create(ctx, CreateParams{Name: "doomed"})
	require.NoError(t, err)

	require.NoError(t, service.Delete(ctx, project.ID))
	_, err = service.Get(ctx, project.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "project:deleted", publisher.events[len(publisher.events)-1].Event)
}

func TestListScopedToTenant(t *testing.T) {
	repo := newFakeRepo()
	service := NewService(repo, nil, zerolog.Nop())

	_, err := service.Create(scopedContext("t1"), CreateParams{Name: "mine"})
	require.NoError(t, err)
	_, err = service.Create(scopedContext("t2"), CreateParams{Name: "theirs"})
	require.NoError(t, err)

	mine, err := service.List(scopedContext("t1"))
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "mine", mine[0].Name)
}
