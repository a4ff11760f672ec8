package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayworks/server/internal/domain/channels"
	"github.com/relayworks/server/internal/domain/ids"
	"github.com/relayworks/server/internal/domain/notifications"
	"github.com/relayworks/server/internal/domain/projects"
	"github.com/relayworks/server/internal/domain/tasks"
	"github.com/relayworks/server/internal/domain/tenants"
	"github.com/relayworks/server/internal/domain/users"
	"github.com/relayworks/server/internal/storage"
	"github.com/relayworks/server/internal/tenant"
)

func TestScopedMethodsRequireScope(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)
	repo, err := NewRepository(pool)
	require.NoError(t, err)

	_, err = repo.Projects().List(ctx)
	assert.ErrorIs(t, err, storage.ErrNoScope)

	_, err = repo.Channels().GetByID(ctx, mustULID(t))
	assert.ErrorIs(t, err, storage.ErrNoScope)

	_, err = repo.Tasks().GetByID(ctx, mustULID(t))
	assert.ErrorIs(t, err, storage.ErrNoScope)

	_, err = repo.Notifications().ListForUser(ctx, 10)
	assert.ErrorIs(t, err, storage.ErrNoScope)
}

func TestProjectTenantIsolation(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)
	repo, err := NewRepository(pool)
	require.NoError(t, err)

	aliceCtx, aliceScope := seedAccount(t, ctx, pool, "alice@example.com", tenant.RoleOwner)
	bobCtx, _ := seedAccount(t, ctx, pool, "bob@example.com", tenant.RoleOwner)

	created, err := repo.Projects().Create(aliceCtx, projects.Project{
		ID:        mustULID(t),
		Name:      "alpha",
		CreatedBy: aliceScope.UserID,
	})
	require.NoError(t, err)
	assert.Equal(t, aliceScope.TenantID, created.TenantID)

	// Owner tenant sees it
	got, err := repo.Projects().GetByID(aliceCtx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "alpha", got.Name)

	// Another tenant sees not found, never a different error
	_, err = repo.Projects().GetByID(bobCtx, created.ID)
	assert.ErrorIs(t, err, projects.ErrNotFound)

	_, err = repo.Projects().Update(bobCtx, created.ID, projects.UpdateParams{})
	assert.ErrorIs(t, err, projects.ErrNotFound)

	err = repo.Projects().Delete(bobCtx, created.ID)
	assert.ErrorIs(t, err, projects.ErrNotFound)

	list, err := repo.Projects().List(bobCtx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestProjectUpdatePartial(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)
	repo, err := NewRepository(pool)
	require.NoError(t, err)

	aliceCtx, aliceScope := seedAccount(t, ctx, pool, "alice@example.com", tenant.RoleOwner)

	created, err := repo.Projects().Create(aliceCtx, projects.Project{
		ID:          mustULID(t),
		Name:        "alpha",
		Description: "original",
		CreatedBy:   aliceScope.UserID,
	})
	require.NoError(t, err)

	name := "beta"
	updated, err := repo.Projects().Update(aliceCtx, created.ID, projects.UpdateParams{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "beta", updated.Name)
	assert.Equal(t, "original", updated.Description)
}

func TestTaskScopingThroughProject(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)
	repo, err := NewRepository(pool)
	require.NoError(t, err)

	aliceCtx, aliceScope := seedAccount(t, ctx, pool, "alice@example.com", tenant.RoleOwner)
	bobCtx, bobScope := seedAccount(t, ctx, pool, "bob@example.com", tenant.RoleOwner)

	project, err := repo.Projects().Create(aliceCtx, projects.Project{
		ID:        mustULID(t),
		Name:      "alpha",
		CreatedBy: aliceScope.UserID,
	})
	require.NoError(t, err)

	task, err := repo.Tasks().Create(aliceCtx, tasks.Task{
		ID:        mustULID(t),
		ProjectID: project.ID,
		Title:     "ship",
		Status:    tasks.StatusOpen,
		CreatedBy: aliceScope.UserID,
	})
	require.NoError(t, err)

	// Creating a task under another tenant's project fails closed
	_, err = repo.Tasks().Create(bobCtx, tasks.Task{
		ID:        mustULID(t),
		ProjectID: project.ID,
		Title:     "intrude",
		Status:    tasks.StatusOpen,
		CreatedBy: bobScope.UserID,
	})
	assert.ErrorIs(t, err, tasks.ErrNotFound)

	// Reads and updates scope through the project join
	_, err = repo.Tasks().GetByID(bobCtx, task.ID)
	assert.ErrorIs(t, err, tasks.ErrNotFound)

	_, err = repo.Tasks().UpdateStatus(bobCtx, task.ID, tasks.StatusDone)
	assert.ErrorIs(t, err, tasks.ErrNotFound)

	updated, err := repo.Tasks().UpdateStatus(aliceCtx, task.ID, tasks.StatusDone)
	require.NoError(t, err)
	assert.Equal(t, tasks.StatusDone, updated.Status)
}

func TestTaskAssignmentsTwoHops(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)
	repo, err := NewRepository(pool)
	require.NoError(t, err)

	aliceCtx, aliceScope := seedAccount(t, ctx, pool, "alice@example.com", tenant.RoleOwner)
	bobCtx, _ := seedAccount(t, ctx, pool, "bob@example.com", tenant.RoleOwner)

	project, err := repo.Projects().Create(aliceCtx, projects.Project{
		ID:        mustULID(t),
		Name:      "alpha",
		CreatedBy: aliceScope.UserID,
	})
	require.NoError(t, err)

	task, err := repo.Tasks().Create(aliceCtx, tasks.Task{
		ID:        mustULID(t),
		ProjectID: project.ID,
		Title:     "ship",
		Status:    tasks.StatusOpen,
		CreatedBy: aliceScope.UserID,
	})
	require.NoError(t, err)

	require.NoError(t, repo.Tasks().Assign(aliceCtx, task.ID, aliceScope.UserID))
	// Assigning twice is a no-op
	require.NoError(t, repo.Tasks().Assign(aliceCtx, task.ID, aliceScope.UserID))

	assignees, err := repo.Tasks().Assignees(aliceCtx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{aliceScope.UserID}, assignees)

	// Cross-tenant assignment attempts surface not found
	err = repo.Tasks().Assign(bobCtx, task.ID, aliceScope.UserID)
	assert.ErrorIs(t, err, tasks.ErrNotFound)

	require.NoError(t, repo.Tasks().Unassign(aliceCtx, task.ID, aliceScope.UserID))
	assignees, err = repo.Tasks().Assignees(aliceCtx, task.ID)
	require.NoError(t, err)
	assert.Empty(t, assignees)
}

func TestPrivateChannelVisibility(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)
	repo, err := NewRepository(pool)
	require.NoError(t, err)

	aliceCtx, aliceScope := seedAccount(t, ctx, pool, "alice@example.com", tenant.RoleOwner)

	// Carol shares alice's tenant but is not a channel member
	carolID := seedUserInTenant(t, ctx, pool, "carol@example.com", aliceScope.TenantID)
	carolCtx := tenant.WithScope(ctx, tenant.Scope{
		UserID:   carolID,
		TenantID: aliceScope.TenantID,
		Role:     tenant.RoleMember,
	})

	private, err := repo.Channels().Create(aliceCtx, channels.Channel{
		ID:        mustULID(t),
		Name:      "secret",
		IsPrivate: true,
		CreatedBy: aliceScope.UserID,
	})
	require.NoError(t, err)
	require.NoError(t, repo.Channels().AddMember(aliceCtx, private.ID, aliceScope.UserID))

	_, err = repo.Channels().GetByID(aliceCtx, private.ID)
	require.NoError(t, err)

	_, err = repo.Channels().GetByID(carolCtx, private.ID)
	assert.ErrorIs(t, err, channels.ErrNotFound)

	list, err := repo.Channels().List(carolCtx)
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, repo.Channels().AddMember(aliceCtx, private.ID, carolID))
	_, err = repo.Channels().GetByID(carolCtx, private.ID)
	require.NoError(t, err)
}

func TestMessagesScopeThroughChannel(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)
	repo, err := NewRepository(pool)
	require.NoError(t, err)

	aliceCtx, aliceScope := seedAccount(t, ctx, pool, "alice@example.com", tenant.RoleOwner)
	bobCtx, _ := seedAccount(t, ctx, pool, "bob@example.com", tenant.RoleOwner)

	channel, err := repo.Channels().Create(aliceCtx, channels.Channel{
		ID:        mustULID(t),
		Name:      "general",
		CreatedBy: aliceScope.UserID,
	})
	require.NoError(t, err)

	message, err := repo.Channels().CreateMessage(aliceCtx, channels.Message{
		ID:        mustULID(t),
		ChannelID: channel.ID,
		AuthorID:  aliceScope.UserID,
		Body:      "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", message.Body)

	msgs, err := repo.Channels().ListMessages(aliceCtx, channel.ID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	// Another tenant cannot write into or read from the channel
	_, err = repo.Channels().CreateMessage(bobCtx, channels.Message{
		ID:        mustULID(t),
		ChannelID: channel.ID,
		AuthorID:  aliceScope.UserID,
		Body:      "intrusion",
	})
	assert.ErrorIs(t, err, channels.ErrNotFound)

	_, err = repo.Channels().ListMessages(bobCtx, channel.ID, 10)
	assert.ErrorIs(t, err, channels.ErrNotFound)
}

func TestNotificationsLifecycle(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)
	repo, err := NewRepository(pool)
	require.NoError(t, err)

	aliceCtx, aliceScope := seedAccount(t, ctx, pool, "alice@example.com", tenant.RoleOwner)
	bobCtx, bobScope := seedAccount(t, ctx, pool, "bob@example.com", tenant.RoleOwner)

	payload, err := json.Marshal(map[string]string{"message_id": mustULID(t)})
	require.NoError(t, err)

	// CreateBatch runs unscoped, the way the fan-out worker calls it
	batch := []notifications.Notification{
		{
			ID:       mustULID(t),
			TenantID: aliceScope.TenantID,
			UserID:   aliceScope.UserID,
			Kind:     "message",
			Payload:  payload,
		},
		{
			ID:       mustULID(t),
			TenantID: bobScope.TenantID,
			UserID:   bobScope.UserID,
			Kind:     "message",
			Payload:  payload,
		},
	}
	require.NoError(t, repo.Notifications().CreateBatch(ctx, batch))

	aliceList, err := repo.Notifications().ListForUser(aliceCtx, 10)
	require.NoError(t, err)
	require.Len(t, aliceList, 1)
	assert.Nil(t, aliceList[0].ReadAt)
	assert.Equal(t, "message", aliceList[0].Kind)

	// Reading someone else's notification id is not found
	err = repo.Notifications().MarkRead(bobCtx, aliceList[0].ID)
	assert.ErrorIs(t, err, notifications.ErrNotFound)

	require.NoError(t, repo.Notifications().MarkRead(aliceCtx, aliceList[0].ID))
	// MarkRead twice is a no-op
	require.NoError(t, repo.Notifications().MarkRead(aliceCtx, aliceList[0].ID))

	aliceList, err = repo.Notifications().ListForUser(aliceCtx, 10)
	require.NoError(t, err)
	require.Len(t, aliceList, 1)
	assert.NotNil(t, aliceList[0].ReadAt)
}

func TestNotificationsRetentionSweep(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)
	repo, err := NewRepository(pool)
	require.NoError(t, err)

	aliceCtx, aliceScope := seedAccount(t, ctx, pool, "alice@example.com", tenant.RoleOwner)

	stale := mustULID(t)
	fresh := mustULID(t)
	require.NoError(t, repo.Notifications().CreateBatch(ctx, []notifications.Notification{
		{ID: stale, TenantID: aliceScope.TenantID, UserID: aliceScope.UserID, Kind: "message", Payload: []byte(`{}`)},
		{ID: fresh, TenantID: aliceScope.TenantID, UserID: aliceScope.UserID, Kind: "message", Payload: []byte(`{}`)},
	}))

	_, err = pool.Exec(ctx, `UPDATE notifications SET created_at = now() - interval '120 days' WHERE id = $1`, stale)
	require.NoError(t, err)

	deleted, err := repo.Notifications().DeleteOlderThan(ctx, time.Now().Add(-90*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	remaining, err := repo.Notifications().ListForUser(aliceCtx, 10)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, fresh, remaining[0].ID)
}

func TestSignupFlowPersistence(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)
	repo, err := NewRepository(pool)
	require.NoError(t, err)

	user, workspace, err := repo.Users().CreateWithTenant(ctx, users.SignupRecord{
		User: users.User{
			ID:           ids.NewUUID(),
			Email:        "ada@example.com",
			Name:         "Ada",
			PasswordHash: "hash",
		},
		TenantName:        "Lovelace Labs",
		VerificationToken: "tok-123",
	})
	require.NoError(t, err)
	assert.False(t, user.EmailVerified)
	assert.Equal(t, "Lovelace Labs", workspace.Name)

	membership, err := repo.Tenants().GetPrimaryMembership(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, workspace.ID, membership.TenantID)
	assert.Equal(t, tenant.RoleOwner, membership.Role)

	// Duplicate email fails the whole signup
	_, _, err = repo.Users().CreateWithTenant(ctx, users.SignupRecord{
		User: users.User{
			ID:           ids.NewUUID(),
			Email:        "ada@example.com",
			PasswordHash: "hash",
		},
		TenantName:        "Other",
		VerificationToken: "tok-456",
	})
	assert.ErrorIs(t, err, users.ErrEmailTaken)

	verified, err := repo.Users().VerifyEmail(ctx, "tok-123")
	require.NoError(t, err)
	assert.True(t, verified.EmailVerified)

	// Token is single use
	_, err = repo.Users().VerifyEmail(ctx, "tok-123")
	assert.ErrorIs(t, err, users.ErrInvalidVerifyToken)
}

func TestMembershipManagement(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)
	repo, err := NewRepository(pool)
	require.NoError(t, err)

	_, aliceScope := seedAccount(t, ctx, pool, "alice@example.com", tenant.RoleOwner)
	carolID := seedUserInTenant(t, ctx, pool, "carol@example.com", "")

	err = repo.Tenants().AddMember(ctx, tenants.Membership{
		UserID:   carolID,
		TenantID: aliceScope.TenantID,
		Role:     tenant.RoleMember,
	})
	require.NoError(t, err)

	err = repo.Tenants().AddMember(ctx, tenants.Membership{
		UserID:   carolID,
		TenantID: aliceScope.TenantID,
		Role:     tenant.RoleMember,
	})
	assert.ErrorIs(t, err, tenants.ErrMemberExists)

	membership, err := repo.Tenants().GetMembership(ctx, carolID, aliceScope.TenantID)
	require.NoError(t, err)
	assert.Equal(t, tenant.RoleMember, membership.Role)

	require.NoError(t, repo.Tenants().RemoveMember(ctx, carolID, aliceScope.TenantID))
	_, err = repo.Tenants().GetMembership(ctx, carolID, aliceScope.TenantID)
	assert.ErrorIs(t, err, tenants.ErrNotMember)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)
	repo, err := NewRepository(pool)
	require.NoError(t, err)

	aliceCtx, aliceScope := seedAccount(t, ctx, pool, "alice@example.com", tenant.RoleOwner)
	projectID := mustULID(t)

	sentinel := assert.AnError
	err = repo.WithTx(aliceCtx, func(txCtx context.Context, txRepo storage.Repository) error {
		_, err := txRepo.Projects().Create(txCtx, projects.Project{
			ID:        projectID,
			Name:      "doomed",
			CreatedBy: aliceScope.UserID,
		})
		if err != nil {
			return err
		}
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)

	_, err = repo.Projects().GetByID(aliceCtx, projectID)
	assert.ErrorIs(t, err, projects.ErrNotFound)
}
