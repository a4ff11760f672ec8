package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/rs/zerolog"

	"github.com/relayworks/server/internal/domain/ids"
	"github.com/relayworks/server/internal/domain/notifications"
	"github.com/relayworks/server/internal/realtime"
)

// NotificationRetention is how long notification rows are kept before the
// periodic sweep removes them.
const NotificationRetention = 90 * 24 * time.Hour

// NotificationFanoutArgs carries only server-derived identifiers, written
// by the channels service at message creation. The worker trusts them
// because nothing tenant-supplied reaches this path.
type NotificationFanoutArgs struct {
	TenantID  string `json:"tenant_id"`
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
	AuthorID  string `json:"author_id"`
}

func (NotificationFanoutArgs) Kind() string { return JobKindNotificationFanout }

// NotificationFanoutWorker resolves the recipients of a new message,
// writes notification rows outside any tenant scope, and pushes
// notification:new to each recipient's user room.
type NotificationFanoutWorker struct {
	river.WorkerDefaults[NotificationFanoutArgs]
	Pool      *pgxpool.Pool
	Repo      notifications.Repository
	Publisher realtime.Publisher
	Logger    zerolog.Logger
}

func (NotificationFanoutWorker) Kind() string { return JobKindNotificationFanout }

func (w NotificationFanoutWorker) Work(ctx context.Context, job *river.Job[NotificationFanoutArgs]) error {
	if w.Pool == nil || w.Repo == nil {
		return fmt.Errorf("fanout worker not configured")
	}
	args := job.Args
	if args.TenantID == "" || args.ChannelID == "" || args.MessageID == "" {
		return fmt.Errorf("fanout job missing identifiers")
	}

	recipients, err := w.recipients(ctx, args)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		return nil
	}

	payload, err := json.Marshal(map[string]string{
		"channel_id": args.ChannelID,
		"message_id": args.MessageID,
		"author_id":  args.AuthorID,
	})
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}

	batch := make([]notifications.Notification, 0, len(recipients))
	for _, userID := range recipients {
		id, err := ids.NewULID()
		if err != nil {
			return fmt.Errorf("notification id: %w", err)
		}
		batch = append(batch, notifications.Notification{
			ID:       id,
			TenantID: args.TenantID,
			UserID:   userID,
			Kind:     "message",
			Payload:  payload,
		})
	}

	if err := w.Repo.CreateBatch(ctx, batch); err != nil {
		return err
	}

	if w.Publisher != nil {
		for _, n := range batch {
			push := map[string]any{
				"id":         n.ID,
				"kind":       n.Kind,
				"channel_id": args.ChannelID,
				"message_id": args.MessageID,
			}
			if err := w.Publisher.Publish(ctx, realtime.UserRoom(n.UserID), realtime.EventNotificationNew, push); err != nil {
				w.Logger.Warn().Err(err).Str("user_id", n.UserID).Msg("notification push failed")
			}
		}
	}
	return nil
}

// recipients resolves who should be notified: every tenant member with
// visibility into the channel, minus the author. Private channels narrow
// to channel members.
func (w NotificationFanoutWorker) recipients(ctx context.Context, args NotificationFanoutArgs) ([]string, error) {
	const query = `
SELECT tm.user_id
FROM tenant_memberships tm
JOIN channels c ON c.tenant_id = tm.tenant_id
WHERE c.id = $1 AND c.tenant_id = $2 AND tm.user_id <> $3
  AND (NOT c.is_private OR EXISTS (
      SELECT 1 FROM channel_members cm
      WHERE cm.channel_id = c.id AND cm.user_id = tm.user_id
  ))`

	rows, err := w.Pool.Query(ctx, query, args.ChannelID, args.TenantID, args.AuthorID)
	if err != nil {
		return nil, fmt.Errorf("resolve recipients: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("resolve recipients: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

type NotificationCleanupArgs struct{}

func (NotificationCleanupArgs) Kind() string { return JobKindNotificationCleanup }

// NotificationCleanupWorker prunes old notification rows across all
// tenants.
type NotificationCleanupWorker struct {
	river.WorkerDefaults[NotificationCleanupArgs]
	Repo   notifications.Repository
	Logger zerolog.Logger
}

func (NotificationCleanupWorker) Kind() string { return JobKindNotificationCleanup }

func (w NotificationCleanupWorker) Work(ctx context.Context, job *river.Job[NotificationCleanupArgs]) error {
	if w.Repo == nil {
		return fmt.Errorf("cleanup worker not configured")
	}

	deleted, err := w.Repo.DeleteOlderThan(ctx, time.Now().Add(-NotificationRetention))
	if err != nil {
		return err
	}
	if deleted > 0 {
		w.Logger.Info().Int64("deleted", deleted).Msg("notification retention sweep")
	}
	return nil
}

func NewWorkers(pool *pgxpool.Pool, repo notifications.Repository, publisher realtime.Publisher, logger zerolog.Logger) *river.Workers {
	workers := river.NewWorkers()
	river.AddWorker[NotificationFanoutArgs](workers, NotificationFanoutWorker{
		Pool:      pool,
		Repo:      repo,
		Publisher: publisher,
		Logger:    logger.With().Str("component", "jobs").Logger(),
	})
	river.AddWorker[NotificationCleanupArgs](workers, NotificationCleanupWorker{
		Repo:   repo,
		Logger: logger.With().Str("component", "jobs").Logger(),
	})
	return workers
}
