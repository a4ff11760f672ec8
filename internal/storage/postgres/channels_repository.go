package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/relayworks/server/internal/domain/channels"
)

var _ channels.Repository = (*ChannelRepository)(nil)

// ChannelRepository persists channels (direct tenant column) and messages
// (one hop: scoped through their channel). Private channels additionally
// require membership of the scope's user; a channel the user may not view
// reads as absent.
type ChannelRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func (r *ChannelRepository) queryer() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

const channelColumns = `c.id, c.tenant_id, c.name, c.is_private, c.created_by, c.created_at`

func scanChannel(row pgx.Row) (*channels.Channel, error) {
	var channel channels.Channel
	err := row.Scan(&channel.ID, &channel.TenantID, &channel.Name, &channel.IsPrivate,
		&channel.CreatedBy, &channel.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, channels.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan channel: %w", err)
	}
	channel.ID = strings.TrimSpace(channel.ID)
	return &channel, nil
}

func (r *ChannelRepository) Create(ctx context.Context, channel channels.Channel) (*channels.Channel, error) {
	scope, err := requireScope(ctx)
	if err != nil {
		return nil, err
	}

	const query = `
INSERT INTO channels AS c (id, tenant_id, name, is_private, created_by)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + channelColumns

	return scanChannel(r.queryer().QueryRow(ctx, query,
		channel.ID, scope.TenantID, channel.Name, channel.IsPrivate, channel.CreatedBy))
}

func (r *ChannelRepository) GetByID(ctx context.Context, id string) (*channels.Channel, error) {
	scope, err := requireScope(ctx)
	if err != nil {
		return nil, err
	}

	const query = `
SELECT ` + channelColumns + `
FROM channels c
WHERE c.id = $1 AND c.tenant_id = $2
  AND (NOT c.is_private OR EXISTS (
      SELECT 1 FROM channel_members m WHERE m.channel_id = c.id AND m.user_id = $3
  ))`

	return scanChannel(r.queryer().QueryRow(ctx, query, id, scope.TenantID, scope.UserID))
}

func (r *ChannelRepository) List(ctx context.Context) ([]channels.Channel, error) {
	scope, err := requireScope(ctx)
	if err != nil {
		return nil, err
	}

	const query = `
SELECT ` + channelColumns + `
FROM channels c
WHERE c.tenant_id = $1
  AND (NOT c.is_private OR EXISTS (
      SELECT 1 FROM channel_members m WHERE m.channel_id = c.id AND m.user_id = $2
  ))
ORDER BY c.created_at ASC`

	rows, err := r.queryer().Query(ctx, query, scope.TenantID, scope.UserID)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	var items []channels.Channel
	for rows.Next() {
		var channel channels.Channel
		if err := rows.Scan(&channel.ID, &channel.TenantID, &channel.Name, &channel.IsPrivate,
			&channel.CreatedBy, &channel.CreatedAt); err != nil {
			return nil, fmt.Errorf("list channels: %w", err)
		}
		channel.ID = strings.TrimSpace(channel.ID)
		items = append(items, channel)
	}
	return items, rows.Err()
}

func (r *ChannelRepository) AddMember(ctx context.Context, channelID, userID string) error {
	scope, err := requireScope(ctx)
	if err != nil {
		return err
	}

	// Membership insert is guarded by the tenant predicate on the channel.
	const query = `
INSERT INTO channel_members (channel_id, user_id)
SELECT c.id, $2 FROM channels c WHERE c.id = $1 AND c.tenant_id = $3
ON CONFLICT DO NOTHING`

	tag, err := r.queryer().Exec(ctx, query, channelID, userID, scope.TenantID)
	if err != nil {
		return fmt.Errorf("add channel member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either the channel is foreign to this tenant or the member
		// already exists; the former must read as not found.
		if _, err := r.GetByID(ctx, channelID); err != nil {
			return err
		}
	}
	return nil
}

func (r *ChannelRepository) MemberIDs(ctx context.Context, channelID string) ([]string, error) {
	scope, err := requireScope(ctx)
	if err != nil {
		return nil, err
	}

	const query = `
SELECT m.user_id
FROM channel_members m
JOIN channels c ON c.id = m.channel_id
WHERE m.channel_id = $1 AND c.tenant_id = $2`

	rows, err := r.queryer().Query(ctx, query, channelID, scope.TenantID)
	if err != nil {
		return nil, fmt.Errorf("channel members: %w", err)
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("channel members: %w", err)
		}
		members = append(members, id)
	}
	return members, rows.Err()
}

const messageColumns = `msg.id, msg.channel_id, msg.author_id, msg.body, msg.created_at`

func (r *ChannelRepository) CreateMessage(ctx context.Context, message channels.Message) (*channels.Message, error) {
	scope, err := requireScope(ctx)
	if err != nil {
		return nil, err
	}

	// One-hop scoping: the insert only succeeds when the parent channel
	// belongs to the ambient tenant; the message inherits the tenant
	// through its channel_id, no separate column injected.
	const query = `
INSERT INTO messages AS msg (id, channel_id, author_id, body)
SELECT $1, c.id, $3, $4 FROM channels c WHERE c.id = $2 AND c.tenant_id = $5
RETURNING ` + messageColumns

	var stored channels.Message
	err = r.queryer().QueryRow(ctx, query,
		message.ID, message.ChannelID, message.AuthorID, message.Body, scope.TenantID).
		Scan(&stored.ID, &stored.ChannelID, &stored.AuthorID, &stored.Body, &stored.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, channels.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	stored.ID = strings.TrimSpace(stored.ID)
	stored.ChannelID = strings.TrimSpace(stored.ChannelID)
	return &stored, nil
}

func (r *ChannelRepository) ListMessages(ctx context.Context, channelID string, limit int) ([]channels.Message, error) {
	scope, err := requireScope(ctx)
	if err != nil {
		return nil, err
	}

	const query = `
SELECT ` + messageColumns + `
FROM messages msg
JOIN channels c ON c.id = msg.channel_id
WHERE msg.channel_id = $1 AND c.tenant_id = $2
ORDER BY msg.created_at DESC
LIMIT $3`

	rows, err := r.queryer().Query(ctx, query, channelID, scope.TenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var items []channels.Message
	for rows.Next() {
		var message channels.Message
		if err := rows.Scan(&message.ID, &message.ChannelID, &message.AuthorID, &message.Body, &message.CreatedAt); err != nil {
			return nil, fmt.Errorf("list messages: %w", err)
		}
		message.ID = strings.TrimSpace(message.ID)
		message.ChannelID = strings.TrimSpace(message.ChannelID)
		items = append(items, message)
	}
	return items, rows.Err()
}
