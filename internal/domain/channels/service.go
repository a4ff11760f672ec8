package channels

import (
	"context"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/relayworks/server/internal/domain/ids"
	"github.com/relayworks/server/internal/realtime"
	"github.com/relayworks/server/internal/tenant"
)

// NotificationEnqueuer hands message fan-out to the background job queue;
// notification rows are written there, outside any tenant scope.
type NotificationEnqueuer interface {
	EnqueueMessageNotification(ctx context.Context, tenantID, channelID, messageID, authorID string) error
}

type Service struct {
	repo      Repository
	events    realtime.Publisher
	notifier  NotificationEnqueuer
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

func NewService(repo Repository, events realtime.Publisher, notifier NotificationEnqueuer, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		events:   events,
		notifier: notifier,
		// UGC policy: message bodies may carry simple formatting but no
		// scripts or event handlers.
		sanitizer: bluemonday.UGCPolicy(),
		logger:    logger.With().Str("component", "channels").Logger(),
	}
}

type CreateParams struct {
	Name      string
	IsPrivate bool
}

func (s *Service) Create(ctx context.Context, params CreateParams) (*Channel, error) {
	scope := tenant.MustFromContext(ctx)

	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, fmt.Errorf("create channel: name is required")
	}

	id, err := ids.NewULID()
	if err != nil {
		return nil, fmt.Errorf("create channel: %w", err)
	}

	channel, err := s.repo.Create(ctx, Channel{
		ID:        id,
		Name:      name,
		IsPrivate: params.IsPrivate,
		CreatedBy: scope.UserID,
	})
	if err != nil {
		return nil, err
	}

	if channel.IsPrivate {
		if err := s.repo.AddMember(ctx, channel.ID, scope.UserID); err != nil {
			return nil, err
		}
	}

	s.publish(ctx, realtime.TenantRoom(scope.TenantID), "channel:created", channel)
	return channel, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Channel, error) {
	if err := ids.ValidateULID(id); err != nil {
		return nil, ErrNotFound
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Channel, error) {
	return s.repo.List(ctx)
}

// PostMessage sanitizes the body, stores the message, pushes message:new
// to the channel room, and queues notification fan-out for members.
func (s *Service) PostMessage(ctx context.Context, channelID, body string) (*Message, error) {
	scope := tenant.MustFromContext(ctx)

	if err := ids.ValidateULID(channelID); err != nil {
		return nil, ErrNotFound
	}
	// View permission and tenant ownership are both re-checked here, not
	// trusted from the caller.
	channel, err := s.repo.GetByID(ctx, channelID)
	if err != nil {
		return nil, err
	}

	body = strings.TrimSpace(s.sanitizer.Sanitize(body))
	if body == "" {
		return nil, fmt.Errorf("post message: body is required")
	}

	id, err := ids.NewULID()
	if err != nil {
		return nil, fmt.Errorf("post message: %w", err)
	}

	message, err := s.repo.CreateMessage(ctx, Message{
		ID:        id,
		ChannelID: channel.ID,
		AuthorID:  scope.UserID,
		Body:      body,
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, realtime.ChannelRoom(scope.TenantID, channel.ID), realtime.EventMessageNew, message)

	if s.notifier != nil {
		if err := s.notifier.EnqueueMessageNotification(ctx, scope.TenantID, channel.ID, message.ID, scope.UserID); err != nil {
			s.logger.Warn().Err(err).Str("message_id", message.ID).Msg("notification enqueue failed")
		}
	}
	return message, nil
}

func (s *Service) ListMessages(ctx context.Context, channelID string, limit int) ([]Message, error) {
	if err := ids.ValidateULID(channelID); err != nil {
		return nil, ErrNotFound
	}
	if _, err := s.repo.GetByID(ctx, channelID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.ListMessages(ctx, channelID, limit)
}

func (s *Service) publish(ctx context.Context, room realtime.Room, event string, payload any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, room, event, payload); err != nil {
		s.logger.Warn().Err(err).Str("event", event).Msg("broadcast failed")
	}
}
