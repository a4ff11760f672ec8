package channels

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound also covers channels owned by another tenant and
	// private channels the user may not view; none of these confirm
	// existence.
	ErrNotFound = errors.New("channel not found")

	ErrMessageNotFound = errors.New("message not found")
)

type Channel struct {
	ID        string
	TenantID  string
	Name      string
	IsPrivate bool
	CreatedBy string
	CreatedAt time.Time
}

type Message struct {
	ID        string
	ChannelID string
	AuthorID  string
	Body      string
	CreatedAt time.Time
}

// Repository methods are tenant-scoped through the ambient scope, like
// projects. Messages are one hop from the tenant: every message query
// joins through its channel.
type Repository interface {
	Create(ctx context.Context, channel Channel) (*Channel, error)
	// GetByID returns ErrNotFound for private channels unless the scope's
	// user is a member.
	GetByID(ctx context.Context, id string) (*Channel, error)
	List(ctx context.Context) ([]Channel, error)
	AddMember(ctx context.Context, channelID, userID string) error
	MemberIDs(ctx context.Context, channelID string) ([]string, error)

	CreateMessage(ctx context.Context, message Message) (*Message, error)
	ListMessages(ctx context.Context, channelID string, limit int) ([]Message, error)
}
