package interfaces

import (
	"context"

	"github.com/reyanshafi/mini-social-network/pkg/types"
)

// MessageStore is the persistence collaborator behind the realtime core.
// The core only reads and conditionally updates; conversations and users are
// created through the REST surface, never by the relay.
type MessageStore interface {
	// CreateMessage durably stores a new unread message and returns it with
	// server-assigned ID, timestamp, and resolved sender display attributes.
	// Message activity bumps the conversation's updated_at.
	CreateMessage(ctx context.Context, conversationID, senderID, text string) (*types.Message, error)

	// ListMessages returns every message of a conversation, oldest first,
	// with sender display attributes resolved.
	ListMessages(ctx context.Context, conversationID string) ([]*types.Message, error)

	// MarkConversationRead sets read=true on all messages of the conversation
	// not sent by exceptSenderID. Idempotent; already-read sets are a no-op.
	MarkConversationRead(ctx context.Context, conversationID, exceptSenderID string) error

	// FindOtherParticipant returns the conversation participant that is not
	// excludingUserID. Returns ErrConversationNotFound for an unknown
	// conversation and ErrNotParticipant when excludingUserID does not
	// belong to it.
	FindOtherParticipant(ctx context.Context, conversationID, excludingUserID string) (string, error)

	// ResolveDisplayAttributes returns the username and avatar for a user.
	ResolveDisplayAttributes(ctx context.Context, userID string) (*types.DisplayAttributes, error)

	// UnreadCount returns the number of unread messages addressed to userID
	// across all of their conversations.
	UnreadCount(ctx context.Context, userID string) (int, error)

	// GetConversation returns a conversation by ID.
	GetConversation(ctx context.Context, conversationID string) (*types.Conversation, error)

	// CreateOrGetConversation returns the existing two-party conversation
	// between userA and userB, creating it if absent.
	CreateOrGetConversation(ctx context.Context, userA, userB string) (*types.Conversation, error)

	// ListConversations returns the conversations userID participates in,
	// most recent activity first.
	ListConversations(ctx context.Context, userID string) ([]*types.Conversation, error)

	// CreateUser registers the display attributes backing a user identity.
	CreateUser(ctx context.Context, user *types.DisplayAttributes) error

	// HealthCheck verifies store connectivity.
	HealthCheck(ctx context.Context) error

	// Close releases store resources after pending writes complete.
	Close() error
}
