package receipts

import (
	"context"
	"fmt"
	"log"

	"github.com/reyanshafi/mini-social-network/pkg/interfaces"
	"github.com/reyanshafi/mini-social-network/pkg/types"
)

// Presence is the registry surface the synchronizer needs.
type Presence interface {
	Lookup(userID string) (interfaces.Connection, bool)
}

// Store is the slice of the persistence collaborator the synchronizer
// consumes.
type Store interface {
	FindOtherParticipant(ctx context.Context, conversationID, excludingUserID string) (string, error)
	MarkConversationRead(ctx context.Context, conversationID, exceptSenderID string) error
}

// Synchronizer drives the one-way unread -> read transition and tells the
// original sender when their messages were seen. The transition is a bulk
// update on the store; the store's atomicity is relied upon, so a failed
// update leaves no partial state and emits no notification.
type Synchronizer struct {
	presence Presence
	store    Store
}

// NewSynchronizer creates a read-receipt synchronizer.
func NewSynchronizer(presence Presence, store Store) *Synchronizer {
	return &Synchronizer{
		presence: presence,
		store:    store,
	}
}

// MarkRead is the conversation-open catch-up: every stored message of the
// conversation not sent by readerID becomes read. Nobody is notified.
// Idempotent; an already-read set is a no-op.
func (s *Synchronizer) MarkRead(ctx context.Context, conversationID, readerID string) error {
	if err := s.store.MarkConversationRead(ctx, conversationID, readerID); err != nil {
		return fmt.Errorf("failed to mark conversation read: %w", err)
	}
	return nil
}

// MarkSeen is the live path: the reader has the conversation open and just
// received traffic. It performs the same bulk transition and then notifies
// the other participant, if online, that their messages were seen.
//
// The notification only goes out after persistence succeeds; a sender is
// never told "seen" when the store does not say so. Repeated calls are
// harmless and may legitimately re-emit the notification.
func (s *Synchronizer) MarkSeen(ctx context.Context, conversationID, readerID string) error {
	sender, err := s.store.FindOtherParticipant(ctx, conversationID, readerID)
	if err != nil {
		return err
	}

	if err := s.store.MarkConversationRead(ctx, conversationID, readerID); err != nil {
		return fmt.Errorf("failed to mark conversation read: %w", err)
	}

	if conn, online := s.presence.Lookup(sender); online {
		err := conn.WriteJSON(&types.ConversationEvent{
			Event:          types.EventMessagesSeen,
			ConversationID: conversationID,
		})
		if err != nil {
			log.Printf("Failed to notify %s of seen messages in %s: %v", sender, conversationID, err)
		}
	}

	return nil
}
