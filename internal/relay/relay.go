package relay

import (
	"context"
	"fmt"
	"log"

	"github.com/reyanshafi/mini-social-network/pkg/interfaces"
	"github.com/reyanshafi/mini-social-network/pkg/types"
)

// Presence is the registry surface the relay needs.
type Presence interface {
	Lookup(userID string) (interfaces.Connection, bool)
}

// Store is the slice of the persistence collaborator the relay consumes.
type Store interface {
	FindOtherParticipant(ctx context.Context, conversationID, excludingUserID string) (string, error)
	CreateMessage(ctx context.Context, conversationID, senderID, text string) (*types.Message, error)
}

// Relay accepts outbound messages, persists them, and forwards them to the
// recipient's live connection when one exists. Persist-then-deliver: the
// durable copy always exists before any delivery attempt, so a recipient that
// misses the live event recovers it through history retrieval.
type Relay struct {
	presence Presence
	store    Store
}

// NewRelay creates a message relay.
func NewRelay(presence Presence, store Store) *Relay {
	return &Relay{
		presence: presence,
		store:    store,
	}
}

// Send validates, persists, and relays a single message, returning the
// persisted copy. receiverID from the client is cross-checked against the
// conversation's stored membership before anything is written.
//
// An offline recipient is a silent success: no retry queue exists, delivery
// then relies entirely on a later history fetch.
func (r *Relay) Send(ctx context.Context, senderID, receiverID, conversationID, text string) (*types.Message, error) {
	if err := types.ValidateText(text); err != nil {
		return nil, err
	}

	// Membership is the store's truth, not the client's payload.
	otherParticipant, err := r.store.FindOtherParticipant(ctx, conversationID, senderID)
	if err != nil {
		return nil, err
	}
	if receiverID != "" && receiverID != otherParticipant {
		return nil, interfaces.ErrNotParticipant
	}

	message, err := r.store.CreateMessage(ctx, conversationID, senderID, text)
	if err != nil {
		return nil, fmt.Errorf("failed to persist message: %w", err)
	}

	// Delivery happens on the sender's event-processing goroutine, so two
	// messages from one sender in one conversation reach the recipient in
	// persist order.
	if recipient, online := r.presence.Lookup(otherParticipant); online {
		err := recipient.WriteJSON(&types.MessageEvent{
			Event:   types.EventReceiveMessage,
			Message: message,
		})
		if err != nil {
			// The message is durable; a failed live delivery only costs
			// the push, not the data.
			log.Printf("Failed to deliver message %s to %s: %v", message.ID, otherParticipant, err)
		}
	}

	return message, nil
}
