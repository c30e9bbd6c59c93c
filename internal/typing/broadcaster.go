package typing

import (
	"log"

	"github.com/reyanshafi/mini-social-network/pkg/interfaces"
	"github.com/reyanshafi/mini-social-network/pkg/types"
)

// Presence is the registry surface the broadcaster needs.
type Presence interface {
	Lookup(userID string) (interfaces.Connection, bool)
}

// Broadcaster forwards ephemeral typing signals between the two participants
// of a conversation. Signals are fire-and-forget: nothing is persisted, no
// acknowledgement is sent, and an offline peer simply drops the signal.
// Debouncing is the client's job (a ~2s keystroke pause emits stopTyping).
type Broadcaster struct {
	presence Presence
}

// NewBroadcaster creates a typing signal broadcaster.
func NewBroadcaster(presence Presence) *Broadcaster {
	return &Broadcaster{presence: presence}
}

// Typing relays a "peer is composing" signal to toUser if online.
func (b *Broadcaster) Typing(conversationID, fromUser, toUser string) {
	b.relay(types.EventUserTyping, conversationID, fromUser, toUser)
}

// StoppedTyping relays a "peer stopped composing" signal to toUser if online.
func (b *Broadcaster) StoppedTyping(conversationID, fromUser, toUser string) {
	b.relay(types.EventUserStoppedTyping, conversationID, fromUser, toUser)
}

func (b *Broadcaster) relay(event, conversationID, fromUser, toUser string) {
	peer, online := b.presence.Lookup(toUser)
	if !online {
		return // offline peer has nothing to show
	}

	err := peer.WriteJSON(&types.ConversationEvent{
		Event:          event,
		ConversationID: conversationID,
	})
	if err != nil {
		log.Printf("Failed to relay %s from %s to %s: %v", event, fromUser, toUser, err)
	}
}
