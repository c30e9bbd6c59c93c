package types

import (
	"time"
)

// Client event names accepted over a WebSocket connection. These follow the
// protocol the web client already speaks, so they are wire-literal.
const (
	EventAddUser     = "addUser"
	EventSendMessage = "sendMessage"
	EventTyping      = "typing"
	EventStopTyping  = "stopTyping"
	EventMarkAsSeen  = "markAsSeen"
)

// Server event names emitted to a WebSocket connection.
const (
	EventReceiveMessage    = "receiveMessage"
	EventMessageSent       = "messageSent"
	EventUserTyping        = "userTyping"
	EventUserStoppedTyping = "userStoppedTyping"
	EventMessagesSeen      = "messagesSeen"
	EventError             = "error"
)

// DisplayAttributes are the sender fields resolved onto a message before
// delivery, so the recipient can render it without an extra profile fetch.
type DisplayAttributes struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// Message is a single direct message inside a conversation.
// Read transitions false -> true exactly once and never reverts.
type Message struct {
	ID             string             `json:"id"`
	ConversationID string             `json:"conversationId"`
	SenderID       string             `json:"senderId"`
	Sender         *DisplayAttributes `json:"sender,omitempty"`
	Text           string             `json:"text"`
	Read           bool               `json:"read"`
	CreatedAt      time.Time          `json:"createdAt"`
}

// Conversation is a two-participant message thread. Participants are distinct
// and fixed at creation; UpdatedAt is bumped by message activity.
type Conversation struct {
	ID           string    `json:"id"`
	Participants []string  `json:"participants"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// OtherParticipant returns the participant that is not userID. The second
// return value is false when userID is not part of the conversation.
func (c *Conversation) OtherParticipant(userID string) (string, bool) {
	if len(c.Participants) != 2 {
		return "", false
	}
	switch userID {
	case c.Participants[0]:
		return c.Participants[1], true
	case c.Participants[1]:
		return c.Participants[0], true
	default:
		return "", false
	}
}

// ClientEvent is the inbound wire envelope. A single flat struct covers every
// client event; the Event field selects which payload fields are meaningful.
type ClientEvent struct {
	Event          string `json:"event"`
	UserID         string `json:"userId,omitempty"`
	SenderID       string `json:"senderId,omitempty"`
	ReceiverID     string `json:"receiverId,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
	ReaderID       string `json:"readerId,omitempty"`
	Text           string `json:"text,omitempty"`
}

// MessageEvent carries a fully populated message to a connection, either as
// a live delivery (receiveMessage) or as the advisory echo to the sender
// (messageSent).
type MessageEvent struct {
	Event   string   `json:"event"`
	Message *Message `json:"message"`
}

// ConversationEvent carries only a conversation ID. Used for the typing
// signals and the seen notification, which are ephemeral and never persisted.
type ConversationEvent struct {
	Event          string `json:"event"`
	ConversationID string `json:"conversationId"`
}

// ErrorEvent reports a rejected operation back to the connection that
// issued it. Other connections are never affected.
type ErrorEvent struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}
