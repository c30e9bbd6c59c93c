package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/reyanshafi/mini-social-network/internal/receipts"
	"github.com/reyanshafi/mini-social-network/internal/relay"
	"github.com/reyanshafi/mini-social-network/internal/typing"
	"github.com/reyanshafi/mini-social-network/pkg/interfaces"
	"github.com/reyanshafi/mini-social-network/pkg/types"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// All origins accepted for development; deployments sit behind a
		// reverse proxy that enforces origin policy.
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

// Config carries the heartbeat timings for connection lifecycle management.
type Config struct {
	PingInterval time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns heartbeat timings suitable for browser clients.
func DefaultConfig() Config {
	return Config{
		PingInterval: 30 * time.Second,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Handler owns the bidirectional channel per client: it accepts connections,
// dispatches inbound events to the relay, typing broadcaster, and read-receipt
// synchronizer, and removes registry entries on disconnect.
//
// Handlers are wired once per connection at accept time; every inbound frame
// goes through a single dispatch switch, so one client's events are processed
// strictly in receipt order.
type Handler struct {
	registry *Registry
	relay    *relay.Relay
	typing   *typing.Broadcaster
	receipts *receipts.Synchronizer
	cfg      Config
}

// NewHandler creates a connection lifecycle handler.
func NewHandler(registry *Registry, messageRelay *relay.Relay, typingBroadcaster *typing.Broadcaster, receiptSync *receipts.Synchronizer, cfg Config) *Handler {
	return &Handler{
		registry: registry,
		relay:    messageRelay,
		typing:   typingBroadcaster,
		receipts: receiptSync,
		cfg:      cfg,
	}
}

// HandleWebSocket upgrades the request and starts the connection's event
// loop. Identity arrives later, over the connection itself, as an addUser
// event; until then the connection is accepted but not registered.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	wsConn := NewConnection(conn)
	go h.handleConnection(wsConn)
}

// handleConnection runs the read pump and heartbeat for one client.
func (h *Handler) handleConnection(conn *Connection) {
	defer func() {
		// Unregister is handle-keyed and idempotent: if a newer connection
		// for the same identity already took the registry slot, it stays.
		h.registry.Unregister(conn)
		_ = conn.Close()
	}()

	if err := conn.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout)); err != nil {
		log.Printf("Failed to set read deadline: %v", err)
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	})

	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := conn.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(h.cfg.WriteTimeout)); err != nil {
					return
				}
			case <-conn.Context().Done():
				return
			}
		}
	}()

	for {
		messageType, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error for %s: %v", conn.UserID(), err)
			}
			break
		}

		if messageType == websocket.TextMessage {
			h.dispatch(conn, data)
		}
	}
}

// dispatch decodes one inbound frame and routes it by event type. Store-bound
// work runs inline so the connection's events keep their receipt order.
func (h *Handler) dispatch(conn *Connection, data []byte) {
	var ev types.ClientEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		h.sendError(conn, "malformed event payload")
		return
	}

	if ev.Event == types.EventAddUser {
		h.handleAddUser(conn, &ev)
		return
	}

	if !conn.Announced() {
		h.sendError(conn, ErrNotAnnounced.Error())
		return
	}

	switch ev.Event {
	case types.EventSendMessage:
		h.handleSendMessage(conn, &ev)
	case types.EventTyping:
		h.typing.Typing(ev.ConversationID, conn.UserID(), ev.ReceiverID)
	case types.EventStopTyping:
		h.typing.StoppedTyping(ev.ConversationID, conn.UserID(), ev.ReceiverID)
	case types.EventMarkAsSeen:
		h.handleMarkAsSeen(conn, &ev)
	default:
		h.sendError(conn, types.ErrInvalidEvent.Error())
	}
}

// handleAddUser registers the connection under its announced identity.
// Registration always succeeds; a previous connection for the same identity
// is superseded (and closed) by the registry.
func (h *Handler) handleAddUser(conn *Connection, ev *types.ClientEvent) {
	if !types.IsValidUserID(ev.UserID) {
		h.sendError(conn, types.ErrInvalidUserID.Error())
		return
	}

	// The identity of a connection is stable for its lifetime.
	if conn.Announced() && conn.UserID() != ev.UserID {
		h.sendError(conn, ErrIdentityMismatch.Error())
		return
	}

	conn.SetUserID(ev.UserID)
	h.registry.Register(ev.UserID, conn)
	log.Printf("Connection registered: user=%s", ev.UserID)
}

func (h *Handler) handleSendMessage(conn *Connection, ev *types.ClientEvent) {
	senderID := conn.UserID()
	if ev.SenderID != "" && ev.SenderID != senderID {
		h.sendError(conn, ErrIdentityMismatch.Error())
		return
	}

	// Background context: a disconnect mid-send must not abort the durable
	// write the client believes has happened.
	message, err := h.relay.Send(context.Background(), senderID, ev.ReceiverID, ev.ConversationID, ev.Text)
	if err != nil {
		if isClientFault(err) {
			h.sendError(conn, err.Error())
		} else {
			// Persistence failure: nothing was stored, nothing is
			// announced. Silence beats reporting an uncertain state.
			log.Printf("Send failed for %s in %s: %v", senderID, ev.ConversationID, err)
		}
		return
	}

	// Advisory echo; the client already holds an optimistic local copy.
	if err := conn.WriteJSON(&types.MessageEvent{Event: types.EventMessageSent, Message: message}); err != nil {
		log.Printf("Failed to echo message %s to sender %s: %v", message.ID, senderID, err)
	}
}

func (h *Handler) handleMarkAsSeen(conn *Connection, ev *types.ClientEvent) {
	readerID := conn.UserID()
	if ev.ReaderID != "" && ev.ReaderID != readerID {
		h.sendError(conn, ErrIdentityMismatch.Error())
		return
	}

	if err := h.receipts.MarkSeen(context.Background(), ev.ConversationID, readerID); err != nil {
		if isClientFault(err) {
			h.sendError(conn, err.Error())
		} else {
			log.Printf("Mark seen failed for %s in %s: %v", readerID, ev.ConversationID, err)
		}
	}
}

func (h *Handler) sendError(conn *Connection, message string) {
	err := conn.WriteJSON(&types.ErrorEvent{Event: types.EventError, Message: message})
	if err != nil {
		log.Printf("Failed to send error event: %v", err)
	}
}

// isClientFault separates errors the client caused, and should hear about,
// from internal failures that stay server-side.
func isClientFault(err error) bool {
	return errors.Is(err, types.ErrEmptyMessage) ||
		errors.Is(err, types.ErrMessageTooLong) ||
		errors.Is(err, types.ErrInvalidUserID) ||
		errors.Is(err, interfaces.ErrConversationNotFound) ||
		errors.Is(err, interfaces.ErrNotParticipant)
}
