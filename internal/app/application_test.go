package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reyanshafi/mini-social-network/internal/config"
	"github.com/reyanshafi/mini-social-network/pkg/types"
)

type serverFrame struct {
	Event          string          `json:"event"`
	Message        json.RawMessage `json:"message"`
	ConversationID string          `json:"conversationId"`
}

type testEnv struct {
	t      *testing.T
	app    *Application
	server *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "chat.db")

	application, err := NewApplication(cfg)
	require.NoError(t, err)

	server := httptest.NewServer(application.Handler())
	t.Cleanup(func() {
		server.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = application.Stop(ctx)
	})

	return &testEnv{t: t, app: application, server: server}
}

func (e *testEnv) post(path string, body string) *http.Response {
	e.t.Helper()

	resp, err := http.Post(e.server.URL+path, "application/json", bytes.NewReader([]byte(body)))
	require.NoError(e.t, err)
	e.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (e *testEnv) getJSON(path string, v interface{}) {
	e.t.Helper()

	resp, err := http.Get(e.server.URL + path)
	require.NoError(e.t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(e.t, http.StatusOK, resp.StatusCode)
	require.NoError(e.t, json.NewDecoder(resp.Body).Decode(v))
}

func (e *testEnv) createUser(userID, username string) {
	e.t.Helper()

	resp := e.post("/api/users", fmt.Sprintf(`{"userId": %q, "username": %q}`, userID, username))
	require.Equal(e.t, http.StatusCreated, resp.StatusCode)
}

func (e *testEnv) createConversation(userID, otherID string) *types.Conversation {
	e.t.Helper()

	resp := e.post(fmt.Sprintf("/api/conversations/%s?user_id=%s", otherID, userID), "")
	require.Equal(e.t, http.StatusOK, resp.StatusCode)

	var conv types.Conversation
	require.NoError(e.t, json.NewDecoder(resp.Body).Decode(&conv))
	return &conv
}

// connectAs dials the WebSocket endpoint, announces the identity, and waits
// for the health endpoint to report the new presence count.
func (e *testEnv) connectAs(userID string, wantOnline int) *websocket.Conn {
	e.t.Helper()

	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(e.t, err)
	e.t.Cleanup(func() { _ = conn.Close() })

	require.NoError(e.t, conn.WriteJSON(types.ClientEvent{Event: types.EventAddUser, UserID: userID}))

	require.Eventually(e.t, func() bool {
		var health struct {
			OnlineUsers int `json:"online_users"`
		}
		e.getJSON("/health", &health)
		return health.OnlineUsers >= wantOnline
	}, 2*time.Second, 10*time.Millisecond)

	return conn
}

func (e *testEnv) readFrame(conn *websocket.Conn) serverFrame {
	e.t.Helper()

	require.NoError(e.t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame serverFrame
	require.NoError(e.t, conn.ReadJSON(&frame))
	return frame
}

// The full store-and-forward round trip: a message sent while the recipient
// is offline is persisted, surfaces through the REST API when they return,
// and the seen notification flows back to the sender.
func TestOfflineDeliveryRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	env.createUser("alice", "Alice")
	env.createUser("bob", "Bob")
	conv := env.createConversation("alice", "bob")

	alice := env.connectAs("alice", 1)

	// Bob is offline; the send still persists.
	require.NoError(t, alice.WriteJSON(types.ClientEvent{
		Event:          types.EventSendMessage,
		ReceiverID:     "bob",
		ConversationID: conv.ID,
		Text:           "catch up when you can",
	}))
	frame := env.readFrame(alice)
	require.Equal(t, types.EventMessageSent, frame.Event)

	var count struct {
		Count int `json:"count"`
	}
	env.getJSON("/api/messages/unread-count?user_id=bob", &count)
	assert.Equal(t, 1, count.Count)

	// Bob comes online and fetches the backlog.
	bob := env.connectAs("bob", 2)

	var messages []*types.Message
	env.getJSON(fmt.Sprintf("/api/messages/%s?user_id=bob", conv.ID), &messages)
	require.Len(t, messages, 1)
	assert.Equal(t, "catch up when you can", messages[0].Text)
	assert.False(t, messages[0].Read)

	// Bob marks the conversation seen; alice is notified live.
	require.NoError(t, bob.WriteJSON(types.ClientEvent{
		Event:          types.EventMarkAsSeen,
		ConversationID: conv.ID,
	}))

	frame = env.readFrame(alice)
	assert.Equal(t, types.EventMessagesSeen, frame.Event)
	assert.Equal(t, conv.ID, frame.ConversationID)

	env.getJSON(fmt.Sprintf("/api/messages/%s?user_id=bob", conv.ID), &messages)
	require.Len(t, messages, 1)
	assert.True(t, messages[0].Read)

	env.getJSON("/api/messages/unread-count?user_id=bob", &count)
	assert.Zero(t, count.Count)
}

func TestLiveConversation(t *testing.T) {
	env := newTestEnv(t)

	env.createUser("alice", "Alice")
	env.createUser("bob", "Bob")
	conv := env.createConversation("alice", "bob")

	alice := env.connectAs("alice", 1)
	bob := env.connectAs("bob", 2)

	// Typing indicator flows one way.
	require.NoError(t, alice.WriteJSON(types.ClientEvent{
		Event:          types.EventTyping,
		ReceiverID:     "bob",
		ConversationID: conv.ID,
	}))
	frame := env.readFrame(bob)
	assert.Equal(t, types.EventUserTyping, frame.Event)

	// The message lands on bob with sender attributes resolved.
	require.NoError(t, alice.WriteJSON(types.ClientEvent{
		Event:          types.EventSendMessage,
		ReceiverID:     "bob",
		ConversationID: conv.ID,
		Text:           "hi bob",
	}))
	frame = env.readFrame(bob)
	require.Equal(t, types.EventReceiveMessage, frame.Event)

	var msg types.Message
	require.NoError(t, json.Unmarshal(frame.Message, &msg))
	assert.Equal(t, "hi bob", msg.Text)
	require.NotNil(t, msg.Sender)
	assert.Equal(t, "Alice", msg.Sender.Username)

	// The reply travels the other way.
	require.NoError(t, bob.WriteJSON(types.ClientEvent{
		Event:          types.EventSendMessage,
		ReceiverID:     "alice",
		ConversationID: conv.ID,
		Text:           "hi alice",
	}))

	// Alice first sees her own echo, then bob's reply.
	frame = env.readFrame(alice)
	require.Equal(t, types.EventMessageSent, frame.Event)
	frame = env.readFrame(alice)
	require.Equal(t, types.EventReceiveMessage, frame.Event)
	require.NoError(t, json.Unmarshal(frame.Message, &msg))
	assert.Equal(t, "hi alice", msg.Text)
}

func TestNewApplicationRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.HTTP.Port = -1

	_, err := NewApplication(cfg)
	assert.Error(t, err)
}

func TestNewApplicationDefaultsNilConfig(t *testing.T) {
	oldWD, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(oldWD) })

	application, err := NewApplication(nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, application.Stop(ctx))
}
