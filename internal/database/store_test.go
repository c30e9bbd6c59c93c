package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbconfig "github.com/reyanshafi/mini-social-network/pkg/database"
	"github.com/reyanshafi/mini-social-network/pkg/interfaces"
	"github.com/reyanshafi/mini-social-network/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(dbconfig.DefaultConfig(filepath.Join(t.TempDir(), "chat.db")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedConversation(t *testing.T, store *Store) *types.Conversation {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, store.CreateUser(ctx, &types.DisplayAttributes{
		UserID: "alice", Username: "Alice", Avatar: "alice.png",
	}))
	require.NoError(t, store.CreateUser(ctx, &types.DisplayAttributes{
		UserID: "bob", Username: "Bob", Avatar: "bob.png",
	}))

	conv, err := store.CreateOrGetConversation(ctx, "alice", "bob")
	require.NoError(t, err)
	return conv
}

func TestStoreHealthCheck(t *testing.T) {
	store := newTestStore(t)
	assert.NoError(t, store.HealthCheck(context.Background()))
}

func TestCreateUserDuplicate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user := &types.DisplayAttributes{UserID: "alice", Username: "Alice"}
	require.NoError(t, store.CreateUser(ctx, user))
	assert.ErrorIs(t, store.CreateUser(ctx, user), interfaces.ErrDuplicateUser)
}

func TestCreateUserInvalidID(t *testing.T) {
	store := newTestStore(t)

	err := store.CreateUser(context.Background(), &types.DisplayAttributes{UserID: "bad id!", Username: "x"})
	assert.ErrorIs(t, err, types.ErrInvalidUserID)
}

func TestResolveDisplayAttributes(t *testing.T) {
	store := newTestStore(t)
	seedConversation(t, store)
	ctx := context.Background()

	attrs, err := store.ResolveDisplayAttributes(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", attrs.Username)
	assert.Equal(t, "alice.png", attrs.Avatar)

	_, err = store.ResolveDisplayAttributes(ctx, "ghost")
	assert.ErrorIs(t, err, interfaces.ErrUserNotFound)
}

func TestCreateOrGetConversationIsStable(t *testing.T) {
	store := newTestStore(t)
	conv := seedConversation(t, store)
	ctx := context.Background()

	// Same pair in either order resolves to the same conversation.
	same, err := store.CreateOrGetConversation(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, conv.ID, same.ID)

	convs, err := store.ListConversations(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, convs, 1)
}

func TestCreateOrGetConversationSelfRejected(t *testing.T) {
	store := newTestStore(t)
	seedConversation(t, store)

	_, err := store.CreateOrGetConversation(context.Background(), "alice", "alice")
	assert.ErrorIs(t, err, interfaces.ErrNotParticipant)
}

func TestCreateMessageAndList(t *testing.T) {
	store := newTestStore(t)
	conv := seedConversation(t, store)
	ctx := context.Background()

	first, err := store.CreateMessage(ctx, conv.ID, "alice", "hello")
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.False(t, first.Read)
	require.NotNil(t, first.Sender)
	assert.Equal(t, "Alice", first.Sender.Username)

	second, err := store.CreateMessage(ctx, conv.ID, "bob", "hi back")
	require.NoError(t, err)

	messages, err := store.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, first.ID, messages[0].ID, "oldest first")
	assert.Equal(t, second.ID, messages[1].ID)
	assert.Equal(t, "Bob", messages[1].Sender.Username)
}

func TestCreateMessageBumpsConversationActivity(t *testing.T) {
	store := newTestStore(t)
	conv := seedConversation(t, store)
	ctx := context.Background()

	msg, err := store.CreateMessage(ctx, conv.ID, "alice", "ping")
	require.NoError(t, err)

	updated, err := store.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.True(t, !updated.UpdatedAt.Before(msg.CreatedAt),
		"message activity must bump updated_at")
}

func TestCreateMessageRejectsOutsiders(t *testing.T) {
	store := newTestStore(t)
	conv := seedConversation(t, store)
	ctx := context.Background()

	require.NoError(t, store.CreateUser(ctx, &types.DisplayAttributes{
		UserID: "mallory", Username: "Mallory",
	}))

	_, err := store.CreateMessage(ctx, conv.ID, "mallory", "let me in")
	assert.ErrorIs(t, err, interfaces.ErrNotParticipant)

	_, err = store.CreateMessage(ctx, "no-such-conversation", "alice", "hi")
	assert.ErrorIs(t, err, interfaces.ErrConversationNotFound)
}

func TestFindOtherParticipant(t *testing.T) {
	store := newTestStore(t)
	conv := seedConversation(t, store)
	ctx := context.Background()

	other, err := store.FindOtherParticipant(ctx, conv.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, "bob", other)

	other, err = store.FindOtherParticipant(ctx, conv.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, "alice", other)

	_, err = store.FindOtherParticipant(ctx, conv.ID, "mallory")
	assert.ErrorIs(t, err, interfaces.ErrNotParticipant)

	_, err = store.FindOtherParticipant(ctx, "missing", "alice")
	assert.ErrorIs(t, err, interfaces.ErrConversationNotFound)
}

func TestMarkConversationReadAndUnreadCount(t *testing.T) {
	store := newTestStore(t)
	conv := seedConversation(t, store)
	ctx := context.Background()

	_, err := store.CreateMessage(ctx, conv.ID, "alice", "one")
	require.NoError(t, err)
	_, err = store.CreateMessage(ctx, conv.ID, "alice", "two")
	require.NoError(t, err)
	_, err = store.CreateMessage(ctx, conv.ID, "bob", "reply")
	require.NoError(t, err)

	count, err := store.UnreadCount(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "bob has two unread messages from alice")

	count, err = store.UnreadCount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// bob opens the conversation.
	require.NoError(t, store.MarkConversationRead(ctx, conv.ID, "bob"))

	count, err = store.UnreadCount(ctx, "bob")
	require.NoError(t, err)
	assert.Zero(t, count)

	// bob's own message stays unread for alice.
	count, err = store.UnreadCount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	messages, err := store.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	for _, m := range messages {
		if m.SenderID == "alice" {
			assert.True(t, m.Read, "alice's messages must now be read")
		} else {
			assert.False(t, m.Read, "bob's own message must not flip")
		}
	}
}

func TestMarkConversationReadIdempotent(t *testing.T) {
	store := newTestStore(t)
	conv := seedConversation(t, store)
	ctx := context.Background()

	_, err := store.CreateMessage(ctx, conv.ID, "alice", "one")
	require.NoError(t, err)

	require.NoError(t, store.MarkConversationRead(ctx, conv.ID, "bob"))
	require.NoError(t, store.MarkConversationRead(ctx, conv.ID, "bob"))

	messages, err := store.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.True(t, messages[0].Read, "read flag never reverts")
}

func TestListConversationsOrderedByActivity(t *testing.T) {
	store := newTestStore(t)
	seedConversation(t, store)
	ctx := context.Background()

	require.NoError(t, store.CreateUser(ctx, &types.DisplayAttributes{
		UserID: "carol", Username: "Carol",
	}))
	withCarol, err := store.CreateOrGetConversation(ctx, "alice", "carol")
	require.NoError(t, err)

	// Activity in the carol conversation makes it the most recent.
	_, err = store.CreateMessage(ctx, withCarol.ID, "carol", "hey alice")
	require.NoError(t, err)

	convs, err := store.ListConversations(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, withCarol.ID, convs[0].ID)
}

func TestCloseIsIdempotent(t *testing.T) {
	store, err := NewStore(dbconfig.DefaultConfig(filepath.Join(t.TempDir(), "chat.db")))
	require.NoError(t, err)

	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}
