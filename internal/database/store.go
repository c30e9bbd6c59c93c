package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	dbconfig "github.com/reyanshafi/mini-social-network/pkg/database"
	"github.com/reyanshafi/mini-social-network/pkg/interfaces"
	"github.com/reyanshafi/mini-social-network/pkg/types"
)

// Store implements interfaces.MessageStore on SQLite.
//
// All writes funnel through a single goroutine: SQLite allows concurrent
// readers but serializes writers, and a single writer avoids lock contention
// entirely. Reads go straight to the pooled connection.
type Store struct {
	db           *sql.DB
	config       *dbconfig.Config
	writeChannel chan writeOperation
	shutdown     chan struct{}
	wg           sync.WaitGroup
	closed       bool
	mu           sync.RWMutex // protects closed
}

type writeOperation struct {
	operation func(*sql.DB) error
	result    chan error
}

// NewStore opens the database, applies the schema, and starts the writer.
func NewStore(config *dbconfig.Config) (*Store, error) {
	db, err := sql.Open("sqlite3", config.DatabasePath+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxConnections)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := dbconfig.ApplySchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &Store{
		db:           db,
		config:       config,
		writeChannel: make(chan writeOperation, 100),
		shutdown:     make(chan struct{}),
	}

	s.wg.Add(1)
	go s.writeLoop()

	return s, nil
}

func (s *Store) writeLoop() {
	defer s.wg.Done()

	for {
		select {
		case op := <-s.writeChannel:
			op.result <- op.operation(s.db)
		case <-s.shutdown:
			// Drain queued writes so callers are not left blocked.
			for {
				select {
				case op := <-s.writeChannel:
					op.result <- op.operation(s.db)
				default:
					return
				}
			}
		}
	}
}

func (s *Store) executeWrite(ctx context.Context, operation func(*sql.DB) error) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return fmt.Errorf("message store is closed")
	}
	s.mu.RUnlock()

	result := make(chan error, 1)

	select {
	case s.writeChannel <- writeOperation{operation: operation, result: result}:
		select {
		case err := <-result:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	case <-ctx.Done():
		return ctx.Err()
	case <-s.shutdown:
		return fmt.Errorf("message store is shutting down")
	}
}

// CreateMessage stores a new unread message and bumps the conversation's
// activity timestamp in one transaction. The participant check runs inside
// the same transaction so the relay's validation cannot be raced stale.
func (s *Store) CreateMessage(ctx context.Context, conversationID, senderID, text string) (*types.Message, error) {
	msg := &types.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Text:           text,
		Read:           false,
		CreatedAt:      time.Now().UTC(),
	}

	err := s.executeWrite(ctx, func(db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		var a, b string
		err = tx.QueryRowContext(ctx,
			`SELECT participant_a, participant_b FROM conversations WHERE id = ?`,
			conversationID,
		).Scan(&a, &b)
		if err == sql.ErrNoRows {
			return interfaces.ErrConversationNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to query conversation: %w", err)
		}
		if senderID != a && senderID != b {
			return interfaces.ErrNotParticipant
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO messages (id, conversation_id, sender_id, text, read, created_at)
			 VALUES (?, ?, ?, ?, 0, ?)`,
			msg.ID, msg.ConversationID, msg.SenderID, msg.Text, msg.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE conversations SET updated_at = ? WHERE id = ?`,
			msg.CreatedAt, conversationID,
		)
		if err != nil {
			return fmt.Errorf("failed to bump conversation activity: %w", err)
		}

		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}

	sender, err := s.ResolveDisplayAttributes(ctx, senderID)
	if err != nil {
		// The message is durable; delivery can proceed without attributes.
		log.Printf("Failed to resolve sender attributes for %s: %v", senderID, err)
	} else {
		msg.Sender = sender
	}

	return msg, nil
}

// ListMessages returns the conversation's messages oldest first with sender
// display attributes joined in.
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]*types.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.conversation_id, m.sender_id, m.text, m.read, m.created_at,
		       u.username, u.avatar
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.conversation_id = ?
		ORDER BY m.created_at ASC, m.id ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var messages []*types.Message
	for rows.Next() {
		var m types.Message
		var sender types.DisplayAttributes
		if err := rows.Scan(
			&m.ID, &m.ConversationID, &m.SenderID, &m.Text, &m.Read, &m.CreatedAt,
			&sender.Username, &sender.Avatar,
		); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		sender.UserID = m.SenderID
		m.Sender = &sender
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}

// MarkConversationRead performs the bulk unread -> read transition for every
// message in the conversation not sent by exceptSenderID. Idempotent.
func (s *Store) MarkConversationRead(ctx context.Context, conversationID, exceptSenderID string) error {
	return s.executeWrite(ctx, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			`UPDATE messages SET read = 1
			 WHERE conversation_id = ? AND sender_id <> ? AND read = 0`,
			conversationID, exceptSenderID,
		)
		if err != nil {
			return fmt.Errorf("failed to mark conversation read: %w", err)
		}
		return nil
	})
}

// FindOtherParticipant returns the counterpart of excludingUserID in the
// conversation.
func (s *Store) FindOtherParticipant(ctx context.Context, conversationID, excludingUserID string) (string, error) {
	var a, b string
	err := s.db.QueryRowContext(ctx,
		`SELECT participant_a, participant_b FROM conversations WHERE id = ?`,
		conversationID,
	).Scan(&a, &b)
	if err == sql.ErrNoRows {
		return "", interfaces.ErrConversationNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to query conversation: %w", err)
	}

	switch excludingUserID {
	case a:
		return b, nil
	case b:
		return a, nil
	default:
		return "", interfaces.ErrNotParticipant
	}
}

// ResolveDisplayAttributes returns the username and avatar for userID.
func (s *Store) ResolveDisplayAttributes(ctx context.Context, userID string) (*types.DisplayAttributes, error) {
	attrs := &types.DisplayAttributes{UserID: userID}
	err := s.db.QueryRowContext(ctx,
		`SELECT username, avatar FROM users WHERE id = ?`, userID,
	).Scan(&attrs.Username, &attrs.Avatar)
	if err == sql.ErrNoRows {
		return nil, interfaces.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return attrs, nil
}

// UnreadCount counts unread messages addressed to userID across all of their
// conversations.
func (s *Store) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM messages m
		JOIN conversations c ON c.id = m.conversation_id
		WHERE (c.participant_a = ? OR c.participant_b = ?)
		  AND m.sender_id <> ?
		  AND m.read = 0
	`, userID, userID, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return count, nil
}

// GetConversation returns a conversation by ID.
func (s *Store) GetConversation(ctx context.Context, conversationID string) (*types.Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, participant_a, participant_b, created_at, updated_at
		 FROM conversations WHERE id = ?`, conversationID)
	return scanConversation(row)
}

// CreateOrGetConversation returns the two-party conversation between userA
// and userB, creating it when absent. The lookup and insert run on the
// writer goroutine so concurrent calls cannot create duplicates.
func (s *Store) CreateOrGetConversation(ctx context.Context, userA, userB string) (*types.Conversation, error) {
	if userA == userB {
		return nil, interfaces.ErrNotParticipant
	}
	a, b := userA, userB
	if b < a {
		a, b = b, a
	}

	var conv *types.Conversation
	err := s.executeWrite(ctx, func(db *sql.DB) error {
		row := db.QueryRowContext(ctx,
			`SELECT id, participant_a, participant_b, created_at, updated_at
			 FROM conversations WHERE participant_a = ? AND participant_b = ?`, a, b)
		existing, err := scanConversation(row)
		if err == nil {
			conv = existing
			return nil
		}
		if err != interfaces.ErrConversationNotFound {
			return err
		}

		now := time.Now().UTC()
		created := &types.Conversation{
			ID:           uuid.New().String(),
			Participants: []string{a, b},
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		_, err = db.ExecContext(ctx,
			`INSERT INTO conversations (id, participant_a, participant_b, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?)`,
			created.ID, a, b, created.CreatedAt, created.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert conversation: %w", err)
		}
		conv = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// ListConversations returns userID's conversations, most recent activity
// first.
func (s *Store) ListConversations(ctx context.Context, userID string) ([]*types.Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, participant_a, participant_b, created_at, updated_at
		 FROM conversations
		 WHERE participant_a = ? OR participant_b = ?
		 ORDER BY updated_at DESC`, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var conversations []*types.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, conv)
	}
	return conversations, rows.Err()
}

// CreateUser registers the display attributes backing a user identity.
func (s *Store) CreateUser(ctx context.Context, user *types.DisplayAttributes) error {
	if !types.IsValidUserID(user.UserID) {
		return types.ErrInvalidUserID
	}
	return s.executeWrite(ctx, func(db *sql.DB) error {
		var existing string
		err := db.QueryRowContext(ctx, `SELECT id FROM users WHERE id = ?`, user.UserID).Scan(&existing)
		if err == nil {
			return interfaces.ErrDuplicateUser
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("failed to check user: %w", err)
		}

		_, err = db.ExecContext(ctx,
			`INSERT INTO users (id, username, avatar) VALUES (?, ?, ?)`,
			user.UserID, user.Username, user.Avatar,
		)
		if err != nil {
			return fmt.Errorf("failed to insert user: %w", err)
		}
		return nil
	})
}

// HealthCheck verifies database connectivity.
func (s *Store) HealthCheck(ctx context.Context) error {
	var one int
	if err := s.db.QueryRowContext(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// Close stops the writer after draining queued writes, then closes the
// connection pool.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.shutdown)
	s.wg.Wait()

	return s.db.Close()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanConversation(row scanner) (*types.Conversation, error) {
	var conv types.Conversation
	var a, b string
	err := row.Scan(&conv.ID, &a, &b, &conv.CreatedAt, &conv.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, interfaces.ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan conversation: %w", err)
	}
	conv.Participants = []string{a, b}
	return &conv, nil
}
