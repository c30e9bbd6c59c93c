package database

import (
	"database/sql"
	"fmt"
)

// Schema statements are idempotent so startup can re-apply them safely.
// Conversation participants are stored in canonical order (participant_a <
// participant_b) so the two-party uniqueness constraint holds regardless of
// who initiated the conversation.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id         TEXT PRIMARY KEY,
		username   TEXT NOT NULL,
		avatar     TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS conversations (
		id            TEXT PRIMARY KEY,
		participant_a TEXT NOT NULL REFERENCES users(id),
		participant_b TEXT NOT NULL REFERENCES users(id),
		created_at    DATETIME NOT NULL,
		updated_at    DATETIME NOT NULL,
		CHECK (participant_a < participant_b)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_conversations_participants
		ON conversations(participant_a, participant_b)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id              TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL REFERENCES conversations(id),
		sender_id       TEXT NOT NULL REFERENCES users(id),
		text            TEXT NOT NULL,
		read            INTEGER NOT NULL DEFAULT 0,
		created_at      DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_conversation_created
		ON messages(conversation_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_unread
		ON messages(conversation_id, sender_id, read)`,
}

// ApplySchema creates any missing tables and indexes.
func ApplySchema(db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}

// ValidateSchema ensures the database contains the tables the store relies on.
func ValidateSchema(db *sql.DB) error {
	required := []string{"users", "conversations", "messages"}
	for _, table := range required {
		var name string
		err := db.QueryRow(
			`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table,
		).Scan(&name)
		if err == sql.ErrNoRows {
			return fmt.Errorf("required table %s is missing", table)
		}
		if err != nil {
			return fmt.Errorf("failed to check table %s: %w", table, err)
		}
	}
	return nil
}
