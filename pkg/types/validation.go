package types

import "regexp"

// Compiled once; identity checks run on every inbound event.
var userIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// MaxMessageBytes bounds the text of a single message. The client trims long
// input, but the server re-validates to stay a trustworthy boundary.
const MaxMessageBytes = 4096

// IsValidUserID checks the opaque identity format supplied at announce time.
func IsValidUserID(userID string) bool {
	if len(userID) < 1 || len(userID) > 50 {
		return false
	}
	return userIDRegex.MatchString(userID)
}

// ValidateText rejects empty message text. Whitespace-only text is accepted
// on purpose: the client owns presentation-level trimming.
func ValidateText(text string) error {
	if text == "" {
		return ErrEmptyMessage
	}
	if len(text) > MaxMessageBytes {
		return ErrMessageTooLong
	}
	return nil
}
