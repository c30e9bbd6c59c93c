package types

import "errors"

var (
	ErrInvalidUserID  = errors.New("user ID must be 1-50 characters, alphanumeric + underscore/hyphen only")
	ErrEmptyMessage   = errors.New("message text cannot be empty")
	ErrMessageTooLong = errors.New("message text exceeds 4KB limit")
	ErrInvalidEvent   = errors.New("unknown client event")
)
