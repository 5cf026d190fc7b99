package domain

import (
	"context"
	"errors"
)

// ErrChatNotFound marks a recoverable navigation failure: the chat could not
// be located or opened. Callers skip the chat and continue; any other source
// error means the session itself is unusable.
var ErrChatNotFound = errors.New("chat not found")

// MessageSource yields the currently extractable messages of a chat. It has
// no incremental capability of its own: both calls return everything visible,
// in extraction order, with no uniqueness guarantee across calls.
type MessageSource interface {
	// Start opens the underlying session (browser, login handshake).
	Start(ctx context.Context) error

	// ExtractVisible returns all messages currently visible in the chat
	// without forcing any history to load.
	ExtractVisible(ctx context.Context, chatID string) ([]RawMessage, error)

	// LoadHistory scrolls back `scrolls` pages before extracting, returning
	// a bounded window of the chat's history.
	LoadHistory(ctx context.Context, chatID string, scrolls int) ([]RawMessage, error)

	// Close releases the session. Safe to call after a failed Start.
	Close() error
}
