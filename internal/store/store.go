// Package store provides local persistence so a relaunch can render chat
// history and subscription state before the network answers.
package store

import (
	"context"

	"github.com/mindhaven/companion/internal/chat"
	"github.com/mindhaven/companion/internal/subscription"
)

// Repository caches chat messages and the last subscription standing
// per identity.
type Repository interface {
	// SaveMessage caches a chat message. Saving an id twice is a no-op.
	SaveMessage(ctx context.Context, identity string, msg chat.Message) error

	// Messages returns cached messages in arrival order. A limit > 0
	// keeps only the most recent limit messages.
	Messages(ctx context.Context, identity string, limit int) ([]chat.Message, error)

	// ClearMessages drops the cached conversation for an identity.
	ClearMessages(ctx context.Context, identity string) error

	// SaveStanding snapshots the derived subscription standing.
	SaveStanding(ctx context.Context, identity string, s subscription.Standing) error

	// GetStanding returns the last snapshot, or nil when none exists.
	GetStanding(ctx context.Context, identity string) (*subscription.Standing, error)

	// Ping verifies the database is reachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
