// Package gateway defines the chat-platform boundary: the Adapter interface
// implemented by the discord and slack subpackages, and the Service interface
// the adapters call into.
package gateway

import (
	"context"
	"time"

	"github.com/voidwell/autodelete/internal/models"
)

// Outcome classifies the result of an external delete call.
type Outcome int

const (
	// OutcomeDeleted means the platform confirmed the deletion.
	OutcomeDeleted Outcome = iota
	// OutcomeAlreadyGone means the message no longer exists. Treated the
	// same as a successful deletion.
	OutcomeAlreadyGone
	// OutcomeTransient means the call failed but may succeed on retry
	// (rate limit, server error, network timeout).
	OutcomeTransient
	// OutcomePermanent means retrying cannot help (permissions revoked,
	// channel gone).
	OutcomePermanent
)

// String returns the outcome name for logs and metrics labels.
func (o Outcome) String() string {
	switch o {
	case OutcomeDeleted:
		return "deleted"
	case OutcomeAlreadyGone:
		return "already_gone"
	case OutcomeTransient:
		return "transient"
	case OutcomePermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// Adapter is a connection to one chat platform. Connect must be called
// before DeleteMessage.
type Adapter interface {
	Connect(ctx context.Context) error
	Close() error
	// DeleteMessage issues the external delete call and classifies the
	// result. The error carries detail for logging; the Outcome decides
	// what happens to the tracked record.
	DeleteMessage(ctx context.Context, channelID, messageID string) (Outcome, error)
}

// Service is what adapters feed platform events into. Implemented by
// ingest.Ingestor.
type Service interface {
	OnMessageCreated(channelID, messageID string, createdAt time.Time) error
	EnableChannel(channelID string, delay time.Duration) (*models.ChannelConfig, error)
	DisableChannel(channelID string) (*models.ChannelConfig, error)
	ListEnabled() ([]models.ChannelConfig, error)
}
