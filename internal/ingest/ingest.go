// Package ingest turns platform notifications into store writes. It is the
// only writer besides the config mutations themselves, and it is idempotent:
// the platform may redeliver any notification.
package ingest

import (
	"errors"
	"fmt"
	"time"

	"github.com/voidwell/autodelete/internal/models"
	"github.com/voidwell/autodelete/internal/store"
)

// Waker is poked whenever a write may have produced an earlier deadline or
// invalidated the scheduler's in-memory window.
type Waker interface {
	Wake()
}

// Ingestor implements gateway.Service against the durable stores.
type Ingestor struct {
	channels *store.Channels
	messages *store.Messages
	waker    Waker
}

// Opts holds parameters for creating an Ingestor.
type Opts struct {
	Channels *store.Channels
	Messages *store.Messages
	Waker    Waker // optional
}

// New creates an Ingestor.
func New(opts Opts) (*Ingestor, error) {
	if opts.Channels == nil {
		return nil, fmt.Errorf("ingest: channel store is required")
	}
	if opts.Messages == nil {
		return nil, fmt.Errorf("ingest: message store is required")
	}
	return &Ingestor{
		channels: opts.Channels,
		messages: opts.Messages,
		waker:    opts.Waker,
	}, nil
}

// OnMessageCreated tracks a newly created message if its channel currently
// has autodelete enabled. Messages in unconfigured or disabled channels are
// ignored, and duplicate notifications are no-ops.
func (i *Ingestor) OnMessageCreated(channelID, messageID string, createdAt time.Time) error {
	cfg, err := i.channels.Get(channelID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !cfg.Enabled {
		return nil
	}

	err = i.messages.Track(&models.TrackedMessage{
		MessageID:  messageID,
		ChannelID:  channelID,
		DeleteAt:   createdAt.Add(cfg.Delay()),
		Generation: cfg.Generation,
	})
	if errors.Is(err, store.ErrDuplicate) {
		return nil
	}
	if err != nil {
		return err
	}

	i.wake()
	return nil
}

// EnableChannel turns autodelete on for a channel, cancelling anything
// tracked under the previous configuration.
func (i *Ingestor) EnableChannel(channelID string, delay time.Duration) (*models.ChannelConfig, error) {
	cfg, err := i.channels.Enable(channelID, delay)
	if err != nil {
		return nil, err
	}
	i.wake()
	return cfg, nil
}

// DisableChannel turns autodelete off, cancelling all pending deletions for
// the channel.
func (i *Ingestor) DisableChannel(channelID string) (*models.ChannelConfig, error) {
	cfg, err := i.channels.Disable(channelID)
	if err != nil {
		return nil, err
	}
	i.wake()
	return cfg, nil
}

// ListEnabled returns all channels with autodelete turned on.
func (i *Ingestor) ListEnabled() ([]models.ChannelConfig, error) {
	return i.channels.ListEnabled()
}

func (i *Ingestor) wake() {
	if i.waker != nil {
		i.waker.Wake()
	}
}
