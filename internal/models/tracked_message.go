package models

import "time"

// TrackedMessage is a message awaiting scheduled deletion. Created exactly
// once when a message arrives in an enabled channel, and removed when the
// deletion succeeds, the underlying message turns out to be gone, or the
// channel's configuration changes out from under it.
type TrackedMessage struct {
	MessageID string    `gorm:"primaryKey;size:64"`
	ChannelID string    `gorm:"size:64;not null;index"`
	DeleteAt  time.Time `gorm:"not null;index"`
	// Generation captures ChannelConfig.Generation at ingest time.
	Generation int64 `gorm:"not null"`
	CreatedAt  time.Time
}
