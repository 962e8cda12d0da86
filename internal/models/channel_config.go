package models

import "time"

// ChannelConfig is the autodelete policy for a single channel. Rows are
// created on first enable and overwritten afterwards, never deleted — a
// disabled channel keeps its last generation so messages ingested under an
// older policy can still be recognized as stale.
type ChannelConfig struct {
	ChannelID    string `gorm:"primaryKey;size:64"`
	Enabled      bool   `gorm:"not null"`
	DelaySeconds int64  `gorm:"not null"`
	// Generation increments on every enable/disable. A tracked message is
	// only deletable while its generation matches this value.
	Generation int64 `gorm:"not null"`
	UpdatedAt  time.Time
}

// Delay returns the configured deletion delay as a duration.
func (c *ChannelConfig) Delay() time.Duration {
	return time.Duration(c.DelaySeconds) * time.Second
}
