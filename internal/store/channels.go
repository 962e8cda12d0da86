// Package store provides the durable channel-config and tracked-message
// stores. These two tables are the only authoritative state in the system;
// everything the scheduler holds in memory can be rebuilt from them.
package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/voidwell/autodelete/internal/models"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrDuplicate is returned when a unique key is already present. Callers
// treat it as an idempotent no-op, not a failure.
var ErrDuplicate = errors.New("store: duplicate key")

// Channels is the durable channel-config store.
type Channels struct {
	db *gorm.DB
}

// NewChannels creates a Channels store backed by db.
func NewChannels(db *gorm.DB) *Channels {
	return &Channels{db: db}
}

// Get returns the config for a channel, or ErrNotFound.
func (s *Channels) Get(channelID string) (*models.ChannelConfig, error) {
	var cfg models.ChannelConfig
	err := s.db.First(&cfg, "channel_id = ?", channelID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get config %s: %w", channelID, err)
	}
	return &cfg, nil
}

// Enable creates or overwrites the config for a channel, bumping its
// generation. Tracked messages carrying an older generation are purged in the
// same transaction — the generation bump is the only cancellation mechanism,
// so a config change and its purge must land atomically.
func (s *Channels) Enable(channelID string, delay time.Duration) (*models.ChannelConfig, error) {
	if channelID == "" {
		return nil, fmt.Errorf("store: channel id is required")
	}
	if delay < 0 {
		return nil, fmt.Errorf("store: delay must not be negative")
	}
	return s.mutate(channelID, func(cfg *models.ChannelConfig) {
		cfg.Enabled = true
		cfg.DelaySeconds = int64(delay / time.Second)
	})
}

// Disable marks the channel's config disabled, bumping its generation. The
// row is kept so future messages in the channel are correctly ignored.
func (s *Channels) Disable(channelID string) (*models.ChannelConfig, error) {
	if channelID == "" {
		return nil, fmt.Errorf("store: channel id is required")
	}
	return s.mutate(channelID, func(cfg *models.ChannelConfig) {
		cfg.Enabled = false
	})
}

// mutate loads (or initializes) the config row, applies fn, bumps the
// generation, saves, and purges now-stale tracked messages, all in one
// transaction.
func (s *Channels) mutate(channelID string, fn func(*models.ChannelConfig)) (*models.ChannelConfig, error) {
	var cfg models.ChannelConfig
	err := s.db.Transaction(func(tx *gorm.DB) error {
		err := tx.First(&cfg, "channel_id = ?", channelID).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		cfg.ChannelID = channelID
		fn(&cfg)
		cfg.Generation++
		if err := tx.Save(&cfg).Error; err != nil {
			return err
		}
		return tx.Where("channel_id = ? AND generation <> ?", channelID, cfg.Generation).
			Delete(&models.TrackedMessage{}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("store: update config %s: %w", channelID, err)
	}
	return &cfg, nil
}

// ListEnabled returns all configs with autodelete turned on.
func (s *Channels) ListEnabled() ([]models.ChannelConfig, error) {
	var cfgs []models.ChannelConfig
	if err := s.db.Where("enabled = ?", true).Order("channel_id ASC").Find(&cfgs).Error; err != nil {
		return nil, fmt.Errorf("store: list enabled: %w", err)
	}
	return cfgs, nil
}

// List returns every config row, enabled or not.
func (s *Channels) List() ([]models.ChannelConfig, error) {
	var cfgs []models.ChannelConfig
	if err := s.db.Order("channel_id ASC").Find(&cfgs).Error; err != nil {
		return nil, fmt.Errorf("store: list configs: %w", err)
	}
	return cfgs, nil
}
