package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/voidwell/autodelete/internal/models"
	"gorm.io/gorm"
)

// Messages is the durable tracked-message store.
type Messages struct {
	db *gorm.DB
}

// NewMessages creates a Messages store backed by db.
func NewMessages(db *gorm.DB) *Messages {
	return &Messages{db: db}
}

// Track inserts a pending-deletion record. Returns ErrDuplicate if the
// message is already tracked; platforms redeliver creation events, so the
// caller treats that as a no-op.
func (s *Messages) Track(m *models.TrackedMessage) error {
	if m.MessageID == "" || m.ChannelID == "" {
		return fmt.Errorf("store: message id and channel id are required")
	}
	err := s.db.Create(m).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("store: track %s: %w", m.MessageID, err)
	}
	return nil
}

// PurgeStale removes every record for the channel whose generation no longer
// matches the current config generation. Returns the number removed.
func (s *Messages) PurgeStale(channelID string, currentGeneration int64) (int64, error) {
	res := s.db.Where("channel_id = ? AND generation <> ?", channelID, currentGeneration).
		Delete(&models.TrackedMessage{})
	if res.Error != nil {
		return 0, fmt.Errorf("store: purge stale %s: %w", channelID, res.Error)
	}
	return res.RowsAffected, nil
}

// PurgeChannel removes every record for the channel regardless of
// generation. Used for channels found disabled during reconciliation.
func (s *Messages) PurgeChannel(channelID string) (int64, error) {
	res := s.db.Where("channel_id = ?", channelID).Delete(&models.TrackedMessage{})
	if res.Error != nil {
		return 0, fmt.Errorf("store: purge channel %s: %w", channelID, res.Error)
	}
	return res.RowsAffected, nil
}

// dueJoin restricts tracked_messages to rows whose generation still matches
// an enabled config. Stale rows are invisible to the scheduler even before a
// purge sweep reaches them.
func (s *Messages) dueJoin() *gorm.DB {
	return s.db.Model(&models.TrackedMessage{}).
		Select("tracked_messages.*").
		Joins("JOIN channel_configs ON channel_configs.channel_id = tracked_messages.channel_id"+
			" AND channel_configs.generation = tracked_messages.generation"+
			" AND channel_configs.enabled = ?", true)
}

// PopDue returns up to limit records due at or before the given time,
// ordered by deadline then message id. Records are not removed — removal
// happens only after the deletion actually succeeds.
func (s *Messages) PopDue(before time.Time, limit int) ([]models.TrackedMessage, error) {
	var msgs []models.TrackedMessage
	q := s.dueJoin().
		Where("tracked_messages.delete_at <= ?", before).
		Order("tracked_messages.delete_at ASC, tracked_messages.message_id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("store: pop due: %w", err)
	}
	return msgs, nil
}

// Remove deletes a tracked record by message id. Removing an absent record
// is not an error.
func (s *Messages) Remove(messageID string) error {
	if err := s.db.Where("message_id = ?", messageID).Delete(&models.TrackedMessage{}).Error; err != nil {
		return fmt.Errorf("store: remove %s: %w", messageID, err)
	}
	return nil
}

// NextDeadline returns the earliest upcoming deletion time across all
// channels, or ok=false when nothing is pending. Drives the scheduler's
// sleep interval.
func (s *Messages) NextDeadline() (time.Time, bool, error) {
	var m models.TrackedMessage
	err := s.dueJoin().
		Order("tracked_messages.delete_at ASC, tracked_messages.message_id ASC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("store: next deadline: %w", err)
	}
	return m.DeleteAt, true, nil
}

// PendingCount returns the number of live (generation-matched) records.
func (s *Messages) PendingCount() (int64, error) {
	var n int64
	if err := s.dueJoin().Count(&n).Error; err != nil {
		return 0, fmt.Errorf("store: pending count: %w", err)
	}
	return n, nil
}

// PendingByChannel returns live record counts keyed by channel id.
func (s *Messages) PendingByChannel() (map[string]int64, error) {
	type row struct {
		ChannelID string
		Count     int64
	}
	var rows []row
	err := s.dueJoin().
		Select("tracked_messages.channel_id AS channel_id, count(*) AS count").
		Group("tracked_messages.channel_id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("store: pending by channel: %w", err)
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.ChannelID] = r.Count
	}
	return counts, nil
}
