package status

import (
	"time"

	"github.com/voidwell/autodelete/internal/models"
	"gorm.io/gorm"
)

// ChannelRow holds channel configuration plus backlog data for display.
type ChannelRow struct {
	ChannelID    string     `json:"channel_id"`
	Enabled      bool       `json:"enabled"`
	DelaySeconds int64      `json:"delay_seconds"`
	Generation   int64      `json:"generation"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Pending      int64      `json:"pending"`
	NextDeleteAt *time.Time `json:"next_delete_at,omitempty"`
}

// ChannelSummary returns all channel configurations with the count and next
// deadline of their live tracked messages. Only messages from the current
// generation count; stale rows are purge candidates, not backlog.
func ChannelSummary(db *gorm.DB) ([]ChannelRow, error) {
	var cfgs []models.ChannelConfig
	if err := db.Order("channel_id ASC").Find(&cfgs).Error; err != nil {
		return nil, err
	}

	rows := make([]ChannelRow, len(cfgs))
	for i, cfg := range cfgs {
		rows[i] = ChannelRow{
			ChannelID:    cfg.ChannelID,
			Enabled:      cfg.Enabled,
			DelaySeconds: cfg.DelaySeconds,
			Generation:   cfg.Generation,
			UpdatedAt:    cfg.UpdatedAt,
		}

		var count int64
		if err := db.Model(&models.TrackedMessage{}).
			Where("channel_id = ? AND generation = ?", cfg.ChannelID, cfg.Generation).
			Count(&count).Error; err != nil {
			return nil, err
		}
		rows[i].Pending = count

		if count > 0 {
			var next models.TrackedMessage
			err := db.Where("channel_id = ? AND generation = ?", cfg.ChannelID, cfg.Generation).
				Order("delete_at ASC").First(&next).Error
			if err == nil {
				t := next.DeleteAt
				rows[i].NextDeleteAt = &t
			}
		}
	}
	return rows, nil
}

// Backlog holds aggregate backlog data across all enabled channels.
type Backlog struct {
	Pending      int64      `json:"pending"`
	Overdue      int64      `json:"overdue"`
	NextDeadline *time.Time `json:"next_deadline,omitempty"`
}

// BacklogSummary returns the live backlog: tracked messages whose generation
// matches their channel's current enabled configuration.
func BacklogSummary(db *gorm.DB) (*Backlog, error) {
	live := func() *gorm.DB {
		return db.Model(&models.TrackedMessage{}).
			Joins("JOIN channel_configs ON channel_configs.channel_id = tracked_messages.channel_id"+
				" AND channel_configs.generation = tracked_messages.generation"+
				" AND channel_configs.enabled = ?", true)
	}

	var summary Backlog
	if err := live().Count(&summary.Pending).Error; err != nil {
		return nil, err
	}
	if err := live().Where("tracked_messages.delete_at <= ?", time.Now()).
		Count(&summary.Overdue).Error; err != nil {
		return nil, err
	}

	if summary.Pending > 0 {
		var next models.TrackedMessage
		err := live().Select("tracked_messages.*").
			Order("tracked_messages.delete_at ASC").First(&next).Error
		if err == nil {
			t := next.DeleteAt
			summary.NextDeadline = &t
		}
	}
	return &summary, nil
}
