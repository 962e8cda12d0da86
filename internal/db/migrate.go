package db

import (
	"fmt"

	"github.com/voidwell/autodelete/internal/models"
	"gorm.io/gorm"
)

// AllModels returns the GORM models that make up the durable schema.
func AllModels() []interface{} {
	return []interface{}{
		&models.ChannelConfig{},
		&models.TrackedMessage{},
	}
}

// AutoMigrate creates or updates both tables. The process cannot operate
// without the durable schema, so callers treat a failure here as fatal.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}
