package initialize

import (
	"relay/config"
	"relay/internal/logger"
	. "relay/internal/models"

	"gorm.io/gorm"
)

func InitializeTables(db *gorm.DB, config config.Config, log logger.Logger) error {
	log = log.Function("InitializeTables")
	log.Info("Migrating tables")

	if err := db.AutoMigrate(&SubmissionRecord{}); err != nil {
		return log.Err("failed to migrate submission records", err)
	}

	log.Info("Table initialization complete")
	return nil
}
