package seed

import (
	"relay/config"
	"relay/internal/logger"
	. "relay/internal/models"

	"gorm.io/gorm"
)

// Seed inserts a few already-submitted fingerprints so the duplicate guard
// has data to hit during development.
func Seed(db *gorm.DB, config config.Config, log logger.Logger) error {
	log = log.Function("Seed")
	log.Info("Seeding development data")

	records := []SubmissionRecord{
		{
			Fingerprint: "2026-03-02T13:00:00Z|2026-03-02T13:30:00Z|101|102|5001",
			Kind:        SubmissionKindExpenseItem,
			ResourceID:  5001,
		},
		{
			Fingerprint: "2026-03-02T13:00:00Z|2026-03-02T13:30:00Z|101|102|5001",
			Kind:        SubmissionKindTimeEntry,
			ResourceID:  5001,
		},
		{
			Fingerprint: "2026-03-02T16:00:00Z|-|102|Home|5001",
			Kind:        SubmissionKindExpenseItem,
			ResourceID:  5001,
		},
	}

	for _, record := range records {
		var existing SubmissionRecord
		if err := db.First(&existing, "kind = ? AND fingerprint = ?", record.Kind, record.Fingerprint).Error; err == nil {
			log.Info("Submission record already exists", "fingerprint", record.Fingerprint)
			continue
		}
		log.Info("Seeding submission record", "fingerprint", record.Fingerprint, "kind", record.Kind)
		if err := db.Create(&record).Error; err != nil {
			log.Er("failed to create submission record", err, "fingerprint", record.Fingerprint)
		}
	}

	return nil
}
