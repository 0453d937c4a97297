package models

import "time"

// DraftRow is the server-side shape of a persisted draft (drafts table).
// One row per storage key; writes replace the prior row.
type DraftRow struct {
	StorageKey string    `gorm:"primaryKey;size:191;column:storage_key" json:"storage_key"`
	OwnerId    string    `gorm:"index;size:64" json:"owner_id"`
	Payload    string    `gorm:"type:text" json:"payload"`
	SavedAt    time.Time `gorm:"index" json:"saved_at"`
}

func (DraftRow) TableName() string {
	return "drafts"
}

// MigrateDraftTable creates the drafts table when the draft-sync service is
// pointed at a fresh database.
type draftMigrator interface {
	AutoMigrate(dst ...interface{}) error
}

func MigrateDraftTable(db draftMigrator) error {
	return db.AutoMigrate(&DraftRow{})
}
