package database

import (
	. "reasondesk/internal/models"

	"gorm.io/gorm"
)

// Models lists every persisted entity in dependency order.
func Models() []any {
	return []any{
		&Tag{},
		&CaseRecord{},
		&CaseRecordTag{},
		&Feedback{},
		&Client{},
		&Exhibition{},
		&Meeting{},
		&User{},
	}
}

// AutoMigrate creates or updates tables from the gorm models. Deployed
// databases are migrated with the SQL files in migrations/; this is used for
// throwaway databases.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
