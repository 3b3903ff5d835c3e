package initialize

import (
	"reasondesk/config"
	"reasondesk/internal/database"
	"reasondesk/internal/logger"
	. "reasondesk/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Tags every environment starts with. Auto-generated tags are created on
// demand by the tag suggester and are not listed here.
var baseTags = []Tag{
	{Name: "腰痛", Category: "body-part", Description: "腰部の痛み"},
	{Name: "肩こり", Category: "body-part", Description: "肩周りの緊張と痛み"},
	{Name: "頸部痛", Category: "body-part", Description: "首の痛み"},
	{Name: "膝関節痛", Category: "body-part", Description: "膝の痛み"},
	{Name: "捻挫", Category: "injury"},
	{Name: "打撲", Category: "injury"},
	{Name: "挫傷", Category: "injury"},
	{Name: "温熱療法", Category: "treatment"},
	{Name: "冷却療法", Category: "treatment"},
	{Name: "手技療法", Category: "treatment"},
}

// InitializeTables checks that the migrated schema covers every model and
// inserts the base tag set. Safe to run repeatedly.
func InitializeTables(db *gorm.DB, config config.Config, log logger.Logger) error {
	log = log.Function("InitializeTables")
	log.Info("Initializing essential production data", "environment", config.Environment)

	migrator := db.Migrator()
	for _, model := range database.Models() {
		if !migrator.HasTable(model) {
			return log.Error("table missing after migration", "model", model)
		}
	}

	tags := make([]Tag, len(baseTags))
	copy(tags, baseTags)
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&tags)
	if result.Error != nil {
		return log.Err("failed to insert base tags", result.Error)
	}

	log.Info("Table initialization complete", "tagsInserted", result.RowsAffected)
	return nil
}
