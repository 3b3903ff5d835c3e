package seed

import (
	"time"

	"reasondesk/config"
	"reasondesk/internal/logger"
	. "reasondesk/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func stringPtr(s string) *string {
	return &s
}

// Seed loads development fixtures. Rows that already exist are left alone.
func Seed(db *gorm.DB, config config.Config, log logger.Logger) error {
	log = log.Function("seed")
	if config.IsProduction() {
		return log.ErrMsg("refusing to seed a production database")
	}
	log.Info("Seeding development data")

	if err := seedUsers(db, log); err != nil {
		return err
	}
	if err := seedDirectory(db, log); err != nil {
		return err
	}

	return nil
}

func seedUsers(db *gorm.DB, log logger.Logger) error {
	log = log.Function("seedUsers")

	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	if err != nil {
		return log.Err("failed to hash seed password", err)
	}

	users := []User{
		{Email: "admin@example.com", DisplayName: "管理者", Role: RoleAdmin},
		{Email: "reviewer@example.com", DisplayName: "審査担当", Role: RoleReviewer},
		{Email: "exhibitor@example.com", DisplayName: "出展担当", Role: RoleExhibitor},
	}

	for _, user := range users {
		var existing User
		if err := db.First(&existing, "email = ?", user.Email).Error; err == nil {
			log.Info("User already exists", "email", user.Email)
			continue
		}
		user.Password = string(hash)
		user.IsActive = true
		log.Info("Seeding user", "email", user.Email, "role", user.Role)
		if err := db.Create(&user).Error; err != nil {
			log.Er("failed to create user", err, "email", user.Email)
		}
	}

	return nil
}

func seedDirectory(db *gorm.DB, log logger.Logger) error {
	log = log.Function("seedDirectory")

	var count int64
	if err := db.Model(&Exhibition{}).Count(&count).Error; err != nil {
		return log.Err("failed to count exhibitions", err)
	}
	if count > 0 {
		log.Info("Directory already seeded", "exhibitions", count)
		return nil
	}

	start := time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 1, 0)
	exhibition := Exhibition{
		Name:        "柔整・鍼灸フェア",
		Venue:       "東京ビッグサイト",
		Description: "施術機器と施術記録システムの展示会",
		StartDate:   start,
		EndDate:     start.AddDate(0, 0, 2),
		IsActive:    true,
	}
	if err := db.Create(&exhibition).Error; err != nil {
		return log.Err("failed to create exhibition", err)
	}

	clients := []Client{
		{Name: "山田 太郎", Company: "山田整骨院", Email: stringPtr("yamada@example.com"), IsActive: true},
		{Name: "佐藤 花子", Company: "さとう接骨院", Phone: stringPtr("03-0000-0000"), IsActive: true},
	}
	for i := range clients {
		if err := db.Create(&clients[i]).Error; err != nil {
			return log.Err("failed to create client", err, "name", clients[i].Name)
		}

		meeting := Meeting{
			ClientID:     clients[i].ID,
			ExhibitionID: exhibition.ID,
			Title:        "製品デモ",
			StartTime:    start.Add(time.Duration(10+i) * time.Hour),
			EndTime:      start.Add(time.Duration(10+i)*time.Hour + 30*time.Minute),
			Location:     "ブースA",
			Status:       MeetingScheduled,
		}
		if err := db.Create(&meeting).Error; err != nil {
			return log.Err("failed to create meeting", err, "client", clients[i].Name)
		}
	}

	log.Info("Seeded directory", "clients", len(clients))
	return nil
}
