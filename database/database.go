package database

import (
	"log"
	"os"

	"teamspace-backend/internal/domain/billing"
	"teamspace-backend/internal/domain/orgs"
	"teamspace-backend/internal/domain/plans"
	"teamspace-backend/internal/domain/users"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func InitDB() {
	dsn := os.Getenv("DB_URL")
	if dsn == "" {
		log.Fatal("DB_URL not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	DB = db

	if err := Migrate(DB); err != nil {
		log.Fatal("AutoMigrate error:", err)
	}

	log.Println("Connected and migrated successfully")
}

// Migrate is shared with tests, which run it against an in-memory database.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&users.User{},
		&users.VerificationToken{},
		&orgs.Organization{},
		&orgs.Member{},
		&plans.Plan{},
		&billing.Subscription{},
		&billing.Payment{},
	)
}
