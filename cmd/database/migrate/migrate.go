package migration

import (
	"Fasting-Tracker/entities"
	"fmt"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&entities.FastingSession{}); err != nil {
		return fmt.Errorf("error migrating fasting session table: %w", err)
	}
	if err := db.AutoMigrate(&entities.MealRecord{}); err != nil {
		return fmt.Errorf("error migrating meal record table: %w", err)
	}
	return nil
}
