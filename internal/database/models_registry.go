package database

import "courtbook/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
// Order follows foreign key dependencies.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.UserProfile{},
		&models.Venue{},
		&models.Slot{},
		&models.Reservation{},
		&models.Sanction{},
		&models.Comment{},
	}
}
