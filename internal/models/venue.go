// Package models contains the persistent domain types and the application error taxonomy.
package models

import "time"

// Venue is a bookable facility. It owns the slots offered on it.
type Venue struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:150;not null" json:"name"`
	Address     string    `gorm:"size:255;not null;default:''" json:"address"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	SportType   string    `gorm:"size:60;not null;default:'';index" json:"sport_type"`
	Description string    `gorm:"type:text;default:''" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (Venue) TableName() string {
	return "venues"
}
