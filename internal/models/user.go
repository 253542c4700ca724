package models

import "time"

// Role is the caller role supplied by the authentication layer.
type Role string

const (
	RoleUser     Role = "user"
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleOperator || r == RoleAdmin
}

// User is the account record. Identity and credentials are owned by the
// auth provider; this service owns BlockedUntil.
type User struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Name         string     `gorm:"size:120;not null" json:"name"`
	Email        string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Role         Role       `gorm:"size:20;not null;default:'user'" json:"role"`
	BlockedUntil *time.Time `json:"blocked_until,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	Profile *UserProfile `gorm:"foreignKey:UserID" json:"profile,omitempty"`
}

// TableName specifies the table name for GORM.
func (User) TableName() string {
	return "users"
}

// UserProfile holds optional contact details.
type UserProfile struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex" json:"user_id"`
	Phone     string    `gorm:"size:40;default:''" json:"phone"`
	City      string    `gorm:"size:120;default:''" json:"city"`
	Bio       string    `gorm:"type:text;default:''" json:"bio"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (UserProfile) TableName() string {
	return "user_profiles"
}

// Comment is a user review of a venue.
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	VenueID   uint      `gorm:"not null;index" json:"venue_id"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	Rating    int       `gorm:"not null;default:0" json:"rating"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (Comment) TableName() string {
	return "comments"
}
