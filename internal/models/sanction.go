package models

import "time"

// Sanction blocks a user from reserving until ExpiresAt. Sanctions are
// soft-deactivated, never removed.
type Sanction struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	UserID        uint       `gorm:"not null;index:idx_sanctions_user_active,priority:1" json:"user_id"`
	ReservationID *uint      `gorm:"index" json:"reservation_id,omitempty"`
	Reason        string     `gorm:"type:text;not null" json:"reason"`
	StartedAt     time.Time  `gorm:"not null" json:"started_at"`
	ExpiresAt     time.Time  `gorm:"not null;index" json:"expires_at"`
	Active        bool       `gorm:"not null;default:true;index:idx_sanctions_user_active,priority:2" json:"active"`
	IssuedBy      uint       `gorm:"not null;default:0" json:"issued_by"`
	LiftedAt      *time.Time `json:"lifted_at,omitempty"`
	LiftedBy      *uint      `json:"lifted_by,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	User        *User        `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Reservation *Reservation `gorm:"foreignKey:ReservationID;constraint:OnDelete:SET NULL" json:"reservation,omitempty"`
}

// TableName specifies the table name for GORM.
func (Sanction) TableName() string {
	return "sanctions"
}

// InForce reports whether the sanction still blocks its user at now.
func (s *Sanction) InForce(now time.Time) bool {
	return s.Active && s.ExpiresAt.After(now)
}
