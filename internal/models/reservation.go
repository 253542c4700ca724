package models

import "time"

// ReservationStatus is a reservation lifecycle state.
type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationCancelled ReservationStatus = "cancelled"
	ReservationCompleted ReservationStatus = "completed"
)

// ActiveReservationStatuses hold a slot.
var ActiveReservationStatuses = []ReservationStatus{ReservationPending, ReservationConfirmed}

// Active reports whether a reservation in this state holds its slot.
func (s ReservationStatus) Active() bool {
	return s == ReservationPending || s == ReservationConfirmed
}

// Terminal reports whether no further transitions are possible.
func (s ReservationStatus) Terminal() bool {
	return s == ReservationCancelled || s == ReservationCompleted
}

// Valid reports whether s is a known status.
func (s ReservationStatus) Valid() bool {
	return s.Active() || s.Terminal()
}

// Reservation holds a slot for a user. At most one active reservation may
// reference a slot; the partial unique index enforces it at the store level.
type Reservation struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	UserID       uint              `gorm:"not null;index" json:"user_id"`
	SlotID       uint              `gorm:"not null;index;uniqueIndex:idx_reservations_active_slot,where:status <> 'cancelled' AND status <> 'completed'" json:"slot_id"`
	Status       ReservationStatus `gorm:"size:20;not null;default:'pending';index" json:"status"`
	Notes        string            `gorm:"type:text;default:''" json:"notes,omitempty"`
	CancelReason *string           `gorm:"type:text" json:"cancel_reason,omitempty"`
	ConfirmedAt  *time.Time        `json:"confirmed_at,omitempty"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
	CancelledAt  *time.Time        `json:"cancelled_at,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Slot *Slot `gorm:"foreignKey:SlotID;constraint:OnDelete:RESTRICT" json:"slot,omitempty"`
}

// TableName specifies the table name for GORM.
func (Reservation) TableName() string {
	return "reservations"
}
