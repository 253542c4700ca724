package models

import (
	"fmt"
	"regexp"
	"time"
)

// SlotStatus is the stored availability of a slot.
type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotReserved  SlotStatus = "reserved"
)

// Valid reports whether s is a known slot status.
func (s SlotStatus) Valid() bool {
	return s == SlotAvailable || s == SlotReserved
}

const (
	// DateLayout is the storage format of Slot.Date.
	DateLayout = "2006-01-02"
	// ClockLayout is the storage format of Slot.StartTime and Slot.EndTime.
	ClockLayout = "15:04"
)

var clockPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// Slot is a fixed time window at a venue. Date and times are zero padded
// strings so that lexical comparison matches chronological order.
type Slot struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	VenueID   uint       `gorm:"not null;uniqueIndex:idx_slots_window,priority:1" json:"venue_id"`
	Date      string     `gorm:"size:10;not null;uniqueIndex:idx_slots_window,priority:2;index" json:"date"`
	StartTime string     `gorm:"size:5;not null;uniqueIndex:idx_slots_window,priority:3" json:"start_time"`
	EndTime   string     `gorm:"size:5;not null;uniqueIndex:idx_slots_window,priority:4" json:"end_time"`
	Status    SlotStatus `gorm:"size:20;not null;default:'available'" json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	Venue *Venue `gorm:"foreignKey:VenueID;constraint:OnDelete:RESTRICT" json:"venue,omitempty"`
}

// TableName specifies the table name for GORM.
func (Slot) TableName() string {
	return "slots"
}

// Window is the (date, start, end) part of a slot.
type Window struct {
	Date  string `json:"date"`
	Start string `json:"start_time"`
	End   string `json:"end_time"`
}

// Window returns the slot's time window.
func (s *Slot) Window() Window {
	return Window{Date: s.Date, Start: s.StartTime, End: s.EndTime}
}

// Validate checks formats and that the window is non-empty.
func (w Window) Validate() error {
	if _, err := time.Parse(DateLayout, w.Date); err != nil {
		return NewValidationError(fmt.Sprintf("date %q must use YYYY-MM-DD", w.Date))
	}
	if !clockPattern.MatchString(w.Start) {
		return NewValidationError(fmt.Sprintf("start_time %q must use HH:MM", w.Start))
	}
	if !clockPattern.MatchString(w.End) {
		return NewValidationError(fmt.Sprintf("end_time %q must use HH:MM", w.End))
	}
	if w.Start >= w.End {
		return NewValidationError("start_time must be before end_time")
	}
	return nil
}

// StartsAt returns the instant the window begins in loc.
func (w Window) StartsAt(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout+" "+ClockLayout, w.Date+" "+w.Start, loc)
}
