package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"courtbook/internal/models"
	"courtbook/internal/repository"
)

// VenueInput is the payload of createVenue and updateVenue.
type VenueInput struct {
	Name        string  `json:"name"`
	Address     string  `json:"address"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	SportType   string  `json:"sport_type"`
	Description string  `json:"description"`
}

func (in VenueInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return models.NewValidationError("name is required")
	}
	if len(in.Name) > 150 {
		return models.NewValidationError("name too long (max 150 characters)")
	}
	if in.Latitude < -90 || in.Latitude > 90 {
		return models.NewValidationError("latitude must be between -90 and 90")
	}
	if in.Longitude < -180 || in.Longitude > 180 {
		return models.NewValidationError("longitude must be between -180 and 180")
	}
	return nil
}

func (in VenueInput) apply(v *models.Venue) {
	v.Name = strings.TrimSpace(in.Name)
	v.Address = strings.TrimSpace(in.Address)
	v.Latitude = in.Latitude
	v.Longitude = in.Longitude
	v.SportType = strings.TrimSpace(in.SportType)
	v.Description = in.Description
}

// CreateSlotInput is the payload of createSlot.
type CreateSlotInput struct {
	VenueID   uint   `json:"venue_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// Availability is the getAvailability result.
type Availability struct {
	Venue *models.Venue `json:"venue"`
	Date  string        `json:"date,omitempty"`
	Slots []SlotView    `json:"slots"`
}

// CreateVenue adds a venue.
func (s *BookingService) CreateVenue(ctx context.Context, actor Actor, in VenueInput) (*models.Venue, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var out *models.Venue
	err := s.mutate(ctx, OpCreateVenue, actor, func(ctx context.Context, repos *repository.Repositories, u *unit) error {
		venue := &models.Venue{}
		in.apply(venue)
		if err := repos.Venues.Create(ctx, venue); err != nil {
			return err
		}
		u.log(slog.Uint64("venue_id", uint64(venue.ID)))
		out = venue
		return nil
	})
	return out, err
}

// UpdateVenue replaces a venue's descriptive fields.
func (s *BookingService) UpdateVenue(ctx context.Context, actor Actor, venueID uint, in VenueInput) (*models.Venue, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var out *models.Venue
	err := s.mutate(ctx, OpUpdateVenue, actor, func(ctx context.Context, repos *repository.Repositories, u *unit) error {
		venue, err := repos.Venues.GetForUpdate(ctx, venueID)
		if err != nil {
			return err
		}
		in.apply(venue)
		if err := repos.Venues.Update(ctx, venue); err != nil {
			return err
		}
		u.touch(venueID)
		u.log(slog.Uint64("venue_id", uint64(venueID)))
		out, err = repos.Venues.GetByID(ctx, venueID)
		return err
	})
	return out, err
}

// GetVenue returns one venue.
func (s *BookingService) GetVenue(ctx context.Context, actor Actor, venueID uint) (*models.Venue, error) {
	var out *models.Venue
	err := s.read(ctx, OpGetVenue, actor, func(ctx context.Context, repos *repository.Repositories, _ *unit) error {
		var err error
		out, err = repos.Venues.GetByID(ctx, venueID)
		return err
	})
	return out, err
}

// ListVenues lists venues, optionally of one sport type.
func (s *BookingService) ListVenues(ctx context.Context, actor Actor, sportType string, limit, offset int) ([]models.Venue, error) {
	limit, offset = repository.PageBounds(limit, offset)
	var out []models.Venue
	err := s.read(ctx, OpListVenues, actor, func(ctx context.Context, repos *repository.Repositories, _ *unit) error {
		var err error
		out, err = repos.Venues.List(ctx, strings.TrimSpace(sportType), limit, offset)
		return err
	})
	return out, err
}

// DeleteVenue removes a venue with all of its slots and their reservations.
func (s *BookingService) DeleteVenue(ctx context.Context, actor Actor, venueID uint) (*CascadeReport, error) {
	var out *CascadeReport
	err := s.mutate(ctx, OpDeleteVenue, actor, func(ctx context.Context, repos *repository.Repositories, u *unit) error {
		report, err := s.cascade.DeleteVenue(ctx, repos, venueID)
		if err != nil {
			return err
		}
		u.touch(report.VenueIDs...)
		u.log(
			slog.Uint64("venue_id", uint64(venueID)),
			slog.Int64("slots", report.Slots),
			slog.Int64("reservations", report.Reservations),
		)
		out = report
		return nil
	})
	return out, err
}

// CreateSlot adds an available slot to a venue.
func (s *BookingService) CreateSlot(ctx context.Context, actor Actor, in CreateSlotInput) (*models.Slot, error) {
	w := models.Window{Date: in.Date, Start: in.StartTime, End: in.EndTime}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	var out *models.Slot
	err := s.mutate(ctx, OpCreateSlot, actor, func(ctx context.Context, repos *repository.Repositories, u *unit) error {
		slot, err := s.slots.Create(ctx, repos, in.VenueID, w)
		if err != nil {
			return err
		}
		u.touch(slot.VenueID)
		u.log(slog.Uint64("slot_id", uint64(slot.ID)), slog.Uint64("venue_id", uint64(slot.VenueID)))
		out = slot
		return nil
	})
	return out, err
}

// UpdateSlot moves a free slot to a new window or repairs its stored status.
func (s *BookingService) UpdateSlot(ctx context.Context, actor Actor, slotID uint, in UpdateSlotInput) (*models.Slot, error) {
	if in.Window == nil && in.Status == nil {
		return nil, models.NewValidationError("nothing to update")
	}
	var out *models.Slot
	err := s.mutate(ctx, OpUpdateSlot, actor, func(ctx context.Context, repos *repository.Repositories, u *unit) error {
		slot, err := s.slots.Update(ctx, repos, slotID, in)
		if err != nil {
			return err
		}
		u.touch(slot.VenueID)
		u.log(slog.Uint64("slot_id", uint64(slotID)))
		out = slot
		return nil
	})
	return out, err
}

// DeleteSlot removes a slot no reservation references.
func (s *BookingService) DeleteSlot(ctx context.Context, actor Actor, slotID uint) error {
	return s.mutate(ctx, OpDeleteSlot, actor, func(ctx context.Context, repos *repository.Repositories, u *unit) error {
		slot, err := s.slots.Delete(ctx, repos, slotID)
		if err != nil {
			return err
		}
		u.touch(slot.VenueID)
		u.log(slog.Uint64("slot_id", uint64(slotID)))
		return nil
	})
}

// GetAvailability returns a venue summary and its slots with their
// effective status. Listings are served from the cache when present.
func (s *BookingService) GetAvailability(ctx context.Context, actor Actor, venueID uint, date string) (*Availability, error) {
	if date != "" {
		if _, err := time.Parse(models.DateLayout, date); err != nil {
			return nil, models.NewValidationError("date must use YYYY-MM-DD")
		}
	}

	var out *Availability
	err := s.read(ctx, OpGetAvailability, actor, func(ctx context.Context, repos *repository.Repositories, _ *unit) error {
		var cached Availability
		if s.cache.Fetch(ctx, venueID, date, &cached) {
			out = &cached
			return nil
		}
		gen, cacheable := s.cache.Generation(ctx, venueID)

		venue, err := repos.Venues.GetByID(ctx, venueID)
		if err != nil {
			return err
		}
		views, err := s.slots.Availability(ctx, repos, venueID, date)
		if err != nil {
			return err
		}
		out = &Availability{Venue: venue, Date: date, Slots: views}
		if cacheable {
			s.cache.Store(ctx, venueID, date, gen, out)
		}
		return nil
	})
	return out, err
}
