package server

import (
	"courtbook/internal/models"
	"courtbook/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ListVenues handles GET /api/venues
// @Summary List venues
// @Tags venues
// @Produce json
// @Param sport_type query string false "Filter by sport type"
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset"
// @Success 200 {object} models.Response{data=[]models.Venue}
// @Router /venues [get]
func (s *Server) ListVenues(c *fiber.Ctx) error {
	page := parsePagination(c)
	venues, err := s.booking.ListVenues(c.UserContext(), actor(c), c.Query("sport_type"), page.Limit, page.Offset)
	if err != nil {
		return fail(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, "Venues retrieved", venues)
}

// GetVenue handles GET /api/venues/:id
func (s *Server) GetVenue(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	venue, err := s.booking.GetVenue(c.UserContext(), actor(c), id)
	if err != nil {
		return fail(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, "Venue retrieved", venue)
}

// GetAvailability handles GET /api/venues/:id/availability
// @Summary Venue availability
// @Description Venue summary and its slots with their effective status.
// @Tags venues
// @Produce json
// @Param id path int true "Venue ID"
// @Param date query string false "Date (YYYY-MM-DD)"
// @Success 200 {object} models.Response{data=service.Availability}
// @Failure 404 {object} models.Response
// @Router /venues/{id}/availability [get]
func (s *Server) GetAvailability(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	availability, err := s.booking.GetAvailability(c.UserContext(), actor(c), id, c.Query("date"))
	if err != nil {
		return fail(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, "Availability retrieved", availability)
}

// CreateVenue handles POST /api/venues
// @Summary Create venue
// @Tags venues
// @Accept json
// @Produce json
// @Param request body service.VenueInput true "Venue"
// @Success 201 {object} models.Response{data=models.Venue}
// @Failure 400 {object} models.Response
// @Failure 403 {object} models.Response
// @Security BearerAuth
// @Router /venues [post]
func (s *Server) CreateVenue(c *fiber.Ctx) error {
	var in service.VenueInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}
	venue, err := s.booking.CreateVenue(c.UserContext(), actor(c), in)
	if err != nil {
		return fail(c, err)
	}
	return models.RespondWithData(c, fiber.StatusCreated, "Venue created", venue)
}

// UpdateVenue handles PUT /api/venues/:id
func (s *Server) UpdateVenue(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var in service.VenueInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}
	venue, err := s.booking.UpdateVenue(c.UserContext(), actor(c), id, in)
	if err != nil {
		return fail(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, "Venue updated", venue)
}

// DeleteVenue handles DELETE /api/venues/:id
// @Summary Delete venue
// @Description Deletes the venue with all of its slots and their reservations.
// @Tags venues
// @Produce json
// @Param id path int true "Venue ID"
// @Success 200 {object} models.Response{data=service.CascadeReport}
// @Failure 404 {object} models.Response
// @Security BearerAuth
// @Router /venues/{id} [delete]
func (s *Server) DeleteVenue(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	report, err := s.booking.DeleteVenue(c.UserContext(), actor(c), id)
	if err != nil {
		return fail(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, "Venue deleted", report)
}
