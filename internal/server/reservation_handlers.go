package server

import (
	"strings"

	"courtbook/internal/models"
	"courtbook/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateReservation handles POST /api/reservations
// @Summary Reserve a slot
// @Description Creates a pending reservation. Fails with 409 when the slot is taken or overlaps another reservation, 403 when the user is blocked.
// @Tags reservations
// @Accept json
// @Produce json
// @Param request body service.CreateReservationInput true "Reservation"
// @Success 201 {object} models.Response{data=models.Reservation}
// @Failure 403 {object} models.Response
// @Failure 404 {object} models.Response
// @Failure 409 {object} models.Response
// @Security BearerAuth
// @Router /reservations [post]
func (s *Server) CreateReservation(c *fiber.Ctx) error {
	var in service.CreateReservationInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}
	reservation, err := s.booking.CreateReservation(c.UserContext(), actor(c), in)
	if err != nil {
		return fail(c, err)
	}
	return models.RespondWithData(c, fiber.StatusCreated, "Reservation created", reservation)
}

// ListReservations handles GET /api/reservations
// @Summary List reservations
// @Description Users see their own reservations; administrators may filter by user_id.
// @Tags reservations
// @Produce json
// @Param status query string false "pending, confirmed, cancelled or completed"
// @Param date_from query string false "Earliest slot date (YYYY-MM-DD)"
// @Param date_to query string false "Latest slot date (YYYY-MM-DD)"
// @Param user_id query int false "Owner (administrators only)"
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset"
// @Success 200 {object} models.Response{data=service.ReservationPage}
// @Security BearerAuth
// @Router /reservations [get]
func (s *Server) ListReservations(c *fiber.Ctx) error {
	page := parsePagination(c)
	q := service.ReservationQuery{
		Status:   models.ReservationStatus(strings.ToLower(strings.TrimSpace(c.Query("status")))),
		DateFrom: c.Query("date_from"),
		DateTo:   c.Query("date_to"),
		Limit:    page.Limit,
		Offset:   page.Offset,
	}
	if raw := c.Query("user_id"); raw != "" {
		userID := c.QueryInt("user_id", 0)
		if userID <= 0 {
			return fail(c, models.NewValidationError("Invalid user_id"))
		}
		id := uint(userID)
		q.UserID = &id
	}

	result, err := s.booking.ListReservations(c.UserContext(), actor(c), q)
	if err != nil {
		return fail(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, "Reservations retrieved", result)
}

// GetReservation handles GET /api/reservations/:id
func (s *Server) GetReservation(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	reservation, err := s.booking.GetReservation(c.UserContext(), actor(c), id)
	if err != nil {
		return fail(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, "Reservation retrieved", reservation)
}

// CancelReservation handles POST /api/reservations/:id/cancel
// @Summary Cancel reservation
// @Tags reservations
// @Accept json
// @Produce json
// @Param id path int true "Reservation ID"
// @Param request body object{reason=string} false "Cancellation reason"
// @Success 200 {object} models.Response{data=models.Reservation}
// @Failure 403 {object} models.Response
// @Failure 409 {object} models.Response
// @Security BearerAuth
// @Router /reservations/{id}/cancel [post]
func (s *Server) CancelReservation(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return nil
		}
	}
	reservation, err := s.booking.CancelReservation(c.UserContext(), actor(c), id, strings.TrimSpace(req.Reason))
	if err != nil {
		return fail(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, "Reservation cancelled", reservation)
}

// ConfirmReservation handles POST /api/reservations/:id/confirm
func (s *Server) ConfirmReservation(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	reservation, err := s.booking.ConfirmReservation(c.UserContext(), actor(c), id)
	if err != nil {
		return fail(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, "Reservation confirmed", reservation)
}

// CompleteReservation handles POST /api/reservations/:id/complete
func (s *Server) CompleteReservation(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	reservation, err := s.booking.CompleteReservation(c.UserContext(), actor(c), id)
	if err != nil {
		return fail(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, "Reservation completed", reservation)
}
