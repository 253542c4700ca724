package server

import (
	"courtbook/internal/models"
	"courtbook/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateSlot handles POST /api/slots
// @Summary Create slot
// @Tags slots
// @Accept json
// @Produce json
// @Param request body service.CreateSlotInput true "Slot"
// @Success 201 {object} models.Response{data=models.Slot}
// @Failure 409 {object} models.Response
// @Security BearerAuth
// @Router /slots [post]
func (s *Server) CreateSlot(c *fiber.Ctx) error {
	var in service.CreateSlotInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}
	slot, err := s.booking.CreateSlot(c.UserContext(), actor(c), in)
	if err != nil {
		return fail(c, err)
	}
	return models.RespondWithData(c, fiber.StatusCreated, "Slot created", slot)
}

// UpdateSlot handles PATCH /api/slots/:id. The body may carry a new
// window (date, start_time, end_time together) and/or a status.
func (s *Server) UpdateSlot(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Date      *string            `json:"date"`
		StartTime *string            `json:"start_time"`
		EndTime   *string            `json:"end_time"`
		Status    *models.SlotStatus `json:"status"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	in := service.UpdateSlotInput{Status: req.Status}
	if req.Date != nil || req.StartTime != nil || req.EndTime != nil {
		if req.Date == nil || req.StartTime == nil || req.EndTime == nil {
			return fail(c, models.NewValidationError("date, start_time and end_time must be updated together"))
		}
		in.Window = &models.Window{Date: *req.Date, Start: *req.StartTime, End: *req.EndTime}
	}

	slot, err := s.booking.UpdateSlot(c.UserContext(), actor(c), id, in)
	if err != nil {
		return fail(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, "Slot updated", slot)
}

// DeleteSlot handles DELETE /api/slots/:id
// @Summary Delete slot
// @Description Fails with 409 while any reservation references the slot.
// @Tags slots
// @Produce json
// @Param id path int true "Slot ID"
// @Success 200 {object} models.Response
// @Failure 409 {object} models.Response
// @Security BearerAuth
// @Router /slots/{id} [delete]
func (s *Server) DeleteSlot(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.booking.DeleteSlot(c.UserContext(), actor(c), id); err != nil {
		return fail(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, "Slot deleted", nil)
}
