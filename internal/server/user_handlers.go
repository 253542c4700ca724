package server

import (
	"courtbook/internal/models"

	"github.com/gofiber/fiber/v2"
)

// CheckBlocked handles GET /api/users/:id/block-status
// @Summary Reservation block status
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} models.Response{data=service.BlockStatus}
// @Failure 404 {object} models.Response
// @Router /users/{id}/block-status [get]
func (s *Server) CheckBlocked(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	status, err := s.booking.CheckBlocked(c.UserContext(), actor(c), id)
	if err != nil {
		return fail(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, "Block status retrieved", status)
}

// DeleteUser handles DELETE /api/users/:id
// @Summary Delete user
// @Description Deletes the user with their comments, profile, sanctions and reservations, releasing held slots.
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} models.Response{data=service.CascadeReport}
// @Failure 403 {object} models.Response
// @Security BearerAuth
// @Router /users/{id} [delete]
func (s *Server) DeleteUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	report, err := s.booking.DeleteUser(c.UserContext(), actor(c), id)
	if err != nil {
		return fail(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, "User deleted", report)
}
