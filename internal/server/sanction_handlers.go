package server

import (
	"courtbook/internal/models"
	"courtbook/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateSanction handles POST /api/sanctions
// @Summary Sanction a user
// @Description Blocks the user from reserving for duration_days.
// @Tags sanctions
// @Accept json
// @Produce json
// @Param request body service.ApplySanctionInput true "Sanction"
// @Success 201 {object} models.Response{data=models.Sanction}
// @Failure 400 {object} models.Response
// @Failure 404 {object} models.Response
// @Security BearerAuth
// @Router /sanctions [post]
func (s *Server) CreateSanction(c *fiber.Ctx) error {
	var in service.ApplySanctionInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}
	sanction, err := s.booking.CreateSanction(c.UserContext(), actor(c), in)
	if err != nil {
		return fail(c, err)
	}
	return models.RespondWithData(c, fiber.StatusCreated, "Sanction applied", sanction)
}

// LiftSanction handles POST /api/sanctions/:id/lift
func (s *Server) LiftSanction(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	sanction, err := s.booking.LiftSanction(c.UserContext(), actor(c), id)
	if err != nil {
		return fail(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, "Sanction lifted", sanction)
}

// ListActiveSanctions handles GET /api/sanctions/active
func (s *Server) ListActiveSanctions(c *fiber.Ctx) error {
	sanctions, err := s.booking.ListActiveSanctions(c.UserContext(), actor(c))
	if err != nil {
		return fail(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, "Active sanctions retrieved", sanctions)
}

// ListUserSanctions handles GET /api/sanctions/users/:userId
func (s *Server) ListUserSanctions(c *fiber.Ctx) error {
	userID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}
	sanctions, err := s.booking.ListUserSanctions(c.UserContext(), actor(c), userID)
	if err != nil {
		return fail(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, "Sanctions retrieved", sanctions)
}
