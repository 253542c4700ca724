package server

import (
	"errors"

	"courtbook/internal/models"
	"courtbook/internal/repository"
	"courtbook/internal/service"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// Pagination holds parsed limit/offset query parameters.
type Pagination struct {
	Limit  int
	Offset int
}

// parsePagination extracts limit and offset query parameters.
func parsePagination(c *fiber.Ctx) Pagination {
	limit, offset := repository.PageBounds(c.QueryInt("limit", repository.DefaultPageSize), c.QueryInt("offset", 0))
	return Pagination{Limit: limit, Offset: offset}
}

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+param))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// parseBody decodes the JSON body into dst, writing a 400 on failure.
func parseBody(c *fiber.Ctx, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
		return errResponseWritten
	}
	return nil
}

// actor returns the authenticated caller, or an anonymous actor.
func actor(c *fiber.Ctx) service.Actor {
	a := service.Actor{}
	if id, ok := c.Locals("userID").(uint); ok {
		a.UserID = id
	}
	if role, ok := c.Locals("role").(models.Role); ok {
		a.Role = role
	}
	return a
}

// fail writes a service error with the status derived from its code.
func fail(c *fiber.Ctx, err error) error {
	return models.RespondWithError(c, 0, err)
}

