package middleware

import (
	"strconv"
	"strings"

	"courtbook/internal/config"
	"courtbook/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

var cfg *config.Config

// InitMiddleware initializes authentication middleware with the given config.
func InitMiddleware(c *config.Config) {
	cfg = c
}

// AuthRequired rejects requests without a valid bearer token. The verified
// subject and role are stored in c.Locals("userID") and c.Locals("role").
func AuthRequired(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Authorization header required"))
	}

	userID, role, err := parseBearer(authHeader)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusUnauthorized, err)
	}

	c.Locals("userID", userID)
	c.Locals("role", role)
	return c.Next()
}

// OptionalAuth populates the actor locals when a valid token is present and
// otherwise lets the request through anonymously.
func OptionalAuth(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return c.Next()
	}
	if userID, role, err := parseBearer(authHeader); err == nil {
		c.Locals("userID", userID)
		c.Locals("role", role)
	}
	return c.Next()
}

func parseBearer(header string) (uint, models.Role, error) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return 0, "", models.NewUnauthorizedError("Invalid authorization header format")
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if cfg.JWTIssuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.JWTIssuer))
	}
	if cfg.JWTAudience != "" {
		opts = append(opts, jwt.WithAudience(cfg.JWTAudience))
	}

	token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
		}
		return []byte(cfg.JWTSecret), nil
	}, opts...)
	if err != nil || !token.Valid {
		return 0, "", models.NewUnauthorizedError("Invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, "", models.NewUnauthorizedError("Invalid token claims")
	}

	// Subject claim per RFC 7519
	subStr, err := claims.GetSubject()
	if err != nil || subStr == "" {
		return 0, "", models.NewUnauthorizedError("Invalid token structure - missing subject")
	}
	userIDVal, err := strconv.ParseUint(subStr, 10, 32)
	if err != nil || userIDVal == 0 {
		return 0, "", models.NewUnauthorizedError("Invalid user ID in token")
	}

	role := models.RoleUser
	if raw, ok := claims["role"].(string); ok && raw != "" {
		role = models.Role(strings.ToLower(raw))
	}
	if !role.Valid() {
		return 0, "", models.NewUnauthorizedError("Invalid role in token")
	}

	return uint(userIDVal), role, nil
}
