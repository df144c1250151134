package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/gigbid/internal/models"
	"github.com/Windi-Fikriyansyah/gigbid/internal/services/token"
)

const (
	localUserID = "userId"
	localRole   = "role"
	localEmail  = "email"
)

func attachClaims(c *fiber.Ctx, claims *token.AccessClaims) {
	// VerifyAccessToken already checked the id parses.
	id, _ := uuid.Parse(claims.UserID)
	c.Locals(localUserID, id)
	c.Locals(localRole, claims.Role)
	c.Locals(localEmail, claims.Email)
}

// UserID returns the authenticated caller, if any.
func UserID(c *fiber.Ctx) (uuid.UUID, bool) {
	id, ok := c.Locals(localUserID).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

func Role(c *fiber.Ctx) models.Role {
	r, _ := c.Locals(localRole).(models.Role)
	return r
}
