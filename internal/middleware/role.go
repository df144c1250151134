package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Windi-Fikriyansyah/gigbid/internal/errs"
	"github.com/Windi-Fikriyansyah/gigbid/internal/models"
)

// RequireRoles must run after RequireAuth.
func RequireRoles(allowed ...models.Role) fiber.Handler {
	allowedSet := map[models.Role]bool{}
	for _, r := range allowed {
		allowedSet[r] = true
	}

	return func(c *fiber.Ctx) error {
		if _, ok := UserID(c); !ok {
			return errs.Unauthorized("missing access token")
		}
		if !allowedSet[Role(c)] {
			return errs.Forbidden("forbidden: insufficient role")
		}
		return c.Next()
	}
}
