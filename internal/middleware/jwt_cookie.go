package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/Windi-Fikriyansyah/gigbid/internal/errs"
	"github.com/Windi-Fikriyansyah/gigbid/internal/services/token"
)

const (
	AccessCookie  = "gb_token"
	RefreshCookie = "gb_refresh"
)

// AccessVerifier is the part of the token service the middleware needs.
type AccessVerifier interface {
	VerifyAccessToken(raw string) (*token.AccessClaims, error)
}

// bearerOrCookie takes the access token from "Authorization: Bearer" first,
// then from the access cookie.
func bearerOrCookie(c *fiber.Ctx) string {
	if h := c.Get(fiber.HeaderAuthorization); h != "" {
		if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
			return strings.TrimSpace(h[7:])
		}
	}
	return c.Cookies(AccessCookie)
}

// RequireAuth rejects requests without a valid access token.
func RequireAuth(tokens AccessVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := bearerOrCookie(c)
		if raw == "" {
			return errs.Unauthorized("missing access token")
		}
		claims, err := tokens.VerifyAccessToken(raw)
		if err != nil {
			return err
		}
		attachClaims(c, claims)
		return c.Next()
	}
}

// OptionalAuth attaches the caller when a valid token is present and
// otherwise proceeds anonymously. Token errors are swallowed.
func OptionalAuth(tokens AccessVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if raw := bearerOrCookie(c); raw != "" {
			if claims, err := tokens.VerifyAccessToken(raw); err == nil {
				attachClaims(c, claims)
			}
		}
		return c.Next()
	}
}
