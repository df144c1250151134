package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Windi-Fikriyansyah/gigbid/internal/middleware"
	"github.com/Windi-Fikriyansyah/gigbid/internal/models"
)

// Guards are the middleware chains routes pick from. Freelancer must follow
// Auth.
type Guards struct {
	Auth       fiber.Handler
	Optional   fiber.Handler
	Freelancer fiber.Handler
}

func NewGuards(tokens middleware.AccessVerifier) Guards {
	return Guards{
		Auth:       middleware.RequireAuth(tokens),
		Optional:   middleware.OptionalAuth(tokens),
		Freelancer: middleware.RequireRoles(models.RoleFreelancer),
	}
}

type Router struct {
	Auth          *AuthHandler
	Google        *GoogleOAuthHandler
	Profile       *ProfileHandler
	Categories    *CategoryHandler
	Gigs          *GigHandler
	Dashboard     *FreelancerDashboardHandler
	Bids          *BidHandler
	Reviews       *ReviewHandler
	Notifications *NotificationHandler

	// UploadDir is served under /uploads when set.
	UploadDir string
}

func (rt Router) Mount(app *fiber.App, g Guards) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	if rt.UploadDir != "" {
		app.Static("/uploads", rt.UploadDir)
	}

	api := app.Group("/api")

	rt.Auth.Routes(api, g)
	if rt.Google != nil {
		rt.Google.Routes(api)
	}
	rt.Profile.Routes(api, g)
	api.Get("/categories", rt.Categories.GetCategories)
	rt.Gigs.Routes(api, g)
	rt.Dashboard.Routes(api, g)
	rt.Reviews.Routes(api, g)
	rt.Bids.Routes(api, g)

	if rt.Notifications != nil {
		rt.Notifications.Routes(app)
	}
}
