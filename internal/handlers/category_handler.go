package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Windi-Fikriyansyah/gigbid/internal/services/gig"
)

type CategoryHandler struct {
	Gigs *gig.Service
}

func NewCategoryHandler(gigs *gig.Service) *CategoryHandler {
	return &CategoryHandler{Gigs: gigs}
}

// GetCategories lists the distinct categories of active gigs.
func (h *CategoryHandler) GetCategories(c *fiber.Ctx) error {
	categories, err := h.Gigs.Categories(c.UserContext())
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "", categories)
}
