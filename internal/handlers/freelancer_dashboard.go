package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Windi-Fikriyansyah/gigbid/internal/services/bid"
)

type FreelancerDashboardHandler struct {
	Bids *bid.Service
}

func NewFreelancerDashboardHandler(bids *bid.Service) *FreelancerDashboardHandler {
	return &FreelancerDashboardHandler{Bids: bids}
}

func (h *FreelancerDashboardHandler) Routes(r fiber.Router, g Guards) {
	r.Get("/bids/stats", g.Auth, g.Freelancer, h.GetDashboardStats)
}

// GetDashboardStats returns the caller's bid counts per status.
func (h *FreelancerDashboardHandler) GetDashboardStats(c *fiber.Ctx) error {
	userID, err := authUser(c)
	if err != nil {
		return err
	}
	stats, err := h.Bids.Stats(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "", stats)
}
