package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Windi-Fikriyansyah/gigbid/internal/services/review"
)

type ReviewHandler struct {
	Reviews *review.Service
}

func NewReviewHandler(reviews *review.Service) *ReviewHandler {
	return &ReviewHandler{Reviews: reviews}
}

func (h *ReviewHandler) Routes(r fiber.Router, g Guards) {
	r.Post("/bids/:id/review", g.Auth, h.Create)
	r.Get("/users/:id/reviews", h.ListForFreelancer)
}

type createReviewReq struct {
	Rating  int    `json:"rating" validate:"required,gte=1,lte=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

// Create rates the freelancer of an accepted bid. Only the bid's client may
// review, once.
func (h *ReviewHandler) Create(c *fiber.Ctx) error {
	userID, err := authUser(c)
	if err != nil {
		return err
	}
	bidID, err := paramUUID(c, "id")
	if err != nil {
		return err
	}

	var req createReviewReq
	if err := bind(c, &req); err != nil {
		return err
	}

	rv, err := h.Reviews.Create(c.UserContext(), bidID, userID, req.Rating, req.Comment)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusCreated, "review submitted", rv)
}

func (h *ReviewHandler) ListForFreelancer(c *fiber.Ctx) error {
	freelancerID, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	res, err := h.Reviews.ListForFreelancer(c.UserContext(), freelancerID, pageQuery(c))
	if err != nil {
		return err
	}
	return respondList(c, res.Items, res.Total, res.Page)
}
