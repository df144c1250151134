package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/gigbid/internal/errs"
	"github.com/Windi-Fikriyansyah/gigbid/internal/middleware"
	"github.com/Windi-Fikriyansyah/gigbid/internal/models"
	"github.com/Windi-Fikriyansyah/gigbid/internal/services/gig"
	"github.com/Windi-Fikriyansyah/gigbid/internal/store"
)

type GigHandler struct {
	Gigs *gig.Service
}

func NewGigHandler(gigs *gig.Service) *GigHandler {
	return &GigHandler{Gigs: gigs}
}

func (h *GigHandler) Routes(r fiber.Router, g Guards) {
	r.Get("/gigs", g.Optional, h.ListPublic)
	r.Get("/gigs/:id", g.Optional, h.GetDetail)
	r.Post("/gigs", g.Auth, g.Freelancer, h.Create)
	r.Put("/gigs/:id", g.Auth, g.Freelancer, h.Update)
	r.Delete("/gigs/:id", g.Auth, g.Freelancer, h.Deactivate)
}

type gigReq struct {
	Title        string   `json:"title" validate:"required"`
	Description  string   `json:"description" validate:"required"`
	Category     string   `json:"category" validate:"required"`
	Subcategory  string   `json:"subcategory"`
	PricingType  string   `json:"pricing_type" validate:"required,oneof=fixed hourly"`
	Amount       float64  `json:"amount"`
	DeliveryDays int      `json:"delivery_days"`
	Tags         []string `json:"tags"`
}

type gigPatchReq struct {
	Title        *string  `json:"title"`
	Description  *string  `json:"description"`
	Category     *string  `json:"category"`
	Subcategory  *string  `json:"subcategory"`
	PricingType  *string  `json:"pricing_type" validate:"omitempty,oneof=fixed hourly"`
	Amount       *float64 `json:"amount"`
	DeliveryDays *int     `json:"delivery_days"`
	Tags         []string `json:"tags"`
	IsActive     *bool    `json:"is_active"`
}

func (h *GigHandler) Create(c *fiber.Ctx) error {
	userID, err := authUser(c)
	if err != nil {
		return err
	}

	var req gigReq
	if err := bind(c, &req); err != nil {
		return err
	}

	g, err := h.Gigs.Create(c.UserContext(), userID, gig.Input{
		Title:        req.Title,
		Description:  req.Description,
		Category:     req.Category,
		Subcategory:  req.Subcategory,
		PricingType:  models.PricingType(req.PricingType),
		Amount:       req.Amount,
		DeliveryDays: req.DeliveryDays,
		Tags:         req.Tags,
	})
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusCreated, "gig created", g)
}

func (h *GigHandler) Update(c *fiber.Ctx) error {
	userID, err := authUser(c)
	if err != nil {
		return err
	}
	gigID, err := paramUUID(c, "id")
	if err != nil {
		return err
	}

	var req gigPatchReq
	if err := bind(c, &req); err != nil {
		return err
	}

	p := gig.Patch{
		Title:        req.Title,
		Description:  req.Description,
		Category:     req.Category,
		Subcategory:  req.Subcategory,
		Amount:       req.Amount,
		DeliveryDays: req.DeliveryDays,
		Tags:         req.Tags,
		IsActive:     req.IsActive,
	}
	if req.PricingType != nil {
		pt := models.PricingType(*req.PricingType)
		p.PricingType = &pt
	}

	g, err := h.Gigs.Update(c.UserContext(), gigID, userID, p)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "gig updated", g)
}

func (h *GigHandler) Deactivate(c *fiber.Ctx) error {
	userID, err := authUser(c)
	if err != nil {
		return err
	}
	gigID, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.Gigs.Deactivate(c.UserContext(), gigID, userID); err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "gig deactivated", nil)
}

func (h *GigHandler) GetDetail(c *fiber.Ctx) error {
	gigID, err := paramUUID(c, "id")
	if err != nil {
		return err
	}

	var viewer *uuid.UUID
	if id, ok := middleware.UserID(c); ok {
		viewer = &id
	}
	g, err := h.Gigs.Get(c.UserContext(), gigID, viewer)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "", g)
}

// ListPublic filters by ?category=, ?freelancer_id= and ?q=. Owners may add
// ?include_inactive=true when listing their own gigs.
func (h *GigHandler) ListPublic(c *fiber.Ctx) error {
	f := store.GigFilter{
		Category: c.Query("category"),
		Search:   c.Query("q"),
		Page:     pageQuery(c),
	}

	if raw := c.Query("freelancer_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return errs.BadRequest("invalid freelancer_id")
		}
		f.FreelancerID = &id
		if viewer, ok := middleware.UserID(c); ok && viewer == id {
			f.IncludeInactive = c.QueryBool("include_inactive", false)
		}
	}

	res, err := h.Gigs.List(c.UserContext(), f)
	if err != nil {
		return err
	}
	return respondList(c, res.Items, res.Total, res.Page)
}
