package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/gigbid/internal/models"
	"github.com/Windi-Fikriyansyah/gigbid/internal/services/bid"
)

type BidHandler struct {
	Bids *bid.Service
}

func NewBidHandler(bids *bid.Service) *BidHandler {
	return &BidHandler{Bids: bids}
}

// Routes must be mounted after any other /bids/<word> route, since /bids/:id
// would swallow it.
func (h *BidHandler) Routes(r fiber.Router, g Guards) {
	r.Get("/gigs/:id/bids", g.Auth, h.GetGigBids)

	b := r.Group("/bids", g.Auth)
	b.Post("/", g.Freelancer, h.CreateBid)
	b.Get("/mine", g.Freelancer, h.GetMyBids)
	b.Get("/received", h.GetReceivedBids)
	b.Get("/:id", h.GetBid)
	b.Put("/:id", g.Freelancer, h.UpdateBid)
	b.Patch("/:id/status", h.UpdateStatus)
	b.Post("/:id/withdraw", g.Freelancer, h.Withdraw)
}

type createBidReq struct {
	GigID        string  `json:"gig_id" validate:"required,uuid"`
	Amount       float64 `json:"amount"`
	DeliveryTime int     `json:"delivery_time"`
	Proposal     string  `json:"proposal" validate:"required"`
}

type updateBidReq struct {
	Amount       *float64 `json:"amount"`
	DeliveryTime *int     `json:"delivery_time"`
	Proposal     *string  `json:"proposal"`
}

type updateStatusReq struct {
	Status string `json:"status" validate:"required,oneof=accepted rejected"`
}

func (h *BidHandler) CreateBid(c *fiber.Ctx) error {
	userID, err := authUser(c)
	if err != nil {
		return err
	}

	var req createBidReq
	if err := bind(c, &req); err != nil {
		return err
	}

	b, err := h.Bids.Create(c.UserContext(), bid.CreateInput{
		GigID:        uuid.MustParse(req.GigID),
		FreelancerID: userID,
		Amount:       req.Amount,
		DeliveryTime: req.DeliveryTime,
		Proposal:     req.Proposal,
	})
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusCreated, "bid submitted", b)
}

func (h *BidHandler) GetMyBids(c *fiber.Ctx) error {
	userID, err := authUser(c)
	if err != nil {
		return err
	}
	res, err := h.Bids.ListByFreelancer(c.UserContext(), userID, models.BidStatus(c.Query("status")), pageQuery(c))
	if err != nil {
		return err
	}
	return respondList(c, res.Items, res.Total, res.Page)
}

func (h *BidHandler) GetReceivedBids(c *fiber.Ctx) error {
	userID, err := authUser(c)
	if err != nil {
		return err
	}
	res, err := h.Bids.ListByClient(c.UserContext(), userID, models.BidStatus(c.Query("status")), pageQuery(c))
	if err != nil {
		return err
	}
	return respondList(c, res.Items, res.Total, res.Page)
}

func (h *BidHandler) GetGigBids(c *fiber.Ctx) error {
	userID, err := authUser(c)
	if err != nil {
		return err
	}
	gigID, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	res, err := h.Bids.ListByGig(c.UserContext(), gigID, userID, models.BidStatus(c.Query("status")), pageQuery(c))
	if err != nil {
		return err
	}
	return respondList(c, res.Items, res.Total, res.Page)
}

func (h *BidHandler) GetBid(c *fiber.Ctx) error {
	userID, err := authUser(c)
	if err != nil {
		return err
	}
	bidID, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	b, err := h.Bids.Get(c.UserContext(), bidID, userID)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "", b)
}

func (h *BidHandler) UpdateBid(c *fiber.Ctx) error {
	userID, err := authUser(c)
	if err != nil {
		return err
	}
	bidID, err := paramUUID(c, "id")
	if err != nil {
		return err
	}

	var req updateBidReq
	if err := bind(c, &req); err != nil {
		return err
	}

	b, err := h.Bids.UpdateContent(c.UserContext(), bidID, userID, bid.Patch{
		Amount:       req.Amount,
		DeliveryTime: req.DeliveryTime,
		Proposal:     req.Proposal,
	})
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "bid updated", b)
}

// UpdateStatus lets the gig owner accept or reject a pending bid.
func (h *BidHandler) UpdateStatus(c *fiber.Ctx) error {
	userID, err := authUser(c)
	if err != nil {
		return err
	}
	bidID, err := paramUUID(c, "id")
	if err != nil {
		return err
	}

	var req updateStatusReq
	if err := bind(c, &req); err != nil {
		return err
	}

	b, err := h.Bids.SetStatus(c.UserContext(), bidID, userID, models.BidStatus(req.Status))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "bid "+string(b.Status), b)
}

func (h *BidHandler) Withdraw(c *fiber.Ctx) error {
	userID, err := authUser(c)
	if err != nil {
		return err
	}
	bidID, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	b, err := h.Bids.Withdraw(c.UserContext(), bidID, userID)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, "bid withdrawn", b)
}
