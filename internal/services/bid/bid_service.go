// Package bid implements the bid lifecycle: one bid per freelancer and gig,
// transitions only out of pending, and acceptance rejecting every competing
// pending bid.
package bid

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Windi-Fikriyansyah/gigbid/internal/errs"
	"github.com/Windi-Fikriyansyah/gigbid/internal/models"
	"github.com/Windi-Fikriyansyah/gigbid/internal/store"
)

const (
	EventBidCreated   = "bid_created"
	EventBidUpdated   = "bid_updated"
	EventBidAccepted  = "bid_accepted"
	EventBidRejected  = "bid_rejected"
	EventBidWithdrawn = "bid_withdrawn"
)

const (
	msgGigNotFound    = "gig not found"
	msgBidNotFound    = "bid not found"
	msgBidUnavailable = "bid not found or cannot be modified"

	minAmount      = 5
	minDelivery    = 1
	maxDelivery    = 365
	minProposalLen = 50
	maxProposalLen = 1000
)

// Notifier delivers an event to one user. Failures are logged by the caller
// and never fail the operation.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, event string, payload any) error
}

type Service struct {
	bids     store.BidStore
	gigs     store.GigStore
	notifier Notifier
	log      zerolog.Logger
}

func NewService(bids store.BidStore, gigs store.GigStore, notifier Notifier, log zerolog.Logger) *Service {
	return &Service{
		bids:     bids,
		gigs:     gigs,
		notifier: notifier,
		log:      log.With().Str("component", "bid").Logger(),
	}
}

type CreateInput struct {
	GigID        uuid.UUID
	FreelancerID uuid.UUID
	Amount       float64
	DeliveryTime int
	Proposal     string
}

// Patch holds the editable bid fields. Nil fields are left alone.
type Patch struct {
	Amount       *float64
	DeliveryTime *int
	Proposal     *string
}

func (s *Service) Create(ctx context.Context, in CreateInput) (models.Bid, error) {
	proposal := strings.TrimSpace(in.Proposal)
	if err := validateContent(in.Amount, in.DeliveryTime, proposal); err != nil {
		return models.Bid{}, err
	}

	g, err := s.gigs.FindGigByID(ctx, in.GigID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Bid{}, errs.NotFound(msgGigNotFound)
		}
		return models.Bid{}, errs.Internal(err)
	}
	if !g.IsActive {
		return models.Bid{}, errs.NotFound(msgGigNotFound)
	}
	if g.FreelancerID == in.FreelancerID {
		return models.Bid{}, errs.BadRequest("you cannot bid on your own gig")
	}

	if _, err := s.bids.FindBidByGigAndFreelancer(ctx, g.ID, in.FreelancerID); err == nil {
		return models.Bid{}, errs.Conflict("you have already placed a bid on this gig")
	} else if !errors.Is(err, store.ErrNotFound) {
		return models.Bid{}, errs.Internal(err)
	}

	b := models.Bid{
		GigID:        g.ID,
		FreelancerID: in.FreelancerID,
		ClientID:     g.FreelancerID,
		Amount:       in.Amount,
		DeliveryTime: in.DeliveryTime,
		Proposal:     proposal,
		Status:       models.BidPending,
	}
	if err := s.bids.CreateBid(ctx, &b); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return models.Bid{}, errs.Conflict("you have already placed a bid on this gig")
		}
		return models.Bid{}, errs.Internal(err)
	}

	s.log.Info().Str("bid_id", b.ID.String()).Str("gig_id", g.ID.String()).Msg("bid created")
	s.notify(ctx, b.ClientID, EventBidCreated, b)
	return b, nil
}

// UpdateContent edits a pending bid on behalf of its freelancer.
func (s *Service) UpdateContent(ctx context.Context, bidID, freelancerID uuid.UUID, p Patch) (models.Bid, error) {
	owner := func(b models.Bid) bool { return b.FreelancerID == freelancerID }

	updated, err := s.transition(ctx, bidID, owner, func(tx store.BidStore, b *models.Bid) error {
		if p.Amount != nil {
			b.Amount = *p.Amount
		}
		if p.DeliveryTime != nil {
			b.DeliveryTime = *p.DeliveryTime
		}
		if p.Proposal != nil {
			b.Proposal = strings.TrimSpace(*p.Proposal)
		}
		if err := validateContent(b.Amount, b.DeliveryTime, b.Proposal); err != nil {
			return err
		}
		return tx.UpdateBid(ctx, b)
	})
	if err != nil {
		return models.Bid{}, err
	}

	s.notify(ctx, updated.ClientID, EventBidUpdated, updated)
	return updated, nil
}

// SetStatus accepts or rejects a pending bid on behalf of its client.
// Accepting also rejects every other pending bid of the gig in the same
// transaction.
func (s *Service) SetStatus(ctx context.Context, bidID, clientID uuid.UUID, status models.BidStatus) (models.Bid, error) {
	if status != models.BidAccepted && status != models.BidRejected {
		return models.Bid{}, errs.Validation(map[string][]string{
			"status": {"must be accepted or rejected"},
		})
	}

	var rejected []models.Bid
	client := func(b models.Bid) bool { return b.ClientID == clientID }

	updated, err := s.transition(ctx, bidID, client, func(tx store.BidStore, b *models.Bid) error {
		if status == models.BidAccepted {
			siblings, err := tx.RejectPendingBids(ctx, b.GigID, b.ID)
			if err != nil {
				return err
			}
			rejected = siblings
		}
		b.Status = status
		return tx.UpdateBid(ctx, b)
	})
	if err != nil {
		return models.Bid{}, err
	}

	ev := s.log.Info().Str("bid_id", updated.ID.String()).Str("status", string(status))
	if status == models.BidAccepted {
		ev = ev.Int("rejected_siblings", len(rejected))
	}
	ev.Msg("bid status changed")

	if status == models.BidAccepted {
		s.notify(ctx, updated.FreelancerID, EventBidAccepted, updated)
	} else {
		s.notify(ctx, updated.FreelancerID, EventBidRejected, updated)
	}
	for _, r := range rejected {
		s.notify(ctx, r.FreelancerID, EventBidRejected, r)
	}
	return updated, nil
}

func (s *Service) Withdraw(ctx context.Context, bidID, freelancerID uuid.UUID) (models.Bid, error) {
	owner := func(b models.Bid) bool { return b.FreelancerID == freelancerID }

	updated, err := s.transition(ctx, bidID, owner, func(tx store.BidStore, b *models.Bid) error {
		b.Status = models.BidWithdrawn
		return tx.UpdateBid(ctx, b)
	})
	if err != nil {
		return models.Bid{}, err
	}

	s.notify(ctx, updated.ClientID, EventBidWithdrawn, updated)
	return updated, nil
}

// Get returns a bid to one of its two parties.
func (s *Service) Get(ctx context.Context, bidID, userID uuid.UUID) (models.Bid, error) {
	b, err := s.bids.FindBidByID(ctx, bidID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Bid{}, errs.NotFound(msgBidNotFound)
		}
		return models.Bid{}, errs.Internal(err)
	}
	if !b.VisibleTo(userID) {
		return models.Bid{}, errs.Hidden(msgBidNotFound)
	}
	if g, err := s.gigs.FindGigByID(ctx, b.GigID); err == nil {
		b.Gig = &g
	}
	return b, nil
}

type ListResult struct {
	Items []models.Bid
	Total int64
	Page  store.Page
}

func (s *Service) ListByFreelancer(ctx context.Context, freelancerID uuid.UUID, status models.BidStatus, page store.Page) (ListResult, error) {
	return s.list(ctx, store.BidFilter{FreelancerID: &freelancerID, Status: status, Page: page})
}

func (s *Service) ListByClient(ctx context.Context, clientID uuid.UUID, status models.BidStatus, page store.Page) (ListResult, error) {
	return s.list(ctx, store.BidFilter{ClientID: &clientID, Status: status, Page: page})
}

// ListByGig returns every bid of the gig to its owner and only the caller's
// own bid to anyone else.
func (s *Service) ListByGig(ctx context.Context, gigID, userID uuid.UUID, status models.BidStatus, page store.Page) (ListResult, error) {
	g, err := s.gigs.FindGigByID(ctx, gigID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ListResult{}, errs.NotFound(msgGigNotFound)
		}
		return ListResult{}, errs.Internal(err)
	}

	f := store.BidFilter{GigID: &g.ID, Status: status, Page: page}
	if g.FreelancerID != userID {
		f.FreelancerID = &userID
	}
	return s.list(ctx, f)
}

type Stats struct {
	Total     int64 `json:"total"`
	Pending   int64 `json:"pending"`
	Accepted  int64 `json:"accepted"`
	Rejected  int64 `json:"rejected"`
	Withdrawn int64 `json:"withdrawn"`
}

func (s *Service) Stats(ctx context.Context, freelancerID uuid.UUID) (Stats, error) {
	counts, err := s.bids.CountBidsByStatus(ctx, freelancerID)
	if err != nil {
		return Stats{}, errs.Internal(err)
	}
	st := Stats{
		Pending:   counts[models.BidPending],
		Accepted:  counts[models.BidAccepted],
		Rejected:  counts[models.BidRejected],
		Withdrawn: counts[models.BidWithdrawn],
	}
	st.Total = st.Pending + st.Accepted + st.Rejected + st.Withdrawn
	return st, nil
}

func (s *Service) list(ctx context.Context, f store.BidFilter) (ListResult, error) {
	if f.Status != "" && !f.Status.Valid() {
		return ListResult{}, errs.Validation(map[string][]string{
			"status": {"must be one of pending, accepted, rejected, withdrawn"},
		})
	}
	f.Page = f.Page.Normalize(store.BidSorts...)
	items, total, err := s.bids.ListBids(ctx, f)
	if err != nil {
		return ListResult{}, errs.Internal(err)
	}
	return ListResult{Items: items, Total: total, Page: f.Page}, nil
}

// transition runs fn on a pending bid the caller is allowed to change, inside
// a transaction holding the gig lock. Missing bids, bids of someone else and
// bids no longer pending all fail with the same NotFound message.
func (s *Service) transition(ctx context.Context, bidID uuid.UUID, allowed func(models.Bid) bool, fn func(tx store.BidStore, b *models.Bid) error) (models.Bid, error) {
	current, err := s.bids.FindBidByID(ctx, bidID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Bid{}, errs.NotFound(msgBidUnavailable)
		}
		return models.Bid{}, errs.Internal(err)
	}
	if !allowed(current) {
		return models.Bid{}, errs.Hidden(msgBidUnavailable)
	}

	var out models.Bid
	err = s.bids.Transaction(ctx, func(tx store.BidStore) error {
		if err := tx.LockGig(ctx, current.GigID); err != nil {
			return err
		}
		b, err := tx.FindBidByID(ctx, bidID)
		if err != nil {
			return err
		}
		if b.Status != models.BidPending {
			return errs.Hidden(msgBidUnavailable)
		}
		if err := fn(tx, &b); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		var e *errs.Error
		switch {
		case errors.As(err, &e):
			return models.Bid{}, e
		case errors.Is(err, store.ErrNotFound):
			return models.Bid{}, errs.NotFound(msgBidUnavailable)
		default:
			return models.Bid{}, errs.Internal(err)
		}
	}
	return out, nil
}

func (s *Service) notify(ctx context.Context, userID uuid.UUID, event string, b models.Bid) {
	if s.notifier == nil {
		return
	}
	b.Gig = nil
	if err := s.notifier.Notify(ctx, userID, event, b); err != nil {
		s.log.Warn().Err(err).Str("event", event).Str("user_id", userID.String()).Msg("notification failed")
	}
}

func validateContent(amount float64, delivery int, proposal string) error {
	fields := map[string][]string{}
	if amount < minAmount {
		fields["amount"] = append(fields["amount"], "must be at least 5")
	}
	if delivery < minDelivery || delivery > maxDelivery {
		fields["delivery_time"] = append(fields["delivery_time"], "must be between 1 and 365 days")
	}
	if n := utf8.RuneCountInString(proposal); n < minProposalLen || n > maxProposalLen {
		fields["proposal"] = append(fields["proposal"], "must be between 50 and 1000 characters")
	}
	if len(fields) > 0 {
		return errs.Validation(fields)
	}
	return nil
}
