package review

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Windi-Fikriyansyah/gigbid/internal/errs"
	"github.com/Windi-Fikriyansyah/gigbid/internal/models"
	"github.com/Windi-Fikriyansyah/gigbid/internal/store"
)

const msgNotReviewable = "bid not found or cannot be reviewed"

type Service struct {
	reviews store.ReviewStore
	bids    store.BidStore
	log     zerolog.Logger
}

func NewService(reviews store.ReviewStore, bids store.BidStore, log zerolog.Logger) *Service {
	return &Service{
		reviews: reviews,
		bids:    bids,
		log:     log.With().Str("component", "review").Logger(),
	}
}

// Create records the client's rating of an accepted bid. The store folds it
// into the freelancer's rating aggregate in the same write, so a failed call
// leaves neither behind and can be retried. Each bid can be reviewed once.
func (s *Service) Create(ctx context.Context, bidID, clientID uuid.UUID, rating int, comment string) (models.Review, error) {
	if rating < 1 || rating > 5 {
		return models.Review{}, errs.Validation(map[string][]string{"rating": {"must be between 1 and 5"}})
	}

	b, err := s.bids.FindBidByID(ctx, bidID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Review{}, errs.NotFound(msgNotReviewable)
		}
		return models.Review{}, errs.Internal(err)
	}
	if b.ClientID != clientID || b.Status != models.BidAccepted {
		return models.Review{}, errs.Hidden(msgNotReviewable)
	}

	r := models.Review{
		BidID:        b.ID,
		GigID:        b.GigID,
		ClientID:     b.ClientID,
		FreelancerID: b.FreelancerID,
		Rating:       rating,
		Comment:      strings.TrimSpace(comment),
	}
	if err := s.reviews.CreateReview(ctx, &r); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return models.Review{}, errs.Conflict("this bid has already been reviewed")
		}
		return models.Review{}, errs.Internal(err)
	}

	s.log.Info().Str("review_id", r.ID.String()).Str("freelancer_id", r.FreelancerID.String()).Int("rating", rating).Msg("review created")
	return r, nil
}

type ListResult struct {
	Items []models.Review
	Total int64
	Page  store.Page
}

func (s *Service) ListForFreelancer(ctx context.Context, freelancerID uuid.UUID, page store.Page) (ListResult, error) {
	page = page.Normalize("created_at", "rating")
	items, total, err := s.reviews.ListReviews(ctx, freelancerID, page)
	if err != nil {
		return ListResult{}, errs.Internal(err)
	}
	return ListResult{Items: items, Total: total, Page: page}, nil
}
