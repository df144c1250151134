package gig

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

const msgGigNotFound = "gig not found"

type Service struct {
	gigs store.GigStore
	log  zerolog.Logger
}

func NewService(gigs store.GigStore, log zerolog.Logger) *Service {
	return &Service{gigs: gigs, log: log.With().Str("component", "gig").Logger()}
}

type Input struct {
	Title        string
	Description  string
	Category     string
	Subcategory  string
	PricingType  models.PricingType
	Amount       float64
	DeliveryDays int
	Tags         []string
}

// Patch holds the editable gig fields. Nil fields are left alone.
type Patch struct {
	Title        *string
	Description  *string
	Category     *string
	Subcategory  *string
	PricingType  *models.PricingType
	Amount       *float64
	DeliveryDays *int
	Tags         []string
	IsActive     *bool
}

func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, in Input) (models.Gig, error) {
	g := models.Gig{
		FreelancerID: ownerID,
		Title:        strings.TrimSpace(in.Title),
		Description:  strings.TrimSpace(in.Description),
		Category:     normalizeCategory(in.Category),
		Subcategory:  strings.TrimSpace(in.Subcategory),
		PricingType:  in.PricingType,
		Amount:       in.Amount,
		DeliveryDays: in.DeliveryDays,
		Tags:         cleanTags(in.Tags),
		IsActive:     true,
	}
	if err := validate(g); err != nil {
		return models.Gig{}, err
	}
	if err := s.gigs.CreateGig(ctx, &g); err != nil {
		return models.Gig{}, errs.Internal(err)
	}
	s.log.Info().Str("gig_id", g.ID.String()).Str("owner_id", ownerID.String()).Msg("gig created")
	return g, nil
}

func (s *Service) Update(ctx context.Context, gigID, ownerID uuid.UUID, p Patch) (models.Gig, error) {
	g, err := s.owned(ctx, gigID, ownerID)
	if err != nil {
		return models.Gig{}, err
	}

	if p.Title != nil {
		g.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		g.Description = strings.TrimSpace(*p.Description)
	}
	if p.Category != nil {
		g.Category = normalizeCategory(*p.Category)
	}
	if p.Subcategory != nil {
		g.Subcategory = strings.TrimSpace(*p.Subcategory)
	}
	if p.PricingType != nil {
		g.PricingType = *p.PricingType
	}
	if p.Amount != nil {
		g.Amount = *p.Amount
	}
	if p.DeliveryDays != nil {
		g.DeliveryDays = *p.DeliveryDays
	}
	if p.Tags != nil {
		g.Tags = cleanTags(p.Tags)
	}
	if p.IsActive != nil {
		g.IsActive = *p.IsActive
	}
	if err := validate(g); err != nil {
		return models.Gig{}, err
	}

	if err := s.gigs.UpdateGig(ctx, &g); err != nil {
		return models.Gig{}, errs.Internal(err)
	}
	return g, nil
}

// Deactivate hides the gig from listings and closes it to new bids. Existing
// bids keep referencing it.
func (s *Service) Deactivate(ctx context.Context, gigID, ownerID uuid.UUID) error {
	g, err := s.owned(ctx, gigID, ownerID)
	if err != nil {
		return err
	}
	if !g.IsActive {
		return nil
	}
	g.IsActive = false
	if err := s.gigs.UpdateGig(ctx, &g); err != nil {
		return errs.Internal(err)
	}
	s.log.Info().Str("gig_id", g.ID.String()).Msg("gig deactivated")
	return nil
}

// Get returns an active gig, or an inactive one when viewerID owns it.
func (s *Service) Get(ctx context.Context, gigID uuid.UUID, viewerID *uuid.UUID) (models.Gig, error) {
	g, err := s.gigs.FindGigByID(ctx, gigID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Gig{}, errs.NotFound(msgGigNotFound)
		}
		return models.Gig{}, errs.Internal(err)
	}
	if !g.IsActive && (viewerID == nil || *viewerID != g.FreelancerID) {
		return models.Gig{}, errs.Hidden(msgGigNotFound)
	}
	return g, nil
}

type ListResult struct {
	Items []models.Gig
	Total int64
	Page  store.Page
}

func (s *Service) List(ctx context.Context, f store.GigFilter) (ListResult, error) {
	f.Page = f.Page.Normalize(store.GigSorts...)
	f.Category = normalizeCategory(f.Category)
	items, total, err := s.gigs.ListGigs(ctx, f)
	if err != nil {
		return ListResult{}, errs.Internal(err)
	}
	return ListResult{Items: items, Total: total, Page: f.Page}, nil
}

func (s *Service) Categories(ctx context.Context) ([]string, error) {
	out, err := s.gigs.Categories(ctx)
	if err != nil {
		return nil, errs.Internal(err)
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

// owned loads a gig for a write by its owner. Missing and foreign gigs fail
// the same way.
func (s *Service) owned(ctx context.Context, gigID, ownerID uuid.UUID) (models.Gig, error) {
	g, err := s.gigs.FindGigByID(ctx, gigID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Gig{}, errs.NotFound(msgGigNotFound)
		}
		return models.Gig{}, errs.Internal(err)
	}
	if g.FreelancerID != ownerID {
		return models.Gig{}, errs.Hidden(msgGigNotFound)
	}
	return g, nil
}

func validate(g models.Gig) error {
	fields := map[string][]string{}
	if l := len(g.Title); l < 5 || l > 100 {
		fields["title"] = append(fields["title"], "must be between 5 and 100 characters")
	}
	if len(g.Description) < 20 {
		fields["description"] = append(fields["description"], "must be at least 20 characters")
	}
	if g.Category == "" {
		fields["category"] = append(fields["category"], "is required")
	}
	if g.PricingType != models.PricingFixed && g.PricingType != models.PricingHourly {
		fields["pricing_type"] = append(fields["pricing_type"], "must be fixed or hourly")
	}
	if g.Amount < 5 {
		fields["amount"] = append(fields["amount"], "must be at least 5")
	}
	if g.DeliveryDays < 1 || g.DeliveryDays > 365 {
		fields["delivery_days"] = append(fields["delivery_days"], "must be between 1 and 365")
	}
	if len(fields) > 0 {
		return errs.Validation(fields)
	}
	return nil
}

func normalizeCategory(c string) string {
	return strings.ToLower(strings.TrimSpace(c))
}

func cleanTags(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]bool{}
	for _, t := range in {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
