package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Windi-Fikriyansyah/gigbid/internal/models"
	"github.com/Windi-Fikriyansyah/gigbid/internal/store"
)

var (
	_ store.UserStore   = (*Store)(nil)
	_ store.GigStore    = (*Store)(nil)
	_ store.BidStore    = (*Store)(nil)
	_ store.ReviewStore = (*Store)(nil)
)

// Store is the Postgres implementation of every store interface.
type Store struct {
	db *gorm.DB
	// inTx is set on stores handed to Transaction callbacks; reads of single
	// bids then take row locks.
	inTx bool
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return store.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return store.ErrAlreadyExists
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}

// ---- users ----

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	return translate(s.conn(ctx).Create(u).Error, "create user")
}

func (s *Store) FindUserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	var u models.User
	err := s.conn(ctx).First(&u, "id = ?", id).Error
	return u, translate(err, "find user")
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (models.User, error) {
	var u models.User
	err := s.conn(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&u).Error
	return u, translate(err, "find user by email")
}

func (s *Store) FindUserByResetToken(ctx context.Context, hash string, now time.Time) (models.User, error) {
	var u models.User
	err := s.conn(ctx).
		Where("password_reset_token = ? AND password_reset_expires > ?", hash, now).
		First(&u).Error
	return u, translate(err, "find user by reset token")
}

func (s *Store) UpdateUserFields(ctx context.Context, u *models.User, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	res := s.conn(ctx).Model(u).Select(fields).Updates(u)
	if res.Error != nil {
		return translate(res.Error, "update user")
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) SaveRefreshToken(ctx context.Context, userID uuid.UUID, token string, expected *string, loginAt *time.Time) error {
	q := s.conn(ctx).Model(&models.User{}).Where("id = ? AND is_active = ?", userID, true)
	if expected != nil {
		q = q.Where("refresh_token = ?", *expected)
	}
	updates := map[string]any{"refresh_token": token}
	if loginAt != nil {
		updates["last_login_at"] = *loginAt
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return translate(res.Error, "save refresh token")
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) AddRating(ctx context.Context, userID uuid.UUID, rating int) error {
	return addRating(s.conn(ctx), userID, rating)
}

func addRating(db *gorm.DB, userID uuid.UUID, rating int) error {
	res := db.Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"rating_average": gorm.Expr("(rating_average * rating_count + ?) / (rating_count + 1)", rating),
			"rating_count":   gorm.Expr("rating_count + 1"),
		})
	if res.Error != nil {
		return translate(res.Error, "add rating")
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ---- gigs ----

func (s *Store) CreateGig(ctx context.Context, g *models.Gig) error {
	return translate(s.conn(ctx).Create(g).Error, "create gig")
}

func (s *Store) FindGigByID(ctx context.Context, id uuid.UUID) (models.Gig, error) {
	var g models.Gig
	err := s.conn(ctx).First(&g, "id = ?", id).Error
	return g, translate(err, "find gig")
}

func (s *Store) UpdateGig(ctx context.Context, g *models.Gig) error {
	return translate(s.conn(ctx).Omit(clause.Associations).Save(g).Error, "update gig")
}

func (s *Store) ListGigs(ctx context.Context, f store.GigFilter) ([]models.Gig, int64, error) {
	p := f.Page.Normalize(store.GigSorts...)

	q := s.conn(ctx).Model(&models.Gig{})
	if f.FreelancerID != nil {
		q = q.Where("freelancer_id = ?", *f.FreelancerID)
	}
	if f.FreelancerID == nil || !f.IncludeInactive {
		q = q.Where("is_active = ?", true)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, translate(err, "count gigs")
	}

	var gigs []models.Gig
	err := q.Order(clause.OrderByColumn{Column: clause.Column{Name: p.Sort}, Desc: p.Desc}).
		Offset(p.Offset()).
		Limit(p.Limit).
		Find(&gigs).Error
	if err != nil {
		return nil, 0, translate(err, "list gigs")
	}
	return gigs, total, nil
}

func (s *Store) Categories(ctx context.Context) ([]string, error) {
	var categories []string
	err := s.conn(ctx).
		Model(&models.Gig{}).
		Where("is_active = ?", true).
		Distinct("category").
		Order("category").
		Pluck("category", &categories).
		Error
	return categories, translate(err, "list categories")
}

// ---- bids ----

func (s *Store) CreateBid(ctx context.Context, b *models.Bid) error {
	return translate(s.conn(ctx).Omit(clause.Associations).Create(b).Error, "create bid")
}

func (s *Store) FindBidByID(ctx context.Context, id uuid.UUID) (models.Bid, error) {
	q := s.conn(ctx)
	if s.inTx {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var b models.Bid
	err := q.First(&b, "id = ?", id).Error
	return b, translate(err, "find bid")
}

func (s *Store) FindBidByGigAndFreelancer(ctx context.Context, gigID, freelancerID uuid.UUID) (models.Bid, error) {
	var b models.Bid
	err := s.conn(ctx).
		Where("gig_id = ? AND freelancer_id = ?", gigID, freelancerID).
		First(&b).Error
	return b, translate(err, "find bid by gig")
}

func (s *Store) UpdateBid(ctx context.Context, b *models.Bid) error {
	return translate(s.conn(ctx).Omit(clause.Associations).Save(b).Error, "update bid")
}

func (s *Store) RejectPendingBids(ctx context.Context, gigID, exceptID uuid.UUID) ([]models.Bid, error) {
	var siblings []models.Bid
	err := s.conn(ctx).
		Where("gig_id = ? AND id <> ? AND status = ?", gigID, exceptID, models.BidPending).
		Find(&siblings).Error
	if err != nil {
		return nil, translate(err, "find pending bids")
	}
	if len(siblings) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, 0, len(siblings))
	for _, b := range siblings {
		ids = append(ids, b.ID)
	}

	now := s.db.NowFunc()
	err = s.conn(ctx).Model(&models.Bid{}).
		Where("id IN ? AND status = ?", ids, models.BidPending).
		Updates(map[string]any{"status": models.BidRejected, "updated_at": now}).Error
	if err != nil {
		return nil, translate(err, "reject pending bids")
	}

	for i := range siblings {
		siblings[i].Status = models.BidRejected
		siblings[i].UpdatedAt = now
	}
	return siblings, nil
}

func (s *Store) ListBids(ctx context.Context, f store.BidFilter) ([]models.Bid, int64, error) {
	p := f.Page.Normalize(store.BidSorts...)

	q := s.conn(ctx).Model(&models.Bid{})
	if f.GigID != nil {
		q = q.Where("gig_id = ?", *f.GigID)
	}
	if f.FreelancerID != nil {
		q = q.Where("freelancer_id = ?", *f.FreelancerID)
	}
	if f.ClientID != nil {
		q = q.Where("client_id = ?", *f.ClientID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, translate(err, "count bids")
	}

	var bids []models.Bid
	err := q.Preload("Gig").
		Order(clause.OrderByColumn{Column: clause.Column{Name: p.Sort}, Desc: p.Desc}).
		Offset(p.Offset()).
		Limit(p.Limit).
		Find(&bids).Error
	if err != nil {
		return nil, 0, translate(err, "list bids")
	}
	return bids, total, nil
}

func (s *Store) CountBidsByStatus(ctx context.Context, freelancerID uuid.UUID) (map[models.BidStatus]int64, error) {
	var rows []struct {
		Status models.BidStatus
		Count  int64
	}
	err := s.conn(ctx).Model(&models.Bid{}).
		Select("status, COUNT(*) AS count").
		Where("freelancer_id = ?", freelancerID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, translate(err, "count bids by status")
	}

	out := map[models.BidStatus]int64{
		models.BidPending:   0,
		models.BidAccepted:  0,
		models.BidRejected:  0,
		models.BidWithdrawn: 0,
	}
	for _, r := range rows {
		out[r.Status] = r.Count
	}
	return out, nil
}

func (s *Store) LockGig(ctx context.Context, gigID uuid.UUID) error {
	q := s.conn(ctx)
	if s.inTx {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var g models.Gig
	return translate(q.Select("id").First(&g, "id = ?", gigID).Error, "lock gig")
}

func (s *Store) Transaction(ctx context.Context, fn func(tx store.BidStore) error) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx, inTx: true})
	})
}

// ---- reviews ----

func (s *Store) CreateReview(ctx context.Context, r *models.Review) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(r).Error; err != nil {
			return translate(err, "create review")
		}
		return addRating(tx, r.FreelancerID, r.Rating)
	})
}

func (s *Store) ListReviews(ctx context.Context, freelancerID uuid.UUID, p store.Page) ([]models.Review, int64, error) {
	p = p.Normalize("created_at", "rating")

	q := s.conn(ctx).Model(&models.Review{}).Where("freelancer_id = ?", freelancerID)

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, translate(err, "count reviews")
	}

	var reviews []models.Review
	err := q.Order(clause.OrderByColumn{Column: clause.Column{Name: p.Sort}, Desc: p.Desc}).
		Offset(p.Offset()).
		Limit(p.Limit).
		Find(&reviews).Error
	if err != nil {
		return nil, 0, translate(err, "list reviews")
	}
	return reviews, total, nil
}
