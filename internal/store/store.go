// Package store declares the persistence operations the services depend on.
// gormstore implements them on Postgres, memstore in memory.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/gigbid/internal/models"
)

// ErrNotFound indicates a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness conflict.
var ErrAlreadyExists = errors.New("record already exists")

type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	FindUserByID(ctx context.Context, id uuid.UUID) (models.User, error)
	FindUserByEmail(ctx context.Context, email string) (models.User, error)
	// FindUserByResetToken returns the user whose reset hash matches and whose
	// reset expiry is after now.
	FindUserByResetToken(ctx context.Context, hash string, now time.Time) (models.User, error)
	// UpdateUserFields writes only the named columns of u. Columns not listed
	// keep whatever other writers stored.
	UpdateUserFields(ctx context.Context, u *models.User, fields ...string) error
	// SaveRefreshToken stores token on an active user, stamping last_login_at
	// when loginAt is set. With a non-nil expected the stored token must still
	// equal it. ErrNotFound when no row matches.
	SaveRefreshToken(ctx context.Context, userID uuid.UUID, token string, expected *string, loginAt *time.Time) error
	// AddRating folds one rating into the user's aggregate in a single update.
	AddRating(ctx context.Context, userID uuid.UUID, rating int) error
}

// Writable user columns accepted by UpdateUserFields.
const (
	UserName                 = "name"
	UserPassword             = "password"
	UserBio                  = "bio"
	UserSkills               = "skills"
	UserHourlyRate           = "hourly_rate"
	UserLocation             = "location"
	UserProfilePicture       = "profile_picture"
	UserIsActive             = "is_active"
	UserIsEmailVerified      = "is_email_verified"
	UserRefreshToken         = "refresh_token"
	UserPasswordResetToken   = "password_reset_token"
	UserPasswordResetExpires = "password_reset_expires"
)

type GigStore interface {
	CreateGig(ctx context.Context, g *models.Gig) error
	FindGigByID(ctx context.Context, id uuid.UUID) (models.Gig, error)
	UpdateGig(ctx context.Context, g *models.Gig) error
	ListGigs(ctx context.Context, f GigFilter) ([]models.Gig, int64, error)
	Categories(ctx context.Context) ([]string, error)
}

type BidStore interface {
	CreateBid(ctx context.Context, b *models.Bid) error
	FindBidByID(ctx context.Context, id uuid.UUID) (models.Bid, error)
	FindBidByGigAndFreelancer(ctx context.Context, gigID, freelancerID uuid.UUID) (models.Bid, error)
	UpdateBid(ctx context.Context, b *models.Bid) error
	// RejectPendingBids moves every pending bid on gigID except exceptID to
	// rejected and returns the bids it changed.
	RejectPendingBids(ctx context.Context, gigID, exceptID uuid.UUID) ([]models.Bid, error)
	ListBids(ctx context.Context, f BidFilter) ([]models.Bid, int64, error)
	CountBidsByStatus(ctx context.Context, freelancerID uuid.UUID) (map[models.BidStatus]int64, error)
	// LockGig serializes writers on one gig's bids until the surrounding
	// transaction ends. Outside a transaction it only checks existence.
	LockGig(ctx context.Context, gigID uuid.UUID) error
	// Transaction runs fn against a BidStore bound to one transaction. Any
	// error returned by fn rolls back every write made through tx.
	Transaction(ctx context.Context, fn func(tx BidStore) error) error
}

type ReviewStore interface {
	// CreateReview stores r and folds its rating into the freelancer's
	// aggregate as one unit. ErrAlreadyExists when the bid has a review,
	// ErrNotFound when the freelancer does not exist.
	CreateReview(ctx context.Context, r *models.Review) error
	ListReviews(ctx context.Context, freelancerID uuid.UUID, p Page) ([]models.Review, int64, error)
}

// Page is a 1-based page request with a whitelisted sort.
type Page struct {
	Page  int
	Limit int
	Sort  string
	Desc  bool
}

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Normalize clamps page and limit and falls back to created_at.
func (p Page) Normalize(allowedSorts ...string) Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	ok := false
	for _, s := range allowedSorts {
		if p.Sort == s {
			ok = true
			break
		}
	}
	if !ok {
		p.Sort = "created_at"
		p.Desc = true
	}
	return p
}

func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}

// TotalPages returns the number of pages needed for total rows.
func (p Page) TotalPages(total int64) int {
	if p.Limit <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(p.Limit) - 1) / int64(p.Limit))
}

type GigFilter struct {
	Category     string
	FreelancerID *uuid.UUID
	Search       string
	// IncludeInactive lists deactivated gigs too; only honored with FreelancerID.
	IncludeInactive bool
	Page            Page
}

var GigSorts = []string{"created_at", "amount", "delivery_days"}

type BidFilter struct {
	GigID        *uuid.UUID
	FreelancerID *uuid.UUID
	ClientID     *uuid.UUID
	Status       models.BidStatus
	Page         Page
}

var BidSorts = []string{"created_at", "amount", "delivery_time"}
