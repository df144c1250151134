// Package memstore keeps every record in process memory. It backs the
// service tests and DB_DRIVER=memory for local runs.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/gigbid/internal/models"
	"github.com/Windi-Fikriyansyah/gigbid/internal/store"
)

var (
	_ store.UserStore   = (*Store)(nil)
	_ store.GigStore    = (*Store)(nil)
	_ store.BidStore    = (*Store)(nil)
	_ store.ReviewStore = (*Store)(nil)
)

type Store struct {
	mu      sync.RWMutex
	users   map[uuid.UUID]models.User
	gigs    map[uuid.UUID]models.Gig
	bids    map[uuid.UUID]models.Bid
	reviews map[uuid.UUID]models.Review

	// txMu serializes Transaction callers, standing in for row locks.
	txMu sync.Mutex
	now  func() time.Time
}

func New() *Store {
	return &Store{
		users:   map[uuid.UUID]models.User{},
		gigs:    map[uuid.UUID]models.Gig{},
		bids:    map[uuid.UUID]models.Bid{},
		reviews: map[uuid.UUID]models.Review{},
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets the time source for CreatedAt/UpdatedAt stamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) stamp(created *time.Time, updated *time.Time) {
	now := s.now()
	if created != nil && created.IsZero() {
		*created = now
	}
	*updated = now
}

// ---- users ----

func (s *Store) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(u.Email)
	for _, existing := range s.users {
		if existing.Email == email {
			return store.ErrAlreadyExists
		}
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.Email = email
	s.stamp(&u.CreatedAt, &u.UpdatedAt)
	s.users[u.ID] = cloneUser(*u)
	return nil
}

func (s *Store) FindUserByID(_ context.Context, id uuid.UUID) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return models.User{}, store.ErrNotFound
	}
	return cloneUser(u), nil
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range s.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return models.User{}, store.ErrNotFound
}

func (s *Store) FindUserByResetToken(_ context.Context, hash string, now time.Time) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.PasswordResetToken == nil || u.PasswordResetExpires == nil {
			continue
		}
		if *u.PasswordResetToken == hash && u.PasswordResetExpires.After(now) {
			return cloneUser(u), nil
		}
	}
	return models.User{}, store.ErrNotFound
}

func (s *Store) UpdateUserFields(_ context.Context, u *models.User, fields ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.users[u.ID]
	if !ok {
		return store.ErrNotFound
	}
	src := cloneUser(*u)
	for _, f := range fields {
		switch f {
		case store.UserName:
			cur.Name = src.Name
		case store.UserPassword:
			cur.Password = src.Password
		case store.UserBio:
			cur.Bio = src.Bio
		case store.UserSkills:
			cur.Skills = src.Skills
		case store.UserHourlyRate:
			cur.HourlyRate = src.HourlyRate
		case store.UserLocation:
			cur.Location = src.Location
		case store.UserProfilePicture:
			cur.ProfilePicture = src.ProfilePicture
		case store.UserIsActive:
			cur.IsActive = src.IsActive
		case store.UserIsEmailVerified:
			cur.IsEmailVerified = src.IsEmailVerified
		case store.UserRefreshToken:
			cur.RefreshToken = src.RefreshToken
		case store.UserPasswordResetToken:
			cur.PasswordResetToken = src.PasswordResetToken
		case store.UserPasswordResetExpires:
			cur.PasswordResetExpires = src.PasswordResetExpires
		default:
			return fmt.Errorf("update user: unknown field %q", f)
		}
	}
	s.stamp(nil, &cur.UpdatedAt)
	u.UpdatedAt = cur.UpdatedAt
	s.users[u.ID] = cur
	return nil
}

func (s *Store) SaveRefreshToken(_ context.Context, userID uuid.UUID, token string, expected *string, loginAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.users[userID]
	if !ok || !cur.IsActive {
		return store.ErrNotFound
	}
	if expected != nil && (cur.RefreshToken == nil || *cur.RefreshToken != *expected) {
		return store.ErrNotFound
	}
	cur.RefreshToken = &token
	if loginAt != nil {
		v := *loginAt
		cur.LastLoginAt = &v
	}
	s.stamp(nil, &cur.UpdatedAt)
	s.users[userID] = cur
	return nil
}

func (s *Store) AddRating(_ context.Context, userID uuid.UUID, rating int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addRating(userID, rating)
}

// addRating requires s.mu held for writing.
func (s *Store) addRating(userID uuid.UUID, rating int) error {
	u, ok := s.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	u.RatingAverage = (u.RatingAverage*float64(u.RatingCount) + float64(rating)) / float64(u.RatingCount+1)
	u.RatingCount++
	s.users[userID] = u
	return nil
}

// ---- gigs ----

func (s *Store) CreateGig(_ context.Context, g *models.Gig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	s.stamp(&g.CreatedAt, &g.UpdatedAt)
	s.gigs[g.ID] = cloneGig(*g)
	return nil
}

func (s *Store) FindGigByID(_ context.Context, id uuid.UUID) (models.Gig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.gigs[id]
	if !ok {
		return models.Gig{}, store.ErrNotFound
	}
	return cloneGig(g), nil
}

func (s *Store) UpdateGig(_ context.Context, g *models.Gig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.gigs[g.ID]; !ok {
		return store.ErrNotFound
	}
	s.stamp(nil, &g.UpdatedAt)
	c := cloneGig(*g)
	c.Freelancer = nil
	s.gigs[g.ID] = c
	return nil
}

func (s *Store) ListGigs(_ context.Context, f store.GigFilter) ([]models.Gig, int64, error) {
	p := f.Page.Normalize(store.GigSorts...)

	s.mu.RLock()
	var out []models.Gig
	term := strings.ToLower(strings.TrimSpace(f.Search))
	for _, g := range s.gigs {
		if f.FreelancerID != nil && g.FreelancerID != *f.FreelancerID {
			continue
		}
		if (f.FreelancerID == nil || !f.IncludeInactive) && !g.IsActive {
			continue
		}
		if f.Category != "" && g.Category != f.Category {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(g.Title), term) &&
			!strings.Contains(strings.ToLower(g.Description), term) {
			continue
		}
		out = append(out, cloneGig(g))
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if p.Desc {
			return gigLess(out[j], out[i], p.Sort)
		}
		return gigLess(out[i], out[j], p.Sort)
	})
	return paginate(out, p), int64(len(out)), nil
}

func (s *Store) Categories(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := map[string]bool{}
	var out []string
	for _, g := range s.gigs {
		if g.IsActive && !seen[g.Category] {
			seen[g.Category] = true
			out = append(out, g.Category)
		}
	}
	sort.Strings(out)
	return out, nil
}

// ---- bids ----

func (s *Store) CreateBid(_ context.Context, b *models.Bid) error {
	return s.createBid(b, nil)
}

func (s *Store) createBid(b *models.Bid, undo undoLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.bids {
		if existing.GigID == b.GigID && existing.FreelancerID == b.FreelancerID {
			return store.ErrAlreadyExists
		}
	}
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	undo.record(b.ID, models.Bid{}, false)
	s.stamp(&b.CreatedAt, &b.UpdatedAt)
	c := *b
	c.Gig = nil
	s.bids[b.ID] = c
	return nil
}

func (s *Store) FindBidByID(_ context.Context, id uuid.UUID) (models.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bids[id]
	if !ok {
		return models.Bid{}, store.ErrNotFound
	}
	return b, nil
}

func (s *Store) FindBidByGigAndFreelancer(_ context.Context, gigID, freelancerID uuid.UUID) (models.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, b := range s.bids {
		if b.GigID == gigID && b.FreelancerID == freelancerID {
			return b, nil
		}
	}
	return models.Bid{}, store.ErrNotFound
}

func (s *Store) UpdateBid(_ context.Context, b *models.Bid) error {
	return s.updateBid(b, nil)
}

func (s *Store) updateBid(b *models.Bid, undo undoLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.bids[b.ID]
	if !ok {
		return store.ErrNotFound
	}
	undo.record(b.ID, prev, true)
	s.stamp(nil, &b.UpdatedAt)
	c := *b
	c.Gig = nil
	s.bids[b.ID] = c
	return nil
}

func (s *Store) RejectPendingBids(_ context.Context, gigID, exceptID uuid.UUID) ([]models.Bid, error) {
	return s.rejectPendingBids(gigID, exceptID, nil)
}

func (s *Store) rejectPendingBids(gigID, exceptID uuid.UUID, undo undoLog) ([]models.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var changed []models.Bid
	for id, b := range s.bids {
		if b.GigID != gigID || id == exceptID || b.Status != models.BidPending {
			continue
		}
		undo.record(id, b, true)
		b.Status = models.BidRejected
		s.stamp(nil, &b.UpdatedAt)
		s.bids[id] = b
		changed = append(changed, b)
	}
	return changed, nil
}

func (s *Store) ListBids(_ context.Context, f store.BidFilter) ([]models.Bid, int64, error) {
	p := f.Page.Normalize(store.BidSorts...)

	s.mu.RLock()
	var out []models.Bid
	for _, b := range s.bids {
		if f.GigID != nil && b.GigID != *f.GigID {
			continue
		}
		if f.FreelancerID != nil && b.FreelancerID != *f.FreelancerID {
			continue
		}
		if f.ClientID != nil && b.ClientID != *f.ClientID {
			continue
		}
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		if g, ok := s.gigs[b.GigID]; ok {
			gc := cloneGig(g)
			b.Gig = &gc
		}
		out = append(out, b)
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if p.Desc {
			return bidLess(out[j], out[i], p.Sort)
		}
		return bidLess(out[i], out[j], p.Sort)
	})
	return paginate(out, p), int64(len(out)), nil
}

func (s *Store) CountBidsByStatus(_ context.Context, freelancerID uuid.UUID) (map[models.BidStatus]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := map[models.BidStatus]int64{
		models.BidPending:   0,
		models.BidAccepted:  0,
		models.BidRejected:  0,
		models.BidWithdrawn: 0,
	}
	for _, b := range s.bids {
		if b.FreelancerID == freelancerID {
			out[b.Status]++
		}
	}
	return out, nil
}

func (s *Store) LockGig(ctx context.Context, gigID uuid.UUID) error {
	_, err := s.FindGigByID(ctx, gigID)
	return err
}

// Transaction runs fn under txMu. If fn fails, the bids it wrote through tx
// are put back as they were; writes made outside tx are kept.
func (s *Store) Transaction(_ context.Context, fn func(tx store.BidStore) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &txStore{Store: s, undo: undoLog{}}
	if err := fn(tx); err != nil {
		s.mu.Lock()
		for id, prev := range tx.undo {
			if prev == nil {
				delete(s.bids, id)
			} else {
				s.bids[id] = *prev
			}
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

// undoLog holds the state each bid had before its first write in a
// transaction. A nil entry means the bid did not exist.
type undoLog map[uuid.UUID]*models.Bid

func (l undoLog) record(id uuid.UUID, prev models.Bid, existed bool) {
	if l == nil {
		return
	}
	if _, seen := l[id]; seen {
		return
	}
	if !existed {
		l[id] = nil
		return
	}
	l[id] = &prev
}

var _ store.BidStore = (*txStore)(nil)

// txStore is the BidStore handed to Transaction callbacks.
type txStore struct {
	*Store
	undo undoLog
}

func (t *txStore) CreateBid(_ context.Context, b *models.Bid) error {
	return t.createBid(b, t.undo)
}

func (t *txStore) UpdateBid(_ context.Context, b *models.Bid) error {
	return t.updateBid(b, t.undo)
}

func (t *txStore) RejectPendingBids(_ context.Context, gigID, exceptID uuid.UUID) ([]models.Bid, error) {
	return t.rejectPendingBids(gigID, exceptID, t.undo)
}

// Transaction joins the surrounding transaction.
func (t *txStore) Transaction(_ context.Context, fn func(tx store.BidStore) error) error {
	return fn(t)
}

// ---- reviews ----

func (s *Store) CreateReview(_ context.Context, r *models.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.reviews {
		if existing.BidID == r.BidID {
			return store.ErrAlreadyExists
		}
	}
	if err := s.addRating(r.FreelancerID, r.Rating); err != nil {
		return err
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	s.stamp(&r.CreatedAt, &r.UpdatedAt)
	s.reviews[r.ID] = *r
	return nil
}

func (s *Store) ListReviews(_ context.Context, freelancerID uuid.UUID, p store.Page) ([]models.Review, int64, error) {
	p = p.Normalize("created_at", "rating")

	s.mu.RLock()
	var out []models.Review
	for _, r := range s.reviews {
		if r.FreelancerID == freelancerID {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if p.Desc {
			return reviewLess(out[j], out[i], p.Sort)
		}
		return reviewLess(out[i], out[j], p.Sort)
	})
	return paginate(out, p), int64(len(out)), nil
}

// ---- helpers ----

func paginate[T any](items []T, p store.Page) []T {
	start := p.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + p.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func bidLess(a, b models.Bid, sortBy string) bool {
	switch sortBy {
	case "amount":
		return a.Amount < b.Amount
	case "delivery_time":
		return a.DeliveryTime < b.DeliveryTime
	default:
		return a.CreatedAt.Before(b.CreatedAt)
	}
}

func gigLess(a, b models.Gig, sortBy string) bool {
	switch sortBy {
	case "amount":
		return a.Amount < b.Amount
	case "delivery_days":
		return a.DeliveryDays < b.DeliveryDays
	default:
		return a.CreatedAt.Before(b.CreatedAt)
	}
}

func reviewLess(a, b models.Review, sortBy string) bool {
	if sortBy == "rating" {
		return a.Rating < b.Rating
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

func cloneUser(u models.User) models.User {
	if u.Skills != nil {
		u.Skills = append(u.Skills[:0:0], u.Skills...)
	}
	if u.RefreshToken != nil {
		v := *u.RefreshToken
		u.RefreshToken = &v
	}
	if u.PasswordResetToken != nil {
		v := *u.PasswordResetToken
		u.PasswordResetToken = &v
	}
	if u.PasswordResetExpires != nil {
		v := *u.PasswordResetExpires
		u.PasswordResetExpires = &v
	}
	if u.LastLoginAt != nil {
		v := *u.LastLoginAt
		u.LastLoginAt = &v
	}
	return u
}

func cloneGig(g models.Gig) models.Gig {
	if g.Tags != nil {
		g.Tags = append(g.Tags[:0:0], g.Tags...)
	}
	return g
}
