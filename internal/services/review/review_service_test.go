package review

import (
	"context"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Windi-Fikriyansyah/gigbid/internal/errs"
	"github.com/Windi-Fikriyansyah/gigbid/internal/models"
	"github.com/Windi-Fikriyansyah/gigbid/internal/store"
	"github.com/Windi-Fikriyansyah/gigbid/internal/store/memstore"
)

func seed(t *testing.T, db *memstore.Store, status models.BidStatus) (models.User, models.Bid) {
	t.Helper()
	ctx := context.Background()

	freelancer := models.User{Name: "F", Email: uuid.NewString() + "@x.io", Password: "h", Role: models.RoleFreelancer, IsActive: true}
	if err := db.CreateUser(ctx, &freelancer); err != nil {
		t.Fatalf("create user: %v", err)
	}
	b := models.Bid{GigID: uuid.New(), FreelancerID: freelancer.ID, ClientID: uuid.New(), Amount: 10, DeliveryTime: 1, Proposal: "p", Status: status}
	if err := db.CreateBid(ctx, &b); err != nil {
		t.Fatalf("create bid: %v", err)
	}
	return freelancer, b
}

func TestCreateUpdatesRatingAggregate(t *testing.T) {
	db := memstore.New()
	svc := NewService(db, db, zerolog.Nop())
	ctx := context.Background()

	freelancer, b1 := seed(t, db, models.BidAccepted)
	b2 := models.Bid{GigID: uuid.New(), FreelancerID: freelancer.ID, ClientID: uuid.New(), Amount: 10, DeliveryTime: 1, Proposal: "p", Status: models.BidAccepted}
	if err := db.CreateBid(ctx, &b2); err != nil {
		t.Fatalf("create bid: %v", err)
	}

	if _, err := svc.Create(ctx, b1.ID, b1.ClientID, 5, " great "); err != nil {
		t.Fatalf("first review: %v", err)
	}
	if _, err := svc.Create(ctx, b2.ID, b2.ClientID, 2, ""); err != nil {
		t.Fatalf("second review: %v", err)
	}

	u, _ := db.FindUserByID(ctx, freelancer.ID)
	if u.RatingCount != 2 || math.Abs(u.RatingAverage-3.5) > 1e-9 {
		t.Fatalf("aggregate = %v over %d", u.RatingAverage, u.RatingCount)
	}

	res, err := svc.ListForFreelancer(ctx, freelancer.ID, store.Page{Sort: "rating", Desc: true})
	if err != nil || res.Total != 2 || res.Items[0].Rating != 5 || res.Items[0].Comment != "great" {
		t.Fatalf("list: %+v %v", res, err)
	}
}

func TestCreateOnlyOncePerBid(t *testing.T) {
	db := memstore.New()
	svc := NewService(db, db, zerolog.Nop())
	_, b := seed(t, db, models.BidAccepted)

	if _, err := svc.Create(context.Background(), b.ID, b.ClientID, 4, ""); err != nil {
		t.Fatalf("review: %v", err)
	}
	if _, err := svc.Create(context.Background(), b.ID, b.ClientID, 4, ""); !errs.Is(err, errs.KindConflict) {
		t.Fatalf("second review: got %v", err)
	}
}

func TestCreateRequiresAcceptedBidAndClient(t *testing.T) {
	db := memstore.New()
	svc := NewService(db, db, zerolog.Nop())
	ctx := context.Background()

	_, pending := seed(t, db, models.BidPending)
	if _, err := svc.Create(ctx, pending.ID, pending.ClientID, 4, ""); !errs.Is(err, errs.KindNotFound) {
		t.Fatalf("pending bid: got %v", err)
	}

	_, accepted := seed(t, db, models.BidAccepted)
	if _, err := svc.Create(ctx, accepted.ID, accepted.FreelancerID, 4, ""); !errs.Is(err, errs.KindNotFound) {
		t.Fatalf("freelancer reviewing: got %v", err)
	}
	if _, err := svc.Create(ctx, accepted.ID, accepted.ClientID, 6, ""); !errs.Is(err, errs.KindValidation) {
		t.Fatalf("rating out of range: got %v", err)
	}
}

func TestCreateFailedRatingLeavesBidReviewable(t *testing.T) {
	db := memstore.New()
	svc := NewService(db, db, zerolog.Nop())
	ctx := context.Background()

	// The freelancer row is missing, so folding the rating fails.
	freelancerID := uuid.New()
	b := models.Bid{GigID: uuid.New(), FreelancerID: freelancerID, ClientID: uuid.New(), Amount: 10, DeliveryTime: 1, Proposal: "p", Status: models.BidAccepted}
	if err := db.CreateBid(ctx, &b); err != nil {
		t.Fatalf("create bid: %v", err)
	}
	if _, err := svc.Create(ctx, b.ID, b.ClientID, 4, ""); !errs.Is(err, errs.KindInternal) {
		t.Fatalf("first attempt: got %v", err)
	}
	if _, total, _ := db.ListReviews(ctx, freelancerID, store.Page{}); total != 0 {
		t.Fatalf("review kept after failed rating: %d", total)
	}

	freelancer := models.User{ID: freelancerID, Name: "F", Email: "f@x.io", Password: "h", Role: models.RoleFreelancer, IsActive: true}
	if err := db.CreateUser(ctx, &freelancer); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := svc.Create(ctx, b.ID, b.ClientID, 4, ""); err != nil {
		t.Fatalf("retry: %v", err)
	}

	u, _ := db.FindUserByID(ctx, freelancerID)
	_, total, _ := db.ListReviews(ctx, freelancerID, store.Page{})
	if total != 1 || u.RatingCount != 1 || u.RatingAverage != 4 {
		t.Fatalf("reviews=%d count=%d avg=%v", total, u.RatingCount, u.RatingAverage)
	}
}
