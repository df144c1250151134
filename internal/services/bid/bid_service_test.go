package bid

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Windi-Fikriyansyah/gigbid/internal/errs"
	"github.com/Windi-Fikriyansyah/gigbid/internal/models"
	"github.com/Windi-Fikriyansyah/gigbid/internal/store"
	"github.com/Windi-Fikriyansyah/gigbid/internal/store/memstore"
)

var proposal = strings.Repeat("I can deliver this quickly. ", 3)

type sentEvent struct {
	userID uuid.UUID
	event  string
	bidID  uuid.UUID
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentEvent
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, userID uuid.UUID, event string, payload any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	b := payload.(models.Bid)
	n.sent = append(n.sent, sentEvent{userID: userID, event: event, bidID: b.ID})
	return n.err
}

func (n *recordingNotifier) events(event string) []sentEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sentEvent
	for _, e := range n.sent {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	svc      *Service
	db       *memstore.Store
	notifier *recordingNotifier
	owner    uuid.UUID
	gig      models.Gig
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := memstore.New()
	f := &fixture{db: db, notifier: &recordingNotifier{}, owner: uuid.New()}
	f.svc = NewService(db, db, f.notifier, zerolog.Nop())

	f.gig = models.Gig{
		FreelancerID: f.owner,
		Title:        "Logo design",
		Description:  "A clean vector logo for your brand.",
		Category:     "design",
		PricingType:  models.PricingFixed,
		Amount:       50,
		DeliveryDays: 3,
		IsActive:     true,
	}
	if err := db.CreateGig(context.Background(), &f.gig); err != nil {
		t.Fatalf("create gig: %v", err)
	}
	return f
}

func (f *fixture) bid(t *testing.T, freelancer uuid.UUID) models.Bid {
	t.Helper()
	b, err := f.svc.Create(context.Background(), CreateInput{
		GigID: f.gig.ID, FreelancerID: freelancer, Amount: 40, DeliveryTime: 5, Proposal: proposal,
	})
	if err != nil {
		t.Fatalf("create bid: %v", err)
	}
	return b
}

func (f *fixture) status(t *testing.T, id uuid.UUID) models.BidStatus {
	t.Helper()
	b, err := f.db.FindBidByID(context.Background(), id)
	if err != nil {
		t.Fatalf("find bid: %v", err)
	}
	return b.Status
}

func TestCreateSnapshotsClient(t *testing.T) {
	f := newFixture(t)
	b := f.bid(t, uuid.New())

	if b.Status != models.BidPending || b.ClientID != f.owner {
		t.Fatalf("unexpected bid: %+v", b)
	}
	if got := f.notifier.events(EventBidCreated); len(got) != 1 || got[0].userID != f.owner {
		t.Fatalf("created events = %+v", got)
	}
}

func TestCreateDuplicateConflicts(t *testing.T) {
	f := newFixture(t)
	freelancer := uuid.New()
	f.bid(t, freelancer)

	_, err := f.svc.Create(context.Background(), CreateInput{
		GigID: f.gig.ID, FreelancerID: freelancer, Amount: 60, DeliveryTime: 2, Proposal: proposal,
	})
	if !errs.Is(err, errs.KindConflict) {
		t.Fatalf("got %v, want conflict", err)
	}
}

func TestCreateOnOwnGigFails(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), CreateInput{
		GigID: f.gig.ID, FreelancerID: f.owner, Amount: 60, DeliveryTime: 2, Proposal: proposal,
	})
	if !errs.Is(err, errs.KindBadRequest) {
		t.Fatalf("got %v, want bad request", err)
	}
	res, _ := f.svc.ListByGig(context.Background(), f.gig.ID, f.owner, "", store.Page{})
	if res.Total != 0 {
		t.Fatal("bid on own gig was stored")
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		name  string
		in    CreateInput
		field string
	}{
		{"low amount", CreateInput{Amount: 4, DeliveryTime: 5, Proposal: proposal}, "amount"},
		{"zero delivery", CreateInput{Amount: 10, DeliveryTime: 0, Proposal: proposal}, "delivery_time"},
		{"long delivery", CreateInput{Amount: 10, DeliveryTime: 366, Proposal: proposal}, "delivery_time"},
		{"short proposal", CreateInput{Amount: 10, DeliveryTime: 5, Proposal: "too short"}, "proposal"},
		{"long proposal", CreateInput{Amount: 10, DeliveryTime: 5, Proposal: strings.Repeat("x", 1001)}, "proposal"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.in.GigID = f.gig.ID
			tc.in.FreelancerID = uuid.New()
			_, err := f.svc.Create(context.Background(), tc.in)
			var e *errs.Error
			if !errors.As(err, &e) || e.Kind != errs.KindValidation {
				t.Fatalf("got %v, want validation", err)
			}
			if _, ok := e.Fields[tc.field]; !ok {
				t.Fatalf("fields = %v, want %s", e.Fields, tc.field)
			}
		})
	}
}

func TestCreateOnMissingOrInactiveGig(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, CreateInput{GigID: uuid.New(), FreelancerID: uuid.New(), Amount: 10, DeliveryTime: 1, Proposal: proposal})
	if !errs.Is(err, errs.KindNotFound) {
		t.Fatalf("missing gig: %v", err)
	}

	f.gig.IsActive = false
	if err := f.db.UpdateGig(ctx, &f.gig); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	_, err = f.svc.Create(ctx, CreateInput{GigID: f.gig.ID, FreelancerID: uuid.New(), Amount: 10, DeliveryTime: 1, Proposal: proposal})
	if !errs.Is(err, errs.KindNotFound) {
		t.Fatalf("inactive gig: %v", err)
	}
}

func TestAcceptRejectsPendingSiblings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b1 := f.bid(t, uuid.New())
	b2 := f.bid(t, uuid.New())
	b3 := f.bid(t, uuid.New())

	got, err := f.svc.SetStatus(ctx, b2.ID, f.owner, models.BidAccepted)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if got.Status != models.BidAccepted {
		t.Fatalf("returned status %s", got.Status)
	}

	want := map[uuid.UUID]models.BidStatus{
		b1.ID: models.BidRejected,
		b2.ID: models.BidAccepted,
		b3.ID: models.BidRejected,
	}
	for id, status := range want {
		if s := f.status(t, id); s != status {
			t.Errorf("bid %s: status %s, want %s", id, s, status)
		}
	}

	if n := len(f.notifier.events(EventBidRejected)); n != 2 {
		t.Fatalf("rejected notifications = %d", n)
	}
	if acc := f.notifier.events(EventBidAccepted); len(acc) != 1 || acc[0].userID != b2.FreelancerID {
		t.Fatalf("accepted notifications = %+v", acc)
	}
}

func TestAcceptLeavesTerminalSiblingsAlone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	withdrawn := f.bid(t, uuid.New())
	rejected := f.bid(t, uuid.New())
	target := f.bid(t, uuid.New())

	if _, err := f.svc.Withdraw(ctx, withdrawn.ID, withdrawn.FreelancerID); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if _, err := f.svc.SetStatus(ctx, rejected.ID, f.owner, models.BidRejected); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if _, err := f.svc.SetStatus(ctx, target.ID, f.owner, models.BidAccepted); err != nil {
		t.Fatalf("accept: %v", err)
	}

	if s := f.status(t, withdrawn.ID); s != models.BidWithdrawn {
		t.Errorf("withdrawn bid became %s", s)
	}
	if s := f.status(t, rejected.ID); s != models.BidRejected {
		t.Errorf("rejected bid became %s", s)
	}
}

func TestOnlyOneBidCanBeAccepted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bids := make([]models.Bid, 5)
	for i := range bids {
		bids[i] = f.bid(t, uuid.New())
	}

	var wg sync.WaitGroup
	results := make([]error, len(bids))
	for i, b := range bids {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			_, results[i] = f.svc.SetStatus(ctx, id, f.owner, models.BidAccepted)
		}(i, b.ID)
	}
	wg.Wait()

	accepted := 0
	for i, b := range bids {
		if f.status(t, b.ID) == models.BidAccepted {
			accepted++
			if results[i] != nil {
				t.Errorf("accepted bid returned error %v", results[i])
			}
		} else if !errs.Is(results[i], errs.KindNotFound) {
			t.Errorf("losing accept returned %v", results[i])
		}
	}
	if accepted != 1 {
		t.Fatalf("%d bids accepted", accepted)
	}
}

func TestWithdrawnBidCannotBeAccepted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b1 := f.bid(t, uuid.New())

	got, err := f.svc.Withdraw(ctx, b1.ID, b1.FreelancerID)
	if err != nil || got.Status != models.BidWithdrawn {
		t.Fatalf("withdraw: %+v %v", got, err)
	}
	if ev := f.notifier.events(EventBidWithdrawn); len(ev) != 1 || ev[0].userID != f.owner {
		t.Fatalf("withdrawn notifications = %+v", ev)
	}

	_, err = f.svc.SetStatus(ctx, b1.ID, f.owner, models.BidAccepted)
	if !errs.Is(err, errs.KindNotFound) {
		t.Fatalf("accept withdrawn bid: got %v", err)
	}
	if _, err := f.svc.Withdraw(ctx, b1.ID, b1.FreelancerID); !errs.Is(err, errs.KindNotFound) {
		t.Fatalf("second withdraw: got %v", err)
	}
}

func TestSetStatusRequiresClient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.bid(t, uuid.New())

	_, err := f.svc.SetStatus(ctx, b.ID, b.FreelancerID, models.BidAccepted)
	if !errs.Is(err, errs.KindNotFound) || !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("freelancer accepting own bid: got %v", err)
	}
	_, err = f.svc.SetStatus(ctx, b.ID, f.owner, models.BidWithdrawn)
	if !errs.Is(err, errs.KindValidation) {
		t.Fatalf("invalid target status: got %v", err)
	}
	_, err = f.svc.SetStatus(ctx, uuid.New(), f.owner, models.BidRejected)
	if !errs.Is(err, errs.KindNotFound) || errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("missing bid: got %v", err)
	}
}

func TestUpdateContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.bid(t, uuid.New())

	amount := 75.0
	got, err := f.svc.UpdateContent(ctx, b.ID, b.FreelancerID, Patch{Amount: &amount})
	if err != nil || got.Amount != 75 {
		t.Fatalf("update: %+v %v", got, err)
	}

	short := "short"
	_, err = f.svc.UpdateContent(ctx, b.ID, b.FreelancerID, Patch{Proposal: &short})
	if !errs.Is(err, errs.KindValidation) {
		t.Fatalf("short proposal: got %v", err)
	}
	stored, _ := f.db.FindBidByID(ctx, b.ID)
	if stored.Proposal != strings.TrimSpace(proposal) {
		t.Fatal("invalid update was persisted")
	}

	_, err = f.svc.UpdateContent(ctx, b.ID, uuid.New(), Patch{Amount: &amount})
	if !errs.Is(err, errs.KindNotFound) || !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("stranger update: got %v", err)
	}

	if _, err := f.svc.SetStatus(ctx, b.ID, f.owner, models.BidRejected); err != nil {
		t.Fatalf("reject: %v", err)
	}
	_, err = f.svc.UpdateContent(ctx, b.ID, b.FreelancerID, Patch{Amount: &amount})
	if !errs.Is(err, errs.KindNotFound) {
		t.Fatalf("update after reject: got %v", err)
	}
}

func TestVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	ba := f.bid(t, alice)
	f.bid(t, bob)

	if _, err := f.svc.Get(ctx, ba.ID, bob); !errs.Is(err, errs.KindNotFound) {
		t.Fatalf("bob reads alice's bid: %v", err)
	}
	if got, err := f.svc.Get(ctx, ba.ID, f.owner); err != nil || got.Gig == nil {
		t.Fatalf("client get: %+v %v", got, err)
	}

	res, err := f.svc.ListByGig(ctx, f.gig.ID, f.owner, "", store.Page{})
	if err != nil || res.Total != 2 {
		t.Fatalf("owner list: %+v %v", res, err)
	}
	res, err = f.svc.ListByGig(ctx, f.gig.ID, alice, "", store.Page{})
	if err != nil || res.Total != 1 || res.Items[0].FreelancerID != alice {
		t.Fatalf("alice list: %+v %v", res, err)
	}

	res, err = f.svc.ListByClient(ctx, f.owner, models.BidPending, store.Page{Sort: "amount"})
	if err != nil || res.Total != 2 {
		t.Fatalf("client list: %+v %v", res, err)
	}
	if _, err := f.svc.ListByFreelancer(ctx, alice, "bogus", store.Page{}); !errs.Is(err, errs.KindValidation) {
		t.Fatalf("bogus status filter: %v", err)
	}
}

func TestListPagination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 12; i++ {
		f.bid(t, uuid.New())
	}

	res, err := f.svc.ListByClient(ctx, f.owner, "", store.Page{Page: 2, Limit: 5})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if res.Total != 12 || len(res.Items) != 5 || res.Page.Page != 2 {
		t.Fatalf("page 2: total=%d len=%d page=%+v", res.Total, len(res.Items), res.Page)
	}
	res, _ = f.svc.ListByClient(ctx, f.owner, "", store.Page{Page: 3, Limit: 5})
	if len(res.Items) != 2 {
		t.Fatalf("page 3 len = %d", len(res.Items))
	}
	res, _ = f.svc.ListByClient(ctx, f.owner, "", store.Page{Limit: 1000})
	if res.Page.Limit != store.MaxLimit {
		t.Fatalf("limit not clamped: %d", res.Page.Limit)
	}
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	freelancer := uuid.New()
	b := f.bid(t, freelancer)

	other := models.Gig{FreelancerID: f.owner, Title: "Second gig", Description: "Another gig by the same owner.", Category: "design", PricingType: models.PricingFixed, Amount: 20, DeliveryDays: 2, IsActive: true}
	if err := f.db.CreateGig(ctx, &other); err != nil {
		t.Fatalf("create gig: %v", err)
	}
	if _, err := f.svc.Create(ctx, CreateInput{GigID: other.ID, FreelancerID: freelancer, Amount: 10, DeliveryTime: 1, Proposal: proposal}); err != nil {
		t.Fatalf("second bid: %v", err)
	}
	if _, err := f.svc.SetStatus(ctx, b.ID, f.owner, models.BidAccepted); err != nil {
		t.Fatalf("accept: %v", err)
	}

	st, err := f.svc.Stats(ctx, freelancer)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Total != 2 || st.Accepted != 1 || st.Pending != 1 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestNotificationFailureDoesNotFailOperation(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("redis down")
	b := f.bid(t, uuid.New())
	if b.ID == uuid.Nil {
		t.Fatal("bid not created")
	}
}
