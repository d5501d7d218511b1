package watch

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/flexcrow/escrowctl/internal/app/api"
	"github.com/flexcrow/escrowctl/internal/app/domain/transaction"
	"github.com/flexcrow/escrowctl/pkg/logger"
	"github.com/flexcrow/escrowctl/pkg/testutil"
)

func TestPollReportsChangesAfterSeeding(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	m := fake.Seed()
	offered := fake.AddTransaction(transaction.Transaction{
		UserID: m.Seller.ID, CustomerID: m.Buyer.ID, Type: transaction.TypeDigital,
		ProductID: m.Digital.ID, ProductNumber: 1,
	})
	client := fake.Client(m.Buyer)
	ctx := testutil.Context(m.Buyer)
	w := New(client, "", nil, logger.Discard())

	changes, err := w.Poll(ctx)
	if err != nil {
		t.Fatalf("seed poll: %v", err)
	}
	if len(changes) != 0 {
		t.Fatalf("first poll must only seed, got %+v", changes)
	}

	processing := transaction.StatusProcessing
	if err := client.UpdateTransaction(ctx, offered.ID, api.TransactionPatch{Status: &processing}); err != nil {
		t.Fatalf("accept: %v", err)
	}
	added := fake.AddTransaction(transaction.Transaction{
		UserID: m.Seller.ID, CustomerID: m.Buyer.ID, Type: transaction.TypePhysical,
		ProductID: m.Physical.ID, ProductNumber: 1,
	})

	changes, err = w.Poll(ctx)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(changes) != 2 {
		t.Fatalf("expected 2 changes, got %+v", changes)
	}
	byID := map[string]Change{}
	for _, c := range changes {
		byID[c.TransactionID] = c
	}

	moved := byID[offered.ID]
	if moved.From.Step != transaction.StepOffered || moved.To.Step != transaction.StepAwaitingPayment {
		t.Fatalf("unexpected transition %+v", moved)
	}
	if moved.Party != transaction.PartyBuyer || moved.To.Label != "Waiting for payment" {
		t.Fatalf("unexpected change %+v", moved)
	}
	fresh := byID[added.ID]
	if fresh.From != (State{}) || fresh.To.Status != transaction.StatusPending {
		t.Fatalf("new transaction should start from zero state: %+v", fresh)
	}

	changes, _ = w.Poll(ctx)
	if len(changes) != 0 {
		t.Fatalf("no changes expected, got %+v", changes)
	}
}

func TestPollFailureKeepsState(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	m := fake.Seed()
	fake.AddTransaction(transaction.Transaction{UserID: m.Seller.ID, CustomerID: m.Buyer.ID, ProductID: m.Digital.ID, ProductNumber: 1})
	ctx := testutil.Context(m.Seller)
	w := New(fake.Client(m.Seller), "", nil, logger.Discard())

	fake.FailNext(http.MethodGet, "/transactions", http.StatusInternalServerError, "boom")
	if _, err := w.Poll(ctx); err == nil {
		t.Fatalf("expected poll error")
	}
	changes, err := w.Poll(ctx)
	if err != nil || len(changes) != 0 {
		t.Fatalf("a failed poll must not count as the seed: %v %+v", err, changes)
	}
}

func TestStartSeedsAndStops(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	m := fake.Seed()

	var mu sync.Mutex
	var got []Change
	w := New(fake.Client(m.Buyer), "@every 1h", func(c Change) {
		mu.Lock()
		got = append(got, c)
		mu.Unlock()
	}, logger.Discard())

	if err := w.Start(testutil.Context(m.Buyer)); err != nil {
		t.Fatalf("start: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for !fake.Called(http.MethodGet, "/transactions") {
		if time.Now().After(deadline) {
			t.Fatalf("watcher never polled")
		}
		time.Sleep(10 * time.Millisecond)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := w.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := w.Stop(stopCtx); err != nil {
		t.Fatalf("second stop: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(got) != 0 {
		t.Fatalf("seeding must not report changes: %+v", got)
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	w := New(nil, "every now and then", nil, logger.Discard())
	if err := w.Start(context.Background()); err == nil {
		t.Fatalf("expected schedule error")
	}
}
