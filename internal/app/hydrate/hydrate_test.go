package hydrate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flexcrow/escrowctl/internal/app/api"
	"github.com/flexcrow/escrowctl/internal/app/cache"
	"github.com/flexcrow/escrowctl/internal/app/domain/transaction"
	"github.com/flexcrow/escrowctl/internal/app/domain/user"
	"github.com/flexcrow/escrowctl/pkg/logger"
	"github.com/flexcrow/escrowctl/pkg/testutil"
)

func shipped(m testutil.Marketplace) transaction.Transaction {
	return transaction.Transaction{
		UserID:          m.Seller.ID,
		CustomerID:      m.Buyer.ID,
		Status:          transaction.StatusProcessing,
		Type:            transaction.TypePhysical,
		ProductID:       m.Physical.ID,
		ProductNumber:   1,
		AddressID:       m.Address.ID,
		PaymentID:       "missing-payment",
		Shipping:        "Kerry",
		ShippingPrice:   50,
		ShippingNumber:  "KE123",
		ShippingImageID: "missing-image",
		Fee:             10,
		FeeType:         transaction.FeeBuyer,
	}
}

func count(reqs []string, key string) int {
	n := 0
	for _, r := range reqs {
		if r == key {
			n++
		}
	}
	return n
}

func TestTransactionAsBuyer(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	m := fake.Seed()
	tx := fake.AddTransaction(shipped(m))
	h := New(fake.Client(m.Buyer), cache.NewMemory(), Config{}, logger.Discard())

	v, err := h.Transaction(testutil.Context(m.Buyer), tx.ID)
	require.NoError(t, err)
	require.Equal(t, transaction.PartyBuyer, v.Party)
	require.Equal(t, "seller01", v.Seller.Username)
	require.Equal(t, "buyer01", v.Buyer.Username)
	require.Equal(t, "Film camera", v.Product.Name)
	require.Len(t, v.ProductImages, 1)
	require.NotNil(t, v.Address)
	require.Equal(t, m.Address.ID, v.Address.ID)

	// Unknown payment and shipping image do not fail the view.
	require.Nil(t, v.Payment)
	require.Nil(t, v.ShippingImage)

	require.Equal(t, transaction.DeriveStep(tx), v.Step)
	require.Equal(t, transaction.Label(tx), v.Label)
	require.Equal(t, "200", v.Settlement.Subtotal.String())
	require.Equal(t, "210", v.Settlement.Buyer.String())
	require.Equal(t, "200", v.Settlement.Seller.String())
}

func TestLocateParties(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	m := fake.Seed()
	tx := fake.AddTransaction(shipped(m))

	_, party, err := New(fake.Client(m.Seller), nil, Config{}, logger.Discard()).Locate(testutil.Context(m.Seller), tx.ID)
	require.NoError(t, err)
	require.Equal(t, transaction.PartySeller, party)

	_, party, err = New(fake.Client(m.Admin), nil, Config{}, logger.Discard()).Locate(testutil.Context(m.Admin), tx.ID)
	require.NoError(t, err)
	require.Equal(t, transaction.PartyAdmin, party)

	stranger := fake.AddUser(user.User{Username: "other01", Email: "other@escrow.test"}, "secret123")
	_, _, err = New(fake.Client(stranger), nil, Config{}, logger.Discard()).Locate(testutil.Context(stranger), tx.ID)
	require.Error(t, err)

	_, _, err = New(fake.Client(m.Buyer), nil, Config{}, logger.Discard()).Locate(testutil.Context(m.Buyer), "nope")
	require.Error(t, err)
	require.Equal(t, 1, count(fake.Requests(), "GET /transactions/nope"), "a missing record is not retried as seller")
}

func TestProfilesAreCached(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	m := fake.Seed()
	h := New(fake.Client(m.Buyer), cache.NewMemory(), Config{}, logger.Discard())
	ctx := testutil.Context(m.Buyer)

	for i := 0; i < 3; i++ {
		p, err := h.Profile(ctx, m.Seller.ID)
		require.NoError(t, err)
		require.Equal(t, "seller01", p.Username)
	}
	require.Equal(t, 1, count(fake.Requests(), "GET /users/username"))

	h.Forget(ctx, m.Seller.ID)
	_, err := h.Profile(ctx, m.Seller.ID)
	require.NoError(t, err)
	require.Equal(t, 2, count(fake.Requests(), "GET /users/username"))
}

func TestListResolvesNames(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	m := fake.Seed()
	first := fake.AddTransaction(shipped(m))
	second := fake.AddTransaction(transaction.Transaction{
		UserID: m.Seller.ID, CustomerID: m.Buyer.ID, Type: transaction.TypeDigital,
		ProductID: m.Digital.ID, ProductNumber: 1,
	})
	h := New(fake.Client(m.Seller), cache.NewMemory(), Config{Concurrency: 2}, logger.Discard())

	page, err := h.List(testutil.Context(m.Seller), transaction.PartySeller, api.ListOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, page.TotalCount)
	require.Equal(t, second.ID, page.Items[0].Transaction.ID)
	require.Equal(t, "Preset pack", page.Items[0].ProductName)
	require.Equal(t, first.ID, page.Items[1].Transaction.ID)
	require.Equal(t, "Film camera", page.Items[1].ProductName)
	for _, row := range page.Items {
		require.Equal(t, "buyer01", row.Counterpart)
	}
	require.Equal(t, 1, count(fake.Requests(), "GET /users/username"))
}
