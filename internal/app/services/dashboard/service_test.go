package dashboard

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flexcrow/escrowctl/internal/app/domain/transaction"
	"github.com/flexcrow/escrowctl/pkg/logger"
	"github.com/flexcrow/escrowctl/pkg/testutil"
)

func TestMemberSummary(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	m := fake.Seed()
	fake.AddTransaction(transaction.Transaction{
		UserID: m.Seller.ID, CustomerID: m.Buyer.ID, Type: transaction.TypePhysical,
		ProductID: m.Physical.ID, ProductNumber: 2, ShippingPrice: 30, Fee: 9.9,
		Status: transaction.StatusCompleted,
	})
	fake.AddTransaction(transaction.Transaction{
		UserID: m.Seller.ID, CustomerID: m.Buyer.ID, Type: transaction.TypeDigital,
		ProductID: m.Digital.ID, ProductNumber: 1, Status: transaction.StatusCompleted,
	})
	fake.AddTransaction(transaction.Transaction{
		UserID: m.Seller.ID, CustomerID: m.Buyer.ID, Type: transaction.TypePhysical,
		ProductID: m.Physical.ID, ProductNumber: 5, Status: transaction.StatusProcessing,
	})

	buyer, err := New(fake.Client(m.Buyer), logger.Discard()).Member(testutil.Context(m.Buyer))
	require.NoError(t, err)
	require.Equal(t, 3, buyer.Purchases)
	require.Equal(t, 0, buyer.Sales)
	require.Equal(t, "370", buyer.PurchaseAmount.String())
	require.True(t, buyer.SalesAmount.IsZero())
	require.Equal(t, "1000", buyer.Balance.String())

	seller, err := New(fake.Client(m.Seller), logger.Discard()).Member(testutil.Context(m.Seller))
	require.NoError(t, err)
	require.Equal(t, 3, seller.Sales)
	require.Equal(t, "370", seller.SalesAmount.String())
	require.Equal(t, "50", seller.Balance.String())
}

func TestMemberSummaryPagesAndMissingProducts(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	m := fake.Seed()
	for i := 0; i < scanPerPage+5; i++ {
		fake.AddTransaction(transaction.Transaction{
			UserID: m.Seller.ID, CustomerID: m.Buyer.ID, Type: transaction.TypeDigital,
			ProductID: m.Digital.ID, ProductNumber: 1, Status: transaction.StatusCompleted,
		})
	}
	fake.AddTransaction(transaction.Transaction{
		UserID: m.Seller.ID, CustomerID: m.Buyer.ID, Type: transaction.TypePhysical,
		ProductID: "gone", ProductNumber: 1, ShippingPrice: 12.5, Status: transaction.StatusCompleted,
	})

	sum, err := New(fake.Client(m.Buyer), logger.Discard()).Member(testutil.Context(m.Buyer))
	require.NoError(t, err)
	require.Equal(t, scanPerPage+6, sum.Purchases)
	require.Equal(t, "4212.5", sum.PurchaseAmount.String())
}

func TestAdminTotals(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	m := fake.Seed()
	fake.AddTransaction(transaction.Transaction{UserID: m.Seller.ID, CustomerID: m.Buyer.ID, ProductID: m.Digital.ID, ProductNumber: 1})

	got, err := New(fake.Client(m.Admin), logger.Discard()).Admin(testutil.Context(m.Admin))
	require.NoError(t, err)
	require.Equal(t, Totals{Users: 3, Products: 2, Transactions: 1, Addresses: 1, Files: 1}, got)
}

func TestAdminTotalsRequireAdmin(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	m := fake.Seed()

	_, err := New(fake.Client(m.Seller), logger.Discard()).Admin(testutil.Context(m.Seller))
	require.Error(t, err)
}
