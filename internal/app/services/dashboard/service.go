// Package dashboard computes the summary figures shown on the member and
// admin landing pages.
package dashboard

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/flexcrow/escrowctl/internal/app/api"
	"github.com/flexcrow/escrowctl/internal/app/domain/address"
	"github.com/flexcrow/escrowctl/internal/app/domain/file"
	"github.com/flexcrow/escrowctl/internal/app/domain/payment"
	"github.com/flexcrow/escrowctl/internal/app/domain/product"
	"github.com/flexcrow/escrowctl/internal/app/domain/transaction"
	"github.com/flexcrow/escrowctl/internal/app/domain/user"
	"github.com/flexcrow/escrowctl/internal/app/domain/withdrawal"
	"github.com/flexcrow/escrowctl/pkg/logger"
)

const (
	scanPerPage     = 100
	productFetchers = 4
)

// API is the subset of the escrow client the dashboard reads.
type API interface {
	Me(ctx context.Context) (user.User, error)
	ListTransactions(ctx context.Context, opts api.ListOptions) (api.Page[transaction.Transaction], error)
	GetProduct(ctx context.Context, id string, viaTransaction bool) (product.Product, error)
	ListUsers(ctx context.Context, opts api.ListOptions) (api.Page[user.User], error)
	ListProducts(ctx context.Context, opts api.ListOptions) (api.Page[product.Product], error)
	ListAddresses(ctx context.Context, opts api.ListOptions) (api.Page[address.Address], error)
	ListPayments(ctx context.Context, opts api.ListOptions) (api.Page[payment.Payment], error)
	ListWithdrawals(ctx context.Context, opts api.ListOptions) (api.Page[withdrawal.Withdrawal], error)
	ListFiles(ctx context.Context, opts api.ListOptions) (api.Page[file.File], error)
}

type Service struct {
	api API
	log *logger.Logger
}

func New(client API, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("dashboard")
	}
	return &Service{api: client, log: log}
}

// Summary is the member landing page. Amounts cover completed transactions
// only and exclude fees.
type Summary struct {
	Purchases      int             `json:"purchases"`
	Sales          int             `json:"sales"`
	PurchaseAmount decimal.Decimal `json:"purchase_amount"`
	SalesAmount    decimal.Decimal `json:"sales_amount"`
	Balance        decimal.Decimal `json:"balance"`
}

// Member builds the caller's summary.
func (s *Service) Member(ctx context.Context) (Summary, error) {
	var (
		out       Summary
		bought    []transaction.Transaction
		sold      []transaction.Transaction
		me        user.User
		purchases int
		sales     int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		bought, purchases, err = s.completed(gctx, api.ListOptions{CustomerID: api.Current})
		return err
	})
	g.Go(func() error {
		var err error
		sold, sales, err = s.completed(gctx, api.ListOptions{UserID: api.Current})
		return err
	})
	g.Go(func() error {
		var err error
		me, err = s.api.Me(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Summary{}, fmt.Errorf("dashboard: %w", err)
	}

	prices, err := s.prices(ctx, append(append([]transaction.Transaction(nil), bought...), sold...))
	if err != nil {
		return Summary{}, err
	}
	out.Purchases = purchases
	out.Sales = sales
	out.PurchaseAmount = total(bought, prices)
	out.SalesAmount = total(sold, prices)
	out.Balance = decimal.NewFromFloat(me.Balance)
	return out, nil
}

// completed pages through a listing and returns its completed records and
// the unfiltered total.
func (s *Service) completed(ctx context.Context, opts api.ListOptions) ([]transaction.Transaction, int, error) {
	var (
		done  []transaction.Transaction
		total int
		seen  int
	)
	opts.RecordPerPage = scanPerPage
	for page := 1; ; page++ {
		opts.Page = page
		opts.StartIndex = 0
		res, err := s.api.ListTransactions(ctx, opts)
		if err != nil {
			return nil, 0, err
		}
		total = res.TotalCount
		for _, tx := range res.Items {
			if tx.Status == transaction.StatusCompleted {
				done = append(done, tx)
			}
		}
		seen += len(res.Items)
		if len(res.Items) == 0 || seen >= total {
			return done, total, nil
		}
	}
}

// prices fetches the unit price of every product referenced by txs. Products
// that can no longer be read count as zero.
func (s *Service) prices(ctx context.Context, txs []transaction.Transaction) (map[string]float64, error) {
	prices := make(map[string]float64)
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(productFetchers)
	seen := make(map[string]bool)
	for _, tx := range txs {
		id := tx.ProductID
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		g.Go(func() error {
			p, err := s.api.GetProduct(gctx, id, true)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				s.log.WithError(err).WithField("product_id", id).Warn("product unavailable, counted at zero")
				return nil
			}
			mu.Lock()
			prices[id] = p.Price
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("dashboard products: %w", err)
	}
	return prices, nil
}

func total(txs []transaction.Transaction, prices map[string]float64) decimal.Decimal {
	sum := decimal.Zero
	for _, tx := range txs {
		sum = sum.Add(transaction.Subtotal(prices[tx.ProductID], tx.ProductNumber, tx.ShippingPrice))
	}
	return sum
}

// Totals is the admin landing page: record counts per entity.
type Totals struct {
	Users        int `json:"users"`
	Products     int `json:"products"`
	Transactions int `json:"transactions"`
	Payments     int `json:"payments"`
	Withdrawals  int `json:"withdrawals"`
	Addresses    int `json:"addresses"`
	Files        int `json:"files"`
}

// Admin counts every entity. Each count is a one-record page read for its
// total_count.
func (s *Service) Admin(ctx context.Context) (Totals, error) {
	var out Totals
	one := api.ListOptions{RecordPerPage: 1}
	g, gctx := errgroup.WithContext(ctx)
	count := func(dst *int, name string, fn func() (int, error)) {
		g.Go(func() error {
			n, err := fn()
			if err != nil {
				return fmt.Errorf("count %s: %w", name, err)
			}
			*dst = n
			return nil
		})
	}
	count(&out.Users, "users", func() (int, error) {
		p, err := s.api.ListUsers(gctx, one)
		return p.TotalCount, err
	})
	count(&out.Products, "products", func() (int, error) {
		p, err := s.api.ListProducts(gctx, one)
		return p.TotalCount, err
	})
	count(&out.Transactions, "transactions", func() (int, error) {
		p, err := s.api.ListTransactions(gctx, one)
		return p.TotalCount, err
	})
	count(&out.Payments, "payments", func() (int, error) {
		p, err := s.api.ListPayments(gctx, one)
		return p.TotalCount, err
	})
	count(&out.Withdrawals, "withdrawals", func() (int, error) {
		p, err := s.api.ListWithdrawals(gctx, one)
		return p.TotalCount, err
	})
	count(&out.Addresses, "addresses", func() (int, error) {
		p, err := s.api.ListAddresses(gctx, one)
		return p.TotalCount, err
	})
	count(&out.Files, "files", func() (int, error) {
		p, err := s.api.ListFiles(gctx, one)
		return p.TotalCount, err
	})
	if err := g.Wait(); err != nil {
		return Totals{}, err
	}
	return out, nil
}
