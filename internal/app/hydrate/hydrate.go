// Package hydrate assembles a transaction with everything needed to show it:
// both parties, the product and its media, the shipping address, the payment
// and the derived step, label, action panel and settlement.
package hydrate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/flexcrow/escrowctl/internal/app/api"
	"github.com/flexcrow/escrowctl/internal/app/cache"
	"github.com/flexcrow/escrowctl/internal/app/domain/address"
	"github.com/flexcrow/escrowctl/internal/app/domain/file"
	"github.com/flexcrow/escrowctl/internal/app/domain/payment"
	"github.com/flexcrow/escrowctl/internal/app/domain/product"
	"github.com/flexcrow/escrowctl/internal/app/domain/transaction"
	"github.com/flexcrow/escrowctl/internal/app/domain/user"
	"github.com/flexcrow/escrowctl/internal/errors"
	"github.com/flexcrow/escrowctl/internal/logging"
	"github.com/flexcrow/escrowctl/pkg/logger"
)

// API is the subset of the escrow client the hydrator reads from.
type API interface {
	GetTransaction(ctx context.Context, id string, scope api.Scope) (transaction.Transaction, error)
	ListTransactions(ctx context.Context, opts api.ListOptions) (api.Page[transaction.Transaction], error)
	GetProduct(ctx context.Context, id string, viaTransaction bool) (product.Product, error)
	GetAddress(ctx context.Context, id string, viaTransaction bool) (address.Address, error)
	GetPayment(ctx context.Context, id string) (payment.Payment, error)
	GetFile(ctx context.Context, id string) (file.File, error)
	Profile(ctx context.Context, id string) (user.Profile, error)
}

// View is a fully hydrated transaction as seen by one party.
type View struct {
	Transaction   transaction.Transaction `json:"transaction"`
	Party         transaction.Party       `json:"party"`
	Seller        user.Profile            `json:"seller"`
	Buyer         user.Profile            `json:"buyer"`
	Product       product.Product         `json:"product"`
	ProductImages []file.File             `json:"product_images,omitempty"`
	ProductVideo  *file.File              `json:"product_video,omitempty"`
	Address       *address.Address        `json:"address,omitempty"`
	ShippingImage *file.File              `json:"shipping_image,omitempty"`
	Payment       *payment.Payment        `json:"payment,omitempty"`
	Step          transaction.Step        `json:"step"`
	Label         string                  `json:"label"`
	Actions       []transaction.Action    `json:"actions"`
	Settlement    transaction.Settlement  `json:"settlement"`
}

// Row is one line of a hydrated listing.
type Row struct {
	Transaction transaction.Transaction `json:"transaction"`
	Counterpart string                  `json:"counterpart"`
	ProductName string                  `json:"product_name"`
	Step        transaction.Step        `json:"step"`
	Label       string                  `json:"label"`
}

// Config tunes caching and fan-out.
type Config struct {
	TTL         time.Duration
	Concurrency int
}

// Hydrator performs the lookups concurrently. Profiles and files are cached;
// products, addresses and payments change and are always read fresh.
type Hydrator struct {
	api   API
	cache cache.Cache
	ttl   time.Duration
	limit int
	log   *logger.Logger
}

// New creates a hydrator. A nil cache disables caching.
func New(client API, c cache.Cache, cfg Config, log *logger.Logger) *Hydrator {
	if c == nil {
		c = cache.Nop{}
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if log == nil {
		log = logger.NewDefault("hydrate")
	}
	return &Hydrator{api: client, cache: c, ttl: cfg.TTL, limit: cfg.Concurrency, log: log}
}

// Locate reads a transaction on behalf of the caller in ctx and reports the
// caller's side. Members are tried as buyer, then as seller; admins read
// unscoped.
func (h *Hydrator) Locate(ctx context.Context, id string) (transaction.Transaction, transaction.Party, error) {
	if user.Role(logging.GetRole(ctx)) == user.RoleAdmin {
		tx, err := h.api.GetTransaction(ctx, id, api.ScopeAny)
		if err != nil {
			return tx, "", err
		}
		if party := tx.PartyOf(logging.GetUserID(ctx)); party != "" {
			return tx, party, nil
		}
		return tx, transaction.PartyAdmin, nil
	}

	tx, err := h.api.GetTransaction(ctx, id, api.ScopeCustomer)
	if err == nil {
		return tx, transaction.PartyBuyer, nil
	}
	if errors.IsNotFound(err) {
		return tx, "", err
	}
	tx, err2 := h.api.GetTransaction(ctx, id, api.ScopeSeller)
	if err2 != nil {
		return tx, "", fmt.Errorf("transaction %s: %w", id, err2)
	}
	return tx, transaction.PartySeller, nil
}

// Transaction locates and hydrates one transaction.
func (h *Hydrator) Transaction(ctx context.Context, id string) (View, error) {
	tx, party, err := h.Locate(ctx, id)
	if err != nil {
		return View{}, err
	}
	return h.Hydrate(ctx, tx, party)
}

// Hydrate fills in a View for a transaction already read. Seller, buyer and
// product are required; the rest is best effort.
func (h *Hydrator) Hydrate(ctx context.Context, tx transaction.Transaction, party transaction.Party) (View, error) {
	v := View{
		Transaction: tx,
		Party:       party,
		Step:        transaction.DeriveStep(tx),
		Label:       transaction.Label(tx),
		Actions:     transaction.Actions(tx, party),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := h.Profile(gctx, tx.UserID)
		if err != nil {
			return fmt.Errorf("seller profile: %w", err)
		}
		v.Seller = p
		return nil
	})
	g.Go(func() error {
		p, err := h.Profile(gctx, tx.CustomerID)
		if err != nil {
			return fmt.Errorf("buyer profile: %w", err)
		}
		v.Buyer = p
		return nil
	})
	g.Go(func() error {
		p, err := h.api.GetProduct(gctx, tx.ProductID, party != transaction.PartySeller)
		if err != nil {
			return fmt.Errorf("product: %w", err)
		}
		v.Product = p
		return nil
	})
	if tx.AddressID != "" {
		g.Go(func() error {
			a, err := h.api.GetAddress(gctx, tx.AddressID, party != transaction.PartyBuyer)
			if err != nil {
				h.optional(gctx, "address", tx.AddressID, err)
				return nil
			}
			v.Address = &a
			return nil
		})
	}
	if tx.PaymentID != "" {
		g.Go(func() error {
			p, err := h.api.GetPayment(gctx, tx.PaymentID)
			if err != nil {
				h.optional(gctx, "payment", tx.PaymentID, err)
				return nil
			}
			v.Payment = &p
			return nil
		})
	}
	if tx.ShippingImageID != "" {
		g.Go(func() error {
			f, err := h.File(gctx, tx.ShippingImageID)
			if err != nil {
				h.optional(gctx, "shipping image", tx.ShippingImageID, err)
				return nil
			}
			v.ShippingImage = &f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return View{}, err
	}

	v.ProductImages, v.ProductVideo = h.media(ctx, v.Product)
	v.Settlement = transaction.SettleTransaction(tx, v.Product.Price)
	return v, nil
}

// media resolves product images and video; failures are skipped.
func (h *Hydrator) media(ctx context.Context, p product.Product) ([]file.File, *file.File) {
	images := make([]*file.File, len(p.ImageIDs))
	var video *file.File

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.limit)
	for i, id := range p.ImageIDs {
		i, id := i, id
		g.Go(func() error {
			f, err := h.File(gctx, id)
			if err != nil {
				h.optional(gctx, "product image", id, err)
				return nil
			}
			images[i] = &f
			return nil
		})
	}
	if p.VideoID != "" {
		g.Go(func() error {
			f, err := h.File(gctx, p.VideoID)
			if err != nil {
				h.optional(gctx, "product video", p.VideoID, err)
				return nil
			}
			video = &f
			return nil
		})
	}
	_ = g.Wait()

	out := make([]file.File, 0, len(images))
	for _, f := range images {
		if f != nil {
			out = append(out, *f)
		}
	}
	return out, video
}

// List reads one page of the caller's purchases (buyer) or sales (seller)
// and resolves counterpart usernames and product names.
func (h *Hydrator) List(ctx context.Context, party transaction.Party, opts api.ListOptions) (api.Page[Row], error) {
	switch party {
	case transaction.PartyBuyer:
		opts.CustomerID = api.Current
	case transaction.PartySeller:
		opts.UserID = api.Current
	}
	page, err := h.api.ListTransactions(ctx, opts)
	if err != nil {
		return api.Page[Row]{}, err
	}

	var (
		mu       sync.Mutex
		names    = map[string]string{}
		products = map[string]string{}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.limit)
	seen := map[string]bool{}
	for _, tx := range page.Items {
		other := tx.Counterpart(party)
		if party == transaction.PartyAdmin {
			other = tx.UserID
		}
		if other != "" && !seen["u:"+other] {
			seen["u:"+other] = true
			g.Go(func() error {
				p, err := h.Profile(gctx, other)
				if err != nil {
					h.optional(gctx, "profile", other, err)
					return nil
				}
				mu.Lock()
				names[other] = p.Username
				mu.Unlock()
				return nil
			})
		}
		if tx.ProductID != "" && !seen["p:"+tx.ProductID] {
			seen["p:"+tx.ProductID] = true
			productID := tx.ProductID
			g.Go(func() error {
				p, err := h.api.GetProduct(gctx, productID, party != transaction.PartySeller)
				if err != nil {
					h.optional(gctx, "product", productID, err)
					return nil
				}
				mu.Lock()
				products[productID] = p.Name
				mu.Unlock()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return api.Page[Row]{}, err
	}

	rows := make([]Row, 0, len(page.Items))
	for _, tx := range page.Items {
		other := tx.Counterpart(party)
		if party == transaction.PartyAdmin {
			other = tx.UserID
		}
		rows = append(rows, Row{
			Transaction: tx,
			Counterpart: names[other],
			ProductName: products[tx.ProductID],
			Step:        transaction.DeriveStep(tx),
			Label:       transaction.Label(tx),
		})
	}
	return api.Page[Row]{TotalCount: page.TotalCount, Items: rows}, nil
}

// Profile returns a cached public profile. The balance in a cached profile
// may be stale; settlement reads it fresh from the API.
func (h *Hydrator) Profile(ctx context.Context, id string) (user.Profile, error) {
	var p user.Profile
	key := "profile:" + id
	if found, err := h.cache.Get(ctx, key, &p); err == nil && found {
		return p, nil
	}
	p, err := h.api.Profile(ctx, id)
	if err != nil {
		return p, err
	}
	h.store(ctx, key, p)
	return p, nil
}

// File returns cached file metadata.
func (h *Hydrator) File(ctx context.Context, id string) (file.File, error) {
	var f file.File
	key := "file:" + id
	if found, err := h.cache.Get(ctx, key, &f); err == nil && found {
		return f, nil
	}
	f, err := h.api.GetFile(ctx, id)
	if err != nil {
		return f, err
	}
	h.store(ctx, key, f)
	return f, nil
}

// Forget drops a cached profile, used after balance changes.
func (h *Hydrator) Forget(ctx context.Context, userID string) {
	_ = h.cache.Delete(ctx, "profile:"+userID)
}

func (h *Hydrator) store(ctx context.Context, key string, v any) {
	if err := h.cache.Set(ctx, key, v, h.ttl); err != nil {
		h.log.WithError(err).WithField("key", key).Debug("cache write failed")
	}
}

func (h *Hydrator) optional(ctx context.Context, what, id string, err error) {
	if ctx.Err() != nil {
		return
	}
	h.log.WithError(err).WithField("id", id).Debugf("%s unavailable", what)
}
