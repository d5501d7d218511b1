package api

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/flexcrow/escrowctl/internal/app/domain/transaction"
)

// TransactionCreate is the body of a new offer. CustomerID (and UserID, for
// admins) are usernames; the API resolves them to IDs.
type TransactionCreate struct {
	UserID           string              `json:"user_id,omitempty"`
	CustomerID       string              `json:"customer_id"`
	Status           transaction.Status  `json:"status"`
	Type             transaction.Type    `json:"type"`
	ProductID        string              `json:"product_id"`
	ProductNumber    int                 `json:"product_number"`
	AddressID        string              `json:"address_id"`
	PaymentID        string              `json:"payment_id"`
	Shipping         string              `json:"shipping"`
	ShippingPrice    float64             `json:"shipping_price"`
	ShippingNumber   string              `json:"shipping_number"`
	ShippingDetails  string              `json:"shipping_details"`
	ShippingImageID  string              `json:"shipping_image_id"`
	DeliveredDetails string              `json:"delivered_details"`
	Fee              float64             `json:"fee"`
	FeeType          transaction.FeeType `json:"fee_type"`
}

// TransactionPatch is a partial update. The API clears delivered_at whenever
// it is absent from the body, so DeliveredAt is always serialized; use
// Keep to carry the stored value forward.
type TransactionPatch struct {
	Status           *transaction.Status  `json:"status,omitempty"`
	Type             *transaction.Type    `json:"type,omitempty"`
	ProductID        *string              `json:"product_id,omitempty"`
	ProductNumber    *int                 `json:"product_number,omitempty"`
	AddressID        *string              `json:"address_id,omitempty"`
	PaymentID        *string              `json:"payment_id,omitempty"`
	Shipping         *string              `json:"shipping,omitempty"`
	ShippingPrice    *float64             `json:"shipping_price,omitempty"`
	ShippingNumber   *string              `json:"shipping_number,omitempty"`
	ShippingDetails  *string              `json:"shipping_details,omitempty"`
	ShippingImageID  *string              `json:"shipping_image_id,omitempty"`
	DeliveredAt      *time.Time           `json:"delivered_at"`
	DeliveredDetails *string              `json:"delivered_details,omitempty"`
	Fee              *float64             `json:"fee,omitempty"`
	FeeType          *transaction.FeeType `json:"fee_type,omitempty"`
}

// Keep copies the stored delivered_at into the patch unless one is set.
func (p TransactionPatch) Keep(t transaction.Transaction) TransactionPatch {
	if p.DeliveredAt == nil && t.DeliveredAt != nil {
		at := *t.DeliveredAt
		p.DeliveredAt = &at
	}
	return p
}

// Scope restricts a single-record read to the caller's side.
type Scope string

const (
	ScopeAny      Scope = ""
	ScopeSeller   Scope = "user_id"
	ScopeCustomer Scope = "customer_id"
)

func (c *Client) ListTransactions(ctx context.Context, opts ListOptions) (Page[transaction.Transaction], error) {
	raw, err := c.list(ctx, "/transactions", "transaction_items", opts.Query())
	if err != nil {
		return Page[transaction.Transaction]{}, err
	}
	return decodePage[transaction.Transaction](raw, "transaction_items")
}

func (c *Client) GetTransaction(ctx context.Context, id string, scope Scope) (transaction.Transaction, error) {
	var t transaction.Transaction
	path := "/transactions/" + escape(id)
	if scope != ScopeAny {
		path = withQuery(path, url.Values{string(scope): {Current}})
	}
	err := c.get(ctx, path, &t)
	return t, err
}

// CreateTransaction posts an offer and returns the new transaction ID.
func (c *Client) CreateTransaction(ctx context.Context, body TransactionCreate) (string, error) {
	return c.create(ctx, "/transactions", body)
}

func (c *Client) UpdateTransaction(ctx context.Context, id string, patch TransactionPatch) error {
	return c.call(ctx, http.MethodPut, "/transactions/"+escape(id), patch, nil)
}

func (c *Client) DeleteTransaction(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/transactions/"+escape(id), nil, nil)
}
