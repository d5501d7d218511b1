package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/flexcrow/escrowctl/internal/app/domain/payment"
)

// PaymentPatch is a partial payment update.
type PaymentPatch struct {
	Status *payment.Status `json:"status,omitempty"`
	Amount *float64        `json:"amount,omitempty"`
	Method *string         `json:"method,omitempty"`
}

func (c *Client) ListPayments(ctx context.Context, opts ListOptions) (Page[payment.Payment], error) {
	raw, err := c.list(ctx, "/payments", "payment_items", opts.Query())
	if err != nil {
		return Page[payment.Payment]{}, err
	}
	return decodePage[payment.Payment](raw, "payment_items")
}

func (c *Client) GetPayment(ctx context.Context, id string) (payment.Payment, error) {
	var p payment.Payment
	err := c.get(ctx, "/payments/"+escape(id), &p)
	return p, err
}

// PaymentForm creates a payment record directly. UserID is a username and
// is only honoured for admins.
type PaymentForm struct {
	UserID string         `json:"user_id,omitempty"`
	Status payment.Status `json:"status"`
	Amount float64        `json:"amount"`
	Method string         `json:"method"`
}

func (c *Client) CreatePayment(ctx context.Context, form PaymentForm) (string, error) {
	return c.create(ctx, "/payments", form)
}

func (c *Client) UpdatePayment(ctx context.Context, id string, patch PaymentPatch) error {
	return c.call(ctx, http.MethodPut, "/payments/"+escape(id), patch, nil)
}

func (c *Client) DeletePayment(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/payments/"+escape(id), nil, nil)
}

// Checkout opens a hosted checkout for a transaction. The API records a
// pending payment and returns the page the buyer must visit.
func (c *Client) Checkout(ctx context.Context, transactionID string, req payment.CheckoutRequest) (payment.CheckoutSession, error) {
	var out payment.CheckoutSession
	path := withQuery("/pay", url.Values{"transaction": {transactionID}})
	err := c.call(ctx, http.MethodPost, path, req, &out)
	return out, err
}
