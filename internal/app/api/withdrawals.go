package api

import (
	"context"
	"net/http"

	"github.com/flexcrow/escrowctl/internal/app/domain/withdrawal"
)

// WithdrawalForm is the body of a payout request.
type WithdrawalForm struct {
	UserID  string            `json:"user_id,omitempty"`
	Status  withdrawal.Status `json:"status"`
	Amount  float64           `json:"amount"`
	Method  string            `json:"method"`
	Account string            `json:"account"`
}

// WithdrawalPatch is the admin update.
type WithdrawalPatch struct {
	Status  *withdrawal.Status `json:"status,omitempty"`
	Amount  *float64           `json:"amount,omitempty"`
	Method  *string            `json:"method,omitempty"`
	Account *string            `json:"account,omitempty"`
}

func (c *Client) ListWithdrawals(ctx context.Context, opts ListOptions) (Page[withdrawal.Withdrawal], error) {
	raw, err := c.list(ctx, "/withdrawals", "withdrawal_items", opts.Query())
	if err != nil {
		return Page[withdrawal.Withdrawal]{}, err
	}
	return decodePage[withdrawal.Withdrawal](raw, "withdrawal_items")
}

func (c *Client) GetWithdrawal(ctx context.Context, id string) (withdrawal.Withdrawal, error) {
	var w withdrawal.Withdrawal
	err := c.get(ctx, "/withdrawals/"+escape(id), &w)
	return w, err
}

func (c *Client) CreateWithdrawal(ctx context.Context, form WithdrawalForm) (string, error) {
	return c.create(ctx, "/withdrawals", form)
}

func (c *Client) UpdateWithdrawal(ctx context.Context, id string, patch WithdrawalPatch) error {
	return c.call(ctx, http.MethodPut, "/withdrawals/"+escape(id), patch, nil)
}

func (c *Client) DeleteWithdrawal(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/withdrawals/"+escape(id), nil, nil)
}
