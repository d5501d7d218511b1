package withdrawals

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/flexcrow/escrowctl/internal/app/api"
	"github.com/flexcrow/escrowctl/internal/app/domain/transaction"
	"github.com/flexcrow/escrowctl/internal/app/domain/user"
	"github.com/flexcrow/escrowctl/internal/app/domain/withdrawal"
	"github.com/flexcrow/escrowctl/internal/app/validation"
	"github.com/flexcrow/escrowctl/internal/errors"
	"github.com/flexcrow/escrowctl/internal/logging"
	"github.com/flexcrow/escrowctl/pkg/logger"
)

// API is the subset of the escrow client used for payouts.
type API interface {
	Me(ctx context.Context) (user.User, error)
	ListWithdrawals(ctx context.Context, opts api.ListOptions) (api.Page[withdrawal.Withdrawal], error)
	GetWithdrawal(ctx context.Context, id string) (withdrawal.Withdrawal, error)
	CreateWithdrawal(ctx context.Context, form api.WithdrawalForm) (string, error)
	UpdateWithdrawal(ctx context.Context, id string, patch api.WithdrawalPatch) error
	DeleteWithdrawal(ctx context.Context, id string) error
}

// Service manages withdrawal requests.
type Service struct {
	api API
	log *logger.Logger
}

func New(client API, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("withdrawals")
	}
	return &Service{api: client, log: log}
}

// Request is the payout form. Amount is money text.
type Request struct {
	Method  string `json:"method" validate:"required"`
	Account string `json:"account" validate:"required,max=100"`
	Amount  string `json:"amount" validate:"required,money"`
}

// Create requests a payout of part of the caller's balance. The amount must
// reach the method's minimum and must not exceed the current balance.
func (s *Service) Create(ctx context.Context, req Request) (string, error) {
	req.Method = strings.ToLower(strings.TrimSpace(req.Method))
	req.Account = strings.TrimSpace(req.Account)
	req.Amount = strings.TrimSpace(req.Amount)

	extra := map[string]string{}
	method, known := withdrawal.LookupMethod(req.Method)
	if req.Method != "" && !known {
		extra["method"] = "Invalid withdrawal method"
	}
	if err := validation.Merge(validation.Struct(req), extra); err != nil {
		return "", err
	}

	amount, _ := transaction.ParseMoney(req.Amount)
	minimum := decimal.NewFromFloat(method.MinAmount)
	if amount.LessThan(minimum) {
		return "", errors.Validation(map[string]string{
			"amount": fmt.Sprintf("Minimum withdrawal for %s is %s", method.Name, minimum.StringFixed(2)),
		})
	}

	me, err := s.api.Me(ctx)
	if err != nil {
		return "", fmt.Errorf("read balance: %w", err)
	}
	if amount.GreaterThan(decimal.NewFromFloat(me.Balance)) {
		return "", errors.Validation(map[string]string{"amount": "Insufficient balance"})
	}

	id, err := s.api.CreateWithdrawal(ctx, api.WithdrawalForm{
		Status:  withdrawal.StatusPending,
		Amount:  amount.InexactFloat64(),
		Method:  method.ID,
		Account: req.Account,
	})
	if err != nil {
		return "", fmt.Errorf("create withdrawal: %w", err)
	}
	s.log.WithFields(map[string]interface{}{
		"withdrawal_id": id,
		"method":        method.ID,
		"amount":        amount.StringFixed(2),
	}).Info("withdrawal requested")
	return id, nil
}

// List returns the caller's withdrawals, or every withdrawal for admins
// when all is set.
func (s *Service) List(ctx context.Context, all bool, opts api.ListOptions) (api.Page[withdrawal.Withdrawal], error) {
	if !all || user.Role(logging.GetRole(ctx)) != user.RoleAdmin {
		opts.UserID = api.Current
	}
	return s.api.ListWithdrawals(ctx, opts)
}

func (s *Service) Get(ctx context.Context, id string) (withdrawal.Withdrawal, error) {
	return s.api.GetWithdrawal(ctx, id)
}

// SetStatus is the admin decision on a request.
func (s *Service) SetStatus(ctx context.Context, id string, status withdrawal.Status) error {
	if status < withdrawal.StatusPending || status > withdrawal.StatusCanceled {
		return errors.Validation(map[string]string{"status": "Status must be one of 1 2 3"})
	}
	if err := s.api.UpdateWithdrawal(ctx, id, api.WithdrawalPatch{Status: &status}); err != nil {
		return fmt.Errorf("update withdrawal %s: %w", id, err)
	}
	s.log.WithField("withdrawal_id", id).WithField("status", status.String()).Info("withdrawal updated")
	return nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.api.DeleteWithdrawal(ctx, id)
}
