package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/flexcrow/escrowctl/internal/app/api"
	"github.com/flexcrow/escrowctl/internal/app/domain/payment"
	"github.com/flexcrow/escrowctl/internal/app/domain/transaction"
	"github.com/flexcrow/escrowctl/internal/app/domain/withdrawal"
	"github.com/flexcrow/escrowctl/internal/app/services/withdrawals"
	"github.com/flexcrow/escrowctl/internal/cli"
)

func cmdPayment(ctx context.Context, e *env, args []string) error {
	return dispatch(ctx, e, "payment", args, map[string]handler{
		"list":   paymentList,
		"show":   paymentShow,
		"create": paymentCreate,
		"update": paymentUpdate,
		"delete": paymentDelete,
	})
}

func paymentList(ctx context.Context, e *env, args []string) error {
	fs, opts := pageFlags(e, "payment list")
	owner := fs.String("user", "", "only payments of this user ID")
	if _, err := parse(fs, args); err != nil {
		return err
	}
	ctx, _, err := e.session(ctx)
	if err != nil {
		return err
	}
	opts.UserID = *owner
	page, err := e.app.API.ListPayments(ctx, *opts)
	if err != nil {
		return err
	}
	t := &cli.Table{Header: []string{"ID", "USER", "AMOUNT", "METHOD", "STATUS", "CREATED"}}
	for _, p := range page.Items {
		t.Append(p.ID, p.UserID, money(p.Amount), p.Method, p.Status.String(), p.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return e.printer.Print(page, t)
}

func paymentShow(ctx context.Context, e *env, args []string) error {
	id, err := oneArg(e.flags("payment show"), args, "payment show <id>")
	if err != nil {
		return err
	}
	ctx, _, err = e.session(ctx)
	if err != nil {
		return err
	}
	p, err := e.app.API.GetPayment(ctx, id)
	if err != nil {
		return err
	}
	return e.printer.Print(p, cli.Fields(
		"ID", p.ID,
		"User", p.UserID,
		"Amount", money(p.Amount),
		"Method", p.Method,
		"Status", p.Status.String(),
	))
}

func parsePaymentStatus(s string) (payment.Status, error) {
	for _, st := range []payment.Status{payment.StatusPending, payment.StatusSuccess, payment.StatusCancel} {
		if s == st.String() || s == strconv.Itoa(int(st)) {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown payment status %q (pending, success, cancel)", s)
}

// paymentCreate records a payment made outside checkout, e.g. a bank
// transfer confirmed by an admin.
func paymentCreate(ctx context.Context, e *env, args []string) error {
	fs := e.flags("payment create")
	owner := fs.String("user", "", "username the payment belongs to (admin only)")
	status := fs.String("status", "pending", "pending, success or cancel")
	amount := fs.String("amount", "", "amount")
	method := fs.String("method", "", "payment method")
	if _, err := parse(fs, args); err != nil {
		return err
	}
	if *amount == "" || *method == "" {
		return usageError("payment create --amount <n> --method <m> [--status s] [--user username]")
	}
	st, err := parsePaymentStatus(*status)
	if err != nil {
		return err
	}
	d, err := transaction.ParseMoney(*amount)
	if err != nil {
		return err
	}
	ctx, _, err = e.session(ctx)
	if err != nil {
		return err
	}
	id, err := e.app.API.CreatePayment(ctx, api.PaymentForm{
		UserID: *owner,
		Status: st,
		Amount: d.InexactFloat64(),
		Method: *method,
	})
	if err != nil {
		return err
	}
	return e.created("payment", id)
}

func paymentUpdate(ctx context.Context, e *env, args []string) error {
	fs := e.flags("payment update")
	status := fs.String("status", "", "pending, success or cancel")
	amount := fs.String("amount", "", "amount")
	method := fs.String("method", "", "payment method")
	id, err := oneArg(fs, args, "payment update [--status s] [--amount n] [--method m] <id>")
	if err != nil {
		return err
	}
	var patch api.PaymentPatch
	if *status != "" {
		st, err := parsePaymentStatus(*status)
		if err != nil {
			return err
		}
		patch.Status = &st
	}
	if *amount != "" {
		d, err := transaction.ParseMoney(*amount)
		if err != nil {
			return err
		}
		f := d.InexactFloat64()
		patch.Amount = &f
	}
	patch.Method = optional(fs, "method", method)

	ctx, _, err = e.session(ctx)
	if err != nil {
		return err
	}
	if err := e.app.API.UpdatePayment(ctx, id, patch); err != nil {
		return err
	}
	e.ok("payment %s updated", id)
	return nil
}

func paymentDelete(ctx context.Context, e *env, args []string) error {
	id, err := oneArg(e.flags("payment delete"), args, "payment delete <id>")
	if err != nil {
		return err
	}
	ctx, _, err = e.session(ctx)
	if err != nil {
		return err
	}
	if err := e.app.API.DeletePayment(ctx, id); err != nil {
		return err
	}
	e.ok("payment %s deleted", id)
	return nil
}

func cmdWithdrawal(ctx context.Context, e *env, args []string) error {
	return dispatch(ctx, e, "withdrawal", args, map[string]handler{
		"list":   withdrawalList,
		"show":   withdrawalShow,
		"create": withdrawalCreate,
		"update": withdrawalUpdate,
		"delete": withdrawalDelete,
	})
}

func withdrawalList(ctx context.Context, e *env, args []string) error {
	fs, opts := pageFlags(e, "withdrawal list")
	all := fs.Bool("all", false, "list every member's withdrawals (admin)")
	if _, err := parse(fs, args); err != nil {
		return err
	}
	ctx, _, err := e.session(ctx)
	if err != nil {
		return err
	}
	page, err := e.app.Withdrawals.List(ctx, *all, *opts)
	if err != nil {
		return err
	}
	t := &cli.Table{Header: []string{"ID", "AMOUNT", "METHOD", "ACCOUNT", "STATUS", "CREATED"}}
	for _, w := range page.Items {
		t.Append(w.ID, money(w.Amount), w.Method, w.Account, w.Status.String(), w.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return e.printer.Print(page, t)
}

func withdrawalShow(ctx context.Context, e *env, args []string) error {
	id, err := oneArg(e.flags("withdrawal show"), args, "withdrawal show <id>")
	if err != nil {
		return err
	}
	ctx, _, err = e.session(ctx)
	if err != nil {
		return err
	}
	w, err := e.app.Withdrawals.Get(ctx, id)
	if err != nil {
		return err
	}
	return e.printer.Print(w, cli.Fields(
		"ID", w.ID,
		"User", w.UserID,
		"Amount", money(w.Amount),
		"Method", w.Method,
		withdrawal.AccountLabel(w.Method), w.Account,
		"Status", w.Status.String(),
	))
}

func methodHelp() string {
	parts := make([]string, 0, len(withdrawal.Methods()))
	for _, m := range withdrawal.Methods() {
		parts = append(parts, fmt.Sprintf("%s (min %s)", m.ID, money(m.MinAmount)))
	}
	return "payout method: " + strings.Join(parts, ", ")
}

func withdrawalCreate(ctx context.Context, e *env, args []string) error {
	fs := e.flags("withdrawal create")
	var req withdrawals.Request
	fs.StringVar(&req.Method, "method", "", methodHelp())
	fs.StringVar(&req.Account, "account", "", "payout account: phone, email or wallet depending on the method")
	fs.StringVar(&req.Amount, "amount", "", "amount to withdraw")
	if _, err := parse(fs, args); err != nil {
		return err
	}
	ctx, _, err := e.session(ctx)
	if err != nil {
		return err
	}
	id, err := e.app.Withdrawals.Create(ctx, req)
	if err != nil {
		return err
	}
	return e.created("withdrawal request", id)
}

func withdrawalUpdate(ctx context.Context, e *env, args []string) error {
	fs := e.flags("withdrawal update")
	status := fs.String("status", "", "pending, completed or canceled")
	id, err := oneArg(fs, args, "withdrawal update --status <status> <id>")
	if err != nil {
		return err
	}
	var st withdrawal.Status
	switch strings.ToLower(*status) {
	case "pending", "1":
		st = withdrawal.StatusPending
	case "completed", "2":
		st = withdrawal.StatusCompleted
	case "canceled", "cancelled", "3":
		st = withdrawal.StatusCanceled
	default:
		return fmt.Errorf("unknown withdrawal status %q (pending, completed, canceled)", *status)
	}
	ctx, _, err = e.session(ctx)
	if err != nil {
		return err
	}
	if err := e.app.Withdrawals.SetStatus(ctx, id, st); err != nil {
		return err
	}
	e.ok("withdrawal %s is %s", id, st)
	return nil
}

func withdrawalDelete(ctx context.Context, e *env, args []string) error {
	id, err := oneArg(e.flags("withdrawal delete"), args, "withdrawal delete <id>")
	if err != nil {
		return err
	}
	ctx, _, err = e.session(ctx)
	if err != nil {
		return err
	}
	if err := e.app.Withdrawals.Delete(ctx, id); err != nil {
		return err
	}
	e.ok("withdrawal %s deleted", id)
	return nil
}
