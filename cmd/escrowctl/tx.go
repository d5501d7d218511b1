package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/flexcrow/escrowctl/internal/app/api"
	"github.com/flexcrow/escrowctl/internal/app/domain/transaction"
	"github.com/flexcrow/escrowctl/internal/app/hydrate"
	"github.com/flexcrow/escrowctl/internal/app/services/transactions"
	"github.com/flexcrow/escrowctl/internal/cli"
)

func cmdTx(ctx context.Context, e *env, args []string) error {
	return dispatch(ctx, e, "tx", args, map[string]handler{
		"list":      txList,
		"show":      txShow,
		"create":    txCreate,
		"accept":    txAccept,
		"reject":    txSimple("reject", (*transactions.Service).Reject),
		"pay":       txPay,
		"return":    txReturn,
		"ship":      txShip,
		"delivered": txSimple("delivered", (*transactions.Service).ConfirmDelivery),
		"deliver":   txDeliver,
		"verify":    txSimple("verify", (*transactions.Service).Verify),
		"dispute":   txDispute,
		"cancel":    txAsk("cancel", (*transactions.Service).RequestCancel),
		"help":      txAsk("help", (*transactions.Service).Help),
		"update":    txUpdate,
		"delete":    txDelete,
	})
}

func pageFlags(e *env, name string) (*flag.FlagSet, *api.ListOptions) {
	fs := e.flags(name)
	opts := &api.ListOptions{}
	fs.IntVar(&opts.Page, "page", 1, "page number")
	fs.IntVar(&opts.RecordPerPage, "per-page", api.DefaultPerPage, "records per page")
	return fs, opts
}

func txList(ctx context.Context, e *env, args []string) error {
	fs, opts := pageFlags(e, "tx list")
	as := fs.String("as", "buyer", "side to list: buyer, seller or all (admin)")
	if _, err := parse(fs, args); err != nil {
		return err
	}
	party, err := parseParty(*as)
	if err != nil {
		return err
	}
	ctx, _, err = e.session(ctx)
	if err != nil {
		return err
	}
	page, err := e.app.Transactions.List(ctx, party, *opts)
	if err != nil {
		return err
	}

	who := "SELLER"
	if party == transaction.PartySeller {
		who = "BUYER"
	}
	t := &cli.Table{Header: []string{"ID", "PRODUCT", "QTY", who, "STATUS", "CREATED"}}
	for _, r := range page.Items {
		t.Append(r.Transaction.ID, r.ProductName, fmt.Sprint(r.Transaction.ProductNumber), r.Counterpart,
			cli.Colorize(r.Label, cli.StatusColor(r.Transaction.Status)), r.Transaction.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	if err := e.printer.Print(page, t); err != nil {
		return err
	}
	if !e.printer.Machine() {
		fmt.Fprintf(e.stderr, "page %d of %d, %d total\n", opts.Page, page.Pages(opts.RecordPerPage), page.TotalCount)
	}
	return nil
}

func parseParty(s string) (transaction.Party, error) {
	switch strings.ToLower(s) {
	case "buyer", "purchases":
		return transaction.PartyBuyer, nil
	case "seller", "sales":
		return transaction.PartySeller, nil
	case "all", "admin":
		return transaction.PartyAdmin, nil
	}
	return "", fmt.Errorf("unknown side %q (buyer, seller, all)", s)
}

func txShow(ctx context.Context, e *env, args []string) error {
	id, err := oneArg(e.flags("tx show"), args, "tx show <id>")
	if err != nil {
		return err
	}
	ctx, _, err = e.session(ctx)
	if err != nil {
		return err
	}
	v, err := e.app.Transactions.Show(ctx, id)
	if err != nil {
		return err
	}
	return e.view(v)
}

// view prints a hydrated transaction: the step bar, the details and the
// actions the caller can take next.
func (e *env) view(v hydrate.View) error {
	if e.printer.Machine() {
		return e.printer.Print(v, nil)
	}
	tx := v.Transaction
	fmt.Fprintf(e.stdout, "Transaction %s (%s)\n", tx.ID, v.Party)
	bar := cli.NewStepBar(tx)
	if !cli.IsTerminal(e.stdout) {
		bar.DisableColor()
	}
	fmt.Fprintf(e.stdout, "%s\n\n", bar)

	pairs := []string{
		"Status", v.Label,
		"Progress", fmt.Sprintf("%.0f%%", bar.Percent()),
		"Product", fmt.Sprintf("%s x %d", v.Product.Name, tx.ProductNumber),
		"Seller", v.Seller.Username,
		"Buyer", v.Buyer.Username,
	}
	if tx.Type == transaction.TypePhysical {
		pairs = append(pairs, "Shipping", strings.TrimSpace(tx.Shipping+" "+money(tx.ShippingPrice)))
		if tx.ShippingNumber != "" {
			pairs = append(pairs, "Tracking", tx.ShippingNumber)
		}
		if v.Address != nil {
			pairs = append(pairs, "Ship to", strings.Join(v.Address.Lines(), " / "))
		}
	}
	if tx.DeliveredAt != nil {
		pairs = append(pairs, "Delivered", tx.DeliveredAt.Local().Format("2006-01-02 15:04"))
	}
	if tx.DeliveredDetails != "" {
		pairs = append(pairs, "Delivery", tx.DeliveredDetails)
	}
	if v.Payment != nil {
		pairs = append(pairs, "Payment", fmt.Sprintf("%s %s (%s)", v.Payment.ID, money(v.Payment.Amount), v.Payment.Status))
	}
	pairs = append(pairs,
		"Subtotal", v.Settlement.Subtotal.StringFixed(2),
		"Fee", fmt.Sprintf("%s (%s)", v.Settlement.Fee.StringFixed(2), tx.FeeType),
		"Buyer pays", v.Settlement.Buyer.StringFixed(2),
		"Seller receives", v.Settlement.Seller.StringFixed(2),
	)
	actions := make([]string, 0, len(v.Actions))
	for _, a := range v.Actions {
		actions = append(actions, string(a))
	}
	if len(actions) == 0 {
		actions = append(actions, "none")
	}
	pairs = append(pairs, "Next", strings.Join(actions, ", "))
	return e.printer.Print(v, cli.Fields(pairs...))
}

func txCreate(ctx context.Context, e *env, args []string) error {
	fs := e.flags("tx create")
	var form transactions.Offer
	fs.StringVar(&form.Customer, "buyer", "", "buyer username")
	fs.StringVar(&form.Seller, "seller", "", "seller username (admin only)")
	fs.StringVar(&form.ProductID, "product", "", "product ID")
	fs.StringVar(&form.ProductNumber, "qty", "1", "quantity")
	fs.StringVar(&form.Shipping, "shipping", "", "shipping carrier (physical goods)")
	fs.StringVar(&form.ShippingPrice, "shipping-price", "", "shipping price (physical goods)")
	fs.StringVar(&form.ShippingDetails, "shipping-details", "", "shipping notes")
	kind := fs.String("type", "", "physical or digital (defaults to the product's type)")
	fee := fs.String("fee", "buyer", "who pays the fee: buyer, seller or split")
	if _, err := parse(fs, args); err != nil {
		return err
	}
	if form.ProductID == "" || form.Customer == "" {
		return usageError("tx create --product <id> --buyer <username> [--qty n] [--fee buyer|seller|split]")
	}
	ctx, _, err := e.session(ctx)
	if err != nil {
		return err
	}

	switch *fee {
	case "buyer":
		form.FeeType = transaction.FeeBuyer
	case "seller":
		form.FeeType = transaction.FeeSeller
	case "split":
		form.FeeType = transaction.FeeSplit
	default:
		return fmt.Errorf("unknown fee split %q (buyer, seller, split)", *fee)
	}
	switch *kind {
	case "physical":
		form.Type = transaction.TypePhysical
	case "digital":
		form.Type = transaction.TypeDigital
	case "":
		p, err := e.app.Products.Get(ctx, form.ProductID)
		if err != nil {
			return err
		}
		form.Type = transaction.Type(p.Type)
	default:
		return fmt.Errorf("unknown type %q (physical, digital)", *kind)
	}

	id, quote, err := e.app.Transactions.CreateOffer(ctx, form)
	if err != nil {
		return err
	}
	if e.printer.Machine() {
		return e.printer.Print(map[string]interface{}{"id": id, "quote": quote.Split}, nil)
	}
	e.ok("offer sent to %s: buyer pays %s, you receive %s (fee %s)",
		form.Customer, quote.Split.Buyer.StringFixed(2), quote.Split.Seller.StringFixed(2), quote.Fee.StringFixed(2))
	fmt.Fprintln(e.stdout, id)
	return nil
}

func txAccept(ctx context.Context, e *env, args []string) error {
	fs := e.flags("tx accept")
	addressID := fs.String("address", "", "shipping address ID (physical goods)")
	id, err := oneArg(fs, args, "tx accept [--address <id>] <id>")
	if err != nil {
		return err
	}
	ctx, _, err = e.session(ctx)
	if err != nil {
		return err
	}
	v, err := e.app.Transactions.Accept(ctx, id, *addressID)
	if err != nil {
		return err
	}
	e.ok("offer accepted")
	return e.view(v)
}

// txSimple wraps actions that only take the transaction ID.
func txSimple(name string, act func(*transactions.Service, context.Context, string) (hydrate.View, error)) handler {
	return func(ctx context.Context, e *env, args []string) error {
		id, err := oneArg(e.flags("tx "+name), args, "tx "+name+" <id>")
		if err != nil {
			return err
		}
		ctx, _, err = e.session(ctx)
		if err != nil {
			return err
		}
		v, err := act(e.app.Transactions, ctx, id)
		if err != nil {
			return err
		}
		e.ok("%s: %s", name, v.Label)
		return e.view(v)
	}
}

func txPay(ctx context.Context, e *env, args []string) error {
	id, err := oneArg(e.flags("tx pay"), args, "tx pay <id>")
	if err != nil {
		return err
	}
	ctx, _, err = e.session(ctx)
	if err != nil {
		return err
	}
	checkout, err := e.app.Transactions.Pay(ctx, id)
	if err != nil {
		return err
	}
	if e.printer.Machine() {
		return e.printer.Print(checkout, nil)
	}
	cli.Info(e.stderr, "complete the payment in your browser, then run: escrowctl tx return '<redirect url>'")
	fmt.Fprintln(e.stdout, checkout.CheckoutURL)
	return nil
}

func txReturn(ctx context.Context, e *env, args []string) error {
	raw, err := oneArg(e.flags("tx return"), args, "tx return <redirect url>")
	if err != nil {
		return err
	}
	ret, err := transactions.ParseReturnURL(raw)
	if err != nil {
		return err
	}
	ctx, _, err = e.session(ctx)
	if err != nil {
		return err
	}
	v, err := e.app.Transactions.HandlePaymentReturn(ctx, ret)
	if err != nil {
		return err
	}
	if ret.Outcome == transactions.OutcomeCancel {
		cli.Warning(e.stderr, "payment canceled")
	} else {
		e.ok("payment recorded")
	}
	return e.view(v)
}

func txShip(ctx context.Context, e *env, args []string) error {
	fs := e.flags("tx ship")
	tracking := fs.String("tracking", "", "shipping tracking number")
	imageID := fs.String("image", "", "ID of an uploaded proof-of-shipment image")
	imageFile := fs.String("image-file", "", "proof-of-shipment image to upload")
	id, err := oneArg(fs, args, "tx ship --tracking <number> (--image <file id> | --image-file <path>) <id>")
	if err != nil {
		return err
	}
	ctx, _, err = e.session(ctx)
	if err != nil {
		return err
	}
	if *imageFile != "" {
		up, err := e.upload(ctx, *imageFile)
		if err != nil {
			return err
		}
		*imageID = up
	}
	v, err := e.app.Transactions.Ship(ctx, id, *tracking, *imageID)
	if err != nil {
		return err
	}
	e.ok("shipment recorded")
	return e.view(v)
}

func txDeliver(ctx context.Context, e *env, args []string) error {
	fs := e.flags("tx deliver")
	details := fs.String("details", "", "download link, key or instructions for the buyer")
	id, err := oneArg(fs, args, "tx deliver --details <text> <id>")
	if err != nil {
		return err
	}
	ctx, _, err = e.session(ctx)
	if err != nil {
		return err
	}
	v, err := e.app.Transactions.DeliverDigital(ctx, id, *details)
	if err != nil {
		return err
	}
	e.ok("delivered")
	return e.view(v)
}

func txDispute(ctx context.Context, e *env, args []string) error {
	fs := e.flags("tx dispute")
	reason := fs.String("reason", "", "what is wrong with the delivery")
	id, err := oneArg(fs, args, "tx dispute --reason <text> <id>")
	if err != nil {
		return err
	}
	ctx, _, err = e.session(ctx)
	if err != nil {
		return err
	}
	v, err := e.app.Transactions.Dispute(ctx, id, *reason)
	if err != nil {
		return err
	}
	cli.Warning(e.stderr, "dispute opened; support will contact both parties")
	return e.view(v)
}

// txAsk wraps the support requests, which leave the record unchanged.
func txAsk(name string, act func(*transactions.Service, context.Context, string, string) error) handler {
	return func(ctx context.Context, e *env, args []string) error {
		fs := e.flags("tx " + name)
		message := fs.String("message", "", "message for support")
		id, err := oneArg(fs, args, "tx "+name+" --message <text> <id>")
		if err != nil {
			return err
		}
		ctx, _, err = e.session(ctx)
		if err != nil {
			return err
		}
		if err := act(e.app.Transactions, ctx, id, *message); err != nil {
			return err
		}
		e.ok("request sent to support")
		return nil
	}
}

// txUpdate is the admin editor. Only flags that were given are sent.
func txUpdate(ctx context.Context, e *env, args []string) error {
	fs := e.flags("tx update")
	status := fs.Int("status", 0, "status code 1-6")
	tracking := fs.String("tracking", "", "shipping tracking number")
	addressID := fs.String("address", "", "shipping address ID")
	paymentID := fs.String("payment", "", "payment ID")
	details := fs.String("details", "", "delivery details")
	id, err := oneArg(fs, args, "tx update [--status n] [--tracking s] [--address id] [--payment id] [--details s] <id>")
	if err != nil {
		return err
	}
	ctx, _, err = e.session(ctx)
	if err != nil {
		return err
	}
	tx, err := e.app.API.GetTransaction(ctx, id, api.ScopeAny)
	if err != nil {
		return err
	}

	patch := api.TransactionPatch{
		ShippingNumber:   optional(fs, "tracking", tracking),
		AddressID:        optional(fs, "address", addressID),
		PaymentID:        optional(fs, "payment", paymentID),
		DeliveredDetails: optional(fs, "details", details),
	}
	if *status != 0 {
		s := transaction.Status(*status)
		if !s.Valid() {
			return fmt.Errorf("status must be 1-6")
		}
		patch.Status = &s
	}
	if err := e.app.API.UpdateTransaction(ctx, id, patch.Keep(tx)); err != nil {
		return err
	}
	e.ok("transaction %s updated", id)
	return nil
}

func txDelete(ctx context.Context, e *env, args []string) error {
	id, err := oneArg(e.flags("tx delete"), args, "tx delete <id>")
	if err != nil {
		return err
	}
	ctx, _, err = e.session(ctx)
	if err != nil {
		return err
	}
	if err := e.app.Transactions.Delete(ctx, id); err != nil {
		return err
	}
	e.ok("transaction %s deleted", id)
	return nil
}

// upload sends a local file and returns its file ID.
func (e *env) upload(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	up, err := e.app.API.Upload(ctx, filepath.Base(path), contentType(path), f)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", path, err)
	}
	return up.ID, nil
}
