// Package transactions drives an escrow transaction through its lifecycle:
// offer, acceptance, payment, delivery, verification and the escape hatches
// (dispute, cancellation request, help).
//
// Every action re-reads the record, derives the current step and refuses
// actions the caller's panel does not offer. The API performs the state
// change; the returned View is read back after the write.
package transactions

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/flexcrow/escrowctl/internal/app/api"
	"github.com/flexcrow/escrowctl/internal/app/domain/payment"
	"github.com/flexcrow/escrowctl/internal/app/domain/product"
	"github.com/flexcrow/escrowctl/internal/app/domain/transaction"
	"github.com/flexcrow/escrowctl/internal/app/domain/user"
	"github.com/flexcrow/escrowctl/internal/app/hydrate"
	"github.com/flexcrow/escrowctl/internal/app/notify"
	"github.com/flexcrow/escrowctl/internal/app/validation"
	"github.com/flexcrow/escrowctl/internal/errors"
	"github.com/flexcrow/escrowctl/internal/logging"
	"github.com/flexcrow/escrowctl/pkg/logger"
)

// API is the subset of the escrow client the workflows write through.
type API interface {
	CreateTransaction(ctx context.Context, body api.TransactionCreate) (string, error)
	UpdateTransaction(ctx context.Context, id string, patch api.TransactionPatch) error
	DeleteTransaction(ctx context.Context, id string) error
	GetProduct(ctx context.Context, id string, viaTransaction bool) (product.Product, error)
	GetPayment(ctx context.Context, id string) (payment.Payment, error)
	UpdatePayment(ctx context.Context, id string, patch api.PaymentPatch) error
	Checkout(ctx context.Context, transactionID string, req payment.CheckoutRequest) (payment.CheckoutSession, error)
	Profile(ctx context.Context, id string) (user.Profile, error)
	SetBalance(ctx context.Context, id string, balance float64) error
}

// Config holds workflow settings.
type Config struct {
	// Currency is sent to checkout. Defaults to "thb".
	Currency string
}

// Service implements the transaction workflows.
type Service struct {
	api      API
	hydrator *hydrate.Hydrator
	notifier notify.Notifier
	currency string
	now      func() time.Time
	log      *logger.Logger
}

// New creates the workflow service. A nil notifier logs notices instead of
// sending them.
func New(client API, h *hydrate.Hydrator, n notify.Notifier, cfg Config, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("transactions")
	}
	if n == nil {
		n = notify.NewLogNotifier(log)
	}
	if cfg.Currency == "" {
		cfg.Currency = "thb"
	}
	return &Service{
		api:      client,
		hydrator: h,
		notifier: n,
		currency: strings.ToLower(cfg.Currency),
		now:      time.Now,
		log:      log,
	}
}

// Show hydrates one transaction for the caller.
func (s *Service) Show(ctx context.Context, id string) (hydrate.View, error) {
	return s.hydrator.Transaction(ctx, id)
}

// List returns one page of the caller's purchases, sales or (for admins)
// every transaction.
func (s *Service) List(ctx context.Context, party transaction.Party, opts api.ListOptions) (api.Page[hydrate.Row], error) {
	if party == transaction.PartyAdmin && user.Role(logging.GetRole(ctx)) != user.RoleAdmin {
		return api.Page[hydrate.Row]{}, errors.Forbidden("listing every transaction requires an admin session")
	}
	return s.hydrator.List(ctx, party, opts)
}

// Delete removes a transaction. Admin only on the API side.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.api.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	s.log.WithField("transaction_id", id).Info("transaction deleted")
	return nil
}

// =============================================================================
// Offer
// =============================================================================

// Offer is the seller's form for a new transaction. Customer (and Seller,
// for admins acting on behalf of a member) are usernames.
type Offer struct {
	Seller          string              `json:"user_id"`
	Customer        string              `json:"customer_id" validate:"required"`
	Type            transaction.Type    `json:"type" validate:"oneof=1 2"`
	ProductID       string              `json:"product_id" validate:"required"`
	ProductNumber   string              `json:"product_number" validate:"required"`
	Shipping        string              `json:"shipping" validate:"required_if=Type 1"`
	ShippingPrice   string              `json:"shipping_price" validate:"omitempty,money,minmoney=0.01"`
	ShippingDetails string              `json:"shipping_details"`
	FeeType         transaction.FeeType `json:"fee_type" validate:"oneof=1 2 3"`
}

// Quote is the price breakdown of an offer before it is sent.
type Quote struct {
	Subtotal decimal.Decimal
	Fee      decimal.Decimal
	Split    transaction.Settlement
}

// CreateOffer validates the form, prices it and posts a pending transaction.
// It returns the new transaction ID and the quote it was created with.
func (s *Service) CreateOffer(ctx context.Context, form Offer) (string, Quote, error) {
	form.Customer = strings.TrimSpace(form.Customer)
	form.Seller = strings.TrimSpace(form.Seller)
	if form.Type == transaction.TypeDigital {
		form.Shipping, form.ShippingPrice = "", ""
	}

	extra := map[string]string{}
	quantity, err := strconv.Atoi(strings.TrimSpace(form.ProductNumber))
	if form.ProductNumber != "" && (err != nil || quantity < 1) {
		extra["product_number"] = "Product number must be a whole number of at least 1"
	}
	admin := user.Role(logging.GetRole(ctx)) == user.RoleAdmin
	if admin && form.Seller == "" {
		extra["user_id"] = "User is required"
	}
	if form.Customer != "" {
		self := form.Seller
		if !admin {
			me, err := s.hydrator.Profile(ctx, logging.GetUserID(ctx))
			if err != nil {
				return "", Quote{}, fmt.Errorf("load own profile: %w", err)
			}
			self = me.Username
		}
		if strings.EqualFold(form.Customer, self) {
			extra["customer_id"] = "Customer cannot be you"
		}
	}
	if err := validation.Merge(validation.Struct(form), extra); err != nil {
		return "", Quote{}, err
	}

	shipping := decimal.Zero
	if form.ShippingPrice != "" {
		shipping, _ = transaction.ParseMoney(form.ShippingPrice)
	}

	p, err := s.api.GetProduct(ctx, form.ProductID, false)
	if err != nil {
		if errors.IsNotFound(err) {
			return "", Quote{}, errors.Validation(map[string]string{"product_id": "Product not found"})
		}
		return "", Quote{}, fmt.Errorf("load product: %w", err)
	}

	sub := transaction.Subtotal(p.Price, quantity, shipping.InexactFloat64())
	fee := transaction.Fee(sub)
	quote := Quote{Subtotal: sub, Fee: fee, Split: transaction.Settle(sub, fee, form.FeeType)}

	body := api.TransactionCreate{
		CustomerID:      form.Customer,
		Status:          transaction.StatusPending,
		Type:            form.Type,
		ProductID:       form.ProductID,
		ProductNumber:   quantity,
		Shipping:        form.Shipping,
		ShippingPrice:   shipping.InexactFloat64(),
		ShippingDetails: form.ShippingDetails,
		Fee:             fee.InexactFloat64(),
		FeeType:         form.FeeType,
	}
	if admin {
		body.UserID = form.Seller
	}

	id, err := s.api.CreateTransaction(ctx, body)
	if err != nil {
		if fields := offerFieldError(err); fields != nil {
			return "", Quote{}, errors.Validation(fields)
		}
		return "", Quote{}, fmt.Errorf("create transaction: %w", err)
	}

	s.log.WithFields(map[string]interface{}{
		"transaction_id": id,
		"customer":       form.Customer,
		"fee":            fee.StringFixed(2),
	}).Info("offer created")
	return id, quote, nil
}

func offerFieldError(err error) map[string]string {
	switch {
	case errors.Is(err, errors.CodeUser):
		return map[string]string{"user_id": "User not found"}
	case errors.Is(err, errors.CodeCustomer):
		return map[string]string{"customer_id": "Customer not found"}
	case errors.Is(err, errors.CodeProduct):
		return map[string]string{"product_id": "Product not found"}
	case errors.Is(err, errors.CodeAddress):
		return map[string]string{"address_id": "Address not found"}
	case errors.Is(err, errors.CodePayment):
		return map[string]string{"payment_id": "Payment not found"}
	}
	return nil
}

// =============================================================================
// Buyer decisions
// =============================================================================

// Accept moves an offer to processing. Physical goods need a shipping
// address.
func (s *Service) Accept(ctx context.Context, id, addressID string) (hydrate.View, error) {
	tx, _, err := s.guard(ctx, id, transaction.ActionAccept)
	if err != nil {
		return hydrate.View{}, err
	}
	status := transaction.StatusProcessing
	patch := api.TransactionPatch{Status: &status}
	if tx.Type == transaction.TypePhysical {
		if strings.TrimSpace(addressID) == "" {
			return hydrate.View{}, errors.Validation(map[string]string{"address_id": "Address is required"})
		}
		patch.AddressID = &addressID
	}
	return s.update(ctx, tx, patch, "accepted")
}

// Reject declines an offer.
func (s *Service) Reject(ctx context.Context, id string) (hydrate.View, error) {
	tx, _, err := s.guard(ctx, id, transaction.ActionReject)
	if err != nil {
		return hydrate.View{}, err
	}
	status := transaction.StatusRejected
	return s.update(ctx, tx, api.TransactionPatch{Status: &status}, "rejected")
}

// =============================================================================
// Payment
// =============================================================================

// Pay opens a hosted checkout for the buyer's share of the transaction.
func (s *Service) Pay(ctx context.Context, id string) (payment.CheckoutSession, error) {
	tx, party, err := s.guard(ctx, id, transaction.ActionPay)
	if err != nil {
		return payment.CheckoutSession{}, err
	}
	view, err := s.hydrator.Hydrate(ctx, tx, party)
	if err != nil {
		return payment.CheckoutSession{}, err
	}

	req := payment.CheckoutRequest{
		Amount:      view.Settlement.Buyer.InexactFloat64(),
		Currency:    s.currency,
		Description: "Transaction #" + tx.ID,
		Method:      "card",
	}
	session, err := s.api.Checkout(ctx, tx.ID, req)
	if err != nil {
		return payment.CheckoutSession{}, fmt.Errorf("checkout: %w", err)
	}
	s.log.WithFields(map[string]interface{}{
		"transaction_id": tx.ID,
		"payment_id":     session.PaymentID,
		"amount":         view.Settlement.Buyer.StringFixed(2),
	}).Info("checkout opened")
	return session, nil
}

// Outcome is the result reported by the checkout page.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeCancel  Outcome = "cancel"
)

// Return is the information carried back by the checkout redirect.
type Return struct {
	TransactionID string
	PaymentID     string
	Outcome       Outcome
}

// ParseReturnURL reads a checkout redirect of the form
// <frontend>/member/transactions/buy/<id>?payment=<id>&payment_status=success|cancel.
func ParseReturnURL(raw string) (Return, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Return{}, fmt.Errorf("parse return url: %w", err)
	}
	dir, txID := path.Split(strings.TrimRight(u.Path, "/"))
	if !strings.HasSuffix(dir, "/transactions/buy/") || txID == "" {
		return Return{}, fmt.Errorf("return url %q does not point at a purchase", raw)
	}
	q := u.Query()
	ret := Return{
		TransactionID: txID,
		PaymentID:     q.Get("payment"),
		Outcome:       Outcome(q.Get("payment_status")),
	}
	if ret.PaymentID == "" {
		return Return{}, fmt.Errorf("return url %q has no payment", raw)
	}
	if ret.Outcome != OutcomeSuccess && ret.Outcome != OutcomeCancel {
		return Return{}, fmt.Errorf("return url %q has unknown payment_status %q", raw, ret.Outcome)
	}
	return ret, nil
}

// HandlePaymentReturn settles a pending payment after checkout. Success
// marks the payment paid and links it to the transaction; cancel marks it
// canceled. Payments that are no longer pending are left alone.
func (s *Service) HandlePaymentReturn(ctx context.Context, ret Return) (hydrate.View, error) {
	log := s.log.WithFields(map[string]interface{}{
		"transaction_id": ret.TransactionID,
		"payment_id":     ret.PaymentID,
		"outcome":        ret.Outcome,
	})

	p, err := s.api.GetPayment(ctx, ret.PaymentID)
	if err != nil {
		return hydrate.View{}, fmt.Errorf("load payment: %w", err)
	}
	if p.Status != payment.StatusPending {
		log.WithField("status", p.Status.String()).Info("payment already settled")
		return s.hydrator.Transaction(ctx, ret.TransactionID)
	}

	switch ret.Outcome {
	case OutcomeSuccess:
		paid := payment.StatusSuccess
		if err := s.api.UpdatePayment(ctx, p.ID, api.PaymentPatch{Status: &paid}); err != nil {
			return hydrate.View{}, fmt.Errorf("mark payment paid: %w", err)
		}
		tx, _, err := s.hydrator.Locate(ctx, ret.TransactionID)
		if err != nil {
			return hydrate.View{}, err
		}
		patch := api.TransactionPatch{PaymentID: &p.ID}.Keep(tx)
		if err := s.api.UpdateTransaction(ctx, tx.ID, patch); err != nil {
			return hydrate.View{}, fmt.Errorf("link payment: %w", err)
		}
		log.Info("payment captured")
	case OutcomeCancel:
		canceled := payment.StatusCancel
		if err := s.api.UpdatePayment(ctx, p.ID, api.PaymentPatch{Status: &canceled}); err != nil {
			return hydrate.View{}, fmt.Errorf("mark payment canceled: %w", err)
		}
		log.Info("payment canceled")
	default:
		return hydrate.View{}, fmt.Errorf("unknown payment outcome %q", ret.Outcome)
	}
	return s.hydrator.Transaction(ctx, ret.TransactionID)
}

// =============================================================================
// Delivery
// =============================================================================

// Ship records the tracking number and proof-of-shipment image.
func (s *Service) Ship(ctx context.Context, id, trackingNumber, imageID string) (hydrate.View, error) {
	fields := map[string]string{}
	if strings.TrimSpace(trackingNumber) == "" {
		fields["shipping_number"] = "Shipping number is required"
	}
	if strings.TrimSpace(imageID) == "" {
		fields["shipping_image_id"] = "Shipping image is required"
	}
	if len(fields) > 0 {
		return hydrate.View{}, errors.Validation(fields)
	}

	tx, _, err := s.guard(ctx, id, transaction.ActionShip)
	if err != nil {
		return hydrate.View{}, err
	}
	patch := api.TransactionPatch{ShippingNumber: &trackingNumber, ShippingImageID: &imageID}
	return s.update(ctx, tx, patch, "shipped")
}

// ConfirmDelivery marks shipped goods as delivered. Either party may confirm.
func (s *Service) ConfirmDelivery(ctx context.Context, id string) (hydrate.View, error) {
	tx, _, err := s.guard(ctx, id, transaction.ActionConfirmDelivery)
	if err != nil {
		return hydrate.View{}, err
	}
	now := s.now().UTC()
	return s.update(ctx, tx, api.TransactionPatch{DeliveredAt: &now}, "delivered")
}

// DeliverDigital hands over a digital product; details carries the link,
// key or instructions.
func (s *Service) DeliverDigital(ctx context.Context, id, details string) (hydrate.View, error) {
	if strings.TrimSpace(details) == "" {
		return hydrate.View{}, errors.Validation(map[string]string{"delivered_details": "Delivery details are required"})
	}
	tx, _, err := s.guard(ctx, id, transaction.ActionDeliverDigital)
	if err != nil {
		return hydrate.View{}, err
	}
	now := s.now().UTC()
	return s.update(ctx, tx, api.TransactionPatch{DeliveredAt: &now, DeliveredDetails: &details}, "delivered")
}

// =============================================================================
// Completion
// =============================================================================

// Verify completes the transaction and credits the seller with their share.
// The two writes are not atomic: if the credit fails after the status
// change, the error says so and the transaction stays completed.
func (s *Service) Verify(ctx context.Context, id string) (hydrate.View, error) {
	tx, party, err := s.guard(ctx, id, transaction.ActionVerify)
	if err != nil {
		return hydrate.View{}, err
	}
	view, err := s.hydrator.Hydrate(ctx, tx, party)
	if err != nil {
		return hydrate.View{}, err
	}

	done := transaction.StatusCompleted
	if err := s.api.UpdateTransaction(ctx, tx.ID, api.TransactionPatch{Status: &done}.Keep(tx)); err != nil {
		return hydrate.View{}, fmt.Errorf("complete transaction: %w", err)
	}

	if err := s.credit(ctx, tx.UserID, view.Settlement.Seller); err != nil {
		s.log.WithError(err).WithFields(map[string]interface{}{
			"transaction_id": tx.ID,
			"seller_id":      tx.UserID,
			"amount":         view.Settlement.Seller.StringFixed(2),
		}).Error("seller credit failed after completion")
		return hydrate.View{}, fmt.Errorf("transaction %s completed but the seller was not credited: %w", tx.ID, err)
	}

	s.log.WithField("transaction_id", tx.ID).WithField("credited", view.Settlement.Seller.StringFixed(2)).Info("transaction verified")
	return s.hydrator.Transaction(ctx, tx.ID)
}

// credit adds amount to the seller's balance. The balance is read fresh,
// never from the cache.
func (s *Service) credit(ctx context.Context, sellerID string, amount decimal.Decimal) error {
	profile, err := s.api.Profile(ctx, sellerID)
	if err != nil {
		return fmt.Errorf("read seller balance: %w", err)
	}
	balance := decimal.NewFromFloat(profile.Balance).Add(amount).Round(2)
	if err := s.api.SetBalance(ctx, sellerID, balance.InexactFloat64()); err != nil {
		return fmt.Errorf("write seller balance: %w", err)
	}
	s.hydrator.Forget(ctx, sellerID)
	return nil
}

// Dispute notifies the operators and freezes the transaction.
func (s *Service) Dispute(ctx context.Context, id, reason string) (hydrate.View, error) {
	if strings.TrimSpace(reason) == "" {
		return hydrate.View{}, errors.Validation(map[string]string{"reason": "Reason is required"})
	}
	tx, party, err := s.guard(ctx, id, transaction.ActionDispute)
	if err != nil {
		return hydrate.View{}, err
	}
	view, err := s.hydrator.Hydrate(ctx, tx, party)
	if err != nil {
		return hydrate.View{}, err
	}
	if err := s.notifier.Notify(ctx, notice(notify.KindDispute, view, reason)); err != nil {
		return hydrate.View{}, fmt.Errorf("send dispute notice: %w", err)
	}

	disputed := transaction.StatusDisputed
	return s.update(ctx, tx, api.TransactionPatch{Status: &disputed}, "disputed")
}

// RequestCancel asks the operators to cancel the transaction. The record is
// not changed; an operator decides.
func (s *Service) RequestCancel(ctx context.Context, id, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return errors.Validation(map[string]string{"reason": "Reason is required"})
	}
	return s.ask(ctx, id, transaction.ActionRequestCancel, notify.KindCancel, reason)
}

// Help sends a support request about the transaction.
func (s *Service) Help(ctx context.Context, id, message string) error {
	if strings.TrimSpace(message) == "" {
		return errors.Validation(map[string]string{"message": "Message is required"})
	}
	return s.ask(ctx, id, transaction.ActionHelp, notify.KindHelp, message)
}

func (s *Service) ask(ctx context.Context, id string, action transaction.Action, kind notify.Kind, text string) error {
	tx, party, err := s.guard(ctx, id, action)
	if err != nil {
		return err
	}
	view, err := s.hydrator.Hydrate(ctx, tx, party)
	if err != nil {
		return err
	}
	if err := s.notifier.Notify(ctx, notice(kind, view, text)); err != nil {
		return fmt.Errorf("send %s notice: %w", kind, err)
	}
	s.log.WithField("transaction_id", tx.ID).WithField("kind", kind).Info("notice sent")
	return nil
}

func notice(kind notify.Kind, v hydrate.View, text string) notify.Notice {
	by := "Buyer"
	if v.Party == transaction.PartySeller {
		by = "Seller"
	}
	return notify.Notice{
		Kind:          kind,
		TransactionID: v.Transaction.ID,
		Buyer:         contact(v.Buyer),
		Seller:        contact(v.Seller),
		RequestBy:     by,
		Reason:        text,
	}
}

func contact(p user.Profile) notify.Contact {
	name := strings.TrimSpace(p.FirstName + " " + p.LastName)
	if name == "" {
		name = p.Username
	}
	return notify.Contact{Name: name, Email: p.Email}
}

// =============================================================================
// Helpers
// =============================================================================

// guard reads the transaction for the caller and checks that action is in
// the caller's panel at the current step.
func (s *Service) guard(ctx context.Context, id string, action transaction.Action) (transaction.Transaction, transaction.Party, error) {
	tx, party, err := s.hydrator.Locate(ctx, id)
	if err != nil {
		return tx, party, err
	}
	if !transaction.Allows(tx, party, action) {
		step := transaction.DeriveStep(tx)
		s.log.WithFields(map[string]interface{}{
			"transaction_id": id,
			"action":         action,
			"party":          party,
			"step":           int(step),
		}).Debug("action refused")
		return tx, party, errors.InvalidState(string(action), int(step))
	}
	return tx, party, nil
}

// update writes patch, always carrying delivered_at forward, and returns
// the re-read view.
func (s *Service) update(ctx context.Context, tx transaction.Transaction, patch api.TransactionPatch, what string) (hydrate.View, error) {
	if err := s.api.UpdateTransaction(ctx, tx.ID, patch.Keep(tx)); err != nil {
		return hydrate.View{}, fmt.Errorf("update transaction %s: %w", tx.ID, err)
	}
	s.log.WithField("transaction_id", tx.ID).Infof("transaction %s", what)
	return s.hydrator.Transaction(ctx, tx.ID)
}
