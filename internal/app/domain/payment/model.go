package payment

import "time"

// Status of a payment record.
type Status int

const (
	StatusPending Status = 1
	StatusSuccess Status = 2
	StatusCancel  Status = 3
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSuccess:
		return "success"
	case StatusCancel:
		return "cancel"
	}
	return "unknown"
}

// Payment records a checkout attempt by a buyer.
type Payment struct {
	ID        string    `json:"payment_id"`
	UserID    string    `json:"user_id"`
	Status    Status    `json:"status"`
	Amount    float64   `json:"amount"`
	Method    string    `json:"method"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CheckoutRequest is the body sent to /pay.
type CheckoutRequest struct {
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Description string  `json:"description"`
	Method      string  `json:"method"`
}

// CheckoutSession is what /pay returns: the pending payment and the hosted
// checkout page the buyer must visit.
type CheckoutSession struct {
	PaymentID   string `json:"payment_id"`
	CheckoutURL string `json:"checkout_url"`
}
