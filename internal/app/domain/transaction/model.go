package transaction

import "time"

// Status is the server-side lifecycle code of a transaction.
type Status int

const (
	StatusPending    Status = 1
	StatusProcessing Status = 2
	StatusCompleted  Status = 3
	StatusCanceled   Status = 4
	StatusRejected   Status = 5
	StatusDisputed   Status = 6
)

// Terminal reports whether no further progress is possible.
func (s Status) Terminal() bool {
	return s == StatusCanceled || s == StatusRejected || s == StatusDisputed
}

// Valid reports whether s is one of the six known codes.
func (s Status) Valid() bool { return s >= StatusPending && s <= StatusDisputed }

// Label is the coarse name of the status. Processing records get a finer
// label from their step.
func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusProcessing:
		return "Processing"
	case StatusCompleted:
		return "Completed"
	case StatusCanceled:
		return "Canceled"
	case StatusRejected:
		return "Rejected"
	case StatusDisputed:
		return "Disputed"
	}
	return "Unknown"
}

// Type mirrors product.Type on the transaction itself.
type Type int

const (
	TypePhysical Type = 1
	TypeDigital  Type = 2
)

// FeeType decides who carries the escrow fee.
type FeeType int

const (
	FeeBuyer  FeeType = 1
	FeeSeller FeeType = 2
	FeeSplit  FeeType = 3
)

func (f FeeType) String() string {
	switch f {
	case FeeBuyer:
		return "Buyer Pays Fees"
	case FeeSeller:
		return "Seller Pays Fees"
	case FeeSplit:
		return "Split Fees Equally"
	}
	return "Unknown"
}

// Transaction couples a seller (UserID), a buyer (CustomerID), a product and
// the payment and delivery metadata accumulated along the way.
type Transaction struct {
	ID               string     `json:"transaction_id"`
	UserID           string     `json:"user_id"`
	CustomerID       string     `json:"customer_id"`
	Status           Status     `json:"status"`
	Type             Type       `json:"type"`
	ProductID        string     `json:"product_id"`
	ProductNumber    int        `json:"product_number"`
	AddressID        string     `json:"address_id"`
	PaymentID        string     `json:"payment_id"`
	Shipping         string     `json:"shipping"`
	ShippingPrice    float64    `json:"shipping_price"`
	ShippingNumber   string     `json:"shipping_number"`
	ShippingDetails  string     `json:"shipping_details"`
	ShippingImageID  string     `json:"shipping_image_id"`
	DeliveredAt      *time.Time `json:"delivered_at"`
	DeliveredDetails string     `json:"delivered_details"`
	Fee              float64    `json:"fee"`
	FeeType          FeeType    `json:"fee_type"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Party is the caller's side of a transaction.
type Party string

const (
	PartyBuyer  Party = "buyer"
	PartySeller Party = "seller"
	PartyAdmin  Party = "admin"
)

// PartyOf reports which side userID is on, or "" when unrelated.
func (t Transaction) PartyOf(userID string) Party {
	switch {
	case userID == "":
		return ""
	case t.CustomerID == userID:
		return PartyBuyer
	case t.UserID == userID:
		return PartySeller
	}
	return ""
}

// Counterpart returns the other party's user ID.
func (t Transaction) Counterpart(p Party) string {
	if p == PartyBuyer {
		return t.UserID
	}
	return t.CustomerID
}
