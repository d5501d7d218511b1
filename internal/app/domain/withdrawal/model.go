package withdrawal

import (
	"sort"
	"time"
)

// Status of a withdrawal request.
type Status int

const (
	StatusPending   Status = 1
	StatusCompleted Status = 2
	StatusCanceled  Status = 3
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusCompleted:
		return "Completed"
	}
	return "Canceled"
}

// MaxAccountLength bounds the payout account field.
const MaxAccountLength = 100

// Withdrawal is a member's request to pay out part of their balance.
type Withdrawal struct {
	ID        string    `json:"withdrawal_id"`
	UserID    string    `json:"user_id"`
	Status    Status    `json:"status"`
	Amount    float64   `json:"amount"`
	Method    string    `json:"method"`
	Account   string    `json:"account"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Method is a payout channel with its minimum amount.
type Method struct {
	ID        string
	Name      string
	MinAmount float64
}

var methods = map[string]Method{
	"promptpay": {ID: "promptpay", Name: "PromptPay", MinAmount: 100},
	"truemoney": {ID: "truemoney", Name: "TrueMoney", MinAmount: 100},
	"paypal":    {ID: "paypal", Name: "PayPal", MinAmount: 500},
	"payoneer":  {ID: "payoneer", Name: "Payoneer", MinAmount: 1000},
	"usdt":      {ID: "usdt", Name: "USDT", MinAmount: 100},
	"skrill":    {ID: "skrill", Name: "Skrill", MinAmount: 200},
}

// LookupMethod returns the payout method by id.
func LookupMethod(id string) (Method, bool) {
	m, ok := methods[id]
	return m, ok
}

// Methods lists payout methods ordered by id.
func Methods() []Method {
	out := make([]Method, 0, len(methods))
	for _, m := range methods {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AccountLabel names what the account field holds for a method.
func AccountLabel(method string) string {
	switch method {
	case "promptpay":
		return "PromptPay Phone Number"
	case "truemoney":
		return "TrueMoney Phone Number"
	case "paypal":
		return "PayPal Email Address"
	case "payoneer":
		return "Payoneer Email Address"
	case "usdt":
		return "USDT Wallet Address"
	case "skrill":
		return "Skrill Email Address"
	}
	return "Account Details"
}
