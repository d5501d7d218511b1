package transaction

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDeriveStep(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		tx   Transaction
		want Step
	}{
		{"offered", Transaction{Status: StatusPending, Type: TypePhysical}, StepOffered},
		{"awaiting payment", Transaction{Status: StatusProcessing, Type: TypePhysical}, StepAwaitingPayment},
		{"awaiting shipment", Transaction{Status: StatusProcessing, Type: TypePhysical, PaymentID: "p"}, StepAwaitingShipment},
		{"in transit", Transaction{Status: StatusProcessing, Type: TypePhysical, PaymentID: "p", ShippingNumber: "TH1"}, StepInTransit},
		{"awaiting digital", Transaction{Status: StatusProcessing, Type: TypeDigital, PaymentID: "p"}, StepAwaitingDelivery},
		{"physical delivered", Transaction{Status: StatusProcessing, Type: TypePhysical, PaymentID: "p", ShippingNumber: "TH1", DeliveredAt: &now}, StepDelivered},
		{"digital delivered", Transaction{Status: StatusProcessing, Type: TypeDigital, PaymentID: "p", DeliveredAt: &now}, StepDelivered},
		{"completed", Transaction{Status: StatusCompleted}, StepCompleted},
		{"canceled", Transaction{Status: StatusCanceled, PaymentID: "p"}, StepNone},
		{"rejected", Transaction{Status: StatusRejected}, StepNone},
		{"disputed", Transaction{Status: StatusDisputed, DeliveredAt: &now}, StepNone},
		// shipping number is checked before delivered_at for physical goods
		{"physical delivered without tracking", Transaction{Status: StatusProcessing, Type: TypePhysical, PaymentID: "p", DeliveredAt: &now}, StepAwaitingShipment},
		{"unknown type undelivered", Transaction{Status: StatusProcessing, Type: 9, PaymentID: "p"}, StepNone},
		{"unknown status", Transaction{Status: 42}, StepNone},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := DeriveStep(tc.tx); got != tc.want {
				t.Fatalf("DeriveStep() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestLabel(t *testing.T) {
	now := time.Now()
	cases := map[string]Transaction{
		"Pending":                    {Status: StatusPending},
		"Waiting for payment":        {Status: StatusProcessing, Type: TypeDigital},
		"Delivered, awaiting review": {Status: StatusProcessing, Type: TypeDigital, PaymentID: "p", DeliveredAt: &now},
		"Processing":                 {Status: StatusProcessing, Type: 7, PaymentID: "p"},
		"Completed":                  {Status: StatusCompleted},
		"Disputed":                   {Status: StatusDisputed},
	}
	for want, tx := range cases {
		if got := Label(tx); got != want {
			t.Errorf("Label(%+v) = %q, want %q", tx, got, want)
		}
	}
}

func TestActions(t *testing.T) {
	now := time.Now()
	offered := Transaction{Status: StatusPending, Type: TypePhysical}
	if !Allows(offered, PartyBuyer, ActionAccept) || !Allows(offered, PartyBuyer, ActionReject) {
		t.Fatal("buyer should accept or reject an offer")
	}
	if Allows(offered, PartySeller, ActionAccept) {
		t.Fatal("seller must not accept their own offer")
	}

	shipping := Transaction{Status: StatusProcessing, Type: TypePhysical, PaymentID: "p"}
	if !Allows(shipping, PartySeller, ActionShip) || Allows(shipping, PartyBuyer, ActionShip) {
		t.Fatal("only the seller ships")
	}

	transit := Transaction{Status: StatusProcessing, Type: TypePhysical, PaymentID: "p", ShippingNumber: "x"}
	if !Allows(transit, PartyBuyer, ActionConfirmDelivery) || !Allows(transit, PartySeller, ActionConfirmDelivery) {
		t.Fatal("either party may confirm delivery in transit")
	}

	digital := Transaction{Status: StatusProcessing, Type: TypeDigital, PaymentID: "p"}
	if !Allows(digital, PartySeller, ActionDeliverDigital) {
		t.Fatal("seller delivers digital goods")
	}

	delivered := Transaction{Status: StatusProcessing, Type: TypeDigital, PaymentID: "p", DeliveredAt: &now}
	got := Actions(delivered, PartyBuyer)
	want := []Action{ActionVerify, ActionDispute, ActionRequestCancel, ActionHelp}
	if len(got) != len(want) {
		t.Fatalf("Actions() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Actions()[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	for _, tx := range []Transaction{{Status: StatusCompleted}, {Status: StatusDisputed}, {Status: StatusRejected}} {
		if a := Actions(tx, PartyBuyer); len(a) != 0 {
			t.Fatalf("status %d should have no actions, got %v", tx.Status, a)
		}
	}
	if a := Actions(offered, PartyAdmin); a != nil {
		t.Fatalf("admin panel should be empty, got %v", a)
	}
}

func TestFeeSchedule(t *testing.T) {
	tests := []struct {
		amount string
		fee    string
	}{
		{"50", "1"},
		{"100", "2"},
		{"100.01", "5.0005"},
		{"200", "10"},
		{"250", "20"},
	}
	for _, tc := range tests {
		got := Fee(decimal.RequireFromString(tc.amount))
		if !got.Equal(decimal.RequireFromString(tc.fee)) {
			t.Errorf("Fee(%s) = %s, want %s", tc.amount, got, tc.fee)
		}
	}
}

func TestSettle(t *testing.T) {
	sub := Subtotal(120, 2, 10) // 250
	fee := Fee(sub)              // 20
	tests := []struct {
		feeType       FeeType
		buyer, seller string
	}{
		{FeeBuyer, "270", "250"},
		{FeeSeller, "250", "230"},
		{FeeSplit, "260", "240"},
	}
	for _, tc := range tests {
		s := Settle(sub, fee, tc.feeType)
		if !s.Buyer.Equal(decimal.RequireFromString(tc.buyer)) || !s.Seller.Equal(decimal.RequireFromString(tc.seller)) {
			t.Errorf("Settle(%s) = %s/%s, want %s/%s", tc.feeType, s.Buyer, s.Seller, tc.buyer, tc.seller)
		}
	}
}

func TestSettleRoundsToCents(t *testing.T) {
	tx := Transaction{ProductNumber: 3, ShippingPrice: 0.5, Fee: 0.651, FeeType: FeeSplit}
	s := SettleTransaction(tx, 10.6) // subtotal 32.3
	if s.Buyer.String() != "32.63" || s.Seller.String() != "31.97" {
		t.Fatalf("got buyer %s seller %s", s.Buyer, s.Seller)
	}
}

func TestParseMoney(t *testing.T) {
	for _, ok := range []string{"0.5", "0.01", "1", "10.25", "999"} {
		if _, err := ParseMoney(ok); err != nil {
			t.Errorf("ParseMoney(%q) unexpected error: %v", ok, err)
		}
	}
	for _, bad := range []string{"", "01", "1.234", "-1", "abc", "1."} {
		if _, err := ParseMoney(bad); err == nil {
			t.Errorf("ParseMoney(%q) expected error", bad)
		}
	}
}

func TestPartyOf(t *testing.T) {
	tx := Transaction{UserID: "seller", CustomerID: "buyer"}
	if tx.PartyOf("buyer") != PartyBuyer || tx.PartyOf("seller") != PartySeller || tx.PartyOf("x") != "" {
		t.Fatal("party detection broken")
	}
	if tx.Counterpart(PartyBuyer) != "seller" || tx.Counterpart(PartySeller) != "buyer" {
		t.Fatal("counterpart broken")
	}
}
