package transaction

// Action is a button in a party's action panel.
type Action string

const (
	ActionAccept          Action = "accept"
	ActionReject          Action = "reject"
	ActionPay             Action = "pay"
	ActionShip            Action = "ship"
	ActionConfirmDelivery Action = "delivered"
	ActionDeliverDigital  Action = "deliver"
	ActionVerify          Action = "verify"
	ActionDispute         Action = "dispute"
	ActionRequestCancel   Action = "cancel"
	ActionHelp            Action = "help"
)

// Actions returns the panel rendered for a party. Completed and terminal
// records offer nothing. Admins edit records directly and get no panel.
func Actions(t Transaction, p Party) []Action {
	step := DeriveStep(t)
	if step == StepNone || step == StepCompleted {
		return nil
	}

	var out []Action
	switch p {
	case PartyBuyer:
		switch step {
		case StepOffered:
			out = append(out, ActionAccept, ActionReject)
		case StepAwaitingPayment:
			out = append(out, ActionPay)
		case StepInTransit:
			out = append(out, ActionConfirmDelivery)
		case StepDelivered:
			out = append(out, ActionVerify, ActionDispute)
		}
	case PartySeller:
		switch step {
		case StepAwaitingShipment:
			out = append(out, ActionShip)
		case StepInTransit:
			out = append(out, ActionConfirmDelivery)
		case StepAwaitingDelivery:
			out = append(out, ActionDeliverDigital)
		}
	default:
		return nil
	}
	return append(out, ActionRequestCancel, ActionHelp)
}

// Allows reports whether a is in the party's panel.
func Allows(t Transaction, p Party, a Action) bool {
	for _, got := range Actions(t, p) {
		if got == a {
			return true
		}
	}
	return false
}
