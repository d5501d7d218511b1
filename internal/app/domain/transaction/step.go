package transaction

// Step is the derived progress position of a transaction, used to highlight
// the progress bar and pick the action panel. It is never stored.
type Step int

const (
	StepNone             Step = 0
	StepOffered          Step = 1
	StepAwaitingPayment  Step = 2
	StepAwaitingShipment Step = 3
	StepInTransit        Step = 4
	StepAwaitingDelivery Step = 5
	StepDelivered        Step = 6
	StepCompleted        Step = 7
)

// DeriveStep maps status and delivery fields to a step. Branches are checked
// in order; a processing record matching none of them yields StepNone, as do
// the terminal statuses.
func DeriveStep(t Transaction) Step {
	switch t.Status {
	case StatusPending:
		return StepOffered
	case StatusCompleted:
		return StepCompleted
	case StatusProcessing:
	default:
		return StepNone
	}

	switch {
	case t.PaymentID == "":
		return StepAwaitingPayment
	case t.Type == TypePhysical && t.ShippingNumber == "":
		return StepAwaitingShipment
	case t.Type == TypePhysical && t.ShippingNumber != "" && t.DeliveredAt == nil:
		return StepInTransit
	case t.Type == TypeDigital && t.DeliveredAt == nil:
		return StepAwaitingDelivery
	case t.DeliveredAt != nil:
		return StepDelivered
	}
	return StepNone
}

func (s Step) Label() string {
	switch s {
	case StepOffered:
		return "Pending"
	case StepAwaitingPayment:
		return "Waiting for payment"
	case StepAwaitingShipment:
		return "Waiting for shipping"
	case StepInTransit:
		return "In transit"
	case StepAwaitingDelivery:
		return "Waiting for delivery"
	case StepDelivered:
		return "Delivered, awaiting review"
	case StepCompleted:
		return "Completed"
	}
	return ""
}

// Stage names the step as a progress bar segment.
func (s Step) Stage() string {
	switch s {
	case StepOffered:
		return "Offer"
	case StepAwaitingPayment:
		return "Payment"
	case StepAwaitingShipment:
		return "Shipping"
	case StepInTransit:
		return "Transit"
	case StepAwaitingDelivery:
		return "Delivery"
	case StepDelivered:
		return "Review"
	case StepCompleted:
		return "Done"
	}
	return ""
}

// Stages lists the steps a transaction of the given type passes through.
// Physical goods skip digital delivery; digital goods skip shipping.
func Stages(t Type) []Step {
	if t == TypeDigital {
		return []Step{StepOffered, StepAwaitingPayment, StepAwaitingDelivery, StepDelivered, StepCompleted}
	}
	return []Step{StepOffered, StepAwaitingPayment, StepAwaitingShipment, StepInTransit, StepDelivered, StepCompleted}
}

// Label is the display label for a whole record: terminal statuses use the
// status name and processing records fall back to "Processing".
func Label(t Transaction) string {
	if t.Status != StatusProcessing {
		return t.Status.Label()
	}
	if l := DeriveStep(t).Label(); l != "" {
		return l
	}
	return "Processing"
}
