package lifecycle

import (
	"github.com/mcalor/sabor-emilia/models"
)

// Transition is one row of the gateway-status mapping table.
type Transition struct {
	Status  models.OrderStatus
	Payment models.PaymentStatus
}

var gatewayTransitions = map[string]Transition{
	"approved":   {Status: models.OrderConfirmed, Payment: models.PaymentPaid},
	"pending":    {Status: models.OrderPending, Payment: models.PaymentPending},
	"in_process": {Status: models.OrderPending, Payment: models.PaymentPending},
	"rejected":   {Status: models.OrderCancelled, Payment: models.PaymentFailed},
	"cancelled":  {Status: models.OrderCancelled, Payment: models.PaymentFailed},
}

// Terminal reports whether reconciliation may no longer move the order.
// Anything past PENDING is settled for payment purposes, including the
// administrative fulfillment states.
func Terminal(status models.OrderStatus) bool {
	return status != models.OrderPending
}

// NextState maps a gateway payment status onto the order's next state.
// The second return value reports whether anything actually changes:
// terminal orders never change, and unknown gateway statuses keep the
// order pending.
func NextState(current models.OrderStatus, gatewayStatus string) (Transition, bool) {
	if Terminal(current) {
		return Transition{Status: current}, false
	}

	next, ok := gatewayTransitions[gatewayStatus]
	if !ok {
		next = Transition{Status: models.OrderPending, Payment: models.PaymentPending}
	}

	if next.Status == current {
		return next, false
	}

	return next, true
}
