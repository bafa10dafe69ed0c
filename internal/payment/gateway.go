// Package payment talks to the external payment gateway.  The booking
// flow only needs two calls: requesting a charge and verifying that a
// finished payment matches what the reservation expects.
package payment

import "context"

// OrderMeta describes the order being paid for, passed through to the
// gateway so the user sees what they are charged for.
type OrderMeta struct {
	OrderID      string `json:"order_id"`      // merchant-side order reference
	CustomerName string `json:"customer_name"` // display name on the gateway page
	ProductName  string `json:"product_name"`  // course name
}

// RequestResult is the gateway's answer to a charge request.
type RequestResult struct {
	PaymentID string // gateway-side payment identifier
	Cancelled bool   // user backed out at the gateway
	Code      string // gateway status code, for logs
}

// Gateway is the payment collaborator.  Both calls must respect the
// context deadline; an error means the gateway was unreachable or
// answered garbage, not that the user declined.
type Gateway interface {
	Request(ctx context.Context, amount int64, meta OrderMeta) (*RequestResult, error)
	Verify(ctx context.Context, paymentID, orderID string, expectedAmount int64) error
}
