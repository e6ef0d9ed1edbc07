package checkout

import "fmt"

// Kind is the stable machine readable error code returned to API callers.
type Kind string

const (
	KindEmptyCart              Kind = "empty_cart"
	KindInvalidAddress         Kind = "invalid_address"
	KindInvalidShipment        Kind = "invalid_shipment"
	KindInsufficientStock      Kind = "insufficient_stock"
	KindUnsupportedProvider    Kind = "unsupported_provider"
	KindGatewayError           Kind = "gateway_error"
	KindOrderNotPayable        Kind = "order_not_payable"
	KindAlreadyShipped         Kind = "already_shipped"
	KindReconciliationMismatch Kind = "reconciliation_mismatch"
	KindOrderNotFound          Kind = "order_not_found"
	KindOrderNotCancellable    Kind = "order_not_cancellable"
	KindInvalidTransition      Kind = "invalid_transition"
)

// Error is a pipeline failure the caller can act on. Ref names the product or
// provider involved, when there is one.
type Error struct {
	Kind    Kind
	Ref     string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Ref != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Ref)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrEmptyCart)
// works regardless of Ref or Message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrEmptyCart              = &Error{Kind: KindEmptyCart, Message: "cart is empty"}
	ErrInvalidAddress         = &Error{Kind: KindInvalidAddress, Message: "address not found"}
	ErrInvalidShipment        = &Error{Kind: KindInvalidShipment, Message: "shipment method not found"}
	ErrInsufficientStock      = &Error{Kind: KindInsufficientStock, Message: "insufficient stock"}
	ErrUnsupportedProvider    = &Error{Kind: KindUnsupportedProvider, Message: "unsupported payment provider"}
	ErrGateway                = &Error{Kind: KindGatewayError, Message: "payment provider error"}
	ErrOrderNotPayable        = &Error{Kind: KindOrderNotPayable, Message: "order is not payable"}
	ErrAlreadyShipped         = &Error{Kind: KindAlreadyShipped, Message: "order has already shipped"}
	ErrReconciliationMismatch = &Error{Kind: KindReconciliationMismatch, Message: "unknown transaction"}
	ErrOrderNotFound          = &Error{Kind: KindOrderNotFound, Message: "order not found"}
	ErrOrderNotCancellable    = &Error{Kind: KindOrderNotCancellable, Message: "order can no longer be cancelled"}
	ErrInvalidTransition      = &Error{Kind: KindInvalidTransition, Message: "invalid status transition"}
)

func newError(kind Kind, ref, message string, err error) *Error {
	return &Error{Kind: kind, Ref: ref, Message: message, Err: err}
}

func insufficientStock(productID string, err error) *Error {
	return newError(KindInsufficientStock, productID, "insufficient stock for product", err)
}

func gatewayError(provider, providerMessage string, err error) *Error {
	return newError(KindGatewayError, provider, providerMessage, err)
}
