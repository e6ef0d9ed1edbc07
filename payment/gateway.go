// Package payment talks to external payment providers through one Gateway
// interface with an implementation per provider.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"go-storefront/models"
)

// Provider identifies a payment provider.
type Provider string

const (
	Paystack    Provider = "paystack"
	Flutterwave Provider = "flutterwave"
)

// ErrUnsupportedProvider is returned for provider ids outside the known set or
// not enabled in configuration.
var ErrUnsupportedProvider = errors.New("unsupported payment provider")

// Request is the provider independent payment initialization request.
type Request struct {
	Email       string
	Amount      models.Money
	Currency    string
	Reference   string
	CallbackURL string
}

// Initialization is what a provider hands back for a new payment.
type Initialization struct {
	AuthorizationURL  string
	ProviderReference string
}

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomePending Outcome = "pending"
)

// Verification is the provider's view of a payment.
type Verification struct {
	Outcome  Outcome
	Amount   models.Money
	Currency string
	Raw      json.RawMessage
}

func (v *Verification) Success() bool {
	return v.Outcome == OutcomeSuccess
}

// Gateway is implemented once per provider.
type Gateway interface {
	Provider() Provider
	InitializePayment(ctx context.Context, req Request) (*Initialization, error)
	VerifyPayment(ctx context.Context, reference string) (*Verification, error)
	// Refund returns amount of a successful payment to the customer.
	Refund(ctx context.Context, reference string, amount models.Money) error
}

// Error is a failed provider call. Message keeps whatever the provider said.
type Error struct {
	Provider   Provider
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewReference returns a payment reference that is unique across orders and
// attempts. Providers accept it as an opaque merchant reference.
func NewReference() string {
	return "ref_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
