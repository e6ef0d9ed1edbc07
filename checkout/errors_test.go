package checkout

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_MatchesByKind(t *testing.T) {
	err := fmt.Errorf("checkout: %w", insufficientStock("65f0c1", errors.New("short by 1")))

	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.NotErrorIs(t, err, ErrEmptyCart)

	var cerr *Error
	assert.ErrorAs(t, err, &cerr)
	assert.Equal(t, "65f0c1", cerr.Ref)
}

func TestError_Message(t *testing.T) {
	assert.Equal(t, "empty_cart: cart is empty", ErrEmptyCart.Error())
	assert.Equal(t,
		"gateway_error: Invalid key (paystack): boom",
		gatewayError("paystack", "Invalid key", errors.New("boom")).Error())
}
