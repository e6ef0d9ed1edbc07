package checkout

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"go-storefront/models"
	"go-storefront/payment"
)

// paidOrder places an order and settles one successful payment for it.
func (h *harness) paidOrder(t *testing.T) (*models.Order, *models.Transaction) {
	t.Helper()
	ctx := context.Background()
	order := h.placeOrder(t)
	tx, err := h.orch.InitiatePayment(ctx, order.ID, "paystack", "")
	require.NoError(t, err)
	paid, err := h.orch.Reconcile(ctx, tx.ID, models.TransactionCompleted)
	require.NoError(t, err)
	require.Equal(t, models.OrderPaid, paid.Status)
	return paid, tx
}

func TestRefund_UnshippedOrderIsCancelledAndRestocked(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	order, tx := h.paidOrder(t)
	productID := order.Items[0].ProductID
	require.Equal(t, 9, h.catalog.stock(productID))

	refunded, err := h.orch.Refund(ctx, tx.ID)

	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, refunded.Status)
	assert.Equal(t, 10, h.catalog.stock(productID))
	assert.Equal(t, []string{tx.Reference}, h.paystack.refunds)
	stored, err := h.transactions.Get(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionRefunded, stored.Status)
}

func TestRefund_ShippedOrderIsReturned(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	order, tx := h.paidOrder(t)
	h.orders.forceStatus(order.ID, models.OrderShipped)

	refunded, err := h.orch.Refund(ctx, tx.ID)

	require.NoError(t, err)
	assert.Equal(t, models.OrderReturned, refunded.Status)
	assert.Equal(t, 9, h.catalog.stock(order.Items[0].ProductID), "returned goods are restocked by hand")
}

func TestRefund_CancelledOrderKeepsItsStatus(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	order, tx := h.paidOrder(t)
	h.orders.forceStatus(order.ID, models.OrderCancelled)

	refunded, err := h.orch.Refund(ctx, tx.ID)

	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, refunded.Status)
	assert.Equal(t, 9, h.catalog.stock(order.Items[0].ProductID))
}

func TestRefund_Rejected(t *testing.T) {
	ctx := context.Background()

	t.Run("pending transaction", func(t *testing.T) {
		h := newHarness(t)
		order := h.placeOrder(t)
		tx, err := h.orch.InitiatePayment(ctx, order.ID, "paystack", "")
		require.NoError(t, err)

		_, err = h.orch.Refund(ctx, tx.ID)

		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Empty(t, h.paystack.refunds)
	})

	t.Run("already refunded", func(t *testing.T) {
		h := newHarness(t)
		_, tx := h.paidOrder(t)
		_, err := h.orch.Refund(ctx, tx.ID)
		require.NoError(t, err)

		_, err = h.orch.Refund(ctx, tx.ID)

		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Len(t, h.paystack.refunds, 1)
	})

	t.Run("unknown transaction", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.orch.Refund(ctx, primitive.NewObjectID())
		assert.ErrorIs(t, err, ErrReconciliationMismatch)
	})
}

func TestRefund_GatewayErrorChangesNothing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	order, tx := h.paidOrder(t)
	h.paystack.refundErr = &payment.Error{Provider: payment.Paystack, StatusCode: 400, Message: "Transaction has been fully reversed"}

	_, err := h.orch.Refund(ctx, tx.ID)

	require.ErrorIs(t, err, ErrGateway)
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "Transaction has been fully reversed", cerr.Message)
	stored, err := h.transactions.Get(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionCompleted, stored.Status)
	current, err := h.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPaid, current.Status)
}
