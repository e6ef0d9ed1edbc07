package checkout

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"go-storefront/models"
)

// Refund returns a completed payment through its provider and unwinds the
// order. Orders that have not shipped are cancelled and their stock released;
// shipped or delivered orders are marked returned.
func (o *Orchestrator) Refund(ctx context.Context, transactionID primitive.ObjectID) (order *models.Order, err error) {
	defer func() { o.observe("refund", err) }()

	tx, err := o.Transactions.Get(ctx, transactionID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, newError(KindReconciliationMismatch, transactionID.Hex(), "unknown transaction", err)
	}
	if err != nil {
		return nil, fmt.Errorf("load transaction: %w", err)
	}
	if tx.Status == models.TransactionRefunded {
		return nil, newError(KindInvalidTransition, "", "transaction already refunded", nil)
	}
	if !tx.Status.CanTransitionTo(models.TransactionRefunded) {
		return nil, newError(KindInvalidTransition, "", fmt.Sprintf("cannot refund a %s transaction", tx.Status), nil)
	}

	gateway, err := o.Gateways.Select(tx.Provider)
	if err != nil {
		return nil, newError(KindUnsupportedProvider, tx.Provider, "unsupported payment provider", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, o.paymentTimeout)
	defer cancel()
	if err := gateway.Refund(callCtx, tx.Reference, tx.Amount); err != nil {
		o.logger.Printf("transaction=%s provider=%s refund failed: %v", tx.ID.Hex(), tx.Provider, err)
		return nil, gatewayError(tx.Provider, providerMessage(err), err)
	}

	_, err = o.Transactions.SetStatus(ctx, tx.ID, models.TransactionCompleted, models.TransactionRefunded)
	if errors.Is(err, models.ErrConflict) {
		return nil, newError(KindInvalidTransition, "", "transaction changed while refunding", err)
	}
	if err != nil {
		// The provider has already paid out.
		o.logger.Printf("transaction=%s provider=%s refunded but not recorded: %v", tx.ID.Hex(), tx.Provider, err)
		return nil, fmt.Errorf("record refund: %w", err)
	}
	o.logger.Printf("order=%s transaction=%s provider=%s refunded", tx.OrderID.Hex(), tx.ID.Hex(), tx.Provider)

	return o.unwindRefunded(ctx, tx.OrderID)
}

func (o *Orchestrator) unwindRefunded(ctx context.Context, orderID primitive.ObjectID) (*models.Order, error) {
	order, err := o.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	var from []models.OrderStatus
	var next models.OrderStatus
	switch order.Status {
	case models.OrderPending, models.OrderProcessing, models.OrderPaid:
		from, next = []models.OrderStatus{models.OrderPending, models.OrderProcessing, models.OrderPaid}, models.OrderCancelled
	case models.OrderShipped, models.OrderDelivered:
		from, next = []models.OrderStatus{models.OrderShipped, models.OrderDelivered}, models.OrderReturned
	default:
		return order, nil
	}

	updated, err := o.Orders.SetStatus(ctx, orderID, from, next)
	if errors.Is(err, models.ErrConflict) {
		o.logger.Printf("order=%s changed while unwinding refund, left as is", orderID.Hex())
		return o.loadOrder(ctx, orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("update refunded order: %w", err)
	}

	if next == models.OrderCancelled {
		o.releaseStock(ctx, "order "+orderID.Hex(), orderLines(updated))
	}
	o.logger.Printf("order=%s status %s -> %s after refund", orderID.Hex(), order.Status, next)
	return updated, nil
}
