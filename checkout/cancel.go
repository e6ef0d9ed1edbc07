package checkout

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"go-storefront/models"
)

// Cancel cancels an order that still holds stock and returns that stock to
// the ledger. Only the caller that wins the status change releases stock.
func (o *Orchestrator) Cancel(ctx context.Context, orderID primitive.ObjectID) (order *models.Order, err error) {
	defer func() { o.observe("cancel", err) }()

	order, err = o.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := cancellable(order.Status); err != nil {
		return nil, err
	}

	cancelled, err := o.Orders.SetStatus(ctx, orderID,
		[]models.OrderStatus{models.OrderPending, models.OrderProcessing}, models.OrderCancelled)
	if errors.Is(err, models.ErrConflict) {
		current, lerr := o.loadOrder(ctx, orderID)
		if lerr != nil {
			return nil, lerr
		}
		if err := cancellable(current.Status); err != nil {
			return nil, err
		}
		return nil, newError(KindOrderNotCancellable, "", "order changed while cancelling", err)
	}
	if err != nil {
		return nil, fmt.Errorf("cancel order: %w", err)
	}

	// The order stays cancelled even if stock cannot be put back.
	o.releaseStock(ctx, "order "+orderID.Hex(), orderLines(cancelled))
	o.logger.Printf("order=%s cancelled", orderID.Hex())
	return cancelled, nil
}

func cancellable(status models.OrderStatus) error {
	switch {
	case status.Cancellable():
		return nil
	case status == models.OrderShipped || status == models.OrderDelivered:
		return ErrAlreadyShipped
	default:
		return newError(KindOrderNotCancellable, "", fmt.Sprintf("order is %s", status), nil)
	}
}

// AdvanceStatus moves an order along its lifecycle, for example when it ships.
// Moving to cancelled goes through Cancel so stock is released.
func (o *Orchestrator) AdvanceStatus(ctx context.Context, orderID primitive.ObjectID, next models.OrderStatus) (order *models.Order, err error) {
	if next == models.OrderCancelled {
		return o.Cancel(ctx, orderID)
	}
	defer func() { o.observe("advance_status", err) }()

	if !next.Valid() {
		return nil, newError(KindInvalidTransition, string(next), "unknown order status", nil)
	}

	order, err = o.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanTransitionTo(next) {
		return nil, newError(KindInvalidTransition, "", fmt.Sprintf("cannot move order from %s to %s", order.Status, next), nil)
	}

	updated, err := o.Orders.SetStatus(ctx, orderID, []models.OrderStatus{order.Status}, next)
	if errors.Is(err, models.ErrConflict) {
		return nil, newError(KindInvalidTransition, "", "order status changed concurrently", err)
	}
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	o.logger.Printf("order=%s status %s -> %s", orderID.Hex(), order.Status, next)
	return updated, nil
}
