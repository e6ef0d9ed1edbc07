package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"go-storefront/models"
	"go-storefront/payment"
)

// InitiatePayment starts a payment attempt for a pending order with the named
// provider. Nothing is persisted unless the provider accepted the request.
func (o *Orchestrator) InitiatePayment(ctx context.Context, orderID primitive.ObjectID, providerID, callbackURL string) (tx *models.Transaction, err error) {
	defer func() { o.observe("initiate_payment", err) }()

	order, err := o.Orders.Get(ctx, orderID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, newError(KindOrderNotPayable, "", "order not found", err)
	}
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	if order.Status != models.OrderPending {
		return nil, newError(KindOrderNotPayable, "", fmt.Sprintf("order is %s", order.Status), nil)
	}

	gateway, err := o.Gateways.Select(providerID)
	if err != nil {
		return nil, newError(KindUnsupportedProvider, providerID, "unsupported payment provider", err)
	}
	provider := string(gateway.Provider())

	user, err := o.Customers.GetUser(ctx, order.UserID)
	if err != nil {
		return nil, fmt.Errorf("load customer: %w", err)
	}

	reference := payment.NewReference()
	callCtx, cancel := context.WithTimeout(ctx, o.paymentTimeout)
	defer cancel()

	started, err := gateway.InitializePayment(callCtx, payment.Request{
		Email:       user.Email,
		Amount:      order.TotalAmount,
		Currency:    order.Currency,
		Reference:   reference,
		CallbackURL: callbackURL,
	})
	if err != nil {
		o.logger.Printf("order=%s provider=%s initialize failed: %v", order.ID.Hex(), provider, err)
		return nil, gatewayError(provider, providerMessage(err), err)
	}

	now := o.now().UTC()
	tx = &models.Transaction{
		ID:                primitive.NewObjectID(),
		OrderID:           order.ID,
		UserID:            order.UserID,
		Amount:            order.TotalAmount,
		Currency:          order.Currency,
		Provider:          provider,
		Reference:         reference,
		ProviderReference: started.ProviderReference,
		AuthorizationURL:  started.AuthorizationURL,
		Status:            models.TransactionPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := o.Transactions.Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}

	o.logger.Printf("order=%s transaction=%s provider=%s reference=%s initiated", order.ID.Hex(), tx.ID.Hex(), provider, reference)
	return tx, nil
}

// Reconcile applies a verified provider outcome to a transaction and its
// order. Replaying an outcome for a settled transaction changes nothing; a
// completed transaction whose order is still pending is settled again.
func (o *Orchestrator) Reconcile(ctx context.Context, transactionID primitive.ObjectID, verified models.TransactionStatus) (order *models.Order, err error) {
	defer func() { o.observe("reconcile", err) }()

	if verified != models.TransactionCompleted && verified != models.TransactionFailed {
		return nil, newError(KindInvalidTransition, string(verified), "verified status must be completed or failed", nil)
	}

	tx, err := o.Transactions.Get(ctx, transactionID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, newError(KindReconciliationMismatch, transactionID.Hex(), "unknown transaction", err)
	}
	if err != nil {
		return nil, fmt.Errorf("load transaction: %w", err)
	}

	order, err = o.loadOrder(ctx, tx.OrderID)
	if err != nil {
		return nil, err
	}
	switch tx.Status {
	case models.TransactionPending:
	case models.TransactionCompleted:
		// An earlier reconcile may have stopped before marking the order paid.
		if order.Status == models.OrderPending {
			return o.settle(ctx, tx, order)
		}
		return order, nil
	default:
		return order, nil
	}

	if verified == models.TransactionFailed {
		return o.failTransaction(ctx, tx, order)
	}
	return o.completeTransaction(ctx, tx, order)
}

func (o *Orchestrator) completeTransaction(ctx context.Context, tx *models.Transaction, order *models.Order) (*models.Order, error) {
	if order.Status != models.OrderPending {
		current, err := o.Transactions.Get(ctx, tx.ID)
		if err != nil {
			return nil, fmt.Errorf("load transaction: %w", err)
		}
		if current.Status.Terminal() {
			return order, nil
		}
		return nil, o.refundNeeded(tx, order)
	}

	_, err := o.Transactions.SetStatus(ctx, tx.ID, models.TransactionPending, models.TransactionCompleted)
	switch {
	case errors.Is(err, models.ErrConflict):
		current, err := o.Transactions.Get(ctx, tx.ID)
		if err != nil {
			return nil, fmt.Errorf("load transaction: %w", err)
		}
		if current.Status != models.TransactionCompleted {
			return o.loadOrder(ctx, order.ID)
		}
	case errors.Is(err, models.ErrDuplicate):
		o.logger.Printf("order=%s transaction=%s second successful payment, manual refund needed", order.ID.Hex(), tx.ID.Hex())
		return nil, newError(KindOrderNotPayable, "", "order already has a completed payment", err)
	case err != nil:
		return nil, fmt.Errorf("complete transaction: %w", err)
	}
	return o.settle(ctx, tx, order)
}

// settle marks a pending order paid once its completed payments cover the
// total. It is safe to repeat.
func (o *Orchestrator) settle(ctx context.Context, tx *models.Transaction, order *models.Order) (*models.Order, error) {
	paidTotal, err := o.Transactions.CompletedTotal(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("sum completed payments: %w", err)
	}
	if !paidTotal.GreaterThanOrEqual(order.TotalAmount) {
		return order, nil
	}

	paid, err := o.Orders.SetStatus(ctx, order.ID, []models.OrderStatus{models.OrderPending}, models.OrderPaid)
	if errors.Is(err, models.ErrConflict) {
		current, err := o.loadOrder(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		if current.Status == models.OrderCancelled {
			return nil, o.refundNeeded(tx, current)
		}
		return current, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mark order paid: %w", err)
	}
	o.logger.Printf("order=%s transaction=%s paid", order.ID.Hex(), tx.ID.Hex())
	return paid, nil
}

// refundNeeded records money taken for an order that can no longer be paid.
func (o *Orchestrator) refundNeeded(tx *models.Transaction, order *models.Order) error {
	o.logger.Printf("order=%s transaction=%s provider=%s paid while order is %s, manual refund needed",
		order.ID.Hex(), tx.ID.Hex(), tx.Provider, order.Status)
	return newError(KindOrderNotPayable, "", fmt.Sprintf("order is %s", order.Status), nil)
}

func (o *Orchestrator) failTransaction(ctx context.Context, tx *models.Transaction, order *models.Order) (*models.Order, error) {
	_, err := o.Transactions.SetStatus(ctx, tx.ID, models.TransactionPending, models.TransactionFailed)
	if errors.Is(err, models.ErrConflict) {
		return o.loadOrder(ctx, order.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("fail transaction: %w", err)
	}

	o.logger.Printf("order=%s transaction=%s payment failed", order.ID.Hex(), tx.ID.Hex())
	o.notify(ctx, "payment failed", order.UserID, order, o.paymentFailed)
	return order, nil
}

// Verify asks the provider for the outcome of a transaction and reconciles
// it. A success for a different amount or currency is treated as a failure.
func (o *Orchestrator) Verify(ctx context.Context, transactionID primitive.ObjectID) (order *models.Order, err error) {
	defer func() { o.observe("verify", err) }()

	tx, err := o.Transactions.Get(ctx, transactionID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, newError(KindReconciliationMismatch, transactionID.Hex(), "unknown transaction", err)
	}
	if err != nil {
		return nil, fmt.Errorf("load transaction: %w", err)
	}
	if tx.Status == models.TransactionCompleted {
		return o.Reconcile(ctx, tx.ID, tx.Status)
	}
	if tx.Status.Terminal() {
		return o.loadOrder(ctx, tx.OrderID)
	}

	gateway, err := o.Gateways.Select(tx.Provider)
	if err != nil {
		return nil, newError(KindUnsupportedProvider, tx.Provider, "unsupported payment provider", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, o.paymentTimeout)
	defer cancel()
	verification, err := gateway.VerifyPayment(callCtx, tx.Reference)
	if err != nil {
		return nil, gatewayError(tx.Provider, providerMessage(err), err)
	}

	var status models.TransactionStatus
	switch {
	case verification.Success():
		status = models.TransactionCompleted
		if !verification.Amount.Equal(tx.Amount) || !strings.EqualFold(verification.Currency, tx.Currency) {
			o.logger.Printf("transaction=%s provider reported %s %s, expected %s %s",
				tx.ID.Hex(), verification.Amount, verification.Currency, tx.Amount, tx.Currency)
			status = models.TransactionFailed
		}
	case verification.Outcome == payment.OutcomeFailure:
		status = models.TransactionFailed
	default:
		return o.loadOrder(ctx, tx.OrderID)
	}
	return o.Reconcile(ctx, tx.ID, status)
}

func (o *Orchestrator) loadOrder(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	order, err := o.Orders.Get(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return nil, newError(KindOrderNotFound, "", "order not found", err)
	}
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	return order, nil
}

func providerMessage(err error) string {
	var perr *payment.Error
	if errors.As(err, &perr) && perr.Message != "" {
		return perr.Message
	}
	return err.Error()
}
