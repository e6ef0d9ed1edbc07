package controllers

import (
	"context"
	"errors"
	"net/http"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"go-storefront/checkout"
	"go-storefront/models"
)

// Pipeline is the checkout orchestrator as the HTTP layer sees it.
type Pipeline interface {
	Checkout(ctx context.Context, userID, addressID, shipmentMethodID primitive.ObjectID) (*models.Order, error)
	InitiatePayment(ctx context.Context, orderID primitive.ObjectID, providerID, callbackURL string) (*models.Transaction, error)
	Reconcile(ctx context.Context, transactionID primitive.ObjectID, verified models.TransactionStatus) (*models.Order, error)
	Verify(ctx context.Context, transactionID primitive.ObjectID) (*models.Order, error)
	Refund(ctx context.Context, transactionID primitive.ObjectID) (*models.Order, error)
	Cancel(ctx context.Context, orderID primitive.ObjectID) (*models.Order, error)
	AdvanceStatus(ctx context.Context, orderID primitive.ObjectID, next models.OrderStatus) (*models.Order, error)
}

type OrderRepository interface {
	Get(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Order, error)
}

type TransactionRepository interface {
	Get(ctx context.Context, id primitive.ObjectID) (*models.Transaction, error)
	GetByReference(ctx context.Context, reference string) (*models.Transaction, error)
	ListByOrder(ctx context.Context, orderID primitive.ObjectID) ([]models.Transaction, error)
}

// OrderController handles order-related requests
type OrderController struct {
	Orders       OrderRepository
	Transactions TransactionRepository
	Pipeline     Pipeline
}

func NewOrderController(orders OrderRepository, transactions TransactionRepository, pipeline Pipeline) *OrderController {
	return &OrderController{Orders: orders, Transactions: transactions, Pipeline: pipeline}
}

// GetOrders retrieves all orders for the authenticated user, newest first
func (oc *OrderController) GetOrders(w http.ResponseWriter, r *http.Request) {
	_, userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	ctx, cancel := storeContext(r)
	defer cancel()
	orders, err := oc.Orders.ListByUser(ctx, userID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}

	respondJSON(w, http.StatusOK, orders)
}

func (oc *OrderController) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, ok := oc.ownedOrder(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// GetOrderTransactions lists every payment attempt for an order.
func (oc *OrderController) GetOrderTransactions(w http.ResponseWriter, r *http.Request) {
	order, ok := oc.ownedOrder(w, r)
	if !ok {
		return
	}

	ctx, cancel := storeContext(r)
	defer cancel()
	txs, err := oc.Transactions.ListByOrder(ctx, order.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if txs == nil {
		txs = []models.Transaction{}
	}

	respondJSON(w, http.StatusOK, txs)
}

func (oc *OrderController) CancelOrder(w http.ResponseWriter, r *http.Request) {
	order, ok := oc.ownedOrder(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), pipelineTimeout)
	defer cancel()
	cancelled, err := oc.Pipeline.Cancel(ctx, order.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, cancelled)
}

// UpdateOrderStatus moves an order along its lifecycle (Admin only)
func (oc *OrderController) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var input struct {
		Status models.OrderStatus `json:"status"`
	}
	if !decode(w, r, &input) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), pipelineTimeout)
	defer cancel()
	order, err := oc.Pipeline.AdvanceStatus(ctx, orderID, input.Status)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}

// ownedOrder loads the {id} order. Orders of other users are reported as
// missing unless the caller is an admin.
func (oc *OrderController) ownedOrder(w http.ResponseWriter, r *http.Request) (*models.Order, bool) {
	claims, userID, ok := currentUser(w, r)
	if !ok {
		return nil, false
	}
	orderID, ok := pathID(w, r, "id")
	if !ok {
		return nil, false
	}

	ctx, cancel := storeContext(r)
	defer cancel()
	order, err := oc.Orders.Get(ctx, orderID)
	if errors.Is(err, models.ErrNotFound) || (err == nil && !owns(claims, userID, order.UserID)) {
		respondError(w, r, checkout.ErrOrderNotFound)
		return nil, false
	}
	if err != nil {
		respondError(w, r, err)
		return nil, false
	}
	return order, true
}
