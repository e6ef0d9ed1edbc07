package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"go-storefront/checkout"
	"go-storefront/models"
)

type PaymentController struct {
	Pipeline     Pipeline
	Orders       OrderRepository
	Transactions TransactionRepository
}

func NewPaymentController(pipeline Pipeline, orders OrderRepository, transactions TransactionRepository) *PaymentController {
	return &PaymentController{Pipeline: pipeline, Orders: orders, Transactions: transactions}
}

type paymentStarted struct {
	AuthorizationURL string `json:"authorization_url"`
	TransactionID    string `json:"transaction_id"`
	Reference        string `json:"reference"`
}

// InitiatePayment starts a payment for one of the caller's pending orders.
func (pc *PaymentController) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	claims, userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var input struct {
		OrderID     string `json:"order_id"`
		Provider    string `json:"provider"`
		CallbackURL string `json:"callback_url"`
	}
	if !decode(w, r, &input) {
		return
	}
	orderID, ok := parseID(w, r, "order_id", input.OrderID)
	if !ok {
		return
	}
	if input.CallbackURL != "" {
		if u, err := url.Parse(input.CallbackURL); err != nil || !u.IsAbs() {
			badRequest(w, r, "callback_url must be an absolute URL")
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), pipelineTimeout)
	defer cancel()

	order, err := pc.Orders.Get(ctx, orderID)
	if errors.Is(err, models.ErrNotFound) || (err == nil && !owns(claims, userID, order.UserID)) {
		respondError(w, r, checkout.ErrOrderNotFound)
		return
	}
	if err != nil {
		respondError(w, r, err)
		return
	}

	tx, err := pc.Pipeline.InitiatePayment(ctx, order.ID, input.Provider, input.CallbackURL)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, paymentStarted{
		AuthorizationURL: tx.AuthorizationURL,
		TransactionID:    tx.ID.Hex(),
		Reference:        tx.Reference,
	})
}

// Reconcile applies a verified provider outcome to a transaction (Admin only).
// The transaction is named by transaction_id or by its payment reference.
// status is "completed" or "failed"; the provider words "success",
// "successful", "failure" and "failed" are accepted too.
func (pc *PaymentController) Reconcile(w http.ResponseWriter, r *http.Request) {
	var input struct {
		TransactionID string `json:"transaction_id"`
		Reference     string `json:"reference"`
		Status        string `json:"status"`
	}
	if !decode(w, r, &input) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), pipelineTimeout)
	defer cancel()

	var txID primitive.ObjectID
	if input.TransactionID == "" && input.Reference != "" {
		tx, err := pc.Transactions.GetByReference(ctx, input.Reference)
		if errors.Is(err, models.ErrNotFound) {
			respondError(w, r, &checkout.Error{Kind: checkout.KindReconciliationMismatch, Ref: input.Reference, Message: "unknown transaction"})
			return
		}
		if err != nil {
			respondError(w, r, err)
			return
		}
		txID = tx.ID
	} else {
		id, ok := parseID(w, r, "transaction_id", input.TransactionID)
		if !ok {
			return
		}
		txID = id
	}

	order, err := pc.Pipeline.Reconcile(ctx, txID, verifiedStatus(input.Status))
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}

func verifiedStatus(status string) models.TransactionStatus {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "completed", "success", "successful":
		return models.TransactionCompleted
	case "failed", "failure":
		return models.TransactionFailed
	}
	return models.TransactionStatus(status)
}

// Refund returns the {id} transaction's payment to the customer (Admin only)
func (pc *PaymentController) Refund(w http.ResponseWriter, r *http.Request) {
	txID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), pipelineTimeout)
	defer cancel()
	order, err := pc.Pipeline.Refund(ctx, txID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}

// VerifyPayment asks the provider for the outcome of the {id} transaction and
// reconciles it.
func (pc *PaymentController) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	claims, userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	txID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), pipelineTimeout)
	defer cancel()

	tx, err := pc.Transactions.Get(ctx, txID)
	if errors.Is(err, models.ErrNotFound) || (err == nil && !owns(claims, userID, tx.UserID)) {
		respondError(w, r, &checkout.Error{Kind: checkout.KindReconciliationMismatch, Ref: txID.Hex(), Message: "unknown transaction"})
		return
	}
	if err != nil {
		respondError(w, r, err)
		return
	}

	order, err := pc.Pipeline.Verify(ctx, tx.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}
