package controllers

import (
	"context"
	"net/http"
)

type CheckoutController struct {
	Pipeline Pipeline
}

func NewCheckoutController(pipeline Pipeline) *CheckoutController {
	return &CheckoutController{Pipeline: pipeline}
}

// Checkout turns the caller's cart into a pending order.
func (cc *CheckoutController) Checkout(w http.ResponseWriter, r *http.Request) {
	_, userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var input struct {
		AddressID        string `json:"address_id"`
		ShipmentMethodID string `json:"shipment_method_id"`
	}
	if !decode(w, r, &input) {
		return
	}
	addressID, ok := parseID(w, r, "address_id", input.AddressID)
	if !ok {
		return
	}
	methodID, ok := parseID(w, r, "shipment_method_id", input.ShipmentMethodID)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), pipelineTimeout)
	defer cancel()
	order, err := cc.Pipeline.Checkout(ctx, userID, addressID, methodID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, order)
}
