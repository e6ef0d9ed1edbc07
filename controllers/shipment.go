package controllers

import (
	"context"
	"net/http"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"go-storefront/models"
)

type ShipmentMethodRepository interface {
	Create(ctx context.Context, m *models.ShipmentMethod) error
	ListActive(ctx context.Context) ([]models.ShipmentMethod, error)
}

type ShipmentController struct {
	Methods ShipmentMethodRepository
}

func NewShipmentController(methods ShipmentMethodRepository) *ShipmentController {
	return &ShipmentController{Methods: methods}
}

// CreateShipmentMethod adds a delivery option (Admin only)
func (sc *ShipmentController) CreateShipmentMethod(w http.ResponseWriter, r *http.Request) {
	var method models.ShipmentMethod
	if !decode(w, r, &method) {
		return
	}
	method.ID = primitive.NilObjectID
	if err := method.Validate(); err != nil {
		respondError(w, r, err)
		return
	}

	ctx, cancel := storeContext(r)
	defer cancel()
	if err := sc.Methods.Create(ctx, &method); err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, method)
}

func (sc *ShipmentController) GetShipmentMethods(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := storeContext(r)
	defer cancel()
	methods, err := sc.Methods.ListActive(ctx)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if methods == nil {
		methods = []models.ShipmentMethod{}
	}

	respondJSON(w, http.StatusOK, methods)
}
