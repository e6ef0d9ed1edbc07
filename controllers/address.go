package controllers

import (
	"context"
	"net/http"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"go-storefront/models"
)

type AddressRepository interface {
	Create(ctx context.Context, a *models.Address) error
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Address, error)
	Delete(ctx context.Context, id, userID primitive.ObjectID) error
}

type AddressController struct {
	Addresses AddressRepository
}

func NewAddressController(addresses AddressRepository) *AddressController {
	return &AddressController{Addresses: addresses}
}

func (ac *AddressController) CreateAddress(w http.ResponseWriter, r *http.Request) {
	_, userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var address models.Address
	if !decode(w, r, &address) {
		return
	}
	address.ID = primitive.NilObjectID
	address.UserID = userID
	if err := address.Validate(); err != nil {
		respondError(w, r, err)
		return
	}

	ctx, cancel := storeContext(r)
	defer cancel()
	if err := ac.Addresses.Create(ctx, &address); err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, address)
}

func (ac *AddressController) GetAddresses(w http.ResponseWriter, r *http.Request) {
	_, userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	ctx, cancel := storeContext(r)
	defer cancel()
	addresses, err := ac.Addresses.ListByUser(ctx, userID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if addresses == nil {
		addresses = []models.Address{}
	}

	respondJSON(w, http.StatusOK, addresses)
}

func (ac *AddressController) DeleteAddress(w http.ResponseWriter, r *http.Request) {
	_, userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	ctx, cancel := storeContext(r)
	defer cancel()
	if err := ac.Addresses.Delete(ctx, id, userID); err != nil {
		respondError(w, r, err)
		return
	}

	respondMessage(w, http.StatusOK, "Address deleted")
}
