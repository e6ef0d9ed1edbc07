package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"go-storefront/models"
)

type CartRepository interface {
	Get(ctx context.Context, userID primitive.ObjectID) (*models.Cart, error)
	AddItem(ctx context.Context, userID primitive.ObjectID, item models.CartItem) (*models.Cart, error)
	SetQuantity(ctx context.Context, userID, productID primitive.ObjectID, quantity int) (*models.Cart, error)
	RemoveItem(ctx context.Context, userID, productID primitive.ObjectID) (*models.Cart, error)
	ApplyCoupon(ctx context.Context, userID primitive.ObjectID, code string) (*models.Cart, error)
}

type ProductLookup interface {
	GetProduct(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
}

// CartController handles cart-related requests
type CartController struct {
	Carts   CartRepository
	Catalog ProductLookup
}

func NewCartController(carts CartRepository, catalog ProductLookup) *CartController {
	return &CartController{Carts: carts, Catalog: catalog}
}

// AddToCart adds a product to the user's cart
func (cc *CartController) AddToCart(w http.ResponseWriter, r *http.Request) {
	_, userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var item models.CartItem
	if !decode(w, r, &item) {
		return
	}
	if err := item.Validate(); err != nil {
		respondError(w, r, err)
		return
	}

	ctx, cancel := storeContext(r)
	defer cancel()
	if _, err := cc.Catalog.GetProduct(ctx, item.ProductID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			notFound(w, r, "Product not found")
			return
		}
		respondError(w, r, err)
		return
	}

	cart, err := cc.Carts.AddItem(ctx, userID, item)
	if err != nil {
		cartError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, cart)
}

// UpdateQuantity sets a line's quantity. Zero removes the line.
func (cc *CartController) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	_, userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	productID, ok := pathID(w, r, "product_id")
	if !ok {
		return
	}

	var input struct {
		Quantity int `json:"quantity"`
	}
	if !decode(w, r, &input) {
		return
	}
	if input.Quantity < 0 {
		badRequest(w, r, "quantity must not be negative")
		return
	}

	ctx, cancel := storeContext(r)
	defer cancel()
	cart, err := cc.Carts.SetQuantity(ctx, userID, productID, input.Quantity)
	if err != nil {
		cartError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, cart)
}

// RemoveFromCart removes a product from the user's cart
func (cc *CartController) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	_, userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	productID, ok := pathID(w, r, "product_id")
	if !ok {
		return
	}

	ctx, cancel := storeContext(r)
	defer cancel()
	cart, err := cc.Carts.RemoveItem(ctx, userID, productID)
	if err != nil {
		cartError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, cart)
}

// ApplyCoupon records a coupon code on the cart. An empty code removes it.
func (cc *CartController) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	_, userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var input struct {
		Code string `json:"code"`
	}
	if !decode(w, r, &input) {
		return
	}

	ctx, cancel := storeContext(r)
	defer cancel()
	cart, err := cc.Carts.ApplyCoupon(ctx, userID, strings.ToUpper(strings.TrimSpace(input.Code)))
	if err != nil {
		cartError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, cart)
}

// GetCart retrieves the user's cart. A user without one gets an empty cart.
func (cc *CartController) GetCart(w http.ResponseWriter, r *http.Request) {
	_, userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	ctx, cancel := storeContext(r)
	defer cancel()
	cart, err := cc.Carts.Get(ctx, userID)
	if errors.Is(err, models.ErrNotFound) {
		cart = &models.Cart{UserID: userID, Items: []models.CartItem{}}
		err = nil
	}
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, cart)
}

func cartError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, models.ErrConflict):
		respondFailure(w, r, http.StatusConflict, "cart_locked", "Cart is being checked out", "")
	case errors.Is(err, models.ErrNotFound):
		notFound(w, r, "Cart not found")
	default:
		respondError(w, r, err)
	}
}
