package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CartItem represents an item in the cart
type CartItem struct {
	ProductID primitive.ObjectID `bson:"product_id" json:"product_id"`
	Quantity  int                `bson:"quantity" json:"quantity"`
}

// Cart represents a user's shopping cart. There is one cart per user; it is
// emptied when its contents are promoted into an order.
//
// CheckedOut is set while a checkout holds the cart. CheckoutToken identifies
// the holder so a stale holder cannot clear a cart taken over by another.
type Cart struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	UserID            primitive.ObjectID `bson:"user_id" json:"user_id"`
	Items             []CartItem         `bson:"items" json:"items"`
	Coupon            *string            `bson:"coupon" json:"coupon"`
	CheckedOut        bool               `bson:"checked_out" json:"checked_out"`
	CheckoutToken     string             `bson:"checkout_token,omitempty" json:"-"`
	CheckoutStartedAt *time.Time         `bson:"checkout_started_at,omitempty" json:"-"`
	CreatedAt         time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time          `bson:"updated_at" json:"updated_at"`
}

func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

// Validate checks a single line before it is added to a cart.
func (i CartItem) Validate() error {
	if i.ProductID.IsZero() {
		return newValidationError("product_id is required")
	}
	if i.Quantity < 1 {
		return newValidationError("quantity must be at least 1")
	}
	return nil
}
