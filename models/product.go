package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Product is a catalog entry and its stock ledger entry. Stock is only ever
// changed through the ledger's conditional updates and never goes negative.
type Product struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description" json:"description"`
	Category    string             `bson:"category" json:"category"`
	Price       Money              `bson:"price" json:"price"`
	Discount    float64            `bson:"discount" json:"discount"` // percentage, 0-100
	Stock       int                `bson:"stock" json:"stock"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}

// EffectivePrice is the unit price after discount, rounded to cents. It is
// derived from the base price every time so the base price is never mutated.
func (p *Product) EffectivePrice() Money {
	return p.Price.Discounted(p.Discount)
}

// Validate checks the fields an admin may set.
func (p *Product) Validate() error {
	switch {
	case p.Name == "":
		return newValidationError("name is required")
	case p.Price.IsNegative():
		return newValidationError("price must not be negative")
	case p.Discount < 0 || p.Discount > 100:
		return newValidationError("discount must be between 0 and 100")
	case p.Stock < 0:
		return newValidationError("stock must not be negative")
	}
	return nil
}
