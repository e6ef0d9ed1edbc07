package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// ShipmentMethod is a delivery option selectable at checkout.
type ShipmentMethod struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Name          string             `bson:"name" json:"name"`
	Carrier       string             `bson:"carrier" json:"carrier"`
	EstimatedDays int                `bson:"estimated_days" json:"estimated_days"`
	Active        bool               `bson:"active" json:"active"`
}

func (m *ShipmentMethod) Validate() error {
	if m.Name == "" || m.Carrier == "" {
		return newValidationError("name and carrier are required")
	}
	if m.EstimatedDays < 0 {
		return newValidationError("estimated_days must not be negative")
	}
	return nil
}
