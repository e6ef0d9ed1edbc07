package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Address is an address book entry owned by one user.
type Address struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	UserID    primitive.ObjectID `bson:"user_id" json:"user_id"`
	Street    string             `bson:"street" json:"street"`
	City      string             `bson:"city" json:"city"`
	State     string             `bson:"state" json:"state"`
	ZipCode   string             `bson:"zipcode" json:"zipcode"`
	Country   string             `bson:"country" json:"country"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

func (a *Address) Validate() error {
	if a.Street == "" || a.City == "" || a.Country == "" {
		return newValidationError("street, city and country are required")
	}
	return nil
}

// User represents a user in the system
type User struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Name              string             `bson:"name" json:"name"`
	Email             string             `bson:"email" json:"email"`
	Password          string             `bson:"password,omitempty" json:"-"`
	Role              string             `bson:"role" json:"role"` // "user" or "admin"
	IsVerified        bool               `bson:"is_verified" json:"is_verified"`
	VerificationToken string             `bson:"verification_token" json:"-"`
}
