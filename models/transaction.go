package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
	TransactionRefunded  TransactionStatus = "refunded"
)

func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	switch s {
	case TransactionPending:
		return next == TransactionCompleted || next == TransactionFailed
	case TransactionCompleted:
		return next == TransactionRefunded
	}
	return false
}

func (s TransactionStatus) Terminal() bool {
	return s != TransactionPending
}

// Transaction is one payment attempt against an order. A failed attempt is
// kept as is; retrying creates a new transaction.
type Transaction struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	OrderID           primitive.ObjectID `bson:"order_id" json:"order_id"`
	UserID            primitive.ObjectID `bson:"user_id" json:"user_id"`
	Amount            Money              `bson:"amount" json:"amount"`
	Currency          string             `bson:"currency" json:"currency"`
	Provider          string             `bson:"provider" json:"provider"`
	Reference         string             `bson:"reference" json:"reference"`
	ProviderReference string             `bson:"provider_reference,omitempty" json:"provider_reference,omitempty"`
	AuthorizationURL  string             `bson:"authorization_url,omitempty" json:"authorization_url,omitempty"`
	Status            TransactionStatus  `bson:"status" json:"status"`
	CreatedAt         time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time          `bson:"updated_at" json:"updated_at"`
}
