package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderPaid       OrderStatus = "paid"
	OrderCancelled  OrderStatus = "cancelled"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderReturned   OrderStatus = "returned"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderProcessing, OrderPaid, OrderCancelled},
	OrderProcessing: {OrderPaid, OrderCancelled, OrderShipped},
	OrderPaid:       {OrderProcessing, OrderShipped},
	OrderShipped:    {OrderDelivered, OrderReturned},
	OrderDelivered:  {OrderReturned},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderProcessing, OrderPaid, OrderCancelled, OrderShipped, OrderDelivered, OrderReturned:
		return true
	}
	return false
}

// CanTransitionTo reports whether an order may move from s to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Cancellable is true while stock is still held for the order.
func (s OrderStatus) Cancellable() bool {
	return s == OrderPending || s == OrderProcessing
}

// OrderItem is a price snapshot taken at checkout.
type OrderItem struct {
	ProductID primitive.ObjectID `bson:"product_id" json:"product_id"`
	Name      string             `bson:"name" json:"name"`
	Quantity  int                `bson:"quantity" json:"quantity"`
	UnitPrice Money              `bson:"unit_price" json:"unit_price"`
	Discount  float64            `bson:"discount" json:"discount"`
}

func (i OrderItem) Subtotal() Money {
	return i.UnitPrice.MulInt(i.Quantity)
}

// Order represents a user's order
type Order struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	UserID           primitive.ObjectID `bson:"user_id" json:"user_id"`
	AddressID        primitive.ObjectID `bson:"address_id" json:"address_id"`
	ShipmentMethodID primitive.ObjectID `bson:"shipment_method_id" json:"shipment_method_id"`
	Items            []OrderItem        `bson:"items" json:"items"`
	TotalAmount      Money              `bson:"total_amount" json:"total_amount"`
	Currency         string             `bson:"currency" json:"currency"`
	Status           OrderStatus        `bson:"status" json:"status"`
	CreatedAt        time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time          `bson:"updated_at" json:"updated_at"`
}

// ComputeTotal sums the line subtotals. The total is never taken from input.
func ComputeTotal(items []OrderItem) Money {
	var total Money
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total.Cents()
}
