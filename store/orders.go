package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"go-storefront/models"
)

type OrderStore struct {
	collection *mongo.Collection
}

func NewOrderStore(db *mongo.Database) *OrderStore {
	return &OrderStore{collection: db.Collection(ordersCollection)}
}

func (s *OrderStore) Create(ctx context.Context, order *models.Order) error {
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	if _, err := s.collection.InsertOne(ctx, order); err != nil {
		return fmt.Errorf("failed to create order: %w", translate(err))
	}
	return nil
}

func (s *OrderStore) Get(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	var order models.Order
	if err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&order); err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

// ListByUser returns a user's orders, newest first.
func (s *OrderStore) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Order, error) {
	orders, err := findAll[models.Order](ctx, s.collection, bson.M{"user_id": userID}, newestFirst())
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// SetStatus is a compare-and-set on the order status.
func (s *OrderStore) SetStatus(ctx context.Context, id primitive.ObjectID, from []models.OrderStatus, next models.OrderStatus) (*models.Order, error) {
	var order models.Order
	err := s.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": bson.M{"$in": from}},
		bson.M{"$set": bson.M{"status": next, "updated_at": time.Now().UTC()}},
		afterUpdate,
	).Decode(&order)
	if err == nil {
		return &order, nil
	}
	if err = translate(err); !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}
	return nil, conflictOrMissing(ctx, s.collection, id)
}

// conflictOrMissing explains why a conditional update on id matched nothing.
func conflictOrMissing(ctx context.Context, coll *mongo.Collection, id primitive.ObjectID) error {
	n, err := coll.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to check %s: %w", coll.Name(), err)
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return models.ErrConflict
}
