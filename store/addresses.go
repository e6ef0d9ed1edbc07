package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"go-storefront/models"
)

type AddressStore struct {
	collection *mongo.Collection
}

func NewAddressStore(db *mongo.Database) *AddressStore {
	return &AddressStore{collection: db.Collection(addressesCollection)}
}

func (s *AddressStore) Create(ctx context.Context, a *models.Address) error {
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	a.CreatedAt = time.Now().UTC()
	if _, err := s.collection.InsertOne(ctx, a); err != nil {
		return fmt.Errorf("failed to create address: %w", translate(err))
	}
	return nil
}

// GetAddress only finds addresses owned by userID.
func (s *AddressStore) GetAddress(ctx context.Context, id, userID primitive.ObjectID) (*models.Address, error) {
	var a models.Address
	if err := s.collection.FindOne(ctx, bson.M{"_id": id, "user_id": userID}).Decode(&a); err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (s *AddressStore) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Address, error) {
	addresses, err := findAll[models.Address](ctx, s.collection, bson.M{"user_id": userID}, newestFirst())
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}
	return addresses, nil
}

func (s *AddressStore) Delete(ctx context.Context, id, userID primitive.ObjectID) error {
	res, err := s.collection.DeleteOne(ctx, bson.M{"_id": id, "user_id": userID})
	if err != nil {
		return fmt.Errorf("failed to delete address: %w", err)
	}
	if res.DeletedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}
