package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"go-storefront/models"
)

type ShipmentMethodStore struct {
	collection *mongo.Collection
}

func NewShipmentMethodStore(db *mongo.Database) *ShipmentMethodStore {
	return &ShipmentMethodStore{collection: db.Collection(shipmentMethodsCollection)}
}

func (s *ShipmentMethodStore) Create(ctx context.Context, m *models.ShipmentMethod) error {
	if m.ID.IsZero() {
		m.ID = primitive.NewObjectID()
	}
	if _, err := s.collection.InsertOne(ctx, m); err != nil {
		return fmt.Errorf("failed to create shipment method: %w", translate(err))
	}
	return nil
}

func (s *ShipmentMethodStore) GetShipmentMethod(ctx context.Context, id primitive.ObjectID) (*models.ShipmentMethod, error) {
	var m models.ShipmentMethod
	if err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

// ListActive returns the methods shoppers may pick at checkout.
func (s *ShipmentMethodStore) ListActive(ctx context.Context) ([]models.ShipmentMethod, error) {
	methods, err := findAll[models.ShipmentMethod](ctx, s.collection, bson.M{"active": true},
		options.Find().SetSort(bson.D{{Key: "estimated_days", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list shipment methods: %w", err)
	}
	return methods, nil
}
