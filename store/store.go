// Package store keeps storefront documents in MongoDB.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"go-storefront/models"
)

const (
	productsCollection        = "products"
	cartsCollection           = "carts"
	ordersCollection          = "orders"
	transactionsCollection    = "transactions"
	usersCollection           = "users"
	addressesCollection       = "addresses"
	shipmentMethodsCollection = "shipment_methods"
)

// Connect opens a pooled client and checks the server is reachable.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100).
		SetMinPoolSize(10)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client, nil
}

// EnsureIndexes creates the indexes the stores rely on for uniqueness.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		cartsCollection: {
			{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		usersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		ordersCollection: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		transactionsCollection: {
			{Keys: bson.D{{Key: "reference", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "order_id", Value: 1}, {Key: "created_at", Value: -1}}},
			// At most one completed payment per order.
			{
				Keys: bson.D{{Key: "order_id", Value: 1}},
				Options: options.Index().
					SetName("order_id_completed").
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"status": models.TransactionCompleted}),
			},
		},
		addressesCollection: {
			{Keys: bson.D{{Key: "user_id", Value: 1}}},
		},
	}

	for name, idx := range indexes {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("failed to create %s indexes: %w", name, err)
		}
	}
	return nil
}

// Stores bundles one store per collection.
type Stores struct {
	Products        *ProductStore
	Carts           *CartStore
	Orders          *OrderStore
	Transactions    *TransactionStore
	Users           *UserStore
	Addresses       *AddressStore
	ShipmentMethods *ShipmentMethodStore
}

func New(db *mongo.Database) *Stores {
	return &Stores{
		Products:        NewProductStore(db),
		Carts:           NewCartStore(db),
		Orders:          NewOrderStore(db),
		Transactions:    NewTransactionStore(db),
		Users:           NewUserStore(db),
		Addresses:       NewAddressStore(db),
		ShipmentMethods: NewShipmentMethodStore(db),
	}
}

// translate maps driver errors onto the model sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return models.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", models.ErrDuplicate, err)
	}
	return err
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter any, opts ...*options.FindOptions) ([]T, error) {
	cursor, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []T{}
	for cursor.Next(ctx) {
		var doc T
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, cursor.Err()
}

func newestFirst() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
}
