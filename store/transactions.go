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

type TransactionStore struct {
	collection *mongo.Collection
}

func NewTransactionStore(db *mongo.Database) *TransactionStore {
	return &TransactionStore{collection: db.Collection(transactionsCollection)}
}

func (s *TransactionStore) Create(ctx context.Context, tx *models.Transaction) error {
	if tx.ID.IsZero() {
		tx.ID = primitive.NewObjectID()
	}
	if _, err := s.collection.InsertOne(ctx, tx); err != nil {
		return fmt.Errorf("failed to create transaction: %w", translate(err))
	}
	return nil
}

func (s *TransactionStore) Get(ctx context.Context, id primitive.ObjectID) (*models.Transaction, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// GetByReference finds a transaction by the reference sent to the provider.
func (s *TransactionStore) GetByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	return s.findOne(ctx, bson.M{"reference": reference})
}

func (s *TransactionStore) findOne(ctx context.Context, filter bson.M) (*models.Transaction, error) {
	var tx models.Transaction
	if err := s.collection.FindOne(ctx, filter).Decode(&tx); err != nil {
		return nil, translate(err)
	}
	return &tx, nil
}

// ListByOrder returns every payment attempt for an order, newest first.
func (s *TransactionStore) ListByOrder(ctx context.Context, orderID primitive.ObjectID) ([]models.Transaction, error) {
	txs, err := findAll[models.Transaction](ctx, s.collection, bson.M{"order_id": orderID}, newestFirst())
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, nil
}

// SetStatus is a compare-and-set on the transaction status. Completing a
// second transaction for an order trips the partial unique index and returns
// models.ErrDuplicate.
func (s *TransactionStore) SetStatus(ctx context.Context, id primitive.ObjectID, from, next models.TransactionStatus) (*models.Transaction, error) {
	var tx models.Transaction
	err := s.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": from},
		bson.M{"$set": bson.M{"status": next, "updated_at": time.Now().UTC()}},
		afterUpdate,
	).Decode(&tx)
	if err == nil {
		return &tx, nil
	}
	if err = translate(err); !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("failed to update transaction status: %w", err)
	}
	return nil, conflictOrMissing(ctx, s.collection, id)
}

// CompletedTotal sums the completed payments for an order.
func (s *TransactionStore) CompletedTotal(ctx context.Context, orderID primitive.ObjectID) (models.Money, error) {
	txs, err := findAll[models.Transaction](ctx, s.collection, bson.M{
		"order_id": orderID,
		"status":   models.TransactionCompleted,
	})
	if err != nil {
		return models.Money{}, fmt.Errorf("failed to sum transactions: %w", err)
	}

	var total models.Money
	for _, tx := range txs {
		total = total.Add(tx.Amount)
	}
	return total, nil
}
