package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"go-storefront/models"
)

// CartStore keeps one cart per user. While a checkout holds a cart
// (checked_out is true) shoppers cannot change it; the mutators then return
// models.ErrConflict.
type CartStore struct {
	collection *mongo.Collection
}

func NewCartStore(db *mongo.Database) *CartStore {
	return &CartStore{collection: db.Collection(cartsCollection)}
}

var afterUpdate = options.FindOneAndUpdate().SetReturnDocument(options.After)

func editable(userID primitive.ObjectID) bson.M {
	return bson.M{"user_id": userID, "checked_out": bson.M{"$ne": true}}
}

func (s *CartStore) Get(ctx context.Context, userID primitive.ObjectID) (*models.Cart, error) {
	var cart models.Cart
	if err := s.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&cart); err != nil {
		return nil, translate(err)
	}
	return &cart, nil
}

// AddItem adds quantity to an existing line or appends a new one, creating
// the cart on first use.
func (s *CartStore) AddItem(ctx context.Context, userID primitive.ObjectID, item models.CartItem) (*models.Cart, error) {
	cart, err := s.addItem(ctx, userID, item)
	if errors.Is(err, models.ErrDuplicate) {
		// Either a concurrent first add created the cart, or a checkout holds it.
		cart, err = s.addItem(ctx, userID, item)
	}
	if errors.Is(err, models.ErrDuplicate) {
		return nil, models.ErrConflict
	}
	return cart, err
}

func (s *CartStore) addItem(ctx context.Context, userID primitive.ObjectID, item models.CartItem) (*models.Cart, error) {
	now := time.Now().UTC()

	filter := editable(userID)
	filter["items.product_id"] = item.ProductID
	cart, err := s.modify(ctx, filter, bson.M{
		"$inc": bson.M{"items.$.quantity": item.Quantity},
		"$set": bson.M{"updated_at": now},
	}, afterUpdate)
	if !errors.Is(err, models.ErrNotFound) {
		return cart, err
	}

	filter = editable(userID)
	filter["items.product_id"] = bson.M{"$ne": item.ProductID}
	return s.modify(ctx, filter, bson.M{
		"$push":        bson.M{"items": item},
		"$set":         bson.M{"updated_at": now},
		"$setOnInsert": bson.M{"created_at": now, "checked_out": false, "coupon": nil},
	}, options.FindOneAndUpdate().SetReturnDocument(options.After).SetUpsert(true))
}

// SetQuantity changes the quantity of a line. Zero removes the line.
func (s *CartStore) SetQuantity(ctx context.Context, userID, productID primitive.ObjectID, quantity int) (*models.Cart, error) {
	if quantity <= 0 {
		return s.RemoveItem(ctx, userID, productID)
	}
	filter := editable(userID)
	filter["items.product_id"] = productID
	cart, err := s.modify(ctx, filter, bson.M{
		"$set": bson.M{"items.$.quantity": quantity, "updated_at": time.Now().UTC()},
	}, afterUpdate)
	if errors.Is(err, models.ErrNotFound) {
		return nil, s.explainMiss(ctx, userID)
	}
	return cart, err
}

func (s *CartStore) RemoveItem(ctx context.Context, userID, productID primitive.ObjectID) (*models.Cart, error) {
	cart, err := s.modify(ctx, editable(userID), bson.M{
		"$pull": bson.M{"items": bson.M{"product_id": productID}},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}, afterUpdate)
	if errors.Is(err, models.ErrNotFound) {
		return nil, s.explainMiss(ctx, userID)
	}
	return cart, err
}

// ApplyCoupon records a coupon code on the cart. An empty code removes it.
func (s *CartStore) ApplyCoupon(ctx context.Context, userID primitive.ObjectID, code string) (*models.Cart, error) {
	var coupon any
	if code != "" {
		coupon = code
	}
	cart, err := s.modify(ctx, editable(userID), bson.M{
		"$set": bson.M{"coupon": coupon, "updated_at": time.Now().UTC()},
	}, afterUpdate)
	if errors.Is(err, models.ErrNotFound) {
		return nil, s.explainMiss(ctx, userID)
	}
	return cart, err
}

// Claim marks the user's non-empty cart as held by token. A hold older than
// staleAfter is treated as abandoned and taken over.
func (s *CartStore) Claim(ctx context.Context, userID primitive.ObjectID, token string, staleAfter time.Duration) (*models.Cart, error) {
	now := time.Now().UTC()
	filter := bson.M{
		"user_id": userID,
		"items.0": bson.M{"$exists": true},
		"$or": bson.A{
			bson.M{"checked_out": bson.M{"$ne": true}},
			bson.M{"checkout_started_at": bson.M{"$lt": now.Add(-staleAfter)}},
		},
	}
	return s.modify(ctx, filter, bson.M{"$set": bson.M{
		"checked_out":         true,
		"checkout_token":      token,
		"checkout_started_at": now,
	}}, afterUpdate)
}

func (s *CartStore) Unclaim(ctx context.Context, cart *models.Cart) error {
	return s.release(ctx, cart, bson.M{"updated_at": time.Now().UTC()})
}

func (s *CartStore) Clear(ctx context.Context, cart *models.Cart) error {
	return s.release(ctx, cart, bson.M{
		"items":      bson.A{},
		"coupon":     nil,
		"updated_at": time.Now().UTC(),
	})
}

func (s *CartStore) release(ctx context.Context, cart *models.Cart, set bson.M) error {
	if cart.CheckoutToken == "" {
		return models.ErrConflict
	}
	set["checked_out"] = false
	res, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": cart.ID, "checkout_token": cart.CheckoutToken},
		bson.M{"$set": set, "$unset": bson.M{"checkout_token": "", "checkout_started_at": ""}},
	)
	if err != nil {
		return fmt.Errorf("failed to release cart: %w", err)
	}
	if res.MatchedCount == 0 {
		return models.ErrConflict
	}
	return nil
}

// Restore puts a cart's lines back, unless the shopper has already started
// filling it again.
func (s *CartStore) Restore(ctx context.Context, cart *models.Cart) error {
	res, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": cart.ID, "items": bson.M{"$size": 0}},
		bson.M{"$set": bson.M{"items": cart.Items, "coupon": cart.Coupon, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("failed to restore cart: %w", err)
	}
	if res.MatchedCount == 0 {
		return models.ErrConflict
	}
	return nil
}

func (s *CartStore) modify(ctx context.Context, filter, update bson.M, opts *options.FindOneAndUpdateOptions) (*models.Cart, error) {
	var cart models.Cart
	if err := s.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&cart); err != nil {
		return nil, translate(err)
	}
	return &cart, nil
}

// explainMiss tells a missing cart apart from one held by a checkout.
func (s *CartStore) explainMiss(ctx context.Context, userID primitive.ObjectID) error {
	n, err := s.collection.CountDocuments(ctx, bson.M{"user_id": userID, "checked_out": true})
	if err != nil {
		return fmt.Errorf("failed to check cart: %w", err)
	}
	if n > 0 {
		return models.ErrConflict
	}
	return models.ErrNotFound
}
