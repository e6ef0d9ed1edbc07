package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"go-storefront/models"
)

var ErrCacheMiss = errors.New("cache miss")

const (
	DefaultCartCacheTTL = 15 * time.Minute

	generationTTL = 24 * time.Hour
)

// RedisCartCache keeps rendered carts keyed by user id.
type RedisCartCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func NewRedisCartCache(client *redis.Client, ttl time.Duration) *RedisCartCache {
	if ttl <= 0 {
		ttl = DefaultCartCacheTTL
	}
	return &RedisCartCache{client: client, baseTTL: ttl}
}

func (r *RedisCartCache) Get(ctx context.Context, userID primitive.ObjectID) (*models.Cart, error) {
	data, err := r.client.Get(ctx, cartKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var cart models.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return &cart, nil
}

// Delete drops the cached cart and bumps the user's generation so fills
// that read the store before this call are discarded.
func (r *RedisCartCache) Delete(ctx context.Context, userID primitive.ObjectID) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, cartKey(userID))
		pipe.Incr(ctx, generationKey(userID))
		pipe.Expire(ctx, generationKey(userID), generationTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// Generation returns the user's current cache generation. Read it before
// loading the cart from the store and hand it to Fill.
func (r *RedisCartCache) Generation(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	gen, err := r.client.Get(ctx, generationKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get generation failed: %w", err)
	}
	return gen, nil
}

// Fill caches a cart read from the store, unless the cart was invalidated
// after generation was read. It reports whether the cart was stored.
func (r *RedisCartCache) Fill(ctx context.Context, cart *models.Cart, generation int64) (bool, error) {
	data, err := json.Marshal(cart)
	if err != nil {
		return false, fmt.Errorf("marshal cart failed: %w", err)
	}

	key := generationKey(cart.UserID)
	stored := false
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != generation {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, cartKey(cart.UserID), data, r.ttl())
			return nil
		})
		stored = err == nil
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis fill failed: %w", err)
	}
	return stored, nil
}

// ttl is jittered so entries written together do not expire together.
func (r *RedisCartCache) ttl() time.Duration {
	return r.baseTTL + time.Duration(rand.Int63n(int64(r.baseTTL/3)+1))
}

func cartKey(userID primitive.ObjectID) string {
	return "cart:" + userID.Hex()
}

func generationKey(userID primitive.ObjectID) string {
	return "cart:gen:" + userID.Hex()
}

// CachedCarts reads carts through a cache and drops the cached copy on
// every write. Cache failures are logged and fall back to the store.
type CachedCarts struct {
	*CartStore
	cache  *RedisCartCache
	logger *log.Logger
}

func NewCachedCarts(carts *CartStore, cache *RedisCartCache, logger *log.Logger) *CachedCarts {
	return &CachedCarts{CartStore: carts, cache: cache, logger: logger}
}

func (c *CachedCarts) Get(ctx context.Context, userID primitive.ObjectID) (*models.Cart, error) {
	cart, err := c.cache.Get(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		c.logger.Printf("cart cache user=%s: %v", userID.Hex(), err)
	}

	gen, genErr := c.cache.Generation(ctx, userID)
	cart, err = c.CartStore.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if genErr != nil {
		c.logger.Printf("cart cache user=%s: %v", userID.Hex(), genErr)
		return cart, nil
	}
	if _, err := c.cache.Fill(ctx, cart, gen); err != nil {
		c.logger.Printf("cart cache user=%s: %v", userID.Hex(), err)
	}
	return cart, nil
}

func (c *CachedCarts) AddItem(ctx context.Context, userID primitive.ObjectID, item models.CartItem) (*models.Cart, error) {
	defer c.invalidate(ctx, userID)
	return c.CartStore.AddItem(ctx, userID, item)
}

func (c *CachedCarts) SetQuantity(ctx context.Context, userID, productID primitive.ObjectID, quantity int) (*models.Cart, error) {
	defer c.invalidate(ctx, userID)
	return c.CartStore.SetQuantity(ctx, userID, productID, quantity)
}

func (c *CachedCarts) RemoveItem(ctx context.Context, userID, productID primitive.ObjectID) (*models.Cart, error) {
	defer c.invalidate(ctx, userID)
	return c.CartStore.RemoveItem(ctx, userID, productID)
}

func (c *CachedCarts) ApplyCoupon(ctx context.Context, userID primitive.ObjectID, code string) (*models.Cart, error) {
	defer c.invalidate(ctx, userID)
	return c.CartStore.ApplyCoupon(ctx, userID, code)
}

func (c *CachedCarts) Claim(ctx context.Context, userID primitive.ObjectID, token string, staleAfter time.Duration) (*models.Cart, error) {
	defer c.invalidate(ctx, userID)
	return c.CartStore.Claim(ctx, userID, token, staleAfter)
}

func (c *CachedCarts) Unclaim(ctx context.Context, cart *models.Cart) error {
	defer c.invalidate(ctx, cart.UserID)
	return c.CartStore.Unclaim(ctx, cart)
}

func (c *CachedCarts) Clear(ctx context.Context, cart *models.Cart) error {
	defer c.invalidate(ctx, cart.UserID)
	return c.CartStore.Clear(ctx, cart)
}

func (c *CachedCarts) Restore(ctx context.Context, cart *models.Cart) error {
	defer c.invalidate(ctx, cart.UserID)
	return c.CartStore.Restore(ctx, cart)
}

func (c *CachedCarts) invalidate(ctx context.Context, userID primitive.ObjectID) {
	if err := c.cache.Delete(context.WithoutCancel(ctx), userID); err != nil {
		c.logger.Printf("cart cache user=%s: invalidate: %v", userID.Hex(), err)
	}
}
