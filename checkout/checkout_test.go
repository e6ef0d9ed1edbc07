package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"go-storefront/models"
)

func TestCheckout_PricesOrderAndEmptiesCart(t *testing.T) {
	h := newHarness(t)
	a := h.addProduct("Kettle", "100.00", 10, 5)
	h.fillCart(models.CartItem{ProductID: a, Quantity: 3})

	order, err := h.orch.Checkout(context.Background(), h.userID, h.addressID, h.shipmentID)
	require.NoError(t, err)

	assert.Equal(t, models.OrderPending, order.Status)
	assert.Equal(t, "NGN", order.Currency)
	assert.Equal(t, "270.00", order.TotalAmount.String())
	require.Len(t, order.Items, 1)
	assert.Equal(t, "90.00", order.Items[0].UnitPrice.String())
	assert.Equal(t, "Kettle", order.Items[0].Name)
	assert.Equal(t, 3, order.Items[0].Quantity)

	assert.Equal(t, 2, h.catalog.stock(a))
	cart := h.carts.get(h.userID)
	assert.Empty(t, cart.Items)
	assert.False(t, cart.CheckedOut)

	h.orch.Wait()
	assert.Equal(t, []primitive.ObjectID{order.ID}, h.notifier.placed)
	assert.Equal(t, 1, h.observer.outcomes["checkout/ok"])
}

func TestCheckout_InsufficientStockChangesNothing(t *testing.T) {
	h := newHarness(t)
	a := h.addProduct("Kettle", "100.00", 10, 2)
	h.fillCart(models.CartItem{ProductID: a, Quantity: 3})

	_, err := h.orch.Checkout(context.Background(), h.userID, h.addressID, h.shipmentID)

	require.ErrorIs(t, err, ErrInsufficientStock)
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, a.Hex(), cerr.Ref)

	assert.Equal(t, 2, h.catalog.stock(a))
	cart := h.carts.get(h.userID)
	assert.Equal(t, []models.CartItem{{ProductID: a, Quantity: 3}}, cart.Items)
	assert.False(t, cart.CheckedOut)
	assert.Zero(t, h.orders.count())
	assert.Equal(t, 1, h.observer.outcomes["checkout/error"])
}

func TestCheckout_Preconditions(t *testing.T) {
	tests := map[string]struct {
		setup   func(h *harness) (address, shipment primitive.ObjectID)
		wantErr error
	}{
		"no cart": {
			setup: func(h *harness) (primitive.ObjectID, primitive.ObjectID) {
				return h.addressID, h.shipmentID
			},
			wantErr: ErrEmptyCart,
		},
		"empty cart beats bad address": {
			setup: func(h *harness) (primitive.ObjectID, primitive.ObjectID) {
				h.fillCart()
				return primitive.NewObjectID(), h.shipmentID
			},
			wantErr: ErrEmptyCart,
		},
		"unknown address": {
			setup: func(h *harness) (primitive.ObjectID, primitive.ObjectID) {
				h.fillCart(models.CartItem{ProductID: h.addProduct("A", "1", 0, 1), Quantity: 1})
				return primitive.NewObjectID(), h.shipmentID
			},
			wantErr: ErrInvalidAddress,
		},
		"bad address beats bad shipment": {
			setup: func(h *harness) (primitive.ObjectID, primitive.ObjectID) {
				h.fillCart(models.CartItem{ProductID: h.addProduct("A", "1", 0, 1), Quantity: 1})
				return primitive.NewObjectID(), primitive.NewObjectID()
			},
			wantErr: ErrInvalidAddress,
		},
		"unknown shipment method": {
			setup: func(h *harness) (primitive.ObjectID, primitive.ObjectID) {
				h.fillCart(models.CartItem{ProductID: h.addProduct("A", "1", 0, 1), Quantity: 1})
				return h.addressID, primitive.NewObjectID()
			},
			wantErr: ErrInvalidShipment,
		},
		"product removed from catalog": {
			setup: func(h *harness) (primitive.ObjectID, primitive.ObjectID) {
				h.fillCart(models.CartItem{ProductID: primitive.NewObjectID(), Quantity: 1})
				return h.addressID, h.shipmentID
			},
			wantErr: ErrInsufficientStock,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			address, shipment := tc.setup(h)

			order, err := h.orch.Checkout(context.Background(), h.userID, address, shipment)

			assert.Nil(t, order)
			assert.ErrorIs(t, err, tc.wantErr)
			assert.Zero(t, h.orders.count())
			if cart, ok := h.carts.carts[h.userID]; ok {
				assert.False(t, cart.CheckedOut, "cart must be released after a failed checkout")
			}
		})
	}
}

func TestCheckout_InactiveShipmentMethod(t *testing.T) {
	h := newHarness(t)
	inactive := primitive.NewObjectID()
	h.orch.Shipments = shipmentsFake{inactive: {ID: inactive, Name: "Drone", Carrier: "Sky", Active: false}}
	h.fillCart(models.CartItem{ProductID: h.addProduct("A", "1", 0, 1), Quantity: 1})

	_, err := h.orch.Checkout(context.Background(), h.userID, h.addressID, inactive)

	assert.ErrorIs(t, err, ErrInvalidShipment)
}

func TestCheckout_ReservationIsAllOrNothing(t *testing.T) {
	h := newHarness(t)
	a := h.addProduct("A", "10.00", 0, 5)
	b := h.addProduct("B", "20.00", 0, 1)
	c := h.addProduct("C", "30.00", 0, 9)
	h.fillCart(
		models.CartItem{ProductID: a, Quantity: 2},
		models.CartItem{ProductID: b, Quantity: 3},
		models.CartItem{ProductID: c, Quantity: 1},
	)

	_, err := h.orch.Checkout(context.Background(), h.userID, h.addressID, h.shipmentID)

	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, KindInsufficientStock, cerr.Kind)
	assert.Equal(t, b.Hex(), cerr.Ref)
	assert.Equal(t, 5, h.catalog.stock(a))
	assert.Equal(t, 1, h.catalog.stock(b))
	assert.Equal(t, 9, h.catalog.stock(c))
}

func TestCheckout_ConcurrentCheckoutsOfOneCart(t *testing.T) {
	h := newHarness(t)
	a := h.addProduct("A", "10.00", 0, 100)
	h.fillCart(models.CartItem{ProductID: a, Quantity: 2})

	const n = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		empty     int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.orch.Checkout(context.Background(), h.userID, h.addressID, h.shipmentID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrEmptyCart):
				empty++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, empty)
	assert.Equal(t, 98, h.catalog.stock(a))
	assert.Equal(t, 1, h.orders.count())
}

func TestCheckout_OrderUnaffectedByLaterPriceChange(t *testing.T) {
	h := newHarness(t)
	a := h.addProduct("A", "19.99", 0, 10)
	b := h.addProduct("B", "5.25", 15, 10)
	h.fillCart(models.CartItem{ProductID: a, Quantity: 2}, models.CartItem{ProductID: b, Quantity: 4})

	order, err := h.orch.Checkout(context.Background(), h.userID, h.addressID, h.shipmentID)
	require.NoError(t, err)

	h.catalog.setPrice(a, "500.00")
	h.catalog.setPrice(b, "0.01")

	stored, err := h.orders.Get(context.Background(), order.ID)
	require.NoError(t, err)

	var sum models.Money
	for _, item := range stored.Items {
		sum = sum.Add(item.Subtotal())
	}
	// 2 x 19.99 + 4 x 4.46
	assert.Equal(t, "57.82", stored.TotalAmount.String())
	assert.True(t, sum.Equal(stored.TotalAmount))
}

func TestCheckout_FailedOrderWriteRestoresCartAndStock(t *testing.T) {
	h := newHarness(t)
	a := h.addProduct("A", "10.00", 0, 4)
	h.fillCart(models.CartItem{ProductID: a, Quantity: 3})
	h.orders.createErr = errors.New("write concern timeout")

	_, err := h.orch.Checkout(context.Background(), h.userID, h.addressID, h.shipmentID)

	require.Error(t, err)
	var cerr *Error
	assert.False(t, errors.As(err, &cerr), "storage failures are internal errors")
	assert.Equal(t, 4, h.catalog.stock(a))
	assert.Equal(t, []models.CartItem{{ProductID: a, Quantity: 3}}, h.carts.get(h.userID).Items)
}

func TestCheckout_ClaimedCart(t *testing.T) {
	tests := map[string]struct {
		startedAgo time.Duration
		wantErr    error
	}{
		"fresh claim blocks":     {startedAgo: 5 * time.Second, wantErr: ErrEmptyCart},
		"stale claim taken over": {startedAgo: 10 * time.Minute},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, WithLockTTL(time.Minute))
			a := h.addProduct("A", "10.00", 0, 4)
			h.fillCart(models.CartItem{ProductID: a, Quantity: 1})
			started := time.Now().Add(-tc.startedAgo)
			cart := h.carts.carts[h.userID]
			cart.CheckedOut, cart.CheckoutToken, cart.CheckoutStartedAt = true, "other", &started

			_, err := h.orch.Checkout(context.Background(), h.userID, h.addressID, h.shipmentID)

			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.Equal(t, 4, h.catalog.stock(a))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 3, h.catalog.stock(a))
		})
	}
}
