package checkout

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"go-storefront/ledger"
	"go-storefront/models"
	"go-storefront/payment"
)

// Carts is the part of the cart store checkout needs.
//
// Claim takes the user's non-empty cart for one checkout and returns it with
// the holder's token set. It returns models.ErrNotFound when there is no such
// cart, or when another checkout holds it and the hold is younger than
// staleAfter.
type Carts interface {
	Claim(ctx context.Context, userID primitive.ObjectID, token string, staleAfter time.Duration) (*models.Cart, error)
	// Unclaim drops the hold on a claimed cart and leaves the contents alone.
	Unclaim(ctx context.Context, cart *models.Cart) error
	// Clear empties a claimed cart, resets its coupon and drops the hold. It
	// returns models.ErrConflict when the hold was taken over.
	Clear(ctx context.Context, cart *models.Cart) error
	// Restore puts items and coupon back into an empty cart.
	Restore(ctx context.Context, cart *models.Cart) error
}

type Catalog interface {
	GetProduct(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
}

type AddressBook interface {
	// GetAddress returns models.ErrNotFound unless the address belongs to userID.
	GetAddress(ctx context.Context, id, userID primitive.ObjectID) (*models.Address, error)
}

type ShipmentMethods interface {
	GetShipmentMethod(ctx context.Context, id primitive.ObjectID) (*models.ShipmentMethod, error)
}

type Customers interface {
	GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

type Orders interface {
	Create(ctx context.Context, order *models.Order) error
	Get(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	// SetStatus moves the order to next only if its current status is one of
	// from, and returns the updated order. It returns models.ErrConflict when
	// the status did not match.
	SetStatus(ctx context.Context, id primitive.ObjectID, from []models.OrderStatus, next models.OrderStatus) (*models.Order, error)
}

type Transactions interface {
	// Create returns models.ErrDuplicate when the reference is taken.
	Create(ctx context.Context, tx *models.Transaction) error
	Get(ctx context.Context, id primitive.ObjectID) (*models.Transaction, error)
	// SetStatus is a compare-and-set on status. It returns models.ErrConflict
	// when the transaction was not in from, and models.ErrDuplicate when a
	// second completed transaction for the same order would be created.
	SetStatus(ctx context.Context, id primitive.ObjectID, from, next models.TransactionStatus) (*models.Transaction, error)
	CompletedTotal(ctx context.Context, orderID primitive.ObjectID) (models.Money, error)
}

// StockLedger reserves stock all-or-nothing and releases it.
type StockLedger interface {
	ReserveAll(ctx context.Context, lines []ledger.Line) error
	ReleaseAll(ctx context.Context, lines []ledger.Line) error
}

type GatewaySelector interface {
	Select(provider string) (payment.Gateway, error)
}

// Notifier receives best-effort pipeline events. Errors are logged, never
// propagated.
type Notifier interface {
	OrderPlaced(ctx context.Context, user *models.User, order *models.Order) error
	PaymentFailed(ctx context.Context, user *models.User, order *models.Order) error
}
