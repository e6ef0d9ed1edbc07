// Package checkout turns a cart into an order, takes payment for it and
// cancels it, keeping stock, orders and transactions consistent.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"go-storefront/ledger"
	"go-storefront/models"
)

const (
	DefaultCurrency       = "NGN"
	DefaultLockTTL        = 2 * time.Minute
	DefaultPaymentTimeout = 15 * time.Second
	notifyTimeout         = 30 * time.Second
)

// Observer is told the outcome of every pipeline operation.
type Observer interface {
	Observe(operation string, err error)
}

// Deps are the collaborators an Orchestrator is built from.
type Deps struct {
	Carts        Carts
	Catalog      Catalog
	Addresses    AddressBook
	Shipments    ShipmentMethods
	Customers    Customers
	Orders       Orders
	Transactions Transactions
	Ledger       StockLedger
	Gateways     GatewaySelector
	Notifier     Notifier
}

type Orchestrator struct {
	Deps

	observer       Observer
	logger         *log.Logger
	currency       string
	lockTTL        time.Duration
	paymentTimeout time.Duration
	now            func() time.Time

	pending sync.WaitGroup
}

type Option func(*Orchestrator)

func WithLogger(logger *log.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

func WithObserver(observer Observer) Option {
	return func(o *Orchestrator) { o.observer = observer }
}

func WithCurrency(currency string) Option {
	return func(o *Orchestrator) {
		if currency != "" {
			o.currency = currency
		}
	}
}

// WithLockTTL sets how long a cart claim is honoured before another checkout
// may take it over.
func WithLockTTL(ttl time.Duration) Option {
	return func(o *Orchestrator) {
		if ttl > 0 {
			o.lockTTL = ttl
		}
	}
}

// WithPaymentTimeout bounds every provider call.
func WithPaymentTimeout(timeout time.Duration) Option {
	return func(o *Orchestrator) {
		if timeout > 0 {
			o.paymentTimeout = timeout
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func New(deps Deps, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		Deps:           deps,
		logger:         log.New(os.Stderr, "checkout: ", log.LstdFlags),
		currency:       DefaultCurrency,
		lockTTL:        DefaultLockTTL,
		paymentTimeout: DefaultPaymentTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Wait blocks until queued notifications have been sent.
func (o *Orchestrator) Wait() {
	o.pending.Wait()
}

// Checkout promotes the user's cart into a pending order.
//
// Preconditions are checked in order and the first failure is returned: a
// non-empty cart, an address owned by the user, a known shipment method and
// enough stock for every line. A failed checkout leaves the cart contents and
// stock as they were.
func (o *Orchestrator) Checkout(ctx context.Context, userID, addressID, shipmentMethodID primitive.ObjectID) (order *models.Order, err error) {
	defer func() { o.observe("checkout", err) }()

	token := uuid.NewString()
	cart, err := o.Carts.Claim(ctx, userID, token, o.lockTTL)
	if errors.Is(err, models.ErrNotFound) {
		return nil, ErrEmptyCart
	}
	if err != nil {
		return nil, fmt.Errorf("claim cart: %w", err)
	}

	cleared := false
	defer func() {
		if cleared {
			return
		}
		if uerr := o.Carts.Unclaim(context.WithoutCancel(ctx), cart); uerr != nil {
			o.logger.Printf("cart=%s unclaim failed: %v", cart.ID.Hex(), uerr)
		}
	}()

	if cart.IsEmpty() {
		return nil, ErrEmptyCart
	}

	if _, err := o.Addresses.GetAddress(ctx, addressID, userID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrInvalidAddress
		}
		return nil, fmt.Errorf("load address: %w", err)
	}

	method, err := o.Shipments.GetShipmentMethod(ctx, shipmentMethodID)
	if errors.Is(err, models.ErrNotFound) || (err == nil && !method.Active) {
		return nil, ErrInvalidShipment
	}
	if err != nil {
		return nil, fmt.Errorf("load shipment method: %w", err)
	}

	items, lines, err := o.snapshot(ctx, cart)
	if err != nil {
		return nil, err
	}

	if err := o.Ledger.ReserveAll(ctx, lines); err != nil {
		var shortage *ledger.ShortageError
		if errors.As(err, &shortage) && !errors.Is(err, ledger.ErrCompensationFailed) {
			return nil, insufficientStock(shortage.ProductID.Hex(), err)
		}
		o.logger.Printf("cart=%s reservation failed: %v", cart.ID.Hex(), err)
		return nil, fmt.Errorf("reserve stock: %w", err)
	}

	now := o.now().UTC()
	order = &models.Order{
		ID:               primitive.NewObjectID(),
		UserID:           userID,
		AddressID:        addressID,
		ShipmentMethodID: shipmentMethodID,
		Items:            items,
		TotalAmount:      models.ComputeTotal(items),
		Currency:         o.currency,
		Status:           models.OrderPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := o.Carts.Clear(ctx, cart); err != nil {
		o.releaseStock(ctx, "cart "+cart.ID.Hex(), lines)
		if errors.Is(err, models.ErrConflict) {
			return nil, ErrEmptyCart
		}
		return nil, fmt.Errorf("clear cart: %w", err)
	}
	cleared = true

	if err := o.Orders.Create(ctx, order); err != nil {
		if rerr := o.Carts.Restore(context.WithoutCancel(ctx), cart); rerr != nil {
			o.logger.Printf("cart=%s restore after failed order failed: %v", cart.ID.Hex(), rerr)
		}
		o.releaseStock(ctx, "cart "+cart.ID.Hex(), lines)
		return nil, fmt.Errorf("create order: %w", err)
	}

	o.logger.Printf("order=%s user=%s placed total=%s %s", order.ID.Hex(), userID.Hex(), order.TotalAmount, order.Currency)
	o.notify(ctx, "order placed", userID, order, o.orderPlaced)
	return order, nil
}

// snapshot prices every cart line at the product's current effective price.
func (o *Orchestrator) snapshot(ctx context.Context, cart *models.Cart) ([]models.OrderItem, []ledger.Line, error) {
	items := make([]models.OrderItem, 0, len(cart.Items))
	lines := make([]ledger.Line, 0, len(cart.Items))
	for _, item := range cart.Items {
		product, err := o.Catalog.GetProduct(ctx, item.ProductID)
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil, insufficientStock(item.ProductID.Hex(), err)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("load product %s: %w", item.ProductID.Hex(), err)
		}
		items = append(items, models.OrderItem{
			ProductID: product.ID,
			Name:      product.Name,
			Quantity:  item.Quantity,
			UnitPrice: product.EffectivePrice(),
			Discount:  product.Discount,
		})
		lines = append(lines, ledger.Line{ProductID: product.ID, Quantity: item.Quantity})
	}
	return items, lines, nil
}

func orderLines(order *models.Order) []ledger.Line {
	lines := make([]ledger.Line, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, ledger.Line{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines
}

func (o *Orchestrator) releaseStock(ctx context.Context, owner string, lines []ledger.Line) {
	if err := o.Ledger.ReleaseAll(context.WithoutCancel(ctx), lines); err != nil {
		o.logger.Printf("%s: stock release failed: %v", owner, err)
	}
}

func (o *Orchestrator) orderPlaced(ctx context.Context, user *models.User, order *models.Order) error {
	return o.Notifier.OrderPlaced(ctx, user, order)
}

func (o *Orchestrator) paymentFailed(ctx context.Context, user *models.User, order *models.Order) error {
	return o.Notifier.PaymentFailed(ctx, user, order)
}

// notify sends an event in the background. Failures are logged only.
func (o *Orchestrator) notify(ctx context.Context, event string, userID primitive.ObjectID, order *models.Order,
	send func(context.Context, *models.User, *models.Order) error) {
	if o.Notifier == nil {
		return
	}

	o.pending.Add(1)
	go func() {
		defer o.pending.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()

		user, err := o.Customers.GetUser(ctx, userID)
		if err != nil {
			o.logger.Printf("order=%s %s notification skipped: load user: %v", order.ID.Hex(), event, err)
			return
		}
		if err := send(ctx, user, order); err != nil {
			o.logger.Printf("order=%s %s notification failed: %v", order.ID.Hex(), event, err)
		}
	}()
}

func (o *Orchestrator) observe(operation string, err error) {
	if o.observer != nil {
		o.observer.Observe(operation, err)
	}
}
