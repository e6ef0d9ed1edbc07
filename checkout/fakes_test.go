package checkout

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"go-storefront/ledger"
	"go-storefront/models"
	"go-storefront/payment"
)

// catalogFake is both the product catalog and the ledger's stock store.
type catalogFake struct {
	mu       sync.Mutex
	products map[primitive.ObjectID]models.Product
}

func (f *catalogFake) GetProduct(_ context.Context, id primitive.ObjectID) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &p, nil
}

func (f *catalogFake) Decrement(_ context.Context, id primitive.ObjectID, qty int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return ledger.ErrProductNotFound
	}
	if p.Stock < qty {
		return ledger.ErrInsufficientStock
	}
	p.Stock -= qty
	f.products[id] = p
	return nil
}

func (f *catalogFake) Increment(_ context.Context, id primitive.ObjectID, qty int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return ledger.ErrProductNotFound
	}
	p.Stock += qty
	f.products[id] = p
	return nil
}

func (f *catalogFake) stock(id primitive.ObjectID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.products[id].Stock
}

func (f *catalogFake) setPrice(id primitive.ObjectID, price string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.products[id]
	p.Price = models.MustMoney(price)
	f.products[id] = p
}

type cartsFake struct {
	mu    sync.Mutex
	carts map[primitive.ObjectID]*models.Cart
}

func cloneCart(c *models.Cart) *models.Cart {
	out := *c
	out.Items = append([]models.CartItem(nil), c.Items...)
	return &out
}

func (f *cartsFake) Claim(_ context.Context, userID primitive.ObjectID, token string, staleAfter time.Duration) (*models.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.carts[userID]
	if !ok || c.IsEmpty() {
		return nil, models.ErrNotFound
	}
	if c.CheckedOut && c.CheckoutStartedAt != nil && time.Since(*c.CheckoutStartedAt) < staleAfter {
		return nil, models.ErrNotFound
	}
	now := time.Now()
	c.CheckedOut = true
	c.CheckoutToken = token
	c.CheckoutStartedAt = &now
	return cloneCart(c), nil
}

func (f *cartsFake) find(cartID primitive.ObjectID) *models.Cart {
	for _, c := range f.carts {
		if c.ID == cartID {
			return c
		}
	}
	return nil
}

func (f *cartsFake) Unclaim(_ context.Context, cart *models.Cart) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.find(cart.ID)
	if c == nil || c.CheckoutToken != cart.CheckoutToken {
		return models.ErrConflict
	}
	c.CheckedOut, c.CheckoutToken, c.CheckoutStartedAt = false, "", nil
	return nil
}

func (f *cartsFake) Clear(_ context.Context, cart *models.Cart) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.find(cart.ID)
	if c == nil || c.CheckoutToken != cart.CheckoutToken {
		return models.ErrConflict
	}
	c.Items, c.Coupon = nil, nil
	c.CheckedOut, c.CheckoutToken, c.CheckoutStartedAt = false, "", nil
	return nil
}

func (f *cartsFake) Restore(_ context.Context, cart *models.Cart) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.find(cart.ID)
	if c == nil {
		return models.ErrNotFound
	}
	if len(c.Items) == 0 {
		c.Items = append([]models.CartItem(nil), cart.Items...)
		c.Coupon = cart.Coupon
	}
	return nil
}

func (f *cartsFake) get(userID primitive.ObjectID) *models.Cart {
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneCart(f.carts[userID])
}

type addressesFake map[primitive.ObjectID]models.Address

func (f addressesFake) GetAddress(_ context.Context, id, userID primitive.ObjectID) (*models.Address, error) {
	a, ok := f[id]
	if !ok || a.UserID != userID {
		return nil, models.ErrNotFound
	}
	return &a, nil
}

type shipmentsFake map[primitive.ObjectID]models.ShipmentMethod

func (f shipmentsFake) GetShipmentMethod(_ context.Context, id primitive.ObjectID) (*models.ShipmentMethod, error) {
	m, ok := f[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &m, nil
}

type customersFake map[primitive.ObjectID]models.User

func (f customersFake) GetUser(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	u, ok := f[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &u, nil
}

type ordersFake struct {
	mu        sync.Mutex
	orders    map[primitive.ObjectID]models.Order
	createErr error

	// setStatusErr fails the next SetStatus call.
	setStatusErr error
	// beforeSetStatus runs once inside the next SetStatus, before the compare.
	beforeSetStatus func(*models.Order)
}

func cloneOrder(o models.Order) *models.Order {
	o.Items = append([]models.OrderItem(nil), o.Items...)
	return &o
}

func (f *ordersFake) Create(_ context.Context, order *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.orders[order.ID] = *cloneOrder(*order)
	return nil
}

func (f *ordersFake) Get(_ context.Context, id primitive.ObjectID) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (f *ordersFake) SetStatus(_ context.Context, id primitive.ObjectID, from []models.OrderStatus, next models.OrderStatus) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.setStatusErr; err != nil {
		f.setStatusErr = nil
		return nil, err
	}
	o, ok := f.orders[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if hook := f.beforeSetStatus; hook != nil {
		f.beforeSetStatus = nil
		hook(&o)
		f.orders[id] = o
	}
	for _, s := range from {
		if o.Status == s {
			o.Status = next
			o.UpdatedAt = time.Now()
			f.orders[id] = o
			return cloneOrder(o), nil
		}
	}
	return nil, models.ErrConflict
}

func (f *ordersFake) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

func (f *ordersFake) forceStatus(id primitive.ObjectID, status models.OrderStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o := f.orders[id]
	o.Status = status
	f.orders[id] = o
}

type transactionsFake struct {
	mu  sync.Mutex
	txs map[primitive.ObjectID]models.Transaction
}

func (f *transactionsFake) Create(_ context.Context, tx *models.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.txs {
		if existing.Reference == tx.Reference {
			return models.ErrDuplicate
		}
	}
	f.txs[tx.ID] = *tx
	return nil
}

func (f *transactionsFake) Get(_ context.Context, id primitive.ObjectID) (*models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx, ok := f.txs[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &tx, nil
}

func (f *transactionsFake) SetStatus(_ context.Context, id primitive.ObjectID, from, next models.TransactionStatus) (*models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx, ok := f.txs[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if tx.Status != from {
		return nil, models.ErrConflict
	}
	if next == models.TransactionCompleted {
		for _, other := range f.txs {
			if other.OrderID == tx.OrderID && other.Status == models.TransactionCompleted {
				return nil, models.ErrDuplicate
			}
		}
	}
	tx.Status = next
	f.txs[id] = tx
	return &tx, nil
}

func (f *transactionsFake) CompletedTotal(_ context.Context, orderID primitive.ObjectID) (models.Money, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var total models.Money
	for _, tx := range f.txs {
		if tx.OrderID == orderID && tx.Status == models.TransactionCompleted {
			total = total.Add(tx.Amount)
		}
	}
	return total, nil
}

func (f *transactionsFake) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.txs)
}

type gatewayFake struct {
	provider payment.Provider

	mu           sync.Mutex
	requests     []payment.Request
	initErr      error
	verification *payment.Verification
	verifyErr    error
	refunds      []string
	refundErr    error
}

func (g *gatewayFake) Provider() payment.Provider { return g.provider }

func (g *gatewayFake) InitializePayment(_ context.Context, req payment.Request) (*payment.Initialization, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.initErr != nil {
		return nil, g.initErr
	}
	return &payment.Initialization{
		AuthorizationURL:  "https://pay.example.com/" + req.Reference,
		ProviderReference: "acc_" + req.Reference,
	}, nil
}

func (g *gatewayFake) VerifyPayment(context.Context, string) (*payment.Verification, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.verification, g.verifyErr
}

func (g *gatewayFake) Refund(_ context.Context, reference string, _ models.Money) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.refundErr != nil {
		return g.refundErr
	}
	g.refunds = append(g.refunds, reference)
	return nil
}

func (g *gatewayFake) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

type selectorFake map[string]payment.Gateway

func (s selectorFake) Select(id string) (payment.Gateway, error) {
	gw, ok := s[strings.ToLower(id)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", payment.ErrUnsupportedProvider, id)
	}
	return gw, nil
}

type notifierFake struct {
	mu     sync.Mutex
	placed []primitive.ObjectID
	failed []primitive.ObjectID
}

func (n *notifierFake) OrderPlaced(_ context.Context, _ *models.User, order *models.Order) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.placed = append(n.placed, order.ID)
	return nil
}

func (n *notifierFake) PaymentFailed(_ context.Context, _ *models.User, order *models.Order) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, order.ID)
	return nil
}

type observerFake struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (o *observerFake) Observe(operation string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.outcomes == nil {
		o.outcomes = map[string]int{}
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	o.outcomes[operation+"/"+outcome]++
}

type harness struct {
	catalog      *catalogFake
	carts        *cartsFake
	orders       *ordersFake
	transactions *transactionsFake
	paystack     *gatewayFake
	notifier     *notifierFake
	observer     *observerFake
	orch         *Orchestrator

	userID     primitive.ObjectID
	addressID  primitive.ObjectID
	shipmentID primitive.ObjectID
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()

	h := &harness{
		catalog:      &catalogFake{products: map[primitive.ObjectID]models.Product{}},
		carts:        &cartsFake{carts: map[primitive.ObjectID]*models.Cart{}},
		orders:       &ordersFake{orders: map[primitive.ObjectID]models.Order{}},
		transactions: &transactionsFake{txs: map[primitive.ObjectID]models.Transaction{}},
		paystack:     &gatewayFake{provider: payment.Paystack},
		notifier:     &notifierFake{},
		observer:     &observerFake{},
		userID:       primitive.NewObjectID(),
		addressID:    primitive.NewObjectID(),
		shipmentID:   primitive.NewObjectID(),
	}

	logger := log.New(io.Discard, "", 0)
	deps := Deps{
		Carts:   h.carts,
		Catalog: h.catalog,
		Addresses: addressesFake{
			h.addressID: {ID: h.addressID, UserID: h.userID, Street: "1 Marina", City: "Lagos", Country: "NG"},
		},
		Shipments: shipmentsFake{
			h.shipmentID: {ID: h.shipmentID, Name: "Standard", Carrier: "GIG", EstimatedDays: 3, Active: true},
		},
		Customers: customersFake{
			h.userID: {ID: h.userID, Name: "Ada", Email: "ada@example.com", Role: "user"},
		},
		Orders:       h.orders,
		Transactions: h.transactions,
		Ledger:       ledger.New(h.catalog, logger, ledger.WithRetry(3, time.Millisecond)),
		Gateways:     selectorFake{"paystack": h.paystack},
		Notifier:     h.notifier,
	}
	opts = append([]Option{WithLogger(logger), WithObserver(h.observer)}, opts...)
	h.orch = New(deps, opts...)
	t.Cleanup(h.orch.Wait)
	return h
}

func (h *harness) addProduct(name, price string, discount float64, stock int) primitive.ObjectID {
	id := primitive.NewObjectID()
	h.catalog.mu.Lock()
	defer h.catalog.mu.Unlock()
	h.catalog.products[id] = models.Product{
		ID:       id,
		Name:     name,
		Price:    models.MustMoney(price),
		Discount: discount,
		Stock:    stock,
	}
	return id
}

func (h *harness) fillCart(items ...models.CartItem) {
	h.carts.mu.Lock()
	defer h.carts.mu.Unlock()
	h.carts.carts[h.userID] = &models.Cart{ID: primitive.NewObjectID(), UserID: h.userID, Items: items}
}

// placeOrder checks out one unit of a fresh 100.00 product and returns the order.
func (h *harness) placeOrder(t *testing.T) *models.Order {
	t.Helper()
	id := h.addProduct("Widget", "100.00", 0, 10)
	h.fillCart(models.CartItem{ProductID: id, Quantity: 1})
	order, err := h.orch.Checkout(context.Background(), h.userID, h.addressID, h.shipmentID)
	require.NoError(t, err)
	return order
}
