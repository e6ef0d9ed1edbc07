package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"go-storefront/middleware"
	"go-storefront/models"
	"go-storefront/utils"
)

type pipelineFake struct {
	order *models.Order
	tx    *models.Transaction
	err   error

	calls []string
}

func (p *pipelineFake) result(call string) (*models.Order, error) {
	p.calls = append(p.calls, call)
	if p.err != nil {
		return nil, p.err
	}
	return p.order, nil
}

func (p *pipelineFake) Checkout(_ context.Context, _, _, _ primitive.ObjectID) (*models.Order, error) {
	return p.result("checkout")
}

func (p *pipelineFake) InitiatePayment(_ context.Context, _ primitive.ObjectID, provider, _ string) (*models.Transaction, error) {
	p.calls = append(p.calls, "initiate:"+provider)
	if p.err != nil {
		return nil, p.err
	}
	return p.tx, nil
}

func (p *pipelineFake) Reconcile(_ context.Context, _ primitive.ObjectID, status models.TransactionStatus) (*models.Order, error) {
	return p.result("reconcile:" + string(status))
}

func (p *pipelineFake) Verify(_ context.Context, _ primitive.ObjectID) (*models.Order, error) {
	return p.result("verify")
}

func (p *pipelineFake) Refund(_ context.Context, _ primitive.ObjectID) (*models.Order, error) {
	return p.result("refund")
}

func (p *pipelineFake) Cancel(_ context.Context, _ primitive.ObjectID) (*models.Order, error) {
	return p.result("cancel")
}

func (p *pipelineFake) AdvanceStatus(_ context.Context, _ primitive.ObjectID, next models.OrderStatus) (*models.Order, error) {
	return p.result("advance:" + string(next))
}

type ordersFake struct {
	orders map[primitive.ObjectID]*models.Order
}

func (o *ordersFake) Get(_ context.Context, id primitive.ObjectID) (*models.Order, error) {
	if order, ok := o.orders[id]; ok {
		return order, nil
	}
	return nil, models.ErrNotFound
}

func (o *ordersFake) ListByUser(_ context.Context, userID primitive.ObjectID) ([]models.Order, error) {
	var out []models.Order
	for _, order := range o.orders {
		if order.UserID == userID {
			out = append(out, *order)
		}
	}
	return out, nil
}

type transactionsFake struct {
	txs map[primitive.ObjectID]*models.Transaction
}

func (t *transactionsFake) Get(_ context.Context, id primitive.ObjectID) (*models.Transaction, error) {
	if tx, ok := t.txs[id]; ok {
		return tx, nil
	}
	return nil, models.ErrNotFound
}

func (t *transactionsFake) GetByReference(_ context.Context, reference string) (*models.Transaction, error) {
	for _, tx := range t.txs {
		if tx.Reference == reference {
			return tx, nil
		}
	}
	return nil, models.ErrNotFound
}

func (t *transactionsFake) ListByOrder(_ context.Context, orderID primitive.ObjectID) ([]models.Transaction, error) {
	var out []models.Transaction
	for _, tx := range t.txs {
		if tx.OrderID == orderID {
			out = append(out, *tx)
		}
	}
	return out, nil
}

type usersFake struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newUsersFake() *usersFake {
	return &usersFake{users: map[string]*models.User{}}
}

func (u *usersFake) Create(_ context.Context, user *models.User) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.users[user.Email]; ok {
		return models.ErrDuplicate
	}
	copied := *user
	u.users[user.Email] = &copied
	return nil
}

func (u *usersFake) GetUser(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, user := range u.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, models.ErrNotFound
}

func (u *usersFake) GetByEmail(_ context.Context, email string) (*models.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if user, ok := u.users[email]; ok {
		return user, nil
	}
	return nil, models.ErrNotFound
}

func (u *usersFake) MarkVerified(_ context.Context, token string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, user := range u.users {
		if user.VerificationToken == token && !user.IsVerified {
			user.IsVerified = true
			user.VerificationToken = ""
			return nil
		}
	}
	return models.ErrNotFound
}

type verificationFake struct {
	tokens map[string]string
}

func (v *verificationFake) SendVerificationEmail(_ context.Context, toEmail, token string) error {
	v.tokens[toEmail] = token
	return nil
}

type cartsFake struct {
	cart   *models.Cart
	err    error
	writes int
}

func (c *cartsFake) Get(_ context.Context, _ primitive.ObjectID) (*models.Cart, error) {
	if c.cart == nil {
		return nil, models.ErrNotFound
	}
	return c.cart, nil
}

func (c *cartsFake) write(userID primitive.ObjectID, apply func(*models.Cart)) (*models.Cart, error) {
	if c.err != nil {
		return nil, c.err
	}
	if c.cart == nil {
		c.cart = &models.Cart{ID: primitive.NewObjectID(), UserID: userID}
	}
	c.writes++
	apply(c.cart)
	return c.cart, nil
}

func (c *cartsFake) AddItem(_ context.Context, userID primitive.ObjectID, item models.CartItem) (*models.Cart, error) {
	return c.write(userID, func(cart *models.Cart) { cart.Items = append(cart.Items, item) })
}

func (c *cartsFake) SetQuantity(_ context.Context, userID, productID primitive.ObjectID, quantity int) (*models.Cart, error) {
	return c.write(userID, func(cart *models.Cart) {
		for i := range cart.Items {
			if cart.Items[i].ProductID == productID {
				cart.Items[i].Quantity = quantity
			}
		}
	})
}

func (c *cartsFake) RemoveItem(_ context.Context, userID, productID primitive.ObjectID) (*models.Cart, error) {
	return c.write(userID, func(cart *models.Cart) {
		kept := cart.Items[:0]
		for _, item := range cart.Items {
			if item.ProductID != productID {
				kept = append(kept, item)
			}
		}
		cart.Items = kept
	})
}

func (c *cartsFake) ApplyCoupon(_ context.Context, userID primitive.ObjectID, code string) (*models.Cart, error) {
	return c.write(userID, func(cart *models.Cart) { cart.Coupon = &code })
}

type catalogFake struct {
	products map[primitive.ObjectID]*models.Product
	released map[primitive.ObjectID]int
}

func newCatalogFake(products ...*models.Product) *catalogFake {
	c := &catalogFake{products: map[primitive.ObjectID]*models.Product{}, released: map[primitive.ObjectID]int{}}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

func (c *catalogFake) Create(_ context.Context, p *models.Product) error {
	p.ID = primitive.NewObjectID()
	c.products[p.ID] = p
	return nil
}

func (c *catalogFake) GetProduct(_ context.Context, id primitive.ObjectID) (*models.Product, error) {
	if p, ok := c.products[id]; ok {
		return p, nil
	}
	return nil, models.ErrNotFound
}

func (c *catalogFake) List(_ context.Context, category string) ([]models.Product, error) {
	var out []models.Product
	for _, p := range c.products {
		if category == "" || p.Category == category {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (c *catalogFake) Update(_ context.Context, p *models.Product) (*models.Product, error) {
	existing, ok := c.products[p.ID]
	if !ok {
		return nil, models.ErrNotFound
	}
	updated := *p
	updated.Stock = existing.Stock
	c.products[p.ID] = &updated
	return &updated, nil
}

func (c *catalogFake) Delete(_ context.Context, id primitive.ObjectID) error {
	if _, ok := c.products[id]; !ok {
		return models.ErrNotFound
	}
	delete(c.products, id)
	return nil
}

func (c *catalogFake) Release(_ context.Context, id primitive.ObjectID, qty int) error {
	p, ok := c.products[id]
	if !ok {
		return models.ErrNotFound
	}
	p.Stock += qty
	c.released[id] += qty
	return nil
}

// serve routes a single handler through mux so path variables resolve, with
// the caller authenticated as userID.
func serve(handler http.HandlerFunc, pattern, method, target, body string, userID primitive.ObjectID, role string) *httptest.ResponseRecorder {
	router := mux.NewRouter()
	router.HandleFunc(pattern, handler).Methods(method)

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if !userID.IsZero() {
		req = req.WithContext(middleware.WithClaims(req.Context(), &utils.Claims{UserID: userID.Hex(), Role: role}))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

type addressesFake struct {
	created []models.Address
}

func (a *addressesFake) Create(_ context.Context, address *models.Address) error {
	address.ID = primitive.NewObjectID()
	a.created = append(a.created, *address)
	return nil
}

func (a *addressesFake) ListByUser(_ context.Context, userID primitive.ObjectID) ([]models.Address, error) {
	var out []models.Address
	for _, address := range a.created {
		if address.UserID == userID {
			out = append(out, address)
		}
	}
	return out, nil
}

func (a *addressesFake) Delete(_ context.Context, id, userID primitive.ObjectID) error {
	for i, address := range a.created {
		if address.ID == id && address.UserID == userID {
			a.created = append(a.created[:i], a.created[i+1:]...)
			return nil
		}
	}
	return models.ErrNotFound
}

type shipmentsFake struct {
	methods []models.ShipmentMethod
}

func (s *shipmentsFake) Create(_ context.Context, m *models.ShipmentMethod) error {
	m.ID = primitive.NewObjectID()
	s.methods = append(s.methods, *m)
	return nil
}

func (s *shipmentsFake) ListActive(_ context.Context) ([]models.ShipmentMethod, error) {
	var out []models.ShipmentMethod
	for _, m := range s.methods {
		if m.Active {
			out = append(out, m)
		}
	}
	return out, nil
}
