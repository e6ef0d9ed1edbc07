package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"go-storefront/controllers"
	"go-storefront/middleware"
)

type Controllers struct {
	Users     *controllers.UserController
	Products  *controllers.ProductController
	Carts     *controllers.CartController
	Addresses *controllers.AddressController
	Shipments *controllers.ShipmentController
	Checkout  *controllers.CheckoutController
	Payments  *controllers.PaymentController
	Orders    *controllers.OrderController
}

// RegisterRoutes sets up all the routes for the application
func RegisterRoutes(router *mux.Router, c Controllers, metrics http.Handler) {
	// Public routes
	router.HandleFunc("/register", c.Users.Register).Methods("POST")
	router.HandleFunc("/login", c.Users.Login).Methods("POST")
	router.HandleFunc("/verify", c.Users.VerifyEmail).Methods("GET")
	router.HandleFunc("/products", c.Products.GetProducts).Methods("GET")
	router.HandleFunc("/products/{id}", c.Products.GetProductByID).Methods("GET")
	router.HandleFunc("/shipment-methods", c.Shipments.GetShipmentMethods).Methods("GET")
	router.Handle("/metrics", metrics).Methods("GET")

	// Admin routes
	admin := router.NewRoute().Subrouter()
	admin.Use(middleware.AuthMiddleware)
	admin.Use(middleware.AdminMiddleware)
	admin.HandleFunc("/products", c.Products.CreateProduct).Methods("POST")
	admin.HandleFunc("/products/{id}", c.Products.UpdateProduct).Methods("PUT")
	admin.HandleFunc("/products/{id}", c.Products.DeleteProduct).Methods("DELETE")
	admin.HandleFunc("/products/{id}/restock", c.Products.Restock).Methods("POST")
	admin.HandleFunc("/shipment-methods", c.Shipments.CreateShipmentMethod).Methods("POST")
	admin.HandleFunc("/payment/reconcile", c.Payments.Reconcile).Methods("POST")
	admin.HandleFunc("/payment/{id}/refund", c.Payments.Refund).Methods("POST")
	admin.HandleFunc("/order/{id}/status", c.Orders.UpdateOrderStatus).Methods("PUT")

	// Protected routes
	protected := router.NewRoute().Subrouter()
	protected.Use(middleware.AuthMiddleware)
	protected.HandleFunc("/profile", c.Users.GetProfile).Methods("GET")

	// Cart routes
	protected.HandleFunc("/cart", c.Carts.GetCart).Methods("GET")
	protected.HandleFunc("/cart", c.Carts.AddToCart).Methods("POST")
	protected.HandleFunc("/cart/coupon", c.Carts.ApplyCoupon).Methods("POST")
	protected.HandleFunc("/cart/{product_id}", c.Carts.UpdateQuantity).Methods("PUT")
	protected.HandleFunc("/cart/{product_id}", c.Carts.RemoveFromCart).Methods("DELETE")

	// Address book
	protected.HandleFunc("/addresses", c.Addresses.GetAddresses).Methods("GET")
	protected.HandleFunc("/addresses", c.Addresses.CreateAddress).Methods("POST")
	protected.HandleFunc("/addresses/{id}", c.Addresses.DeleteAddress).Methods("DELETE")

	// Checkout and payment
	protected.HandleFunc("/checkout", c.Checkout.Checkout).Methods("POST")
	protected.HandleFunc("/payment", c.Payments.InitiatePayment).Methods("POST")
	protected.HandleFunc("/payment/{id}/verify", c.Payments.VerifyPayment).Methods("GET")

	// Order routes
	protected.HandleFunc("/orders", c.Orders.GetOrders).Methods("GET")
	protected.HandleFunc("/order/{id}", c.Orders.GetOrder).Methods("GET")
	protected.HandleFunc("/order/{id}/transactions", c.Orders.GetOrderTransactions).Methods("GET")
	protected.HandleFunc("/order/{id}/cancel", c.Orders.CancelOrder).Methods("POST")
}
