package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"go-storefront/checkout"
	"go-storefront/config"
	"go-storefront/controllers"
	"go-storefront/events"
	"go-storefront/ledger"
	"go-storefront/metrics"
	"go-storefront/middleware"
	"go-storefront/payment"
	"go-storefront/routes"
	"go-storefront/store"
	"go-storefront/utils"
)

// cartStore is what both checkout and the cart endpoints need from carts.
type cartStore interface {
	checkout.Carts
	controllers.CartRepository
}

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}
	utils.JwtKey = []byte(cfg.JWTSecret)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to MongoDB
	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	client, err := store.Connect(connectCtx, cfg.MongoURI)
	cancel()
	if err != nil {
		logger.Fatal(err)
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			logger.Printf("mongo disconnect: %v", err)
		}
	}()

	db := client.Database(cfg.MongoDB)
	if err := store.EnsureIndexes(ctx, db); err != nil {
		logger.Fatal(err)
	}
	stores := store.New(db)

	var carts cartStore = stores.Carts
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Printf("redis unavailable, cart cache disabled: %v", err)
		} else {
			carts = store.NewCachedCarts(stores.Carts, store.NewRedisCartCache(rdb, cfg.CartCacheTTL), logger)
		}
	}

	mailer, err := utils.NewMailer(cfg.EmailProvider, cfg.PostmarkToken, cfg.SendgridAPIKey, cfg.EmailSender, logger)
	if err != nil {
		logger.Fatal(err)
	}
	emailService := utils.NewEmailService(mailer, cfg.EmailVerifyURL)

	notifier := events.Fanout{emailService}
	if cfg.AMQPURL != "" {
		conn, err := amqp.Dial(cfg.AMQPURL)
		if err != nil {
			logger.Fatalf("failed to connect to RabbitMQ: %v", err)
		}
		defer conn.Close()
		publisher, err := events.NewPublisher(conn)
		if err != nil {
			logger.Fatal(err)
		}
		defer publisher.Close()
		notifier = append(notifier, publisher)
	}

	gateways, err := payment.NewSelector(cfg.Payments, &http.Client{Timeout: cfg.PaymentTimeout})
	if err != nil {
		logger.Fatalf("payment providers: %v", err)
	}

	stock := ledger.New(stores.Products, logger)
	m := metrics.New()

	orchestrator := checkout.New(checkout.Deps{
		Carts:        carts,
		Catalog:      stores.Products,
		Addresses:    stores.Addresses,
		Shipments:    stores.ShipmentMethods,
		Customers:    stores.Users,
		Orders:       stores.Orders,
		Transactions: stores.Transactions,
		Ledger:       stock,
		Gateways:     gateways,
		Notifier:     notifier,
	},
		checkout.WithLogger(logger),
		checkout.WithObserver(m),
		checkout.WithCurrency(cfg.Currency),
		checkout.WithLockTTL(cfg.CheckoutLockTTL),
		checkout.WithPaymentTimeout(cfg.PaymentTimeout),
	)

	router := mux.NewRouter()
	router.Use(m.Instrument)
	routes.RegisterRoutes(router, routes.Controllers{
		Users:     controllers.NewUserController(stores.Users, emailService),
		Products:  controllers.NewProductController(stores.Products, stock),
		Carts:     controllers.NewCartController(carts, stores.Products),
		Addresses: controllers.NewAddressController(stores.Addresses),
		Shipments: controllers.NewShipmentController(stores.ShipmentMethods),
		Checkout:  controllers.NewCheckoutController(orchestrator),
		Payments:  controllers.NewPaymentController(orchestrator, stores.Orders, stores.Transactions),
		Orders:    controllers.NewOrderController(stores.Orders, stores.Transactions, orchestrator),
	}, m.Handler())

	handler := middleware.CorrelationID(
		middleware.AccessLog(logger)(
			middleware.Recover(logger)(router),
		),
	)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.RequestTimeout,
		WriteTimeout:      cfg.RequestTimeout + 45*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Printf("Server is running on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("shutdown: %v", err)
	}
	orchestrator.Wait()
}
