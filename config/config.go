package config

import (
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"go-storefront/payment"
)

type Config struct {
	Port           string
	RequestTimeout time.Duration

	MongoURI string
	MongoDB  string

	JWTSecret string

	// Cart cache. An empty RedisAddr disables it.
	RedisAddr     string
	RedisPassword string
	CartCacheTTL  time.Duration

	// Order events. An empty AMQPURL disables publishing.
	AMQPURL string

	EmailProvider  string
	PostmarkToken  string
	SendgridAPIKey string
	EmailSender    string
	EmailVerifyURL string

	Payments       payment.Settings
	PaymentTimeout time.Duration

	Currency        string
	CheckoutLockTTL time.Duration
}

// Load reads an optional .env file and then the environment.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: .env not loaded: %v", err)
	}

	return Config{
		Port:           getenv("PORT", "8080"),
		RequestTimeout: parseDuration(getenv("REQUEST_TIMEOUT", "10s"), 10*time.Second),

		MongoURI: getenv("MONGO_URI", ""),
		MongoDB:  getenv("MONGO_DB", "storefront"),

		JWTSecret: getenv("JWT_SECRET", ""),

		RedisAddr:     getenv("REDIS_ADDR", ""),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		CartCacheTTL:  parseDuration(getenv("CART_CACHE_TTL", "15m"), 15*time.Minute),

		AMQPURL: getenv("AMQP_URL", ""),

		EmailProvider:  strings.ToLower(getenv("EMAIL_PROVIDER", "none")),
		PostmarkToken:  getenv("POSTMARK_API_TOKEN", ""),
		SendgridAPIKey: getenv("SENDGRID_API_KEY", ""),
		EmailSender:    getenv("EMAIL_SENDER", "no-reply@storefront.local"),
		EmailVerifyURL: getenv("EMAIL_VERIFY_URL", "http://localhost:8080/verify"),

		Payments: payment.Settings{
			Enabled: splitCSV(getenv("PAYMENT_PROVIDERS", "paystack,flutterwave")),
			Paystack: payment.ProviderSettings{
				SecretKey: getenv("PAYSTACK_SECRET_KEY", ""),
				BaseURL:   getenv("PAYSTACK_BASE_URL", ""),
			},
			Flutterwave: payment.ProviderSettings{
				SecretKey: getenv("FLUTTERWAVE_SECRET_KEY", ""),
				BaseURL:   getenv("FLUTTERWAVE_BASE_URL", ""),
			},
		},
		PaymentTimeout: parseDuration(getenv("PAYMENT_TIMEOUT", "15s"), 15*time.Second),

		Currency:        strings.ToUpper(getenv("CURRENCY", "NGN")),
		CheckoutLockTTL: parseDuration(getenv("CHECKOUT_LOCK_TTL", "2m"), 2*time.Minute),
	}
}

// Validate reports settings the service cannot start without.
func (c Config) Validate() error {
	var errs []error
	if c.MongoURI == "" {
		errs = append(errs, errors.New("MONGO_URI is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	switch c.EmailProvider {
	case "none":
	case "postmark":
		if c.PostmarkToken == "" {
			errs = append(errs, errors.New("POSTMARK_API_TOKEN is required when EMAIL_PROVIDER=postmark"))
		}
	case "sendgrid":
		if c.SendgridAPIKey == "" {
			errs = append(errs, errors.New("SENDGRID_API_KEY is required when EMAIL_PROVIDER=sendgrid"))
		}
	default:
		errs = append(errs, errors.New("EMAIL_PROVIDER must be postmark, sendgrid or none"))
	}
	return errors.Join(errs...)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseDuration(v string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
