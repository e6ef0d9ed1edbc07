package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "CURRENCY", "PAYMENT_PROVIDERS", "CHECKOUT_LOCK_TTL", "EMAIL_PROVIDER", "CART_CACHE_TTL"} {
		t.Setenv(k, "")
	}

	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "NGN", cfg.Currency)
	assert.Equal(t, 2*time.Minute, cfg.CheckoutLockTTL)
	assert.Equal(t, 15*time.Minute, cfg.CartCacheTTL)
	assert.Equal(t, "none", cfg.EmailProvider)
	assert.Equal(t, []string{"paystack", "flutterwave"}, cfg.Payments.Enabled)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CURRENCY", "usd")
	t.Setenv("PAYMENT_PROVIDERS", " Paystack , ,")
	t.Setenv("PAYSTACK_SECRET_KEY", "sk_test")
	t.Setenv("PAYMENT_TIMEOUT", "3s")
	t.Setenv("CHECKOUT_LOCK_TTL", "not-a-duration")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "USD", cfg.Currency)
	assert.Equal(t, []string{"Paystack"}, cfg.Payments.Enabled)
	assert.Equal(t, "sk_test", cfg.Payments.Paystack.SecretKey)
	assert.Equal(t, 3*time.Second, cfg.PaymentTimeout)
	assert.Equal(t, 2*time.Minute, cfg.CheckoutLockTTL)
}

func TestValidate(t *testing.T) {
	valid := Config{MongoURI: "mongodb://localhost", JWTSecret: "s", EmailProvider: "none"}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid"},
		{name: "missing mongo", mutate: func(c *Config) { c.MongoURI = "" }, wantErr: "MONGO_URI"},
		{name: "missing secret", mutate: func(c *Config) { c.JWTSecret = "" }, wantErr: "JWT_SECRET"},
		{name: "postmark without token", mutate: func(c *Config) { c.EmailProvider = "postmark" }, wantErr: "POSTMARK_API_TOKEN"},
		{name: "sendgrid without key", mutate: func(c *Config) { c.EmailProvider = "sendgrid" }, wantErr: "SENDGRID_API_KEY"},
		{name: "unknown email provider", mutate: func(c *Config) { c.EmailProvider = "pigeon" }, wantErr: "EMAIL_PROVIDER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
