package payment

import (
	"fmt"
	"net/http"
	"strings"
)

// ProviderSettings holds one provider's credentials. An empty BaseURL means
// the provider's production API.
type ProviderSettings struct {
	SecretKey string
	BaseURL   string
}

// Settings lists the enabled providers and their credentials.
type Settings struct {
	Enabled     []string
	Paystack    ProviderSettings
	Flutterwave ProviderSettings
}

// Selector maps a provider id to its gateway. The set of providers is fixed
// at construction; there is no default provider.
type Selector struct {
	gateways map[Provider]Gateway
}

// NewSelector builds a gateway for every enabled provider. An unknown provider
// name or a missing secret key is reported here, at startup, rather than on
// the first payment.
func NewSelector(settings Settings, httpClient *http.Client) (*Selector, error) {
	gateways := make(map[Provider]Gateway, len(settings.Enabled))
	for _, name := range settings.Enabled {
		provider, ok := parseProvider(name)
		if !ok {
			return nil, fmt.Errorf("payment provider %q: %w", name, ErrUnsupportedProvider)
		}

		var (
			gw  Gateway
			err error
		)
		switch provider {
		case Paystack:
			gw, err = NewPaystack(settings.Paystack.SecretKey, settings.Paystack.BaseURL, httpClient)
		case Flutterwave:
			gw, err = NewFlutterwave(settings.Flutterwave.SecretKey, settings.Flutterwave.BaseURL, httpClient)
		}
		if err != nil {
			return nil, err
		}
		gateways[provider] = gw
	}
	return &Selector{gateways: gateways}, nil
}

// Select returns the gateway for id, or ErrUnsupportedProvider.
func (s *Selector) Select(id string) (Gateway, error) {
	provider, ok := parseProvider(id)
	if !ok {
		return nil, fmt.Errorf("%q: %w", id, ErrUnsupportedProvider)
	}
	gw, ok := s.gateways[provider]
	if !ok {
		return nil, fmt.Errorf("%q is not enabled: %w", id, ErrUnsupportedProvider)
	}
	return gw, nil
}

// Providers lists the enabled provider ids.
func (s *Selector) Providers() []Provider {
	out := make([]Provider, 0, len(s.gateways))
	for _, p := range []Provider{Paystack, Flutterwave} {
		if _, ok := s.gateways[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

func parseProvider(id string) (Provider, bool) {
	switch Provider(strings.ToLower(strings.TrimSpace(id))) {
	case Paystack:
		return Paystack, true
	case Flutterwave:
		return Flutterwave, true
	}
	return "", false
}
