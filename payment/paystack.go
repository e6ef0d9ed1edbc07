package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"go-storefront/models"
)

const PaystackBaseURL = "https://api.paystack.co"

// PaystackGateway implements Gateway against the Paystack transaction API.
// Amounts are sent in the currency's minor unit.
type PaystackGateway struct {
	api *apiClient
}

func NewPaystack(secretKey, baseURL string, httpClient *http.Client) (*PaystackGateway, error) {
	if baseURL == "" {
		baseURL = PaystackBaseURL
	}
	api, err := newAPIClient(Paystack, baseURL, secretKey, httpClient)
	if err != nil {
		return nil, err
	}
	return &PaystackGateway{api: api}, nil
}

func (g *PaystackGateway) Provider() Provider {
	return Paystack
}

type paystackInitRequest struct {
	Email       string `json:"email"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency,omitempty"`
	Reference   string `json:"reference"`
	CallbackURL string `json:"callback_url,omitempty"`
}

type paystackInitResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

func (g *PaystackGateway) InitializePayment(ctx context.Context, req Request) (*Initialization, error) {
	raw, err := g.api.do(ctx, http.MethodPost, "/transaction/initialize", paystackInitRequest{
		Email:       req.Email,
		Amount:      req.Amount.MinorUnits(),
		Currency:    req.Currency,
		Reference:   req.Reference,
		CallbackURL: req.CallbackURL,
	})
	if err != nil {
		return nil, err
	}

	var resp paystackInitResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &Error{Provider: Paystack, Message: "decode response", Err: err}
	}
	if !resp.Status || resp.Data.AuthorizationURL == "" {
		return nil, &Error{Provider: Paystack, Message: resp.Message}
	}
	return &Initialization{
		AuthorizationURL:  resp.Data.AuthorizationURL,
		ProviderReference: resp.Data.AccessCode,
	}, nil
}

type paystackVerifyResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Status    string `json:"status"`
		Reference string `json:"reference"`
		Amount    int64  `json:"amount"`
		Currency  string `json:"currency"`
	} `json:"data"`
}

func (g *PaystackGateway) VerifyPayment(ctx context.Context, reference string) (*Verification, error) {
	raw, err := g.api.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil)
	if err != nil {
		return nil, err
	}

	var resp paystackVerifyResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &Error{Provider: Paystack, Message: "decode response", Err: err}
	}
	if !resp.Status {
		return nil, &Error{Provider: Paystack, Message: resp.Message}
	}

	return &Verification{
		Outcome:  paystackOutcome(resp.Data.Status),
		Amount:   models.Money{Decimal: decimal.New(resp.Data.Amount, -2)},
		Currency: resp.Data.Currency,
		Raw:      raw,
	}, nil
}

func paystackOutcome(status string) Outcome {
	switch status {
	case "success":
		return OutcomeSuccess
	case "failed", "abandoned", "reversed":
		return OutcomeFailure
	default:
		// "ongoing", "pending", "processing", "queued"
		return OutcomePending
	}
}

type paystackRefundRequest struct {
	Transaction string `json:"transaction"`
	Amount      int64  `json:"amount"`
}

type paystackRefundResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
}

func (g *PaystackGateway) Refund(ctx context.Context, reference string, amount models.Money) error {
	raw, err := g.api.do(ctx, http.MethodPost, "/refund", paystackRefundRequest{
		Transaction: reference,
		Amount:      amount.MinorUnits(),
	})
	if err != nil {
		return err
	}

	var resp paystackRefundResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return &Error{Provider: Paystack, Message: "decode response", Err: err}
	}
	if !resp.Status {
		return &Error{Provider: Paystack, Message: resp.Message}
	}
	return nil
}
