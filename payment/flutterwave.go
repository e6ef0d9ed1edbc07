package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"

	"go-storefront/models"
)

const FlutterwaveBaseURL = "https://api.flutterwave.com"

// FlutterwaveGateway implements Gateway against Flutterwave Standard.
// Amounts are sent in major units.
type FlutterwaveGateway struct {
	api *apiClient
}

func NewFlutterwave(secretKey, baseURL string, httpClient *http.Client) (*FlutterwaveGateway, error) {
	if baseURL == "" {
		baseURL = FlutterwaveBaseURL
	}
	api, err := newAPIClient(Flutterwave, baseURL, secretKey, httpClient)
	if err != nil {
		return nil, err
	}
	return &FlutterwaveGateway{api: api}, nil
}

func (g *FlutterwaveGateway) Provider() Provider {
	return Flutterwave
}

type flutterwaveCustomer struct {
	Email string `json:"email"`
}

type flutterwaveInitRequest struct {
	TxRef       string              `json:"tx_ref"`
	Amount      json.Number         `json:"amount"`
	Currency    string              `json:"currency"`
	RedirectURL string              `json:"redirect_url"`
	Customer    flutterwaveCustomer `json:"customer"`
}

type flutterwaveInitResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Link string `json:"link"`
	} `json:"data"`
}

func (g *FlutterwaveGateway) InitializePayment(ctx context.Context, req Request) (*Initialization, error) {
	raw, err := g.api.do(ctx, http.MethodPost, "/v3/payments", flutterwaveInitRequest{
		TxRef:       req.Reference,
		Amount:      json.Number(req.Amount.String()),
		Currency:    req.Currency,
		RedirectURL: req.CallbackURL,
		Customer:    flutterwaveCustomer{Email: req.Email},
	})
	if err != nil {
		return nil, err
	}

	var resp flutterwaveInitResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &Error{Provider: Flutterwave, Message: "decode response", Err: err}
	}
	if resp.Status != "success" || resp.Data.Link == "" {
		return nil, &Error{Provider: Flutterwave, Message: resp.Message}
	}
	// Flutterwave only issues its own id once the customer pays.
	return &Initialization{AuthorizationURL: resp.Data.Link}, nil
}

type flutterwaveVerifyResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		ID       int64           `json:"id"`
		TxRef    string          `json:"tx_ref"`
		Status   string          `json:"status"`
		Amount   decimal.Decimal `json:"amount"`
		Currency string          `json:"currency"`
	} `json:"data"`
}

func (g *FlutterwaveGateway) VerifyPayment(ctx context.Context, reference string) (*Verification, error) {
	resp, raw, err := g.lookup(ctx, reference)
	if err != nil {
		return nil, err
	}
	return &Verification{
		Outcome:  flutterwaveOutcome(resp.Data.Status),
		Amount:   models.Money{Decimal: resp.Data.Amount},
		Currency: resp.Data.Currency,
		Raw:      raw,
	}, nil
}

func (g *FlutterwaveGateway) lookup(ctx context.Context, reference string) (*flutterwaveVerifyResponse, []byte, error) {
	raw, err := g.api.do(ctx, http.MethodGet, "/v3/transactions/verify_by_reference?tx_ref="+url.QueryEscape(reference), nil)
	if err != nil {
		return nil, nil, err
	}

	var resp flutterwaveVerifyResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, nil, &Error{Provider: Flutterwave, Message: "decode response", Err: err}
	}
	if resp.Status != "success" {
		return nil, nil, &Error{Provider: Flutterwave, Message: resp.Message}
	}
	return &resp, raw, nil
}

type flutterwaveRefundRequest struct {
	Amount json.Number `json:"amount"`
}

type flutterwaveRefundResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Refund looks up Flutterwave's own id for the reference first, since the
// refund endpoint is keyed by it.
func (g *FlutterwaveGateway) Refund(ctx context.Context, reference string, amount models.Money) error {
	found, _, err := g.lookup(ctx, reference)
	if err != nil {
		return err
	}

	raw, err := g.api.do(ctx, http.MethodPost,
		"/v3/transactions/"+strconv.FormatInt(found.Data.ID, 10)+"/refund",
		flutterwaveRefundRequest{Amount: json.Number(amount.String())})
	if err != nil {
		return err
	}

	var resp flutterwaveRefundResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return &Error{Provider: Flutterwave, Message: "decode response", Err: err}
	}
	if resp.Status != "success" {
		return &Error{Provider: Flutterwave, Message: resp.Message}
	}
	return nil
}

func flutterwaveOutcome(status string) Outcome {
	switch status {
	case "successful":
		return OutcomeSuccess
	case "failed", "cancelled":
		return OutcomeFailure
	default:
		return OutcomePending
	}
}
