package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
)

const maxResponseBytes = 1 << 20

// apiClient is the bearer authenticated JSON client shared by the adapters.
type apiClient struct {
	provider   Provider
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

func newAPIClient(provider Provider, baseURL, secretKey string, httpClient *http.Client) (*apiClient, error) {
	if strings.TrimSpace(secretKey) == "" {
		return nil, fmt.Errorf("%s: secret key is not configured", provider)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &apiClient{
		provider:   provider,
		baseURL:    strings.TrimRight(baseURL, "/"),
		secretKey:  secretKey,
		httpClient: httpClient,
	}, nil
}

// do sends body as JSON (when non nil) and returns the raw response body.
// Non 2xx responses become *Error carrying the provider's message.
func (c *apiClient) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, &Error{Provider: c.provider, Message: "encode request", Err: err}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, &Error{Provider: c.provider, Message: "build request", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		msg := "request failed"
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			msg = "request timed out"
		}
		return nil, &Error{Provider: c.provider, Message: msg, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &Error{Provider: c.provider, StatusCode: resp.StatusCode, Message: "read response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Provider: c.provider, StatusCode: resp.StatusCode, Message: providerMessage(raw, resp.Status)}
	}
	return raw, nil
}

// providerMessage pulls "message" out of an error body; both providers use it.
func providerMessage(raw []byte, fallback string) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Message != "" {
		return body.Message
	}
	return fallback
}
