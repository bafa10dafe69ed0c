package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds every round trip to the gateway.  A hung
// gateway must surface as an error so the caller can fail closed.
const DefaultTimeout = 10 * time.Second

// PortOneClient is an HTTP implementation of Gateway against a
// PortOne-style REST API.
type PortOneClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewPortOneClient constructs a client with a bounded-timeout
// transport.
func NewPortOneClient(baseURL, apiKey string) *PortOneClient {
	return &PortOneClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: DefaultTimeout},
	}
}

type requestPaymentBody struct {
	Amount       int64  `json:"amount"`
	OrderID      string `json:"order_id"`
	CustomerName string `json:"customer_name"`
	ProductName  string `json:"product_name"`
}

type requestPaymentResponse struct {
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"` // "paid" or "cancelled"
	Code      string `json:"code"`
}

// Request asks the gateway to collect the amount for the order.  A
// user backing out is reported via RequestResult.Cancelled, not as an
// error.
func (p *PortOneClient) Request(ctx context.Context, amount int64, meta OrderMeta) (*RequestResult, error) {
	body, err := json.Marshal(requestPaymentBody{
		Amount:       amount,
		OrderID:      meta.OrderID,
		CustomerName: meta.CustomerName,
		ProductName:  meta.ProductName,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/payments", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("payment request: gateway returned %d: %s", resp.StatusCode, raw)
	}
	var out requestPaymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("payment request: decode response: %w", err)
	}
	return &RequestResult{
		PaymentID: out.PaymentID,
		Cancelled: out.Status == "cancelled",
		Code:      out.Code,
	}, nil
}

type verifyResponse struct {
	PaymentID string `json:"payment_id"`
	OrderID   string `json:"order_id"`
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
}

// Verify fetches the payment from the gateway and checks that it is
// paid, belongs to the order, and charged the expected amount.
func (p *PortOneClient) Verify(ctx context.Context, paymentID, orderID string, expectedAmount int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/payments/"+paymentID, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("payment verify: gateway returned %d: %s", resp.StatusCode, raw)
	}
	var out verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("payment verify: decode response: %w", err)
	}
	if out.Status != "paid" {
		return fmt.Errorf("payment verify: payment %s is %q, want paid", paymentID, out.Status)
	}
	if out.OrderID != orderID {
		return fmt.Errorf("payment verify: payment %s belongs to order %q, want %q", paymentID, out.OrderID, orderID)
	}
	if out.Amount != expectedAmount {
		return fmt.Errorf("payment verify: payment %s charged %d, want %d", paymentID, out.Amount, expectedAmount)
	}
	return nil
}
