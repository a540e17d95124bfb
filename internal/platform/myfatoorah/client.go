package myfatoorah

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/mazadapp/mazad/internal/domain"
)

// Client is the REST client for the MyFatoorah payment gateway.
type Client struct {
	baseURL     string
	apiKey      string
	callbackURL string
	errorURL    string
	currency    string
	httpClient  *http.Client
}

// Config carries the gateway connection settings.
type Config struct {
	BaseURL     string
	APIKey      string
	CallbackURL string
	ErrorURL    string
	Currency    string
	Timeout     time.Duration
}

// NewClient creates a new MyFatoorah REST client.
//
// cfg.BaseURL is the API root, e.g. "https://apitest.myfatoorah.com".
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		callbackURL: cfg.CallbackURL,
		errorURL:    cfg.ErrorURL,
		currency:    cfg.Currency,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

var _ domain.PaymentGateway = (*Client)(nil)

// InitiatePayment creates a hosted invoice and returns the URL the customer
// must be redirected to, along with the gateway's invoice identifier.
func (c *Client) InitiatePayment(ctx context.Context, req domain.PaymentRequest) (domain.PaymentHandle, error) {
	if req.Amount <= 0 {
		return domain.PaymentHandle{}, domain.Validationf("amount", "payment amount must be positive, got %d", req.Amount)
	}

	currency := req.Currency
	if currency == "" {
		currency = c.currency
	}

	body := sendPaymentRequest{
		CustomerName:       req.CustomerName,
		CustomerEmail:      req.CustomerEmail,
		NotificationOption: "LNK",
		InvoiceValue:       minorToMajor(req.Amount),
		DisplayCurrencyIso: currency,
		CallBackUrl:        c.callbackURL,
		ErrorUrl:           c.errorURL,
		ClientReferenceId:  req.OrderID,
	}

	respBody, err := c.doRequest(ctx, "/v2/SendPayment", body)
	if err != nil {
		return domain.PaymentHandle{}, fmt.Errorf("myfatoorah: send payment: %w", err)
	}

	var resp sendPaymentResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return domain.PaymentHandle{}, fmt.Errorf("myfatoorah: decode send payment: %w", err)
	}
	if !resp.IsSuccess {
		return domain.PaymentHandle{}, fmt.Errorf("myfatoorah: send payment rejected: %s: %w", resp.Message, domain.ErrGateway)
	}
	if resp.Data.InvoiceURL == "" {
		return domain.PaymentHandle{}, fmt.Errorf("myfatoorah: send payment returned no invoice URL: %w", domain.ErrGateway)
	}

	return domain.PaymentHandle{
		InvoiceID:  strconv.FormatInt(resp.Data.InvoiceID, 10),
		PaymentURL: resp.Data.InvoiceURL,
	}, nil
}

// VerifyPayment fetches the authoritative status of a payment from the
// gateway. It never trusts callback parameters alone.
func (c *Client) VerifyPayment(ctx context.Context, paymentID string) (domain.PaymentResult, error) {
	body := getPaymentStatusRequest{
		Key:     paymentID,
		KeyType: "PaymentId",
	}

	respBody, err := c.doRequest(ctx, "/v2/getPaymentStatus", body)
	if err != nil {
		return domain.PaymentResult{}, fmt.Errorf("myfatoorah: get payment status: %w", err)
	}

	var resp getPaymentStatusResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return domain.PaymentResult{}, fmt.Errorf("myfatoorah: decode payment status: %w", err)
	}
	if !resp.IsSuccess {
		return domain.PaymentResult{}, fmt.Errorf("myfatoorah: payment status rejected: %s: %w", resp.Message, domain.ErrGateway)
	}

	result := domain.PaymentResult{
		InvoiceID: strconv.FormatInt(resp.Data.InvoiceID, 10),
		Status:    mapInvoiceStatus(resp.Data.InvoiceStatus),
		Message:   resp.Message,
	}
	for _, tx := range resp.Data.InvoiceTransactions {
		if tx.TransactionStatus == "Succss" || tx.TransactionStatus == "Success" {
			result.TransactionID = tx.TransactionID
			break
		}
	}
	if result.TransactionID == "" && len(resp.Data.InvoiceTransactions) > 0 {
		result.TransactionID = resp.Data.InvoiceTransactions[0].TransactionID
	}

	return result, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// doRequest builds, sends, and reads an authenticated POST against the
// MyFatoorah API.
func (c *Client) doRequest(ctx context.Context, path string, reqBody any) ([]byte, error) {
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w: %w", err, domain.ErrGateway)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := c.checkStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}

	return respBody, nil
}

// checkStatus maps non-2xx HTTP status codes to gateway errors.
func (c *Client) checkStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var apiErr errorResponse
	_ = json.Unmarshal(body, &apiErr)

	msg := apiErr.Message
	if msg == "" && len(apiErr.ValidationErrors) > 0 {
		msg = apiErr.ValidationErrors[0].Error
	}

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("unauthorized: %s: %w", msg, domain.ErrGateway)
	case http.StatusBadRequest:
		return fmt.Errorf("bad request: %s: %w", msg, domain.ErrGateway)
	case http.StatusTooManyRequests:
		return fmt.Errorf("rate limited: %s: %w", msg, domain.ErrGateway)
	default:
		return fmt.Errorf("HTTP %d: %s: %w", statusCode, msg, domain.ErrGateway)
	}
}

// mapInvoiceStatus translates the gateway's invoice status vocabulary.
func mapInvoiceStatus(s string) domain.PaymentStatus {
	switch s {
	case "Paid":
		return domain.PaymentPaid
	case "Pending":
		return domain.PaymentPending
	default:
		return domain.PaymentFailed
	}
}

// minorToMajor converts minor currency units to the decimal amount the
// gateway expects.
func minorToMajor(minor int64) float64 {
	return float64(minor) / 100
}
