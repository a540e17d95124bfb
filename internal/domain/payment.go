package domain

import "context"

// PaymentStatus is the authoritative state reported by the gateway for an
// invoice. Anything other than PaymentPaid settles the order as failed.
type PaymentStatus string

const (
	PaymentPaid    PaymentStatus = "paid"
	PaymentPending PaymentStatus = "pending"
	PaymentFailed  PaymentStatus = "failed"
)

// PaymentRequest carries everything the gateway needs to open an invoice.
type PaymentRequest struct {
	OrderID       string
	Amount        int64
	Currency      string
	CustomerName  string
	CustomerEmail string
}

// PaymentHandle is the gateway's response to a successful initiation: the
// invoice id used for all later lookups and the URL the customer pays at.
type PaymentHandle struct {
	InvoiceID  string
	PaymentURL string
}

// PaymentResult is the outcome of a verification call.
type PaymentResult struct {
	Status        PaymentStatus
	InvoiceID     string
	TransactionID string
	Message       string
}

// PaymentGateway is the external payment provider. Both calls have bounded
// timeouts; failures wrap ErrGateway and never mutate local state.
type PaymentGateway interface {
	InitiatePayment(ctx context.Context, req PaymentRequest) (PaymentHandle, error)
	VerifyPayment(ctx context.Context, paymentID string) (PaymentResult, error)
}
