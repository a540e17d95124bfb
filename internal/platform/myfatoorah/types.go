package myfatoorah

// sendPaymentRequest is the body of POST /v2/SendPayment.
type sendPaymentRequest struct {
	CustomerName       string  `json:"CustomerName"`
	CustomerEmail      string  `json:"CustomerEmail,omitempty"`
	NotificationOption string  `json:"NotificationOption"`
	InvoiceValue       float64 `json:"InvoiceValue"`
	DisplayCurrencyIso string  `json:"DisplayCurrencyIso,omitempty"`
	CallBackUrl        string  `json:"CallBackUrl"`
	ErrorUrl           string  `json:"ErrorUrl"`
	ClientReferenceId  string  `json:"CustomerReference,omitempty"`
}

type sendPaymentResponse struct {
	IsSuccess bool   `json:"IsSuccess"`
	Message   string `json:"Message"`
	Data      struct {
		InvoiceID  int64  `json:"InvoiceId"`
		InvoiceURL string `json:"InvoiceURL"`
	} `json:"Data"`
}

// getPaymentStatusRequest is the body of POST /v2/getPaymentStatus.
type getPaymentStatusRequest struct {
	Key     string `json:"Key"`
	KeyType string `json:"KeyType"`
}

type invoiceTransaction struct {
	TransactionID     string  `json:"TransactionId"`
	PaymentID         string  `json:"PaymentId"`
	TransactionStatus string  `json:"TransactionStatus"`
	TransactionValue  string  `json:"TransactionValue"`
	Error             string  `json:"Error"`
	PaidCurrencyValue float64 `json:"PaidCurrencyValue"`
}

type getPaymentStatusResponse struct {
	IsSuccess bool   `json:"IsSuccess"`
	Message   string `json:"Message"`
	Data      struct {
		InvoiceID           int64                `json:"InvoiceId"`
		InvoiceStatus       string               `json:"InvoiceStatus"`
		InvoiceReference    string               `json:"InvoiceReference"`
		CustomerReference   string               `json:"CustomerReference"`
		InvoiceValue        float64              `json:"InvoiceValue"`
		InvoiceTransactions []invoiceTransaction `json:"InvoiceTransactions"`
	} `json:"Data"`
}

type errorResponse struct {
	IsSuccess        bool   `json:"IsSuccess"`
	Message          string `json:"Message"`
	ValidationErrors []struct {
		Name  string `json:"Name"`
		Error string `json:"Error"`
	} `json:"ValidationErrors"`
}
