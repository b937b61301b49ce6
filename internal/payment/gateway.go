package payment

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrGatewayNotConfigured = errors.New("payment gateway not configured")
	ErrGatewayTimeout       = errors.New("payment gateway timeout")
)

// Gateway abstracts the external payment provider.
//
// CreateTransaction opens a hosted payment page for one order reference.
// TransactionStatus pulls the provider's current view of an order, in the same
// shape the provider pushes through its notification webhook.
type Gateway interface {
	CreateTransaction(ctx context.Context, req TransactionRequest) (*Transaction, error)
	TransactionStatus(ctx context.Context, orderID string) (*Notification, error)
	VerifySignature(n Notification) bool
}

type LineItem struct {
	ID       string
	Name     string
	Price    decimal.Decimal // per quantity, already multiplied by the rental days
	Quantity int
}

type Customer struct {
	Name  string
	Email string
	Phone string
}

type TransactionRequest struct {
	OrderID  string
	Amount   decimal.Decimal
	Items    []LineItem
	Customer Customer
}

type Transaction struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}

// Notification is the provider's asynchronous status callback payload.
type Notification struct {
	OrderID           string `json:"order_id"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	PaymentType       string `json:"payment_type"`
	TransactionID     string `json:"transaction_id"`
	TransactionTime   string `json:"transaction_time"`
}

// FormatOrderID builds the order reference {paymentID}-{unix seconds}. Every
// creation attempt has a fresh payment id, so references never repeat.
func FormatOrderID(paymentID string, at time.Time) string {
	return paymentID + "-" + strconv.FormatInt(at.Unix(), 10)
}
