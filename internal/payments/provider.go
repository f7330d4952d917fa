package payments

import (
	"context"
	"errors"
	"net/url"
	"time"
)

// ErrSignatureInvalid is returned when a gateway callback carries a signature
// that does not match the payload. Callers treat this as security relevant.
var ErrSignatureInvalid = errors.New("payments: signature invalid")

// PaymentRequest describes one redirect payment to initiate.
type PaymentRequest struct {
	TxnRef    string
	Amount    int64 // whole VND
	OrderInfo string
	ClientIP  string
	CreatedAt time.Time
}

// ReturnResult is the verified outcome of a gateway return callback.
type ReturnResult struct {
	TxnRef       string
	Amount       int64 // whole VND
	ResponseCode string
	BankCode     string
	Success      bool
}

// Provider abstracts a hosted redirect payment gateway.
type Provider interface {
	// Name identifies the gateway in logs and stored references.
	Name() string
	// BuildPaymentURL signs the request and returns the hosted payment page URL.
	BuildPaymentURL(ctx context.Context, req PaymentRequest) (string, error)
	// VerifyReturn authenticates the return query parameters and extracts the outcome.
	VerifyReturn(params url.Values) (ReturnResult, error)
}
