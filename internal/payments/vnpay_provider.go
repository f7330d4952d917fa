package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tthaingoc/EcoFashion-sub009/internal/platform/config"
)

const (
	vnpCommandPay     = "pay"
	vnpOrderType      = "other"
	vnpSuccessCode    = "00"
	vnpDateFormat     = "20060102150405"
	vnpDefaultExpires = 15 * time.Minute
)

// The gateway timestamps everything in Indochina time regardless of caller zone.
var vnpLocation = time.FixedZone("ICT", 7*60*60)

// VNPayProvider implements the hosted redirect flow of the VNPay gateway:
// parameters are signed with HMAC-SHA512 over the key-sorted URL-encoded
// query, and return callbacks are authenticated the same way.
type VNPayProvider struct {
	merchantCode string
	hashSecret   []byte
	paymentURL   string
	returnURL    string
	version      string
	currency     string
	locale       string
}

// NewVNPayProvider constructs a VNPayProvider from gateway configuration.
func NewVNPayProvider(cfg config.GatewayConfig) (*VNPayProvider, error) {
	merchantCode := strings.TrimSpace(cfg.MerchantCode)
	if merchantCode == "" {
		return nil, errors.New("vnpay provider: merchant code is required")
	}
	secret := strings.TrimSpace(cfg.HashSecret)
	if secret == "" {
		return nil, errors.New("vnpay provider: hash secret is required")
	}
	paymentURL := strings.TrimSpace(cfg.PaymentURL)
	if paymentURL == "" {
		return nil, errors.New("vnpay provider: payment url is required")
	}
	returnURL := strings.TrimSpace(cfg.ReturnURL)
	if returnURL == "" {
		return nil, errors.New("vnpay provider: return url is required")
	}

	return &VNPayProvider{
		merchantCode: merchantCode,
		hashSecret:   []byte(secret),
		paymentURL:   paymentURL,
		returnURL:    returnURL,
		version:      strings.TrimSpace(cfg.Version),
		currency:     strings.TrimSpace(cfg.Currency),
		locale:       strings.TrimSpace(cfg.Locale),
	}, nil
}

// Name identifies the gateway.
func (p *VNPayProvider) Name() string { return "vnpay" }

// BuildPaymentURL signs the request and returns the hosted payment page URL.
func (p *VNPayProvider) BuildPaymentURL(_ context.Context, req PaymentRequest) (string, error) {
	if p == nil {
		return "", errors.New("vnpay provider not initialised")
	}
	txnRef := strings.TrimSpace(req.TxnRef)
	if txnRef == "" {
		return "", errors.New("vnpay provider: txn ref is required")
	}
	if req.Amount <= 0 {
		return "", fmt.Errorf("vnpay provider: amount must be > 0, got %d", req.Amount)
	}

	createdAt := req.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	createdAt = createdAt.In(vnpLocation)

	orderInfo := strings.TrimSpace(req.OrderInfo)
	if orderInfo == "" {
		orderInfo = "Thanh toan don hang " + txnRef
	}
	clientIP := strings.TrimSpace(req.ClientIP)
	if clientIP == "" {
		clientIP = "127.0.0.1"
	}

	params := url.Values{}
	params.Set("vnp_Version", p.version)
	params.Set("vnp_Command", vnpCommandPay)
	params.Set("vnp_TmnCode", p.merchantCode)
	// The gateway takes amounts in minor units: whole VND times one hundred.
	params.Set("vnp_Amount", strconv.FormatInt(req.Amount*100, 10))
	params.Set("vnp_CurrCode", p.currency)
	params.Set("vnp_TxnRef", txnRef)
	params.Set("vnp_OrderInfo", orderInfo)
	params.Set("vnp_OrderType", vnpOrderType)
	params.Set("vnp_Locale", p.locale)
	params.Set("vnp_ReturnUrl", p.returnURL)
	params.Set("vnp_IpAddr", clientIP)
	params.Set("vnp_CreateDate", createdAt.Format(vnpDateFormat))
	params.Set("vnp_ExpireDate", createdAt.Add(vnpDefaultExpires).Format(vnpDateFormat))

	signed := signedQuery(params, p.hashSecret)
	return p.paymentURL + "?" + signed, nil
}

// VerifyReturn authenticates the return query parameters and extracts the outcome.
func (p *VNPayProvider) VerifyReturn(params url.Values) (ReturnResult, error) {
	if p == nil {
		return ReturnResult{}, errors.New("vnpay provider not initialised")
	}

	received := strings.TrimSpace(params.Get("vnp_SecureHash"))
	if received == "" {
		return ReturnResult{}, fmt.Errorf("%w: missing secure hash", ErrSignatureInvalid)
	}

	filtered := url.Values{}
	for key, values := range params {
		if key == "vnp_SecureHash" || key == "vnp_SecureHashType" {
			continue
		}
		if !strings.HasPrefix(key, "vnp_") || len(values) == 0 {
			continue
		}
		filtered.Set(key, values[0])
	}

	expected := hashQuery(filtered, p.hashSecret)
	if !hmac.Equal([]byte(strings.ToLower(received)), []byte(expected)) {
		return ReturnResult{}, fmt.Errorf("%w: secure hash mismatch", ErrSignatureInvalid)
	}

	txnRef := strings.TrimSpace(filtered.Get("vnp_TxnRef"))
	if txnRef == "" {
		return ReturnResult{}, fmt.Errorf("%w: missing txn ref", ErrSignatureInvalid)
	}

	var amount int64
	if raw := strings.TrimSpace(filtered.Get("vnp_Amount")); raw != "" {
		minor, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return ReturnResult{}, fmt.Errorf("vnpay provider: malformed amount %q: %w", raw, err)
		}
		amount = minor / 100
	}

	code := strings.TrimSpace(filtered.Get("vnp_ResponseCode"))
	return ReturnResult{
		TxnRef:       txnRef,
		Amount:       amount,
		ResponseCode: code,
		BankCode:     strings.TrimSpace(filtered.Get("vnp_BankCode")),
		Success:      code == vnpSuccessCode,
	}, nil
}

// signedQuery returns the sorted URL-encoded query with the secure hash appended.
func signedQuery(params url.Values, secret []byte) string {
	encoded := sortedEncode(params)
	mac := hmac.New(sha512.New, secret)
	mac.Write([]byte(encoded))
	return encoded + "&vnp_SecureHash=" + hex.EncodeToString(mac.Sum(nil))
}

func hashQuery(params url.Values, secret []byte) string {
	mac := hmac.New(sha512.New, secret)
	mac.Write([]byte(sortedEncode(params)))
	return hex.EncodeToString(mac.Sum(nil))
}

// sortedEncode builds the canonical signing payload: keys sorted
// alphabetically, values URL-encoded.
func sortedEncode(params url.Values) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, key := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params.Get(key)))
	}
	return b.String()
}
