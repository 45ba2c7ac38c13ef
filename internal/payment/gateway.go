// Package payment opens gateway orders for electronic payments and
// reconciles the outcome the client reports back.
package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/apperr"
)

var (
	// ErrSignatureMismatch is returned when the reported payment is not signed by the gateway.
	ErrSignatureMismatch = apperr.New(apperr.KindSignatureMismatch, "payment verification failed")
	// ErrOrderMismatch is returned when the reported gateway order is not the order's.
	ErrOrderMismatch = apperr.New(apperr.KindSignatureMismatch, "payment does not belong to this order")
	// ErrAmountMismatch is returned when the gateway recorded a different amount.
	ErrAmountMismatch = apperr.New(apperr.KindDependency, "payment gateway amount mismatch")
)

// Intent is the gateway's view of a pending payment.
type Intent struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"` // minor units
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status,omitempty"`
}

// Checkout is what the client needs to open the hosted payment widget.
type Checkout struct {
	Intent Intent
	KeyID  string
}

// Gateway is the external payment processor.
type Gateway interface {
	CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (Intent, error)
	VerifySignature(orderID, paymentID, signature string) bool
}

// Sign returns the hex HMAC-SHA256 of "orderID|paymentID" under secret, the
// signature the gateway attaches to a successful payment.
func Sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks signature in constant time. Test gateways use it.
func VerifySignature(secret, orderID, paymentID, signature string) bool {
	if secret == "" || orderID == "" || paymentID == "" || signature == "" {
		return false
	}
	want := Sign(secret, orderID, paymentID)
	return hmac.Equal([]byte(want), []byte(signature))
}
