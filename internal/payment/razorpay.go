package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"
)

// RazorpayGateway creates orders through the Razorpay API.
type RazorpayGateway struct {
	client *razorpay.Client
	secret string
}

// NewRazorpayGateway returns a Gateway authenticated with the key pair.
func NewRazorpayGateway(keyID, keySecret string) *RazorpayGateway {
	return &RazorpayGateway{
		client: razorpay.NewClient(keyID, keySecret),
		secret: keySecret,
	}
}

// CreateOrder opens an order with automatic capture on success.
func (g *RazorpayGateway) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (Intent, error) {
	if err := ctx.Err(); err != nil {
		return Intent{}, err
	}
	body, err := g.client.Order.Create(map[string]interface{}{
		"amount":          amountMinor,
		"currency":        currency,
		"receipt":         receipt,
		"payment_capture": 1,
	}, nil)
	if err != nil {
		return Intent{}, fmt.Errorf("razorpay create order: %w", err)
	}
	return intentFromResponse(body)
}

// VerifySignature checks the checkout signature with the SDK helper.
func (g *RazorpayGateway) VerifySignature(orderID, paymentID, signature string) bool {
	if orderID == "" || paymentID == "" || signature == "" {
		return false
	}
	return utils.VerifyPaymentSignature(map[string]interface{}{
		"razorpay_order_id":   orderID,
		"razorpay_payment_id": paymentID,
	}, signature, g.secret)
}

func intentFromResponse(body map[string]interface{}) (Intent, error) {
	id, _ := body["id"].(string)
	if id == "" {
		return Intent{}, fmt.Errorf("razorpay response without order id")
	}
	amount, err := minorUnits(body["amount"])
	if err != nil {
		return Intent{}, err
	}
	in := Intent{ID: id, Amount: amount}
	in.Currency, _ = body["currency"].(string)
	in.Receipt, _ = body["receipt"].(string)
	in.Status, _ = body["status"].(string)
	return in, nil
}

func minorUnits(v interface{}) (int64, error) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("razorpay amount %v is not integral", n)
		}
		return int64(n), nil
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case json.Number:
		return n.Int64()
	default:
		return 0, fmt.Errorf("razorpay amount has type %T", v)
	}
}
