package validation

import "github.com/noorulameen-lester/Honey-Palace-sub000/internal/otp"

// Item represents a single order line item.
type Item struct {
	ProductID string  `json:"productId" validate:"required"`
	Name      string  `json:"name,omitempty"`
	Quantity  int     `json:"quantity" validate:"required,min=1"` // must be >= 1
	Price     float64 `json:"price" validate:"required,gt=0"`     // price per unit
}

// Customer is the contact and shipping form.
type Customer struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone" validate:"required,min=10,max=15"`
	Address string `json:"address" validate:"required"`
	City    string `json:"city" validate:"required"`
	State   string `json:"state" validate:"required"`
	Pincode string `json:"pincode" validate:"required,numeric,len=6"`
	Notes   string `json:"notes,omitempty" validate:"max=500"`
}

// CreateOrderRequest is the payload for POST /orders.
// Subtotal may be omitted, in which case it is the sum of the items.
type CreateOrderRequest struct {
	Items         []Item   `json:"items" validate:"required,min=1,dive"` // at least one item
	Customer      Customer `json:"customer"`
	AccountEmail  string   `json:"userEmail,omitempty" validate:"omitempty,email"` // signed-in account, if different
	PaymentMethod string   `json:"paymentMethod" validate:"required,payment_method"`
	Subtotal      float64  `json:"subtotal,omitempty" validate:"gte=0"`
	ShippingFee   float64  `json:"shippingFee,omitempty" validate:"gte=0"`
	Discount      float64  `json:"discount,omitempty" validate:"gte=0"`
	Total         float64  `json:"total" validate:"required,gt=0"` // total amount client claims
	CouponCode    string   `json:"couponCode,omitempty" validate:"max=32"`
}

// VerifyOrderRequest is the payload for POST /orders/verify. It carries an
// OTP, a payment outcome, or both.
type VerifyOrderRequest struct {
	OrderID           string   `json:"orderId" validate:"required"`
	OTP               otp.Code `json:"otp,omitempty"`
	RazorpayOrderID   string   `json:"razorpayOrderId,omitempty"`
	RazorpayPaymentID string   `json:"razorpayPaymentId,omitempty"`
	RazorpaySignature string   `json:"razorpaySignature,omitempty"`
	PaymentFailed     bool     `json:"paymentFailed,omitempty"`
}

// HasPayment reports whether the request reports a payment outcome.
func (r VerifyOrderRequest) HasPayment() bool {
	return r.RazorpayOrderID != "" || r.RazorpayPaymentID != "" || r.PaymentFailed
}

// SendOTPRequest is the payload for POST /send-otp.
type SendOTPRequest struct {
	Email        string `json:"email" validate:"required,email"`
	AccountEmail string `json:"userEmail,omitempty" validate:"omitempty,email"`
	OrderID      string `json:"orderId,omitempty"`
}

// VerifyOTPRequest is the payload for POST /verify-otp.
type VerifyOTPRequest struct {
	Email string   `json:"email" validate:"required,email"`
	OTP   otp.Code `json:"otp" validate:"required"`
}

// StatusUpdateRequest is the payload for PATCH /orders.
type StatusUpdateRequest struct {
	OrderID string `json:"orderId" validate:"required"`
	Status  string `json:"status" validate:"required,order_status"`
}
