package orders

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/money"
)

// Status is the lifecycle status of an order.
type Status string

// Order statuses
const (
	StatusPendingPayment Status = "Pending Payment"
	StatusProcessing     Status = "Processing"
	StatusConfirmed      Status = "Confirmed"
	StatusCanceled       Status = "Canceled"
)

var allStatuses = []Status{StatusPendingPayment, StatusProcessing, StatusConfirmed, StatusCanceled}

// ParseStatus matches s case-insensitively against the known statuses.
func ParseStatus(s string) (Status, bool) {
	s = strings.TrimSpace(s)
	for _, st := range allStatuses {
		if strings.EqualFold(s, string(st)) {
			return st, true
		}
	}
	return "", false
}

// PaymentMethod selects how the customer pays.
type PaymentMethod string

const (
	MethodCOD PaymentMethod = "cod"
	MethodUPI PaymentMethod = "upi"
)

// ParsePaymentMethod accepts "cod" or "upi" in any case.
func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch PaymentMethod(strings.ToLower(strings.TrimSpace(s))) {
	case MethodCOD:
		return MethodCOD, true
	case MethodUPI:
		return MethodUPI, true
	}
	return "", false
}

// IsElectronic reports whether the method goes through the payment gateway.
func (m PaymentMethod) IsElectronic() bool { return m == MethodUPI }

// InitialStatus is the status a freshly placed order starts in.
func InitialStatus(m PaymentMethod) Status {
	if m.IsElectronic() {
		return StatusPendingPayment
	}
	return StatusProcessing
}

// Item is one order line.
type Item struct {
	ProductID string  `dynamodbav:"product_id" json:"productId"`
	Name      string  `dynamodbav:"name,omitempty" json:"name,omitempty"`
	Quantity  int     `dynamodbav:"quantity" json:"quantity"`
	UnitPrice float64 `dynamodbav:"unit_price" json:"price"`
}

// Customer holds contact and shipping details entered at checkout.
// AccountEmail is the signed-in account's address when it differs from Email.
type Customer struct {
	Name         string `dynamodbav:"name" json:"name"`
	Email        string `dynamodbav:"email" json:"email"`
	AccountEmail string `dynamodbav:"account_email,omitempty" json:"accountEmail,omitempty"`
	Phone        string `dynamodbav:"phone" json:"phone"`
	Address      string `dynamodbav:"address" json:"address"`
	City         string `dynamodbav:"city" json:"city"`
	State        string `dynamodbav:"state" json:"state"`
	Pincode      string `dynamodbav:"pincode" json:"pincode"`
	Notes        string `dynamodbav:"notes,omitempty" json:"notes,omitempty"`
}

// GatewayRef is the payment-gateway side of a upi order.
type GatewayRef struct {
	OrderID     string
	PaymentID   string
	AmountMinor int64
	Currency    string
}

// Order represents the item stored in the orders table.
//
// The gateway fields are flattened so gateway_order_id can back a secondary
// index; Gateway() is the typed view. cod orders never carry them.
type Order struct {
	ID                 string        `dynamodbav:"id"`         // PK
	Code               string        `dynamodbav:"order_code"` // HP-YYYY-NNN
	Year               int           `dynamodbav:"year"`
	Seq                int           `dynamodbav:"seq"`
	Items              []Item        `dynamodbav:"items"`
	Customer           Customer      `dynamodbav:"customer"`
	Method             PaymentMethod `dynamodbav:"payment_method"`
	Subtotal           float64       `dynamodbav:"subtotal"`
	ShippingFee        float64       `dynamodbav:"shipping_fee"`
	Discount           float64       `dynamodbav:"discount"`
	Total              float64       `dynamodbav:"total"`
	CouponCode         string        `dynamodbav:"coupon_code,omitempty"`
	Status             Status        `dynamodbav:"status"`
	GatewayOrderID     string        `dynamodbav:"gateway_order_id,omitempty"`
	GatewayPaymentID   string        `dynamodbav:"gateway_payment_id,omitempty"`
	GatewayAmountMinor int64         `dynamodbav:"gateway_amount_minor,omitempty"`
	GatewayCurrency    string        `dynamodbav:"gateway_currency,omitempty"`
	OTPVerifiedAt      *time.Time    `dynamodbav:"otp_verified_at,omitempty"`
	ConfirmationSentAt *time.Time    `dynamodbav:"confirmation_sent_at,omitempty"`
	CreatedAt          time.Time     `dynamodbav:"created_at"`
	UpdatedAt          time.Time     `dynamodbav:"updated_at"`
}

// Gateway returns the gateway reference of a upi order, nil otherwise.
func (o *Order) Gateway() *GatewayRef {
	if o.GatewayOrderID == "" {
		return nil
	}
	return &GatewayRef{
		OrderID:     o.GatewayOrderID,
		PaymentID:   o.GatewayPaymentID,
		AmountMinor: o.GatewayAmountMinor,
		Currency:    o.GatewayCurrency,
	}
}

// SetGateway attaches the gateway reference.
func (o *Order) SetGateway(ref GatewayRef) {
	o.GatewayOrderID = ref.OrderID
	o.GatewayPaymentID = ref.PaymentID
	o.GatewayAmountMinor = ref.AmountMinor
	o.GatewayCurrency = ref.Currency
}

// PrimaryEmail is the address OTP challenges are keyed by.
func (o *Order) PrimaryEmail() string {
	return o.Customer.Email
}

// Recipients lists the distinct addresses that must receive the OTP.
func (o *Order) Recipients() []string {
	out := []string{o.Customer.Email}
	if acc := o.Customer.AccountEmail; acc != "" && !strings.EqualFold(acc, o.Customer.Email) {
		out = append(out, acc)
	}
	return out
}

// OTPVerified reports whether the customer proved control of the email.
func (o *Order) OTPVerified() bool { return o.OTPVerifiedAt != nil }

// Normalize trims and lower-cases the fields the pipeline matches on.
func (o *Order) Normalize() {
	o.Customer.Name = strings.TrimSpace(o.Customer.Name)
	o.Customer.Email = NormalizeEmail(o.Customer.Email)
	o.Customer.AccountEmail = NormalizeEmail(o.Customer.AccountEmail)
	o.Customer.Phone = strings.TrimSpace(o.Customer.Phone)
	o.Customer.Notes = strings.TrimSpace(o.Customer.Notes)
	o.CouponCode = strings.ToUpper(strings.TrimSpace(o.CouponCode))
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Validate checks the invariants that tie status and gateway data to the
// payment method.
func (o *Order) Validate() error {
	if _, _, _, ok := ParseCode(o.Code); !ok {
		return fmt.Errorf("invalid order code %q", o.Code)
	}
	if _, ok := ParseStatus(string(o.Status)); !ok {
		return fmt.Errorf("invalid status %q", o.Status)
	}
	if len(o.Items) == 0 {
		return errors.New("order has no items")
	}
	switch o.Method {
	case MethodCOD:
		if o.GatewayOrderID != "" || o.GatewayPaymentID != "" {
			return errors.New("cod order must not reference a gateway order")
		}
	case MethodUPI:
		if o.GatewayOrderID == "" {
			return errors.New("upi order requires a gateway order id")
		}
		want, err := money.ToMinor(o.Total)
		if err != nil {
			return fmt.Errorf("upi order total: %w", err)
		}
		if o.GatewayAmountMinor != want {
			return fmt.Errorf("gateway amount %d does not match order total %d", o.GatewayAmountMinor, want)
		}
	default:
		return fmt.Errorf("invalid payment method %q", o.Method)
	}
	return nil
}

// View is the normalized read shape returned to clients.
type View struct {
	ID                string        `json:"_id"`
	OrderID           string        `json:"orderId"`
	Status            Status        `json:"status"`
	PaymentMethod     PaymentMethod `json:"paymentMethod"`
	Items             []Item        `json:"items"`
	Customer          Customer      `json:"customer"`
	Subtotal          float64       `json:"subtotal"`
	ShippingFee       float64       `json:"shippingFee"`
	Discount          float64       `json:"discount"`
	Total             float64       `json:"total"`
	CouponCode        string        `json:"couponCode,omitempty"`
	RazorpayOrderID   string        `json:"razorpayOrderId,omitempty"`
	RazorpayPaymentID string        `json:"razorpayPaymentId,omitempty"`
	OTPVerified       bool          `json:"otpVerified"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
}

// View builds the normalized read shape.
func (o *Order) View() View {
	items := o.Items
	if items == nil {
		items = []Item{}
	}
	return View{
		ID:                o.ID,
		OrderID:           o.Code,
		Status:            o.Status,
		PaymentMethod:     o.Method,
		Items:             items,
		Customer:          o.Customer,
		Subtotal:          o.Subtotal,
		ShippingFee:       o.ShippingFee,
		Discount:          o.Discount,
		Total:             o.Total,
		CouponCode:        o.CouponCode,
		RazorpayOrderID:   o.GatewayOrderID,
		RazorpayPaymentID: o.GatewayPaymentID,
		OTPVerified:       o.OTPVerified(),
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
}

// CodeReservation is stored in the order-codes table. The table's primary key
// is the code itself, so a conditional put is what keeps codes unique.
type CodeReservation struct {
	Code    string `dynamodbav:"order_code"` // PK
	Year    int    `dynamodbav:"year"`       // GSI partition
	Seq     int    `dynamodbav:"seq"`        // GSI sort
	OrderID string `dynamodbav:"order_id"`
}
