// Package checkout sequences one checkout attempt: order placement, OTP
// verification and payment reconciliation.
package checkout

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/apperr"
	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/metrics"
	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/orders"
	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/otp"
	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/payment"
	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/validation"
)

var errOrderNotFound = apperr.NotFound("Order not found")

// Config groups dependencies for the checkout Service.
type Config struct {
	Orders           *orders.Store
	OTP              *otp.Service
	Payments         *payment.Coordinator
	Notifier         payment.Notifier
	Metrics          metrics.Recorder
	Logger           *slog.Logger
	CodePrefix       string
	AllocateAttempts int
	// DebugEcho returns issued codes to the caller. Never set in production.
	DebugEcho bool
}

// Service implements the order placement pipeline.
type Service struct {
	orders    *orders.Store
	otp       *otp.Service
	payments  *payment.Coordinator
	notifier  payment.Notifier
	metrics   metrics.Recorder
	log       *slog.Logger
	prefix    string
	attempts  int
	debugEcho bool
	nowFunc   func() time.Time
}

func NewService(cfg Config) *Service {
	return &Service{
		orders:    cfg.Orders,
		otp:       cfg.OTP,
		payments:  cfg.Payments,
		notifier:  cfg.Notifier,
		metrics:   cfg.Metrics,
		log:       cfg.Logger,
		prefix:    cfg.CodePrefix,
		attempts:  cfg.AllocateAttempts,
		debugEcho: cfg.DebugEcho,
		nowFunc:   func() time.Time { return time.Now().UTC() },
	}
}

// PlaceOrderResult is returned by PlaceOrder.
type PlaceOrderResult struct {
	Order    *orders.Order
	Checkout *payment.Checkout // upi only
	OTP      string            // only with DebugEcho
}

// PlaceOrder persists a new order and issues its OTP. For upi the gateway
// order is opened first, so a gateway failure leaves nothing behind. An OTP
// dispatch failure is returned with the persisted order in the result.
func (s *Service) PlaceOrder(ctx context.Context, req validation.CreateOrderRequest) (PlaceOrderResult, error) {
	method, ok := orders.ParsePaymentMethod(req.PaymentMethod)
	if !ok {
		return PlaceOrderResult{}, apperr.Validation("paymentMethod must be cod or upi")
	}

	o := newOrder(req, method, s.nowFunc())
	var res PlaceOrderResult

	if method.IsElectronic() {
		co, err := s.payments.Open(ctx, o.Total, o.ID)
		if err != nil {
			return PlaceOrderResult{}, err
		}
		o.SetGateway(orders.GatewayRef{
			OrderID:     co.Intent.ID,
			AmountMinor: co.Intent.Amount,
			Currency:    co.Intent.Currency,
		})
		res.Checkout = &co
	}

	if err := s.orders.Insert(ctx, o, s.prefix, s.attempts); err != nil {
		s.log.ErrorContext(ctx, "persist order failed", "order_id", o.ID, "gateway_order_id", o.GatewayOrderID, "error", err)
		return PlaceOrderResult{}, err
	}
	res.Order = o
	s.metrics.Count(ctx, metrics.OrdersPlaced, map[string]string{"PaymentMethod": string(method)})
	s.log.InfoContext(ctx, "order placed", "order_code", o.Code, "order_id", o.ID, "payment_method", method)

	ch, err := s.otp.Issue(ctx, o.Recipients(), o.Code)
	if s.debugEcho {
		res.OTP = ch.Code
	}
	if err != nil {
		return res, err
	}
	return res, nil
}

func newOrder(req validation.CreateOrderRequest, method orders.PaymentMethod, now time.Time) *orders.Order {
	items := make([]orders.Item, 0, len(req.Items))
	var sum float64
	for _, it := range req.Items {
		items = append(items, orders.Item{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.Price,
		})
		sum += float64(it.Quantity) * it.Price
	}
	subtotal := req.Subtotal
	if subtotal == 0 {
		subtotal = sum
	}
	c := req.Customer
	o := &orders.Order{
		ID:    uuid.NewString(),
		Items: items,
		Customer: orders.Customer{
			Name:         c.Name,
			Email:        c.Email,
			AccountEmail: req.AccountEmail,
			Phone:        c.Phone,
			Address:      c.Address,
			City:         c.City,
			State:        c.State,
			Pincode:      c.Pincode,
			Notes:        c.Notes,
		},
		Method:      method,
		Subtotal:    subtotal,
		ShippingFee: req.ShippingFee,
		Discount:    req.Discount,
		Total:       req.Total,
		CouponCode:  req.CouponCode,
		Status:      orders.InitialStatus(method),
		CreatedAt:   now,
	}
	o.Normalize()
	return o
}

// VerifyResult is returned by VerifyOrder.
type VerifyResult struct {
	Order     *orders.Order
	Verified  bool
	Finalized bool
	Payment   payment.Outcome
	Checkout  *payment.Checkout // upi orders still waiting for payment
}

// VerifyOrder checks the order's OTP and, when the request reports one,
// reconciles the payment outcome.
func (s *Service) VerifyOrder(ctx context.Context, req validation.VerifyOrderRequest) (VerifyResult, error) {
	o, err := s.find(ctx, req.OrderID)
	if err != nil {
		return VerifyResult{}, err
	}

	if req.OTP != "" {
		if err := s.verifyOrderOTP(ctx, o, req.OTP.String()); err != nil {
			return VerifyResult{}, err
		}
	} else if !req.HasPayment() {
		return VerifyResult{}, apperr.Validation("otp is required")
	}

	res := VerifyResult{Verified: o.OTPVerified()}
	switch {
	case req.HasPayment():
		in := payment.ReconcileInput{
			GatewayOrderID: req.RazorpayOrderID,
			PaymentID:      req.RazorpayPaymentID,
			Signature:      req.RazorpaySignature,
		}
		if req.PaymentFailed {
			in.PaymentID = ""
		}
		out, err := s.payments.Reconcile(ctx, o, in)
		if err != nil {
			return VerifyResult{}, err
		}
		res.Payment = out
		res.Finalized = out != payment.OutcomeAbandoned
	case o.Method.IsElectronic():
		if o.Status == orders.StatusPendingPayment {
			co, err := s.payments.Checkout(o)
			if err != nil {
				return VerifyResult{}, err
			}
			res.Checkout = &co
		}
		res.Finalized = o.Status == orders.StatusConfirmed
	default:
		res.Finalized = res.Verified
	}

	fresh, err := s.orders.Get(ctx, o.ID)
	if err != nil {
		return VerifyResult{}, err
	}
	if fresh != nil {
		o = fresh
	}
	res.Order = o
	return res, nil
}

func (s *Service) verifyOrderOTP(ctx context.Context, o *orders.Order, code string) error {
	if o.OTPVerified() {
		return nil
	}
	if _, err := s.otp.Verify(ctx, o.PrimaryEmail(), code); err != nil {
		return err
	}
	now := s.nowFunc()
	if err := s.orders.MarkOTPVerified(ctx, o.ID, now); err != nil {
		return err
	}
	o.OTPVerifiedAt = &now
	s.log.InfoContext(ctx, "order otp verified", "order_code", o.Code)

	if o.Method == orders.MethodCOD && s.notifier != nil {
		if err := s.notifier.OrderConfirmed(ctx, o); err != nil {
			s.log.ErrorContext(ctx, "order confirmation email failed", "order_code", o.Code, "error", err)
		}
	}
	return nil
}

// UpdateStatus sets the status of the order referenced by ref.
func (s *Service) UpdateStatus(ctx context.Context, ref, status string) (*orders.Order, error) {
	st, ok := orders.ParseStatus(status)
	if !ok {
		return nil, apperr.Validation("invalid status %q", status)
	}
	o, err := s.find(ctx, ref)
	if err != nil {
		return nil, err
	}
	if err := s.orders.SetStatus(ctx, o.ID, st); err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			return nil, errOrderNotFound
		}
		return nil, err
	}
	s.log.InfoContext(ctx, "order status updated", "order_code", o.Code, "from", o.Status, "to", st)
	o.Status = st
	return o, nil
}

// GetOrder resolves ref as an internal id, order code or gateway order id.
func (s *Service) GetOrder(ctx context.Context, ref string) (*orders.Order, error) {
	return s.find(ctx, ref)
}

// SendOTP issues a standalone code, or re-issues the code of an order when
// OrderID is set. The email must then belong to the order.
func (s *Service) SendOTP(ctx context.Context, req validation.SendOTPRequest) (otp.Challenge, error) {
	recipients := []string{req.Email, req.AccountEmail}
	orderCode := ""
	if req.OrderID != "" {
		o, err := s.find(ctx, req.OrderID)
		if err != nil {
			return otp.Challenge{}, err
		}
		if orders.NormalizeEmail(req.Email) != o.PrimaryEmail() {
			return otp.Challenge{}, apperr.Validation("email does not match the order")
		}
		recipients = o.Recipients()
		orderCode = o.Code
	}
	return s.otp.Issue(ctx, recipients, orderCode)
}

// VerifyOTP consumes a standalone code.
func (s *Service) VerifyOTP(ctx context.Context, email, code string) error {
	_, err := s.otp.Verify(ctx, email, code)
	return err
}

// EchoOTP reports whether issued codes may be returned to clients.
func (s *Service) EchoOTP() bool { return s.debugEcho }

func (s *Service) find(ctx context.Context, ref string) (*orders.Order, error) {
	if ref == "" {
		return nil, apperr.Validation("orderId is required")
	}
	o, err := s.orders.Find(ctx, ref)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, errOrderNotFound
	}
	return o, nil
}
