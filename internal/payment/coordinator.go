package payment

import (
	"context"
	"errors"
	"log/slog"

	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/apperr"
	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/idempotency"
	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/metrics"
	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/money"
	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/orders"
)

// Outcome of a reconciliation.
type Outcome string

const (
	OutcomeConfirmed Outcome = "confirmed"
	OutcomeAbandoned Outcome = "abandoned"
	OutcomeDuplicate Outcome = "duplicate"
)

// Notifier is told once about every order whose payment was confirmed.
type Notifier interface {
	OrderConfirmed(ctx context.Context, o *orders.Order) error
}

// ReconcileInput is the outcome reported by the client after the widget closes.
// An empty PaymentID means the customer abandoned the payment.
type ReconcileInput struct {
	GatewayOrderID string
	PaymentID      string
	Signature      string
}

// CoordinatorConfig groups dependencies for the Coordinator.
type CoordinatorConfig struct {
	Gateway     Gateway
	Orders      *orders.Store
	Idempotency *idempotency.Store
	Notifier    Notifier
	Metrics     metrics.Recorder
	Logger      *slog.Logger
	KeyID       string
	Currency    string
}

// Coordinator bridges orders and the payment gateway.
type Coordinator struct {
	gateway  Gateway
	orders   *orders.Store
	idem     *idempotency.Store
	notifier Notifier
	metrics  metrics.Recorder
	log      *slog.Logger
	keyID    string
	currency string
}

func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	currency := cfg.Currency
	if currency == "" {
		currency = "INR"
	}
	return &Coordinator{
		gateway:  cfg.Gateway,
		orders:   cfg.Orders,
		idem:     cfg.Idempotency,
		notifier: cfg.Notifier,
		metrics:  cfg.Metrics,
		log:      cfg.Logger,
		keyID:    cfg.KeyID,
		currency: currency,
	}
}

// Currency is the currency gateway orders are opened in.
func (c *Coordinator) Currency() string { return c.currency }

// Open creates a gateway order for total (major units). The gateway's amount
// must equal the requested one; a different amount is an error, never corrected.
func (c *Coordinator) Open(ctx context.Context, total float64, receipt string) (Checkout, error) {
	amount, err := money.ToMinor(total)
	if err != nil {
		return Checkout{}, apperr.Validation("total must be greater than zero")
	}
	intent, err := c.gateway.CreateOrder(ctx, amount, c.currency, receipt)
	if err != nil {
		c.log.ErrorContext(ctx, "gateway create order failed", "receipt", receipt, "amount", amount, "error", err)
		return Checkout{}, apperr.Dependency("failed to create payment order", err)
	}
	if intent.Amount != amount || (intent.Currency != "" && intent.Currency != c.currency) {
		c.log.ErrorContext(ctx, "gateway amount mismatch",
			"receipt", receipt, "requested", amount, "recorded", intent.Amount, "currency", intent.Currency)
		return Checkout{}, ErrAmountMismatch
	}
	if intent.Currency == "" {
		intent.Currency = c.currency
	}
	return Checkout{Intent: intent, KeyID: c.keyID}, nil
}

// Checkout rebuilds the widget data of an existing upi order.
func (c *Coordinator) Checkout(o *orders.Order) (Checkout, error) {
	ref := o.Gateway()
	if ref == nil {
		return Checkout{}, apperr.Validation("order %s has no payment order", o.Code)
	}
	return Checkout{
		Intent: Intent{ID: ref.OrderID, Amount: ref.AmountMinor, Currency: ref.Currency, Receipt: o.ID},
		KeyID:  c.keyID,
	}, nil
}

// Reconcile applies the reported payment outcome to o.
func (c *Coordinator) Reconcile(ctx context.Context, o *orders.Order, in ReconcileInput) (Outcome, error) {
	if o.Method != orders.MethodUPI {
		return "", apperr.Validation("order %s is not an online payment order", o.Code)
	}
	if in.GatewayOrderID != "" && in.GatewayOrderID != o.GatewayOrderID {
		c.reject(ctx, o, "order_mismatch")
		return "", ErrOrderMismatch
	}
	if in.PaymentID == "" {
		return c.abandon(ctx, o)
	}
	if !c.gateway.VerifySignature(o.GatewayOrderID, in.PaymentID, in.Signature) {
		c.reject(ctx, o, "signature")
		return "", ErrSignatureMismatch
	}
	return c.confirm(ctx, o, in.PaymentID)
}

func (c *Coordinator) abandon(ctx context.Context, o *orders.Order) (Outcome, error) {
	err := c.orders.UpdateStatus(ctx, o.ID, orders.StatusPendingPayment, orders.StatusCanceled)
	if errors.Is(err, orders.ErrStatusMismatch) {
		cur, gerr := c.current(ctx, o.ID)
		if gerr != nil {
			return "", gerr
		}
		if cur.Status == orders.StatusCanceled {
			return OutcomeAbandoned, nil
		}
		return "", apperr.Conflict("order %s is already %s", cur.Code, cur.Status)
	}
	if err != nil {
		return "", err
	}
	o.Status = orders.StatusCanceled
	c.metrics.Count(ctx, metrics.PaymentsAbandoned, nil)
	c.log.InfoContext(ctx, "payment abandoned", "order_code", o.Code)
	return OutcomeAbandoned, nil
}

func (c *Coordinator) confirm(ctx context.Context, o *orders.Order, paymentID string) (Outcome, error) {
	if !o.OTPVerified() {
		return "", apperr.Validation("verify the OTP before confirming payment")
	}

	key := idempotency.PaymentKey(paymentID)
	rec, done, err := c.idem.Claim(ctx, key, o.ID)
	if errors.Is(err, idempotency.ErrInProgress) {
		return "", apperr.Conflict("payment %s is already being processed", paymentID)
	}
	if err != nil {
		return "", err
	}
	if done {
		if rec.OrderID != o.ID {
			return "", ErrOrderMismatch
		}
		c.log.InfoContext(ctx, "payment replay ignored", "order_code", o.Code, "payment_id", paymentID)
		return OutcomeDuplicate, nil
	}

	err = c.orders.ConfirmPayment(ctx, o.ID, paymentID)
	if errors.Is(err, orders.ErrStatusMismatch) {
		cur, gerr := c.current(ctx, o.ID)
		if gerr != nil {
			c.markFailed(ctx, key, gerr.Error())
			return "", gerr
		}
		if cur.Status != orders.StatusConfirmed || cur.GatewayPaymentID != paymentID {
			c.markFailed(ctx, key, "status "+string(cur.Status))
			return "", apperr.Conflict("order %s is already %s", cur.Code, cur.Status)
		}
		o = cur
		err = nil
	}
	if err != nil {
		c.markFailed(ctx, key, err.Error())
		return "", err
	}
	o.Status = orders.StatusConfirmed
	o.GatewayPaymentID = paymentID

	if c.notifier != nil {
		if err := c.notifier.OrderConfirmed(ctx, o); err != nil {
			c.log.ErrorContext(ctx, "order confirmation email failed", "order_code", o.Code, "error", err)
		}
	}
	if err := c.idem.MarkDone(ctx, key, string(OutcomeConfirmed)); err != nil {
		return "", err
	}
	c.metrics.Count(ctx, metrics.PaymentsConfirmed, nil)
	c.log.InfoContext(ctx, "payment confirmed", "order_code", o.Code, "payment_id", paymentID)
	return OutcomeConfirmed, nil
}

func (c *Coordinator) current(ctx context.Context, id string) (*orders.Order, error) {
	o, err := c.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, apperr.NotFound("Order not found")
	}
	return o, nil
}

func (c *Coordinator) reject(ctx context.Context, o *orders.Order, reason string) {
	c.metrics.Count(ctx, metrics.PaymentsRejected, map[string]string{"Reason": reason})
	c.log.WarnContext(ctx, "payment rejected", "order_code", o.Code, "reason", reason)
}

func (c *Coordinator) markFailed(ctx context.Context, key, note string) {
	if err := c.idem.MarkFailed(ctx, key, note); err != nil {
		c.log.WarnContext(ctx, "mark idempotency failed", "key", key, "error", err)
	}
}
