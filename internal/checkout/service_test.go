package checkout

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/apperr"
	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/aws/awstest"
	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/idempotency"
	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/logger"
	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/mail"
	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/metrics"
	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/orders"
	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/otp"
	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/payment"
	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/validation"
)

const secret = "rzp_test_secret"

var codeRe = regexp.MustCompile(`^HP-\d{4}-\d{3,}$`)

type stubGateway struct {
	calls int
	err   error
}

func (g *stubGateway) CreateOrder(_ context.Context, amount int64, currency, receipt string) (payment.Intent, error) {
	g.calls++
	if g.err != nil {
		return payment.Intent{}, g.err
	}
	return payment.Intent{ID: "order_" + strings.ReplaceAll(receipt, "-", "")[:14], Amount: amount, Currency: currency, Receipt: receipt}, nil
}

func (g *stubGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return payment.VerifySignature(secret, orderID, paymentID, signature)
}

type harness struct {
	svc     *Service
	db      *awstest.Dynamo
	ses     *awstest.SES
	gateway *stubGateway
	orders  *orders.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := awstest.NewDynamo()
	db.CreateTable("orders", "id", "")
	db.AddIndex("orders", orders.CodeIndex, "order_code", "")
	db.AddIndex("orders", orders.GatewayOrderIDIndex, "gateway_order_id", "")
	db.CreateTable("order-codes", "order_code", "")
	db.AddIndex("order-codes", orders.YearSeqIndex, "year", "seq")
	db.CreateTable("otp", "email", "issued_at")
	db.CreateTable("idempotency", "idempotency_key", "")

	log := logger.Nop()
	ses := &awstest.SES{}
	sender := mail.NewSESSender(ses, "orders@honeypalace.in")
	orderStore := orders.NewStore(db, "orders", "order-codes")
	otpSvc := otp.NewService(otp.NewStore(db, "otp"), otp.NewMailDispatcher(sender, "Honey Palace", otp.DefaultTTL), otp.DefaultTTL, metrics.Nop{}, log)
	notifier := NewConfirmations(orderStore, sender, "Honey Palace")
	gw := &stubGateway{}
	coord := payment.NewCoordinator(payment.CoordinatorConfig{
		Gateway:     gw,
		Orders:      orderStore,
		Idempotency: idempotency.NewStore(db, "idempotency", time.Hour),
		Notifier:    notifier,
		Metrics:     metrics.Nop{},
		Logger:      log,
		KeyID:       "rzp_test_key",
	})
	svc := NewService(Config{
		Orders:           orderStore,
		OTP:              otpSvc,
		Payments:         coord,
		Notifier:         notifier,
		Metrics:          metrics.Nop{},
		Logger:           log,
		CodePrefix:       "HP",
		AllocateAttempts: 3,
		DebugEcho:        true,
	})
	return &harness{svc: svc, db: db, ses: ses, gateway: gw, orders: orderStore}
}

func (h *harness) mailsTo(addr string) []string {
	var bodies []string
	for _, in := range h.ses.Inputs {
		if in.Destination.ToAddresses[0] == addr {
			bodies = append(bodies, *in.Content.Simple.Body.Text.Data)
		}
	}
	return bodies
}

func orderRequest(method string, total float64) validation.CreateOrderRequest {
	return validation.CreateOrderRequest{
		Items: []validation.Item{{ProductID: "wild-honey-500", Name: "Wild Honey 500g", Quantity: 1, Price: total}},
		Customer: validation.Customer{
			Name: "Asha", Email: "Asha@Example.com", Phone: "9876543210",
			Address: "1 Hive Rd", City: "Kochi", State: "Kerala", Pincode: "682001",
		},
		PaymentMethod: method,
		Total:         total,
	}
}

func TestPlaceOrder_COD(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.svc.PlaceOrder(ctx, orderRequest("cod", 350))
	require.NoError(t, err)

	assert.Regexp(t, codeRe, res.Order.Code)
	assert.Equal(t, orders.StatusProcessing, res.Order.Status)
	assert.Nil(t, res.Checkout)
	assert.Zero(t, h.gateway.calls, "cod never touches the gateway")
	assert.Equal(t, "asha@example.com", res.Order.Customer.Email)

	mails := h.mailsTo("asha@example.com")
	require.Len(t, mails, 1)
	assert.Contains(t, mails[0], res.OTP)
}

func TestPlaceOrder_UPI(t *testing.T) {
	h := newHarness(t)
	res, err := h.svc.PlaceOrder(context.Background(), orderRequest("upi", 500))
	require.NoError(t, err)

	assert.Equal(t, orders.StatusPendingPayment, res.Order.Status)
	require.NotNil(t, res.Checkout)
	assert.Equal(t, int64(50000), res.Checkout.Intent.Amount)
	assert.Equal(t, "INR", res.Checkout.Intent.Currency)
	assert.Equal(t, res.Order.ID, res.Checkout.Intent.Receipt)
	assert.Equal(t, "rzp_test_key", res.Checkout.KeyID)
	assert.Equal(t, res.Checkout.Intent.ID, res.Order.GatewayOrderID)
}

func TestPlaceOrder_GatewayFailurePersistsNothing(t *testing.T) {
	h := newHarness(t)
	h.gateway.err = errors.New("gateway down")

	_, err := h.svc.PlaceOrder(context.Background(), orderRequest("upi", 500))
	require.Error(t, err)
	assert.Equal(t, apperr.KindDependency, apperr.Kind(err))
	assert.Empty(t, h.db.Items("orders"))
	assert.Empty(t, h.db.Items("otp"))
	assert.Empty(t, h.ses.Inputs)
}

func TestPlaceOrder_MailFailureKeepsOrder(t *testing.T) {
	h := newHarness(t)
	h.ses.Err = errors.New("ses throttled")

	res, err := h.svc.PlaceOrder(context.Background(), orderRequest("cod", 350))
	require.Error(t, err)
	assert.Equal(t, apperr.KindDependency, apperr.Kind(err))
	require.NotNil(t, res.Order)
	assert.Len(t, h.db.Items("orders"), 1)
}

func TestPlaceOrder_NotifiesAccountEmail(t *testing.T) {
	h := newHarness(t)
	req := orderRequest("cod", 350)
	req.AccountEmail = "login@example.com"

	res, err := h.svc.PlaceOrder(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, h.mailsTo("asha@example.com"), 1)
	assert.Len(t, h.mailsTo("login@example.com"), 1)
	assert.Contains(t, h.mailsTo("login@example.com")[0], res.OTP)
}

func TestVerifyOrder_COD(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	placed, err := h.svc.PlaceOrder(ctx, orderRequest("cod", 350))
	require.NoError(t, err)

	res, err := h.svc.VerifyOrder(ctx, validation.VerifyOrderRequest{OrderID: placed.Order.Code, OTP: otp.Code(placed.OTP)})
	require.NoError(t, err)
	assert.True(t, res.Verified)
	assert.True(t, res.Finalized)
	assert.Nil(t, res.Checkout)
	assert.Zero(t, h.gateway.calls)
	assert.NotNil(t, res.Order.ConfirmationSentAt)

	// one OTP mail plus one confirmation
	assert.Len(t, h.mailsTo("asha@example.com"), 2)
}

func TestVerifyOrder_WrongOTP(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	placed, err := h.svc.PlaceOrder(ctx, orderRequest("cod", 350))
	require.NoError(t, err)

	wrong := "100000"
	if placed.OTP == wrong {
		wrong = "100001"
	}
	_, err = h.svc.VerifyOrder(ctx, validation.VerifyOrderRequest{OrderID: placed.Order.ID, OTP: otp.Code(wrong)})
	require.ErrorIs(t, err, otp.ErrInvalid)

	o, err := h.orders.Get(ctx, placed.Order.ID)
	require.NoError(t, err)
	assert.False(t, o.OTPVerified())
}

func TestVerifyOrder_UPIEndToEnd(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	placed, err := h.svc.PlaceOrder(ctx, orderRequest("upi", 500))
	require.NoError(t, err)

	res, err := h.svc.VerifyOrder(ctx, validation.VerifyOrderRequest{OrderID: placed.Order.Code, OTP: otp.Code(placed.OTP)})
	require.NoError(t, err)
	assert.True(t, res.Verified)
	assert.False(t, res.Finalized)
	require.NotNil(t, res.Checkout)
	assert.Equal(t, int64(50000), res.Checkout.Intent.Amount)

	gid := placed.Order.GatewayOrderID
	res, err = h.svc.VerifyOrder(ctx, validation.VerifyOrderRequest{
		OrderID:           placed.Order.Code,
		RazorpayOrderID:   gid,
		RazorpayPaymentID: "pay_1",
		RazorpaySignature: payment.Sign(secret, gid, "pay_1"),
	})
	require.NoError(t, err)
	assert.Equal(t, payment.OutcomeConfirmed, res.Payment)
	assert.True(t, res.Finalized)
	assert.Equal(t, orders.StatusConfirmed, res.Order.Status)
	assert.Equal(t, "pay_1", res.Order.GatewayPaymentID)
}

func TestVerifyOrder_UPIAbandoned(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	placed, err := h.svc.PlaceOrder(ctx, orderRequest("upi", 500))
	require.NoError(t, err)

	res, err := h.svc.VerifyOrder(ctx, validation.VerifyOrderRequest{
		OrderID:         placed.Order.ID,
		RazorpayOrderID: placed.Order.GatewayOrderID,
		PaymentFailed:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, payment.OutcomeAbandoned, res.Payment)
	assert.False(t, res.Finalized)
	assert.Equal(t, orders.StatusCanceled, res.Order.Status)
}

func TestVerifyOrder_RequiresOTPOrPayment(t *testing.T) {
	h := newHarness(t)
	placed, err := h.svc.PlaceOrder(context.Background(), orderRequest("cod", 350))
	require.NoError(t, err)

	_, err = h.svc.VerifyOrder(context.Background(), validation.VerifyOrderRequest{OrderID: placed.Order.Code})
	assert.Equal(t, apperr.KindValidation, apperr.Kind(err))

	_, err = h.svc.VerifyOrder(context.Background(), validation.VerifyOrderRequest{OrderID: "HP-1999-001", OTP: "123456"})
	assert.Equal(t, apperr.KindNotFound, apperr.Kind(err))
}

func TestUpdateStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	placed, err := h.svc.PlaceOrder(ctx, orderRequest("cod", 350))
	require.NoError(t, err)

	o, err := h.svc.UpdateStatus(ctx, placed.Order.Code, "confirmed")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusConfirmed, o.Status)

	_, err = h.svc.UpdateStatus(ctx, placed.Order.Code, "Shipped")
	assert.Equal(t, apperr.KindValidation, apperr.Kind(err))

	_, err = h.svc.UpdateStatus(ctx, "HP-2000-001", "Canceled")
	assert.Equal(t, apperr.KindNotFound, apperr.Kind(err))
}

func TestGetOrder_ByAnyReference(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	placed, err := h.svc.PlaceOrder(ctx, orderRequest("upi", 500))
	require.NoError(t, err)

	for _, ref := range []string{placed.Order.ID, placed.Order.Code, placed.Order.GatewayOrderID} {
		o, err := h.svc.GetOrder(ctx, ref)
		require.NoError(t, err, ref)
		assert.Equal(t, placed.Order.ID, o.ID)
	}
	_, err = h.svc.GetOrder(ctx, "nope")
	assert.Equal(t, apperr.KindNotFound, apperr.Kind(err))
}

func TestSendOTP_ReissueForOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.ses.Err = errors.New("ses throttled")
	placed, err := h.svc.PlaceOrder(ctx, orderRequest("cod", 350))
	require.Error(t, err)
	h.ses.Err = nil

	_, err = h.svc.SendOTP(ctx, validation.SendOTPRequest{Email: "someone@else.com", OrderID: placed.Order.Code})
	assert.Equal(t, apperr.KindValidation, apperr.Kind(err))

	ch, err := h.svc.SendOTP(ctx, validation.SendOTPRequest{Email: "asha@example.com", OrderID: placed.Order.Code})
	require.NoError(t, err)
	assert.Equal(t, placed.Order.Code, ch.OrderCode)

	res, err := h.svc.VerifyOrder(ctx, validation.VerifyOrderRequest{OrderID: placed.Order.Code, OTP: otp.Code(ch.Code)})
	require.NoError(t, err)
	assert.True(t, res.Finalized)
}

func TestStandaloneOTP(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ch, err := h.svc.SendOTP(ctx, validation.SendOTPRequest{Email: "guest@example.com"})
	require.NoError(t, err)

	require.NoError(t, h.svc.VerifyOTP(ctx, "guest@example.com", ch.Code))
	require.ErrorIs(t, h.svc.VerifyOTP(ctx, "guest@example.com", ch.Code), otp.ErrInvalid)
}

func TestService_ClockIsUTC(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, time.UTC, h.svc.nowFunc().Location())
	assert.Equal(t, time.UTC, NewConfirmations(h.orders, nil, "Honey Palace").nowFunc().Location())
}
