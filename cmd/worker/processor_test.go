package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/app"
	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/aws"
	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/aws/awstest"
	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/config"
	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/idempotency"
	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/logger"
	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/mail"
	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/otp"
	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/payment"
)

var issued = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

type harness struct {
	p   *Processor
	a   *app.App
	db  *awstest.Dynamo
	ses *awstest.SES
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := &config.Config{Environment: "test"}
	cfg.Tables.Orders = "orders"
	cfg.Tables.OrderCodes = "order-codes"
	cfg.Tables.OTP = "otp"
	cfg.Tables.Idempotency = "idempotency"
	cfg.OTP.TTLSeconds = 300
	cfg.Mail.From = "orders@honeypalace.in"
	cfg.Mail.StoreName = "Honey Palace"
	cfg.Idempotency.TTLHours = 48
	cfg.Metrics.Disabled = true

	db := awstest.NewDynamo()
	db.CreateTable("otp", "email", "issued_at")
	db.CreateTable("idempotency", "idempotency_key", "")
	ses := &awstest.SES{}

	clients := &aws.AWSClients{DynamoDB: db, SQS: &awstest.SQS{}, CloudWatch: &awstest.CloudWatch{}, SES: ses}
	a := app.New(cfg, clients, payment.NewRazorpayGateway("key", "secret"), logger.Nop())
	p := NewProcessor(a)
	p.nowFunc = func() time.Time { return issued.Add(time.Minute) }
	return &harness{p: p, a: a, db: db, ses: ses}
}

func (h *harness) seed(t *testing.T, recipients ...string) otp.Challenge {
	t.Helper()
	c := otp.Challenge{
		Email:      recipients[0],
		IssuedAt:   issued.UnixMilli(),
		Code:       "042137",
		Recipients: recipients,
		OrderCode:  "HP-2026-007",
		ExpiresAt:  issued.Add(5 * time.Minute).Unix(),
	}
	if err := h.a.OTPStore.Put(context.Background(), c); err != nil {
		t.Fatalf("seed challenge: %v", err)
	}
	return c
}

func event(t *testing.T, c otp.Challenge) events.SQSEvent {
	t.Helper()
	body, err := json.Marshal(otp.DispatchMessage{Email: c.Email, IssuedAt: c.IssuedAt})
	if err != nil {
		t.Fatal(err)
	}
	typ := otp.MessageTypeDispatch
	return events.SQSEvent{Records: []events.SQSMessage{{
		MessageId: "m1",
		Body:      string(body),
		MessageAttributes: map[string]events.SQSMessageAttribute{
			"type": {StringValue: &typ, DataType: "String"},
		},
	}}}
}

func TestWorkerProcess_Success(t *testing.T) {
	h := newHarness(t)
	c := h.seed(t, "asha@example.com", "account@example.com")

	if err := h.p.Handle(context.Background(), event(t, c)); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(h.ses.Inputs) != 2 {
		t.Fatalf("expected 2 emails, got %d", len(h.ses.Inputs))
	}

	for _, to := range c.Recipients {
		rec, err := h.a.Idempotency.Get(context.Background(), idempotency.OTPDispatchKey(c.Email, c.Issued(), to))
		if err != nil || !rec.Done() {
			t.Fatalf("%s: expected DONE record, got %+v err=%v", to, rec, err)
		}
	}
}

func TestWorkerProcess_DuplicateMessageSendsOnce(t *testing.T) {
	h := newHarness(t)
	c := h.seed(t, "asha@example.com")
	ev := event(t, c)

	for i := 0; i < 3; i++ {
		if err := h.p.Handle(context.Background(), ev); err != nil {
			t.Fatalf("Handle #%d: %v", i, err)
		}
	}
	if len(h.ses.Inputs) != 1 {
		t.Fatalf("expected 1 email, got %d", len(h.ses.Inputs))
	}
}

func TestWorkerProcess_RetryAfterSendFailure(t *testing.T) {
	h := newHarness(t)
	c := h.seed(t, "asha@example.com")
	ev := event(t, c)

	h.ses.Err = errors.New("throttled")
	if err := h.p.Handle(context.Background(), ev); err == nil {
		t.Fatal("expected error so the message is retried")
	}
	rec, _ := h.a.Idempotency.Get(context.Background(), idempotency.OTPDispatchKey(c.Email, c.Issued(), c.Email))
	if rec == nil || rec.Status != idempotency.StatusFailed {
		t.Fatalf("expected FAILED record, got %+v", rec)
	}

	h.ses.Err = nil
	if err := h.p.Handle(context.Background(), ev); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(h.ses.Inputs) != 1 {
		t.Fatalf("expected 1 email after retry, got %d", len(h.ses.Inputs))
	}
}

func TestWorkerProcess_SkipsConsumedAndExpired(t *testing.T) {
	h := newHarness(t)
	c := h.seed(t, "asha@example.com")

	h.p.nowFunc = func() time.Time { return issued.Add(5*time.Minute + time.Second) }
	if err := h.p.Handle(context.Background(), event(t, c)); err != nil {
		t.Fatalf("expired: %v", err)
	}

	if _, err := h.a.OTPStore.Consume(context.Background(), c); err != nil {
		t.Fatal(err)
	}
	h.p.nowFunc = func() time.Time { return issued }
	if err := h.p.Handle(context.Background(), event(t, c)); err != nil {
		t.Fatalf("consumed: %v", err)
	}

	if len(h.ses.Inputs) != 0 {
		t.Fatalf("expected no email, got %d", len(h.ses.Inputs))
	}
}

func TestWorkerProcess_BadMessages(t *testing.T) {
	h := newHarness(t)

	bad := events.SQSEvent{Records: []events.SQSMessage{{MessageId: "m1", Body: "{"}}}
	if err := h.p.Handle(context.Background(), bad); err == nil {
		t.Fatal("expected error for malformed body")
	}

	other := "order_event"
	unknown := events.SQSEvent{Records: []events.SQSMessage{{
		MessageId:         "m2",
		Body:              "{}",
		MessageAttributes: map[string]events.SQSMessageAttribute{"type": {StringValue: &other}},
	}}}
	if err := h.p.Handle(context.Background(), unknown); err != nil {
		t.Fatalf("unknown type should be skipped: %v", err)
	}
}

// flakySES rejects mail to one address.
type flakySES struct {
	*awstest.SES
	reject string
}

func (f *flakySES) SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	if f.reject != "" && in.Destination.ToAddresses[0] == f.reject {
		return nil, errors.New("mailbox unavailable")
	}
	return f.SES.SendEmail(ctx, in, optFns...)
}

func TestWorkerProcess_RetryOnlyMailsFailedRecipient(t *testing.T) {
	h := newHarness(t)
	c := h.seed(t, "asha@example.com", "account@example.com")
	ev := event(t, c)

	flaky := &flakySES{SES: h.ses, reject: "account@example.com"}
	h.p.dispatcher = otp.NewMailDispatcher(mail.NewSESSender(flaky, "orders@honeypalace.in"), "Honey Palace", 5*time.Minute)

	if err := h.p.Handle(context.Background(), ev); err == nil {
		t.Fatal("expected error so the message is retried")
	}
	if len(h.ses.Inputs) != 1 {
		t.Fatalf("expected 1 email before retry, got %d", len(h.ses.Inputs))
	}

	flaky.reject = ""
	if err := h.p.Handle(context.Background(), ev); err != nil {
		t.Fatalf("retry: %v", err)
	}
	counts := map[string]int{}
	for _, in := range h.ses.Inputs {
		counts[in.Destination.ToAddresses[0]]++
	}
	if counts["asha@example.com"] != 1 || counts["account@example.com"] != 1 {
		t.Fatalf("expected one email per recipient, got %v", counts)
	}
}
