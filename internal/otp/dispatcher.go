package otp

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/aws"
	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/mail"
)

// MessageTypeDispatch tags OTP dispatch messages on the queue.
const MessageTypeDispatch = "otp_dispatch"

// Dispatcher delivers an issued challenge to its recipients.
type Dispatcher interface {
	Dispatch(ctx context.Context, c Challenge) error
}

// MailDispatcher emails the code to every recipient concurrently.
type MailDispatcher struct {
	sender    mail.Sender
	storeName string
	ttl       time.Duration
}

// NewMailDispatcher returns a Dispatcher that sends through sender.
func NewMailDispatcher(sender mail.Sender, storeName string, ttl time.Duration) *MailDispatcher {
	return &MailDispatcher{sender: sender, storeName: storeName, ttl: ttl}
}

func (d *MailDispatcher) Dispatch(ctx context.Context, c Challenge) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, to := range c.Recipients {
		to := to
		g.Go(func() error {
			return d.DispatchTo(gctx, c, to)
		})
	}
	return g.Wait()
}

// DispatchTo emails the code of c to a single recipient.
func (d *MailDispatcher) DispatchTo(ctx context.Context, c Challenge, to string) error {
	msg, err := mail.OTPMessage(mail.OTPData{
		Store:     d.storeName,
		Code:      c.Code,
		OrderCode: c.OrderCode,
		TTL:       d.ttl,
	})
	if err != nil {
		return err
	}
	if err := d.sender.Send(ctx, to, msg); err != nil {
		return fmt.Errorf("send otp to %s: %w", to, err)
	}
	return nil
}

// DispatchMessage is the queue payload. It references the stored challenge
// so the code itself never travels through the queue.
type DispatchMessage struct {
	Email    string `json:"email"`
	IssuedAt int64  `json:"issued_at"`
}

// QueueDispatcher enqueues challenges for the worker to deliver.
type QueueDispatcher struct {
	publisher *aws.Publisher
}

// NewQueueDispatcher returns a Dispatcher that publishes to the OTP queue.
func NewQueueDispatcher(publisher *aws.Publisher) *QueueDispatcher {
	return &QueueDispatcher{publisher: publisher}
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, c Challenge) error {
	msg := DispatchMessage{Email: c.Email, IssuedAt: c.IssuedAt}
	return d.publisher.SendJSON(ctx, msg, map[string]string{
		"type":       MessageTypeDispatch,
		"order_code": c.OrderCode,
	})
}
