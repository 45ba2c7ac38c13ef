package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"golang.org/x/sync/errgroup"

	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/app"
	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/idempotency"
	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/otp"
)

// recipientSender mails one challenge to one recipient.
type recipientSender interface {
	DispatchTo(ctx context.Context, c otp.Challenge, to string) error
}

// Processor delivers queued OTP challenges.
type Processor struct {
	challenges *otp.Store
	idemp      *idempotency.Store
	dispatcher recipientSender
	ttl        time.Duration
	log        *slog.Logger
	nowFunc    func() time.Time
}

// NewProcessor builds a processor on the wired application.
func NewProcessor(a *app.App) *Processor {
	return &Processor{
		challenges: a.OTPStore,
		idemp:      a.Idempotency,
		dispatcher: a.Mail,
		ttl:        a.OTP.TTL(),
		log:        a.Logger,
		nowFunc:    time.Now,
	}
}

// Handle processes an SQS batch. The first failure is returned so the
// runtime retries the batch; delivered challenges are skipped on retry.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) error {
	p.log.InfoContext(ctx, "received sqs batch", "records", len(ev.Records))
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			p.log.ErrorContext(ctx, "worker error", "message_id", rec.MessageId, "error", err)
			return err
		}
	}
	return nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	if t := messageType(rec); t != otp.MessageTypeDispatch {
		p.log.WarnContext(ctx, "skipping unknown message type", "type", t, "message_id", rec.MessageId)
		return nil
	}

	var msg otp.DispatchMessage
	if err := json.Unmarshal([]byte(rec.Body), &msg); err != nil {
		return fmt.Errorf("invalid message body: %w", err)
	}
	if msg.Email == "" || msg.IssuedAt == 0 {
		return fmt.Errorf("invalid message body: email and issued_at are required")
	}

	c, err := p.challenges.Get(ctx, msg.Email, msg.IssuedAt)
	if err != nil {
		return fmt.Errorf("failed to fetch challenge: %w", err)
	}
	if c == nil {
		p.log.InfoContext(ctx, "challenge already consumed", "email", msg.Email)
		return nil
	}
	if c.ExpiredAt(p.nowFunc(), p.ttl) {
		p.log.InfoContext(ctx, "challenge expired before delivery", "email", msg.Email, "order_code", c.OrderCode)
		return nil
	}

	// recipients are tracked separately so a retry only mails the ones
	// that failed
	var g errgroup.Group
	for _, to := range c.Recipients {
		to := to
		g.Go(func() error {
			return p.deliver(ctx, *c, to)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	p.log.InfoContext(ctx, "otp delivered", "order_code", c.OrderCode, "recipients", len(c.Recipients))
	return nil
}

func (p *Processor) deliver(ctx context.Context, c otp.Challenge, to string) error {
	key := idempotency.OTPDispatchKey(c.Email, c.Issued(), to)
	_, done, err := p.idemp.Claim(ctx, key, c.OrderCode)
	switch {
	case errors.Is(err, idempotency.ErrInProgress):
		// another invocation is sending it
		p.log.InfoContext(ctx, "duplicate dispatch event", "key", key)
		return nil
	case err != nil:
		return fmt.Errorf("failed to claim dispatch: %w", err)
	case done:
		p.log.InfoContext(ctx, "challenge already delivered", "key", key)
		return nil
	}

	if err := p.dispatcher.DispatchTo(ctx, c, to); err != nil {
		if mErr := p.idemp.MarkFailed(ctx, key, err.Error()); mErr != nil {
			p.log.ErrorContext(ctx, "failed to release dispatch claim", "key", key, "error", mErr)
		}
		return fmt.Errorf("failed to dispatch otp: %w", err)
	}
	if err := p.idemp.MarkDone(ctx, key, "sent"); err != nil {
		return fmt.Errorf("failed to update idempotency: %w", err)
	}
	return nil
}
