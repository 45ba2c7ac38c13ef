package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"log/slog"
	"math/big"
	"time"

	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/apperr"
	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/metrics"
	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/orders"
)

// Service issues and verifies challenges.
type Service struct {
	store      *Store
	dispatcher Dispatcher
	ttl        time.Duration
	metrics    metrics.Recorder
	log        *slog.Logger
	nowFunc    func() time.Time
	codeFunc   func() (string, error)
}

// NewService wires a Service. A zero ttl means DefaultTTL.
func NewService(store *Store, dispatcher Dispatcher, ttl time.Duration, rec metrics.Recorder, log *slog.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		store:      store,
		dispatcher: dispatcher,
		ttl:        ttl,
		metrics:    rec,
		log:        log,
		nowFunc:    time.Now,
		codeFunc:   randomCode,
	}
}

// TTL is the validity window of issued challenges.
func (s *Service) TTL() time.Duration { return s.ttl }

// Issue generates one code, stores it under the first recipient and
// dispatches it to every distinct recipient. A dispatch failure is returned
// as a dependency error; the stored challenge stays valid.
func (s *Service) Issue(ctx context.Context, recipients []string, orderCode string) (Challenge, error) {
	rcpts := dedupe(recipients)
	if len(rcpts) == 0 {
		return Challenge{}, apperr.Validation("email is required")
	}
	code, err := s.codeFunc()
	if err != nil {
		return Challenge{}, err
	}

	now := s.nowFunc()
	c := Challenge{
		Email:      rcpts[0],
		IssuedAt:   now.UnixMilli(),
		Code:       code,
		Recipients: rcpts,
		OrderCode:  orderCode,
		ExpiresAt:  now.Add(s.ttl).Unix(),
	}
	if err := s.store.Put(ctx, c); err != nil {
		return Challenge{}, err
	}
	s.metrics.Count(ctx, metrics.OTPIssued, nil)

	if err := s.dispatcher.Dispatch(ctx, c); err != nil {
		s.log.ErrorContext(ctx, "otp dispatch failed", "email", c.Email, "order_code", orderCode, "error", err)
		return c, apperr.Dependency("failed to send OTP", err)
	}
	s.log.InfoContext(ctx, "otp issued", "email", c.Email, "recipients", len(rcpts), "order_code", orderCode)
	return c, nil
}

// Verify consumes the challenge matching email and code. Expired matches are
// deleted and reported as ErrExpired.
func (s *Service) Verify(ctx context.Context, email, code string) (Challenge, error) {
	email = orders.NormalizeEmail(email)
	norm := NormalizeCode(code)
	if email == "" || norm == "" {
		s.reject(ctx, "invalid")
		return Challenge{}, ErrInvalid
	}

	matches, err := s.store.FindByCode(ctx, email, norm)
	if err != nil {
		return Challenge{}, err
	}
	if len(matches) == 0 {
		s.reject(ctx, "invalid")
		return Challenge{}, ErrInvalid
	}

	c := matches[0]
	now := s.nowFunc()
	if c.ExpiredAt(now, s.ttl) {
		if _, err := s.store.Consume(ctx, c); err != nil {
			s.log.WarnContext(ctx, "delete expired otp failed", "email", email, "error", err)
		}
		s.reject(ctx, "expired")
		return Challenge{}, ErrExpired
	}

	ok, err := s.store.Consume(ctx, c)
	if err != nil {
		return Challenge{}, err
	}
	if !ok {
		s.reject(ctx, "invalid")
		return Challenge{}, ErrInvalid
	}
	s.metrics.Count(ctx, metrics.OTPVerified, nil)
	return c, nil
}

func (s *Service) reject(ctx context.Context, reason string) {
	s.metrics.Count(ctx, metrics.OTPRejected, map[string]string{"Reason": reason})
}

// IsRejection reports whether err is an OTP mismatch or expiry.
func IsRejection(err error) bool {
	return errors.Is(err, ErrInvalid) || errors.Is(err, ErrExpired)
}

func dedupe(recipients []string) []string {
	seen := make(map[string]bool, len(recipients))
	out := make([]string, 0, len(recipients))
	for _, r := range recipients {
		r = orders.NormalizeEmail(r)
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}

var codeRange = big.NewInt(900000)

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeRange)
	if err != nil {
		return "", err
	}
	return FormatCode(int(n.Int64()) + 100000), nil
}
