// Package otp issues and verifies one-time passcodes that prove a customer
// controls the email address on an order.
package otp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/apperr"
)

// Digits is the fixed width of a code.
const Digits = 6

// DefaultTTL is how long a challenge stays valid after issuance.
const DefaultTTL = 5 * time.Minute

var (
	// ErrInvalid is returned when no challenge matches the email and code.
	ErrInvalid = apperr.New(apperr.KindOTPInvalid, "Invalid OTP")
	// ErrExpired is returned when the matching challenge is past its window.
	ErrExpired = apperr.New(apperr.KindOTPExpired, "OTP expired")
)

// Challenge is one issued code, stored under the primary recipient.
type Challenge struct {
	Email      string   `dynamodbav:"email"`     // PK
	IssuedAt   int64    `dynamodbav:"issued_at"` // SK, unix milliseconds
	Code       string   `dynamodbav:"code"`
	Recipients []string `dynamodbav:"recipients"`
	OrderCode  string   `dynamodbav:"order_code,omitempty"`
	ExpiresAt  int64    `dynamodbav:"expires_at"` // TTL epoch seconds
}

// Issued returns the issuance time.
func (c Challenge) Issued() time.Time { return time.UnixMilli(c.IssuedAt).UTC() }

// ExpiredAt reports whether now is past the validity window.
func (c Challenge) ExpiredAt(now time.Time, ttl time.Duration) bool {
	return now.Sub(c.Issued()) > ttl
}

// FormatCode renders n as a zero-padded code.
func FormatCode(n int) string {
	return fmt.Sprintf("%0*d", Digits, n)
}

// NormalizeCode parses a submitted code numerically so "012345" and 12345
// compare equal. It returns "" for anything that cannot be a code.
func NormalizeCode(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return ""
	}
	code := FormatCode(int(n))
	if len(code) != Digits {
		return ""
	}
	return code
}

// Code is a submitted code. It decodes from a JSON string or number.
type Code string

func (c *Code) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*c = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = Code(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("otp must be a string or number: %w", err)
	}
	*c = Code(n.String())
	return nil
}

// String returns the raw submitted value.
func (c Code) String() string { return string(c) }
