package idempotency

import "time"

// Status values for idempotency entries
const (
	StatusInProgress = "IN_PROGRESS"
	StatusDone       = "DONE"
	StatusFailed     = "FAILED"
)

// Key prefixes for the operations guarded by the store.
const (
	PaymentPrefix     = "payment#"
	OTPDispatchPrefix = "otp-dispatch#"
)

// PaymentKey is the key guarding reconciliation of one gateway payment.
func PaymentKey(paymentID string) string { return PaymentPrefix + paymentID }

// OTPDispatchKey is the key guarding delivery of one OTP challenge to one
// recipient.
func OTPDispatchKey(email string, issuedAt time.Time, recipient string) string {
	return OTPDispatchPrefix + email + "#" + issuedAt.UTC().Format(time.RFC3339Nano) + "#" + recipient
}

// Record is the shape persisted in the idempotency DynamoDB table.
type Record struct {
	IdempotencyKey string    `dynamodbav:"idempotency_key"` // PK
	Status         string    `dynamodbav:"status"`
	OrderID        string    `dynamodbav:"order_id,omitempty"`
	Outcome        string    `dynamodbav:"outcome,omitempty"` // e.g. "confirmed"
	CreatedAt      time.Time `dynamodbav:"created_at"`
	UpdatedAt      time.Time `dynamodbav:"updated_at"`
	ExpiresAt      int64     `dynamodbav:"expires_at"` // TTL epoch seconds
	Note           string    `dynamodbav:"note,omitempty"`
}

// Done reports whether the guarded operation completed.
func (r *Record) Done() bool { return r != nil && r.Status == StatusDone }
