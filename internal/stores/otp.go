package stores

import (
	"context"
	"errors"
	"time"
)

var (
	ErrOTPNotFound     = errors.New("otp record not found")
	ErrOTPCodeMismatch = errors.New("otp code mismatch")
	ErrOTPBackend      = errors.New("otp backend unavailable")
)

// OTPRecord is one live code for a (Phone, Purpose) key.
type OTPRecord struct {
	Phone     string
	Purpose   string
	Code      string
	CreatedAt time.Time
}

// OTPStore persists OTP records keyed by (phone, purpose).
//
// Implementations must make Consume atomic with respect to other Consume and
// Replace calls on the same key.
type OTPStore interface {
	// Replace removes any record for the key and stores record. A positive
	// ttl bounds how long the record lives; zero keeps it until consumed.
	Replace(ctx context.Context, record *OTPRecord, ttl time.Duration) error
	// Get returns ErrOTPNotFound when no record exists.
	Get(ctx context.Context, phone, purpose string) (*OTPRecord, error)
	// Consume deletes and returns the record when code matches exactly.
	// It returns ErrOTPCodeMismatch (record kept) or ErrOTPNotFound.
	Consume(ctx context.Context, phone, purpose, code string) (*OTPRecord, error)
	// Delete is a no-op when no record exists.
	Delete(ctx context.Context, phone, purpose string) error
}

func otpKey(prefix, phone, purpose string) string {
	return prefix + ":" + purpose + ":" + phone
}
