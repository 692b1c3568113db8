package goPhoneAuth

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPhone is returned when no candidate in a raw phone string is recognized.
	ErrInvalidPhone = errors.New("invalid phone number")
	// ErrInvalidOTP is returned when an empty or oversized code is set.
	ErrInvalidOTP = errors.New("invalid otp")
	// ErrNoOTPSet is returned when no live code exists for (phone, purpose).
	ErrNoOTPSet = errors.New("user has no otp set")
	// ErrIncorrectOTP is returned when the supplied code differs from the stored one.
	ErrIncorrectOTP = errors.New("incorrect otp")
	// ErrMultipleUsers is returned when more than one account holds the same verified phone.
	ErrMultipleUsers = errors.New("multiple users with same phone")
	// ErrUnexpectedUser matches *UnexpectedUserError.
	ErrUnexpectedUser = errors.New("already a user exists with this number")
	// ErrInsertFailed is returned when the account store did not produce an id.
	ErrInsertFailed = errors.New("failed to insert new user")
	// ErrPhoneAlreadyRegistered is returned when another account already holds the phone.
	ErrPhoneAlreadyRegistered = errors.New("user exists with given phone number")
	// ErrUserNotFound is returned by account lookups that find nothing.
	ErrUserNotFound = errors.New("user not found")
	// ErrOTPStoreUnavailable wraps OTP backend failures.
	ErrOTPStoreUnavailable = errors.New("otp store unavailable")
	// ErrAccountStoreUnavailable wraps account backend failures.
	ErrAccountStoreUnavailable = errors.New("account store unavailable")
	// ErrEngineNotReady is returned by methods called on a nil or partially built Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrNoLoginStrategy is returned when every registered strategy abstained.
	ErrNoLoginStrategy = errors.New("no login strategy accepted the request")
)

// UnexpectedUserError reports that a phone resolved to an account other than
// the one the caller expected. errors.Is(err, ErrUnexpectedUser) holds.
type UnexpectedUserError struct {
	ExistingUserID string
	ExpectedUserID string
}

func (e *UnexpectedUserError) Error() string {
	return fmt.Sprintf("%s: existing user %q, expected %q", ErrUnexpectedUser.Error(), e.ExistingUserID, e.ExpectedUserID)
}

func (e *UnexpectedUserError) Is(target error) bool {
	return target == ErrUnexpectedUser
}
