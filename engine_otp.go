package goPhoneAuth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/MrEthical07/goPhoneAuth/internal"
	"github.com/MrEthical07/goPhoneAuth/internal/stores"
	"go.uber.org/zap"
)

// VerifyRequest is the input to [Engine.VerifyPhoneOTP]. An empty Purpose
// selects the login purpose.
type VerifyRequest struct {
	Phone   string
	OTP     string
	Purpose string
}

// SanitizePhone returns the canonical form of raw, or "" and false when no
// candidate in raw is recognized.
func (e *Engine) SanitizePhone(raw string) (string, bool) {
	if e == nil || e.normalizer == nil {
		return "", false
	}
	return e.normalizer.Normalize(raw)
}

// SetPhoneOTP stores code as the login OTP for phone, replacing any earlier one.
func (e *Engine) SetPhoneOTP(ctx context.Context, phone, code string) error {
	if err := e.ready(); err != nil {
		return err
	}
	return e.SetPhoneOTPForPurpose(ctx, phone, code, e.config.OTP.LoginPurpose)
}

// SetPhoneOTPForPurpose stores code for (phone, purpose), replacing any
// earlier code for the same key. Codes for other purposes are untouched.
//
// It returns ErrInvalidPhone when phone is not recognized and ErrInvalidOTP
// when code is empty or longer than MaxOTPLength.
func (e *Engine) SetPhoneOTPForPurpose(ctx context.Context, phone, code, purpose string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if purpose == "" {
		purpose = e.config.OTP.LoginPurpose
	}

	number, ok := e.normalizer.Normalize(phone)
	if !ok {
		e.metricInc(MetricPhoneRejected)
		return ErrInvalidPhone
	}
	if code == "" || len(code) > MaxOTPLength {
		return ErrInvalidOTP
	}

	record := &OTPRecord{
		Phone:     number,
		Purpose:   purpose,
		Code:      code,
		CreatedAt: e.clock().UTC(),
	}
	if err := e.otps.Replace(ctx, record, e.config.OTP.MaxAge); err != nil {
		return otpStoreError(err)
	}

	e.metricInc(MetricOTPSet)
	e.emitAudit(ctx, auditEventOTPSet, true, "", number, purpose, nil, nil)
	return nil
}

// IssuePhoneOTP generates a numeric code of Config.OTP.Digits, stores it for
// (phone, purpose) and returns it for delivery. The code is never logged.
func (e *Engine) IssuePhoneOTP(ctx context.Context, phone, purpose string) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	code, err := internal.NewOTP(e.config.OTP.Digits)
	if err != nil {
		return "", err
	}
	if err := e.SetPhoneOTPForPurpose(ctx, phone, code, purpose); err != nil {
		return "", err
	}
	return code, nil
}

// VerifyPhoneOTP checks req.OTP against the stored code for (phone, purpose)
// and, on success, consumes it and returns the normalized phone.
//
// A mismatch returns ErrIncorrectOTP and leaves the code in place. When
// exactly one account holds the number, its entry is marked verified before
// the code is consumed. Concurrent verifications of one code succeed at most
// once; the losers see ErrNoOTPSet.
func (e *Engine) VerifyPhoneOTP(ctx context.Context, req VerifyRequest) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	purpose := req.Purpose
	if purpose == "" {
		purpose = e.config.OTP.LoginPurpose
	}

	number, ok := e.normalizer.Normalize(req.Phone)
	if !ok {
		e.metricInc(MetricPhoneRejected)
		e.emitAudit(ctx, auditEventOTPVerifyFailure, false, "", "", purpose, ErrInvalidPhone, nil)
		return "", ErrInvalidPhone
	}

	record, err := e.otps.Get(ctx, number, purpose)
	if err != nil {
		if errors.Is(err, stores.ErrOTPNotFound) {
			return "", e.verifyFailed(ctx, number, purpose, ErrNoOTPSet)
		}
		return "", otpStoreError(err)
	}

	if maxAge := e.config.OTP.MaxAge; maxAge > 0 && e.clock().Sub(record.CreatedAt) >= maxAge {
		if err := e.otps.Delete(ctx, number, purpose); err != nil {
			e.log().Warn("expired otp delete failed", zap.String("purpose", purpose), zap.Error(err))
		}
		e.metricInc(MetricOTPExpired)
		return "", e.verifyFailed(ctx, number, purpose, ErrNoOTPSet)
	}

	if subtle.ConstantTimeCompare([]byte(record.Code), []byte(req.OTP)) != 1 {
		return "", e.verifyFailed(ctx, number, purpose, ErrIncorrectOTP)
	}

	if err := e.markPhoneVerified(ctx, number); err != nil {
		return "", err
	}

	if _, err := e.otps.Consume(ctx, number, purpose, req.OTP); err != nil {
		switch {
		case errors.Is(err, stores.ErrOTPNotFound):
			return "", e.verifyFailed(ctx, number, purpose, ErrNoOTPSet)
		case errors.Is(err, stores.ErrOTPCodeMismatch):
			// superseded by a newer code between Get and Consume
			return "", e.verifyFailed(ctx, number, purpose, ErrIncorrectOTP)
		default:
			return "", otpStoreError(err)
		}
	}

	e.metricInc(MetricOTPVerifySuccess)
	e.emitAudit(ctx, auditEventOTPVerifySuccess, true, "", number, purpose, nil, nil)
	return number, nil
}

// markPhoneVerified flags number verified when exactly one account holds it.
func (e *Engine) markPhoneVerified(ctx context.Context, number string) error {
	holders, err := e.accounts.FindByPhone(ctx, number, false)
	if err != nil {
		e.log().Error("phone holder lookup failed", zap.Error(err))
		return accountStoreError(err)
	}
	if len(holders) != 1 {
		return nil
	}

	holder := holders[0]
	for _, p := range holder.Phones {
		if p.Number == number && !p.Verified {
			if err := e.accounts.SetPhoneVerified(ctx, holder.ID, number); err != nil {
				e.log().Error("mark phone verified failed",
					zap.String("user_id", holder.ID),
					zap.Error(err),
				)
				return accountStoreError(err)
			}
			return nil
		}
	}
	return nil
}

func (e *Engine) verifyFailed(ctx context.Context, number, purpose string, err error) error {
	switch {
	case errors.Is(err, ErrNoOTPSet):
		e.metricInc(MetricOTPVerifyMissing)
	case errors.Is(err, ErrIncorrectOTP):
		e.metricInc(MetricOTPVerifyIncorrect)
	}
	e.emitAudit(ctx, auditEventOTPVerifyFailure, false, "", number, purpose, err, nil)
	return err
}

func otpStoreError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrOTPStoreUnavailable, err)
}
