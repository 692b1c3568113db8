package goPhoneAuth

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Login error codes carried by [LoginError.Code].
const (
	LoginErrInvalidPhone           = "invalid-phone"
	LoginErrNoOTPSet               = "no-otp-set"
	LoginErrIncorrectOTP           = "incorrect-otp"
	LoginErrMultipleUsers          = "multiple-users"
	LoginErrUnexpectedUser         = "unexpected-user"
	LoginErrInsertFailed           = "insert-failed"
	LoginErrPhoneAlreadyRegistered = "phone-already-registered"
	LoginErrUserNotFound           = "user-not-found"
	LoginErrInternal               = "internal-error"
)

const internalErrorMessage = "internal server error"

// PhoneLoginRequest is the input to [Engine.LoginWithPhone].
type PhoneLoginRequest struct {
	Phone          string
	OTP            string
	Purpose        string
	ExpectedUserID string
}

// LoginResult carries either UserID or Error, never both.
type LoginResult struct {
	UserID string
	// Created is true when the account was provisioned by this login.
	Created bool
	// Strategy names the strategy that produced the result.
	Strategy string
	Error    *LoginError
}

// LoginError is the uniform failure value returned by login strategies.
//
// Details always holds "verified" (bool): whether the OTP had been accepted
// before the failure. Unexpected-user failures add "existingUserId".
type LoginError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`

	cause error
}

func (e *LoginError) Error() string {
	return e.Code + ": " + e.Message
}

// Unwrap exposes the underlying sentinel for errors.Is.
func (e *LoginError) Unwrap() error {
	return e.cause
}

// Verified reports the "verified" detail.
func (e *LoginError) Verified() bool {
	if e == nil {
		return false
	}
	v, _ := e.Details["verified"].(bool)
	return v
}

// LoginWithPhone runs the phone login flow: verify the OTP, resolve the
// account, and provision one when none exists.
//
// The second return value is false when req lacks a phone or code, meaning
// the request is not a phone login and another strategy may handle it.
// Failures are reported in LoginResult.Error; LoginWithPhone never returns a
// Go error.
func (e *Engine) LoginWithPhone(ctx context.Context, req PhoneLoginRequest) (LoginResult, bool) {
	if req.Phone == "" || req.OTP == "" {
		e.metricInc(MetricLoginAbstain)
		return LoginResult{}, false
	}
	if err := e.ready(); err != nil {
		return LoginResult{Error: e.loginError(err, false)}, true
	}

	start := time.Now()
	defer func() {
		e.metricObserve(MetricLoginLatency, time.Since(start))
	}()

	number, err := e.VerifyPhoneOTP(ctx, VerifyRequest{
		Phone:   req.Phone,
		OTP:     req.OTP,
		Purpose: req.Purpose,
	})
	if err != nil {
		number, _ = e.normalizer.Normalize(req.Phone)
		return e.loginFailed(ctx, number, err, false), true
	}

	account, err := e.FindUserByPhone(ctx, number, req.ExpectedUserID)
	if err != nil {
		return e.loginFailed(ctx, number, err, true), true
	}

	result := LoginResult{}
	if account == nil {
		userID, err := e.createFromPhone(ctx, number)
		if err != nil {
			return e.loginFailed(ctx, number, err, true), true
		}
		result.UserID = userID
		result.Created = true
	} else {
		result.UserID = account.ID
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, result.UserID, number, req.Purpose, nil, func() map[string]string {
		if result.Created {
			return map[string]string{"created": "true"}
		}
		return nil
	})
	return result, true
}

func (e *Engine) loginFailed(ctx context.Context, number string, err error, verified bool) LoginResult {
	le := e.loginError(err, verified)
	if le.Code == LoginErrInternal {
		e.log().Error("phone login failed", zap.Error(err))
	}
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, "", number, "", err, nil)
	return LoginResult{Error: le}
}

// loginError translates err into a LoginError, masking Message in ambiguous mode.
func (e *Engine) loginError(err error, verified bool) *LoginError {
	le := &LoginError{
		Details: map[string]any{"verified": verified},
		cause:   err,
	}

	var unexpected *UnexpectedUserError
	switch {
	case errors.Is(err, ErrInvalidPhone):
		le.Code, le.Message = LoginErrInvalidPhone, ErrInvalidPhone.Error()
	case errors.Is(err, ErrNoOTPSet):
		le.Code, le.Message = LoginErrNoOTPSet, ErrNoOTPSet.Error()
	case errors.Is(err, ErrIncorrectOTP):
		le.Code, le.Message = LoginErrIncorrectOTP, ErrIncorrectOTP.Error()
	case errors.Is(err, ErrMultipleUsers):
		le.Code, le.Message = LoginErrMultipleUsers, ErrMultipleUsers.Error()
	case errors.As(err, &unexpected):
		le.Code, le.Message = LoginErrUnexpectedUser, ErrUnexpectedUser.Error()
		le.Details["existingUserId"] = unexpected.ExistingUserID
	case errors.Is(err, ErrUnexpectedUser):
		le.Code, le.Message = LoginErrUnexpectedUser, ErrUnexpectedUser.Error()
	case errors.Is(err, ErrInsertFailed):
		le.Code, le.Message = LoginErrInsertFailed, ErrInsertFailed.Error()
	case errors.Is(err, ErrPhoneAlreadyRegistered):
		le.Code, le.Message = LoginErrPhoneAlreadyRegistered, ErrPhoneAlreadyRegistered.Error()
	case errors.Is(err, ErrUserNotFound):
		le.Code, le.Message = LoginErrUserNotFound, ErrUserNotFound.Error()
	default:
		le.Code, le.Message = LoginErrInternal, internalErrorMessage
	}

	if e != nil && e.config.Login.AmbiguousErrorMessages {
		le.Message = e.config.Login.AmbiguousMessage
	}
	return le
}
