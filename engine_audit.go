package goPhoneAuth

import (
	"context"
	"errors"

	internalaudit "github.com/MrEthical07/goPhoneAuth/internal/audit"
)

const (
	auditEventOTPSet             = "otp_set"
	auditEventOTPVerifySuccess   = "otp_verify_success"
	auditEventOTPVerifyFailure   = "otp_verify_failure"
	auditEventLoginSuccess       = "login_success"
	auditEventLoginFailure       = "login_failure"
	auditEventAccountProvisioned = "account_provisioned"
	auditEventProvisionConflict  = "account_provision_conflict"
	auditEventMultipleUsers      = "multiple_users_conflict"
	auditEventPhoneAdded         = "phone_added"
	auditEventPhoneRemoved       = "phone_removed"
)

// AuditErrorCode is the stable error label written to AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrInvalidPhone    AuditErrorCode = "invalid_phone"
	auditErrInvalidOTP      AuditErrorCode = "invalid_otp"
	auditErrNoOTPSet        AuditErrorCode = "no_otp_set"
	auditErrIncorrectOTP    AuditErrorCode = "incorrect_otp"
	auditErrMultipleUsers   AuditErrorCode = "multiple_users"
	auditErrUnexpectedUser  AuditErrorCode = "unexpected_user"
	auditErrInsertFailed    AuditErrorCode = "insert_failed"
	auditErrPhoneRegistered AuditErrorCode = "phone_already_registered"
	auditErrUserNotFound    AuditErrorCode = "user_not_found"
	auditErrUnavailable     AuditErrorCode = "backend_unavailable"
	auditErrInternal        AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	number string,
	purpose string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.clock().UTC(),
		EventType: eventType,
		UserID:    userID,
		Phone:     internalaudit.MaskPhone(number),
		Purpose:   purpose,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidPhone):
		return auditErrInvalidPhone
	case errors.Is(err, ErrInvalidOTP):
		return auditErrInvalidOTP
	case errors.Is(err, ErrNoOTPSet):
		return auditErrNoOTPSet
	case errors.Is(err, ErrIncorrectOTP):
		return auditErrIncorrectOTP
	case errors.Is(err, ErrMultipleUsers):
		return auditErrMultipleUsers
	case errors.Is(err, ErrUnexpectedUser):
		return auditErrUnexpectedUser
	case errors.Is(err, ErrInsertFailed):
		return auditErrInsertFailed
	case errors.Is(err, ErrPhoneAlreadyRegistered):
		return auditErrPhoneRegistered
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrOTPStoreUnavailable),
		errors.Is(err, ErrAccountStoreUnavailable),
		errors.Is(err, ErrEngineNotReady):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
