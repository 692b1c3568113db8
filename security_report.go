package goPhoneAuth

import "github.com/MrEthical07/goPhoneAuth/internal/security"

// SecurityReport is a read-only snapshot of the engine's posture, returned
// by [Engine.SecurityReport].
type SecurityReport = security.Report

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	strategies := 0
	if e.logins != nil {
		strategies = len(e.logins.Names())
	}

	return security.BuildReport(security.ReportInput{
		OTPBackend:         e.otpBackend,
		OTPDigits:          e.config.OTP.Digits,
		OTPMaxAge:          e.config.OTP.MaxAge,
		DefaultRegion:      e.config.Phone.DefaultRegion,
		RequireValidNumber: e.config.Phone.RequireValidNumber,
		StorageFormat:      e.config.Phone.Format.String(),
		AmbiguousErrors:    e.config.Login.AmbiguousErrorMessages,
		AuditEnabled:       e.config.Audit.Enabled,
		MetricsEnabled:     e.config.Metrics.Enabled,
		LoginStrategies:    strategies,
	})
}
