package security

import (
	"fmt"
	"time"
)

// MinRecommendedDigits is the shortest OTP length that does not produce a
// warning.
const MinRecommendedDigits = 6

type Report struct {
	OTPBackend           string
	OTPDigits            int
	OTPMaxAge            time.Duration
	ExpiryEnforced       bool
	LocalNumbersAccepted bool
	DefaultRegion        string
	ValidNumbersRequired bool
	StorageFormat        string
	AmbiguousErrors      bool
	AuditEnabled         bool
	MetricsEnabled       bool
	ExtraLoginStrategies int
	Warnings             []string
}

type ReportInput struct {
	OTPBackend         string
	OTPDigits          int
	OTPMaxAge          time.Duration
	DefaultRegion      string
	RequireValidNumber bool
	StorageFormat      string
	AmbiguousErrors    bool
	AuditEnabled       bool
	MetricsEnabled     bool
	LoginStrategies    int
}

func BuildReport(input ReportInput) Report {
	extra := input.LoginStrategies - 1
	if extra < 0 {
		extra = 0
	}

	r := Report{
		OTPBackend:           input.OTPBackend,
		OTPDigits:            input.OTPDigits,
		OTPMaxAge:            input.OTPMaxAge,
		ExpiryEnforced:       input.OTPMaxAge > 0,
		LocalNumbersAccepted: input.DefaultRegion != "",
		DefaultRegion:        input.DefaultRegion,
		ValidNumbersRequired: input.RequireValidNumber,
		StorageFormat:        input.StorageFormat,
		AmbiguousErrors:      input.AmbiguousErrors,
		AuditEnabled:         input.AuditEnabled,
		MetricsEnabled:       input.MetricsEnabled,
		ExtraLoginStrategies: extra,
	}

	if !r.ExpiryEnforced {
		r.Warnings = append(r.Warnings, "otp codes never expire")
	}
	if input.OTPDigits < MinRecommendedDigits {
		r.Warnings = append(r.Warnings, fmt.Sprintf("otp length %d is below %d digits", input.OTPDigits, MinRecommendedDigits))
	}
	if input.OTPBackend == "memory" {
		r.Warnings = append(r.Warnings, "otp records are process-local")
	}
	if !input.AmbiguousErrors {
		r.Warnings = append(r.Warnings, "login failures reveal their cause")
	}

	return r
}
