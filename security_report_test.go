package goPhoneAuth

import (
	"testing"
	"time"

	"github.com/MrEthical07/goPhoneAuth/phone"
)

func TestSecurityReportReflectsPosture(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OTP.MaxAge = 5 * time.Minute
	cfg.Phone.DefaultRegion = "gb"
	cfg.Phone.Format = phone.FormatE164
	cfg.Login.AmbiguousErrorMessages = true

	engine, err := New().
		WithConfig(cfg).
		WithOTPStore(NewMemoryOTPStore()).
		WithAccountStore(newMockAccountStore()).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer engine.Close()

	report := engine.SecurityReport()
	if report.OTPBackend != "memory" {
		t.Fatalf("expected memory backend, got %q", report.OTPBackend)
	}
	if !report.ExpiryEnforced || report.OTPMaxAge != 5*time.Minute {
		t.Fatalf("expected expiry enforced, got %+v", report)
	}
	if report.DefaultRegion != "GB" || !report.LocalNumbersAccepted {
		t.Fatalf("expected normalized region GB, got %q", report.DefaultRegion)
	}
	if report.StorageFormat != "e164" {
		t.Fatalf("expected e164 format, got %q", report.StorageFormat)
	}
	if len(report.Warnings) != 1 {
		t.Fatalf("expected only the process-local warning, got %v", report.Warnings)
	}
}

func TestSecurityReportNilEngine(t *testing.T) {
	var e *Engine
	if r := e.SecurityReport(); r.OTPBackend != "" || r.Warnings != nil {
		t.Fatalf("expected zero report, got %+v", r)
	}
}
