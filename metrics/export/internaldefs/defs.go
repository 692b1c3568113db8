package internaldefs

import (
	goPhoneAuth "github.com/MrEthical07/goPhoneAuth"
)

// Prefix starts every exported series name.
const Prefix = "phoneauth_"

// AuditDroppedName is the counter fed by Engine.AuditDropped.
const AuditDroppedName = Prefix + "audit_dropped_total"

// CounterDef binds an engine counter to its exported name.
type CounterDef struct {
	ID   goPhoneAuth.MetricID
	Name string
	Help string
}

// HistogramDef binds an engine histogram to its exported name.
type HistogramDef struct {
	ID   goPhoneAuth.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: goPhoneAuth.MetricOTPSet, Name: Prefix + "otp_set_total", Help: "OTP codes stored."},
	{ID: goPhoneAuth.MetricOTPVerifySuccess, Name: Prefix + "otp_verify_success_total", Help: "OTP verifications that consumed a code."},
	{ID: goPhoneAuth.MetricOTPVerifyIncorrect, Name: Prefix + "otp_verify_incorrect_total", Help: "OTP verifications with a wrong code."},
	{ID: goPhoneAuth.MetricOTPVerifyMissing, Name: Prefix + "otp_verify_missing_total", Help: "OTP verifications with no code set."},
	{ID: goPhoneAuth.MetricOTPExpired, Name: Prefix + "otp_expired_total", Help: "OTP codes discarded for exceeding their maximum age."},
	{ID: goPhoneAuth.MetricLoginSuccess, Name: Prefix + "login_success_total", Help: "Successful phone logins."},
	{ID: goPhoneAuth.MetricLoginFailure, Name: Prefix + "login_failure_total", Help: "Failed phone logins."},
	{ID: goPhoneAuth.MetricLoginAbstain, Name: Prefix + "login_abstain_total", Help: "Login attempts the phone strategy declined to handle."},
	{ID: goPhoneAuth.MetricAccountProvisioned, Name: Prefix + "account_provisioned_total", Help: "Accounts created on first login."},
	{ID: goPhoneAuth.MetricProvisionConflict, Name: Prefix + "account_provision_conflict_total", Help: "Provisioned accounts rolled back after a concurrent registration."},
	{ID: goPhoneAuth.MetricMultipleUsersConflict, Name: Prefix + "multiple_users_conflict_total", Help: "Lookups that found a verified number on several accounts."},
	{ID: goPhoneAuth.MetricUnexpectedUser, Name: Prefix + "unexpected_user_total", Help: "Logins resolved to an account other than the expected one."},
	{ID: goPhoneAuth.MetricPhoneAdded, Name: Prefix + "phone_added_total", Help: "Numbers attached to accounts."},
	{ID: goPhoneAuth.MetricPhoneRemoved, Name: Prefix + "phone_removed_total", Help: "Numbers detached from accounts."},
	{ID: goPhoneAuth.MetricPhoneRejected, Name: Prefix + "phone_rejected_total", Help: "Inputs rejected by phone normalization."},
}

var HistogramDefs = []HistogramDef{
	{ID: goPhoneAuth.MetricLoginLatency, Name: Prefix + "login_latency_seconds", Help: "Phone login latency."},
}

// BucketCount is the number of histogram buckets, +Inf included.
const BucketCount = 8

// HistogramBounds are the upper bounds in seconds, as Prometheus le labels.
var HistogramBounds = [BucketCount]string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundsSeconds are the finite bounds of HistogramBounds.
var HistogramBoundsSeconds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// NormalizeBuckets copies raw into a fixed-size array, truncating or zero
// filling as needed.
func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets converts per-bucket counts to running totals.
func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i, v := range raw {
		running += v
		out[i] = running
	}
	return out
}
