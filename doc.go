// Package goPhoneAuth provides phone-number + one-time-code login: it
// normalizes phone numbers, issues and verifies single-use codes scoped by
// (phone, purpose), resolves a verified phone to at most one account, and
// provisions an account on the first successful login.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// goPhoneAuth is the public surface. It exposes [Engine], [Builder], [Config],
// the [AccountStore] contract and value types. OTP persistence, audit
// dispatch and metric storage live under internal/. Account persistence
// adapters live under accountstore/ and import this package, never the
// reverse.
//
// # What this package must NOT do
//
//   - Deliver codes (SMS, voice); callers send what IssuePhoneOTP returns.
//   - Issue sessions or tokens; callers act on LoginResult.UserID.
//   - Log or audit OTP codes or unmasked phone numbers.
//
// # Uniqueness contract
//
// A phone number is verified on at most one account. Provisioning enforces
// this with a post-insert re-check and a compensating delete, which leaves a
// narrow window where two concurrent first logins can both succeed. Account
// stores with a native unique constraint close the window by returning
// [ErrPhoneAlreadyRegistered] from InsertAccount.
package goPhoneAuth
