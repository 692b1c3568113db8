// Package stores provides the short-lived OTP record stores behind phone
// login and phone verification flows.
//
// # Design
//
// Records are keyed by (phone, purpose); at most one live record exists per
// key and a new write supersedes the old one. The Redis store persists a
// versioned, binary-encoded record and consumes it with a Lua script so the
// compare-and-delete is atomic: two concurrent verifications of the same code
// cannot both succeed. A mismatched code leaves the record in place so the
// caller may retry. Code comparison is exact; the final check runs in Go with
// constant-time compare.
//
// # Architecture boundaries
//
// This package owns persistence and concurrency control for OTP records. It
// does NOT generate codes, normalize phone numbers, or make login decisions;
// those belong to the Engine.
//
// # What this package must NOT do
//
//   - Import goPhoneAuth or any sibling internal package.
//   - Log or expose OTP codes.
package stores
