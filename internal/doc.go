// Package internal contains helper utilities that are intentionally private to goPhoneAuth.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - config: viper-backed settings for the bundled binaries
//   - metrics: lock-free counters and latency histograms
//   - rate: Redis-backed verification attempt limiter
//   - security: posture report derived from engine settings
//   - stores: OTP record stores (Redis, in-memory)
//
// # What this package must NOT do
//
//   - Export types that appear in the public goPhoneAuth API.
//   - Be imported by any package outside the goPhoneAuth module.
package internal
