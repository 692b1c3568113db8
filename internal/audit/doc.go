// Package audit implements async event dispatching for phone login and OTP
// operations.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, zap logger, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full / block-if-full semantics.
//   - [Event]: structured audit record with timestamp, type, user, masked phone, IP, metadata.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which events
// to emit; the Engine does.
//
// # What this package must NOT do
//
//   - Carry OTP codes in any field.
//   - Import goPhoneAuth or any sibling internal package.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package audit
