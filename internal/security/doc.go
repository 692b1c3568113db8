// Package security derives a read-only posture report from engine settings.
//
// The report is computed on demand and never mutates configuration. Weak
// settings surface as human-readable warnings so binaries can log them at
// startup.
package security
