// Package prometheus renders goPhoneAuth counters in the Prometheus text
// exposition format. Series are named phoneauth_*_total plus the
// phoneauth_login_latency_seconds histogram. Nothing is registered globally;
// callers mount Handler.
package prometheus
