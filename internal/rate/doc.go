// Package rate throttles failed OTP verification attempts with Redis
// fixed-window counters: INCR, then EXPIRE on the first hit of a window.
//
// Keys:
//   - apv:<phone> failed verifications per phone
//   - apvi:<ip>   failed verifications per client IP
package rate
