// Package middleware guards HTTP routes with the session tokens issued by
// package jwt. Verified claims are stored in the request context and read
// back with ClaimsFromContext.
package middleware
