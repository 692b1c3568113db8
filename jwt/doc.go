// Package jwt issues and verifies the session tokens handed out after a
// successful phone login. Tokens carry the account id, the normalized phone
// and whether the account was provisioned by that login.
package jwt
