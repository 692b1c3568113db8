package internal

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
)

const (
	MinOTPDigits = 4
	MaxOTPDigits = 10
)

var errInvalidOTPDigits = errors.New("invalid otp digits")

// NewOTP returns a uniformly random numeric code of the given length.
func NewOTP(digits int) (string, error) {
	if digits < MinOTPDigits || digits > MaxOTPDigits {
		return "", errInvalidOTPDigits
	}

	var b strings.Builder
	b.Grow(digits)

	max := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}
