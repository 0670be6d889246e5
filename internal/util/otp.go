package util

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
)

// OTPDigits is the length of codes mailed for verification and resets.
const OTPDigits = 6

// NumericCode returns a random decimal code of exactly n digits. The first
// digit is never zero so the code survives being parsed as a number.
func NumericCode(n int) (string, error) {
	if n < 1 || n > 18 {
		return "", fmt.Errorf("numeric code: unsupported length %d", n)
	}
	floor := int64(1)
	for i := 1; i < n; i++ {
		floor *= 10
	}
	v, err := rand.Int(rand.Reader, big.NewInt(9*floor))
	if err != nil {
		return "", fmt.Errorf("numeric code: %w", err)
	}
	return strconv.FormatInt(floor+v.Int64(), 10), nil
}

func NewOTP() (string, error) {
	return NumericCode(OTPDigits)
}
