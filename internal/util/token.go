package util

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// RandomHex returns n random bytes as 2*n upper-case hex characters,
// the form used for order number suffixes.
func RandomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("random hex: %w", err)
	}
	return strings.ToUpper(fmt.Sprintf("%x", buf)), nil
}
