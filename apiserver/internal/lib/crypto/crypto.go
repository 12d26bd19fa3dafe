package crypto

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
)

// ShortSHA returns a truncated, hex encoded SHA256 of the (optionally salted)
// input. It is used to avoid holding shared secrets in memory in the clear.
func ShortSHA(salt, input string) string {
	if salt != "" {
		input = fmt.Sprintf("%s:%s", salt, input)
	}
	sum := sha256.Sum256([]byte(input))
	return fmt.Sprintf("%x", sum)[0:54]
}

// Equal compares two strings in constant time.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
