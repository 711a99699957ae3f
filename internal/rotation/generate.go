package rotation

import (
	"crypto/rand"
	"fmt"
)

// keyCharset has exactly 64 characters so the modulo mapping below is
// uniform over crypto/rand output.
const keyCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-_"

// generateKey creates a cryptographically secure random string of the
// given length over [A-Za-z0-9_-].
func generateKey(length int) (string, error) {
	randomBytes := make([]byte, length)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	out := make([]byte, length)
	for i := 0; i < length; i++ {
		out[i] = keyCharset[randomBytes[i]%byte(len(keyCharset))]
	}
	return string(out), nil
}
