package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// SecretBytes is the entropy used for session ids and single-use tokens (256 bits).
const SecretBytes = 32

// GenerateNumericCode returns a uniformly random numeric string of the given length.
func GenerateNumericCode(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("length must be positive")
	}

	digits := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(digits) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		for _, b := range buf {
			// 250 is the largest multiple of 10 below 256; rejecting the rest removes modulo bias.
			if b >= 250 {
				continue
			}
			digits = append(digits, '0'+(b%10))
			if len(digits) == length {
				break
			}
		}
	}

	return string(digits), nil
}

// GenerateSecureToken returns a base64 URL-safe random string using the specified number of random bytes.
func GenerateSecureToken(byteLength int) (string, error) {
	if byteLength <= 0 {
		return "", fmt.Errorf("length must be positive")
	}

	buf := make([]byte, byteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken calculates a SHA-256 hash of the provided value.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// Fingerprint shortens a digest for log correlation. Only ever pass digests here.
func Fingerprint(digest string) string {
	if len(digest) <= 12 {
		return digest
	}
	return digest[:12]
}
