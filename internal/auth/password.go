package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a plaintext password with bcrypt at the default cost.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether plain matches the stored bcrypt hash.
// Any error, including a malformed hash, is treated as a mismatch so the
// caller cannot distinguish a broken record from a wrong password.
func VerifyPassword(plain, storedHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(plain)) == nil
}
