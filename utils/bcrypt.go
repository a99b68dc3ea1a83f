package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword returns the bcrypt hash of s at the default cost.
func HashPassword(s string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(s), bcrypt.DefaultCost)
}

// ComparePassword checks a plaintext password against its stored hash. Any
// non-nil error, including a malformed stored hash, means the check failed.
func ComparePassword(hashed string, normal string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(normal))
}
