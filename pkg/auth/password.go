package auth

import (
	"github.com/iamasit07/chat-app/backend/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

const (
	passwordCost      = 10
	MinPasswordLength = 6
)

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	return string(bytes), err
}

// CheckPasswordHash checks if a password matches a hash
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return domain.Invalid("Password must be at least %d characters!", MinPasswordLength)
	}
	if len(password) > 72 {
		return domain.Invalid("Password must be at most 72 characters!")
	}
	return nil
}
