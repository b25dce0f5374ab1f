package auth

import (
	"unicode"

	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/kbhavake29/Task-flow-WebApp/pkg/errors"
)

// BcryptCost is the work factor for password hashing. Raising it later is
// safe: existing hashes embed their own cost and keep verifying.
const BcryptCost = 12

// MinPasswordLen is the minimum accepted password length.
const MinPasswordLen = 8

// HashPassword derives a salted bcrypt hash of the plaintext password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether the plaintext password matches the stored
// hash. It never distinguishes between a wrong password and a malformed
// hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidatePassword enforces the password floor: at least MinPasswordLen
// characters with an uppercase letter, a lowercase letter, and a digit.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLen {
		return apperrors.InvalidInput("password must be at least 8 characters long")
	}
	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit {
		return apperrors.InvalidInput("password must contain an uppercase letter, a lowercase letter, and a digit")
	}
	return nil
}
