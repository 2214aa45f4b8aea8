package utils

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/Armour007/grc-backend/internal/grc"
)

var validate = validator.New()

// PasswordCost is the bcrypt work factor for stored passwords.
const PasswordCost = 10

// MinPasswordLength is the shortest password accepted at registration or change.
const MinPasswordLength = 6

// HashPassword securely hashes a plain text password
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	return string(bytes), err
}

// CheckPasswordHash compares a plain text password with a stored hash
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// ValidatePassword enforces the minimum length rule.
func ValidatePassword(pw string) error {
	if len(pw) < MinPasswordLength {
		return grc.Validation("Password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

// NormalizeEmail lower-cases and trims an address before it is stored or looked up.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks the address format.
func ValidateEmail(email string) error {
	if err := validate.Var(email, "required,email"); err != nil {
		return grc.Validation("Please enter a valid email address")
	}
	return nil
}

// ValidateUsername enforces the minimum username length.
func ValidateUsername(name string) error {
	if len(strings.TrimSpace(name)) < 3 {
		return grc.Validation("Username must be at least 3 characters")
	}
	return nil
}
