package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrWrongPassword is returned when a room password does not match.
var ErrWrongPassword = errors.New("wrong password")

// HashPassword returns a bcrypt hash of a room password.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CheckPassword compares password against a hash from HashPassword. An empty
// hash accepts any password.
func CheckPassword(hash, password string) error {
	if hash == "" {
		return nil
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrWrongPassword
	}
	return nil
}
