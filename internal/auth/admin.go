package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrAdminKeyMismatch is returned when the presented admin key does not
// match the configured hash.
var ErrAdminKeyMismatch = errors.New("admin key mismatch")

// HashAdminKey produces the bcrypt hash stored in configuration. Used
// by operators when provisioning a deployment, never at request time.
func HashAdminKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyAdminKey checks a presented admin key against the configured
// bcrypt hash. An empty hash disables the admin console entirely.
func VerifyAdminKey(hash, key string) error {
	if hash == "" || key == "" {
		return ErrAdminKeyMismatch
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)); err != nil {
		return ErrAdminKeyMismatch
	}
	return nil
}
