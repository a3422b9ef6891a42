package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword returns the bcrypt hash of a clear-text password, ready to
// store on the user row.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether the clear-text password matches the stored
// hash; a non-nil error means the credentials do not match.
func VerifyPassword(hash string, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
