package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword returns the bcrypt hash of a password at the given
// cost. Cost comes from configuration so environments can trade
// hashing time against hardware.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword reports whether plain matches the stored bcrypt hash.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
