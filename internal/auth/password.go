package auth

import "golang.org/x/crypto/bcrypt"

// bcryptCost trades hashing latency for brute-force resistance. Logins are
// infrequent enough that a high cost is affordable.
const bcryptCost = 14

// HashPassword returns a salted bcrypt hash of the password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether the password matches the stored hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
