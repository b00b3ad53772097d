package auth

import (
	"crypto/sha256"

	"golang.org/x/crypto/bcrypt"
)

// Bcrypt cost; hashes made with other costs are still verified
const bcryptCost = 10

// Bcrypt password hasher
// Password is prehashed with sha256 so bcrypt 72 bytes input limit does not truncate long passwords
type BcryptHasher struct{}

func (h BcryptHasher) Hash(password string) (string, error) {
	sum := sha256.Sum256([]byte(password))
	hash, err := bcrypt.GenerateFromPassword(sum[:], bcryptCost)
	return string(hash), err
}

func (h BcryptHasher) Compare(hashedPassword string, password string) error {
	sum := sha256.Sum256([]byte(password))
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), sum[:])
}

// Verify reports whether password matches the hash
// Malformed hash never matches
func (h BcryptHasher) Verify(password string, hashedPassword string) bool {
	return h.Compare(hashedPassword, password) == nil
}
