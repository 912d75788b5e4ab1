package security

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher keeps the fake server's account passwords as bcrypt
// hashes. The client itself never hashes a password.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher clamps cost into bcrypt's range. Zero selects the
// default cost; tests pass bcrypt.MinCost so that account setup stays fast.
func NewPasswordHasher(cost int) *PasswordHasher {
	switch {
	case cost == 0:
		cost = bcrypt.DefaultCost
	case cost < bcrypt.MinCost:
		cost = bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		cost = bcrypt.MaxCost
	}
	return &PasswordHasher{cost: cost}
}

func (h *PasswordHasher) Hash(plain string) (string, error) {
	sum, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(sum), nil
}

// Matches reports whether plain is the password behind hashed. A malformed
// hash never matches.
func (h *PasswordHasher) Matches(plain, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}
