package identitymock

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

// passwordHasher hashes account passwords at a fixed bcrypt cost.
type passwordHasher struct {
	cost  int
	dummy []byte
}

func newPasswordHasher(cost int) *passwordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	dummy, _ := bcrypt.GenerateFromPassword([]byte("unknown-account"), cost)
	return &passwordHasher{cost: cost, dummy: dummy}
}

func (h *passwordHasher) hash(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", ErrWeakPassword
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// verify reports ErrInvalidCredentials on mismatch. An empty hash stands for an
// unknown account and still costs one comparison.
func (h *passwordHasher) verify(hashed, plain string) error {
	target := []byte(hashed)
	if hashed == "" {
		target = h.dummy
	}
	err := bcrypt.CompareHashAndPassword(target, []byte(plain))
	switch {
	case hashed == "", errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return ErrInvalidCredentials
	case err != nil:
		return fmt.Errorf("verify password: %w", err)
	}
	return nil
}
