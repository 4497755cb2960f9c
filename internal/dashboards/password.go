package dashboards

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"citypulse/internal/domain"
)

// maxPasswordBytes is the longest input bcrypt accepts.
const maxPasswordBytes = 72

// Hasher turns a new user's password into the value kept in
// User.PasswordHash.
type Hasher interface {
	Hash(password string) (string, error)
}

type bcryptHasher struct {
	cost int
}

// NewBcryptHasher hashes with bcrypt at cost. Costs outside bcrypt's range
// fall back to bcrypt.DefaultCost.
func NewBcryptHasher(cost int) Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return bcryptHasher{cost: cost}
}

func (h bcryptHasher) Hash(password string) (string, error) {
	switch {
	case password == "":
		return "", fmt.Errorf("%w: password", domain.ErrEmptyField)
	case len(password) > maxPasswordBytes:
		return "", fmt.Errorf("%w: password longer than %d bytes", domain.ErrInvalidField, maxPasswordBytes)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidField, err)
	}
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
