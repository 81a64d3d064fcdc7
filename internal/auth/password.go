package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultHashCost is the bcrypt work factor used when none is configured.
const DefaultHashCost = 12

const maxPasswordBytes = 72

// Hasher produces and checks salted bcrypt hashes. The output embeds the
// salt and cost so verification needs nothing but the stored string.
type Hasher struct {
	cost int
}

// NewHasher builds a hasher, clamping cost into bcrypt's accepted range.
func NewHasher(cost int) *Hasher {
	switch {
	case cost == 0:
		cost = DefaultHashCost
	case cost < bcrypt.MinCost:
		cost = bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		cost = bcrypt.MaxCost
	}
	return &Hasher{cost: cost}
}

// Cost returns the work factor new hashes are created with.
func (h *Hasher) Cost() int {
	return h.cost
}

// Hash hashes a plaintext password with a fresh random salt.
func (h *Hasher) Hash(password string) (string, error) {
	if len(password) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// Compare checks plain against hashed. It returns ErrPasswordMismatch on a
// wrong password and ErrMalformedCredentialRecord when hashed is unreadable.
func (h *Hasher) Compare(hashed, plain string) error {
	if len(plain) > maxPasswordBytes {
		return ErrPasswordMismatch
	}
	err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return ErrPasswordMismatch
	default:
		return fmt.Errorf("%w: %v", ErrMalformedCredentialRecord, err)
	}
}

// Verify reports whether plain matches hashed. Malformed hashes never match.
func (h *Hasher) Verify(plain, hashed string) bool {
	return h.Compare(hashed, plain) == nil
}
