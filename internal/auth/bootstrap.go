package auth

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/spec-kit/storefront-api/internal/domain"
)

// AccountCounter reports how many accounts exist.
type AccountCounter interface {
	CountAll(ctx context.Context) (int64, error)
}

// AdminBootstrap assigns the admin role to the first account ever created.
// Once an account is known to exist the decision is latched and the store is
// not consulted again.
type AdminBootstrap struct {
	counter AccountCounter
	mu      sync.Mutex
	settled atomic.Bool
}

// NewAdminBootstrap builds the provisioning step over counter.
func NewAdminBootstrap(counter AccountCounter) *AdminBootstrap {
	return &AdminBootstrap{counter: counter}
}

// Settled reports whether bootstrap no longer applies.
func (b *AdminBootstrap) Settled() bool {
	return b.settled.Load()
}

// Provision picks the role for a new account and runs create with it.
// Creations racing the first account are serialized so only one becomes admin.
func (b *AdminBootstrap) Provision(ctx context.Context, create func(role domain.Role) error) (domain.Role, error) {
	if b.settled.Load() {
		return createAs(domain.RoleUser, create)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.settled.Load() {
		return createAs(domain.RoleUser, create)
	}

	count, err := b.counter.CountAll(ctx)
	if err != nil {
		return "", err
	}
	role := domain.RoleUser
	if count == 0 {
		role = domain.RoleAdmin
	}
	if err := create(role); err != nil {
		if count > 0 {
			b.settled.Store(true)
		}
		return "", err
	}
	b.settled.Store(true)
	return role, nil
}

func createAs(role domain.Role, create func(role domain.Role) error) (domain.Role, error) {
	if err := create(role); err != nil {
		return "", err
	}
	return role, nil
}
