package auth

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNotAdministrator signals a guarded operation was called by a party other
// than the current administrator.
var ErrNotAdministrator = errors.New("auth: caller is not the administrator")

// Guard restricts privileged operations (parameter changes, fund recovery,
// request cancellation) to a single administrator identity. The identity is
// set at construction and transferable only by the current administrator.
type Guard struct {
	mu    sync.RWMutex
	owner string
}

// NewGuard creates a guard owned by the given party identity.
func NewGuard(owner string) *Guard {
	return &Guard{owner: owner}
}

// Owner returns the current administrator identity.
func (g *Guard) Owner() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.owner
}

// Require returns ErrNotAdministrator unless caller is the administrator.
func (g *Guard) Require(caller string) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if caller == "" || caller != g.owner {
		return ErrNotAdministrator
	}
	return nil
}

// Transfer hands ownership to next. Only the current administrator may call it.
func (g *Guard) Transfer(caller, next string) error {
	if next == "" {
		return fmt.Errorf("auth: empty successor identity")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if caller != g.owner {
		return ErrNotAdministrator
	}
	g.owner = next
	return nil
}
