package roles

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Role identifies a capability required for an administrative operation
type Role string

const (
	// RoleAdmin can grant and revoke roles and perform any gated operation
	RoleAdmin Role = "admin"
	// RolePauser can pause and unpause initiation and fulfillment
	RolePauser Role = "pauser"
	// RoleRegistrar can mutate token associations and accepted assets
	RoleRegistrar Role = "registrar"
	// RoleUpgrader can swap behavior pointers: contract logic, swap module
	RoleUpgrader Role = "upgrader"
)

// ErrUnauthorized is returned when a caller lacks the required role
var ErrUnauthorized = errors.New("caller lacks required role")

// Set is a flat table of (principal, role) grants. There is no inheritance;
// RoleAdmin implies every other role.
type Set struct {
	mu     sync.RWMutex
	grants map[common.Address]map[Role]bool
}

// NewSet creates a role set with the given admin holding RoleAdmin
func NewSet(admin common.Address) *Set {
	s := &Set{grants: make(map[common.Address]map[Role]bool)}
	s.grants[admin] = map[Role]bool{RoleAdmin: true}
	return s
}

// Grant gives principal the role. Only an admin may grant.
func (s *Set) Grant(caller, principal common.Address, role Role) error {
	if err := s.Require(caller, RoleAdmin); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.grants[principal] == nil {
		s.grants[principal] = make(map[Role]bool)
	}
	s.grants[principal][role] = true
	return nil
}

// Revoke removes the role from principal. Only an admin may revoke.
func (s *Set) Revoke(caller, principal common.Address, role Role) error {
	if err := s.Require(caller, RoleAdmin); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.grants[principal], role)
	return nil
}

// Has reports whether principal holds the role, directly or via RoleAdmin
func (s *Set) Has(principal common.Address, role Role) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	granted := s.grants[principal]
	return granted[role] || granted[RoleAdmin]
}

// Require returns ErrUnauthorized unless principal holds the role
func (s *Set) Require(principal common.Address, role Role) error {
	if !s.Has(principal, role) {
		return fmt.Errorf("%w: %s needs %s", ErrUnauthorized, principal.Hex(), role)
	}
	return nil
}
