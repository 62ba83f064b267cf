// Package access implements the two-capability permission gate with a
// single-writer admin identity.
package access

import (
	"sync"

	sdkerrors "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/common"

	"driftfee/internal/hookerr"
	"driftfee/internal/model"
)

// Gate holds the two independent allow-lists and the admin identity.
// Every identity defaults to deny until explicitly granted.
type Gate struct {
	mu     sync.RWMutex
	admin  common.Address
	grants map[model.Capability]map[common.Address]bool
}

// NewGate builds an empty gate with no admin set.
func NewGate() *Gate {
	return &Gate{
		grants: map[model.Capability]map[common.Address]bool{
			model.CapabilityTrade:           make(map[common.Address]bool),
			model.CapabilityManageLiquidity: make(map[common.Address]bool),
		},
	}
}

// Admin returns the current admin identity; the zero address means the
// gate is still uninitialized.
func (g *Gate) Admin() common.Address {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.admin
}

// SetAdmin performs the one-time transition out of the uninitialized
// state. Once an admin exists, only TransferAdmin may change it.
func (g *Gate) SetAdmin(identity common.Address) error {
	if identity == (common.Address{}) {
		return sdkerrors.Wrap(hookerr.ErrInvalidArgument, "admin cannot be the zero identity")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.admin != (common.Address{}) {
		return sdkerrors.Wrap(hookerr.ErrUnauthorized, "admin already set")
	}
	g.admin = identity
	return nil
}

// TransferAdmin hands the admin role to a new identity. Only the
// current admin may call it; the zero identity is rejected.
func (g *Gate) TransferAdmin(caller, next common.Address) error {
	if next == (common.Address{}) {
		return sdkerrors.Wrap(hookerr.ErrInvalidArgument, "new admin cannot be the zero identity")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if caller != g.admin || g.admin == (common.Address{}) {
		return sdkerrors.Wrapf(hookerr.ErrUnauthorized, "caller %s is not admin", caller.Hex())
	}
	g.admin = next
	return nil
}

// Grant overwrites the stored boolean for the (capability, identity)
// pair. Admin-only; a rejected call leaves the grants untouched.
func (g *Gate) Grant(caller common.Address, capability model.Capability, identity common.Address, allowed bool) error {
	if !capability.Valid() {
		return sdkerrors.Wrapf(hookerr.ErrInvalidArgument, "unknown capability %q", capability)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if caller != g.admin || g.admin == (common.Address{}) {
		return sdkerrors.Wrapf(hookerr.ErrUnauthorized, "caller %s is not admin", caller.Hex())
	}
	g.grants[capability][identity] = allowed
	return nil
}

// Check reports whether the identity holds the capability. Unknown
// identities are denied; the lookup never fails.
func (g *Gate) Check(capability model.Capability, identity common.Address) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.grants[capability][identity]
}

// Restore loads previously persisted grants without admin checks. It
// is meant for store replay at startup, before the gate serves traffic.
func (g *Gate) Restore(records []model.PermissionRecord) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, rec := range records {
		if !rec.Capability.Valid() {
			continue
		}
		g.grants[rec.Capability][rec.Identity] = rec.Allowed
	}
}
