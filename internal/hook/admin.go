package hook

import (
	"context"
	"fmt"

	sdkerrors "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"driftfee/internal/hookerr"
	"driftfee/internal/model"
	"driftfee/internal/storage"
)

// InitAdmin performs the one-time genesis admin assignment.
func (f *Facade) InitAdmin(ctx context.Context, identity common.Address) error {
	if err := f.gate.SetAdmin(identity); err != nil {
		return err
	}
	f.mu.Lock()
	f.config.Admin = identity
	cfg := f.config
	f.mu.Unlock()

	f.persistConfig(ctx, cfg)
	f.appendJournal(storage.JournalEntry{Kind: "admin_init", Actor: identity.Hex()})
	return nil
}

// TransferAdmin hands the admin role over; admin-only.
func (f *Facade) TransferAdmin(ctx context.Context, caller, next common.Address) error {
	if err := f.gate.TransferAdmin(caller, next); err != nil {
		return err
	}
	f.mu.Lock()
	f.config.Admin = next
	cfg := f.config
	f.mu.Unlock()

	f.persistConfig(ctx, cfg)
	f.appendJournal(storage.JournalEntry{
		Kind:   "admin_transfer",
		Actor:  caller.Hex(),
		Detail: next.Hex(),
	})
	return nil
}

// SetBaseFee updates the global default fee; admin-only.
func (f *Facade) SetBaseFee(ctx context.Context, caller common.Address, feePips uint32) error {
	if feePips > model.MaxFeePips {
		return sdkerrors.Wrapf(hookerr.ErrInvalidArgument, "base fee %d exceeds %d", feePips, model.MaxFeePips)
	}
	if err := f.requireAdmin(caller); err != nil {
		return err
	}
	f.mu.Lock()
	f.config.BaseFee = feePips
	cfg := f.config
	f.mu.Unlock()

	f.persistConfig(ctx, cfg)
	f.appendJournal(storage.JournalEntry{
		Kind:  "set_base_fee",
		Actor: caller.Hex(),
		Fee:   feePips,
	})
	return nil
}

// SetMultiplier updates the fee sensitivity multiplier; admin-only.
// Bounded at 1,000,000 (100%).
func (f *Facade) SetMultiplier(ctx context.Context, caller common.Address, multiplier uint32) error {
	if multiplier > model.MaxFeePips {
		return sdkerrors.Wrapf(hookerr.ErrInvalidArgument, "multiplier %d exceeds %d", multiplier, model.MaxFeePips)
	}
	if err := f.requireAdmin(caller); err != nil {
		return err
	}
	f.mu.Lock()
	f.config.Multiplier = multiplier
	cfg := f.config
	f.mu.Unlock()

	f.persistConfig(ctx, cfg)
	f.appendJournal(storage.JournalEntry{
		Kind:   "set_multiplier",
		Actor:  caller.Hex(),
		Detail: fmt.Sprintf("%d", multiplier),
	})
	return nil
}

// SetFeeOverride sets the per-pool override fee; zero clears it back
// to the global base fee. Admin-only.
func (f *Facade) SetFeeOverride(ctx context.Context, caller common.Address, poolID common.Hash, feePips uint32) error {
	if feePips > model.MaxFeePips {
		return sdkerrors.Wrapf(hookerr.ErrInvalidArgument, "override fee %d exceeds %d", feePips, model.MaxFeePips)
	}
	if err := f.requireAdmin(caller); err != nil {
		return err
	}
	f.mu.Lock()
	if feePips == 0 {
		delete(f.overrides, poolID)
	} else {
		f.overrides[poolID] = feePips
	}
	f.mu.Unlock()

	if f.store != nil {
		rec := model.FeeOverrideRecord{PoolID: poolID, Fee: feePips}
		if err := f.store.SaveFeeOverride(ctx, rec); err != nil {
			f.logger.Warn("persist fee override failed", zap.Error(err))
		}
	}
	f.appendJournal(storage.JournalEntry{
		Kind:   "set_fee_override",
		Actor:  caller.Hex(),
		PoolID: poolID.Hex(),
		Fee:    feePips,
	})
	return nil
}

// SetOracleBinding binds (or rebinds) a pool to a reference feed; a
// zero feed address clears the binding. Admin-only.
func (f *Facade) SetOracleBinding(ctx context.Context, caller common.Address, poolID common.Hash, binding model.OracleBinding) error {
	if err := f.requireAdmin(caller); err != nil {
		return err
	}
	f.mu.Lock()
	if binding.Feed == (common.Address{}) {
		delete(f.bindings, poolID)
	} else {
		f.bindings[poolID] = binding
	}
	f.mu.Unlock()

	f.registerPool(poolID, binding)

	if f.store != nil {
		rec := model.OracleBindingRecord{PoolID: poolID, Binding: binding}
		if err := f.store.SaveOracleBinding(ctx, rec); err != nil {
			f.logger.Warn("persist oracle binding failed", zap.Error(err))
		}
	}
	f.appendJournal(storage.JournalEntry{
		Kind:   "set_oracle_binding",
		Actor:  caller.Hex(),
		PoolID: poolID.Hex(),
		Detail: binding.Feed.Hex(),
	})
	return nil
}

// Grant forwards a capability grant through the gate; admin-only.
func (f *Facade) Grant(ctx context.Context, caller common.Address, capability model.Capability, identity common.Address, allowed bool) error {
	if err := f.gate.Grant(caller, capability, identity, allowed); err != nil {
		return err
	}
	if f.store != nil {
		rec := model.PermissionRecord{Capability: capability, Identity: identity, Allowed: allowed}
		if err := f.store.SavePermission(ctx, rec); err != nil {
			f.logger.Warn("persist permission failed", zap.Error(err))
		}
	}
	f.appendJournal(storage.JournalEntry{
		Kind:   "grant",
		Actor:  caller.Hex(),
		Detail: fmt.Sprintf("%s %s=%t", capability, identity.Hex(), allowed),
	})
	return nil
}

// Restore replays persisted state from the store into memory. Called
// once at startup before the facade serves traffic.
func (f *Facade) Restore(ctx context.Context) error {
	if f.store == nil {
		return nil
	}

	cfg, found, err := f.store.LoadConfig(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if found {
		f.mu.Lock()
		f.config = cfg
		f.mu.Unlock()
		if cfg.Admin != (common.Address{}) {
			if err := f.gate.SetAdmin(cfg.Admin); err != nil {
				return err
			}
		}
	}

	perms, err := f.store.LoadPermissions(ctx)
	if err != nil {
		return fmt.Errorf("load permissions: %w", err)
	}
	f.gate.Restore(perms)

	overrides, err := f.store.LoadFeeOverrides(ctx)
	if err != nil {
		return fmt.Errorf("load fee overrides: %w", err)
	}
	bindings, err := f.store.LoadOracleBindings(ctx)
	if err != nil {
		return fmt.Errorf("load oracle bindings: %w", err)
	}

	f.mu.Lock()
	for _, rec := range overrides {
		if rec.Fee != 0 {
			f.overrides[rec.PoolID] = rec.Fee
		}
	}
	for _, rec := range bindings {
		if rec.Binding.Feed != (common.Address{}) {
			f.bindings[rec.PoolID] = rec.Binding
		}
	}
	f.mu.Unlock()

	for _, rec := range bindings {
		if rec.Binding.Feed != (common.Address{}) {
			f.registerPool(rec.PoolID, rec.Binding)
		}
	}

	return nil
}

// registerPool tells the ledger which contract backs the pool so the
// trade path can read its price snapshot.
func (f *Facade) registerPool(poolID common.Hash, binding model.OracleBinding) {
	if f.registrar == nil || binding.PoolAddress == (common.Address{}) {
		return
	}
	f.registrar.RegisterPool(poolID, binding.PoolAddress)
}

// Config returns a copy of the current global configuration.
func (f *Facade) Config() model.GlobalConfig {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.config
}

func (f *Facade) requireAdmin(caller common.Address) error {
	admin := f.gate.Admin()
	if admin == (common.Address{}) || caller != admin {
		return sdkerrors.Wrapf(hookerr.ErrUnauthorized, "caller %s is not admin", caller.Hex())
	}
	return nil
}

func (f *Facade) persistConfig(ctx context.Context, cfg model.GlobalConfig) {
	if f.store == nil {
		return
	}
	if err := f.store.SaveConfig(ctx, cfg); err != nil {
		f.logger.Warn("persist config failed", zap.Error(err))
	}
}
