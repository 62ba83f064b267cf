package hook

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"driftfee/internal/model"
)

// memStore is an in-memory storage.Store used to exercise persistence
// round trips without a database.
type memStore struct {
	mu        sync.Mutex
	config    *model.GlobalConfig
	perms     map[string]model.PermissionRecord
	overrides map[common.Hash]model.FeeOverrideRecord
	bindings  map[common.Hash]model.OracleBindingRecord
}

func newMemStore() *memStore {
	return &memStore{
		perms:     make(map[string]model.PermissionRecord),
		overrides: make(map[common.Hash]model.FeeOverrideRecord),
		bindings:  make(map[common.Hash]model.OracleBindingRecord),
	}
}

func (s *memStore) SaveConfig(_ context.Context, cfg model.GlobalConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = &cfg
	return nil
}

func (s *memStore) LoadConfig(_ context.Context) (model.GlobalConfig, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.config == nil {
		return model.GlobalConfig{}, false, nil
	}
	return *s.config, true, nil
}

func (s *memStore) SavePermission(_ context.Context, rec model.PermissionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.perms[string(rec.Capability)+rec.Identity.Hex()] = rec
	return nil
}

func (s *memStore) LoadPermissions(_ context.Context) ([]model.PermissionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.PermissionRecord, 0, len(s.perms))
	for _, rec := range s.perms {
		out = append(out, rec)
	}
	return out, nil
}

func (s *memStore) SaveFeeOverride(_ context.Context, rec model.FeeOverrideRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[rec.PoolID] = rec
	return nil
}

func (s *memStore) LoadFeeOverrides(_ context.Context) ([]model.FeeOverrideRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.FeeOverrideRecord, 0, len(s.overrides))
	for _, rec := range s.overrides {
		out = append(out, rec)
	}
	return out, nil
}

func (s *memStore) SaveOracleBinding(_ context.Context, rec model.OracleBindingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bindings[rec.PoolID] = rec
	return nil
}

func (s *memStore) LoadOracleBindings(_ context.Context) ([]model.OracleBindingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.OracleBindingRecord, 0, len(s.bindings))
	for _, rec := range s.bindings {
		out = append(out, rec)
	}
	return out, nil
}
