package storage

import (
	"context"

	"driftfee/internal/model"
)

// Store persists the admin-owned hook state: global config, capability
// grants, per-pool fee overrides and oracle bindings.
type Store interface {
	SaveConfig(ctx context.Context, cfg model.GlobalConfig) error
	SavePermission(ctx context.Context, rec model.PermissionRecord) error
	SaveFeeOverride(ctx context.Context, rec model.FeeOverrideRecord) error
	SaveOracleBinding(ctx context.Context, rec model.OracleBindingRecord) error

	LoadConfig(ctx context.Context) (model.GlobalConfig, bool, error)
	LoadPermissions(ctx context.Context) ([]model.PermissionRecord, error)
	LoadFeeOverrides(ctx context.Context) ([]model.FeeOverrideRecord, error)
	LoadOracleBindings(ctx context.Context) ([]model.OracleBindingRecord, error)
}
