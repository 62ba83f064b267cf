package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"driftfee/internal/model"
)

// Store provides Postgres persistence for the hook's admin state.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// SaveConfig upserts the single global configuration row.
func (s *Store) SaveConfig(ctx context.Context, cfg model.GlobalConfig) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO hook_config (id, base_fee, multiplier, admin, updated_at)
		VALUES (1, $1, $2, $3, now())
		ON CONFLICT (id) DO UPDATE SET
			base_fee = EXCLUDED.base_fee,
			multiplier = EXCLUDED.multiplier,
			admin = EXCLUDED.admin,
			updated_at = now()
	`, cfg.BaseFee, cfg.Multiplier, cfg.Admin.Hex())
	return err
}

// LoadConfig reads the global configuration row if present.
func (s *Store) LoadConfig(ctx context.Context) (model.GlobalConfig, bool, error) {
	var (
		baseFee    int64
		multiplier int64
		admin      string
	)
	row := s.pool.QueryRow(ctx, `SELECT base_fee, multiplier, admin FROM hook_config WHERE id=1`)
	if err := row.Scan(&baseFee, &multiplier, &admin); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.GlobalConfig{}, false, nil
		}
		return model.GlobalConfig{}, false, err
	}
	return model.GlobalConfig{
		BaseFee:    uint32(baseFee),
		Multiplier: uint32(multiplier),
		Admin:      common.HexToAddress(admin),
	}, true, nil
}

// SavePermission upserts one capability grant.
func (s *Store) SavePermission(ctx context.Context, rec model.PermissionRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO permissions (capability, identity, allowed, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (capability, identity) DO UPDATE SET
			allowed = EXCLUDED.allowed,
			updated_at = now()
	`, string(rec.Capability), rec.Identity.Hex(), rec.Allowed)
	return err
}

// LoadPermissions reads all persisted capability grants.
func (s *Store) LoadPermissions(ctx context.Context) ([]model.PermissionRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT capability, identity, allowed FROM permissions`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]model.PermissionRecord, 0)
	for rows.Next() {
		var (
			capability string
			identity   string
			allowed    bool
		)
		if err := rows.Scan(&capability, &identity, &allowed); err != nil {
			return nil, err
		}
		records = append(records, model.PermissionRecord{
			Capability: model.Capability(capability),
			Identity:   common.HexToAddress(identity),
			Allowed:    allowed,
		})
	}
	return records, rows.Err()
}

// SaveFeeOverride upserts one per-pool fee override. Zero fee rows are
// kept as explicit "no override" tombstones.
func (s *Store) SaveFeeOverride(ctx context.Context, rec model.FeeOverrideRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO fee_overrides (pool_id, fee, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (pool_id) DO UPDATE SET
			fee = EXCLUDED.fee,
			updated_at = now()
	`, rec.PoolID.Hex(), rec.Fee)
	return err
}

// LoadFeeOverrides reads all persisted fee overrides.
func (s *Store) LoadFeeOverrides(ctx context.Context) ([]model.FeeOverrideRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT pool_id, fee FROM fee_overrides`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]model.FeeOverrideRecord, 0)
	for rows.Next() {
		var (
			poolID string
			fee    int64
		)
		if err := rows.Scan(&poolID, &fee); err != nil {
			return nil, err
		}
		records = append(records, model.FeeOverrideRecord{
			PoolID: common.HexToHash(poolID),
			Fee:    uint32(fee),
		})
	}
	return records, rows.Err()
}

// SaveOracleBinding upserts one pool-to-feed binding.
func (s *Store) SaveOracleBinding(ctx context.Context, rec model.OracleBindingRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO oracle_bindings (pool_id, feed, pool_address, compare_token0, quote_decimals, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (pool_id) DO UPDATE SET
			feed = EXCLUDED.feed,
			pool_address = EXCLUDED.pool_address,
			compare_token0 = EXCLUDED.compare_token0,
			quote_decimals = EXCLUDED.quote_decimals,
			updated_at = now()
	`, rec.PoolID.Hex(), rec.Binding.Feed.Hex(), rec.Binding.PoolAddress.Hex(), rec.Binding.CompareToken0, rec.Binding.QuoteDecimals)
	return err
}

// LoadOracleBindings reads all persisted pool-to-feed bindings.
func (s *Store) LoadOracleBindings(ctx context.Context) ([]model.OracleBindingRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT pool_id, feed, pool_address, compare_token0, quote_decimals FROM oracle_bindings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]model.OracleBindingRecord, 0)
	for rows.Next() {
		var (
			poolID        string
			feed          string
			poolAddress   string
			compareToken0 bool
			quoteDecimals int16
		)
		if err := rows.Scan(&poolID, &feed, &poolAddress, &compareToken0, &quoteDecimals); err != nil {
			return nil, err
		}
		records = append(records, model.OracleBindingRecord{
			PoolID: common.HexToHash(poolID),
			Binding: model.OracleBinding{
				Feed:          common.HexToAddress(feed),
				PoolAddress:   common.HexToAddress(poolAddress),
				CompareToken0: compareToken0,
				QuoteDecimals: uint8(quoteDecimals),
			},
		})
	}
	return records, rows.Err()
}

// EnsureSchema creates the admin-state tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS hook_config (
			id INT PRIMARY KEY,
			base_fee BIGINT NOT NULL,
			multiplier BIGINT NOT NULL,
			admin TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS permissions (
			capability TEXT NOT NULL,
			identity TEXT NOT NULL,
			allowed BOOLEAN NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (capability, identity)
		)`,
		`CREATE TABLE IF NOT EXISTS fee_overrides (
			pool_id TEXT PRIMARY KEY,
			fee BIGINT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS oracle_bindings (
			pool_id TEXT PRIMARY KEY,
			feed TEXT NOT NULL,
			pool_address TEXT NOT NULL DEFAULT '',
			compare_token0 BOOLEAN NOT NULL,
			quote_decimals SMALLINT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
