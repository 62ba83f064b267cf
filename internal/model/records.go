package model

import "github.com/ethereum/go-ethereum/common"

// MaxFeePips is 100% expressed in pips (hundredths of a basis point).
// Both fees and the sensitivity multiplier live in this range.
const MaxFeePips = 1_000_000

// GlobalConfig holds the admin-owned global fee parameters.
type GlobalConfig struct {
	BaseFee    uint32         `json:"base_fee"`
	Multiplier uint32         `json:"multiplier"`
	Admin      common.Address `json:"admin"`
}

// OracleBinding links a pool to a reference price feed. A pool with no
// binding degrades to a static fee.
type OracleBinding struct {
	Feed common.Address `json:"feed"`
	// PoolAddress is the pool contract price snapshots are read from.
	PoolAddress common.Address `json:"pool_address"`
	// CompareToken0 selects which derived pool price is compared
	// against the normalized reference.
	CompareToken0 bool `json:"compare_token0"`
	// QuoteDecimals, when nonzero, overrides the precision the feed
	// reports for its quotes.
	QuoteDecimals uint8 `json:"quote_decimals"`
}

// PermissionRecord is one persisted capability grant.
type PermissionRecord struct {
	Capability Capability     `json:"capability"`
	Identity   common.Address `json:"identity"`
	Allowed    bool           `json:"allowed"`
}

// FeeOverrideRecord is one persisted per-pool fee override. A zero fee
// means "no override, use the global base fee".
type FeeOverrideRecord struct {
	PoolID common.Hash `json:"pool_id"`
	Fee    uint32      `json:"fee"`
}

// OracleBindingRecord is one persisted pool-to-feed binding.
type OracleBindingRecord struct {
	PoolID  common.Hash   `json:"pool_id"`
	Binding OracleBinding `json:"binding"`
}
