// Package hook is the boundary adapter between the host liquidity
// engine and the fee/permission core. It stays thin: permission check,
// price plumbing, fee computation, fee write-back.
package hook

import (
	"context"
	"sync"

	sdkerrors "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"driftfee/internal/access"
	"driftfee/internal/fee"
	"driftfee/internal/hookerr"
	"driftfee/internal/model"
	"driftfee/internal/pricing"
	"driftfee/internal/storage"
)

// Ledger is the narrow outbound surface toward the liquidity engine.
type Ledger interface {
	ReadPriceSnapshot(ctx context.Context, poolID common.Hash) (model.PriceSnapshot, error)
	SetDynamicFee(ctx context.Context, poolID common.Hash, feePips uint32) error
}

// Oracle reads the latest quote from a reference feed.
type Oracle interface {
	ReadLatestQuote(ctx context.Context, feed common.Address) (model.QuoteSnapshot, error)
}

// TokenMetaSource resolves ERC20 decimal precision for the comparison
// target asset.
type TokenMetaSource interface {
	TokenDecimals(ctx context.Context, token common.Address) (uint8, error)
}

// PoolRegistrar learns which contract address backs a pool ID so the
// ledger can read its price snapshots.
type PoolRegistrar interface {
	RegisterPool(poolID common.Hash, address common.Address)
}

// Facade wires the permission gate and fee engine to the collaborators.
type Facade struct {
	gate      *access.Gate
	engine    *fee.Engine
	ledger    Ledger
	oracle    Oracle
	tokens    TokenMetaSource
	registrar PoolRegistrar

	store   storage.Store
	journal storage.Journal
	logger  *zap.Logger

	mu        sync.RWMutex
	config    model.GlobalConfig
	overrides map[common.Hash]uint32
	bindings  map[common.Hash]model.OracleBinding
}

// Deps bundles the facade's collaborators. Store and Journal may be
// nil for a purely in-memory facade.
type Deps struct {
	Gate      *access.Gate
	Engine    *fee.Engine
	Ledger    Ledger
	Oracle    Oracle
	Tokens    TokenMetaSource
	Registrar PoolRegistrar
	Store     storage.Store
	Journal   storage.Journal
	Logger    *zap.Logger
}

// NewFacade builds the facade.
func NewFacade(deps Deps) *Facade {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	gate := deps.Gate
	if gate == nil {
		gate = access.NewGate()
	}
	engine := deps.Engine
	if engine == nil {
		engine = fee.NewEngine(logger)
	}
	return &Facade{
		gate:      gate,
		engine:    engine,
		ledger:    deps.Ledger,
		oracle:    deps.Oracle,
		tokens:    deps.Tokens,
		registrar: deps.Registrar,
		store:     deps.Store,
		journal:   deps.Journal,
		logger:    logger,
		overrides: make(map[common.Hash]uint32),
		bindings:  make(map[common.Hash]model.OracleBinding),
	}
}

// Gate exposes the permission gate for read-side callers.
func (f *Facade) Gate() *access.Gate {
	return f.gate
}

// OnBeforeLiquidityChange admits or rejects a liquidity add/remove.
func (f *Facade) OnBeforeLiquidityChange(ctx context.Context, identity common.Address, key model.PoolKey) error {
	if !f.gate.Check(model.CapabilityManageLiquidity, identity) {
		return sdkerrors.Wrapf(hookerr.ErrForbidden, "identity %s lacks liquidity permission", identity.Hex())
	}
	f.logger.Debug("liquidity change admitted",
		zap.String("identity", identity.Hex()),
		zap.String("pool", key.ID().Hex()),
	)
	return nil
}

// OnBeforeTrade admits a trade, computes the fee to apply and reports
// it to the liquidity engine. Failure at any step aborts the trade
// with no fee written.
func (f *Facade) OnBeforeTrade(ctx context.Context, identity common.Address, key model.PoolKey, direction model.TradeDirection) (uint32, error) {
	if !f.gate.Check(model.CapabilityTrade, identity) {
		return 0, sdkerrors.Wrapf(hookerr.ErrForbidden, "identity %s lacks trade permission", identity.Hex())
	}

	poolID := key.ID()

	f.mu.RLock()
	cfg := f.config
	override := f.overrides[poolID]
	binding, bound := f.bindings[poolID]
	f.mu.RUnlock()

	inputs := fee.Inputs{
		BaseFee:     cfg.BaseFee,
		OverrideFee: override,
		Direction:   direction,
		Multiplier:  cfg.Multiplier,
	}

	if bound {
		if f.ledger == nil || f.oracle == nil {
			return 0, sdkerrors.Wrap(hookerr.ErrInvalidArgument, "pool is oracle-bound but no ledger/oracle collaborator is wired")
		}

		snapshot, err := f.ledger.ReadPriceSnapshot(ctx, poolID)
		if err != nil {
			return 0, err
		}
		prices, err := pricing.DeriveSpotPrices(snapshot)
		if err != nil {
			return 0, err
		}

		quote, err := f.oracle.ReadLatestQuote(ctx, binding.Feed)
		if err != nil {
			return 0, err
		}
		targetDecimals, err := f.targetDecimals(ctx, key, binding)
		if err != nil {
			return 0, err
		}

		quoteDecimals := quote.Decimals
		if binding.QuoteDecimals != 0 {
			quoteDecimals = binding.QuoteDecimals
		}

		inputs.Prices = prices
		inputs.Reference = pricing.NormalizeReference(quote.Value, quoteDecimals, targetDecimals)
		inputs.CompareToken0 = binding.CompareToken0
	}

	feePips, err := f.engine.Compute(inputs)
	if err != nil {
		return 0, err
	}

	if f.ledger != nil {
		if err := f.ledger.SetDynamicFee(ctx, poolID, feePips); err != nil {
			return 0, err
		}
	}

	f.appendJournal(storage.JournalEntry{
		Kind:      "fee_decision",
		Actor:     identity.Hex(),
		PoolID:    poolID.Hex(),
		Direction: direction.String(),
		Fee:       feePips,
	})
	return feePips, nil
}

// targetDecimals resolves the decimal precision of the comparison
// target asset. Without a token metadata source it falls back to 18,
// the precision the derived pool prices use.
func (f *Facade) targetDecimals(ctx context.Context, key model.PoolKey, binding model.OracleBinding) (uint8, error) {
	if f.tokens == nil {
		return 18, nil
	}
	token := key.Token1
	if binding.CompareToken0 {
		token = key.Token0
	}
	return f.tokens.TokenDecimals(ctx, token)
}

func (f *Facade) appendJournal(entry storage.JournalEntry) {
	if f.journal == nil {
		return
	}
	if err := f.journal.Append(entry); err != nil {
		f.logger.Warn("journal append failed", zap.Error(err))
	}
}
