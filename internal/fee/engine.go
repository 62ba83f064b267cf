// Package fee implements the divergence-priced dynamic fee engine.
//
// The engine charges extra only on trades that push the pool price
// further away from the external market reference; trades moving the
// price back toward the reference pay the static fee.
package fee

import (
	"math/big"

	sdkerrors "cosmossdk.io/errors"
	"go.uber.org/zap"

	"driftfee/internal/hookerr"
	"driftfee/internal/model"
	"driftfee/internal/pricing"
)

// Inputs carries everything one fee evaluation needs. Reference is nil
// when the pool has no oracle binding.
type Inputs struct {
	BaseFee       uint32
	OverrideFee   uint32
	Prices        pricing.SpotPrices
	Reference     *big.Int
	CompareToken0 bool
	Direction     model.TradeDirection
	Multiplier    uint32
}

// Engine computes per-trade fees. It holds no state of its own; all
// inputs are resolved by the caller per evaluation.
type Engine struct {
	logger *zap.Logger
}

// NewEngine builds a fee engine.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

// Compute returns the fee to apply to the in-flight trade.
//
// Step 1 selects the static fee (override wins when non-zero). Step 2
// adds the directional divergence adjustment, skipped entirely when no
// reference exists or the reference is non-positive. The result is
// bounded by model.MaxFeePips; exceeding it is an arithmetic failure
// rather than a silent wrap.
func (e *Engine) Compute(in Inputs) (uint32, error) {
	feePips := in.BaseFee
	if in.OverrideFee != 0 {
		feePips = in.OverrideFee
	}

	if in.Reference == nil {
		return feePips, nil
	}
	reference := in.Reference
	if reference.Sign() <= 0 {
		// The adapter passes non-positive quotes through; dividing
		// by them here would fault, so the adjustment is skipped.
		e.logger.Warn("non-positive reference price, static fee applies",
			zap.String("reference", reference.String()),
		)
		return feePips, nil
	}

	poolPrice := in.Prices.Price1
	if in.CompareToken0 {
		poolPrice = in.Prices.Price0
	}
	if poolPrice == nil {
		return 0, sdkerrors.Wrap(hookerr.ErrArithmetic, "missing pool price")
	}

	if !adjustmentTriggers(poolPrice, reference, in.CompareToken0, in.Direction) {
		return feePips, nil
	}

	delta := new(big.Int).Sub(poolPrice, reference)
	delta.Abs(delta)
	adjustment := delta.Mul(delta, new(big.Int).SetUint64(uint64(in.Multiplier)))
	adjustment.Quo(adjustment, reference)

	total := adjustment.Add(adjustment, new(big.Int).SetUint64(uint64(feePips)))
	if total.Cmp(big.NewInt(model.MaxFeePips)) > 0 {
		return 0, sdkerrors.Wrapf(hookerr.ErrArithmetic, "adjusted fee %s exceeds fee range", total)
	}
	return uint32(total.Uint64()), nil
}

// adjustmentTriggers encodes the directional truth table: the fee only
// rises when the trade moves the pool price away from the reference.
func adjustmentTriggers(poolPrice, reference *big.Int, compareToken0 bool, direction model.TradeDirection) bool {
	cmp := poolPrice.Cmp(reference)
	if cmp == 0 {
		return false
	}
	if compareToken0 {
		return (cmp > 0 && direction == model.Asset0ToAsset1) ||
			(cmp < 0 && direction == model.Asset1ToAsset0)
	}
	return (cmp < 0 && direction == model.Asset0ToAsset1) ||
		(cmp > 0 && direction == model.Asset1ToAsset0)
}
