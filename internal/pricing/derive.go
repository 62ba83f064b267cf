// Package pricing derives comparable spot prices: the pool side from
// its sqrt price representation, the oracle side by decimal rescaling.
package pricing

import (
	"math/big"

	sdkerrors "cosmossdk.io/errors"

	"driftfee/internal/hookerr"
	"driftfee/internal/model"
)

var (
	// Valid sqrt price bounds of the liquidity engine's tick range.
	minSqrtRatio    = big.NewInt(4295128739)
	maxSqrtRatio, _ = new(big.Int).SetString("1461446703485210103287273052203988822378723970342", 10)

	q96 = new(big.Int).Lsh(big.NewInt(1), 96)
	wad = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	ten = big.NewInt(10)
)

// SpotPrices holds the two derived pool prices, each "units of the
// other asset per one unit of this asset" in 1e18 fixed point.
type SpotPrices struct {
	Price0 *big.Int
	Price1 *big.Int
}

// DeriveSpotPrices converts a Q64.96 sqrt price into plain per-asset
// prices. Both divisions round up: under-reporting a price would
// under-charge the divergence fee.
func DeriveSpotPrices(snapshot model.PriceSnapshot) (SpotPrices, error) {
	sqrtPrice := snapshot.SqrtPriceX96
	if sqrtPrice == nil {
		return SpotPrices{}, sdkerrors.Wrap(hookerr.ErrOutOfRange, "missing sqrt price")
	}
	if sqrtPrice.Cmp(minSqrtRatio) < 0 || sqrtPrice.Cmp(maxSqrtRatio) >= 0 {
		return SpotPrices{}, sdkerrors.Wrapf(hookerr.ErrOutOfRange, "sqrt price %s outside valid bounds", sqrtPrice)
	}

	// ratioX96 = sqrtPrice^2 / 2^96, still in Q64.96.
	ratioX96 := new(big.Int).Mul(sqrtPrice, sqrtPrice)
	ratioX96.Quo(ratioX96, q96)
	if ratioX96.Sign() == 0 {
		return SpotPrices{}, sdkerrors.Wrap(hookerr.ErrArithmetic, "degenerate pool price")
	}

	price0 := ceilDiv(new(big.Int).Mul(ratioX96, wad), q96)
	price1 := ceilDiv(new(big.Int).Mul(q96, wad), ratioX96)

	if price0.Sign() == 0 || price1.Sign() == 0 {
		return SpotPrices{}, sdkerrors.Wrap(hookerr.ErrArithmetic, "degenerate pool price")
	}
	return SpotPrices{Price0: price0, Price1: price1}, nil
}

// NormalizeReference rescales a raw oracle quote from its native
// decimal precision to the target precision. Downscaling truncates
// toward zero; there is deliberately no round-up bias here, unlike the
// pool side. Non-positive values pass through unchanged in scale.
func NormalizeReference(value *big.Int, nativeDecimals, targetDecimals uint8) *big.Int {
	if value == nil {
		return nil
	}
	out := new(big.Int).Set(value)
	switch {
	case nativeDecimals > targetDecimals:
		scale := new(big.Int).Exp(ten, big.NewInt(int64(nativeDecimals-targetDecimals)), nil)
		out.Quo(out, scale)
	case nativeDecimals < targetDecimals:
		scale := new(big.Int).Exp(ten, big.NewInt(int64(targetDecimals-nativeDecimals)), nil)
		out.Mul(out, scale)
	}
	return out
}

func ceilDiv(numerator, denominator *big.Int) *big.Int {
	quo, rem := new(big.Int).QuoRem(numerator, denominator, new(big.Int))
	if rem.Sign() != 0 {
		quo.Add(quo, big.NewInt(1))
	}
	return quo
}
