package fee

import (
	"math/big"
	"testing"

	sdkerrors "cosmossdk.io/errors"
	"go.uber.org/zap"

	"driftfee/internal/hookerr"
	"driftfee/internal/model"
	"driftfee/internal/pricing"
)

func wadTimes(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func TestComputeStaticFeeWithoutReference(t *testing.T) {
	engine := NewEngine(zap.NewNop())

	for _, direction := range []model.TradeDirection{model.Asset0ToAsset1, model.Asset1ToAsset0} {
		got, err := engine.Compute(Inputs{
			BaseFee:   3000,
			Direction: direction,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != 3000 {
			t.Fatalf("expected base fee 3000, got %d", got)
		}
	}
}

func TestComputeOverrideWins(t *testing.T) {
	engine := NewEngine(zap.NewNop())

	got, err := engine.Compute(Inputs{BaseFee: 3000, OverrideFee: 500})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 500 {
		t.Fatalf("expected override fee 500, got %d", got)
	}
}

func TestComputeDirectionalTriggering(t *testing.T) {
	engine := NewEngine(zap.NewNop())

	below := wadTimes(3800) // pool price below the reference
	above := wadTimes(4000) // pool price above the reference
	reference := wadTimes(3900)

	cases := []struct {
		name          string
		poolPrice     *big.Int
		compareToken0 bool
		direction     model.TradeDirection
		triggers      bool
	}{
		{"token0 above selling 0", above, true, model.Asset0ToAsset1, true},
		{"token0 above selling 1", above, true, model.Asset1ToAsset0, false},
		{"token0 below selling 0", below, true, model.Asset0ToAsset1, false},
		{"token0 below selling 1", below, true, model.Asset1ToAsset0, true},
		{"token1 above selling 0", above, false, model.Asset0ToAsset1, false},
		{"token1 above selling 1", above, false, model.Asset1ToAsset0, true},
		{"token1 below selling 0", below, false, model.Asset0ToAsset1, true},
		{"token1 below selling 1", below, false, model.Asset1ToAsset0, false},
		{"equal never triggers", new(big.Int).Set(reference), true, model.Asset0ToAsset1, false},
	}

	for _, tc := range cases {
		prices := pricing.SpotPrices{Price0: tc.poolPrice, Price1: tc.poolPrice}
		got, err := engine.Compute(Inputs{
			BaseFee:       500,
			Prices:        prices,
			Reference:     reference,
			CompareToken0: tc.compareToken0,
			Direction:     tc.direction,
			Multiplier:    model.MaxFeePips,
		})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if tc.triggers && got <= 500 {
			t.Fatalf("%s: expected adjusted fee above 500, got %d", tc.name, got)
		}
		if !tc.triggers && got != 500 {
			t.Fatalf("%s: expected unchanged fee 500, got %d", tc.name, got)
		}
	}
}

func TestComputeAdjustmentValue(t *testing.T) {
	engine := NewEngine(zap.NewNop())

	// delta = 100e18, M = 3900e18, multiplier = 1e6:
	// adjustment = 100e18 * 1e6 / 3900e18 = 25641 (truncated).
	got, err := engine.Compute(Inputs{
		BaseFee:       500,
		Prices:        pricing.SpotPrices{Price0: wadTimes(3800), Price1: wadTimes(3800)},
		Reference:     wadTimes(3900),
		CompareToken0: true,
		Direction:     model.Asset1ToAsset0,
		Multiplier:    1_000_000,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 500+25641 {
		t.Fatalf("expected fee %d, got %d", 500+25641, got)
	}
}

func TestComputeSkipsZeroReference(t *testing.T) {
	engine := NewEngine(zap.NewNop())

	for _, reference := range []*big.Int{big.NewInt(0), big.NewInt(-100)} {
		got, err := engine.Compute(Inputs{
			BaseFee:       500,
			Prices:        pricing.SpotPrices{Price0: wadTimes(3800), Price1: wadTimes(3800)},
			Reference:     reference,
			CompareToken0: true,
			Direction:     model.Asset1ToAsset0,
			Multiplier:    1_000_000,
		})
		if err != nil {
			t.Fatalf("reference %s: unexpected error: %v", reference, err)
		}
		if got != 500 {
			t.Fatalf("reference %s: expected static fee 500, got %d", reference, got)
		}
	}
}

func TestComputeOverflowFails(t *testing.T) {
	engine := NewEngine(zap.NewNop())

	// Pool price a million times the reference pushes the adjustment
	// far past the fee cap; wrapping must not happen.
	_, err := engine.Compute(Inputs{
		BaseFee:       500,
		Prices:        pricing.SpotPrices{Price0: wadTimes(4_000_000_000), Price1: wadTimes(4_000_000_000)},
		Reference:     wadTimes(1),
		CompareToken0: true,
		Direction:     model.Asset0ToAsset1,
		Multiplier:    1_000_000,
	})
	if !sdkerrors.IsOf(err, hookerr.ErrArithmetic) {
		t.Fatalf("expected arithmetic error, got %v", err)
	}
}

func TestComputeMonotonic(t *testing.T) {
	engine := NewEngine(zap.NewNop())

	base := Inputs{
		BaseFee:       500,
		Prices:        pricing.SpotPrices{Price0: wadTimes(3800), Price1: wadTimes(3800)},
		Reference:     wadTimes(3900),
		CompareToken0: true,
		Multiplier:    1_000_000,
	}

	triggered := base
	triggered.Direction = model.Asset1ToAsset0
	got, err := engine.Compute(triggered)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got <= 500 {
		t.Fatalf("triggered adjustment must strictly increase the fee, got %d", got)
	}

	untriggered := base
	untriggered.Direction = model.Asset0ToAsset1
	got, err = engine.Compute(untriggered)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 500 {
		t.Fatalf("untriggered trade must keep the static fee, got %d", got)
	}
}
