package hook

import (
	"context"
	"math/big"
	"testing"

	sdkerrors "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/common"

	"driftfee/internal/hookerr"
	"driftfee/internal/model"
	"driftfee/internal/storage"
)

var (
	admin  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	trader = common.HexToAddress("0x2222222222222222222222222222222222222222")
	lper   = common.HexToAddress("0x3333333333333333333333333333333333333333")
	feed   = common.HexToAddress("0x4444444444444444444444444444444444444444")

	testKey = model.PoolKey{
		Token0:      common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		Token1:      common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"),
		Fee:         2500,
		TickSpacing: 60,
	}
)

type fakeLedger struct {
	sqrtPrice *big.Int
	setCalls  int
	lastFee   uint32
	pools     map[common.Hash]common.Address
}

func (l *fakeLedger) RegisterPool(poolID common.Hash, address common.Address) {
	if l.pools == nil {
		l.pools = make(map[common.Hash]common.Address)
	}
	l.pools[poolID] = address
}

func (l *fakeLedger) ReadPriceSnapshot(_ context.Context, _ common.Hash) (model.PriceSnapshot, error) {
	return model.PriceSnapshot{SqrtPriceX96: l.sqrtPrice}, nil
}

func (l *fakeLedger) SetDynamicFee(_ context.Context, _ common.Hash, feePips uint32) error {
	l.setCalls++
	l.lastFee = feePips
	return nil
}

type fakeOracle struct {
	quote model.QuoteSnapshot
}

func (o *fakeOracle) ReadLatestQuote(_ context.Context, _ common.Address) (model.QuoteSnapshot, error) {
	return o.quote, nil
}

type fakeTokens struct {
	decimals map[common.Address]uint8
}

func (f *fakeTokens) TokenDecimals(_ context.Context, token common.Address) (uint8, error) {
	return f.decimals[token], nil
}

type memJournal struct {
	entries []storage.JournalEntry
}

func (j *memJournal) Append(entry storage.JournalEntry) error {
	j.entries = append(j.entries, entry)
	return nil
}

func newTestFacade(t *testing.T, deps Deps) *Facade {
	t.Helper()
	facade := NewFacade(deps)
	if err := facade.InitAdmin(context.Background(), admin); err != nil {
		t.Fatalf("init admin: %v", err)
	}
	return facade
}

func TestStaticFeeWithoutBinding(t *testing.T) {
	ctx := context.Background()
	ledger := &fakeLedger{}
	facade := newTestFacade(t, Deps{Ledger: ledger})

	if err := facade.SetBaseFee(ctx, admin, 3000); err != nil {
		t.Fatalf("set base fee: %v", err)
	}
	if err := facade.Grant(ctx, admin, model.CapabilityTrade, trader, true); err != nil {
		t.Fatalf("grant: %v", err)
	}

	for _, direction := range []model.TradeDirection{model.Asset0ToAsset1, model.Asset1ToAsset0} {
		feePips, err := facade.OnBeforeTrade(ctx, trader, testKey, direction)
		if err != nil {
			t.Fatalf("trade: %v", err)
		}
		if feePips != 3000 {
			t.Fatalf("expected static fee 3000, got %d", feePips)
		}
	}
	if ledger.setCalls != 2 {
		t.Fatalf("fee must be reported per trade, got %d calls", ledger.setCalls)
	}
}

func TestDivergenceAdjustedTrade(t *testing.T) {
	ctx := context.Background()

	// Pool at price0 = 3844e18 (sqrt = 62 * 2^96), market at 3900
	// with 8 feed decimals. Selling asset1 drags price0 further below
	// the market, so the adjustment fires.
	ledger := &fakeLedger{sqrtPrice: new(big.Int).Lsh(big.NewInt(62), 96)}
	oracle := &fakeOracle{quote: model.QuoteSnapshot{
		Value:    new(big.Int).Mul(big.NewInt(3900), big.NewInt(1e8)),
		Decimals: 8,
	}}
	tokens := &fakeTokens{decimals: map[common.Address]uint8{testKey.Token0: 18}}
	journal := &memJournal{}

	facade := newTestFacade(t, Deps{Ledger: ledger, Oracle: oracle, Tokens: tokens, Journal: journal})

	if err := facade.SetMultiplier(ctx, admin, 1_000_000); err != nil {
		t.Fatalf("set multiplier: %v", err)
	}
	if err := facade.SetFeeOverride(ctx, admin, testKey.ID(), 500); err != nil {
		t.Fatalf("set override: %v", err)
	}
	if err := facade.SetOracleBinding(ctx, admin, testKey.ID(), model.OracleBinding{
		Feed:          feed,
		CompareToken0: true,
		QuoteDecimals: 8,
	}); err != nil {
		t.Fatalf("bind oracle: %v", err)
	}
	if err := facade.Grant(ctx, admin, model.CapabilityTrade, trader, true); err != nil {
		t.Fatalf("grant: %v", err)
	}

	feePips, err := facade.OnBeforeTrade(ctx, trader, testKey, model.Asset1ToAsset0)
	if err != nil {
		t.Fatalf("trade: %v", err)
	}
	// delta = 56e18, adjustment = 56e18 * 1e6 / 3900e18 = 14358.
	if feePips != 500+14358 {
		t.Fatalf("expected fee %d, got %d", 500+14358, feePips)
	}
	if ledger.lastFee != feePips {
		t.Fatalf("ledger must receive the computed fee")
	}

	// The opposite direction moves the pool back toward market truth
	// and pays the static fee.
	feePips, err = facade.OnBeforeTrade(ctx, trader, testKey, model.Asset0ToAsset1)
	if err != nil {
		t.Fatalf("trade: %v", err)
	}
	if feePips != 500 {
		t.Fatalf("expected static fee 500, got %d", feePips)
	}
}

func TestBindingQuoteDecimalsOverride(t *testing.T) {
	ctx := context.Background()

	// The feed misreports its precision as 18 while quoting in 8. The
	// binding override keeps the reference at 3900e18 so the divergence
	// adjustment still fires.
	ledger := &fakeLedger{sqrtPrice: new(big.Int).Lsh(big.NewInt(62), 96)}
	oracle := &fakeOracle{quote: model.QuoteSnapshot{
		Value:    new(big.Int).Mul(big.NewInt(3900), big.NewInt(1e8)),
		Decimals: 18,
	}}
	tokens := &fakeTokens{decimals: map[common.Address]uint8{testKey.Token0: 18}}

	facade := newTestFacade(t, Deps{Ledger: ledger, Oracle: oracle, Tokens: tokens})

	if err := facade.SetMultiplier(ctx, admin, 1_000_000); err != nil {
		t.Fatalf("set multiplier: %v", err)
	}
	if err := facade.SetFeeOverride(ctx, admin, testKey.ID(), 500); err != nil {
		t.Fatalf("set override: %v", err)
	}
	if err := facade.SetOracleBinding(ctx, admin, testKey.ID(), model.OracleBinding{
		Feed:          feed,
		CompareToken0: true,
		QuoteDecimals: 8,
	}); err != nil {
		t.Fatalf("bind oracle: %v", err)
	}
	if err := facade.Grant(ctx, admin, model.CapabilityTrade, trader, true); err != nil {
		t.Fatalf("grant: %v", err)
	}

	feePips, err := facade.OnBeforeTrade(ctx, trader, testKey, model.Asset1ToAsset0)
	if err != nil {
		t.Fatalf("trade: %v", err)
	}
	if feePips != 500+14358 {
		t.Fatalf("expected fee %d, got %d", 500+14358, feePips)
	}
}

func TestOracleBindingRegistersPool(t *testing.T) {
	ctx := context.Background()
	ledger := &fakeLedger{}
	facade := newTestFacade(t, Deps{Ledger: ledger, Registrar: ledger})

	poolAddr := common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
	if err := facade.SetOracleBinding(ctx, admin, testKey.ID(), model.OracleBinding{
		Feed:        feed,
		PoolAddress: poolAddr,
	}); err != nil {
		t.Fatalf("bind oracle: %v", err)
	}
	if ledger.pools[testKey.ID()] != poolAddr {
		t.Fatalf("binding must register the pool contract with the ledger")
	}
}

func TestTradeForbiddenUntilGranted(t *testing.T) {
	ctx := context.Background()
	ledger := &fakeLedger{}
	journal := &memJournal{}
	facade := newTestFacade(t, Deps{Ledger: ledger, Journal: journal})

	journalBefore := len(journal.entries)
	_, err := facade.OnBeforeTrade(ctx, trader, testKey, model.Asset0ToAsset1)
	if !sdkerrors.IsOf(err, hookerr.ErrForbidden) {
		t.Fatalf("expected forbidden error, got %v", err)
	}
	if ledger.setCalls != 0 {
		t.Fatalf("no fee may be reported for a forbidden trade")
	}
	if len(journal.entries) != journalBefore {
		t.Fatalf("forbidden trades must not be journaled")
	}

	if err := facade.Grant(ctx, admin, model.CapabilityTrade, trader, true); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if _, err := facade.OnBeforeTrade(ctx, trader, testKey, model.Asset0ToAsset1); err != nil {
		t.Fatalf("identical trade after grant must succeed: %v", err)
	}
}

func TestLiquidityRevocation(t *testing.T) {
	ctx := context.Background()
	facade := newTestFacade(t, Deps{})

	if err := facade.Grant(ctx, admin, model.CapabilityManageLiquidity, lper, true); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := facade.OnBeforeLiquidityChange(ctx, lper, testKey); err != nil {
		t.Fatalf("liquidity change: %v", err)
	}

	if err := facade.Grant(ctx, admin, model.CapabilityManageLiquidity, lper, false); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	err := facade.OnBeforeLiquidityChange(ctx, lper, testKey)
	if !sdkerrors.IsOf(err, hookerr.ErrForbidden) {
		t.Fatalf("expected forbidden error after revocation, got %v", err)
	}
}

func TestMultiplierBound(t *testing.T) {
	ctx := context.Background()
	facade := newTestFacade(t, Deps{})

	if err := facade.SetMultiplier(ctx, admin, 250_000); err != nil {
		t.Fatalf("set multiplier: %v", err)
	}
	err := facade.SetMultiplier(ctx, admin, 1_000_001)
	if !sdkerrors.IsOf(err, hookerr.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument error, got %v", err)
	}
	if facade.Config().Multiplier != 250_000 {
		t.Fatalf("failed update must leave the multiplier unchanged")
	}
}

func TestAdminMutationsRequireAdmin(t *testing.T) {
	ctx := context.Background()
	facade := newTestFacade(t, Deps{})

	if err := facade.SetBaseFee(ctx, trader, 100); !sdkerrors.IsOf(err, hookerr.ErrUnauthorized) {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
	if err := facade.SetFeeOverride(ctx, trader, testKey.ID(), 100); !sdkerrors.IsOf(err, hookerr.ErrUnauthorized) {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
	if err := facade.SetOracleBinding(ctx, trader, testKey.ID(), model.OracleBinding{Feed: feed}); !sdkerrors.IsOf(err, hookerr.ErrUnauthorized) {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	first := NewFacade(Deps{Store: store})
	if err := first.InitAdmin(ctx, admin); err != nil {
		t.Fatalf("init admin: %v", err)
	}
	if err := first.SetBaseFee(ctx, admin, 3000); err != nil {
		t.Fatalf("set base fee: %v", err)
	}
	if err := first.SetMultiplier(ctx, admin, 400_000); err != nil {
		t.Fatalf("set multiplier: %v", err)
	}
	if err := first.Grant(ctx, admin, model.CapabilityTrade, trader, true); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := first.SetFeeOverride(ctx, admin, testKey.ID(), 500); err != nil {
		t.Fatalf("set override: %v", err)
	}
	poolAddr := common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
	if err := first.SetOracleBinding(ctx, admin, testKey.ID(), model.OracleBinding{Feed: feed, PoolAddress: poolAddr, CompareToken0: true}); err != nil {
		t.Fatalf("bind oracle: %v", err)
	}

	ledger := &fakeLedger{}
	second := NewFacade(Deps{Store: store, Ledger: ledger, Registrar: ledger})
	if err := second.Restore(ctx); err != nil {
		t.Fatalf("restore: %v", err)
	}

	cfg := second.Config()
	if cfg.Admin != admin || cfg.BaseFee != 3000 || cfg.Multiplier != 400_000 {
		t.Fatalf("config mismatch after restore: %+v", cfg)
	}
	if !second.Gate().Check(model.CapabilityTrade, trader) {
		t.Fatalf("grants must survive restore")
	}
	second.mu.RLock()
	override := second.overrides[testKey.ID()]
	_, bound := second.bindings[testKey.ID()]
	second.mu.RUnlock()
	if override != 500 || !bound {
		t.Fatalf("overrides and bindings must survive restore")
	}
	if ledger.pools[testKey.ID()] != poolAddr {
		t.Fatalf("restore must re-register pool contracts with the ledger")
	}
}
