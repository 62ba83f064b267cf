package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"driftfee/internal/model"
)

const poolSlot0ABIJSON = `[
  {"inputs": [], "name": "slot0", "outputs": [
    {"internalType": "uint160", "name": "sqrtPriceX96", "type": "uint160"},
    {"internalType": "int24", "name": "tick", "type": "int24"},
    {"internalType": "uint16", "name": "observationIndex", "type": "uint16"},
    {"internalType": "uint16", "name": "observationCardinality", "type": "uint16"},
    {"internalType": "uint16", "name": "observationCardinalityNext", "type": "uint16"},
    {"internalType": "uint32", "name": "feeProtocol", "type": "uint32"},
    {"internalType": "bool", "name": "unlocked", "type": "bool"}
  ], "stateMutability": "view", "type": "function"}
]`

var (
	slot0ABI     abi.ABI
	slot0ABIOnce sync.Once
	slot0ABIErr  error
)

func getSlot0ABI() (abi.ABI, error) {
	slot0ABIOnce.Do(func() {
		slot0ABI, slot0ABIErr = abi.JSON(strings.NewReader(poolSlot0ABIJSON))
	})
	return slot0ABI, slot0ABIErr
}

// Ledger reads pool price snapshots over RPC. Fee write-back happens
// through the hook response; SetDynamicFee records the decided fee so
// operators can inspect what was last reported per pool.
type Ledger struct {
	client       *Client
	logger       *zap.Logger
	maxRetries   int
	retryBackoff time.Duration

	mu       sync.RWMutex
	pools    map[common.Hash]common.Address
	lastFees map[common.Hash]uint32
}

// LedgerConfig tunes the RPC-backed ledger adapter.
type LedgerConfig struct {
	MaxRetries   int
	RetryBackoff time.Duration
}

// NewLedger builds an RPC-backed ledger adapter.
func NewLedger(client *Client, cfg LedgerConfig, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		client:       client,
		logger:       logger,
		maxRetries:   cfg.MaxRetries,
		retryBackoff: cfg.RetryBackoff,
		pools:        make(map[common.Hash]common.Address),
		lastFees:     make(map[common.Hash]uint32),
	}
}

// RegisterPool maps a pool ID to the pool contract address snapshots
// are read from.
func (l *Ledger) RegisterPool(poolID common.Hash, address common.Address) {
	l.mu.Lock()
	l.pools[poolID] = address
	l.mu.Unlock()
}

// ReadPriceSnapshot reads slot0 from the pool contract.
func (l *Ledger) ReadPriceSnapshot(ctx context.Context, poolID common.Hash) (model.PriceSnapshot, error) {
	l.mu.RLock()
	address, ok := l.pools[poolID]
	l.mu.RUnlock()
	if !ok {
		return model.PriceSnapshot{}, fmt.Errorf("pool %s is not registered", poolID.Hex())
	}
	if l.client == nil {
		return model.PriceSnapshot{}, fmt.Errorf("chain client is nil")
	}

	slotABI, err := getSlot0ABI()
	if err != nil {
		return model.PriceSnapshot{}, err
	}
	data, err := slotABI.Pack("slot0")
	if err != nil {
		return model.PriceSnapshot{}, fmt.Errorf("pack slot0: %w", err)
	}

	var resp []byte
	msg := ethereum.CallMsg{To: &address, Data: data}
	err = withRetry(ctx, l.maxRetries, l.retryBackoff, func(ctx context.Context) error {
		var callErr error
		resp, callErr = l.client.CallContract(ctx, msg, nil)
		return callErr
	})
	if err != nil {
		return model.PriceSnapshot{}, fmt.Errorf("call slot0: %w", err)
	}

	values, err := slotABI.Unpack("slot0", resp)
	if err != nil {
		return model.PriceSnapshot{}, fmt.Errorf("unpack slot0: %w", err)
	}
	if len(values) == 0 {
		return model.PriceSnapshot{}, fmt.Errorf("slot0 returned no values")
	}
	sqrtPrice, ok := values[0].(*big.Int)
	if !ok {
		return model.PriceSnapshot{}, fmt.Errorf("slot0 unexpected type %T", values[0])
	}

	return model.PriceSnapshot{SqrtPriceX96: sqrtPrice}, nil
}

// SetDynamicFee records the fee decided for the pool. The host engine
// applies the fee from the hook response; this keeps the last reported
// value observable.
func (l *Ledger) SetDynamicFee(ctx context.Context, poolID common.Hash, feePips uint32) error {
	l.mu.Lock()
	l.lastFees[poolID] = feePips
	l.mu.Unlock()

	l.logger.Debug("dynamic fee reported",
		zap.String("pool", poolID.Hex()),
		zap.Uint32("fee", feePips),
	)
	return nil
}

// LastFee returns the most recently reported fee for a pool.
func (l *Ledger) LastFee(poolID common.Hash) (uint32, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	feePips, ok := l.lastFees[poolID]
	return feePips, ok
}
