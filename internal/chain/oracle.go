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

const aggregatorABIJSON = `[
  {"inputs": [], "name": "latestRoundData", "outputs": [
    {"internalType": "uint80", "name": "roundId", "type": "uint80"},
    {"internalType": "int256", "name": "answer", "type": "int256"},
    {"internalType": "uint256", "name": "startedAt", "type": "uint256"},
    {"internalType": "uint256", "name": "updatedAt", "type": "uint256"},
    {"internalType": "uint80", "name": "answeredInRound", "type": "uint80"}
  ], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "decimals", "outputs": [{"internalType": "uint8", "name": "", "type": "uint8"}], "stateMutability": "view", "type": "function"}
]`

var (
	aggregatorABI     abi.ABI
	aggregatorABIOnce sync.Once
	aggregatorABIErr  error
)

func getAggregatorABI() (abi.ABI, error) {
	aggregatorABIOnce.Do(func() {
		aggregatorABI, aggregatorABIErr = abi.JSON(strings.NewReader(aggregatorABIJSON))
	})
	return aggregatorABI, aggregatorABIErr
}

// Oracle reads Chainlink-style aggregator feeds over RPC. Quotes are
// returned as-is: no staleness or positivity validation, only a warn
// log when a round looks old.
type Oracle struct {
	client       *Client
	logger       *zap.Logger
	maxRetries   int
	retryBackoff time.Duration
	staleAfter   time.Duration

	mu       sync.RWMutex
	decimals map[common.Address]uint8
}

// OracleConfig tunes the RPC-backed oracle adapter.
type OracleConfig struct {
	MaxRetries   int
	RetryBackoff time.Duration
	StaleAfter   time.Duration
}

// NewOracle builds an RPC-backed oracle adapter.
func NewOracle(client *Client, cfg OracleConfig, logger *zap.Logger) *Oracle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Oracle{
		client:       client,
		logger:       logger,
		maxRetries:   cfg.MaxRetries,
		retryBackoff: cfg.RetryBackoff,
		staleAfter:   cfg.StaleAfter,
		decimals:     make(map[common.Address]uint8),
	}
}

// ReadLatestQuote reads latestRoundData (and cached decimals) from the
// feed contract.
func (o *Oracle) ReadLatestQuote(ctx context.Context, feed common.Address) (model.QuoteSnapshot, error) {
	if o.client == nil {
		return model.QuoteSnapshot{}, fmt.Errorf("chain client is nil")
	}
	feedABI, err := getAggregatorABI()
	if err != nil {
		return model.QuoteSnapshot{}, err
	}

	data, err := feedABI.Pack("latestRoundData")
	if err != nil {
		return model.QuoteSnapshot{}, fmt.Errorf("pack latestRoundData: %w", err)
	}

	var resp []byte
	msg := ethereum.CallMsg{To: &feed, Data: data}
	err = withRetry(ctx, o.maxRetries, o.retryBackoff, func(ctx context.Context) error {
		var callErr error
		resp, callErr = o.client.CallContract(ctx, msg, nil)
		return callErr
	})
	if err != nil {
		return model.QuoteSnapshot{}, fmt.Errorf("call latestRoundData: %w", err)
	}

	values, err := feedABI.Unpack("latestRoundData", resp)
	if err != nil {
		return model.QuoteSnapshot{}, fmt.Errorf("unpack latestRoundData: %w", err)
	}
	if len(values) != 5 {
		return model.QuoteSnapshot{}, fmt.Errorf("latestRoundData return size %d", len(values))
	}
	roundID, ok := values[0].(*big.Int)
	if !ok {
		return model.QuoteSnapshot{}, fmt.Errorf("roundId unexpected type %T", values[0])
	}
	answer, ok := values[1].(*big.Int)
	if !ok {
		return model.QuoteSnapshot{}, fmt.Errorf("answer unexpected type %T", values[1])
	}
	updatedAt, ok := values[3].(*big.Int)
	if !ok {
		return model.QuoteSnapshot{}, fmt.Errorf("updatedAt unexpected type %T", values[3])
	}

	feedDecimals, err := o.feedDecimals(ctx, feed, feedABI)
	if err != nil {
		return model.QuoteSnapshot{}, err
	}

	quote := model.QuoteSnapshot{
		Value:     answer,
		Decimals:  feedDecimals,
		UpdatedAt: updatedAt.Uint64(),
		Round:     roundID.Uint64(),
	}

	if o.staleAfter > 0 {
		age := time.Since(time.Unix(int64(quote.UpdatedAt), 0))
		if age > o.staleAfter {
			o.logger.Warn("reference quote looks stale",
				zap.String("feed", feed.Hex()),
				zap.Duration("age", age),
			)
		}
	}

	return quote, nil
}

func (o *Oracle) feedDecimals(ctx context.Context, feed common.Address, feedABI abi.ABI) (uint8, error) {
	o.mu.RLock()
	cached, ok := o.decimals[feed]
	o.mu.RUnlock()
	if ok {
		return cached, nil
	}

	data, err := feedABI.Pack("decimals")
	if err != nil {
		return 0, fmt.Errorf("pack decimals: %w", err)
	}
	msg := ethereum.CallMsg{To: &feed, Data: data}
	resp, err := o.client.CallContract(ctx, msg, nil)
	if err != nil {
		return 0, fmt.Errorf("call decimals: %w", err)
	}
	values, err := feedABI.Unpack("decimals", resp)
	if err != nil {
		return 0, fmt.Errorf("unpack decimals: %w", err)
	}
	if len(values) != 1 {
		return 0, fmt.Errorf("decimals return size %d", len(values))
	}
	decimals, ok := values[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("decimals unexpected type %T", values[0])
	}

	o.mu.Lock()
	o.decimals[feed] = decimals
	o.mu.Unlock()
	return decimals, nil
}
