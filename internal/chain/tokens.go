package chain

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const erc20DecimalsABIJSON = `[
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"}
]`

var (
	erc20ABI     abi.ABI
	erc20ABIOnce sync.Once
	erc20ABIErr  error
)

func getERC20ABI() (abi.ABI, error) {
	erc20ABIOnce.Do(func() {
		erc20ABI, erc20ABIErr = abi.JSON(strings.NewReader(erc20DecimalsABIJSON))
	})
	return erc20ABI, erc20ABIErr
}

// TokenMetaCache resolves and caches ERC20 decimal precision.
type TokenMetaCache struct {
	client *Client

	mu   sync.RWMutex
	data map[common.Address]uint8
}

// NewTokenMetaCache builds a token metadata cache over the chain client.
func NewTokenMetaCache(client *Client) *TokenMetaCache {
	return &TokenMetaCache{
		client: client,
		data:   make(map[common.Address]uint8),
	}
}

// TokenDecimals returns the token's decimal precision, reading it over
// RPC on the first miss.
func (c *TokenMetaCache) TokenDecimals(ctx context.Context, token common.Address) (uint8, error) {
	c.mu.RLock()
	decimals, ok := c.data[token]
	c.mu.RUnlock()
	if ok {
		return decimals, nil
	}

	if c.client == nil {
		return 0, fmt.Errorf("chain client is nil")
	}
	tokenABI, err := getERC20ABI()
	if err != nil {
		return 0, err
	}

	data, err := tokenABI.Pack("decimals")
	if err != nil {
		return 0, fmt.Errorf("pack decimals: %w", err)
	}
	msg := ethereum.CallMsg{To: &token, Data: data}
	resp, err := c.client.CallContract(ctx, msg, nil)
	if err != nil {
		return 0, fmt.Errorf("call decimals: %w", err)
	}
	values, err := tokenABI.Unpack("decimals", resp)
	if err != nil {
		return 0, fmt.Errorf("unpack decimals: %w", err)
	}
	if len(values) != 1 {
		return 0, fmt.Errorf("decimals return size %d", len(values))
	}
	decimals, ok = values[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("decimals unexpected type %T", values[0])
	}

	c.mu.Lock()
	c.data[token] = decimals
	c.mu.Unlock()
	return decimals, nil
}

// Set primes the cache, mainly for tests and known-token bootstraps.
func (c *TokenMetaCache) Set(token common.Address, decimals uint8) {
	c.mu.Lock()
	c.data[token] = decimals
	c.mu.Unlock()
}
