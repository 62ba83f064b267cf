package model

import "math/big"

// QuoteSnapshot is a raw reference quote as reported by an oracle feed.
// Freshness metadata is carried through but not validated here.
type QuoteSnapshot struct {
	Value     *big.Int `json:"value"`
	Decimals  uint8    `json:"decimals"`
	UpdatedAt uint64   `json:"updated_at"`
	Round     uint64   `json:"round"`
}

// PriceSnapshot is the pool's internal price state read from the
// liquidity engine: sqrt(asset1/asset0) in Q64.96 fixed point.
type PriceSnapshot struct {
	SqrtPriceX96 *big.Int `json:"sqrt_price_x96"`
}
