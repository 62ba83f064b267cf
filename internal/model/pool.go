package model

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// PoolKey identifies a pool by its immutable constituents.
type PoolKey struct {
	Token0      common.Address `json:"token0"`
	Token1      common.Address `json:"token1"`
	Fee         uint32         `json:"fee"`
	TickSpacing int32          `json:"tick_spacing"`
}

// ID derives the stable pool identifier from the key constituents.
// Identical constituents always hash to the identical ID.
func (k PoolKey) ID() common.Hash {
	buf := make([]byte, 0, 2*common.AddressLength+8)
	buf = append(buf, k.Token0.Bytes()...)
	buf = append(buf, k.Token1.Bytes()...)
	buf = binary.BigEndian.AppendUint32(buf, k.Fee)
	buf = binary.BigEndian.AppendUint32(buf, uint32(k.TickSpacing))
	return crypto.Keccak256Hash(buf)
}

// TradeDirection encodes which asset is sold into the pool.
type TradeDirection uint8

const (
	// Asset0ToAsset1 sells asset0 for asset1, pushing price0 down.
	Asset0ToAsset1 TradeDirection = iota
	// Asset1ToAsset0 sells asset1 for asset0, pushing price0 up.
	Asset1ToAsset0
)

func (d TradeDirection) String() string {
	switch d {
	case Asset0ToAsset1:
		return "asset0_to_asset1"
	case Asset1ToAsset0:
		return "asset1_to_asset0"
	default:
		return "unknown"
	}
}

// ParseTradeDirection maps the wire form back to a TradeDirection.
func ParseTradeDirection(raw string) (TradeDirection, bool) {
	switch raw {
	case "asset0_to_asset1", "0to1", "zero_for_one":
		return Asset0ToAsset1, true
	case "asset1_to_asset0", "1to0", "one_for_zero":
		return Asset1ToAsset0, true
	default:
		return 0, false
	}
}
