package model

// Capability names one of the two gated actions.
type Capability string

const (
	// CapabilityTrade gates swap execution.
	CapabilityTrade Capability = "trade"
	// CapabilityManageLiquidity gates liquidity adds and removals.
	CapabilityManageLiquidity Capability = "manage-liquidity"
)

// Valid reports whether the capability is one of the known values.
func (c Capability) Valid() bool {
	return c == CapabilityTrade || c == CapabilityManageLiquidity
}
