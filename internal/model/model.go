// Package model defines the core data structures for the settlement switch.
package model

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/EmmaExcel/settlement-switch-sub002/internal/types"
)

// BpsDenominator is the denominator for all percentage-like values.
// 10000 basis points = 100%.
const BpsDenominator = 10000

// NeutralMultiplierBps is the congestion multiplier that leaves fees unchanged.
const NeutralMultiplierBps = 10000

// DefaultSlippageBps is applied when a request does not set a slippage limit (0.5%).
const DefaultSlippageBps = 50

// RouteMode selects the optimization profile for a routing request
type RouteMode string

// Routing modes
const (
	ModeCheapest RouteMode = "cheapest"
	ModeFastest  RouteMode = "fastest"
	ModeBalanced RouteMode = "balanced"
)

// Valid reports whether the mode is one of the known profiles
func (m RouteMode) Valid() bool {
	switch m {
	case ModeCheapest, ModeFastest, ModeBalanced:
		return true
	}
	return false
}

// RoutePreferences are caller-supplied constraints for a single routing query.
// They are ephemeral and never persisted.
type RoutePreferences struct {
	// Mode is the optimization profile (cheapest, fastest, balanced)
	Mode RouteMode `json:"mode"`

	// MaxFeeWei caps the total route cost. nil or zero means no cap.
	MaxFeeWei *big.Int `json:"max_fee_wei,omitempty"`

	// MaxTimeMinutes caps the estimated completion time. Zero means no cap.
	MaxTimeMinutes int64 `json:"max_time_minutes,omitempty"`

	// MaxSlippageBps is the tolerated slippage in basis points (0-10000).
	// Zero falls back to DefaultSlippageBps.
	MaxSlippageBps int64 `json:"max_slippage_bps,omitempty"`
}

// EffectiveSlippageBps returns the slippage used for output estimation
func (p RoutePreferences) EffectiveSlippageBps() int64 {
	if p.MaxSlippageBps != 0 {
		return p.MaxSlippageBps
	}
	return DefaultSlippageBps
}

// RouteMetrics are the measured values one adapter reports for a specific
// (tokenIn, tokenOut, amount, srcChain, dstChain) tuple. They are produced
// fresh on every adapter query and only read by the calculator.
type RouteMetrics struct {
	// TotalCostWei is the full cost of taking this route
	TotalCostWei *big.Int `json:"total_cost_wei"`

	// BridgeFeeWei is the portion of the cost charged by the bridge itself
	BridgeFeeWei *big.Int `json:"bridge_fee_wei"`

	// EstimatedTimeMinutes is the expected completion time
	EstimatedTimeMinutes int64 `json:"estimated_time_minutes"`

	// SuccessRate is the adapter-reported historical success rate (0-100)
	SuccessRate int64 `json:"success_rate"`

	// AvailableLiquidity is the liquidity the bridge can serve right now
	AvailableLiquidity *big.Int `json:"available_liquidity"`

	// CongestionLevel is the current congestion on the route (0-100)
	CongestionLevel int64 `json:"congestion_level"`
}

// Route is a scored candidate produced by the route calculator
type Route struct {
	// Bridge is the name of the adapter that produced this candidate
	Bridge string `json:"bridge"`

	TokenIn  common.Address `json:"token_in"`
	TokenOut common.Address `json:"token_out"`

	AmountIn  *big.Int `json:"amount_in"`
	AmountOut *big.Int `json:"amount_out"`

	SrcChainID types.ChainID `json:"src_chain_id"`
	DstChainID types.ChainID `json:"dst_chain_id"`

	// Metrics is the snapshot the route was scored from
	Metrics RouteMetrics `json:"metrics"`

	// Payload is opaque adapter-specific execution data
	Payload []byte `json:"payload,omitempty"`

	// Deadline is the latest time the route should still be executed
	// (now + estimated time + safety buffer)
	Deadline time.Time `json:"deadline"`
}

// BridgeHealth holds per-adapter rolling statistics. Mutated only by the
// registry's outcome reporting; defaults to healthy before any transfers.
type BridgeHealth struct {
	// TotalTransfers counts every reported outcome
	TotalTransfers uint64 `json:"total_transfers"`

	// SuccessfulTransfers counts the successful subset
	SuccessfulTransfers uint64 `json:"successful_transfers"`

	// TotalVolume accumulates the reported transfer volume
	TotalVolume *big.Int `json:"total_volume"`

	// AvgCompletionTime is exponentially smoothed with a fixed 9:1 weighting
	AvgCompletionTime time.Duration `json:"avg_completion_time"`

	// LastUpdated is the time of the most recent outcome report
	LastUpdated time.Time `json:"last_updated"`

	// Healthy is true while the success ratio stays at or above 90%
	Healthy bool `json:"healthy"`
}

// ScoringWeights holds the four weights for one routing mode.
// A valid set is non-negative, each weight at most 100, summing to exactly 100.
type ScoringWeights struct {
	Cost        int64 `json:"cost" yaml:"cost"`
	Speed       int64 `json:"speed" yaml:"speed"`
	Reliability int64 `json:"reliability" yaml:"reliability"`
	Liquidity   int64 `json:"liquidity" yaml:"liquidity"`
}

// Valid reports whether the weights satisfy the configuration invariant
func (w ScoringWeights) Valid() bool {
	for _, v := range []int64{w.Cost, w.Speed, w.Reliability, w.Liquidity} {
		if v < 0 || v > 100 {
			return false
		}
	}
	return w.Cost+w.Speed+w.Reliability+w.Liquidity == 100
}

// FeeStructure is the per-category fee policy
type FeeStructure struct {
	// BaseRateBps is the proportional fee in basis points (max 1000 = 10%)
	BaseRateBps int64 `json:"base_rate_bps" yaml:"base_rate_bps"`

	// MinFeeAmount is the absolute fee floor in the asset's smallest unit
	MinFeeAmount *big.Int `json:"min_fee_amount" yaml:"min_fee_amount"`

	// MaxFeeAmount is the absolute fee ceiling
	MaxFeeAmount *big.Int `json:"max_fee_amount" yaml:"max_fee_amount"`

	// CongestionMultiplierBps is the category's congestion sensitivity (max 5000 = 50%)
	CongestionMultiplierBps int64 `json:"congestion_multiplier_bps" yaml:"congestion_multiplier_bps"`

	// Active disables fee collection for the category when false
	Active bool `json:"active" yaml:"active"`
}

// DynamicFeeParams tunes the per-chain congestion response
type DynamicFeeParams struct {
	// BaseGasPrice is the gas-price threshold the congestion signal is judged against
	BaseGasPrice *big.Int `json:"base_gas_price"`

	// CongestionThreshold is the level (0-99) below which fees stay neutral
	CongestionThreshold int64 `json:"congestion_threshold"`

	// MaxMultiplierBps caps the congestion surcharge (max 5000 = 50%)
	MaxMultiplierBps int64 `json:"max_multiplier_bps"`

	// AdjustmentSpeedBps bounds the multiplier movement per update interval
	AdjustmentSpeedBps int64 `json:"adjustment_speed_bps"`

	// LastUpdated marks the most recent congestion report for the chain
	LastUpdated time.Time `json:"last_updated"`
}

// FeeRecord is an immutable log entry of a single fee collection.
// Records are append-only and never mutated or deleted.
type FeeRecord struct {
	ID         string         `json:"id"`
	Token      common.Address `json:"token"`
	Amount     *big.Int       `json:"amount"`
	Timestamp  time.Time      `json:"timestamp"`
	Payer      common.Address `json:"payer"`
	TransferID string         `json:"transfer_id"`
	Category   string         `json:"category"`
}

// RevenueShare is one recipient's cut of distributed fees
type RevenueShare struct {
	Recipient common.Address `json:"recipient"`
	ShareBps  int64          `json:"share_bps"`
	Active    bool           `json:"active"`
}
