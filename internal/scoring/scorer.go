// Package scoring turns route metrics and a routing mode into a single
// comparable integer score.
package scoring

import (
	"math/big"

	"github.com/EmmaExcel/settlement-switch-sub002/internal/model"
)

// Subscore bounds. Every normalized metric lands in [0, 100], and with the
// per-mode weights summing to 100 the unweighted maximum stays 100.
const maxSubscore = 100

// DefaultCostCeilingWei is the cost at which the cost subscore hits zero
// (0.1 ETH in wei).
var DefaultCostCeilingWei = new(big.Int).Mul(big.NewInt(1e9), big.NewInt(1e8))

// DefaultSpeedCeilingMinutes is the estimated time at which the speed
// subscore hits zero.
const DefaultSpeedCeilingMinutes = 60

// Scorer normalizes raw route metrics into 0-100 subscores and combines them
// with the weight profile of the selected mode. All arithmetic is integer,
// multiplications ordered before divisions, operands clamped before combining.
type Scorer struct {
	weights      *WeightTable
	costCeiling  *big.Int
	speedCeiling int64
}

// NewScorer creates a scorer over the given weight table with default ceilings
func NewScorer(weights *WeightTable) *Scorer {
	return &Scorer{
		weights:      weights,
		costCeiling:  new(big.Int).Set(DefaultCostCeilingWei),
		speedCeiling: DefaultSpeedCeilingMinutes,
	}
}

// WithCostCeiling overrides the cost normalization ceiling
func (s *Scorer) WithCostCeiling(ceiling *big.Int) *Scorer {
	if ceiling != nil && ceiling.Sign() > 0 {
		s.costCeiling = new(big.Int).Set(ceiling)
	}
	return s
}

// WithSpeedCeiling overrides the time normalization ceiling in minutes
func (s *Scorer) WithSpeedCeiling(minutes int64) *Scorer {
	if minutes > 0 {
		s.speedCeiling = minutes
	}
	return s
}

// Score computes the final score for a route under the given mode.
// Congestion above level 50 applies a penalty of congestion/2 percent.
func (s *Scorer) Score(route *model.Route, mode model.RouteMode) int64 {
	w := s.weights.Get(mode)

	costScore := s.costSubscore(route.Metrics.TotalCostWei)
	speedScore := s.speedSubscore(route.Metrics.EstimatedTimeMinutes)
	reliabilityScore := clamp(route.Metrics.SuccessRate, 0, maxSubscore)
	liquidityScore := liquiditySubscore(route.AmountIn, route.Metrics.AvailableLiquidity)

	// Sum of subscore*weight first, single division afterwards, so no
	// per-term truncation is lost.
	weighted := costScore*w.Cost + speedScore*w.Speed +
		reliabilityScore*w.Reliability + liquidityScore*w.Liquidity
	weighted /= 100

	congestion := clamp(route.Metrics.CongestionLevel, 0, 100)
	if congestion > 50 {
		penalty := congestion / 2
		if penalty > 100 {
			penalty = 100
		}
		weighted = weighted * (100 - penalty) / 100
	}

	if weighted < 0 {
		weighted = 0
	}
	return weighted
}

// costSubscore maps cost linearly onto [0, 100] against the ceiling
func (s *Scorer) costSubscore(cost *big.Int) int64 {
	if cost == nil || cost.Sign() <= 0 {
		return maxSubscore
	}
	if cost.Cmp(s.costCeiling) >= 0 {
		return 0
	}
	// 100 * (ceiling - cost) / ceiling
	diff := new(big.Int).Sub(s.costCeiling, cost)
	diff.Mul(diff, big.NewInt(maxSubscore))
	diff.Div(diff, s.costCeiling)
	return diff.Int64()
}

// speedSubscore maps estimated minutes linearly onto [0, 100] against the ceiling
func (s *Scorer) speedSubscore(minutes int64) int64 {
	if minutes <= 0 {
		return maxSubscore
	}
	if minutes >= s.speedCeiling {
		return 0
	}
	return maxSubscore * (s.speedCeiling - minutes) / s.speedCeiling
}

// liquiditySubscore is a step function of the utilization ratio
// required*100/available. Full marks when nothing is required, zero when the
// pool cannot cover the request at all.
func liquiditySubscore(required, available *big.Int) int64 {
	if required == nil || required.Sign() <= 0 {
		return maxSubscore
	}
	if available == nil || available.Sign() <= 0 || available.Cmp(required) < 0 {
		return 0
	}

	utilization := new(big.Int).Mul(required, big.NewInt(100))
	utilization.Div(utilization, available)

	switch u := utilization.Int64(); {
	case u <= 10:
		return 100
	case u <= 25:
		return 80
	case u <= 50:
		return 60
	case u <= 75:
		return 40
	default:
		return 20
	}
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
