package fees

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"github.com/EmmaExcel/settlement-switch-sub002/internal/model"
	"github.com/EmmaExcel/settlement-switch-sub002/internal/types"
)

// DefaultUpdateInterval is the unit of the adjustment-speed rate limit
const DefaultUpdateInterval = time.Minute

// CongestionModel maps live congestion signals into a per-chain fee
// multiplier. Movement toward the target is rate-limited per update interval
// so a single noisy or malicious report cannot spike fees in one step.
type CongestionModel struct {
	mu             sync.RWMutex
	params         map[types.ChainID]model.DynamicFeeParams
	multipliers    map[types.ChainID]int64
	updateInterval time.Duration
	clock          clock.Clock
}

// NewCongestionModel creates a model with the default update interval
func NewCongestionModel() *CongestionModel {
	return &CongestionModel{
		params:         make(map[types.ChainID]model.DynamicFeeParams),
		multipliers:    make(map[types.ChainID]int64),
		updateInterval: DefaultUpdateInterval,
		clock:          clock.New(),
	}
}

// WithClock injects a clock, used by tests to control smoothing intervals
func (m *CongestionModel) WithClock(c clock.Clock) *CongestionModel {
	m.clock = c
	return m
}

// WithUpdateInterval overrides the rate-limit interval
func (m *CongestionModel) WithUpdateInterval(d time.Duration) *CongestionModel {
	if d > 0 {
		m.updateInterval = d
	}
	return m
}

// UpdateParams replaces a chain's congestion tuning. A threshold of 100 would
// make the target calculation divide by zero, so it is rejected as invalid
// configuration along with anything else out of bounds.
func (m *CongestionModel) UpdateParams(chainID types.ChainID, p model.DynamicFeeParams) error {
	if p.CongestionThreshold < 0 || p.CongestionThreshold >= 100 {
		return ErrInvalidFeeParams
	}
	if p.MaxMultiplierBps < 0 || p.MaxMultiplierBps > maxCongestionMultiplierBps {
		return ErrInvalidFeeParams
	}
	if p.AdjustmentSpeedBps < 0 {
		return ErrInvalidFeeParams
	}

	m.mu.Lock()
	p.LastUpdated = time.Time{}
	m.params[chainID] = p
	m.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"chain":     chainID,
		"threshold": p.CongestionThreshold,
		"max_bps":   p.MaxMultiplierBps,
		"speed_bps": p.AdjustmentSpeedBps,
	}).Info("Dynamic fee params updated")
	return nil
}

// UpdateCongestionLevel reports a fresh congestion reading for a chain and
// moves the applied multiplier toward the implied target.
//
// Target: neutral (10000) at or below the threshold, otherwise
// 10000 + (level - threshold) * maxMultiplier / (100 - threshold).
// The applied multiplier may move at most
// adjustmentSpeed * (elapsed update intervals) per report, in either
// direction; an adjustment speed of zero disables the limit.
func (m *CongestionModel) UpdateCongestionLevel(chainID types.ChainID, level int64) error {
	if level < 0 || level > 100 {
		return ErrInvalidCongestionLevel
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.params[chainID]
	if !ok {
		return ErrInvalidFeeParams
	}

	target := int64(model.NeutralMultiplierBps)
	if level > p.CongestionThreshold {
		// Multiply before dividing; threshold < 100 is guaranteed by
		// UpdateParams so the divisor is never zero.
		target += (level - p.CongestionThreshold) * p.MaxMultiplierBps / (100 - p.CongestionThreshold)
	}

	current, ok := m.multipliers[chainID]
	if !ok {
		current = model.NeutralMultiplierBps
	}

	applied := target
	if p.AdjustmentSpeedBps > 0 && !p.LastUpdated.IsZero() {
		intervals := int64(m.clock.Since(p.LastUpdated) / m.updateInterval)
		maxMove := p.AdjustmentSpeedBps * intervals

		delta := target - current
		if delta > maxMove {
			delta = maxMove
		}
		if delta < -maxMove {
			delta = -maxMove
		}
		applied = current + delta
	}

	// Keep the applied value inside the symmetric band around neutral
	if applied < model.NeutralMultiplierBps {
		applied = model.NeutralMultiplierBps
	}
	if applied > model.NeutralMultiplierBps+p.MaxMultiplierBps {
		applied = model.NeutralMultiplierBps + p.MaxMultiplierBps
	}

	m.multipliers[chainID] = applied
	p.LastUpdated = m.clock.Now()
	m.params[chainID] = p

	logrus.WithFields(logrus.Fields{
		"chain":   chainID,
		"level":   level,
		"target":  target,
		"applied": applied,
	}).Debug("Congestion level updated")
	return nil
}

// Multiplier returns the applied multiplier for a chain (10000 = neutral)
func (m *CongestionModel) Multiplier(chainID types.ChainID) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if mult, ok := m.multipliers[chainID]; ok {
		return mult
	}
	return model.NeutralMultiplierBps
}

// Params returns a copy of a chain's tuning, if configured
func (m *CongestionModel) Params(chainID types.ChainID) (model.DynamicFeeParams, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.params[chainID]
	return p, ok
}
