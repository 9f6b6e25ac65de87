package scoring

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/EmmaExcel/settlement-switch-sub002/internal/model"
)

// ErrInvalidScoringWeights is returned when an update does not satisfy the
// weight invariant (non-negative, each at most 100, summing to exactly 100).
var ErrInvalidScoringWeights = errors.New("scoring weights must be 0-100 each and sum to 100")

// ErrUnknownMode is returned for a mode outside the known routing profiles
var ErrUnknownMode = errors.New("unknown routing mode")

// WeightTable holds one weight set per routing mode. Updates are serialized;
// reads return a copy so callers never observe a half-applied change.
type WeightTable struct {
	mu      sync.RWMutex
	weights map[model.RouteMode]model.ScoringWeights
}

// DefaultWeights returns the stock weight profile for a mode
func DefaultWeights(mode model.RouteMode) model.ScoringWeights {
	switch mode {
	case model.ModeCheapest:
		return model.ScoringWeights{Cost: 60, Speed: 10, Reliability: 20, Liquidity: 10}
	case model.ModeFastest:
		return model.ScoringWeights{Cost: 10, Speed: 60, Reliability: 20, Liquidity: 10}
	default:
		return model.ScoringWeights{Cost: 30, Speed: 25, Reliability: 25, Liquidity: 20}
	}
}

// NewWeightTable creates a table seeded with the default profile per mode
func NewWeightTable() *WeightTable {
	return &WeightTable{
		weights: map[model.RouteMode]model.ScoringWeights{
			model.ModeCheapest: DefaultWeights(model.ModeCheapest),
			model.ModeFastest:  DefaultWeights(model.ModeFastest),
			model.ModeBalanced: DefaultWeights(model.ModeBalanced),
		},
	}
}

// Update replaces the weight set for a mode after validating the invariant
func (t *WeightTable) Update(mode model.RouteMode, w model.ScoringWeights) error {
	if !mode.Valid() {
		return ErrUnknownMode
	}
	if !w.Valid() {
		return ErrInvalidScoringWeights
	}

	t.mu.Lock()
	t.weights[mode] = w
	t.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"mode":        mode,
		"cost":        w.Cost,
		"speed":       w.Speed,
		"reliability": w.Reliability,
		"liquidity":   w.Liquidity,
	}).Info("Scoring weights updated")
	return nil
}

// Get returns the current weight set for a mode, falling back to the
// balanced profile for unknown modes.
func (t *WeightTable) Get(mode model.RouteMode) model.ScoringWeights {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if w, ok := t.weights[mode]; ok {
		return w
	}
	return t.weights[model.ModeBalanced]
}
