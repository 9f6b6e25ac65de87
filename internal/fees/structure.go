// Package fees implements the fee policy store, the congestion model, and the
// fee manager that computes, collects and distributes platform fees.
package fees

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/EmmaExcel/settlement-switch-sub002/internal/model"
)

// Fee policy errors
var (
	ErrInvalidFeeRate         = errors.New("invalid fee rate: base rate, congestion multiplier or min/max out of bounds")
	ErrFeeStructureNotFound   = errors.New("fee structure not found")
	ErrInvalidFeeParams       = errors.New("invalid dynamic fee params")
	ErrInvalidCongestionLevel = errors.New("congestion level must be 0-100")
)

// Policy bounds in basis points
const (
	maxBaseRateBps             = 1000 // 10%
	maxCongestionMultiplierBps = 5000 // 50%
)

// Store holds the per-category fee policy. Categories are free-form names
// such as "protocol", "bridge" or "gas".
type Store struct {
	mu         sync.RWMutex
	structures map[string]model.FeeStructure
}

// NewStore creates an empty fee structure store
func NewStore() *Store {
	return &Store{structures: make(map[string]model.FeeStructure)}
}

// Update replaces the fee structure for a category after validating bounds:
// base rate at most 10%, congestion multiplier at most 50%, min not above max.
func (s *Store) Update(category string, fs model.FeeStructure) error {
	if fs.BaseRateBps < 0 || fs.BaseRateBps > maxBaseRateBps {
		return ErrInvalidFeeRate
	}
	if fs.CongestionMultiplierBps < 0 || fs.CongestionMultiplierBps > maxCongestionMultiplierBps {
		return ErrInvalidFeeRate
	}
	if fs.MinFeeAmount != nil && fs.MaxFeeAmount != nil && fs.MinFeeAmount.Cmp(fs.MaxFeeAmount) > 0 {
		return ErrInvalidFeeRate
	}

	s.mu.Lock()
	s.structures[category] = fs
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"category": category,
		"base_bps": fs.BaseRateBps,
		"active":   fs.Active,
		"cong_bps": fs.CongestionMultiplierBps,
	}).Info("Fee structure updated")
	return nil
}

// Get returns the fee structure for a category
func (s *Store) Get(category string) (model.FeeStructure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fs, ok := s.structures[category]
	if !ok {
		return model.FeeStructure{}, ErrFeeStructureNotFound
	}
	return fs, nil
}

// Categories returns the configured category names
func (s *Store) Categories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.structures))
	for name := range s.structures {
		out = append(out, name)
	}
	return out
}
