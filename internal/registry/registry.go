// Package registry tracks the set of bridge adapters eligible for routing
// and their live health statistics.
package registry

import (
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"github.com/EmmaExcel/settlement-switch-sub002/internal/bridge"
	"github.com/EmmaExcel/settlement-switch-sub002/internal/model"
)

// Registry errors
var (
	ErrNilAdapter               = errors.New("adapter is nil")
	ErrAdapterAlreadyRegistered = errors.New("adapter already registered")
	ErrAdapterNotRegistered     = errors.New("adapter not registered")
)

// healthyRatioBps is the minimum success ratio to stay healthy (90%)
const healthyRatioBps = 9000

// Registry owns the adapter table and per-adapter health records. Every
// mutation runs as a single serialized step; reads return copies so callers
// never observe partial updates.
type Registry struct {
	mu       sync.RWMutex
	adapters []bridge.Adapter
	index    map[string]int
	health   map[string]*model.BridgeHealth
	clock    clock.Clock
}

// New creates an empty registry
func New() *Registry {
	return &Registry{
		index:  make(map[string]int),
		health: make(map[string]*model.BridgeHealth),
		clock:  clock.New(),
	}
}

// WithClock injects a clock, used by tests to control health timestamps
func (r *Registry) WithClock(c clock.Clock) *Registry {
	r.clock = c
	return r
}

// Register adds an adapter to the active set. A fresh adapter starts healthy
// with zeroed counters.
func (r *Registry) Register(adapter bridge.Adapter) error {
	if adapter == nil || adapter.Name() == "" {
		return ErrNilAdapter
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name := adapter.Name()
	if _, exists := r.index[name]; exists {
		return ErrAdapterAlreadyRegistered
	}

	r.index[name] = len(r.adapters)
	r.adapters = append(r.adapters, adapter)
	r.health[name] = &model.BridgeHealth{
		TotalVolume: new(big.Int),
		Healthy:     true,
	}

	logrus.WithField("bridge", name).Info("Bridge adapter registered")
	return nil
}

// Deregister removes an adapter from the active set by swapping it with the
// last entry and truncating. Enumeration order is not preserved.
func (r *Registry) Deregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, exists := r.index[name]
	if !exists {
		return ErrAdapterNotRegistered
	}

	last := len(r.adapters) - 1
	if i != last {
		r.adapters[i] = r.adapters[last]
		r.index[r.adapters[i].Name()] = i
	}
	r.adapters = r.adapters[:last]
	delete(r.index, name)
	delete(r.health, name)

	logrus.WithField("bridge", name).Info("Bridge adapter removed")
	return nil
}

// ReportOutcome records a completed transfer for an adapter: counters, volume,
// smoothed completion time, and the derived healthy flag. The completion time
// average uses a fixed 9:1 weighting regardless of how much time elapsed
// between samples.
func (r *Registry) ReportOutcome(name string, success bool, completionTime time.Duration, volume *big.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, exists := r.health[name]
	if !exists {
		return ErrAdapterNotRegistered
	}

	h.TotalTransfers++
	if success {
		h.SuccessfulTransfers++
	}
	if volume != nil {
		h.TotalVolume.Add(h.TotalVolume, volume)
	}

	if h.TotalTransfers == 1 {
		h.AvgCompletionTime = completionTime
	} else {
		h.AvgCompletionTime = (h.AvgCompletionTime*9 + completionTime) / 10
	}

	h.Healthy = h.SuccessfulTransfers*model.BpsDenominator >= h.TotalTransfers*healthyRatioBps
	h.LastUpdated = r.clock.Now()

	if !h.Healthy {
		logrus.WithFields(logrus.Fields{
			"bridge":     name,
			"total":      h.TotalTransfers,
			"successful": h.SuccessfulTransfers,
		}).Warn("Bridge adapter marked unhealthy")
	}
	return nil
}

// List returns the registered adapters in current enumeration order
func (r *Registry) List() []bridge.Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]bridge.Adapter, len(r.adapters))
	copy(out, r.adapters)
	return out
}

// Names returns the registered adapter names in enumeration order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.adapters))
	for i, a := range r.adapters {
		names[i] = a.Name()
	}
	return names
}

// HealthOf returns a copy of an adapter's health record
func (r *Registry) HealthOf(name string) (model.BridgeHealth, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, exists := r.health[name]
	if !exists {
		return model.BridgeHealth{}, ErrAdapterNotRegistered
	}

	out := *h
	out.TotalVolume = new(big.Int).Set(h.TotalVolume)
	return out, nil
}

// IsHealthy reports whether an adapter is registered and currently healthy
func (r *Registry) IsHealthy(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, exists := r.health[name]
	return exists && h.Healthy
}
