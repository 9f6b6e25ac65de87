package fees

import (
	"errors"
	"math/big"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/EmmaExcel/settlement-switch-sub002/internal/model"
	"github.com/EmmaExcel/settlement-switch-sub002/internal/types"
)

// Fee manager errors
var (
	ErrInvalidRecipient    = errors.New("recipient must not be the zero address")
	ErrInvalidDistribution = errors.New("distribution shares must not exceed 100%")
	ErrExcessiveDiscount   = errors.New("discount rate must not exceed 100%")
)

// EventSink receives fee lifecycle events. Implementations must not call back
// into the manager.
type EventSink interface {
	FeeCollected(record model.FeeRecord)
	FeesDistributed(token common.Address, total *big.Int)
}

type noopSink struct{}

func (noopSink) FeeCollected(model.FeeRecord)             {}
func (noopSink) FeesDistributed(common.Address, *big.Int) {}

// Manager computes, collects and distributes platform fees. All mutating
// operations are serialized under one mutex: state either fully applies or
// fully unwinds, and no partial collection is ever observable.
type Manager struct {
	store      *Store
	congestion *CongestionModel
	ledger     Ledger
	sink       EventSink
	clock      clock.Clock

	mu               sync.RWMutex
	treasury         common.Address
	exemptions       map[common.Address]bool
	discounts        map[common.Address]int64
	shares           []model.RevenueShare
	collected        map[common.Address]*big.Int
	totalDistributed map[common.Address]*big.Int
	records          []model.FeeRecord
}

// NewManager wires a fee manager over the policy store, congestion model and
// custody ledger.
func NewManager(store *Store, congestion *CongestionModel, ledger Ledger, treasury common.Address) *Manager {
	return &Manager{
		store:            store,
		congestion:       congestion,
		ledger:           ledger,
		sink:             noopSink{},
		clock:            clock.New(),
		treasury:         treasury,
		exemptions:       make(map[common.Address]bool),
		discounts:        make(map[common.Address]int64),
		collected:        make(map[common.Address]*big.Int),
		totalDistributed: make(map[common.Address]*big.Int),
	}
}

// WithEventSink sets the receiver for collection and distribution events
func (m *Manager) WithEventSink(sink EventSink) *Manager {
	if sink != nil {
		m.sink = sink
	}
	return m
}

// WithClock injects a clock, used by tests to control record timestamps
func (m *Manager) WithClock(c clock.Clock) *Manager {
	m.clock = c
	return m
}

// CalculateFee computes the fee owed for a transfer. Read-only: inactive
// categories and exempt payers pay zero; otherwise the base-rate fee is
// clamped into [min, max], scaled by the chain's congestion multiplier
// (capped by the category's own sensitivity), then reduced by the payer's
// discount. Every division is by the nonzero basis-point denominator.
func (m *Manager) CalculateFee(category string, amount *big.Int, chainID types.ChainID, payer common.Address) (*big.Int, error) {
	fs, err := m.store.Get(category)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	exempt := m.exemptions[payer]
	discount := m.discounts[payer]
	m.mu.RUnlock()

	if !fs.Active || exempt {
		return new(big.Int), nil
	}

	bps := big.NewInt(model.BpsDenominator)

	fee := new(big.Int).Mul(amount, big.NewInt(fs.BaseRateBps))
	fee.Div(fee, bps)

	if fs.MinFeeAmount != nil && fee.Cmp(fs.MinFeeAmount) < 0 {
		fee.Set(fs.MinFeeAmount)
	}
	if fs.MaxFeeAmount != nil && fs.MaxFeeAmount.Sign() > 0 && fee.Cmp(fs.MaxFeeAmount) > 0 {
		fee.Set(fs.MaxFeeAmount)
	}

	// The chain multiplier applies up to the category's own congestion
	// sensitivity cap.
	surcharge := m.congestion.Multiplier(chainID) - model.NeutralMultiplierBps
	if surcharge > fs.CongestionMultiplierBps {
		surcharge = fs.CongestionMultiplierBps
	}
	if surcharge > 0 {
		fee.Mul(fee, big.NewInt(model.NeutralMultiplierBps+surcharge))
		fee.Div(fee, bps)
	}

	if discount > 0 {
		off := new(big.Int).Mul(fee, big.NewInt(discount))
		off.Div(off, bps)
		fee.Sub(fee, off)
	}
	return fee, nil
}

// CollectFee pulls the fee from the payer, refunds any excess supplied value,
// and appends an immutable record. A zero amount is a no-op. Collected totals
// are updated before the ledger is touched, and a failed pull unwinds the
// whole operation inside the same critical section.
func (m *Manager) CollectFee(category string, token common.Address, amount *big.Int, payer common.Address, transferID string, supplied *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}

	pull := amount
	refund := new(big.Int)
	if supplied != nil {
		if supplied.Cmp(amount) < 0 {
			return ErrInsufficientFeePayment
		}
		pull = supplied
		refund.Sub(supplied, amount)
	}

	record := model.FeeRecord{
		ID:         uuid.NewString(),
		Token:      token,
		Amount:     new(big.Int).Set(amount),
		Timestamp:  m.clock.Now(),
		Payer:      payer,
		TransferID: transferID,
		Category:   category,
	}

	m.mu.Lock()
	total, ok := m.collected[token]
	if !ok {
		total = new(big.Int)
		m.collected[token] = total
	}
	total.Add(total, amount)
	m.records = append(m.records, record)

	if err := m.ledger.Pull(token, payer, pull); err != nil {
		total.Sub(total, amount)
		m.records = m.records[:len(m.records)-1]
		m.mu.Unlock()
		return err
	}
	if refund.Sign() > 0 {
		if err := m.ledger.Push(token, payer, refund); err != nil {
			logrus.WithError(err).WithField("payer", payer.Hex()).Warn("Fee refund failed")
		}
	}
	m.mu.Unlock()

	m.sink.FeeCollected(record)
	logrus.WithFields(logrus.Fields{
		"category":    category,
		"token":       token.Hex(),
		"amount":      amount,
		"transfer_id": transferID,
	}).Info("Fee collected")
	return nil
}

// DistributeFees pays each active recipient its share of the collected
// balance for a token, in registration order, and sends the remainder to the
// treasury. The balance is zeroed in the same critical section as the
// payouts, so a second call right after is a no-op.
func (m *Manager) DistributeFees(token common.Address) error {
	m.mu.Lock()

	balance, ok := m.collected[token]
	if !ok || balance.Sign() == 0 {
		m.mu.Unlock()
		return nil
	}

	total := new(big.Int).Set(balance)
	balance.SetInt64(0)

	bps := big.NewInt(model.BpsDenominator)
	remainder := new(big.Int).Set(total)
	for _, share := range m.shares {
		if !share.Active {
			continue
		}
		cut := new(big.Int).Mul(total, big.NewInt(share.ShareBps))
		cut.Div(cut, bps)
		if cut.Sign() == 0 {
			continue
		}
		if err := m.ledger.Push(token, share.Recipient, cut); err != nil {
			logrus.WithError(err).WithField("recipient", share.Recipient.Hex()).Warn("Revenue payout failed")
			continue
		}
		remainder.Sub(remainder, cut)
	}

	if remainder.Sign() > 0 {
		if err := m.ledger.Push(token, m.treasury, remainder); err != nil {
			logrus.WithError(err).Warn("Treasury payout failed")
		}
	}

	distributed, ok := m.totalDistributed[token]
	if !ok {
		distributed = new(big.Int)
		m.totalDistributed[token] = distributed
	}
	distributed.Add(distributed, total)
	m.mu.Unlock()

	m.sink.FeesDistributed(token, total)
	logrus.WithFields(logrus.Fields{
		"token": token.Hex(),
		"total": total,
	}).Info("Fees distributed")
	return nil
}

// SetRevenueDistribution sets a recipient's share. A zero percentage removes
// the recipient from the active list; the sum of active shares may never
// exceed 100%.
func (m *Manager) SetRevenueDistribution(recipient common.Address, shareBps int64) error {
	if recipient == (common.Address{}) {
		return ErrInvalidRecipient
	}
	if shareBps < 0 || shareBps > model.BpsDenominator {
		return ErrInvalidDistribution
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var sum int64
	idx := -1
	for i, share := range m.shares {
		if share.Recipient == recipient {
			idx = i
			continue
		}
		if share.Active {
			sum += share.ShareBps
		}
	}
	if sum+shareBps > model.BpsDenominator {
		return ErrInvalidDistribution
	}

	switch {
	case shareBps == 0 && idx >= 0:
		m.shares = append(m.shares[:idx], m.shares[idx+1:]...)
	case shareBps == 0:
		// Removing a recipient that was never added is a no-op
	case idx >= 0:
		m.shares[idx].ShareBps = shareBps
		m.shares[idx].Active = true
	default:
		m.shares = append(m.shares, model.RevenueShare{Recipient: recipient, ShareBps: shareBps, Active: true})
	}

	logrus.WithFields(logrus.Fields{
		"recipient": recipient.Hex(),
		"share_bps": shareBps,
	}).Info("Revenue distribution updated")
	return nil
}

// GetRevenueDistribution returns the active shares in registration order
func (m *Manager) GetRevenueDistribution() []model.RevenueShare {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.RevenueShare, len(m.shares))
	copy(out, m.shares)
	return out
}

// SetFeeExemption marks or unmarks a payer as fee-exempt
func (m *Manager) SetFeeExemption(payer common.Address, exempt bool) {
	m.mu.Lock()
	if exempt {
		m.exemptions[payer] = true
	} else {
		delete(m.exemptions, payer)
	}
	m.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"payer":  payer.Hex(),
		"exempt": exempt,
	}).Info("Fee exemption updated")
}

// SetDiscountRate sets a payer's discount in basis points
func (m *Manager) SetDiscountRate(payer common.Address, discountBps int64) error {
	if discountBps < 0 || discountBps > model.BpsDenominator {
		return ErrExcessiveDiscount
	}

	m.mu.Lock()
	if discountBps == 0 {
		delete(m.discounts, payer)
	} else {
		m.discounts[payer] = discountBps
	}
	m.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"payer":        payer.Hex(),
		"discount_bps": discountBps,
	}).Info("Discount rate updated")
	return nil
}

// UpdateTreasury changes where distribution remainders flow
func (m *Manager) UpdateTreasury(treasury common.Address) error {
	if treasury == (common.Address{}) {
		return ErrInvalidRecipient
	}

	m.mu.Lock()
	m.treasury = treasury
	m.mu.Unlock()

	logrus.WithField("treasury", treasury.Hex()).Info("Treasury updated")
	return nil
}

// Treasury returns the current treasury account
func (m *Manager) Treasury() common.Address {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.treasury
}

// FeeHistory returns every record for a transfer id in insertion order
func (m *Manager) FeeHistory(transferID string) []model.FeeRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.FeeRecord
	for _, rec := range m.records {
		if rec.TransferID == transferID {
			out = append(out, rec)
		}
	}
	return out
}

// CollectedFees returns the undistributed balance for a token
func (m *Manager) CollectedFees(token common.Address) *big.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if total, ok := m.collected[token]; ok {
		return new(big.Int).Set(total)
	}
	return new(big.Int)
}

// TotalDistributed returns the lifetime distributed amount for a token
func (m *Manager) TotalDistributed(token common.Address) *big.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if total, ok := m.totalDistributed[token]; ok {
		return new(big.Int).Set(total)
	}
	return new(big.Int)
}
