package fees

import (
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// ErrInsufficientFeePayment is returned when the payer supplied less value
// than the fee being collected. No partial collection occurs.
var ErrInsufficientFeePayment = errors.New("insufficient fee payment")

// Ledger is the seam to the custody layer that actually moves value. The fee
// manager only ever calls it after its own state updates are complete.
type Ledger interface {
	// Pull moves amount of token from the payer into the platform account
	Pull(token, from common.Address, amount *big.Int) error

	// Push moves amount of token from the platform account to a recipient
	Push(token, to common.Address, amount *big.Int) error
}

// MemoryLedger is an in-process Ledger used by tests and local runs.
// Balances are tracked per token per account.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[common.Address]map[common.Address]*big.Int
}

// NewMemoryLedger creates an empty in-memory ledger
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{balances: make(map[common.Address]map[common.Address]*big.Int)}
}

// Credit funds an account, used to seed test balances
func (l *MemoryLedger) Credit(token, account common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balance(token, account).Add(l.balance(token, account), amount)
}

// Pull debits the payer's balance
func (l *MemoryLedger) Pull(token, from common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	bal := l.balance(token, from)
	if bal.Cmp(amount) < 0 {
		return ErrInsufficientFeePayment
	}
	bal.Sub(bal, amount)
	return nil
}

// Push credits a recipient's balance
func (l *MemoryLedger) Push(token, to common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	bal := l.balance(token, to)
	bal.Add(bal, amount)
	return nil
}

// BalanceOf reports an account's balance for a token
func (l *MemoryLedger) BalanceOf(token, account common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.balance(token, account))
}

func (l *MemoryLedger) balance(token, account common.Address) *big.Int {
	accounts, ok := l.balances[token]
	if !ok {
		accounts = make(map[common.Address]*big.Int)
		l.balances[token] = accounts
	}
	bal, ok := accounts[account]
	if !ok {
		bal = new(big.Int)
		accounts[account] = bal
	}
	return bal
}
