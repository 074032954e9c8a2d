package ledger

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"bazaar/core/events"
	nativecommon "bazaar/native/common"
)

var (
	ErrNilState      = errors.New("ledger: state not configured")
	ErrInvalidAmount = errors.New("ledger: amount must be positive")
	ErrNoBalance     = errors.New("ledger: no balance to withdraw")
	ErrUnauthorized  = errors.New("ledger: unauthorized withdrawal")
)

// PoolAccount is the reserved ledger key accruing protocol revenue (sale fees
// and cancellation fines). It is withdrawable only by the protocol owner.
var PoolAccount = common.BytesToAddress([]byte("bazaar/protocol-pool"))

// State is the persistence boundary for withdrawable balances.
type State interface {
	LedgerBalance(account common.Address) (*big.Int, error)
	LedgerSetBalance(account common.Address, amount *big.Int) error
}

// Ledger tracks per-account withdrawable balances plus the reserved protocol
// pool. Credits are pure bookkeeping; the value itself is custodied by the
// payment boundary upstream of the engine.
type Ledger struct {
	mu      sync.Mutex
	state   State
	owner   common.Address
	emitter events.Emitter
	pauses  nativecommon.PauseView
}

// New constructs a ledger with a no-op event emitter.
func New() *Ledger {
	return &Ledger{emitter: events.NoopEmitter{}}
}

// SetState configures the persistence backend.
func (l *Ledger) SetState(state State) { l.state = state }

// SetOwner configures the protocol owner allowed to drain the pool account.
func (l *Ledger) SetOwner(owner common.Address) { l.owner = owner }

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

// SetPauses wires the module pause view.
func (l *Ledger) SetPauses(p nativecommon.PauseView) { l.pauses = p }

// Owner returns the configured protocol owner.
func (l *Ledger) Owner() common.Address { return l.owner }

// Credit adds amount to the account's withdrawable balance.
func (l *Ledger) Credit(account common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.credit(account, amount)
}

// CreditPool adds amount to the reserved protocol revenue account.
func (l *Ledger) CreditPool(amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.credit(PoolAccount, amount)
}

// Debit removes amount from the account's balance. It exists so a failed
// external interaction can unwind the credit recorded in the same operation.
func (l *Ledger) Debit(account common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == nil {
		return ErrNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	balance, err := l.state.LedgerBalance(account)
	if err != nil {
		return err
	}
	if balance == nil {
		balance = big.NewInt(0)
	}
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("ledger: debit exceeds balance for %s", account.Hex())
	}
	return l.state.LedgerSetBalance(account, new(big.Int).Sub(balance, amount))
}

// Balance reports the account's withdrawable balance.
func (l *Ledger) Balance(account common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == nil {
		return nil, ErrNilState
	}
	balance, err := l.state.LedgerBalance(account)
	if err != nil {
		return nil, err
	}
	if balance == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(balance), nil
}

// Withdraw drains the caller's entire balance and zeroes it, returning the
// amount paid out. The pool account is guarded by the protocol owner check.
func (l *Ledger) Withdraw(account, caller common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == nil {
		return nil, ErrNilState
	}
	if err := nativecommon.Guard(l.pauses, nativecommon.ModuleLedger); err != nil {
		return nil, err
	}
	if account == PoolAccount {
		if caller != l.owner || l.owner == (common.Address{}) {
			return nil, ErrUnauthorized
		}
	} else if caller != account {
		return nil, ErrUnauthorized
	}
	balance, err := l.state.LedgerBalance(account)
	if err != nil {
		return nil, err
	}
	if balance == nil || balance.Sign() == 0 {
		return nil, ErrNoBalance
	}
	amount := new(big.Int).Set(balance)
	if err := l.state.LedgerSetBalance(account, big.NewInt(0)); err != nil {
		return nil, err
	}
	l.emit(events.LedgerWithdrawn{Account: account, Amount: new(big.Int).Set(amount)})
	return amount, nil
}

// WithdrawPool drains the protocol pool on behalf of the owner.
func (l *Ledger) WithdrawPool(caller common.Address) (*big.Int, error) {
	return l.Withdraw(PoolAccount, caller)
}

func (l *Ledger) credit(account common.Address, amount *big.Int) error {
	if l.state == nil {
		return ErrNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	balance, err := l.state.LedgerBalance(account)
	if err != nil {
		return err
	}
	if balance == nil {
		balance = big.NewInt(0)
	}
	return l.state.LedgerSetBalance(account, new(big.Int).Add(balance, amount))
}

func (l *Ledger) emit(evt events.Event) {
	if l == nil || l.emitter == nil {
		return
	}
	l.emitter.Emit(evt)
}
