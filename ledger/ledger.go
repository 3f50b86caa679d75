// Package ledger provides the reference value ledger consumed by the campaign
// engine. Balances are tracked per (token, account) and persisted through a
// storage.Database; escrowed value sits on a dedicated vault account so the
// campaign modules' tracked balances stay separate from participant holdings.
package ledger

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"giftnet/storage"
)

var (
	ErrInvalidAmount       = errors.New("ledger: amount must be positive")
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")
)

// Ledger implements escrow-style pull/push transfers between participant
// accounts and the campaign vault.
type Ledger struct {
	mu    sync.Mutex
	db    storage.Database
	vault [20]byte
}

// New creates a ledger persisting balances in the given database. The vault
// address receives pulled escrow deposits and is debited on pushes.
func New(db storage.Database, vault [20]byte) *Ledger {
	return &Ledger{db: db, vault: vault}
}

// Vault returns the escrow vault address.
func (l *Ledger) Vault() [20]byte { return l.vault }

func balanceKey(token string, addr [20]byte) []byte {
	key := make([]byte, 0, len("ledger/balance/")+len(token)+21)
	key = append(key, []byte("ledger/balance/")...)
	key = append(key, []byte(token)...)
	key = append(key, '/')
	return append(key, addr[:]...)
}

// Balance returns the current balance of the account for the given token.
func (l *Ledger) Balance(token string, addr [20]byte) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance(token, addr)
}

func (l *Ledger) balance(token string, addr [20]byte) (*big.Int, error) {
	key := balanceKey(token, addr)
	ok, err := l.db.Has(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	raw, err := l.db.Get(key)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(raw), nil
}

func (l *Ledger) setBalance(token string, addr [20]byte, amount *big.Int) error {
	return l.db.Put(balanceKey(token, addr), amount.Bytes())
}

// Mint credits freshly issued value to the account. Used to seed balances at
// genesis and by the faucet tooling in tests.
func (l *Ledger) Mint(token string, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	current, err := l.balance(token, to)
	if err != nil {
		return err
	}
	return l.setBalance(token, to, new(big.Int).Add(current, amount))
}

// transfer moves value between two accounts, failing atomically when the
// source balance cannot cover the amount.
func (l *Ledger) transfer(token string, from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	fromBal, err := l.balance(token, from)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: token %s", ErrInsufficientBalance, token)
	}
	toBal, err := l.balance(token, to)
	if err != nil {
		return err
	}
	if err := l.setBalance(token, from, new(big.Int).Sub(fromBal, amount)); err != nil {
		return err
	}
	if err := l.setBalance(token, to, new(big.Int).Add(toBal, amount)); err != nil {
		// Restore the debited source so a half-applied transfer never
		// persists.
		if restoreErr := l.setBalance(token, from, fromBal); restoreErr != nil {
			return fmt.Errorf("ledger: credit failed: %v (rollback also failed: %w)", err, restoreErr)
		}
		return err
	}
	return nil
}

// Pull moves the amount from the holder into the escrow vault.
func (l *Ledger) Pull(token string, from [20]byte, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transfer(token, from, l.vault, amount)
}

// Push moves the amount from the escrow vault to the recipient.
func (l *Ledger) Push(token string, to [20]byte, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transfer(token, l.vault, to, amount)
}
