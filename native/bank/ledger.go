package bank

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"marketd/core/state"
	"marketd/storage"
)

// ErrInsufficientFunds is returned when a transfer exceeds the sender's
// balance.
var ErrInsufficientFunds = errors.New("bank: insufficient funds")

var accountPrefix = []byte("bank/account/")

// Ledger tracks native-currency balances per identity. Writes go through the
// shared journaled KV, so transfers participate in the settlement engine's
// operation snapshots.
type Ledger struct {
	kv *state.KV
}

// NewLedger creates a native-currency ledger over the supplied KV.
func NewLedger(kv *state.KV) *Ledger {
	return &Ledger{kv: kv}
}

func accountKey(addr [20]byte) []byte {
	return append(append([]byte(nil), accountPrefix...), addr[:]...)
}

// BalanceOf returns the native balance held by addr.
func (l *Ledger) BalanceOf(addr [20]byte) (*big.Int, error) {
	data, err := l.kv.Get(accountKey(addr))
	if errors.Is(err, storage.ErrNotFound) {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}
	balance := new(big.Int)
	if err := rlp.DecodeBytes(data, balance); err != nil {
		return nil, fmt.Errorf("bank: decode balance: %w", err)
	}
	return balance, nil
}

func (l *Ledger) setBalance(addr [20]byte, balance *big.Int) error {
	encoded, err := rlp.EncodeToBytes(balance)
	if err != nil {
		return err
	}
	return l.kv.Put(accountKey(addr), encoded)
}

// Transfer moves amount from one identity to another, failing atomically if
// the sender's balance is short.
func (l *Ledger) Transfer(from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("bank: negative transfer amount")
	}
	if amount.Sign() == 0 {
		return nil
	}
	fromBalance, err := l.BalanceOf(from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	toBalance, err := l.BalanceOf(to)
	if err != nil {
		return err
	}
	if err := l.setBalance(from, new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	return l.setBalance(to, new(big.Int).Add(toBalance, amount))
}

// Mint credits amount to addr. Used for genesis funding and tests.
func (l *Ledger) Mint(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("bank: mint amount must be positive")
	}
	balance, err := l.BalanceOf(addr)
	if err != nil {
		return err
	}
	return l.setBalance(addr, new(big.Int).Add(balance, amount))
}
