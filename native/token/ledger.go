package token

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"marketd/core/state"
	"marketd/storage"
)

var (
	// ErrInsufficientBalance is returned when a transfer exceeds the
	// sender's token balance.
	ErrInsufficientBalance = errors.New("token: insufficient balance")
	// ErrInsufficientAllowance is returned when TransferFrom exceeds the
	// allowance granted to the operator.
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
)

var (
	balancePrefix   = []byte("token/balance/")
	allowancePrefix = []byte("token/allowance/")
)

// Ledger tracks fungible-token balances and allowances per token address,
// ERC-20 style. The operator identity is the spender for TransferFrom and
// the implicit sender for Transfer, matching how the settlement engine acts
// on the token protocol.
type Ledger struct {
	kv       *state.KV
	operator [20]byte
}

// NewLedger creates a token ledger whose Transfer/TransferFrom act on behalf
// of operator.
func NewLedger(kv *state.KV, operator [20]byte) *Ledger {
	return &Ledger{kv: kv, operator: operator}
}

func balanceKey(token, addr [20]byte) []byte {
	key := append(append([]byte(nil), balancePrefix...), token[:]...)
	return append(key, addr[:]...)
}

func allowanceKey(token, owner, spender [20]byte) []byte {
	key := append(append([]byte(nil), allowancePrefix...), token[:]...)
	key = append(key, owner[:]...)
	return append(key, spender[:]...)
}

func (l *Ledger) amount(key []byte) (*big.Int, error) {
	data, err := l.kv.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}
	amount := new(big.Int)
	if err := rlp.DecodeBytes(data, amount); err != nil {
		return nil, fmt.Errorf("token: decode amount: %w", err)
	}
	return amount, nil
}

func (l *Ledger) setAmount(key []byte, amount *big.Int) error {
	encoded, err := rlp.EncodeToBytes(amount)
	if err != nil {
		return err
	}
	return l.kv.Put(key, encoded)
}

// BalanceOf returns addr's balance in the given token.
func (l *Ledger) BalanceOf(token, addr [20]byte) (*big.Int, error) {
	return l.amount(balanceKey(token, addr))
}

// Allowance returns what spender may still pull from owner in the token.
func (l *Ledger) Allowance(token, owner, spender [20]byte) (*big.Int, error) {
	return l.amount(allowanceKey(token, owner, spender))
}

// Approve sets spender's allowance over owner's tokens.
func (l *Ledger) Approve(token, owner, spender [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("token: negative allowance")
	}
	return l.setAmount(allowanceKey(token, owner, spender), amount)
}

func (l *Ledger) move(token [20]byte, from, to [20]byte, amount *big.Int) error {
	fromBalance, err := l.BalanceOf(token, from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	toBalance, err := l.BalanceOf(token, to)
	if err != nil {
		return err
	}
	if err := l.setAmount(balanceKey(token, from), new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	return l.setAmount(balanceKey(token, to), new(big.Int).Add(toBalance, amount))
}

// TransferFrom pulls amount from from's balance using the allowance granted
// to the operator, crediting to.
func (l *Ledger) TransferFrom(token, from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("token: negative transfer amount")
	}
	if amount.Sign() == 0 {
		return nil
	}
	allowance, err := l.Allowance(token, from, l.operator)
	if err != nil {
		return err
	}
	if allowance.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	if err := l.move(token, from, to, amount); err != nil {
		return err
	}
	return l.setAmount(allowanceKey(token, from, l.operator), new(big.Int).Sub(allowance, amount))
}

// Transfer sends amount from the operator's own balance to to.
func (l *Ledger) Transfer(token, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("token: negative transfer amount")
	}
	if amount.Sign() == 0 {
		return nil
	}
	return l.move(token, l.operator, to, amount)
}

// Mint credits amount of token to addr. Used for genesis funding and tests.
func (l *Ledger) Mint(token, addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("token: mint amount must be positive")
	}
	balance, err := l.BalanceOf(token, addr)
	if err != nil {
		return err
	}
	return l.setAmount(balanceKey(token, addr), new(big.Int).Add(balance, amount))
}
