package bank

import (
	"errors"
	"math/big"
	"testing"

	"marketd/core/state"
	"marketd/storage"
)

func addr(fill byte) [20]byte {
	var a [20]byte
	for i := range a {
		a[i] = fill
	}
	return a
}

func TestLedgerTransfer(t *testing.T) {
	l := NewLedger(state.NewKV(storage.NewMemDB()))
	alice, bob := addr(0x01), addr(0x02)

	balance, err := l.BalanceOf(alice)
	if err != nil || balance.Sign() != 0 {
		t.Fatalf("fresh balance = %v (%v)", balance, err)
	}
	if err := l.Mint(alice, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := l.Transfer(alice, bob, big.NewInt(150)); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("overdraft: got %v", err)
	}
	if err := l.Transfer(alice, bob, big.NewInt(-1)); err == nil {
		t.Fatal("negative amount should be rejected")
	}
	if err := l.Transfer(alice, bob, big.NewInt(0)); err != nil {
		t.Fatalf("zero transfer: %v", err)
	}
	if err := l.Transfer(alice, bob, big.NewInt(60)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	aliceBalance, _ := l.BalanceOf(alice)
	bobBalance, _ := l.BalanceOf(bob)
	if aliceBalance.Int64() != 40 || bobBalance.Int64() != 60 {
		t.Fatalf("balances = %v / %v", aliceBalance, bobBalance)
	}
}

func TestLedgerTransferRevertsWithJournal(t *testing.T) {
	kv := state.NewKV(storage.NewMemDB())
	l := NewLedger(kv)
	alice, bob := addr(0x01), addr(0x02)
	if err := l.Mint(alice, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	snap := kv.Snapshot()
	if err := l.Transfer(alice, bob, big.NewInt(100)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	kv.RevertToSnapshot(snap)

	aliceBalance, _ := l.BalanceOf(alice)
	bobBalance, _ := l.BalanceOf(bob)
	if aliceBalance.Int64() != 100 || bobBalance.Sign() != 0 {
		t.Fatalf("balances after revert = %v / %v", aliceBalance, bobBalance)
	}
}
