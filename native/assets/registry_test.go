package assets

import (
	"errors"
	"math/big"
	"testing"

	"marketd/core/state"
	"marketd/native/market"
	"marketd/storage"
)

func addr(fill byte) [20]byte {
	var a [20]byte
	for i := range a {
		a[i] = fill
	}
	return a
}

func TestMintAndTransfer(t *testing.T) {
	r := NewRegistry(state.NewKV(storage.NewMemDB()))
	class, alice, bob := addr(0xC1), addr(0x01), addr(0x02)
	id := big.NewInt(1)

	if _, err := r.OwnerOf(class, id); !errors.Is(err, ErrUnknownAsset) {
		t.Fatalf("unminted: got %v", err)
	}
	if err := r.Mint(class, id, alice); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := r.Mint(class, id, bob); !errors.Is(err, ErrAssetExists) {
		t.Fatalf("double mint: got %v", err)
	}
	if err := r.Transfer(class, bob, alice, id); !errors.Is(err, ErrNotAssetOwner) {
		t.Fatalf("transfer by non-owner: got %v", err)
	}
	if err := r.Transfer(class, alice, bob, id); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	owner, err := r.OwnerOf(class, id)
	if err != nil || owner != bob {
		t.Fatalf("owner = %x (%v)", owner, err)
	}
}

func TestApprovalClearedOnTransfer(t *testing.T) {
	r := NewRegistry(state.NewKV(storage.NewMemDB()))
	class, alice, bob, spender := addr(0xC1), addr(0x01), addr(0x02), addr(0xEE)
	id := big.NewInt(1)

	if err := r.Mint(class, id, alice); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := r.Approve(class, bob, id, spender); !errors.Is(err, ErrNotAssetOwner) {
		t.Fatalf("approve by non-owner: got %v", err)
	}
	if err := r.Approve(class, alice, id, spender); err != nil {
		t.Fatalf("approve: %v", err)
	}
	approved, _ := r.Approved(class, id)
	if approved != spender {
		t.Fatal("approval not recorded")
	}
	if err := r.Transfer(class, alice, bob, id); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	approved, _ = r.Approved(class, id)
	if approved != ([20]byte{}) {
		t.Fatal("approval should be cleared on transfer")
	}
}

func TestRoyaltyCapability(t *testing.T) {
	r := NewRegistry(state.NewKV(storage.NewMemDB()))
	class, creator := addr(0xC1), addr(0x05)

	ok, err := r.Supports(class, market.RoyaltyCapability)
	if err != nil || ok {
		t.Fatalf("unconfigured class: ok=%v err=%v", ok, err)
	}
	if err := r.SetRoyalty(class, creator, 1000); err != nil {
		t.Fatalf("set royalty: %v", err)
	}
	ok, err = r.Supports(class, market.RoyaltyCapability)
	if err != nil || !ok {
		t.Fatalf("configured class: ok=%v err=%v", ok, err)
	}
	if ok, _ := r.Supports(class, 0xdeadbeef); ok {
		t.Fatal("unknown capability should not be supported")
	}

	recipient, amount, err := r.RoyaltyInfo(class, big.NewInt(1), big.NewInt(1_000_000))
	if err != nil {
		t.Fatalf("royalty info: %v", err)
	}
	if recipient != creator || amount.Int64() != 100_000 {
		t.Fatalf("royalty = %x / %v", recipient, amount)
	}

	// Zero bps removes the configuration.
	if err := r.SetRoyalty(class, creator, 0); err != nil {
		t.Fatalf("clear royalty: %v", err)
	}
	if ok, _ := r.Supports(class, market.RoyaltyCapability); ok {
		t.Fatal("cleared class should not support royalties")
	}
}
