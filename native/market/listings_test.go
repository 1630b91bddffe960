package market_test

import (
	"errors"
	"math/big"
	"testing"

	"marketd/native/market"
)

func TestCreateListingValidation(t *testing.T) {
	e := newEnv(t)
	id := e.mintAsset(1, sellerAddr)

	if err := e.engine.CreateListing(sellerAddr, classNFT, id, market.NativeCurrency, big.NewInt(0)); !errors.Is(err, market.ErrInvalidPrice) {
		t.Fatalf("zero price: got %v", err)
	}
	if err := e.engine.CreateListing(buyerAddr, classNFT, id, market.NativeCurrency, big.NewInt(100)); !errors.Is(err, market.ErrNotAssetOwner) {
		t.Fatalf("non-owner: got %v", err)
	}

	// Revoke the engine's approval.
	if err := e.registry.Approve(classNFT, sellerAddr, id, [20]byte{}); err != nil {
		t.Fatalf("revoke approval: %v", err)
	}
	if err := e.engine.CreateListing(sellerAddr, classNFT, id, market.NativeCurrency, big.NewInt(100)); !errors.Is(err, market.ErrNotAuthorized) {
		t.Fatalf("unapproved: got %v", err)
	}

	if err := e.registry.Approve(classNFT, sellerAddr, id, engineAddr); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := e.engine.CreateListing(sellerAddr, classNFT, id, market.NativeCurrency, big.NewInt(100)); err != nil {
		t.Fatalf("create listing: %v", err)
	}
	listing, ok, err := e.engine.Listing(classNFT, id)
	if err != nil || !ok {
		t.Fatalf("listing lookup: ok=%v err=%v", ok, err)
	}
	requireAmount(t, listing.Price, 100)
	if evt := e.emitter.last(market.EventTypeListingCreated); evt == nil {
		t.Fatal("listing created event not emitted")
	}
}

func TestCancelListing(t *testing.T) {
	e := newEnv(t)
	id := e.mintAsset(1, sellerAddr)
	if err := e.engine.CancelListing(sellerAddr, classNFT, id); !errors.Is(err, market.ErrNotListed) {
		t.Fatalf("absent: got %v", err)
	}
	if err := e.engine.CreateListing(sellerAddr, classNFT, id, market.NativeCurrency, big.NewInt(100)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := e.engine.CancelListing(buyerAddr, classNFT, id); !errors.Is(err, market.ErrNotSeller) {
		t.Fatalf("wrong caller: got %v", err)
	}
	if err := e.engine.CancelListing(sellerAddr, classNFT, id); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, ok, _ := e.engine.Listing(classNFT, id); ok {
		t.Fatal("listing should be gone")
	}
}

func TestAdminCancelListing(t *testing.T) {
	e := newEnv(t)
	id := e.mintAsset(1, sellerAddr)
	if err := e.engine.CreateListing(sellerAddr, classNFT, id, market.NativeCurrency, big.NewInt(100)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := e.engine.AdminCancelListing(buyerAddr, classNFT, id); !errors.Is(err, market.ErrNotOwner) {
		t.Fatalf("non-owner admin cancel: got %v", err)
	}
	if err := e.engine.AdminCancelListing(ownerAddr, classNFT, id); err != nil {
		t.Fatalf("admin cancel: %v", err)
	}
	if _, ok, _ := e.engine.Listing(classNFT, id); ok {
		t.Fatal("listing should be gone")
	}
}

func TestPurchaseNative(t *testing.T) {
	e := newEnv(t)
	if err := e.engine.UpdateFeeBps(ownerAddr, 250); err != nil {
		t.Fatalf("set fee: %v", err)
	}
	id := e.mintAsset(1, sellerAddr)
	if err := e.engine.CreateListing(sellerAddr, classNFT, id, market.NativeCurrency, big.NewInt(1_000_000)); err != nil {
		t.Fatalf("create: %v", err)
	}
	e.fundNative(buyerAddr, 1_000_000)

	if err := e.engine.Purchase(buyerAddr, classNFT, id, big.NewInt(999_999)); !errors.Is(err, market.ErrWrongAmount) {
		t.Fatalf("short tender: got %v", err)
	}
	if err := e.engine.Purchase(buyerAddr, classNFT, id, big.NewInt(1_000_000)); err != nil {
		t.Fatalf("purchase: %v", err)
	}

	if _, ok, _ := e.engine.Listing(classNFT, id); ok {
		t.Fatal("listing should be deleted after sale")
	}
	owner, err := e.registry.OwnerOf(classNFT, id)
	if err != nil || owner != buyerAddr {
		t.Fatalf("asset owner = %x (%v), want buyer", owner, err)
	}
	requireAmount(t, e.nativeBalance(sellerAddr), 975_000)
	requireAmount(t, e.nativeBalance(buyerAddr), 0)
	fees, err := e.engine.FeeTotal(market.NativeCurrency)
	if err != nil {
		t.Fatalf("fee total: %v", err)
	}
	requireAmount(t, fees, 25_000)
	if evt := e.emitter.last(market.EventTypeSaleCompleted); evt == nil {
		t.Fatal("sale event not emitted")
	} else if evt.Attributes["price"] != "1000000" {
		t.Fatalf("sale price attr = %q", evt.Attributes["price"])
	}
}

func TestPurchaseToken(t *testing.T) {
	e := newEnv(t)
	id := e.mintAsset(1, sellerAddr)
	if err := e.engine.CreateListing(sellerAddr, classNFT, id, tokenX, big.NewInt(500)); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := e.engine.Purchase(buyerAddr, classNFT, id, big.NewInt(500)); !errors.Is(err, market.ErrUnexpectedNativeTender) {
		t.Fatalf("native tender on token sale: got %v", err)
	}
	if err := e.engine.Purchase(buyerAddr, classNFT, id, nil); !errors.Is(err, market.ErrInsufficientBalance) {
		t.Fatalf("no balance: got %v", err)
	}

	if err := e.tokens.Mint(tokenX, buyerAddr, big.NewInt(500)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := e.engine.Purchase(buyerAddr, classNFT, id, nil); !errors.Is(err, market.ErrInsufficientAllowance) {
		t.Fatalf("no allowance: got %v", err)
	}
	if err := e.tokens.Approve(tokenX, buyerAddr, engineAddr, big.NewInt(500)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := e.engine.Purchase(buyerAddr, classNFT, id, nil); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	requireAmount(t, e.tokenBalance(sellerAddr), 500)
	requireAmount(t, e.tokenBalance(buyerAddr), 0)
	owner, _ := e.registry.OwnerOf(classNFT, id)
	if owner != buyerAddr {
		t.Fatal("asset should belong to buyer")
	}
}

func TestPurchaseNotListed(t *testing.T) {
	e := newEnv(t)
	if err := e.engine.Purchase(buyerAddr, classNFT, big.NewInt(9), big.NewInt(1)); !errors.Is(err, market.ErrNotListed) {
		t.Fatalf("got %v", err)
	}
}

// failingAssets makes the outbound asset transfer fail after all payments
// have been issued.
type failingAssets struct {
	market.AssetRegistry
}

func (failingAssets) Transfer(assetClass [20]byte, from, to [20]byte, instanceID *big.Int) error {
	return errors.New("asset transfer rejected")
}

func TestPurchaseUnwindsOnAssetTransferFailure(t *testing.T) {
	e := newEnv(t)
	id := e.mintAsset(1, sellerAddr)
	if err := e.engine.CreateListing(sellerAddr, classNFT, id, market.NativeCurrency, big.NewInt(1000)); err != nil {
		t.Fatalf("create: %v", err)
	}
	e.fundNative(buyerAddr, 1000)
	e.engine.SetAssets(failingAssets{AssetRegistry: e.registry})

	if err := e.engine.Purchase(buyerAddr, classNFT, id, big.NewInt(1000)); err == nil {
		t.Fatal("purchase should fail")
	}
	// The whole operation unwound: listing intact, no funds moved.
	if _, ok, _ := e.engine.Listing(classNFT, id); !ok {
		t.Fatal("listing should survive a failed purchase")
	}
	requireAmount(t, e.nativeBalance(buyerAddr), 1000)
	requireAmount(t, e.nativeBalance(sellerAddr), 0)
	requireAmount(t, e.nativeBalance(engineAddr), 0)
}

func TestAbortedPurchaseEmitsNoEvents(t *testing.T) {
	e := newEnv(t)
	if err := e.engine.UpdateFeeBps(ownerAddr, 250); err != nil {
		t.Fatalf("set fee: %v", err)
	}
	id := e.mintAsset(1, sellerAddr)
	if err := e.engine.CreateListing(sellerAddr, classNFT, id, market.NativeCurrency, big.NewInt(1000)); err != nil {
		t.Fatalf("create: %v", err)
	}
	e.fundNative(buyerAddr, 1000)
	e.engine.SetAssets(failingAssets{AssetRegistry: e.registry})

	before := len(e.emitter.emitted)
	if err := e.engine.Purchase(buyerAddr, classNFT, id, big.NewInt(1000)); err == nil {
		t.Fatal("purchase should fail")
	}
	// The fee accrual was unwound; no observer may have heard about it.
	fees, err := e.engine.FeeTotal(market.NativeCurrency)
	if err != nil {
		t.Fatalf("fee total: %v", err)
	}
	requireAmount(t, fees, 0)
	if evt := e.emitter.last(market.EventTypeFeePaid); evt != nil {
		t.Fatalf("fee payment announced for an unwound purchase: %+v", evt.Attributes)
	}
	if evt := e.emitter.last(market.EventTypeSaleCompleted); evt != nil {
		t.Fatal("sale announced for an unwound purchase")
	}
	if got := len(e.emitter.emitted); got != before {
		t.Fatalf("aborted purchase emitted %d events", got-before)
	}
}

// observingAssets records whether the listing was still visible at asset
// transfer time.
type observingAssets struct {
	market.AssetRegistry
	engine     *market.Engine
	sawListing bool
}

func (o *observingAssets) Transfer(assetClass [20]byte, from, to [20]byte, instanceID *big.Int) error {
	if _, ok, _ := o.engine.Listing(assetClass, instanceID); ok {
		o.sawListing = true
	}
	return o.AssetRegistry.Transfer(assetClass, from, to, instanceID)
}

func TestListingDeletedBeforeExternalCalls(t *testing.T) {
	e := newEnv(t)
	id := e.mintAsset(1, sellerAddr)
	if err := e.engine.CreateListing(sellerAddr, classNFT, id, market.NativeCurrency, big.NewInt(1000)); err != nil {
		t.Fatalf("create: %v", err)
	}
	e.fundNative(buyerAddr, 1000)
	observer := &observingAssets{AssetRegistry: e.registry, engine: e.engine}
	e.engine.SetAssets(observer)

	if err := e.engine.Purchase(buyerAddr, classNFT, id, big.NewInt(1000)); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if observer.sawListing {
		t.Fatal("listing was still visible during the asset transfer")
	}
}
