package market_test

import (
	"math/big"
	"testing"

	"marketd/core/state"
	"marketd/native/market"
	"marketd/storage"
)

func newStore(t *testing.T) *market.Store {
	t.Helper()
	return market.NewStore(state.NewKV(storage.NewMemDB()))
}

func TestStoreListingRoundTrip(t *testing.T) {
	s := newStore(t)
	key := market.ItemKey(classNFT, big.NewInt(1))

	if _, ok, err := s.ListingGet(key); err != nil || ok {
		t.Fatalf("empty store: ok=%v err=%v", ok, err)
	}
	listing := &market.Listing{Seller: sellerAddr, Currency: tokenX, Price: big.NewInt(12345)}
	if err := s.ListingPut(key, listing); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := s.ListingGet(key)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.Seller != sellerAddr || got.Currency != tokenX {
		t.Fatal("listing identity fields corrupted")
	}
	requireAmount(t, got.Price, 12345)
	if err := s.ListingDelete(key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := s.ListingGet(key); ok {
		t.Fatal("listing should be gone")
	}
}

func TestStoreAuctionRoundTrip(t *testing.T) {
	s := newStore(t)
	key := market.ItemKey(classNFT, big.NewInt(2))
	auction := &market.Auction{
		Seller:        sellerAddr,
		Currency:      market.NativeCurrency,
		StartingBid:   big.NewInt(500),
		EndTime:       1_700_003_600,
		HighestBidder: bidderA,
		HighestBid:    big.NewInt(750),
	}
	if err := s.AuctionPut(key, auction); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := s.AuctionGet(key)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.EndTime != auction.EndTime {
		t.Fatalf("end time = %d, want %d", got.EndTime, auction.EndTime)
	}
	if got.HighestBidder != bidderA || !got.HasBid() {
		t.Fatal("highest bid fields corrupted")
	}
	requireAmount(t, got.StartingBid, 500)
	requireAmount(t, got.HighestBid, 750)
}

func TestStoreRejectsInvalidRecords(t *testing.T) {
	s := newStore(t)
	key := market.ItemKey(classNFT, big.NewInt(3))
	if err := s.ListingPut(key, &market.Listing{Seller: sellerAddr, Price: big.NewInt(0)}); err == nil {
		t.Fatal("zero-price listing should be rejected")
	}
	if err := s.AuctionPut(key, &market.Auction{Seller: sellerAddr, StartingBid: big.NewInt(100)}); err == nil {
		t.Fatal("auction without an end time should be rejected")
	}
}

func TestStoreAmountAccumulators(t *testing.T) {
	s := newStore(t)

	if err := s.PendingNativeAdd(bidderA, big.NewInt(100)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.PendingNativeAdd(bidderA, big.NewInt(50)); err != nil {
		t.Fatalf("add: %v", err)
	}
	got, err := s.PendingNativeGet(bidderA)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	requireAmount(t, got, 150)

	taken, err := s.PendingNativeTake(bidderA)
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	requireAmount(t, taken, 150)
	got, _ = s.PendingNativeGet(bidderA)
	requireAmount(t, got, 0)

	if err := s.PendingNativeAdd(bidderA, big.NewInt(-1)); err == nil {
		t.Fatal("negative amount should be rejected")
	}
	// Adding zero is a no-op, not an error.
	if err := s.FeeAdd(market.NativeCurrency, big.NewInt(0)); err != nil {
		t.Fatalf("zero add: %v", err)
	}
	fees, _ := s.FeeGet(market.NativeCurrency)
	requireAmount(t, fees, 0)

	if err := s.PendingTokenAdd(tokenX, bidderA, big.NewInt(7)); err != nil {
		t.Fatalf("token add: %v", err)
	}
	taken, err = s.PendingTokenTake(tokenX, bidderA)
	if err != nil {
		t.Fatalf("token take: %v", err)
	}
	requireAmount(t, taken, 7)
}

func TestStoreRoyaltySupportCache(t *testing.T) {
	s := newStore(t)
	checked, _, err := s.RoyaltySupportGet(classNFT)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if checked {
		t.Fatal("unprobed class should read as unchecked")
	}
	if err := s.RoyaltySupportPut(classNFT, false); err != nil {
		t.Fatalf("put: %v", err)
	}
	checked, supported, err := s.RoyaltySupportGet(classNFT)
	if err != nil || !checked || supported {
		t.Fatalf("cached negative answer: checked=%v supported=%v err=%v", checked, supported, err)
	}
}

func TestStoreSnapshotRevert(t *testing.T) {
	s := newStore(t)
	key := market.ItemKey(classNFT, big.NewInt(4))
	if err := s.ListingPut(key, &market.Listing{Seller: sellerAddr, Price: big.NewInt(100)}); err != nil {
		t.Fatalf("put: %v", err)
	}
	snap := s.Snapshot()
	if err := s.ListingDelete(key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.PendingNativeAdd(bidderA, big.NewInt(42)); err != nil {
		t.Fatalf("add: %v", err)
	}
	s.RevertToSnapshot(snap)

	if _, ok, _ := s.ListingGet(key); !ok {
		t.Fatal("revert should restore the deleted listing")
	}
	pending, _ := s.PendingNativeGet(bidderA)
	requireAmount(t, pending, 0)
}
