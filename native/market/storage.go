package market

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"marketd/core/state"
	"marketd/storage"
)

// Key prefixes for the engine's persisted records.
var (
	listingPrefix       = []byte("market/listing/")
	auctionPrefix       = []byte("market/auction/")
	pendingNativePrefix = []byte("market/pending/native/")
	pendingTokenPrefix  = []byte("market/pending/token/")
	feePrefix           = []byte("market/fees/")
	royaltyPrefix       = []byte("market/royalty/")
)

type storedListing struct {
	Seller   [20]byte
	Currency [20]byte
	Price    *big.Int
}

type storedAuction struct {
	Seller        [20]byte
	Currency      [20]byte
	StartingBid   *big.Int
	EndTime       uint64
	HighestBidder [20]byte
	HighestBid    *big.Int
}

type storedRoyaltySupport struct {
	Supported bool
}

// Store persists the engine's registries and ledgers as RLP records in a
// journaled key-value view. It satisfies the engine's state interface;
// Snapshot and RevertToSnapshot delegate to the underlying journal so one
// snapshot covers every record written through this store — and, when
// collaborator ledgers share the same KV, their writes as well.
type Store struct {
	kv *state.KV
}

// NewStore wraps the supplied journaled KV.
func NewStore(kv *state.KV) *Store {
	return &Store{kv: kv}
}

// KV exposes the underlying journaled view so collaborator ledgers can share
// the engine's snapshot domain.
func (s *Store) KV() *state.KV { return s.kv }

func prefixed(prefix []byte, parts ...[]byte) []byte {
	key := append([]byte(nil), prefix...)
	for _, part := range parts {
		key = append(key, part...)
	}
	return key
}

func (s *Store) ListingPut(key [32]byte, l *Listing) error {
	sanitized, err := SanitizeListing(l)
	if err != nil {
		return fmt.Errorf("market store: %w", err)
	}
	encoded, err := rlp.EncodeToBytes(&storedListing{
		Seller:   sanitized.Seller,
		Currency: sanitized.Currency,
		Price:    sanitized.Price,
	})
	if err != nil {
		return err
	}
	return s.kv.Put(prefixed(listingPrefix, key[:]), encoded)
}

func (s *Store) ListingGet(key [32]byte) (*Listing, bool, error) {
	data, err := s.kv.Get(prefixed(listingPrefix, key[:]))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	stored := new(storedListing)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, false, fmt.Errorf("market store: decode listing: %w", err)
	}
	return &Listing{Seller: stored.Seller, Currency: stored.Currency, Price: stored.Price}, true, nil
}

func (s *Store) ListingDelete(key [32]byte) error {
	return s.kv.Delete(prefixed(listingPrefix, key[:]))
}

func (s *Store) AuctionPut(key [32]byte, a *Auction) error {
	sanitized, err := SanitizeAuction(a)
	if err != nil {
		return fmt.Errorf("market store: %w", err)
	}
	encoded, err := rlp.EncodeToBytes(&storedAuction{
		Seller:        sanitized.Seller,
		Currency:      sanitized.Currency,
		StartingBid:   sanitized.StartingBid,
		EndTime:       uint64(sanitized.EndTime),
		HighestBidder: sanitized.HighestBidder,
		HighestBid:    sanitized.HighestBid,
	})
	if err != nil {
		return err
	}
	return s.kv.Put(prefixed(auctionPrefix, key[:]), encoded)
}

func (s *Store) AuctionGet(key [32]byte) (*Auction, bool, error) {
	data, err := s.kv.Get(prefixed(auctionPrefix, key[:]))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	stored := new(storedAuction)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, false, fmt.Errorf("market store: decode auction: %w", err)
	}
	return &Auction{
		Seller:        stored.Seller,
		Currency:      stored.Currency,
		StartingBid:   stored.StartingBid,
		EndTime:       int64(stored.EndTime),
		HighestBidder: stored.HighestBidder,
		HighestBid:    stored.HighestBid,
	}, true, nil
}

func (s *Store) AuctionDelete(key [32]byte) error {
	return s.kv.Delete(prefixed(auctionPrefix, key[:]))
}

// --- amount records ---

func (s *Store) amountGet(key []byte) (*big.Int, error) {
	data, err := s.kv.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}
	amount := new(big.Int)
	if err := rlp.DecodeBytes(data, amount); err != nil {
		return nil, fmt.Errorf("market store: decode amount: %w", err)
	}
	return amount, nil
}

func (s *Store) amountAdd(key []byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("market store: amount must be non-negative")
	}
	if amount.Sign() == 0 {
		return nil
	}
	current, err := s.amountGet(key)
	if err != nil {
		return err
	}
	encoded, err := rlp.EncodeToBytes(new(big.Int).Add(current, amount))
	if err != nil {
		return err
	}
	return s.kv.Put(key, encoded)
}

func (s *Store) amountTake(key []byte) (*big.Int, error) {
	current, err := s.amountGet(key)
	if err != nil {
		return nil, err
	}
	if current.Sign() == 0 {
		return current, nil
	}
	if err := s.kv.Delete(key); err != nil {
		return nil, err
	}
	return current, nil
}

func (s *Store) PendingNativeAdd(addr [20]byte, amount *big.Int) error {
	return s.amountAdd(prefixed(pendingNativePrefix, addr[:]), amount)
}

func (s *Store) PendingNativeGet(addr [20]byte) (*big.Int, error) {
	return s.amountGet(prefixed(pendingNativePrefix, addr[:]))
}

func (s *Store) PendingNativeTake(addr [20]byte) (*big.Int, error) {
	return s.amountTake(prefixed(pendingNativePrefix, addr[:]))
}

func (s *Store) PendingTokenAdd(token, addr [20]byte, amount *big.Int) error {
	return s.amountAdd(prefixed(pendingTokenPrefix, token[:], addr[:]), amount)
}

func (s *Store) PendingTokenGet(token, addr [20]byte) (*big.Int, error) {
	return s.amountGet(prefixed(pendingTokenPrefix, token[:], addr[:]))
}

func (s *Store) PendingTokenTake(token, addr [20]byte) (*big.Int, error) {
	return s.amountTake(prefixed(pendingTokenPrefix, token[:], addr[:]))
}

func (s *Store) FeeAdd(currency [20]byte, amount *big.Int) error {
	return s.amountAdd(prefixed(feePrefix, currency[:]), amount)
}

func (s *Store) FeeGet(currency [20]byte) (*big.Int, error) {
	return s.amountGet(prefixed(feePrefix, currency[:]))
}

func (s *Store) FeeTake(currency [20]byte) (*big.Int, error) {
	return s.amountTake(prefixed(feePrefix, currency[:]))
}

// --- royalty support cache ---

func (s *Store) RoyaltySupportGet(assetClass [20]byte) (bool, bool, error) {
	data, err := s.kv.Get(prefixed(royaltyPrefix, assetClass[:]))
	if errors.Is(err, storage.ErrNotFound) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	stored := new(storedRoyaltySupport)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return false, false, fmt.Errorf("market store: decode royalty support: %w", err)
	}
	return true, stored.Supported, nil
}

func (s *Store) RoyaltySupportPut(assetClass [20]byte, supported bool) error {
	encoded, err := rlp.EncodeToBytes(&storedRoyaltySupport{Supported: supported})
	if err != nil {
		return err
	}
	return s.kv.Put(prefixed(royaltyPrefix, assetClass[:]), encoded)
}

func (s *Store) Snapshot() int           { return s.kv.Snapshot() }
func (s *Store) RevertToSnapshot(id int) { s.kv.RevertToSnapshot(id) }
func (s *Store) DiscardJournal()         { s.kv.DiscardJournal() }
