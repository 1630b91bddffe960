package market

import (
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// NativeCurrency is the sentinel currency identifier for the chain's native
// coin. Any non-zero value is interpreted as a fungible token address.
var NativeCurrency = [20]byte{}

// Listing is a standing fixed-price sale offer for a single asset instance.
// A listing with a zero price is absent; there is no separate existence flag.
type Listing struct {
	Seller   [20]byte
	Currency [20]byte
	Price    *big.Int
}

// Active reports whether the listing represents a live offer.
func (l *Listing) Active() bool {
	return l != nil && l.Price != nil && l.Price.Sign() > 0
}

// Clone returns a deep copy so callers can mutate the copy without affecting
// the stored instance.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	clone := *l
	if l.Price != nil {
		clone.Price = new(big.Int).Set(l.Price)
	} else {
		clone.Price = big.NewInt(0)
	}
	return &clone
}

// Auction is a standing offer to sell a single asset instance to the highest
// bidder before a deadline. An auction with EndTime == 0 is absent. A zero
// HighestBidder means no bid has been accepted yet.
type Auction struct {
	Seller        [20]byte
	Currency      [20]byte
	StartingBid   *big.Int
	EndTime       int64
	HighestBidder [20]byte
	HighestBid    *big.Int
}

// Active reports whether the auction entry exists.
func (a *Auction) Active() bool {
	return a != nil && a.EndTime != 0
}

// HasBid reports whether at least one bid has been accepted.
func (a *Auction) HasBid() bool {
	return a != nil && a.HighestBidder != ([20]byte{})
}

// Clone returns a deep copy of the auction.
func (a *Auction) Clone() *Auction {
	if a == nil {
		return nil
	}
	clone := *a
	if a.StartingBid != nil {
		clone.StartingBid = new(big.Int).Set(a.StartingBid)
	} else {
		clone.StartingBid = big.NewInt(0)
	}
	if a.HighestBid != nil {
		clone.HighestBid = new(big.Int).Set(a.HighestBid)
	} else {
		clone.HighestBid = big.NewInt(0)
	}
	return &clone
}

// SanitizeListing validates a listing prior to persistence, returning a clone
// with non-nil amounts. The original value is not mutated.
func SanitizeListing(l *Listing) (*Listing, error) {
	if l == nil {
		return nil, fmt.Errorf("nil listing")
	}
	clone := l.Clone()
	if clone.Price.Sign() <= 0 {
		return nil, fmt.Errorf("listing price must be positive")
	}
	if clone.Seller == ([20]byte{}) {
		return nil, fmt.Errorf("listing seller required")
	}
	return clone, nil
}

// SanitizeAuction validates an auction prior to persistence, returning a
// clone with non-nil amounts. The original value is not mutated.
func SanitizeAuction(a *Auction) (*Auction, error) {
	if a == nil {
		return nil, fmt.Errorf("nil auction")
	}
	clone := a.Clone()
	if clone.EndTime <= 0 {
		return nil, fmt.Errorf("auction end time required")
	}
	if clone.StartingBid.Sign() <= 0 {
		return nil, fmt.Errorf("auction starting bid must be positive")
	}
	if clone.Seller == ([20]byte{}) {
		return nil, fmt.Errorf("auction seller required")
	}
	if clone.HasBid() && clone.HighestBid.Sign() <= 0 {
		return nil, fmt.Errorf("auction highest bid must be positive")
	}
	return clone, nil
}

// ItemKey derives the registry key for an asset instance. Listings and
// auctions share the key space, which is what lets creation enforce the
// listing/auction mutual exclusion cheaply.
func ItemKey(assetClass [20]byte, instanceID *big.Int) [32]byte {
	id := instanceID
	if id == nil {
		id = big.NewInt(0)
	}
	return [32]byte(ethcrypto.Keccak256Hash(assetClass[:], id.Bytes()))
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
