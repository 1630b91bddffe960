package market

import "math/big"

// CreateAuction opens a timed ascending auction for an asset instance. The
// caller must own the asset and must have approved the engine to transfer
// it. The auction ends at now + duration; expiry is evaluated lazily by the
// operations that inspect it, there is no background timer.
func (e *Engine) CreateAuction(caller, assetClass [20]byte, instanceID *big.Int, currency [20]byte, startingBid *big.Int, duration int64) error {
	return e.run(func() error {
		if err := e.requireActive(); err != nil {
			return err
		}
		if startingBid == nil || startingBid.Sign() <= 0 {
			return ErrInvalidPrice
		}
		if duration <= 0 {
			return ErrInvalidDuration
		}
		key := ItemKey(assetClass, instanceID)
		if _, ok, err := e.state.ListingGet(key); err != nil {
			return err
		} else if ok {
			return ErrConflictingListing
		}
		if _, ok, err := e.state.AuctionGet(key); err != nil {
			return err
		} else if ok {
			return ErrConflictingAuction
		}
		if err := e.requireSellable(caller, assetClass, instanceID); err != nil {
			return err
		}
		auction := &Auction{
			Seller:      caller,
			Currency:    currency,
			StartingBid: cloneBigInt(startingBid),
			EndTime:     e.now() + duration,
			HighestBid:  big.NewInt(0),
		}
		if err := e.state.AuctionPut(key, auction); err != nil {
			return err
		}
		e.emit(NewAuctionCreatedEvent(assetClass, instanceID, auction))
		return nil
	})
}

// PlaceBid offers amount for the auctioned asset. The first bid must meet
// the starting bid; later bids must strictly exceed the current highest —
// any strictly greater amount qualifies, there is no minimum increment. For
// native-currency auctions the tendered amount must equal the bid; for token
// auctions no native tender is accepted and the bid is pulled from the
// bidder's allowance. A superseded bidder's amount accrues to their pending
// withdrawal balance.
func (e *Engine) PlaceBid(caller, assetClass [20]byte, instanceID *big.Int, amount, tendered *big.Int) error {
	return e.run(func() error {
		if err := e.requireActive(); err != nil {
			return err
		}
		key := ItemKey(assetClass, instanceID)
		auction, ok, err := e.state.AuctionGet(key)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAuctionNotFound
		}
		if e.now() >= auction.EndTime {
			return ErrAuctionEnded
		}
		bid := cloneBigInt(amount)
		if auction.Currency == NativeCurrency {
			if tendered == nil || tendered.Cmp(bid) != 0 {
				return ErrBidAmountMismatch
			}
		} else if tendered != nil && tendered.Sign() > 0 {
			return ErrUnexpectedNativeTender
		}
		if !auction.HasBid() {
			if bid.Cmp(auction.StartingBid) < 0 {
				return ErrBidBelowStartingPrice
			}
		} else if bid.Cmp(auction.HighestBid) <= 0 {
			return ErrBidTooLow
		}
		if auction.Currency == NativeCurrency {
			if err := e.acceptNative(caller, tendered); err != nil {
				return err
			}
		} else {
			if err := e.checkTokenFunds(auction.Currency, caller, bid); err != nil {
				return err
			}
		}
		// The superseded bid becomes a pending refund. Additive, so several
		// refunds for the same identity accumulate.
		if auction.HasBid() {
			if err := e.accruePending(auction.Currency, auction.HighestBidder, auction.HighestBid); err != nil {
				return err
			}
		}
		if auction.Currency != NativeCurrency {
			if err := e.tokens.TransferFrom(auction.Currency, caller, e.self, bid); err != nil {
				return err
			}
		}
		auction.HighestBidder = caller
		auction.HighestBid = bid
		if err := e.state.AuctionPut(key, auction); err != nil {
			return err
		}
		e.emit(NewBidAcceptedEvent(assetClass, instanceID, caller, auction))
		return nil
	})
}

// SettleAuction concludes an ended auction: the asset moves from the seller
// to the highest bidder and the winning bid is distributed. Anyone may
// settle. The auction entry is deleted before any payment or asset transfer
// is issued.
func (e *Engine) SettleAuction(caller, assetClass [20]byte, instanceID *big.Int) error {
	return e.run(func() error {
		if err := e.requireActive(); err != nil {
			return err
		}
		key := ItemKey(assetClass, instanceID)
		auction, ok, err := e.state.AuctionGet(key)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAuctionNotFound
		}
		if e.now() < auction.EndTime {
			return ErrAuctionNotYetEnded
		}
		if !auction.HasBid() {
			return ErrNoBidsPlaced
		}
		if err := e.state.AuctionDelete(key); err != nil {
			return err
		}
		if err := e.distribute(assetClass, instanceID, auction.Seller, auction.Currency, auction.HighestBid); err != nil {
			return err
		}
		if err := e.assets.Transfer(assetClass, auction.Seller, auction.HighestBidder, instanceID); err != nil {
			return err
		}
		e.emit(NewAuctionSettledEvent(assetClass, instanceID, auction))
		return nil
	})
}

// CancelAuction removes a bidless auction. Seller only; once a bid has been
// accepted the auction can only conclude by settlement or admin cancel.
func (e *Engine) CancelAuction(caller, assetClass [20]byte, instanceID *big.Int) error {
	return e.run(func() error {
		if err := e.requireActive(); err != nil {
			return err
		}
		key := ItemKey(assetClass, instanceID)
		auction, ok, err := e.state.AuctionGet(key)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAuctionNotFound
		}
		if auction.Seller != caller {
			return ErrNotSeller
		}
		if auction.HasBid() {
			return ErrAuctionAlreadyStarted
		}
		if err := e.state.AuctionDelete(key); err != nil {
			return err
		}
		e.emit(NewAuctionCancelledEvent(assetClass, instanceID, auction))
		return nil
	})
}

// AdminCancelAuction removes any auction. Owner only; not blocked by pause.
// A standing highest bid is refunded through the pending-withdrawal ledger;
// no asset movement occurs.
func (e *Engine) AdminCancelAuction(caller, assetClass [20]byte, instanceID *big.Int) error {
	return e.run(func() error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		key := ItemKey(assetClass, instanceID)
		auction, ok, err := e.state.AuctionGet(key)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAuctionNotFound
		}
		if auction.HasBid() {
			if err := e.accruePending(auction.Currency, auction.HighestBidder, auction.HighestBid); err != nil {
				return err
			}
		}
		if err := e.state.AuctionDelete(key); err != nil {
			return err
		}
		e.emit(NewAuctionCancelledEvent(assetClass, instanceID, auction))
		return nil
	})
}

func (e *Engine) accruePending(currency, addr [20]byte, amount *big.Int) error {
	if currency == NativeCurrency {
		return e.state.PendingNativeAdd(addr, amount)
	}
	return e.state.PendingTokenAdd(currency, addr, amount)
}
