package market

import "math/big"

// CreateListing stores a fixed-price sale offer for an asset instance. The
// caller must own the asset and must have approved the engine to transfer it.
func (e *Engine) CreateListing(caller, assetClass [20]byte, instanceID *big.Int, currency [20]byte, price *big.Int) error {
	return e.run(func() error {
		if err := e.requireActive(); err != nil {
			return err
		}
		if price == nil || price.Sign() <= 0 {
			return ErrInvalidPrice
		}
		key := ItemKey(assetClass, instanceID)
		if _, ok, err := e.state.AuctionGet(key); err != nil {
			return err
		} else if ok {
			return ErrConflictingAuction
		}
		if err := e.requireSellable(caller, assetClass, instanceID); err != nil {
			return err
		}
		listing := &Listing{Seller: caller, Currency: currency, Price: cloneBigInt(price)}
		if err := e.state.ListingPut(key, listing); err != nil {
			return err
		}
		e.emit(NewListingCreatedEvent(assetClass, instanceID, listing))
		return nil
	})
}

// CancelListing removes the caller's listing for the asset instance.
func (e *Engine) CancelListing(caller, assetClass [20]byte, instanceID *big.Int) error {
	return e.run(func() error {
		if err := e.requireActive(); err != nil {
			return err
		}
		return e.cancelListing(caller, assetClass, instanceID, false)
	})
}

// AdminCancelListing removes any listing. Owner only; not blocked by pause.
func (e *Engine) AdminCancelListing(caller, assetClass [20]byte, instanceID *big.Int) error {
	return e.run(func() error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		return e.cancelListing(caller, assetClass, instanceID, true)
	})
}

func (e *Engine) cancelListing(caller, assetClass [20]byte, instanceID *big.Int, admin bool) error {
	key := ItemKey(assetClass, instanceID)
	listing, ok, err := e.state.ListingGet(key)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotListed
	}
	if !admin && listing.Seller != caller {
		return ErrNotSeller
	}
	if err := e.state.ListingDelete(key); err != nil {
		return err
	}
	e.emit(NewListingCancelledEvent(assetClass, instanceID, listing))
	return nil
}

// Purchase buys a listed asset at its asking price. For native-currency
// listings the tendered amount must equal the price exactly; for token
// listings no native tender is accepted and the price is pulled from the
// buyer's token allowance. The listing entry is deleted before any payment
// or asset transfer is issued, so a re-entrant observer can never see a
// stale active listing.
func (e *Engine) Purchase(caller, assetClass [20]byte, instanceID *big.Int, tendered *big.Int) error {
	return e.run(func() error {
		if err := e.requireActive(); err != nil {
			return err
		}
		key := ItemKey(assetClass, instanceID)
		listing, ok, err := e.state.ListingGet(key)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotListed
		}
		price := listing.Price
		if listing.Currency == NativeCurrency {
			if tendered == nil || tendered.Cmp(price) != 0 {
				return ErrWrongAmount
			}
			if err := e.acceptNative(caller, tendered); err != nil {
				return err
			}
		} else {
			if tendered != nil && tendered.Sign() > 0 {
				return ErrUnexpectedNativeTender
			}
			if err := e.checkTokenFunds(listing.Currency, caller, price); err != nil {
				return err
			}
		}
		if err := e.state.ListingDelete(key); err != nil {
			return err
		}
		if listing.Currency != NativeCurrency {
			if err := e.tokens.TransferFrom(listing.Currency, caller, e.self, price); err != nil {
				return err
			}
		}
		if err := e.distribute(assetClass, instanceID, listing.Seller, listing.Currency, price); err != nil {
			return err
		}
		if err := e.assets.Transfer(assetClass, listing.Seller, caller, instanceID); err != nil {
			return err
		}
		e.emit(NewSaleCompletedEvent(assetClass, instanceID, listing.Seller, caller, listing.Currency, price))
		return nil
	})
}

// requireSellable checks asset ownership and transfer approval for the caller.
func (e *Engine) requireSellable(caller, assetClass [20]byte, instanceID *big.Int) error {
	owner, err := e.assets.OwnerOf(assetClass, instanceID)
	if err != nil {
		return err
	}
	if owner != caller {
		return ErrNotAssetOwner
	}
	approved, err := e.assets.Approved(assetClass, instanceID)
	if err != nil {
		return err
	}
	if approved != e.self {
		return ErrNotAuthorized
	}
	return nil
}

// acceptNative takes the tendered native amount into engine custody.
func (e *Engine) acceptNative(from [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	return e.bank.Transfer(from, e.self, amount)
}

// checkTokenFunds surfaces the typed balance/allowance failures before any
// state is touched.
func (e *Engine) checkTokenFunds(token, owner [20]byte, amount *big.Int) error {
	balance, err := e.tokens.BalanceOf(token, owner)
	if err != nil {
		return err
	}
	if balance == nil || balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	allowance, err := e.tokens.Allowance(token, owner, e.self)
	if err != nil {
		return err
	}
	if allowance == nil || allowance.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	return nil
}
