package market

import "errors"

// Validation failures.
var (
	ErrInvalidPrice           = errors.New("market: price must be positive")
	ErrInvalidDuration        = errors.New("market: duration must be positive")
	ErrWrongAmount            = errors.New("market: tendered amount must equal price")
	ErrUnexpectedNativeTender = errors.New("market: native tender not accepted for token sale")
	ErrBidAmountMismatch      = errors.New("market: tendered amount must equal bid")
	ErrBidBelowStartingPrice  = errors.New("market: bid below starting price")
	ErrBidTooLow              = errors.New("market: bid not above current highest")
)

// Authorization failures.
var (
	ErrNotOwner      = errors.New("market: caller is not the marketplace owner")
	ErrNotSeller     = errors.New("market: caller is not the seller")
	ErrNotAssetOwner = errors.New("market: caller does not own the asset")
	ErrNotAuthorized = errors.New("market: marketplace not approved to transfer the asset")
)

// State-consistency failures.
var (
	ErrNotListed             = errors.New("market: item not listed")
	ErrConflictingAuction    = errors.New("market: auction exists for item")
	ErrConflictingListing    = errors.New("market: listing exists for item")
	ErrAuctionNotFound       = errors.New("market: auction not found")
	ErrAuctionEnded          = errors.New("market: auction has ended")
	ErrAuctionNotYetEnded    = errors.New("market: auction has not ended")
	ErrAuctionAlreadyStarted = errors.New("market: auction already has bids")
	ErrNoBidsPlaced          = errors.New("market: no bids placed")
)

// Funds failures.
var (
	ErrInsufficientBalance   = errors.New("market: insufficient token balance")
	ErrInsufficientAllowance = errors.New("market: insufficient token allowance")
	ErrNothingToWithdraw     = errors.New("market: nothing to withdraw")
)

// Policy failures.
var (
	ErrFeeTooHigh      = errors.New("market: fee exceeds maximum basis points")
	ErrRecipientIsZero = errors.New("market: recipient is the zero address")
)

// Gate failures.
var (
	ErrPaused        = errors.New("market: contract paused")
	ErrReentrantCall = errors.New("market: reentrant call")
)

var errNilState = errors.New("market engine: state not configured")
