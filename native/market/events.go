package market

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"marketd/core/types"
)

const (
	EventTypeListingCreated   = "market.listing.created"
	EventTypeListingCancelled = "market.listing.cancelled"
	EventTypeSaleCompleted    = "market.sale.completed"
	EventTypeAuctionCreated   = "market.auction.created"
	EventTypeBidAccepted      = "market.bid.accepted"
	EventTypeAuctionSettled   = "market.auction.settled"
	EventTypeAuctionCancelled = "market.auction.cancelled"
	EventTypeWithdrawal       = "market.withdrawal"
	EventTypeFeePaid          = "market.fee.paid"
	EventTypeRoyaltyPaid      = "market.royalty.paid"
	EventTypeFeeUpdated       = "market.fee.updated"
	EventTypePaused           = "market.paused"
	EventTypeUnpaused         = "market.unpaused"
	EventTypeOwnerTransferred = "market.owner.transferred"
)

// Withdrawal kinds carried on EventTypeWithdrawal.
const (
	WithdrawalPending  = "pending"
	WithdrawalFees     = "fees"
	WithdrawalStranded = "stranded"
)

func formatAddress(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

func formatCurrency(currency [20]byte) string {
	if currency == NativeCurrency {
		return "native"
	}
	return formatAddress(currency)
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func formatInstance(instanceID *big.Int) string {
	return formatAmount(instanceID)
}

func newItemEvent(eventType string, assetClass [20]byte, instanceID *big.Int) *types.Event {
	return &types.Event{Type: eventType, Attributes: map[string]string{
		"assetClass": formatAddress(assetClass),
		"instanceId": formatInstance(instanceID),
	}}
}

// NewListingCreatedEvent returns the canonical payload for a new listing.
func NewListingCreatedEvent(assetClass [20]byte, instanceID *big.Int, l *Listing) *types.Event {
	evt := newItemEvent(EventTypeListingCreated, assetClass, instanceID)
	if l != nil {
		evt.Attributes["seller"] = formatAddress(l.Seller)
		evt.Attributes["currency"] = formatCurrency(l.Currency)
		evt.Attributes["price"] = formatAmount(l.Price)
	}
	return evt
}

// NewListingCancelledEvent returns the payload emitted when a listing is
// removed without a sale.
func NewListingCancelledEvent(assetClass [20]byte, instanceID *big.Int, l *Listing) *types.Event {
	evt := newItemEvent(EventTypeListingCancelled, assetClass, instanceID)
	if l != nil {
		evt.Attributes["seller"] = formatAddress(l.Seller)
	}
	return evt
}

// NewSaleCompletedEvent returns the payload for a completed fixed-price sale.
func NewSaleCompletedEvent(assetClass [20]byte, instanceID *big.Int, seller, buyer [20]byte, currency [20]byte, price *big.Int) *types.Event {
	evt := newItemEvent(EventTypeSaleCompleted, assetClass, instanceID)
	evt.Attributes["seller"] = formatAddress(seller)
	evt.Attributes["buyer"] = formatAddress(buyer)
	evt.Attributes["currency"] = formatCurrency(currency)
	evt.Attributes["price"] = formatAmount(price)
	return evt
}

// NewAuctionCreatedEvent returns the payload for a newly opened auction.
func NewAuctionCreatedEvent(assetClass [20]byte, instanceID *big.Int, a *Auction) *types.Event {
	evt := newItemEvent(EventTypeAuctionCreated, assetClass, instanceID)
	if a != nil {
		evt.Attributes["seller"] = formatAddress(a.Seller)
		evt.Attributes["currency"] = formatCurrency(a.Currency)
		evt.Attributes["startingBid"] = formatAmount(a.StartingBid)
		evt.Attributes["endTime"] = strconv.FormatInt(a.EndTime, 10)
	}
	return evt
}

// NewBidAcceptedEvent returns the payload for an accepted bid.
func NewBidAcceptedEvent(assetClass [20]byte, instanceID *big.Int, bidder [20]byte, a *Auction) *types.Event {
	evt := newItemEvent(EventTypeBidAccepted, assetClass, instanceID)
	evt.Attributes["bidder"] = formatAddress(bidder)
	if a != nil {
		evt.Attributes["amount"] = formatAmount(a.HighestBid)
		evt.Attributes["currency"] = formatCurrency(a.Currency)
	}
	return evt
}

// NewAuctionSettledEvent returns the payload emitted when an ended auction
// settles to its highest bidder.
func NewAuctionSettledEvent(assetClass [20]byte, instanceID *big.Int, a *Auction) *types.Event {
	evt := newItemEvent(EventTypeAuctionSettled, assetClass, instanceID)
	if a != nil {
		evt.Attributes["seller"] = formatAddress(a.Seller)
		evt.Attributes["winner"] = formatAddress(a.HighestBidder)
		evt.Attributes["currency"] = formatCurrency(a.Currency)
		evt.Attributes["amount"] = formatAmount(a.HighestBid)
	}
	return evt
}

// NewAuctionCancelledEvent returns the payload emitted when an auction is
// removed without settling.
func NewAuctionCancelledEvent(assetClass [20]byte, instanceID *big.Int, a *Auction) *types.Event {
	evt := newItemEvent(EventTypeAuctionCancelled, assetClass, instanceID)
	if a != nil {
		evt.Attributes["seller"] = formatAddress(a.Seller)
		if a.HasBid() {
			evt.Attributes["refundedBidder"] = formatAddress(a.HighestBidder)
			evt.Attributes["refundedAmount"] = formatAmount(a.HighestBid)
		}
	}
	return evt
}

// NewWithdrawalEvent returns the payload for a completed withdrawal. Kind is
// one of the Withdrawal* constants.
func NewWithdrawalEvent(to [20]byte, currency [20]byte, amount *big.Int, kind string) *types.Event {
	return &types.Event{Type: EventTypeWithdrawal, Attributes: map[string]string{
		"to":       formatAddress(to),
		"currency": formatCurrency(currency),
		"amount":   formatAmount(amount),
		"kind":     kind,
	}}
}

// NewFeePaidEvent returns the payload emitted when a settlement accrues a
// platform fee.
func NewFeePaidEvent(assetClass [20]byte, instanceID *big.Int, currency [20]byte, amount *big.Int) *types.Event {
	evt := newItemEvent(EventTypeFeePaid, assetClass, instanceID)
	evt.Attributes["currency"] = formatCurrency(currency)
	evt.Attributes["amount"] = formatAmount(amount)
	return evt
}

// NewRoyaltyPaidEvent returns the payload emitted when a settlement pays a
// royalty.
func NewRoyaltyPaidEvent(assetClass [20]byte, instanceID *big.Int, recipient [20]byte, currency [20]byte, amount *big.Int) *types.Event {
	evt := newItemEvent(EventTypeRoyaltyPaid, assetClass, instanceID)
	evt.Attributes["recipient"] = formatAddress(recipient)
	evt.Attributes["currency"] = formatCurrency(currency)
	evt.Attributes["amount"] = formatAmount(amount)
	return evt
}

// NewFeeUpdatedEvent returns the payload emitted when the fee configuration
// changes.
func NewFeeUpdatedEvent(bps uint32, recipient [20]byte) *types.Event {
	return &types.Event{Type: EventTypeFeeUpdated, Attributes: map[string]string{
		"feeBps":    strconv.FormatUint(uint64(bps), 10),
		"recipient": formatAddress(recipient),
	}}
}

// NewPausedEvent returns the pause/unpause payload.
func NewPausedEvent(paused bool) *types.Event {
	eventType := EventTypeUnpaused
	if paused {
		eventType = EventTypePaused
	}
	return &types.Event{Type: eventType, Attributes: map[string]string{}}
}

// NewOwnerTransferredEvent returns the payload emitted when the
// administrative capability changes hands.
func NewOwnerTransferredEvent(previous, next [20]byte) *types.Event {
	return &types.Event{Type: EventTypeOwnerTransferred, Attributes: map[string]string{
		"previousOwner": formatAddress(previous),
		"newOwner":      formatAddress(next),
	}}
}
