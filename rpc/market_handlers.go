package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"marketd/native/market"
)

const (
	codeMarketInvalidParams = -32021
	codeMarketNotFound      = -32022
	codeMarketForbidden     = -32023
	codeMarketConflict      = -32024
	codeMarketInternal      = -32025
)

type itemParams struct {
	AssetClass string `json:"assetClass"`
	InstanceID string `json:"instanceId"`
}

type actorItemParams struct {
	Caller     string `json:"caller"`
	AssetClass string `json:"assetClass"`
	InstanceID string `json:"instanceId"`
}

type listingCreateParams struct {
	Seller     string `json:"seller"`
	AssetClass string `json:"assetClass"`
	InstanceID string `json:"instanceId"`
	Currency   string `json:"currency,omitempty"`
	Price      string `json:"price"`
}

type purchaseParams struct {
	Buyer      string `json:"buyer"`
	AssetClass string `json:"assetClass"`
	InstanceID string `json:"instanceId"`
	Tendered   string `json:"tendered,omitempty"`
}

type auctionCreateParams struct {
	Seller      string `json:"seller"`
	AssetClass  string `json:"assetClass"`
	InstanceID  string `json:"instanceId"`
	Currency    string `json:"currency,omitempty"`
	StartingBid string `json:"startingBid"`
	Duration    int64  `json:"duration"`
}

type bidParams struct {
	Bidder     string `json:"bidder"`
	AssetClass string `json:"assetClass"`
	InstanceID string `json:"instanceId"`
	Amount     string `json:"amount"`
	Tendered   string `json:"tendered,omitempty"`
}

type withdrawParams struct {
	Caller   string `json:"caller"`
	Currency string `json:"currency,omitempty"`
}

type feeParams struct {
	Caller string `json:"caller"`
	FeeBps uint32 `json:"feeBps"`
}

type recipientParams struct {
	Caller    string `json:"caller"`
	Recipient string `json:"recipient"`
}

type callerParams struct {
	Caller string `json:"caller"`
}

type ownershipParams struct {
	Caller   string `json:"caller"`
	NewOwner string `json:"newOwner"`
}

type pendingQueryParams struct {
	Address  string `json:"address"`
	Currency string `json:"currency,omitempty"`
}

type currencyParams struct {
	Currency string `json:"currency,omitempty"`
}

type listingJSON struct {
	AssetClass string `json:"assetClass"`
	InstanceID string `json:"instanceId"`
	Seller     string `json:"seller"`
	Currency   string `json:"currency"`
	Price      string `json:"price"`
}

type auctionJSON struct {
	AssetClass    string `json:"assetClass"`
	InstanceID    string `json:"instanceId"`
	Seller        string `json:"seller"`
	Currency      string `json:"currency"`
	StartingBid   string `json:"startingBid"`
	EndTime       int64  `json:"endTime"`
	HighestBidder string `json:"highestBidder,omitempty"`
	HighestBid    string `json:"highestBid,omitempty"`
}

type statusResult struct {
	Engine       string `json:"engine"`
	Owner        string `json:"owner"`
	FeeBps       uint32 `json:"feeBps"`
	FeeRecipient string `json:"feeRecipient"`
	Paused       bool   `json:"paused"`
}

type amountResult struct {
	Currency string `json:"currency"`
	Amount   string `json:"amount"`
}

func parseAddress(s string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "0x") {
		return addr, fmt.Errorf("address %q must be 0x-prefixed", s)
	}
	raw, err := hex.DecodeString(trimmed[2:])
	if err != nil || len(raw) != 20 {
		return addr, fmt.Errorf("address %q must be 20 hex-encoded bytes", s)
	}
	copy(addr[:], raw)
	return addr, nil
}

func formatAddress(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

// parseCurrency accepts "native" (or empty) for the native coin, otherwise a
// token address.
func parseCurrency(s string) ([20]byte, error) {
	trimmed := strings.TrimSpace(strings.ToLower(s))
	if trimmed == "" || trimmed == "native" {
		return market.NativeCurrency, nil
	}
	return parseAddress(s)
}

func formatCurrency(currency [20]byte) string {
	if currency == market.NativeCurrency {
		return "native"
	}
	return formatAddress(currency)
}

func parseInstanceID(s string) (*big.Int, error) {
	id, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok || id.Sign() < 0 {
		return nil, fmt.Errorf("instanceId %q must be a non-negative decimal", s)
	}
	return id, nil
}

func parsePositiveAmount(s string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok || amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount %q must be a positive decimal", s)
	}
	return amount, nil
}

// parseTender decodes an optional native tender. Absent means no native value
// accompanies the call.
func parseTender(s string) (*big.Int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	amount, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("tendered %q must be a non-negative decimal", s)
	}
	return amount, nil
}

func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("exactly one parameter object expected")
	}
	return json.Unmarshal(req.Params[0], out)
}

func writeInvalidParams(w http.ResponseWriter, id interface{}, err error) {
	writeError(w, http.StatusBadRequest, id, codeMarketInvalidParams, "invalid_params", err.Error())
}

// writeMarketError translates engine sentinels into RPC error codes.
func writeMarketError(w http.ResponseWriter, id interface{}, err error) {
	if err == nil {
		return
	}
	status := http.StatusInternalServerError
	code := codeMarketInternal
	message := "internal_error"
	switch {
	case errors.Is(err, market.ErrNotListed) || errors.Is(err, market.ErrAuctionNotFound):
		status = http.StatusNotFound
		code = codeMarketNotFound
		message = "not_found"
	case errors.Is(err, market.ErrNotOwner) || errors.Is(err, market.ErrNotSeller) ||
		errors.Is(err, market.ErrNotAssetOwner) || errors.Is(err, market.ErrNotAuthorized):
		status = http.StatusForbidden
		code = codeMarketForbidden
		message = "forbidden"
	case errors.Is(err, market.ErrInvalidPrice) || errors.Is(err, market.ErrInvalidDuration) ||
		errors.Is(err, market.ErrFeeTooHigh) || errors.Is(err, market.ErrRecipientIsZero):
		status = http.StatusBadRequest
		code = codeMarketInvalidParams
		message = "invalid_params"
	case errors.Is(err, market.ErrConflictingListing) || errors.Is(err, market.ErrConflictingAuction) ||
		errors.Is(err, market.ErrAuctionEnded) || errors.Is(err, market.ErrAuctionNotYetEnded) ||
		errors.Is(err, market.ErrAuctionAlreadyStarted) || errors.Is(err, market.ErrNoBidsPlaced) ||
		errors.Is(err, market.ErrPaused) || errors.Is(err, market.ErrNothingToWithdraw) ||
		errors.Is(err, market.ErrWrongAmount) || errors.Is(err, market.ErrUnexpectedNativeTender) ||
		errors.Is(err, market.ErrBidAmountMismatch) || errors.Is(err, market.ErrBidBelowStartingPrice) ||
		errors.Is(err, market.ErrBidTooLow) || errors.Is(err, market.ErrInsufficientBalance) ||
		errors.Is(err, market.ErrInsufficientAllowance) || errors.Is(err, market.ErrReentrantCall):
		status = http.StatusConflict
		code = codeMarketConflict
		message = "conflict"
	}
	writeError(w, status, id, code, message, err.Error())
}

func (s *Server) handleCreateListing(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params listingCreateParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	seller, err := parseAddress(params.Seller)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	class, err := parseAddress(params.AssetClass)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	id, err := parseInstanceID(params.InstanceID)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	currency, err := parseCurrency(params.Currency)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	price, err := parsePositiveAmount(params.Price)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	if err := s.engine.CreateListing(seller, class, id, currency, price); err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleCancelListing(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.actorItemCall(w, req, s.engine.CancelListing)
}

func (s *Server) handleAdminCancelListing(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.actorItemCall(w, req, s.engine.AdminCancelListing)
}

func (s *Server) handleSettleAuction(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.actorItemCall(w, req, s.engine.SettleAuction)
}

func (s *Server) handleCancelAuction(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.actorItemCall(w, req, s.engine.CancelAuction)
}

func (s *Server) handleAdminCancelAuction(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.actorItemCall(w, req, s.engine.AdminCancelAuction)
}

// actorItemCall handles the family of methods taking (caller, assetClass,
// instanceId) and returning only success.
func (s *Server) actorItemCall(w http.ResponseWriter, req *RPCRequest, op func([20]byte, [20]byte, *big.Int) error) {
	var params actorItemParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	class, err := parseAddress(params.AssetClass)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	id, err := parseInstanceID(params.InstanceID)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	if err := op(caller, class, id); err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params purchaseParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	buyer, err := parseAddress(params.Buyer)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	class, err := parseAddress(params.AssetClass)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	id, err := parseInstanceID(params.InstanceID)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	tendered, err := parseTender(params.Tendered)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	if err := s.engine.Purchase(buyer, class, id, tendered); err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleCreateAuction(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params auctionCreateParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	seller, err := parseAddress(params.Seller)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	class, err := parseAddress(params.AssetClass)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	id, err := parseInstanceID(params.InstanceID)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	currency, err := parseCurrency(params.Currency)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	startingBid, err := parsePositiveAmount(params.StartingBid)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	if err := s.engine.CreateAuction(seller, class, id, currency, startingBid, params.Duration); err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handlePlaceBid(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params bidParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	bidder, err := parseAddress(params.Bidder)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	class, err := parseAddress(params.AssetClass)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	id, err := parseInstanceID(params.InstanceID)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	amount, err := parsePositiveAmount(params.Amount)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	tendered, err := parseTender(params.Tendered)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	if err := s.engine.PlaceBid(bidder, class, id, amount, tendered); err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params withdrawParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	currency, err := parseCurrency(params.Currency)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	if currency == market.NativeCurrency {
		err = s.engine.WithdrawNative(caller)
	} else {
		err = s.engine.WithdrawToken(caller, currency)
	}
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleWithdrawFees(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params withdrawParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	currency, err := parseCurrency(params.Currency)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	if err := s.engine.WithdrawAccumulatedFees(caller, currency); err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params withdrawParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	currency, err := parseCurrency(params.Currency)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	if currency == market.NativeCurrency {
		err = s.engine.WithdrawStrandedNative(caller)
	} else {
		err = s.engine.WithdrawStrandedToken(caller, currency)
	}
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleSetFee(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params feeParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	if err := s.engine.UpdateFeeBps(caller, params.FeeBps); err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleSetFeeRecipient(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params recipientParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	recipient, err := parseAddress(params.Recipient)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	if err := s.engine.UpdateFeeRecipient(caller, recipient); err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.ownerCall(w, req, s.engine.Pause)
}

func (s *Server) handleUnpause(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.ownerCall(w, req, s.engine.Unpause)
}

func (s *Server) ownerCall(w http.ResponseWriter, req *RPCRequest, op func([20]byte) error) {
	var params callerParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	if err := op(caller); err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleTransferOwnership(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params ownershipParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	newOwner, err := parseAddress(params.NewOwner)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	if err := s.engine.TransferOwnership(caller, newOwner); err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, "ok")
}

func (s *Server) handleGetListing(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params itemParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	class, err := parseAddress(params.AssetClass)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	id, err := parseInstanceID(params.InstanceID)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	listing, ok, err := s.engine.Listing(class, id)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	if !ok {
		writeMarketError(w, req.ID, market.ErrNotListed)
		return
	}
	writeResult(w, req.ID, listingJSON{
		AssetClass: formatAddress(class),
		InstanceID: id.String(),
		Seller:     formatAddress(listing.Seller),
		Currency:   formatCurrency(listing.Currency),
		Price:      listing.Price.String(),
	})
}

func (s *Server) handleGetAuction(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params itemParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	class, err := parseAddress(params.AssetClass)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	id, err := parseInstanceID(params.InstanceID)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	auction, ok, err := s.engine.Auction(class, id)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	if !ok {
		writeMarketError(w, req.ID, market.ErrAuctionNotFound)
		return
	}
	result := auctionJSON{
		AssetClass:  formatAddress(class),
		InstanceID:  id.String(),
		Seller:      formatAddress(auction.Seller),
		Currency:    formatCurrency(auction.Currency),
		StartingBid: auction.StartingBid.String(),
		EndTime:     auction.EndTime,
	}
	if auction.HasBid() {
		result.HighestBidder = formatAddress(auction.HighestBidder)
		result.HighestBid = auction.HighestBid.String()
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleGetPending(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params pendingQueryParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	currency, err := parseCurrency(params.Currency)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	var amount *big.Int
	if currency == market.NativeCurrency {
		amount, err = s.engine.PendingNative(addr)
	} else {
		amount, err = s.engine.PendingToken(currency, addr)
	}
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, amountResult{Currency: formatCurrency(currency), Amount: amount.String()})
}

func (s *Server) handleGetFees(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params currencyParams
	if err := decodeParams(req, &params); err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	currency, err := parseCurrency(params.Currency)
	if err != nil {
		writeInvalidParams(w, req.ID, err)
		return
	}
	amount, err := s.engine.FeeTotal(currency)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, amountResult{Currency: formatCurrency(currency), Amount: amount.String()})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	writeResult(w, req.ID, statusResult{
		Engine:       formatAddress(s.engine.EngineAddress()),
		Owner:        formatAddress(s.engine.Owner()),
		FeeBps:       s.engine.FeeBps(),
		FeeRecipient: formatAddress(s.engine.FeeRecipient()),
		Paused:       s.engine.Paused(),
	})
}
