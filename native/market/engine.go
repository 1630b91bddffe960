package market

import (
	"errors"
	"math/big"
	"time"

	"marketd/core/events"
	"marketd/core/types"
)

// MaxFeeBps caps the platform fee at 20%.
const MaxFeeBps uint32 = 2000

var (
	errNilAssets = errors.New("market engine: asset registry not configured")
	errNilBank   = errors.New("market engine: bank ledger not configured")
	errNilTokens = errors.New("market engine: token ledger not configured")
)

type engineState interface {
	ListingPut(key [32]byte, l *Listing) error
	ListingGet(key [32]byte) (*Listing, bool, error)
	ListingDelete(key [32]byte) error
	AuctionPut(key [32]byte, a *Auction) error
	AuctionGet(key [32]byte) (*Auction, bool, error)
	AuctionDelete(key [32]byte) error
	PendingNativeAdd(addr [20]byte, amount *big.Int) error
	PendingNativeGet(addr [20]byte) (*big.Int, error)
	PendingNativeTake(addr [20]byte) (*big.Int, error)
	PendingTokenAdd(token, addr [20]byte, amount *big.Int) error
	PendingTokenGet(token, addr [20]byte) (*big.Int, error)
	PendingTokenTake(token, addr [20]byte) (*big.Int, error)
	FeeAdd(currency [20]byte, amount *big.Int) error
	FeeGet(currency [20]byte) (*big.Int, error)
	FeeTake(currency [20]byte) (*big.Int, error)
	RoyaltySupportGet(assetClass [20]byte) (checked, supported bool, err error)
	RoyaltySupportPut(assetClass [20]byte, supported bool) error
	Snapshot() int
	RevertToSnapshot(int)
	DiscardJournal()
}

type marketEvent struct {
	evt *types.Event
}

func (e marketEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e marketEvent) Event() *types.Event { return e.evt }

// Engine is the escrow-and-settlement engine. It owns the listing and auction
// registries, the pending-withdrawal ledger and the fee accumulator, and
// delegates actual asset/currency movement to the configured collaborators.
//
// Execution is strictly sequential: one operation runs to completion (or
// total failure) at a time. Every mutating operation takes a state snapshot
// on entry and reverts it on failure, so a failing external transfer unwinds
// the whole operation. The reentrancy latch rejects nested calls made by
// collaborators while an operation is in flight.
type Engine struct {
	state     engineState
	assets    AssetRegistry
	bank      BankLedger
	tokens    TokenLedger
	royalties RoyaltyOracle
	emitter   events.Emitter
	nowFn     func() int64

	self         [20]byte
	owner        [20]byte
	feeRecipient [20]byte
	feeBps       uint32
	paused       bool
	entered      bool
	queued       []*types.Event
}

// NewEngine creates a settlement engine holding escrow under the self
// address, administered by owner. Fees default to zero with the owner as
// recipient; collaborators are wired via the setters.
func NewEngine(self, owner [20]byte) *Engine {
	return &Engine{
		self:         self,
		owner:        owner,
		feeRecipient: owner,
		emitter:      events.NoopEmitter{},
		nowFn:        func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetAssets configures the non-fungible asset registry.
func (e *Engine) SetAssets(assets AssetRegistry) { e.assets = assets }

// SetBank configures the native-currency ledger.
func (e *Engine) SetBank(bank BankLedger) { e.bank = bank }

// SetTokens configures the fungible-token ledger.
func (e *Engine) SetTokens(tokens TokenLedger) { e.tokens = tokens }

// SetRoyaltyOracle configures the royalty-inquiry collaborator. A nil oracle
// simply means no asset class supports royalties.
func (e *Engine) SetRoyaltyOracle(oracle RoyaltyOracle) { e.royalties = oracle }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// emit queues an event for delivery once the surrounding operation commits.
// Events queued by an aborted operation are discarded together with its state
// writes, so observers never see a notification for work that was unwound.
func (e *Engine) emit(event *types.Event) {
	if e == nil || event == nil {
		return
	}
	e.queued = append(e.queued, event)
}

func (e *Engine) flush() {
	queued := e.queued
	e.queued = nil
	if e.emitter == nil {
		return
	}
	for _, evt := range queued {
		e.emitter.Emit(marketEvent{evt: evt})
	}
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.assets == nil {
		return errNilAssets
	}
	if e.bank == nil {
		return errNilBank
	}
	if e.tokens == nil {
		return errNilTokens
	}
	return nil
}

// begin acquires the reentrancy latch. A nested call into any guarded
// operation while the latch is held fails immediately.
func (e *Engine) begin() error {
	if e.entered {
		return ErrReentrantCall
	}
	e.entered = true
	return nil
}

func (e *Engine) end() { e.entered = false }

// run executes a mutating operation under the reentrancy latch and a state
// snapshot. Any failure reverts every state write the operation made.
func (e *Engine) run(op func() error) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()
	snap := e.state.Snapshot()
	if err := op(); err != nil {
		e.state.RevertToSnapshot(snap)
		e.queued = nil
		return err
	}
	// The latch guarantees this is the outermost operation, so the journal
	// holds nothing another snapshot still depends on.
	e.state.DiscardJournal()
	e.flush()
	return nil
}

func (e *Engine) requireActive() error {
	if e.paused {
		return ErrPaused
	}
	return nil
}

func (e *Engine) requireOwner(caller [20]byte) error {
	if caller != e.owner {
		return ErrNotOwner
	}
	return nil
}

// --- Administration ---

// UpdateFeeBps sets the platform fee. Owner only; capped at MaxFeeBps.
func (e *Engine) UpdateFeeBps(caller [20]byte, bps uint32) error {
	return e.run(func() error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		if bps > MaxFeeBps {
			return ErrFeeTooHigh
		}
		e.feeBps = bps
		e.emit(NewFeeUpdatedEvent(bps, e.feeRecipient))
		return nil
	})
}

// UpdateFeeRecipient sets the address fee withdrawals are paid to. Owner only.
func (e *Engine) UpdateFeeRecipient(caller, recipient [20]byte) error {
	return e.run(func() error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		if recipient == ([20]byte{}) {
			return ErrRecipientIsZero
		}
		e.feeRecipient = recipient
		e.emit(NewFeeUpdatedEvent(e.feeBps, recipient))
		return nil
	})
}

// Pause blocks all state-mutating non-admin operations. Owner only.
// Withdrawals of escrowed user funds remain available while paused.
func (e *Engine) Pause(caller [20]byte) error {
	return e.run(func() error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		e.paused = true
		e.emit(NewPausedEvent(true))
		return nil
	})
}

// Unpause lifts a pause. Owner only.
func (e *Engine) Unpause(caller [20]byte) error {
	return e.run(func() error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		e.paused = false
		e.emit(NewPausedEvent(false))
		return nil
	})
}

// TransferOwnership hands the administrative capability to a new owner.
func (e *Engine) TransferOwnership(caller, newOwner [20]byte) error {
	return e.run(func() error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		if newOwner == ([20]byte{}) {
			return ErrRecipientIsZero
		}
		previous := e.owner
		e.owner = newOwner
		e.emit(NewOwnerTransferredEvent(previous, newOwner))
		return nil
	})
}

// --- Queries ---

// EngineAddress returns the identity under which the engine holds escrow.
func (e *Engine) EngineAddress() [20]byte { return e.self }

// Owner returns the current administrative owner.
func (e *Engine) Owner() [20]byte { return e.owner }

// Paused reports whether the pause gate is engaged.
func (e *Engine) Paused() bool { return e.paused }

// FeeBps returns the configured platform fee in basis points.
func (e *Engine) FeeBps() uint32 { return e.feeBps }

// FeeRecipient returns the address fee withdrawals are paid to.
func (e *Engine) FeeRecipient() [20]byte { return e.feeRecipient }

// Listing returns the stored listing for the asset instance, if any.
func (e *Engine) Listing(assetClass [20]byte, instanceID *big.Int) (*Listing, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	return e.state.ListingGet(ItemKey(assetClass, instanceID))
}

// Auction returns the stored auction for the asset instance, if any.
func (e *Engine) Auction(assetClass [20]byte, instanceID *big.Int) (*Auction, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	return e.state.AuctionGet(ItemKey(assetClass, instanceID))
}

// PendingNative returns the native amount awaiting withdrawal by addr.
func (e *Engine) PendingNative(addr [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.PendingNativeGet(addr)
}

// PendingToken returns the token amount awaiting withdrawal by addr.
func (e *Engine) PendingToken(token, addr [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.PendingTokenGet(token, addr)
}

// FeeTotal returns the accumulated, not yet withdrawn platform fees for the
// given currency (NativeCurrency for the native coin).
func (e *Engine) FeeTotal(currency [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.FeeGet(currency)
}
