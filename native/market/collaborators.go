package market

import "math/big"

// RoyaltyCapability is the capability identifier probed on an asset class to
// decide whether it answers royalty inquiries (ERC-2981 interface id).
const RoyaltyCapability uint32 = 0x2a55205a

// AssetRegistry is the ownership protocol for non-fungible assets. The engine
// never holds the assets themselves; it validates ownership and approval and
// instructs transfers. Transfer must fail atomically, leaving no partial
// effect.
type AssetRegistry interface {
	OwnerOf(assetClass [20]byte, instanceID *big.Int) ([20]byte, error)
	Approved(assetClass [20]byte, instanceID *big.Int) ([20]byte, error)
	Transfer(assetClass [20]byte, from, to [20]byte, instanceID *big.Int) error
}

// RoyaltyOracle exposes the optional royalty-inquiry capability of an asset
// class. Supports may fail or abstain; the engine folds failures into
// "unsupported". RoyaltyInfo may fail; the engine folds failures into a zero
// royalty.
type RoyaltyOracle interface {
	Supports(assetClass [20]byte, capability uint32) (bool, error)
	RoyaltyInfo(assetClass [20]byte, instanceID, salePrice *big.Int) (recipient [20]byte, amount *big.Int, err error)
}

// BankLedger moves native currency between identities. The engine holds
// escrowed native funds under its own address and pushes payouts from it.
type BankLedger interface {
	BalanceOf(addr [20]byte) (*big.Int, error)
	Transfer(from, to [20]byte, amount *big.Int) error
}

// TokenLedger is the fungible-token transfer protocol. TransferFrom spends
// the allowance the owner granted to the engine; Transfer spends the engine's
// own balance. Both must fail the whole transfer on any irregularity rather
// than report partial success.
type TokenLedger interface {
	BalanceOf(token, addr [20]byte) (*big.Int, error)
	Allowance(token, owner, spender [20]byte) (*big.Int, error)
	TransferFrom(token, from, to [20]byte, amount *big.Int) error
	Transfer(token, to [20]byte, amount *big.Int) error
}
