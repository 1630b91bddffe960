package assets

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"marketd/core/state"
	"marketd/native/market"
	"marketd/storage"
)

var (
	// ErrUnknownAsset is returned when an instance has never been minted.
	ErrUnknownAsset = errors.New("assets: unknown asset instance")
	// ErrNotAssetOwner is returned when a caller acts on an asset they do
	// not own.
	ErrNotAssetOwner = errors.New("assets: caller is not the owner")
	// ErrAssetExists is returned when minting an already-minted instance.
	ErrAssetExists = errors.New("assets: instance already minted")
)

var (
	ownerPrefix    = []byte("assets/owner/")
	approvedPrefix = []byte("assets/approved/")
	royaltyPrefix  = []byte("assets/royalty/")
)

type royaltyConfig struct {
	Recipient [20]byte
	Bps       uint32
}

// Registry is an ownership registry for non-fungible asset instances,
// keyed by (asset class, instance id), with single-address transfer
// approvals and optional per-class royalty configuration. It implements the
// settlement engine's AssetRegistry and RoyaltyOracle collaborator
// protocols over the shared journaled KV.
type Registry struct {
	kv *state.KV
}

// NewRegistry creates an asset registry over the supplied KV.
func NewRegistry(kv *state.KV) *Registry {
	return &Registry{kv: kv}
}

func instanceKey(prefix []byte, class [20]byte, id *big.Int) []byte {
	key := append(append([]byte(nil), prefix...), class[:]...)
	if id != nil {
		key = append(key, id.Bytes()...)
	}
	return key
}

func classKey(prefix []byte, class [20]byte) []byte {
	return append(append([]byte(nil), prefix...), class[:]...)
}

func (r *Registry) getAddress(key []byte) ([20]byte, bool, error) {
	var addr [20]byte
	data, err := r.kv.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return addr, false, nil
	}
	if err != nil {
		return addr, false, err
	}
	if err := rlp.DecodeBytes(data, &addr); err != nil {
		return addr, false, fmt.Errorf("assets: decode address: %w", err)
	}
	return addr, true, nil
}

func (r *Registry) putAddress(key []byte, addr [20]byte) error {
	encoded, err := rlp.EncodeToBytes(addr)
	if err != nil {
		return err
	}
	return r.kv.Put(key, encoded)
}

// Mint records owner as the holder of a new asset instance.
func (r *Registry) Mint(class [20]byte, id *big.Int, owner [20]byte) error {
	if _, ok, err := r.getAddress(instanceKey(ownerPrefix, class, id)); err != nil {
		return err
	} else if ok {
		return ErrAssetExists
	}
	return r.putAddress(instanceKey(ownerPrefix, class, id), owner)
}

// OwnerOf returns the holder of an asset instance.
func (r *Registry) OwnerOf(class [20]byte, id *big.Int) ([20]byte, error) {
	owner, ok, err := r.getAddress(instanceKey(ownerPrefix, class, id))
	if err != nil {
		return owner, err
	}
	if !ok {
		return owner, ErrUnknownAsset
	}
	return owner, nil
}

// Approve grants spender the right to transfer the instance. Caller must be
// the current owner.
func (r *Registry) Approve(class [20]byte, caller [20]byte, id *big.Int, spender [20]byte) error {
	owner, err := r.OwnerOf(class, id)
	if err != nil {
		return err
	}
	if owner != caller {
		return ErrNotAssetOwner
	}
	return r.putAddress(instanceKey(approvedPrefix, class, id), spender)
}

// Approved returns the address approved to transfer the instance, or the
// zero address when none is set.
func (r *Registry) Approved(class [20]byte, id *big.Int) ([20]byte, error) {
	approved, _, err := r.getAddress(instanceKey(approvedPrefix, class, id))
	return approved, err
}

// Transfer moves the instance from from to to and clears any standing
// approval. Fails atomically if from is not the current holder.
func (r *Registry) Transfer(class [20]byte, from, to [20]byte, id *big.Int) error {
	owner, err := r.OwnerOf(class, id)
	if err != nil {
		return err
	}
	if owner != from {
		return ErrNotAssetOwner
	}
	if err := r.putAddress(instanceKey(ownerPrefix, class, id), to); err != nil {
		return err
	}
	return r.kv.Delete(instanceKey(approvedPrefix, class, id))
}

// SetRoyalty configures a royalty share for every instance of the class.
// Passing zero bps removes the configuration, making the class answer the
// capability probe negatively.
func (r *Registry) SetRoyalty(class [20]byte, recipient [20]byte, bps uint32) error {
	if bps == 0 {
		return r.kv.Delete(classKey(royaltyPrefix, class))
	}
	encoded, err := rlp.EncodeToBytes(&royaltyConfig{Recipient: recipient, Bps: bps})
	if err != nil {
		return err
	}
	return r.kv.Put(classKey(royaltyPrefix, class), encoded)
}

func (r *Registry) royalty(class [20]byte) (*royaltyConfig, bool, error) {
	data, err := r.kv.Get(classKey(royaltyPrefix, class))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	cfg := new(royaltyConfig)
	if err := rlp.DecodeBytes(data, cfg); err != nil {
		return nil, false, fmt.Errorf("assets: decode royalty config: %w", err)
	}
	return cfg, true, nil
}

// Supports answers the capability probe: only the royalty capability is
// known, and only for classes with a royalty configuration.
func (r *Registry) Supports(class [20]byte, capability uint32) (bool, error) {
	if capability != market.RoyaltyCapability {
		return false, nil
	}
	_, ok, err := r.royalty(class)
	return ok, err
}

// RoyaltyInfo reports the royalty recipient and amount for a sale of the
// instance at salePrice.
func (r *Registry) RoyaltyInfo(class [20]byte, id, salePrice *big.Int) ([20]byte, *big.Int, error) {
	cfg, ok, err := r.royalty(class)
	if err != nil {
		return [20]byte{}, nil, err
	}
	if !ok {
		return [20]byte{}, big.NewInt(0), nil
	}
	price := salePrice
	if price == nil {
		price = big.NewInt(0)
	}
	amount := new(big.Int).Mul(price, new(big.Int).SetUint64(uint64(cfg.Bps)))
	amount.Div(amount, big.NewInt(10_000))
	return cfg.Recipient, amount, nil
}
