package state

import (
	"fmt"

	"marketd/storage"
)

// journalEntry remembers the value a key held before a write so the write can
// be undone by RevertToSnapshot.
type journalEntry struct {
	key     string
	prev    []byte
	existed bool
}

// KV is a journaled view over a storage.Database. Writes are applied to the
// backing store immediately; every write records the previous value so a
// whole operation can be reverted if a later step fails. Snapshot/Revert
// follow the go-ethereum StateDB convention: Snapshot returns a marker and
// RevertToSnapshot undoes every write made after that marker, newest first.
type KV struct {
	db      storage.Database
	journal []journalEntry
}

// NewKV wraps the supplied database in a journaled view.
func NewKV(db storage.Database) *KV {
	return &KV{db: db}
}

func (kv *KV) record(key []byte) error {
	prev, err := kv.db.Get(key)
	if err != nil && err != storage.ErrNotFound {
		return err
	}
	kv.journal = append(kv.journal, journalEntry{
		key:     string(key),
		prev:    prev,
		existed: err == nil,
	})
	return nil
}

// Put stores value under key, journaling the previous value.
func (kv *KV) Put(key, value []byte) error {
	if err := kv.record(key); err != nil {
		return err
	}
	return kv.db.Put(key, value)
}

// Get returns the current value for key, or storage.ErrNotFound.
func (kv *KV) Get(key []byte) ([]byte, error) {
	return kv.db.Get(key)
}

// Has reports whether key is present.
func (kv *KV) Has(key []byte) (bool, error) {
	return kv.db.Has(key)
}

// Delete removes key, journaling the previous value.
func (kv *KV) Delete(key []byte) error {
	if err := kv.record(key); err != nil {
		return err
	}
	return kv.db.Delete(key)
}

// Snapshot returns a marker identifying the current journal position.
func (kv *KV) Snapshot() int {
	return len(kv.journal)
}

// RevertToSnapshot undoes every write made after the supplied marker. The
// marker must come from a prior Snapshot call on this KV.
func (kv *KV) RevertToSnapshot(marker int) {
	if marker < 0 || marker > len(kv.journal) {
		panic(fmt.Sprintf("state: invalid snapshot marker %d (journal %d)", marker, len(kv.journal)))
	}
	for i := len(kv.journal) - 1; i >= marker; i-- {
		entry := kv.journal[i]
		if entry.existed {
			// Restoring a prior value cannot reasonably fail against the
			// same backend that produced it; surface via panic like an
			// out-of-range marker.
			if err := kv.db.Put([]byte(entry.key), entry.prev); err != nil {
				panic(fmt.Sprintf("state: revert put: %v", err))
			}
		} else {
			if err := kv.db.Delete([]byte(entry.key)); err != nil {
				panic(fmt.Sprintf("state: revert delete: %v", err))
			}
		}
	}
	kv.journal = kv.journal[:marker]
}

// DiscardJournal drops accumulated undo records once an operation has
// committed. It does not touch the backing store.
func (kv *KV) DiscardJournal() {
	kv.journal = kv.journal[:0]
}
