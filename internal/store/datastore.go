package store

import (
	"sync"
	"time"

	"github.com/meridiankv/meridian/internal/errkind"
	"github.com/spaolacci/murmur3"
)

// ChangeOp names the mutation a ChangeCallback reports.
type ChangeOp string

const (
	OpSet   ChangeOp = "set"
	OpUnset ChangeOp = "unset"
)

// ChangeCallback is invoked after a successful mutation, outside the
// datastore's lock.
type ChangeCallback func(op ChangeOp, record Record)

type slot struct {
	occupied bool
	record   Record
}

// Datastore is the fixed-capacity, open-addressed KV store of §4.5.
// Slots are probed linearly from murmur3.Sum32(key) % capacity.
type Datastore struct {
	mu        sync.RWMutex
	slots     []slot
	index     map[string]int // key -> slot index, for O(1) lookup after the initial probe
	capacity  int
	maxKeyLen int
	onChange  ChangeCallback
}

// NewDatastore creates a Datastore with the given slot capacity and key
// length limit.
func NewDatastore(capacity, maxKeyLen int) *Datastore {
	return &Datastore{
		slots:     make([]slot, capacity),
		index:     make(map[string]int, capacity),
		capacity:  capacity,
		maxKeyLen: maxKeyLen,
	}
}

// SetChangeCallback registers the callback invoked after Set/Unset.
func (d *Datastore) SetChangeCallback(cb ChangeCallback) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onChange = cb
}

func (d *Datastore) probeStart(key string) int {
	return int(murmur3.Sum32([]byte(key)) % uint32(d.capacity))
}

// findSlot returns the slot index holding key, if any, from the key
// index kept alongside the slots.
func (d *Datastore) findSlot(key string) (int, bool) {
	if idx, ok := d.index[key]; ok {
		return idx, true
	}
	return 0, false
}

// allocateSlot finds an empty slot for key via linear probing from
// murmur3.Sum32(key) % capacity, wrapping once around the array.
func (d *Datastore) allocateSlot(key string) (int, bool) {
	start := d.probeStart(key)
	for i := 0; i < d.capacity; i++ {
		idx := (start + i) % d.capacity
		if !d.slots[idx].occupied {
			return idx, true
		}
	}
	return 0, false
}

// Set validates key and value, then inserts or updates the record for
// key, bumping version to max(current_version, wall_ms)+1 and clearing
// any tombstone (§4.5).
func (d *Datastore) Set(key string, value []byte, owner uint16) (Record, error) {
	if err := ValidateKey(key, d.maxKeyLen); err != nil {
		return Record{}, err
	}
	if err := ValidateValue(value); err != nil {
		return Record{}, err
	}

	d.mu.Lock()

	now := time.Now().UnixMilli()
	idx, exists := d.findSlot(key)
	var created int64

	if exists {
		current := d.slots[idx].record
		created = current.CreatedAtMs
		version := current.Version
		if uint64(now) > version {
			version = uint64(now)
		}
		version++

		d.slots[idx].record = Record{
			Key:         key,
			Value:       append([]byte(nil), value...),
			Version:     version,
			CreatedAtMs: created,
			UpdatedAtMs: now,
			OwnerNode:   owner,
			Tombstone:   false,
		}
	} else {
		newIdx, ok := d.allocateSlot(key)
		if !ok {
			d.mu.Unlock()
			return Record{}, errkind.New(errkind.FULL, "store.Datastore.Set", "no free slot")
		}
		rec := Record{
			Key:         key,
			Value:       append([]byte(nil), value...),
			Version:     uint64(now) + 1,
			CreatedAtMs: now,
			UpdatedAtMs: now,
			OwnerNode:   owner,
			Tombstone:   false,
		}
		d.slots[newIdx] = slot{occupied: true, record: rec}
		d.index[key] = newIdx
		idx = newIdx
	}

	result := d.slots[idx].record
	cb := d.onChange
	d.mu.Unlock()

	if cb != nil {
		cb(OpSet, result)
	}
	return result, nil
}

// Get returns a copy of the record for key, or NOT_FOUND.
func (d *Datastore) Get(key string) (Record, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	idx, exists := d.findSlot(key)
	if !exists {
		return Record{}, errkind.New(errkind.NOT_FOUND, "store.Datastore.Get", "key not present")
	}
	return d.slots[idx].record, nil
}

// Unset marks key's record as a tombstone, bumping its version. Returns
// NOT_FOUND if the key is absent; callers at the RPC boundary should
// treat that as an idempotent success, not surface it to the client
// (§4.5).
func (d *Datastore) Unset(key string) error {
	d.mu.Lock()

	idx, exists := d.findSlot(key)
	if !exists {
		d.mu.Unlock()
		return errkind.New(errkind.NOT_FOUND, "store.Datastore.Unset", "key not present")
	}

	now := time.Now().UnixMilli()
	current := d.slots[idx].record
	version := current.Version
	if uint64(now) > version {
		version = uint64(now)
	}
	version++

	current.Version = version
	current.UpdatedAtMs = now
	current.Tombstone = true
	d.slots[idx].record = current

	cb := d.onChange
	d.mu.Unlock()

	if cb != nil {
		cb(OpUnset, current)
	}
	return nil
}

// MergeRecord applies §3's conflict rule: the winning record (by
// version, then by owner_node on a tie) overwrites value, version,
// timestamps, owner_node, and tombstone. Tombstones participate in the
// ordering identically to live records. Returns true if remote's value
// was applied.
func (d *Datastore) MergeRecord(remote Record) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	idx, exists := d.findSlot(remote.Key)
	if !exists {
		newIdx, ok := d.allocateSlot(remote.Key)
		if !ok {
			return false, errkind.New(errkind.FULL, "store.Datastore.MergeRecord", "no free slot")
		}
		d.slots[newIdx] = slot{occupied: true, record: remote}
		d.index[remote.Key] = newIdx
		return true, nil
	}

	current := d.slots[idx].record
	if !winsOver(remote, current) {
		return false, nil
	}

	d.slots[idx].record = remote
	return true, nil
}

// GetModifiedSince returns a snapshot of records with updated_at_ms >
// ms, for delta sync.
func (d *Datastore) GetModifiedSince(ms int64) []Record {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Record, 0)
	for _, s := range d.slots {
		if s.occupied && s.record.UpdatedAtMs > ms {
			out = append(out, s.record)
		}
	}
	return out
}

// Keys returns every non-tombstoned key currently stored.
func (d *Datastore) Keys() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]string, 0, len(d.index))
	for key, idx := range d.index {
		if !d.slots[idx].record.Tombstone {
			out = append(out, key)
		}
	}
	return out
}

// Len returns the number of occupied slots, including tombstones.
func (d *Datastore) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.index)
}

// Bytes returns the total size in bytes of every live (non-tombstoned)
// value currently stored.
func (d *Datastore) Bytes() int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var total int64
	for _, s := range d.slots {
		if s.occupied && !s.record.Tombstone {
			total += int64(len(s.record.Value))
		}
	}
	return total
}

// PurgeTombstones frees every tombstoned slot last updated more than ttl
// ago, so a deleted key's slot becomes available for reuse. Returns the
// number of slots freed. Run periodically by node maintenance, not on
// every mutation, since a just-created tombstone must still win merge
// conflicts against stale remote copies for at least ttl.
func (d *Datastore) PurgeTombstones(ttl time.Duration) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	cutoff := time.Now().Add(-ttl).UnixMilli()
	freed := 0
	for idx := range d.slots {
		s := d.slots[idx]
		if s.occupied && s.record.Tombstone && s.record.UpdatedAtMs < cutoff {
			delete(d.index, s.record.Key)
			d.slots[idx] = slot{}
			freed++
		}
	}
	return freed
}

// All returns every occupied record, including tombstones, for snapshot
// persistence.
func (d *Datastore) All() []Record {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Record, 0, len(d.index))
	for _, s := range d.slots {
		if s.occupied {
			out = append(out, s.record)
		}
	}
	return out
}

// LoadSnapshot atomically replaces the datastore's contents with
// records, reallocating slots by the same hash-probe rule Set uses. A
// record that cannot be placed (snapshot larger than this node's
// configured capacity) is dropped; callers should size snapshots to
// the cluster's smallest capacity.
func (d *Datastore) LoadSnapshot(records []Record) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.slots = make([]slot, d.capacity)
	d.index = make(map[string]int, len(records))

	for _, r := range records {
		idx, ok := d.allocateSlot(r.Key)
		if !ok {
			continue
		}
		d.slots[idx] = slot{occupied: true, record: r}
		d.index[r.Key] = idx
	}
}
