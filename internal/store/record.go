package store

import (
	"regexp"

	"github.com/meridiankv/meridian/internal/errkind"
)

// MaxValueBytes is the wire-format ceiling on a record's value (§3):
// opaque bytes <= 1 MiB.
const MaxValueBytes = 1 << 20

// Record is a single datastore entry (§3). Version is a monotonic
// logical timestamp: non-decreasing for a given key within a node, and
// the tiebreak authority across a merge from a remote record.
type Record struct {
	Key         string
	Value       []byte
	Version     uint64
	CreatedAtMs int64
	UpdatedAtMs int64
	OwnerNode   uint16
	Tombstone   bool
}

// keyPattern matches §4.5's key validation charset: alphanumerics plus
// _ - . : /.
var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_.:/-]+$`)

// ValidateKey enforces §4.5's key validation: non-empty, length <=
// maxLen, characters restricted to alphanumerics ∪ {_ - . : /}.
func ValidateKey(key string, maxLen int) error {
	if key == "" {
		return errkind.New(errkind.INVALID, "store.ValidateKey", "key must not be empty")
	}
	if len(key) > maxLen {
		return errkind.New(errkind.INVALID, "store.ValidateKey", "key exceeds max length")
	}
	if !keyPattern.MatchString(key) {
		return errkind.New(errkind.INVALID, "store.ValidateKey", "key contains invalid characters")
	}
	return nil
}

// ValidateValue enforces the 1 MiB value ceiling.
func ValidateValue(value []byte) error {
	if len(value) > MaxValueBytes {
		return errkind.New(errkind.INVALID, "store.ValidateValue", "value exceeds 1MiB limit")
	}
	return nil
}

// winsOver reports whether candidate should replace current under §3's
// merge rule: strictly higher version wins; equal version is broken by
// higher owner_node. Tombstones participate identically to live
// records.
func winsOver(candidate, current Record) bool {
	if candidate.Version != current.Version {
		return candidate.Version > current.Version
	}
	return candidate.OwnerNode > current.OwnerNode
}
