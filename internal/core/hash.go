package core

import "hash/fnv"

// stableMask truncates a hash to 48 bits; every id in the wire format
// is a 48-bit stable string hash.
const stableMask = 0x0000FFFFFFFFFFFF

// HashString produces the stable 48-bit id used for table ids, function
// names, column/row aliases, and unit tags throughout the wire format.
// A truncated FNV-1a hash carries no collision-resistance or seeding
// requirement here, only determinism.
func HashString(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64() & stableMask
}
