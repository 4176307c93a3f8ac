// Package bus implements the Mapped Bus: a single-producer,
// multi-consumer ring of fixed-size records backed by a memory mapped
// file, used to broadcast cache-generation events (a columnlet rebuilt,
// a rebuild rolled back) to every reader process on the host without a
// socket or a kernel queue in the path.
package bus

import (
	"errors"

	"github.com/pixelsdb/pixels-cache-go/cachekey"
	"github.com/pixelsdb/pixels-cache-go/region"
)

// Record status values, stored in the low byte of each record's header word.
const (
	StatusUnpublished byte = 0
	StatusCommitted   byte = 1
	StatusRolledBack  byte = 2
)

// recordSize is fixed: 1 status byte + 3 reserved bytes + a 4-byte type +
// the 12-byte composite key, a 4-byte-aligned 20 bytes total.
const recordSize = 20

// Header layout:
//
//	[0..6)   magic = "PIXELS"
//	[6..8)   reserved
//	[8..16)  limit    u64  (fetch-add counter: next unreserved slot index)
//	[16..24) rollover u64  (reserved; wraparound is a non-goal)
//	[24..N)  records, recordSize bytes each
const (
	headerMagicOff    = 0
	headerLimitOff    = 8
	headerRolloverOff = 16
	recordsStart      = 24
)

// ErrEndOfBus is returned by Producer.Publish when the bus has no free
// slots left; the bus doesn't wrap around.
var ErrEndOfBus = errors.New("bus: end of bus reached")

// ErrCorruptBus is returned when a bus region's magic doesn't match.
var ErrCorruptBus = errors.New("bus: corrupt bus file")

// Record is one event: a columnlet key and a 32-bit type the caller
// defines the meaning of (the bus itself is payload-agnostic beyond the
// fixed key).
type Record struct {
	Key  cachekey.Key
	Type uint32
}

// Bus wraps the mapped region and the fixed capacity derived from its size.
type Bus struct {
	reg      *region.Region
	capacity uint64
}

// Open maps (or reuses) path as a bus of the given region size, writing
// fresh header bytes only if the magic isn't already present.
func Open(path string, size int64) (*Bus, error) {
	reg, err := region.Open(path, size, true)
	if err != nil {
		return nil, err
	}

	b := &Bus{reg: reg, capacity: uint64((size - recordsStart) / recordSize)}

	magic, err := reg.GetBytes(headerMagicOff, cachekey.MagicSize)
	if err != nil {
		reg.Unmap()
		return nil, err
	}

	if string(magic) == cachekey.Magic {
		return b, nil
	}

	if err := reg.PutBytes(headerMagicOff, []byte(cachekey.Magic)); err != nil {
		reg.Unmap()
		return nil, err
	}
	if err := reg.StoreU64(headerLimitOff, 0); err != nil {
		reg.Unmap()
		return nil, err
	}
	if err := reg.StoreU64(headerRolloverOff, 0); err != nil {
		reg.Unmap()
		return nil, err
	}

	return b, nil
}

// Close unmaps the bus region.
func (b *Bus) Close() error {
	return b.reg.Unmap()
}

// Capacity is the fixed number of record slots the bus region holds.
func (b *Bus) Capacity() uint64 {
	return b.capacity
}

func recordOffset(idx uint64) int64 {
	return recordsStart + int64(idx)*recordSize
}
