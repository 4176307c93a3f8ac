// Package cachekey defines the 12-byte composite key and 12-byte locator
// shared by the radix index and the cache store.
package cachekey

import (
	"encoding/binary"
	"errors"
)

// KeySize is the serialized size of a CacheKey: blockId(8) + rowGroupId(2) + columnId(2).
const KeySize = 12

// IdxSize is the serialized size of a CacheIdx: offset(6) + length(4) + reserved(2).
const IdxSize = 12

// ErrShortBuffer is returned when a deserialize call is given a buffer
// whose length differs from the fixed-size encoding (shorter or longer).
var ErrShortBuffer = errors.New("cachekey: buffer too short")

// Key is the composite (blockId, rowGroupId, columnId) identifying one
// columnlet: the bytes of one column within one row group of one
// columnar file.
type Key struct {
	BlockID    uint64
	RowGroupID uint16
	ColumnID   uint16
}

// Bytes serializes the key big-endian, the order radix edges use so that
// lexicographic byte comparison matches (blockId, rowGroupId, columnId)
// ordering.
func (k Key) Bytes() [KeySize]byte {
	var b [KeySize]byte
	binary.BigEndian.PutUint64(b[0:8], k.BlockID)
	binary.BigEndian.PutUint16(b[8:10], k.RowGroupID)
	binary.BigEndian.PutUint16(b[10:12], k.ColumnID)
	return b
}

// FromBytes parses a 12-byte big-endian composite key.
func FromBytes(b []byte) (Key, error) {
	if len(b) != KeySize {
		return Key{}, ErrShortBuffer
	}
	return Key{
		BlockID:    binary.BigEndian.Uint64(b[0:8]),
		RowGroupID: binary.BigEndian.Uint16(b[8:10]),
		ColumnID:   binary.BigEndian.Uint16(b[10:12]),
	}, nil
}

// Idx locates a columnlet's bytes within the cache file's data region.
type Idx struct {
	// Offset is a byte offset into the cache file's data region. Only
	// the lower 6 bytes are ever used on the wire.
	Offset uint64
	Length uint32
}

// Bytes serializes the locator as 6 bytes offset || 4 bytes length || 2
// reserved bytes, big-endian, matching the on-disk node value layout.
func (idx Idx) Bytes() [IdxSize]byte {
	var b [IdxSize]byte

	var off8 [8]byte
	binary.BigEndian.PutUint64(off8[:], idx.Offset)
	copy(b[0:6], off8[2:8])

	binary.BigEndian.PutUint32(b[6:10], idx.Length)
	// b[10:12] reserved, left zero.
	return b
}

// FromIdxBytes parses a 12-byte serialized locator.
func FromIdxBytes(b []byte) (Idx, error) {
	if len(b) != IdxSize {
		return Idx{}, ErrShortBuffer
	}

	var off8 [8]byte
	copy(off8[2:8], b[0:6])

	return Idx{
		Offset: binary.BigEndian.Uint64(off8[:]),
		Length: binary.BigEndian.Uint32(b[6:10]),
	}, nil
}
