package region

import "encoding/binary"

// byteOrder is host byte order for primitive access that isn't
// explicitly specified as big-endian by the caller (radix edges are
// always read/written big-endian by the radix package itself).
var byteOrder = binary.NativeEndian

func (r *Region) bounds(off, length int64) error {
	if off < 0 || length < 0 || off+length > r.size {
		return ErrOutOfBounds
	}
	return nil
}

// GetU8 reads a single byte at off.
func (r *Region) GetU8(off int64) (byte, error) {
	m, err := r.load()
	if err != nil {
		return 0, err
	}
	if err := r.bounds(off, 1); err != nil {
		return 0, err
	}
	return m[off], nil
}

// PutU8 writes a single byte at off.
func (r *Region) PutU8(off int64, v byte) error {
	m, err := r.load()
	if err != nil {
		return err
	}
	if err := r.bounds(off, 1); err != nil {
		return err
	}
	m[off] = v
	return nil
}

// GetU16 reads an unaligned host-order uint16 at off.
func (r *Region) GetU16(off int64) (uint16, error) {
	m, err := r.load()
	if err != nil {
		return 0, err
	}
	if err := r.bounds(off, 2); err != nil {
		return 0, err
	}
	return byteOrder.Uint16(m[off : off+2]), nil
}

// PutU16 writes an unaligned host-order uint16 at off.
func (r *Region) PutU16(off int64, v uint16) error {
	m, err := r.load()
	if err != nil {
		return err
	}
	if err := r.bounds(off, 2); err != nil {
		return err
	}
	byteOrder.PutUint16(m[off:off+2], v)
	return nil
}

// GetU32 reads an unaligned host-order uint32 at off.
func (r *Region) GetU32(off int64) (uint32, error) {
	m, err := r.load()
	if err != nil {
		return 0, err
	}
	if err := r.bounds(off, 4); err != nil {
		return 0, err
	}
	return byteOrder.Uint32(m[off : off+4]), nil
}

// PutU32 writes an unaligned host-order uint32 at off.
func (r *Region) PutU32(off int64, v uint32) error {
	m, err := r.load()
	if err != nil {
		return err
	}
	if err := r.bounds(off, 4); err != nil {
		return err
	}
	byteOrder.PutUint32(m[off:off+4], v)
	return nil
}

// GetU64 reads an unaligned host-order uint64 at off.
func (r *Region) GetU64(off int64) (uint64, error) {
	m, err := r.load()
	if err != nil {
		return 0, err
	}
	if err := r.bounds(off, 8); err != nil {
		return 0, err
	}
	return byteOrder.Uint64(m[off : off+8]), nil
}

// PutU64 writes an unaligned host-order uint64 at off.
func (r *Region) PutU64(off int64, v uint64) error {
	m, err := r.load()
	if err != nil {
		return err
	}
	if err := r.bounds(off, 8); err != nil {
		return err
	}
	byteOrder.PutUint64(m[off:off+8], v)
	return nil
}

// GetU32BE reads a big-endian uint32 at off, regardless of host byte order.
// Used by components (the radix node header/child table) that fix their
// on-disk representation to big-endian independent of host endianness.
func (r *Region) GetU32BE(off int64) (uint32, error) {
	m, err := r.load()
	if err != nil {
		return 0, err
	}
	if err := r.bounds(off, 4); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(m[off : off+4]), nil
}

// PutU32BE writes a big-endian uint32 at off.
func (r *Region) PutU32BE(off int64, v uint32) error {
	m, err := r.load()
	if err != nil {
		return err
	}
	if err := r.bounds(off, 4); err != nil {
		return err
	}
	binary.BigEndian.PutUint32(m[off:off+4], v)
	return nil
}

// GetU64BE reads a big-endian uint64 at off.
func (r *Region) GetU64BE(off int64) (uint64, error) {
	m, err := r.load()
	if err != nil {
		return 0, err
	}
	if err := r.bounds(off, 8); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(m[off : off+8]), nil
}

// PutU64BE writes a big-endian uint64 at off.
func (r *Region) PutU64BE(off int64, v uint64) error {
	m, err := r.load()
	if err != nil {
		return err
	}
	if err := r.bounds(off, 8); err != nil {
		return err
	}
	binary.BigEndian.PutUint64(m[off:off+8], v)
	return nil
}

// GetBytes returns a slice of the mapped region; the slice aliases the
// mapping and is only valid while the region stays mapped.
func (r *Region) GetBytes(off, length int64) (Mapped, error) {
	m, err := r.load()
	if err != nil {
		return nil, err
	}
	if err := r.bounds(off, length); err != nil {
		return nil, err
	}
	return m[off : off+length], nil
}

// PutBytes bulk-copies src into the region starting at off.
func (r *Region) PutBytes(off int64, src []byte) error {
	m, err := r.load()
	if err != nil {
		return err
	}
	if err := r.bounds(off, int64(len(src))); err != nil {
		return err
	}
	copy(m[off:off+int64(len(src))], src)
	return nil
}
