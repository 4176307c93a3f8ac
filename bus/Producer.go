package bus

import "encoding/binary"

// Producer is the single writer allowed against a Bus. The caller is
// responsible for ensuring only one Producer is ever active per Bus
// across processes.
type Producer struct {
	bus *Bus
}

// NewProducer returns a Producer bound to bus.
func NewProducer(bus *Bus) *Producer {
	return &Producer{bus: bus}
}

// Publish reserves the next slot, writes the record body, then
// release-stores StatusCommitted as the last step, making the record
// visible to any Consumer whose cursor has reached that slot.
func (p *Producer) Publish(rec Record) error {
	// FetchAddU64 returns the post-increment value; the slot this Publish
	// reserves is the one before that.
	next, err := p.bus.reg.FetchAddU64(headerLimitOff, 1)
	if err != nil {
		return err
	}
	idx := next - 1
	if idx >= p.bus.capacity {
		return ErrEndOfBus
	}

	off := recordOffset(idx)
	if err := p.writeBody(off, rec); err != nil {
		return err
	}

	return p.bus.reg.PutU8Volatile(off, StatusCommitted)
}

// Rollback marks a previously reserved slot as rolled back, so consumers
// skip it instead of spinning on it forever. The caller is responsible
// for knowing which index its own failed Publish reserved.
func (p *Producer) Rollback(idx uint64) error {
	if idx >= p.bus.capacity {
		return nil
	}
	return p.bus.reg.PutU8Volatile(recordOffset(idx), StatusRolledBack)
}

func (p *Producer) writeBody(off int64, rec Record) error {
	keyBytes := rec.Key.Bytes()
	body := make([]byte, recordSize)
	body[0] = StatusUnpublished
	// body[1:4] reserved, left zero.
	binary.BigEndian.PutUint32(body[4:8], rec.Type)
	copy(body[8:20], keyBytes[:])
	return p.bus.reg.PutBytes(off, body)
}
