package bus

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/pixelsdb/pixels-cache-go/cachekey"
)

// Consumer tracks one reader's private cursor into a Bus. Any number of
// Consumers may read the same Bus independently; none of them mutate
// shared state, so there's no coordination between consumers at all.
type Consumer struct {
	bus    *Bus
	cursor uint64

	// SpinBackoff bounds how long Next waits between polls of the limit
	// counter or a not-yet-published record.
	SpinBackoff time.Duration
}

// NewConsumer returns a Consumer starting at the head of the bus.
func NewConsumer(bus *Bus) *Consumer {
	return &Consumer{bus: bus, SpinBackoff: 50 * time.Microsecond}
}

// Next blocks until the next record is available (skipping any rolled
// back slots), or ctx is done.
func (c *Consumer) Next(ctx context.Context) (Record, error) {
	for {
		if c.cursor >= c.bus.capacity {
			return Record{}, ErrEndOfBus
		}

		limit, err := c.bus.reg.LoadU64(headerLimitOff)
		if err != nil {
			return Record{}, err
		}
		if c.cursor >= limit {
			if err := c.wait(ctx); err != nil {
				return Record{}, err
			}
			continue
		}

		off := recordOffset(c.cursor)
		status, err := c.bus.reg.GetU8Volatile(off)
		if err != nil {
			return Record{}, err
		}

		switch status {
		case StatusUnpublished:
			// The producer fetch-added the limit past this slot but
			// hasn't finished writing it yet; wait it out.
			if err := c.wait(ctx); err != nil {
				return Record{}, err
			}
			continue
		case StatusRolledBack:
			c.cursor++
			continue
		}

		rec, err := c.readBody(off)
		if err != nil {
			return Record{}, err
		}
		c.cursor++
		return rec, nil
	}
}

func (c *Consumer) readBody(off int64) (Record, error) {
	typeBytes, err := c.bus.reg.GetBytes(off+4, 4)
	if err != nil {
		return Record{}, err
	}
	typ := binary.BigEndian.Uint32(typeBytes)

	keyBytes, err := c.bus.reg.GetBytes(off+8, cachekey.KeySize)
	if err != nil {
		return Record{}, err
	}
	key, err := cachekey.FromBytes(keyBytes)
	if err != nil {
		return Record{}, err
	}
	return Record{Key: key, Type: typ}, nil
}

func (c *Consumer) wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.SpinBackoff):
		return nil
	}
}
