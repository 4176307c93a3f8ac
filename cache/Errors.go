package cache

import (
	"errors"
	"fmt"

	"github.com/pixelsdb/pixels-cache-go/cachekey"
)

var (
	// ErrCapacityExceeded is the error form of the CapacityExceeded status.
	// Writer.Rebuild itself reports an overflow through its Status result
	// with a nil error and does not return this value.
	ErrCapacityExceeded = errors.New("cache: capacity exceeded")

	// ErrDisabled names the condition of the cache being configured off.
	// Nothing in this package returns it: Reader.Lookup does not consult
	// the cache.enabled setting.
	ErrDisabled = errors.New("cache: disabled")

	// ErrCorruptCacheFile is returned by Open when exactly one of the index
	// file and the cache data file carries the magic.
	ErrCorruptCacheFile = errors.New("cache: corrupt cache file")

	// ErrAlreadyWriting is returned by Rebuild if the rw-flag is already
	// RWWriting, meaning another writer is mid-rebuild against this index.
	ErrAlreadyWriting = errors.New("cache: a rebuild is already in progress")

	// errDrainTimeout is returned internally by drainReaders when
	// SpinTimeout elapses before the reader count reaches zero. Rebuild
	// treats this as non-fatal: it proceeds with the rebuild anyway, and
	// any reader still in flight detects the generation change via the
	// version check in Lookup instead of being handed mixed-generation
	// bytes.
	errDrainTimeout = errors.New("cache: timed out waiting for readers to drain")
)

// Miss is returned by Reader.Lookup when a key isn't present in the
// current cache generation. It isn't an error: it just means the caller
// should go to the source file.
type Miss struct {
	Key cachekey.Key
}

func (m *Miss) Error() string { return fmt.Sprintf("cache: miss for %+v", m.Key) }
