package cache

import (
	"bytes"
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pixelsdb/pixels-cache-go/cachekey"
	"github.com/pixelsdb/pixels-cache-go/radix"
	"github.com/pixelsdb/pixels-cache-go/region"
)

// Reader looks up columnlets in a Store without ever taking the in-memory
// radix.Radix the Writer builds: it walks the serialized node layout
// directly off the mapped index bytes, so a lookup costs zero allocations
// beyond the returned slice (or its copy, in Direct mode).
type Reader struct {
	store *Store
	log   *zap.Logger

	// Direct, when true, copies the matched bytes out of the mapped data
	// region before returning them, so the caller can hold the result
	// past a concurrent rebuild overwriting that offset. When false, the
	// caller gets a slice that aliases the mapping and must finish using
	// it before any subsequent rebuild.
	Direct bool

	// RetryBackoff bounds how long Lookup waits between re-checks of the
	// rw-flag when it observes a rebuild in progress.
	RetryBackoff time.Duration
}

// NewReader returns a Reader bound to store.
func NewReader(store *Store, log *zap.Logger) *Reader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reader{store: store, log: log, RetryBackoff: 50 * time.Microsecond}
}

// Lookup returns the columnlet's bytes for key, or *Miss if the current
// cache generation doesn't have it.
func (r *Reader) Lookup(ctx context.Context, key cachekey.Key) ([]byte, error) {
	keyBytes := key.Bytes()

	for {
		flag, err := r.store.loadRWFlag()
		if err != nil {
			return nil, err
		}
		if flag == RWWriting {
			if werr := r.wait(ctx); werr != nil {
				return nil, werr
			}
			continue
		}

		if _, err := r.store.index.FetchAddU32(idxReaderCountOff, 1); err != nil {
			return nil, err
		}

		// Double-check: a writer may have flipped to Writing in the
		// window between the load above and the fetch-add just done.
		flag, err = r.store.loadRWFlag()
		if err != nil {
			r.store.index.FetchAddU32(idxReaderCountOff, ^uint32(0))
			return nil, err
		}
		if flag == RWWriting {
			r.store.index.FetchAddU32(idxReaderCountOff, ^uint32(0))
			if werr := r.wait(ctx); werr != nil {
				return nil, werr
			}
			continue
		}

		v0, err := r.store.index.LoadU32(idxVersionOff)
		if err != nil {
			r.store.index.FetchAddU32(idxReaderCountOff, ^uint32(0))
			return nil, err
		}

		idx, found, err := lookupInIndex(r.store.index, keyBytes[:])
		if err != nil {
			r.store.index.FetchAddU32(idxReaderCountOff, ^uint32(0))
			return nil, err
		}

		var out []byte
		if found {
			out, err = r.store.data.GetBytes(int64(idx.Offset), int64(idx.Length))
			if err == nil && r.Direct {
				out = append([]byte(nil), out...)
			}
		}

		v1, verErr := r.store.index.LoadU32(idxVersionOff)

		if decErr := r.store.index.FetchAddU32(idxReaderCountOff, ^uint32(0)); decErr != nil && err == nil {
			err = decErr
		}
		if err != nil {
			return nil, err
		}
		if verErr != nil {
			return nil, verErr
		}

		if v0 != v1 {
			// A rebuild landed between the version read and this recheck:
			// the walk above may have read bytes spanning two generations,
			// so the result can't be trusted. Treat it as a miss rather
			// than risk handing back mixed-generation bytes.
			return nil, &Miss{Key: key}
		}
		if !found {
			return nil, &Miss{Key: key}
		}
		return out, nil
	}
}

func (r *Reader) wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(r.RetryBackoff):
		return nil
	}
}

// lookupInIndex walks the serialized radix layout directly off reg,
// starting at idxRadixStart, without ever materializing a radix.Node.
func lookupInIndex(reg *region.Region, key []byte) (cachekey.Idx, bool, error) {
	offset := int64(idxRadixStart)
	remaining := key

	for {
		headerWord, err := reg.GetU32BE(offset)
		if err != nil {
			return cachekey.Idx{}, false, err
		}
		isKey, edgeSize, childCount := radix.DecodeHeader(headerWord)

		cursor := offset + 4 // radix.headerSize, unexported; 4 is the fixed header width.

		if len(remaining) == 0 {
			if isKey {
				valOff := cursor + int64(childCount)*8 + int64(edgeSize)
				b, err := reg.GetBytes(valOff, 12)
				if err != nil {
					return cachekey.Idx{}, false, err
				}
				val, err := cachekey.FromIdxBytes(b)
				if err != nil {
					return cachekey.Idx{}, false, err
				}
				return val, true, nil
			}
			return cachekey.Idx{}, false, nil
		}

		leader := remaining[0]
		childOffset, ok, err := findChild(reg, cursor, childCount, leader)
		if err != nil {
			return cachekey.Idx{}, false, err
		}
		if !ok {
			return cachekey.Idx{}, false, nil
		}

		childHeaderWord, err := reg.GetU32BE(int64(childOffset))
		if err != nil {
			return cachekey.Idx{}, false, err
		}
		_, childEdgeSize, childChildCount := radix.DecodeHeader(childHeaderWord)
		childEdgeOff := int64(childOffset) + 4 + int64(childChildCount)*8
		childEdge, err := reg.GetBytes(childEdgeOff, int64(childEdgeSize))
		if err != nil {
			return cachekey.Idx{}, false, err
		}

		if len(remaining) < len(childEdge) || !bytes.HasPrefix(remaining, childEdge) {
			return cachekey.Idx{}, false, nil
		}

		remaining = remaining[len(childEdge):]
		offset = int64(childOffset)
	}
}

// findChild binary-searches the child table (childCount entries of 8
// bytes each, starting at tableOff, sorted ascending by leader byte) for
// leader.
func findChild(reg *region.Region, tableOff int64, childCount int, leader byte) (uint64, bool, error) {
	lo, hi := 0, childCount-1
	for lo <= hi {
		mid := (lo + hi) / 2
		word, err := reg.GetU64BE(tableOff + int64(mid)*8)
		if err != nil {
			return 0, false, err
		}
		l, off := radix.DecodeChildEntry(word)
		switch {
		case l == leader:
			return off, true, nil
		case l < leader:
			lo = mid + 1
		default:
			hi = mid - 1
		}
	}
	return 0, false, nil
}
