package cache

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pixelsdb/pixels-cache-go/cachekey"
	"github.com/pixelsdb/pixels-cache-go/radix"
)

// ColumnletInput is one entry of the ordered rebuild list the caller
// builds from a coordination job: the composite key the columnlet will be
// looked up by, and a way to fetch its bytes from wherever the job says
// they live.
type ColumnletInput struct {
	Key   cachekey.Key
	Fetch func(ctx context.Context) ([]byte, error)
}

// Writer rebuilds a Store's cache generation. Exactly one Writer may be
// active against a Store at a time; the caller is responsible for that
// mutual exclusion across processes (normally via the coordination
// store's lease).
type Writer struct {
	store *Store
	log   *zap.Logger

	// PrefetchWindow bounds how many columnlet fetches run concurrently
	// ahead of the in-order commit loop. Zero means fetch one at a time.
	PrefetchWindow int

	// SpinTimeout bounds how long Rebuild waits for in-flight readers to
	// drain before logging a warning and proceeding with the rebuild anyway.
	SpinTimeout time.Duration
}

// NewWriter returns a Writer bound to store.
func NewWriter(store *Store, log *zap.Logger) *Writer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Writer{store: store, log: log, PrefetchWindow: 4, SpinTimeout: 5 * time.Second}
}

// Rebuild drains existing readers, resets the radix tree, copies every
// columnlet's bytes into the data region in order, serializes the new
// radix tree into the index region, bumps the version, and republishes
// the rw-flag as readable. The previous generation stays fully readable
// to any reader already past the rw-flag check until the moment the new
// generation's rw-flag flips back to readable.
func (w *Writer) Rebuild(ctx context.Context, columnlets []ColumnletInput) (Status, error) {
	if len(columnlets) == 0 {
		return NoWorkToDo, nil
	}

	flag, err := w.store.loadRWFlag()
	if err != nil {
		return Failed, err
	}
	if flag == RWWriting {
		return Failed, ErrAlreadyWriting
	}

	if err := w.store.storeRWFlag(RWWriting); err != nil {
		return Failed, err
	}

	if err := w.drainReaders(ctx); err != nil {
		if errors.Is(err, errDrainTimeout) {
			// Readers that are still in flight will detect the generation
			// change through the version check in Lookup; proceeding here
			// is what keeps a single wedged reader from permanently
			// blocking every future rebuild.
			w.log.Warn("rebuild proceeding without fully draining readers", zap.Error(err))
		} else {
			w.store.storeRWFlag(RWReadable)
			return Failed, err
		}
	}

	status, err := w.doRebuild(ctx, columnlets)

	// Either way the index returns to a readable state: on success it's
	// the new generation, on failure the rw-flag simply flips back
	// because the old radix region and version were never overwritten
	// past the point of failure detection.
	if flagErr := w.store.storeRWFlag(RWReadable); flagErr != nil && err == nil {
		return Failed, flagErr
	}

	return status, err
}

// drainReaders spin-waits for the reader-count word to hit zero. Readers
// check the rw-flag before incrementing reader-count and re-check it
// right after, backing out if it reads Writing, so this only has to wait
// out readers that were already in flight when Rebuild started.
func (w *Writer) drainReaders(ctx context.Context) error {
	deadline := time.Now().Add(w.SpinTimeout)
	backoff := time.Microsecond

	for {
		count, err := w.store.index.LoadU32(idxReaderCountOff)
		if err != nil {
			return err
		}
		if count == 0 {
			return nil
		}

		if time.Now().After(deadline) {
			return errDrainTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 2*time.Millisecond {
			backoff *= 2
		}
	}
}

// doRebuild fetches every columnlet in order, then commits as many of
// them as fit, in order, into a trial radix tree before writing a single
// byte to either mapped region. Columnlets are committed strictly in
// order: the moment one doesn't fit in the data region or would push the
// serialized index past its capacity, commitment stops there. The
// committed prefix (which may be the whole list, a strict prefix, or
// empty) is the only thing ever written to either region, so a
// CapacityExceeded result still leaves a fully self-consistent new
// generation rather than a half-overwritten one.
func (w *Writer) doRebuild(ctx context.Context, columnlets []ColumnletInput) (Status, error) {
	bytesFetched, err := w.fetchAll(ctx, columnlets)
	if err != nil {
		return Failed, err
	}

	committed := 0
	cursor := int64(dataRegionOff)
	overflowed := false

	for i := range columnlets {
		length := int64(len(bytesFetched[i]))
		if cursor+length > w.store.data.Size() {
			overflowed = true
			break
		}

		if !w.prefixFitsIndex(columnlets, bytesFetched, i+1) {
			overflowed = true
			break
		}

		cursor += length
		committed = i + 1
	}

	if committed == 0 {
		if overflowed {
			return CapacityExceeded, nil
		}
		return Ok, nil
	}

	tree := radix.New()
	writeCursor := int64(dataRegionOff)
	for i := 0; i < committed; i++ {
		b := bytesFetched[i]
		tree.Put(columnlets[i].Key.Bytes()[:], cachekey.Idx{Offset: uint64(writeCursor), Length: uint32(len(b))})
		if err := w.store.data.PutBytes(writeCursor, b); err != nil {
			return Failed, err
		}
		writeCursor += int64(len(b))
	}

	if _, err := tree.Serialize(w.store.index, idxRadixStart); err != nil {
		return Failed, err
	}

	curVersion, err := w.store.index.LoadU32(idxVersionOff)
	if err != nil {
		return Failed, err
	}
	if err := w.store.index.StoreU32(idxVersionOff, curVersion+1); err != nil {
		return Failed, err
	}

	if overflowed {
		return CapacityExceeded, nil
	}
	return Ok, nil
}

// prefixFitsIndex reports whether the first n columnlets, serialized as a
// radix tree, fit within the index region. It rebuilds a throwaway tree
// from the prefix rather than mutating any tree the caller keeps, so a
// failed check never needs to be undone.
func (w *Writer) prefixFitsIndex(columnlets []ColumnletInput, bytesFetched [][]byte, n int) bool {
	trial := radix.New()
	cursor := int64(dataRegionOff)
	for i := 0; i < n; i++ {
		length := int64(len(bytesFetched[i]))
		trial.Put(columnlets[i].Key.Bytes()[:], cachekey.Idx{Offset: uint64(cursor), Length: uint32(length)})
		cursor += length
	}
	return idxRadixStart+trial.SerializedSize() <= w.store.index.Size()
}

// fetchAll runs up to PrefetchWindow fetches concurrently but returns
// results indexed so the caller can still commit them in strict order.
func (w *Writer) fetchAll(ctx context.Context, columnlets []ColumnletInput) ([][]byte, error) {
	window := w.PrefetchWindow
	if window <= 0 {
		window = 1
	}

	results := make([][]byte, len(columnlets))
	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, window)

	for i, in := range columnlets {
		i, in := i, in
		sem <- struct{}{}
		g.Go(func() error {
			defer func() { <-sem }()
			b, err := in.Fetch(gctx)
			if err != nil {
				return err
			}
			results[i] = b
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
