package source

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/zeebo/xxh3"
)

// LocalReader is the reference Reader backed by plain POSIX files on a
// shared volume. It opens each distinct path once and reuses the handle
// across OpenBlock/Read calls; footers are the caller's responsibility to
// parse (ReadRowGroupFooter here is a stub over Read plus a
// caller-supplied decoder, since the on-disk footer format belongs to
// the columnar file format, not to this package).
type LocalReader struct {
	mu    sync.Mutex
	files map[uint64]*os.File
	paths map[uint64]string

	// DecodeFooter parses the raw footer bytes for a row group into its
	// column chunk layout. Callers set this to their columnar format's
	// own footer decoder.
	DecodeFooter func(raw []byte, rowGroupID uint16) (RowGroupFooter, error)
}

// NewLocalReader returns an empty LocalReader.
func NewLocalReader() *LocalReader {
	return &LocalReader{
		files: make(map[uint64]*os.File),
		paths: make(map[uint64]string),
	}
}

// OpenBlock opens path (if not already open) and returns a stable block
// id derived from the path's hash.
func (r *LocalReader) OpenBlock(ctx context.Context, path string) (uint64, error) {
	blockID := hashPath(path)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.files[blockID]; ok {
		return blockID, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("%w: open %s: %v", ErrSourceIOFailure, path, err)
	}

	r.files[blockID] = f
	r.paths[blockID] = path
	return blockID, nil
}

// Read reads length bytes at offset from the block's file.
func (r *LocalReader) Read(ctx context.Context, blockID uint64, offset, length int64) ([]byte, error) {
	r.mu.Lock()
	f, ok := r.files[blockID]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown block %d", ErrSourceIOFailure, blockID)
	}

	buf := make([]byte, length)
	if _, err := f.ReadAt(buf, offset); err != nil {
		return nil, fmt.Errorf("%w: read %s at %d: %v", ErrSourceIOFailure, r.pathFor(blockID), offset, err)
	}
	return buf, nil
}

// ReadRowGroupFooter reads the footer's length-prefixed trailer (the
// last 8 bytes of the file are the footer length) and hands the raw
// bytes to DecodeFooter.
func (r *LocalReader) ReadRowGroupFooter(ctx context.Context, blockID uint64, rowGroupID uint16) (RowGroupFooter, error) {
	r.mu.Lock()
	f, ok := r.files[blockID]
	r.mu.Unlock()
	if !ok {
		return RowGroupFooter{}, fmt.Errorf("%w: unknown block %d", ErrSourceIOFailure, blockID)
	}

	stat, err := f.Stat()
	if err != nil {
		return RowGroupFooter{}, fmt.Errorf("%w: stat %s: %v", ErrSourceIOFailure, r.pathFor(blockID), err)
	}

	var lenBuf [8]byte
	if _, err := f.ReadAt(lenBuf[:], stat.Size()-8); err != nil {
		return RowGroupFooter{}, fmt.Errorf("%w: read footer length: %v", ErrSourceIOFailure, err)
	}

	footerLen := int64(0)
	for i := 0; i < 8; i++ {
		footerLen = footerLen<<8 | int64(lenBuf[i])
	}

	raw := make([]byte, footerLen)
	if _, err := f.ReadAt(raw, stat.Size()-8-footerLen); err != nil {
		return RowGroupFooter{}, fmt.Errorf("%w: read footer: %v", ErrSourceIOFailure, err)
	}

	if r.DecodeFooter == nil {
		return RowGroupFooter{}, fmt.Errorf("%w: no footer decoder configured", ErrSourceIOFailure)
	}
	return r.DecodeFooter(raw, rowGroupID)
}

// Close closes every opened file handle.
func (r *LocalReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for _, f := range r.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *LocalReader) pathFor(blockID uint64) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.paths[blockID]
}

func hashPath(path string) uint64 {
	return xxh3.HashString(path)
}
