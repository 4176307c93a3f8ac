// Package cache owns the two memory mapped files backing the shared
// columnar-chunk cache (the radix index file and the raw-bytes cache
// file) and the writer/reader protocols that keep a single rebuilding
// writer and many concurrent readers coherent without locks.
package cache

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/pixelsdb/pixels-cache-go/cachekey"
	"github.com/pixelsdb/pixels-cache-go/region"
)

// Store is the pair of mapped regions (index, data) that make up one
// cache generation on a single host. A Store is opened once per host and
// shared between exactly one Writer and any number of Readers.
type Store struct {
	index *region.Region
	data  *region.Region
	log   *zap.Logger
}

// Open maps (or creates) the index and cache files at the given paths and
// sizes. When both files already carry the cache's magic, their existing
// contents are reused; when neither does, they're initialized empty; when
// only one does, Open fails with ErrCorruptCacheFile.
func Open(indexPath string, indexSize int64, dataPath string, dataSize int64, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}

	idx, err := region.Open(indexPath, indexSize, true)
	if err != nil {
		return nil, fmt.Errorf("cache: open index: %w", err)
	}

	data, err := region.Open(dataPath, dataSize, true)
	if err != nil {
		idx.Unmap()
		return nil, fmt.Errorf("cache: open data: %w", err)
	}

	s := &Store{index: idx, data: data, log: log}

	reused, err := s.validateMagic()
	if err != nil {
		idx.Unmap()
		data.Unmap()
		return nil, err
	}

	if !reused {
		if err := s.initialize(); err != nil {
			idx.Unmap()
			data.Unmap()
			return nil, err
		}
	}

	return s, nil
}

// validateMagic reports whether both files already carry valid magic
// (a reused cache from a previous process), and errors if exactly one of
// the two does (a half-initialized or corrupt pair).
func (s *Store) validateMagic() (reused bool, err error) {
	idxMagic, err := s.index.GetBytes(idxMagicOff, cachekey.MagicSize)
	if err != nil {
		return false, fmt.Errorf("cache: read index magic: %w", err)
	}
	dataMagic, err := s.data.GetBytes(dataMagicOff, cachekey.MagicSize)
	if err != nil {
		return false, fmt.Errorf("cache: read data magic: %w", err)
	}

	idxOk := string(idxMagic) == cachekey.Magic
	dataOk := string(dataMagic) == cachekey.Magic

	switch {
	case idxOk && dataOk:
		return true, nil
	case !idxOk && !dataOk:
		return false, nil
	default:
		return false, ErrCorruptCacheFile
	}
}

// initialize writes fresh magic/header bytes into both files and an empty
// radix root, leaving the cache generation readable but empty.
func (s *Store) initialize() error {
	if err := s.index.PutBytes(idxMagicOff, []byte(cachekey.Magic)); err != nil {
		return err
	}
	if err := s.data.PutBytes(dataMagicOff, []byte(cachekey.Magic)); err != nil {
		return err
	}

	if err := s.storeRWFlag(RWReadable); err != nil {
		return err
	}
	if err := s.index.StoreU32(idxReaderCountOff, 0); err != nil {
		return err
	}
	if err := s.index.StoreU32(idxVersionOff, 0); err != nil {
		return err
	}

	// An empty radix tree at offset 16 is just a zero header: not a key,
	// no edge, no children.
	return s.index.PutU32BE(idxRadixStart, 0)
}

// Close flushes and unmaps both regions.
func (s *Store) Close() error {
	if err := s.index.Sync(); err != nil {
		return err
	}
	if err := s.data.Sync(); err != nil {
		return err
	}
	if err := s.index.Unmap(); err != nil {
		return err
	}
	return s.data.Unmap()
}

// storeRWFlag is the release-store of the rw-flag, widened to the 4-byte
// word at idxRWFlagWordOff (see Layout.go) so it never races the
// reader-count word.
func (s *Store) storeRWFlag(flag uint16) error {
	// Bytes 4:8 hold magic[4:6] (low 16 bits on a little-endian host) then
	// the rw-flag (high 16 bits); only the high half is ever replaced.
	cur, err := s.index.LoadU32(idxRWFlagWordOff)
	if err != nil {
		return err
	}
	next := (cur &^ 0xFFFF0000) | (uint32(flag) << 16)
	return s.index.StoreU32(idxRWFlagWordOff, next)
}

// loadRWFlag is the acquire-load counterpart of storeRWFlag.
func (s *Store) loadRWFlag() (uint16, error) {
	cur, err := s.index.LoadU32(idxRWFlagWordOff)
	if err != nil {
		return 0, err
	}
	return uint16(cur >> 16), nil
}
