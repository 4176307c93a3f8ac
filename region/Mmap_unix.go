//go:build !windows

package region

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Open maps fileSize bytes of path into memory. When reuse is true and the
// file already exists with a matching size, the existing contents are kept;
// otherwise the file is truncated to fileSize and zero-filled by the OS.
func Open(path string, fileSize int64, reuse bool) (*Region, error) {
	flag := os.O_RDWR | os.O_CREATE
	f, openErr := os.OpenFile(path, flag, 0600)
	if openErr != nil {
		return nil, fmt.Errorf("region: open %s: %w", path, openErr)
	}

	stat, statErr := f.Stat()
	if statErr != nil {
		f.Close()
		return nil, fmt.Errorf("region: stat %s: %w", path, statErr)
	}

	if !(reuse && stat.Size() == fileSize) {
		// Truncating to zero first discards old contents, so the resize
		// below yields an all-zero file even when the size already matched.
		if truncErr := f.Truncate(0); truncErr != nil {
			f.Close()
			return nil, fmt.Errorf("region: truncate %s: %w", path, truncErr)
		}
		if truncErr := f.Truncate(fileSize); truncErr != nil {
			f.Close()
			return nil, fmt.Errorf("region: truncate %s: %w", path, truncErr)
		}
	}

	r := &Region{file: f, size: fileSize}
	if mmapErr := r.mmap(); mmapErr != nil {
		f.Close()
		return nil, mmapErr
	}

	return r, nil
}

func (r *Region) mmap() error {
	b, err := unix.Mmap(int(r.file.Fd()), 0, int(r.size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("region: mmap: %w", err)
	}

	r.data.Store(Mapped(b))
	return nil
}

// Unmap releases the mapping; operations afterwards fail with ErrClosedRegion.
func (r *Region) Unmap() error {
	if r.closed.Swap(true) {
		return nil
	}

	m, _ := r.data.Load().(Mapped)
	if m == nil {
		return nil
	}

	if err := unix.Munmap(m); err != nil {
		return fmt.Errorf("region: munmap: %w", err)
	}

	r.data.Store(Mapped(nil))
	return nil
}

// Sync flushes the mapped pages to the backing file.
func (r *Region) Sync() error {
	m, err := r.load()
	if err != nil {
		return err
	}

	if len(m) == 0 {
		return nil
	}

	return unix.Msync(m, unix.MS_SYNC)
}
