package cache

// Index file layout:
//
//	[0..6)    magic = "PIXELS"
//	[6..8)    rw-flag          u16  {0=readable, 1=writing}
//	[8..12)   reader-count     u32  (readers currently inside a lookup)
//	[12..16)  version          u32  (monotonically increasing cache generation)
//	[16..N)   radix region     (serialized nodes, root at offset 16)
const (
	idxMagicOff = 0

	// idxRWFlagWordOff is the 4-byte-aligned word covering magic[4:6] and the
	// rw-flag itself (bytes 6:8). The magic tail is write-once at creation
	// and never touched again, so widening the rw-flag's release-store to
	// this word never races the reader-count word readers concurrently
	// fetch-add at offset 8.
	idxRWFlagWordOff  = 4
	idxReaderCountOff = 8
	idxVersionOff     = 12
	idxRadixStart     = 16

	// idxHeaderSize is the fixed index header size before the radix region.
	idxHeaderSize = idxRadixStart
)

// RWFlag values.
const (
	RWReadable uint16 = 0
	RWWriting  uint16 = 1
)

// Cache file layout:
//
//	[0..6)    magic = "PIXELS"
//	[6..N)    raw columnlet bytes, concatenated in write order
const (
	dataMagicOff  = 0
	dataRegionOff = 6
)
