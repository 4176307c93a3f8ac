package radix

import (
	"github.com/pixelsdb/pixels-cache-go/cachekey"
	"github.com/pixelsdb/pixels-cache-go/region"
)

// Reconstruct parses a radix tree out of reg, starting at rootOffset,
// validating the leading magic, that every child offset is strictly
// greater than its parent's offset and less than the region size, and
// detecting cycles (a node whose offset was already visited).
func Reconstruct(reg *region.Region, rootOffset int64) (*Radix, error) {
	magic, err := reg.GetBytes(0, cachekey.MagicSize)
	if err != nil {
		return nil, ErrCorruptIndex
	}
	if string(magic) != cachekey.Magic {
		return nil, ErrCorruptIndex
	}

	visited := make(map[int64]bool)

	root, err := reconstructNode(reg, rootOffset, -1, visited)
	if err != nil {
		return nil, err
	}

	return &Radix{root: root}, nil
}

func reconstructNode(reg *region.Region, offset, parentOffset int64, visited map[int64]bool) (*Node, error) {
	if offset <= parentOffset {
		return nil, ErrCorruptIndex
	}
	if offset < 0 || offset >= reg.Size() {
		return nil, ErrCorruptIndex
	}
	if visited[offset] {
		return nil, ErrCorruptIndex
	}
	visited[offset] = true

	headerWord, err := reg.GetU32BE(offset)
	if err != nil {
		return nil, ErrCorruptIndex
	}

	isKey, edgeSize, childCount := DecodeHeader(headerWord)
	if edgeSize < 0 || childCount < 0 || childCount > 256 {
		return nil, ErrCorruptIndex
	}

	cursor := offset + headerSize

	type pendingChild struct {
		leader byte
		offset int64
	}
	pending := make([]pendingChild, 0, childCount)

	for i := 0; i < childCount; i++ {
		word, err := reg.GetU64BE(cursor)
		if err != nil {
			return nil, ErrCorruptIndex
		}
		leader, childOff := DecodeChildEntry(word)
		pending = append(pending, pendingChild{leader: leader, offset: int64(childOff)})
		cursor += childPtrSize
	}

	if int64(edgeSize) < 0 || cursor+int64(edgeSize) > reg.Size() {
		return nil, ErrCorruptIndex
	}

	var edge []byte
	if edgeSize > 0 {
		b, err := reg.GetBytes(cursor, int64(edgeSize))
		if err != nil {
			return nil, ErrCorruptIndex
		}
		edge = append([]byte(nil), b...)
	}
	cursor += int64(edgeSize)

	node := &Node{Edge: edge, IsKey: isKey}

	if isKey {
		if cursor+cacheIdxSize > reg.Size() {
			return nil, ErrCorruptIndex
		}
		b, err := reg.GetBytes(cursor, cacheIdxSize)
		if err != nil {
			return nil, ErrCorruptIndex
		}
		idx, parseErr := cachekey.FromIdxBytes(b)
		if parseErr != nil {
			return nil, ErrCorruptIndex
		}
		node.Value = idx
	}

	if len(pending) > 0 {
		node.Children = make(map[byte]*Node, len(pending))
		for _, pc := range pending {
			child, err := reconstructNode(reg, pc.offset, offset, visited)
			if err != nil {
				return nil, err
			}
			node.Children[pc.leader] = child
		}
	}

	return node, nil
}
