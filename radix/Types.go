// Package radix implements the in-memory edge-labelled trie keyed by the
// 12-byte composite cache key, with deterministic serialization to and
// reconstruction from a region.Region.
package radix

import (
	"errors"

	"github.com/pixelsdb/pixels-cache-go/cachekey"
)

// ErrCorruptIndex is returned on bad magic, an impossible header, a child
// offset out of range, or a detected cycle while walking a serialized radix.
var ErrCorruptIndex = errors.New("radix: corrupt index")

// Node is an edge-labelled trie node. The map is sparse (at most 256
// entries, one per possible leader byte) but iteration order on
// serialization is always ascending by leader byte.
type Node struct {
	Edge     []byte
	Children map[byte]*Node
	IsKey    bool
	Value    cachekey.Idx
}

// Radix is the in-memory trie. The zero value is an empty tree ready to use.
type Radix struct {
	root *Node
}

// New returns an empty radix tree.
func New() *Radix {
	return &Radix{root: &Node{}}
}
