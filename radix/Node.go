package radix

import (
	"bytes"

	"github.com/pixelsdb/pixels-cache-go/cachekey"
)

// commonPrefixLen returns the length of the longest common prefix of a and b.
func commonPrefixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}

// Put inserts or overwrites the value for key, splitting an edge when the
// existing edge is a proper-prefix mismatch of the insertion key (standard
// patricia split: find the longest common prefix of the incoming edge and
// the remaining key; replace the node with an intermediate node labelled by
// the prefix whose children are the old node and the new leaf).
func (t *Radix) Put(key []byte, value cachekey.Idx) {
	if t.root == nil {
		t.root = &Node{}
	}
	putAt(t.root, key, value)
}

func putAt(node *Node, key []byte, value cachekey.Idx) {
	if len(key) == 0 {
		node.IsKey = true
		node.Value = value
		return
	}

	if node.Children == nil {
		node.Children = make(map[byte]*Node)
	}

	leader := key[0]
	child, ok := node.Children[leader]
	if !ok {
		node.Children[leader] = &Node{Edge: append([]byte(nil), key...), IsKey: true, Value: value}
		return
	}

	lcp := commonPrefixLen(child.Edge, key)

	switch {
	case lcp == len(child.Edge):
		// Entire edge consumed; continue matching into the child's subtree.
		putAt(child, key[lcp:], value)

	default:
		// Proper-prefix mismatch: split the edge at lcp.
		intermediate := &Node{
			Edge:     append([]byte(nil), child.Edge[:lcp]...),
			Children: make(map[byte]*Node),
		}

		child.Edge = append([]byte(nil), child.Edge[lcp:]...)
		intermediate.Children[child.Edge[0]] = child

		node.Children[leader] = intermediate

		if lcp == len(key) {
			intermediate.IsKey = true
			intermediate.Value = value
		} else {
			remaining := key[lcp:]
			intermediate.Children[remaining[0]] = &Node{
				Edge:  append([]byte(nil), remaining...),
				IsKey: true,
				Value: value,
			}
		}
	}
}

// Get follows edges matching the key bytes and returns the value of the
// terminal node iff it is a key and the full key matched.
func (t *Radix) Get(key []byte) (cachekey.Idx, bool) {
	if t.root == nil {
		return cachekey.Idx{}, false
	}

	node := t.root
	remaining := key

	for {
		if len(remaining) == 0 {
			if node.IsKey {
				return node.Value, true
			}
			return cachekey.Idx{}, false
		}

		child, ok := node.Children[remaining[0]]
		if !ok {
			return cachekey.Idx{}, false
		}

		if len(remaining) < len(child.Edge) || !bytes.HasPrefix(remaining, child.Edge) {
			return cachekey.Idx{}, false
		}

		remaining = remaining[len(child.Edge):]
		node = child
	}
}

// RemoveAll resets the tree to an empty root.
func (t *Radix) RemoveAll() {
	t.root = &Node{}
}

// Root exposes the root node for serialization and tests.
func (t *Radix) Root() *Node {
	return t.root
}
