package radix

import "github.com/pixelsdb/pixels-cache-go/region"

// Serialize depth-first pre-order writes the tree into reg starting at
// startOffset (the caller passes 16, immediately after the index header).
// Each node's own byte length is computed directly from its edge/value/
// child-count (it never depends on descendants' lengths), so the subtree
// size needed to assign a child's absolute offset before the child itself
// is visited is computed bottom-up by subtreeSize, which writeNode calls
// for each child before writing it; nodes are written in the order
// children are visited ascending by leader byte — satisfying the
// invariant that every child offset is strictly forward of its parent's.
func (t *Radix) Serialize(reg *region.Region, startOffset int64) (nextFree int64, err error) {
	root := t.root
	if root == nil {
		root = &Node{}
	}

	size := subtreeSize(root)
	if writeErr := writeNode(reg, root, startOffset); writeErr != nil {
		return 0, writeErr
	}

	return startOffset + size, nil
}

// SerializedSize returns how many bytes Serialize would write, without
// writing anything. Callers use this to validate capacity before
// committing any bytes to a region.
func (t *Radix) SerializedSize() int64 {
	root := t.root
	if root == nil {
		root = &Node{}
	}
	return subtreeSize(root)
}

func subtreeSize(n *Node) int64 {
	total := nodeByteLen(n)
	for _, child := range n.Children {
		total += subtreeSize(child)
	}
	return total
}

// writeNode writes node (and its whole subtree) at offset, assuming offset
// was already reserved for exactly subtreeSize(node) bytes.
func writeNode(reg *region.Region, node *Node, offset int64) error {
	leaders := sortedChildren(node)

	childCursor := offset + nodeByteLen(node)
	childOffsets := make([]int64, len(leaders))
	for i, leader := range leaders {
		childOffsets[i] = childCursor
		childCursor += subtreeSize(node.Children[leader])
	}

	header := EncodeHeader(node.IsKey, len(node.Edge), len(leaders))
	if err := reg.PutU32BE(offset, header); err != nil {
		return err
	}

	tableOff := offset + headerSize
	for i, leader := range leaders {
		entry := EncodeChildEntry(leader, uint64(childOffsets[i]))
		if err := reg.PutU64BE(tableOff, entry); err != nil {
			return err
		}
		tableOff += childPtrSize
	}

	edgeOff := tableOff
	if len(node.Edge) > 0 {
		if err := reg.PutBytes(edgeOff, node.Edge); err != nil {
			return err
		}
	}

	if node.IsKey {
		valOff := edgeOff + int64(len(node.Edge))
		val := node.Value.Bytes()
		if err := reg.PutBytes(valOff, val[:]); err != nil {
			return err
		}
	}

	for i, leader := range leaders {
		if err := writeNode(reg, node.Children[leader], childOffsets[i]); err != nil {
			return err
		}
	}

	return nil
}
