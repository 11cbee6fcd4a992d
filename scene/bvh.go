package scene

import "github.com/achilleasa/skylight/types"

// MaxTraversalDepth is the number of tree levels the traversal stack in the
// tracing kernels can hold. Trees deeper than this cannot be traced.
const MaxTraversalDepth = 64

// Bvh nodes are comprised of two Vec3 and two multipurpose int32 parameters
// whose value depends on the node type:
//
// - For inner nodes (top/bottom) they are both > 0 and point to the L/R child nodes
// - For leaves LData is <= 0 and holds the negated index of the first item
//   (primitive for the bottom level, instance for the top level) while RData
//   holds the number of items in the leaf.
//
// Each node takes 32 bytes.
type BvhNode struct {
	Min   types.Vec3
	LData int32

	Max   types.Vec3
	RData int32
}

// Set bounding box.
func (n *BvhNode) SetBBox(bbox [2]types.Vec3) {
	n.Min = bbox[0]
	n.Max = bbox[1]
}

// Get bounding box.
func (n *BvhNode) BBox() [2]types.Vec3 {
	return [2]types.Vec3{n.Min, n.Max}
}

// Set left and right child node indices.
func (n *BvhNode) SetChildNodes(left, right uint32) {
	n.LData = int32(left)
	n.RData = int32(right)
}

// Get left and right child node indices.
func (n *BvhNode) GetChildNodes() (left, right uint32) {
	return uint32(n.LData), uint32(n.RData)
}

// Set the index of the first leaf item and the item count.
func (n *BvhNode) SetPrimitives(firstIndex, count uint32) {
	n.LData = -int32(firstIndex)
	n.RData = int32(count)
}

// Get the index of the first leaf item and the item count.
func (n *BvhNode) GetPrimitives() (firstIndex, count uint32) {
	return uint32(-n.LData), uint32(n.RData)
}

// Returns true if this is a leaf node.
func (n *BvhNode) IsLeaf() bool {
	return n.LData <= 0
}

// Add offset to indices of child nodes.
func (n *BvhNode) OffsetChildNodes(offset int32) {
	// Ignore leafs
	if n.LData <= 0 {
		return
	}

	n.LData += offset
	n.RData += offset
}

// TreeDepth returns the number of levels in the tree rooted at root. Child
// indices outside nodes are ignored.
func TreeDepth(nodes []BvhNode, root uint32) int {
	if int(root) >= len(nodes) {
		return 0
	}

	type entry struct {
		index uint32
		depth int
	}
	maxDepth := 0
	pending := []entry{{root, 1}}
	for len(pending) > 0 {
		cur := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		if cur.depth > maxDepth {
			maxDepth = cur.depth
		}

		node := &nodes[cur.index]
		if node.IsLeaf() {
			continue
		}
		left, right := node.GetChildNodes()
		for _, child := range []uint32{left, right} {
			if int(child) < len(nodes) {
				pending = append(pending, entry{child, cur.depth + 1})
			}
		}
	}
	return maxDepth
}
