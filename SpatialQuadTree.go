package softbody

import (
	"fmt"
	"log"
)

/// Stable identifier of a particle. Assigned by the integrator that owns
/// the particle; opaque to this package.
type ParticleID int

const nullNode = -1

type treeItem struct {
	id  ParticleID
	pos Vec2
}

type QuadTreeNode struct {
	aabb AABB

	// union: parent for live nodes, free-list link otherwise
	parent int
	next   int

	// children[0] == nullNode marks a leaf
	children [4]int

	// -1 = free node in pool
	depth int

	// A leaf at the depth ceiling stops splitting and holds any number of
	// items. Bounds recursion for coincident point clusters.
	bucket bool

	items []treeItem
}

func (node QuadTreeNode) IsLeaf() bool {
	return node.children[0] == nullNode
}

/// A quadtree over particle positions, inspired by the pooled dynamic AABB
/// tree broad-phase. Nodes live in a slice arena with a free list and are
/// addressed by index, never by pointer, so the pool can grow and nodes can
/// be recycled without ownership cycles. Each indexed particle keeps the
/// index of its current leaf for O(1) removal lookup.
///
/// The tree is not safe for concurrent mutation. Concurrent queries are
/// safe once all mutations of a rebuild phase have been applied.
type QuadTree struct {
	root int

	nodes        []QuadTreeNode
	nodeCount    int
	nodeCapacity int

	freeList int

	capacity    int
	maxDepth    int
	strictDepth bool

	leafOf map[ParticleID]int
	count  int

	logger *log.Logger
}

func MakeQuadTree(bounds AABB, cfg Config, logger *log.Logger) QuadTree {
	cfg = cfg.Sanitized()

	tree := QuadTree{}
	tree.capacity = cfg.QuadtreeCapacity
	tree.maxDepth = cfg.MaxDepth
	tree.strictDepth = cfg.StrictDepth
	tree.leafOf = make(map[ParticleID]int)
	tree.logger = logger

	tree.nodeCapacity = 16
	tree.nodeCount = 0
	tree.nodes = make([]QuadTreeNode, tree.nodeCapacity)

	// Build a linked list for the free list.
	for i := 0; i < tree.nodeCapacity-1; i++ {
		tree.nodes[i].next = i + 1
		tree.nodes[i].depth = -1
	}

	tree.nodes[tree.nodeCapacity-1].next = nullNode
	tree.nodes[tree.nodeCapacity-1].depth = -1
	tree.freeList = 0

	tree.root = tree.allocateNode()
	tree.nodes[tree.root].aabb = bounds
	tree.nodes[tree.root].depth = 0

	return tree
}

func NewQuadTree(bounds AABB, cfg Config, logger *log.Logger) *QuadTree {
	tree := MakeQuadTree(bounds, cfg, logger)
	return &tree
}

func (tree *QuadTree) logf(format string, args ...interface{}) {
	if tree.logger != nil {
		tree.logger.Printf(format, args...)
	}
}

// Allocate a node from the pool. Grow the pool if necessary.
func (tree *QuadTree) allocateNode() int {
	if tree.freeList == nullNode {
		Assert(tree.nodeCount == tree.nodeCapacity)

		// The free list is empty. Rebuild a bigger pool.
		tree.nodes = append(tree.nodes, make([]QuadTreeNode, tree.nodeCapacity)...)
		tree.nodeCapacity *= 2

		for i := tree.nodeCount; i < tree.nodeCapacity-1; i++ {
			tree.nodes[i].next = i + 1
			tree.nodes[i].depth = -1
		}

		tree.nodes[tree.nodeCapacity-1].next = nullNode
		tree.nodes[tree.nodeCapacity-1].depth = -1
		tree.freeList = tree.nodeCount
	}

	// Peel a node off the free list.
	nodeId := tree.freeList
	tree.freeList = tree.nodes[nodeId].next
	tree.nodes[nodeId].parent = nullNode
	tree.nodes[nodeId].children = [4]int{nullNode, nullNode, nullNode, nullNode}
	tree.nodes[nodeId].depth = 0
	tree.nodes[nodeId].bucket = false
	tree.nodes[nodeId].items = nil
	tree.nodeCount++

	return nodeId
}

// Return a node to the pool.
func (tree *QuadTree) freeNode(nodeId int) {
	Assert(0 <= nodeId && nodeId < tree.nodeCapacity)
	Assert(0 < tree.nodeCount)
	tree.nodes[nodeId].next = tree.freeList
	tree.nodes[nodeId].depth = -1
	tree.nodes[nodeId].items = nil
	tree.freeList = nodeId
	tree.nodeCount--
}

/// The world-space box the tree covers.
func (tree *QuadTree) Bounds() AABB {
	return tree.nodes[tree.root].aabb
}

/// Number of indexed particles.
func (tree *QuadTree) Count() int {
	return tree.count
}

// Quadrant selection is the single authority for which child holds a
// point: low half-open, high closed, so points on an internal split line
// land in exactly one child.
func quadrantOf(aabb AABB, p Vec2) int {
	c := aabb.GetCenter()
	q := 0
	if p.X >= c.X {
		q |= 1
	}
	if p.Y >= c.Y {
		q |= 2
	}
	return q
}

func childAABB(aabb AABB, quadrant int) AABB {
	c := aabb.GetCenter()
	child := aabb
	if quadrant&1 != 0 {
		child.LowerBound.X = c.X
	} else {
		child.UpperBound.X = c.X
	}
	if quadrant&2 != 0 {
		child.LowerBound.Y = c.Y
	} else {
		child.UpperBound.Y = c.Y
	}
	return child
}

/// Insert indexes a particle at position p. The containing leaf splits into
/// four quadrants when the insertion would exceed its capacity. A leaf at
/// the depth ceiling degrades to a flat bucket instead (logged); under
/// StrictDepth that overflow is returned as ErrCapacityExceeded.
func (tree *QuadTree) Insert(id ParticleID, p Vec2) error {
	if err := CheckFiniteVec2(p); err != nil {
		return err
	}

	if _, present := tree.leafOf[id]; present {
		return fmt.Errorf("particle %d: %w", id, ErrDuplicateHandle)
	}

	if !tree.nodes[tree.root].aabb.ContainsPoint(p) {
		return fmt.Errorf("particle %d at (%v, %v): %w", id, p.X, p.Y, ErrOutOfBounds)
	}

	index := tree.root
	for {
		if !tree.nodes[index].IsLeaf() {
			index = tree.nodes[index].children[quadrantOf(tree.nodes[index].aabb, p)]
			continue
		}

		node := &tree.nodes[index]

		if node.bucket || len(node.items) < tree.capacity {
			node.items = append(node.items, treeItem{id: id, pos: p})
			tree.leafOf[id] = index
			tree.count++
			return nil
		}

		if node.depth >= tree.maxDepth {
			if tree.strictDepth {
				return fmt.Errorf("particle %d, leaf at depth %d: %w", id, node.depth, ErrCapacityExceeded)
			}
			tree.logf("quadtree: leaf at max depth %d overflowed, degrading to flat bucket", node.depth)
			node.bucket = true
			continue
		}

		tree.split(index)
	}
}

// Split a full leaf into four child quadrants and redistribute its items.
func (tree *QuadTree) split(index int) {
	Assert(tree.nodes[index].IsLeaf())

	items := tree.nodes[index].items
	tree.nodes[index].items = nil

	// allocateNode may grow the arena, so child setup goes through indices.
	var kids [4]int
	for q := 0; q < 4; q++ {
		child := tree.allocateNode()
		kids[q] = child
		tree.nodes[child].aabb = childAABB(tree.nodes[index].aabb, q)
		tree.nodes[child].parent = index
		tree.nodes[child].depth = tree.nodes[index].depth + 1
	}
	tree.nodes[index].children = kids

	for _, it := range items {
		child := kids[quadrantOf(tree.nodes[index].aabb, it.pos)]
		tree.nodes[child].items = append(tree.nodes[child].items, it)
		tree.leafOf[it.id] = child
	}
}

/// Remove drops a previously inserted particle. Removing a particle the
/// index does not hold is ErrStaleHandle; callers treat it as a logged
/// no-op. Sibling leaves whose combined occupancy drops under capacity are
/// merged back into their parent.
func (tree *QuadTree) Remove(id ParticleID) error {
	leaf, present := tree.leafOf[id]
	if !present {
		return fmt.Errorf("particle %d: %w", id, ErrStaleHandle)
	}

	node := &tree.nodes[leaf]
	for i := range node.items {
		if node.items[i].id == id {
			node.items[i] = node.items[len(node.items)-1]
			node.items = node.items[:len(node.items)-1]
			break
		}
	}

	delete(tree.leafOf, id)
	tree.count--

	tree.tryMerge(node.parent)
	return nil
}

// Collapse child leaves back into their parent while the combined
// occupancy fits one leaf. Optional for correctness, cheap in the arena.
func (tree *QuadTree) tryMerge(index int) {
	for index != nullNode {
		total := 0
		mergeable := true
		for _, c := range tree.nodes[index].children {
			if c == nullNode || !tree.nodes[c].IsLeaf() || tree.nodes[c].bucket {
				mergeable = false
				break
			}
			total += len(tree.nodes[c].items)
		}

		if !mergeable || total > tree.capacity {
			return
		}

		var merged []treeItem
		for _, c := range tree.nodes[index].children {
			merged = append(merged, tree.nodes[c].items...)
			tree.freeNode(c)
		}
		tree.nodes[index].children = [4]int{nullNode, nullNode, nullNode, nullNode}
		tree.nodes[index].items = merged
		for _, it := range merged {
			tree.leafOf[it.id] = index
		}

		index = tree.nodes[index].parent
	}
}

/// Move updates a particle's indexed position. When the new position stays
/// inside the particle's current leaf box this is a constant-time update;
/// otherwise the particle is removed and reinserted. A position outside the
/// root box is ErrOutOfBounds and the particle stays indexed at its old
/// position; the owner must rebuild over enlarged bounds.
func (tree *QuadTree) Move(id ParticleID, p Vec2) error {
	if err := CheckFiniteVec2(p); err != nil {
		return err
	}

	leaf, present := tree.leafOf[id]
	if !present {
		return fmt.Errorf("particle %d: %w", id, ErrStaleHandle)
	}

	node := &tree.nodes[leaf]
	if node.aabb.ContainsPoint(p) {
		for i := range node.items {
			if node.items[i].id == id {
				node.items[i].pos = p
				return nil
			}
		}
	}

	if !tree.nodes[tree.root].aabb.ContainsPoint(p) {
		return fmt.Errorf("particle %d at (%v, %v): %w", id, p.X, p.Y, ErrOutOfBounds)
	}

	if err := tree.Remove(id); err != nil {
		return err
	}
	return tree.Insert(id, p)
}

/// Query walks the tree and invokes callback for every indexed particle
/// whose position lies inside aabb. Returning false from the callback
/// terminates the walk early. The traversal allocates its own stack, so
/// queries are restartable and safe to run concurrently once mutation has
/// stopped.
func (tree *QuadTree) Query(callback func(id ParticleID, pos Vec2) bool, aabb AABB) {
	stack := NewGrowableStack()
	stack.Push(tree.root)

	for stack.GetCount() > 0 {
		index := stack.Pop()
		if index == nullNode {
			continue
		}

		node := &tree.nodes[index]

		if !TestOverlapBoundingBoxes(node.aabb, aabb) {
			continue
		}

		if node.IsLeaf() {
			for _, it := range node.items {
				if aabb.ContainsPoint(it.pos) {
					if !callback(it.id, it.pos) {
						return
					}
				}
			}
		} else {
			for _, c := range node.children {
				stack.Push(c)
			}
		}
	}
}

/// QueryRange collects every particle whose position intersects the box.
func (tree *QuadTree) QueryRange(aabb AABB) []ParticleID {
	var found []ParticleID
	tree.Query(func(id ParticleID, pos Vec2) bool {
		found = append(found, id)
		return true
	}, aabb)
	return found
}

/// QueryRadius collects every particle within radius of center. Built on
/// the bounding box of the circle, then filtered by exact squared distance
/// so box corners outside the circle are ruled out.
func (tree *QuadTree) QueryRadius(center Vec2, radius float64) []ParticleID {
	var found []ParticleID
	rr := radius * radius
	tree.Query(func(id ParticleID, pos Vec2) bool {
		if SquaredDistance(center, pos) <= rr {
			found = append(found, id)
		}
		return true
	}, MakeAABBAroundCircle(center, radius))
	return found
}

/// Reset drops all particles and re-roots the tree over new bounds,
/// recycling the node arena.
func (tree *QuadTree) Reset(bounds AABB) {
	tree.nodes = tree.nodes[:cap(tree.nodes)]
	tree.nodeCapacity = len(tree.nodes)
	for i := 0; i < tree.nodeCapacity-1; i++ {
		tree.nodes[i].next = i + 1
		tree.nodes[i].depth = -1
		tree.nodes[i].items = nil
	}
	tree.nodes[tree.nodeCapacity-1].next = nullNode
	tree.nodes[tree.nodeCapacity-1].depth = -1
	tree.nodes[tree.nodeCapacity-1].items = nil
	tree.freeList = 0
	tree.nodeCount = 0
	tree.count = 0
	tree.leafOf = make(map[ParticleID]int)

	tree.root = tree.allocateNode()
	tree.nodes[tree.root].aabb = bounds
	tree.nodes[tree.root].depth = 0
}

// Compute the height of a sub-tree.
func (tree *QuadTree) ComputeHeight(nodeId int) int {
	Assert(0 <= nodeId && nodeId < tree.nodeCapacity)
	node := &tree.nodes[nodeId]

	if node.IsLeaf() {
		return 0
	}

	height := 0
	for _, c := range node.children {
		height = MaxInt(height, tree.ComputeHeight(c))
	}
	return 1 + height
}

func (tree *QuadTree) GetHeight() int {
	return tree.ComputeHeight(tree.root)
}

func (tree *QuadTree) ValidateStructure(index int) {
	if index == nullNode {
		return
	}

	if index == tree.root {
		Assert(tree.nodes[index].parent == nullNode)
	}

	node := &tree.nodes[index]

	if node.IsLeaf() {
		for _, c := range node.children {
			Assert(c == nullNode)
		}
		if !node.bucket {
			Assert(len(node.items) <= tree.capacity)
		}
		for _, it := range node.items {
			Assert(node.aabb.ContainsPoint(it.pos))
			Assert(tree.leafOf[it.id] == index)
		}
		return
	}

	Assert(len(node.items) == 0)

	for _, c := range node.children {
		Assert(0 <= c && c < tree.nodeCapacity)
		Assert(tree.nodes[c].parent == index)
		Assert(tree.nodes[c].depth == node.depth+1)
		tree.ValidateStructure(c)
	}
}

func (tree *QuadTree) Validate() {
	tree.ValidateStructure(tree.root)
	Assert(len(tree.leafOf) == tree.count)
}
