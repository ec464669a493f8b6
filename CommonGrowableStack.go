package softbody

/// A growable stack of node indices, used for iterative tree traversal.
/// Slice-backed so repeated queries reuse the same allocation.
type GrowableStack struct {
	entries []int
}

func NewGrowableStack() *GrowableStack {
	return &GrowableStack{
		entries: make([]int, 0, 16),
	}
}

// Return the stack's length
func (s *GrowableStack) GetCount() int {
	return len(s.entries)
}

// Push a new element onto the stack
func (s *GrowableStack) Push(value int) {
	s.entries = append(s.entries, value)
}

// Remove the top element from the stack and return its value.
// If the stack is empty, return nullNode.
func (s *GrowableStack) Pop() int {
	n := len(s.entries)
	if n == 0 {
		return nullNode
	}
	value := s.entries[n-1]
	s.entries = s.entries[:n-1]
	return value
}

// Drop all elements, keeping capacity.
func (s *GrowableStack) Reset() {
	s.entries = s.entries[:0]
}
