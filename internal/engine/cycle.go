package engine

// slotStack is an ordered set of slots: the evaluation stack during Derive
// and the DFS path during propagation. Entering a slot that is already on
// the stack is a dependency cycle.
type slotStack struct {
	slots []Slot
	index map[Slot]int
}

func newSlotStack() *slotStack {
	return &slotStack{index: make(map[Slot]int)}
}

func (s *slotStack) push(slot Slot) {
	s.index[slot] = len(s.slots)
	s.slots = append(s.slots, slot)
}

func (s *slotStack) pop() {
	top := s.slots[len(s.slots)-1]
	delete(s.index, top)
	s.slots = s.slots[:len(s.slots)-1]
}

func (s *slotStack) contains(slot Slot) bool {
	_, ok := s.index[slot]
	return ok
}

func (s *slotStack) len() int {
	return len(s.slots)
}

// cycle returns the error for re-entering slot: the stack from slot's
// first occurrence, closed by slot itself.
func (s *slotStack) cycle(slot Slot) *CyclicDependencyError {
	start := s.index[slot]
	path := make([]Slot, 0, len(s.slots)-start+1)
	path = append(path, s.slots[start:]...)
	path = append(path, slot)
	return &CyclicDependencyError{Path: path}
}
