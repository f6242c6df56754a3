package senie

// heap is the fixed slab of Var cells backing every VarVector's chain.
// Allocation pulls from a free list; a mark-and-sweep pass (driven by
// the VM, see vm.go) reclaims cells unreachable from the value stack
// once the free list shrinks below a watermark.
type heap struct {
	slab      []Var
	freeHead  int32 // index of first free cell, -1 if none
	availSize int32
	watermark int32
}

const noIndex int32 = -1

func newHeap(size int) *heap {
	h := &heap{slab: make([]Var, size)}
	h.resetFreeList()
	return h
}

func (h *heap) resetFreeList() {
	n := len(h.slab)
	h.freeHead = noIndex
	for i := n - 1; i >= 0; i-- {
		h.slab[i] = Var{Type: VarInt, prev: noIndex, next: h.freeHead}
		h.freeHead = int32(i)
	}
	h.availSize = int32(n)
}

// alloc borrows a cell from the free list. ok is false if the heap is
// exhausted.
func (h *heap) alloc() (idx int32, ok bool) {
	if h.freeHead == noIndex {
		return noIndex, false
	}
	idx = h.freeHead
	h.freeHead = h.slab[idx].next
	h.availSize--
	h.slab[idx] = Var{Type: VarInt, prev: noIndex, next: noIndex}
	return idx, true
}

func (h *heap) at(idx int32) *Var {
	return &h.slab[idx]
}

// appendToChain links val onto the tail of the chain headed at headIdx,
// mirroring the original's DL_APPEND semantics (head may be noIndex).
func (h *heap) appendToChain(headIdx int32, val int32) int32 {
	if headIdx == noIndex {
		return val
	}
	tail := headIdx
	for h.slab[tail].next != noIndex {
		tail = h.slab[tail].next
	}
	h.slab[tail].next = val
	h.slab[val].prev = tail
	return headIdx
}

// markChain marks every cell reachable from the chain headed at idx,
// recursing into nested VarVector cells.
func (h *heap) markChain(idx int32) {
	for idx != noIndex {
		cell := &h.slab[idx]
		cell.mark = true
		if cell.Type == VarVector {
			h.markChain(cell.Heap)
		}
		idx = cell.next
	}
}

// sweep resets every unmarked cell to a default Int and rebuilds the
// free list; marked cells have their mark bit cleared for the next
// cycle.
func (h *heap) sweep() {
	h.freeHead = noIndex
	h.availSize = 0
	for i := len(h.slab) - 1; i >= 0; i-- {
		c := &h.slab[i]
		if c.mark {
			c.mark = false
			continue
		}
		*c = Var{Type: VarInt, prev: noIndex, next: h.freeHead}
		h.freeHead = int32(i)
		h.availSize++
	}
}

// vectorToSlice reads a VarVector's chain into a plain slice, used by
// PILE and by native bindings that need to inspect vector contents.
func (h *heap) vectorToSlice(headIdx int32) []Var {
	var out []Var
	for idx := headIdx; idx != noIndex; idx = h.slab[idx].next {
		out = append(out, h.slab[idx])
	}
	return out
}
