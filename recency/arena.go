package recency

// none marks the absence of a neighbour (or the end of the free chain).
const none int32 = -1

// node is one arena slot. Links are slot indices rather than pointers, so
// the list forms no pointer cycles and the whole arena is a single slice.
type node[K comparable, V any] struct {
	key K
	val V

	prev int32 // towards MRU
	next int32 // towards LRU; doubles as the free-chain link
}

// arena is an index-linked recency list: head is MRU, tail is LRU.
// Released slots are chained through next and reused by alloc.
type arena[K comparable, V any] struct {
	nodes []node[K, V]
	head  int32
	tail  int32
	free  int32
	len   int
}

func newArena[K comparable, V any](hint int) arena[K, V] {
	return arena[K, V]{
		nodes: make([]node[K, V], 0, hint),
		head:  none,
		tail:  none,
		free:  none,
	}
}

// alloc returns a detached slot holding k→v.
func (a *arena[K, V]) alloc(k K, v V) int32 {
	if i := a.free; i != none {
		a.free = a.nodes[i].next
		a.nodes[i] = node[K, V]{key: k, val: v, prev: none, next: none}
		return i
	}
	a.nodes = append(a.nodes, node[K, V]{key: k, val: v, prev: none, next: none})
	return int32(len(a.nodes) - 1)
}

// release returns a detached slot to the free chain and drops its key/value
// so the arena does not pin them.
func (a *arena[K, V]) release(i int32) {
	a.nodes[i] = node[K, V]{prev: none, next: a.free}
	a.free = i
}

// pushFront links a detached slot at MRU in O(1).
func (a *arena[K, V]) pushFront(i int32) {
	n := &a.nodes[i]
	n.prev = none
	n.next = a.head
	if a.head != none {
		a.nodes[a.head].prev = i
	}
	a.head = i
	if a.tail == none {
		a.tail = i
	}
	a.len++
}

// unlink detaches slot i from the list in O(1).
func (a *arena[K, V]) unlink(i int32) {
	n := &a.nodes[i]
	if n.prev != none {
		a.nodes[n.prev].next = n.next
	} else {
		a.head = n.next
	}
	if n.next != none {
		a.nodes[n.next].prev = n.prev
	} else {
		a.tail = n.prev
	}
	n.prev, n.next = none, none
	a.len--
}

// moveToFront promotes slot i to MRU in O(1).
func (a *arena[K, V]) moveToFront(i int32) {
	if i == a.head {
		return
	}
	a.unlink(i)
	a.pushFront(i)
}

// reset drops every slot at once.
func (a *arena[K, V]) reset() {
	clear(a.nodes)
	a.nodes = a.nodes[:0]
	a.head, a.tail, a.free = none, none, none
	a.len = 0
}
