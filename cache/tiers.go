package cache

// tierList is an intrusive doubly linked list holding one priority tier's
// entries in recency order (head=MRU, tail=LRU). All operations are O(1)
// and must run under the cache lock. The key->entry map is owned by the
// cache itself; the list only tracks ordering.
type tierList[V any] struct {
	head *entry[V] // MRU
	tail *entry[V] // LRU
}

// pushFront inserts n at MRU.
func (l *tierList[V]) pushFront(n *entry[V]) {
	n.prev = nil
	n.next = l.head
	if l.head != nil {
		l.head.prev = n
	}
	l.head = n
	if l.tail == nil {
		l.tail = n
	}
}

// moveToFront promotes n to MRU.
func (l *tierList[V]) moveToFront(n *entry[V]) {
	if n == l.head {
		return
	}
	// detach
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	if l.tail == n {
		l.tail = n.prev
	}
	// insert at head
	n.prev = nil
	n.next = l.head
	if l.head != nil {
		l.head.prev = n
	}
	l.head = n
	if l.tail == nil {
		l.tail = n
	}
}

// remove detaches n from the list.
func (l *tierList[V]) remove(n *entry[V]) {
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	if l.head == n {
		l.head = n.next
	}
	if l.tail == n {
		l.tail = n.prev
	}
	n.prev, n.next = nil, nil
}

// back returns the tier's LRU entry, or nil when the tier is empty.
func (l *tierList[V]) back() *entry[V] { return l.tail }
