package sched

// Queue is a FIFO doubly-linked list, generic over its element type. It is
// the teacher's gen.GenericDoublyLinkedList pattern (src/gen/doubly_linked.go)
// rewritten against Go 1.21 type parameters instead of the teacher's
// genny code-generation template (see DESIGN.md) — the scheduler's run
// queue needs exactly this: O(1) enqueue at the tail, O(1) dequeue from
// the head, and O(n) removal of an arbitrary element by identity.
type Queue[T comparable] struct {
	first *queueNode[T]
	last  *queueNode[T]
}

type queueNode[T comparable] struct {
	prev, next *queueNode[T]
	value      T
}

// Empty reports whether the queue has no elements.
func (q *Queue[T]) Empty() bool {
	return q.first == nil
}

// Enqueue appends v to the tail of the queue.
func (q *Queue[T]) Enqueue(v T) {
	n := &queueNode[T]{value: v}
	if q.last == nil {
		q.first, q.last = n, n
		return
	}
	n.prev = q.last
	q.last.next = n
	q.last = n
}

// Dequeue removes and returns the element at the head of the queue. It
// panics if the queue is empty; callers must check Empty first.
func (q *Queue[T]) Dequeue() T {
	n := q.first
	if n == nil {
		panic("sched: Dequeue called on empty queue")
	}
	q.removeNode(n)
	return n.value
}

// Remove removes the first element equal to v from anywhere in the queue.
// It reports whether v was found. Removing an element not present is a
// no-op that returns false (see DESIGN.md's open-question decision for
// remove_from_runqueue).
func (q *Queue[T]) Remove(v T) bool {
	for n := q.first; n != nil; n = n.next {
		if n.value == v {
			q.removeNode(n)
			return true
		}
	}
	return false
}

func (q *Queue[T]) removeNode(n *queueNode[T]) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		q.first = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		q.last = n.prev
	}
	n.prev, n.next = nil, nil
}
