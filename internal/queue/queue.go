// Package queue provides an unbounded FIFO that announces every enqueue and
// dequeue to its listeners.
//
// Listeners only observe. Work is claimed by calling Dequeue, so several
// listeners may log the same enqueue while exactly one consumer takes the
// item.
package queue

import "sync"

// Listener is called with the item that was enqueued or dequeued.
type Listener[T any] func(item T)

type node[T any] struct {
	value T
	next  *node[T]
}

// Queue is safe for concurrent use. Listeners run on the calling goroutine
// after the queue lock is released, in registration order.
type Queue[T any] struct {
	mu     sync.Mutex
	head   *node[T]
	tail   *node[T]
	length int

	onEnqueue []Listener[T]
	onDequeue []Listener[T]
}

func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

// OnEnqueue registers fn to run after every Enqueue.
func (q *Queue[T]) OnEnqueue(fn Listener[T]) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onEnqueue = append(q.onEnqueue, fn)
}

// OnDequeue registers fn to run after every Dequeue that removed an item.
func (q *Queue[T]) OnDequeue(fn Listener[T]) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onDequeue = append(q.onDequeue, fn)
}

func (q *Queue[T]) Enqueue(item T) {
	q.mu.Lock()
	n := &node[T]{value: item}
	if q.tail == nil {
		q.head = n
	} else {
		q.tail.next = n
	}
	q.tail = n
	q.length++
	listeners := q.onEnqueue
	q.mu.Unlock()

	for _, fn := range listeners {
		fn(item)
	}
}

// Dequeue removes the oldest item. ok is false when the queue is empty.
func (q *Queue[T]) Dequeue() (item T, ok bool) {
	q.mu.Lock()
	if q.head == nil {
		q.mu.Unlock()
		return item, false
	}
	n := q.head
	q.head = n.next
	if q.head == nil {
		q.tail = nil
	}
	q.length--
	listeners := q.onDequeue
	q.mu.Unlock()

	for _, fn := range listeners {
		fn(n.value)
	}
	return n.value, true
}

// Peek returns the oldest item without removing it.
func (q *Queue[T]) Peek() (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.head == nil {
		return item, false
	}
	return q.head.value, true
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.length
}
