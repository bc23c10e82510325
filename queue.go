package popsimgo

import "container/heap"

// queueItem wraps one scheduled payload with its simulated time and the
// insertion sequence used to break ties.
type queueItem struct {
	time    float64
	seq     uint64
	payload interface{}
}

type itemHeap []queueItem

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	if h[i].time != h[j].time {
		return h[i].time < h[j].time
	}
	return h[i].seq < h[j].seq
}

func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *itemHeap) Push(x interface{}) { *h = append(*h, x.(queueItem)) }

func (h *itemHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// EventQueue is a stable min-priority queue over scheduled items, ordered
// by (time, insertion sequence) so equal times dequeue FIFO. It holds
// heterogeneous payloads: kernel transition items, thunk items, or
// module-runtime record events.
type EventQueue struct {
	h       itemHeap
	nextSeq uint64
}

// NewEventQueue creates an empty queue.
func NewEventQueue() *EventQueue {
	q := new(EventQueue)
	heap.Init(&q.h)
	return q
}

// Push enqueues a payload at the given simulated time.
func (q *EventQueue) Push(t float64, payload interface{}) {
	heap.Push(&q.h, queueItem{time: t, seq: q.nextSeq, payload: payload})
	q.nextSeq++
}

// Pop removes and returns the earliest item. The third return value is
// false when the queue is empty.
func (q *EventQueue) Pop() (float64, interface{}, bool) {
	if len(q.h) == 0 {
		return 0, nil, false
	}
	it := heap.Pop(&q.h).(queueItem)
	return it.time, it.payload, true
}

// Len returns the number of queued items.
func (q *EventQueue) Len() int {
	return len(q.h)
}
