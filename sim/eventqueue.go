package sim

import (
	"container/heap"
	"container/list"
	"sync"
)

// An EventQueue hands out events in time order.
type EventQueue interface {
	Push(evt Event)
	Pop() Event
	Len() int
	Peek() Event
}

// EventQueueImpl is a thread-safe event queue backed by a binary heap.
type EventQueueImpl struct {
	sync.Mutex
	events eventHeap
}

// NewEventQueue creates an empty EventQueueImpl.
func NewEventQueue() *EventQueueImpl {
	q := &EventQueueImpl{
		events: make(eventHeap, 0),
	}

	heap.Init(&q.events)

	return q
}

// Push adds an event to the queue.
func (q *EventQueueImpl) Push(evt Event) {
	q.Lock()
	heap.Push(&q.events, evt)
	q.Unlock()
}

// Pop removes and returns the earliest event in the queue.
func (q *EventQueueImpl) Pop() Event {
	q.Lock()
	e := heap.Pop(&q.events).(Event)
	q.Unlock()

	return e
}

// Len returns the number of events in the queue.
func (q *EventQueueImpl) Len() int {
	q.Lock()
	l := q.events.Len()
	q.Unlock()

	return l
}

// Peek returns the earliest event without removing it.
func (q *EventQueueImpl) Peek() Event {
	q.Lock()
	evt := q.events[0]
	q.Unlock()

	return evt
}

type eventHeap []Event

func (h eventHeap) Len() int {
	return len(h)
}

func (h eventHeap) Less(i, j int) bool {
	return h[i].Time() < h[j].Time()
}

func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *eventHeap) Push(x any) {
	*h = append(*h, x.(Event))
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	evt := old[n-1]
	*h = old[:n-1]

	return evt
}

// An InsertionQueue keeps events sorted in a linked list. It beats the heap
// when most pushed events land near the front of the queue.
type InsertionQueue struct {
	mu sync.RWMutex
	l  *list.List
}

// NewInsertionQueue creates an empty InsertionQueue.
func NewInsertionQueue() *InsertionQueue {
	return &InsertionQueue{
		l: list.New(),
	}
}

// Push inserts an event before the first queued event with a later time.
func (q *InsertionQueue) Push(evt Event) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for ele := q.l.Front(); ele != nil; ele = ele.Next() {
		if ele.Value.(Event).Time() > evt.Time() {
			q.l.InsertBefore(evt, ele)
			return
		}
	}

	q.l.PushBack(evt)
}

// Pop removes and returns the event with the smallest time.
func (q *InsertionQueue) Pop() Event {
	q.mu.Lock()
	evt := q.l.Remove(q.l.Front())
	q.mu.Unlock()

	return evt.(Event)
}

// Len returns the number of events in the queue.
func (q *InsertionQueue) Len() int {
	q.mu.RLock()
	l := q.l.Len()
	q.mu.RUnlock()

	return l
}

// Peek returns the event at the front of the queue without removing it.
func (q *InsertionQueue) Peek() Event {
	q.mu.RLock()
	evt := q.l.Front().Value.(Event)
	q.mu.RUnlock()

	return evt
}
