package driver

import "container/heap"

type queuedEvent struct {
	rec EventRecord
	seq int
}

// EventQueue implements heap.Interface and orders events by time. Events at
// the same time keep trace order.
type EventQueue []queuedEvent

func (eq EventQueue) Len() int { return len(eq) }
func (eq EventQueue) Less(i, j int) bool {
	if eq[i].rec.Time != eq[j].rec.Time {
		return eq[i].rec.Time < eq[j].rec.Time
	}
	return eq[i].seq < eq[j].seq
}
func (eq EventQueue) Swap(i, j int) { eq[i], eq[j] = eq[j], eq[i] }

func (eq *EventQueue) Push(x any) {
	*eq = append(*eq, x.(queuedEvent))
}

func (eq *EventQueue) Pop() any {
	old := *eq
	n := len(old)
	item := old[n-1]
	*eq = old[0 : n-1]
	return item
}

var _ heap.Interface = (*EventQueue)(nil)
