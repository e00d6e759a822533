package scheduler

import "time"

// heapItem is one entry in the priority queue: just enough to order
// dispatch, with the full monitor state kept in Scheduler.monitors.
type heapItem struct {
	monitorID string
	deadline  time.Time
	index     int
}

// priorityQueue implements container/heap.Interface over heapItem,
// ordering by earliest deadline first.
type priorityQueue []*heapItem

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	return pq[i].deadline.Before(pq[j].deadline)
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue) Push(x any) {
	item := x.(*heapItem)
	item.index = len(*pq)
	*pq = append(*pq, item)
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[0 : n-1]
	return item
}
