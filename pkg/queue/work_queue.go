package queue

import (
	"container/heap"
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"article-scraper/pkg/models"
)

// --- Priority Queue Implementation ---

// pqItem represents an item in the priority queue
type pqItem struct {
	workItem *models.WorkItem
	priority int    // Lower value means higher priority (link depth)
	seq      uint64 // Insertion order; breaks ties so equal depths stay FIFO
	index    int    // The index of the item in the heap (required by heap interface)
}

// priorityQueue implements heap.Interface
type priorityQueue []*pqItem

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].priority != pq[j].priority {
		return pq[i].priority < pq[j].priority
	}
	return pq[i].seq < pq[j].seq
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue) Push(x any) {
	item := x.(*pqItem)
	item.index = len(*pq)
	*pq = append(*pq, item)
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil  // avoid memory leak
	item.index = -1 // for safety
	*pq = old[0 : n-1]
	return item
}

// WorkQueue is a blocking, closable queue of work items ordered by depth, then insertion order
type WorkQueue struct {
	pq     priorityQueue
	mu     sync.Mutex
	cond   *sync.Cond // Signalled on Add, broadcast on Close and context cancellation
	closed bool
	seq    uint64
	log    *logrus.Entry
}

// NewWorkQueue creates an empty queue
func NewWorkQueue(logger *logrus.Entry) *WorkQueue {
	q := &WorkQueue{log: logger}
	q.cond = sync.NewCond(&q.mu)
	heap.Init(&q.pq)
	return q
}

// Add pushes a work item. Returns false if the queue is already closed.
func (q *WorkQueue) Add(item *models.WorkItem) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		q.log.Debugf("Attempted to add item to closed queue: %s", item.URL)
		return false
	}
	q.seq++
	heap.Push(&q.pq, &pqItem{workItem: item, priority: item.Depth, seq: q.seq})
	q.cond.Signal() // Wake one waiting worker
	return true
}

// Pop blocks until an item is available or the queue is closed and drained
func (q *WorkQueue) Pop() (*models.WorkItem, bool) {
	return q.PopContext(context.Background())
}

// PopContext is Pop that also gives up when ctx ends. Returns nil and false when
// the queue is closed and empty or ctx is done.
func (q *WorkQueue) PopContext(ctx context.Context) (*models.WorkItem, bool) {
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.pq) == 0 {
		if q.closed || ctx.Err() != nil {
			return nil, false
		}
		q.cond.Wait()
	}
	if ctx.Err() != nil {
		return nil, false
	}
	return heap.Pop(&q.pq).(*pqItem).workItem, true
}

// Close stops accepting items and wakes every waiter. Remaining items can still be popped.
func (q *WorkQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		q.cond.Broadcast()
	}
}

// Drain removes and returns every pending item
func (q *WorkQueue) Drain() []*models.WorkItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := make([]*models.WorkItem, 0, len(q.pq))
	for len(q.pq) > 0 {
		items = append(items, heap.Pop(&q.pq).(*pqItem).workItem)
	}
	return items
}

// Len returns the current number of items in the queue
func (q *WorkQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pq)
}
