package urlqueue

import (
	"sync"

	"law_arch/internal/citation"
)

// TargetQueue is a FIFO of citations that drops duplicates, so a discovery
// pass that sees the same provision twice schedules it once.
type TargetQueue struct {
	seen  map[citation.Citation]bool
	queue []citation.Citation
	mu    sync.Mutex
}

func NewTargetQueue() *TargetQueue {
	return &TargetQueue{seen: make(map[citation.Citation]bool)}
}

func (q *TargetQueue) Add(c citation.Citation) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	c = citation.Normalize(c)
	if q.seen[c] {
		return false
	}
	q.seen[c] = true
	q.queue = append(q.queue, c)
	return true
}

func (q *TargetQueue) Get() (citation.Citation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.queue) == 0 {
		return citation.Citation{}, false
	}
	c := q.queue[0]
	q.queue = q.queue[1:]
	return c, true
}

func (q *TargetQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}

// Drain empties the queue and returns its contents in insertion order.
func (q *TargetQueue) Drain() []citation.Citation {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := q.queue
	q.queue = nil
	return out
}
