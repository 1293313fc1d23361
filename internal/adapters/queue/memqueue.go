package queue

import (
	"sync"

	"github.com/kneurasense/kneuraflow/internal/domain"
	"github.com/kneurasense/kneuraflow/internal/ports"
)

// MemQueue is a bounded in-memory FIFO of rejected payloads. When full, the
// oldest entry is evicted so the buffer always holds the most recent rejects.
type MemQueue struct {
	mu      sync.Mutex
	data    []domain.Rejected
	cap     int
	evicted uint64
}

func NewMemQueue(capacity int) *MemQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &MemQueue{
		data: make([]domain.Rejected, 0, capacity),
		cap:  capacity,
	}
}

func (q *MemQueue) Push(r domain.Rejected) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.data) >= q.cap {
		q.data = append(q.data[:0], q.data[1:]...)
		q.evicted++
	}
	q.data = append(q.data, r)
}

// Snapshot returns the buffered rejects, oldest first.
func (q *MemQueue) Snapshot() []domain.Rejected {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]domain.Rejected, len(q.data))
	copy(out, q.data)
	return out
}

func (q *MemQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.data)
}

func (q *MemQueue) Evicted() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.evicted
}

var _ ports.RejectQueue = (*MemQueue)(nil)
