package queue

import (
	"testing"

	"github.com/kneurasense/kneuraflow/internal/domain"
)

func TestMemQueuePreservesOrder(t *testing.T) {
	q := NewMemQueue(4)

	q.Push(domain.Rejected{Reason: "r1"})
	q.Push(domain.Rejected{Reason: "r2"})

	got := q.Snapshot()
	if len(got) != 2 || got[0].Reason != "r1" || got[1].Reason != "r2" {
		t.Fatalf("unexpected snapshot: %+v", got)
	}

	got[0].Reason = "mutated"
	if q.Snapshot()[0].Reason != "r1" {
		t.Fatalf("snapshot must be a copy")
	}
}

func TestMemQueueEvictsOldest(t *testing.T) {
	q := NewMemQueue(2)

	q.Push(domain.Rejected{Reason: "r1"})
	q.Push(domain.Rejected{Reason: "r2"})
	q.Push(domain.Rejected{Reason: "r3"})

	if q.Len() != 2 {
		t.Fatalf("expected length 2, got %d", q.Len())
	}
	got := q.Snapshot()
	if got[0].Reason != "r2" || got[1].Reason != "r3" {
		t.Fatalf("expected oldest entry evicted, got %+v", got)
	}
	if q.Evicted() != 1 {
		t.Fatalf("expected 1 eviction, got %d", q.Evicted())
	}
}
