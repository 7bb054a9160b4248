package canbus

import "container/heap"

// cadenceItem is one PGN's next-due time in the scheduler heap.
type cadenceItem struct {
	pgn     PGN
	dueMs   int64
	index   int
}

// cadenceHeap is a min-heap on dueMs, grounded on the same
// container/heap jittered-periodic-scheduler pattern used for the
// teacher's device poller — here it earns its keep because the PGN
// table genuinely has many independently-cadenced items (1s/2s/5s),
// unlike the register cache's single-period poller.
type cadenceHeap []*cadenceItem

func (h cadenceHeap) Len() int            { return len(h) }
func (h cadenceHeap) Less(i, j int) bool  { return h[i].dueMs < h[j].dueMs }
func (h cadenceHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *cadenceHeap) Push(x any) {
	it := x.(*cadenceItem)
	it.index = len(*h)
	*h = append(*h, it)
}
func (h *cadenceHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}

// scheduler tracks, per PGN, when it is next due. DueSince pops every
// PGN whose due time has elapsed as of nowMs and reschedules it
// period_ms further out; PGNs not yet due are left untouched.
type scheduler struct {
	h cadenceHeap
}

func newScheduler(table []PGN, nowMs int64) *scheduler {
	s := &scheduler{}
	for _, p := range table {
		heap.Push(&s.h, &cadenceItem{pgn: p, dueMs: nowMs})
	}
	return s
}

func (s *scheduler) DueSince(nowMs int64) []PGN {
	var due []PGN
	for s.h.Len() > 0 && s.h[0].dueMs <= nowMs {
		item := heap.Pop(&s.h).(*cadenceItem)
		due = append(due, item.pgn)
		item.dueMs = nowMs + int64(item.pgn.Period)
		heap.Push(&s.h, item)
	}
	return due
}
