package clock

import (
	"container/heap"
	"sync"
	"time"
)

// Fake is a deterministic Clock for tests. Advance moves both wall and
// monotonic time together and fires any timers whose deadline has passed,
// in deadline order. Tests must never rely on real sleeps to observe
// orchestrator transitions; they call Advance instead.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	elapsed time.Duration
	timers  timerHeap
	seq     int
}

// NewFake returns a Fake clock starting at the given wall-clock instant.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) Monotonic() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.elapsed
}

type fakeTimer struct {
	deadline time.Duration
	interval time.Duration // 0 for one-shot
	f        func()
	cancelled bool
	seq      int
	index    int
}

type timerHeap []*fakeTimer

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].deadline != h[j].deadline {
		return h[i].deadline < h[j].deadline
	}
	return h[i].seq < h[j].seq
}
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *timerHeap) Push(x interface{}) {
	t := x.(*fakeTimer)
	t.index = len(*h)
	*h = append(*h, t)
}
func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

func (f *Fake) After(d time.Duration, cb func()) Cancel {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	t := &fakeTimer{deadline: f.elapsed + d, f: cb, seq: f.seq}
	heap.Push(&f.timers, t)
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		t.cancelled = true
	}
}

func (f *Fake) Every(d time.Duration, cb func()) Cancel {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	t := &fakeTimer{deadline: f.elapsed + d, interval: d, f: cb, seq: f.seq}
	heap.Push(&f.timers, t)
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		t.cancelled = true
	}
}

// Advance moves the clock forward by d, firing every timer (in deadline
// order, rescheduling intervals) whose deadline falls at or before the new
// elapsed time.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.elapsed += d
	target := f.elapsed
	var due []*fakeTimer
	for f.timers.Len() > 0 && f.timers[0].deadline <= target {
		t := heap.Pop(&f.timers).(*fakeTimer)
		if t.cancelled {
			continue
		}
		due = append(due, t)
		if t.interval > 0 {
			t.deadline += t.interval
			heap.Push(&f.timers, t)
		}
	}
	f.mu.Unlock()

	for _, t := range due {
		t.f()
	}
}
