package react

import (
	"cmp"
	"slices"
)

// Scheduler queues component instances that requested a re-render.
//
// An instance is queued at most once until the next flush. Flush processes
// a snapshot of the queue, parents before children, so work enqueued while
// flushing waits for the following flush. Like the rest of the package it is
// not safe for concurrent use; callers marshal onto the script loop.
type Scheduler struct {
	queue  []*Instance
	queued map[*Instance]struct{}

	// OnNeedsFrame, if set, is called when the queue goes from empty to
	// non-empty.
	OnNeedsFrame func()

	rerender func(*Instance)
}

func newScheduler() *Scheduler {
	return &Scheduler{queued: make(map[*Instance]struct{})}
}

// Enqueue marks inst dirty. Repeat calls before the next flush are no-ops.
func (s *Scheduler) Enqueue(inst *Instance) {
	if inst == nil {
		return
	}
	inst.pending = true
	if _, ok := s.queued[inst]; ok {
		return
	}
	s.queued[inst] = struct{}{}
	s.queue = append(s.queue, inst)
	if len(s.queue) == 1 && s.OnNeedsFrame != nil {
		s.OnNeedsFrame()
	}
}

// Pending returns the number of queued instances.
func (s *Scheduler) Pending() int { return len(s.queue) }

// Flush re-renders every queued instance that is still mounted and still
// dirty, returning how many rendered. An instance re-rendered as part of
// its parent earlier in the same flush is skipped.
func (s *Scheduler) Flush() int {
	if len(s.queue) == 0 {
		return 0
	}
	batch := s.queue
	s.queue = nil
	clear(s.queued)

	slices.SortStableFunc(batch, func(a, b *Instance) int {
		return cmp.Compare(a.depth, b.depth)
	})

	var n int
	for _, inst := range batch {
		if !inst.pending || !inst.mounted || !inst.phase.resting() {
			continue
		}
		s.rerender(inst)
		n++
	}
	return n
}

// reset drops everything queued.
func (s *Scheduler) reset() {
	for _, inst := range s.queue {
		inst.pending = false
	}
	s.queue = nil
	clear(s.queued)
}
