// Package sched implements the round-robin scheduler's run queue and
// selection rule: spec.md §4.B, ported from
// original_source/kernel/src/sched/alg/rr.cpp. It has no dependency on the
// buddy allocator other than klog, for the same leveled, allocation-free
// logging the kernel side uses.
package sched

import "github.com/Redd-Hibb/stacsos/klog"

// TCB is an opaque handle for a schedulable task. The scheduler never
// looks inside it; it only compares handles for identity, so any
// comparable type works (a pointer to a real task-control-block, an
// integer task ID, ...).
type TCB[T comparable] struct {
	ID T
}

// currentSlot holds {task, to_remove} for the currently-running task, per
// spec.md §3 ("current-task slot"). A task may ask for its own (or
// another's) removal while it is the active context; actually detaching
// it mid-execution would corrupt the queue state observed on return, so
// the request is deferred via toRemove until the next scheduling point.
type currentSlot[T comparable] struct {
	task     T
	hasTask  bool
	toRemove bool
}

// Scheduler holds one run queue and one current-task slot. It is not safe
// for concurrent use: per spec.md §5, its public operations are called
// only from the scheduling interrupt path or from within a critical
// section the caller has already established.
type Scheduler[T comparable] struct {
	runqueue Queue[T]
	current  currentSlot[T]
}

// New returns a Scheduler with an empty run queue and no current task.
func New[T comparable]() *Scheduler[T] {
	return &Scheduler[T]{}
}

// AddToRunqueue appends tcb to the tail of the run queue.
func (s *Scheduler[T]) AddToRunqueue(tcb T) {
	s.runqueue.Enqueue(tcb)
}

// RemoveFromRunqueue removes tcb from scheduling consideration. If tcb is
// the currently-running task, the removal is deferred (current.to_remove
// is set) rather than applied immediately, since detaching the active
// task mid-execution would corrupt state observed when this call returns.
// Otherwise tcb is removed from the run queue directly.
//
// Open question (spec.md §9): removing a tcb that is neither the current
// task nor present in the run queue is a no-op. See DESIGN.md for why.
func (s *Scheduler[T]) RemoveFromRunqueue(tcb T) {
	if s.current.hasTask && s.current.task == tcb {
		klog.Debugf("remove_from_runqueue: %v is current, deferring removal", tcb)
		s.current.toRemove = true
		return
	}
	if !s.runqueue.Remove(tcb) {
		klog.Debugf("remove_from_runqueue: %v not found, no-op", tcb)
	}
}

// SelectNextTask is invoked at each scheduling point and implements
// spec.md §4.B's selection rule:
//
//  1. If the run queue is empty and the current task asked to be removed,
//     the current slot is cleared and whatever it now holds (nothing) is
//     returned — this is how the system goes idle.
//  2. Otherwise, unless the current task asked to be removed, it is
//     rotated to the tail of the queue (standard round-robin), and the
//     new head of the queue becomes the current task.
func (s *Scheduler[T]) SelectNextTask() (T, bool) {
	if s.runqueue.Empty() {
		if s.current.toRemove {
			s.current.hasTask = false
			s.current.toRemove = false
			var zero T
			s.current.task = zero
		}
		return s.current.task, s.current.hasTask
	}

	if !s.current.toRemove && s.current.hasTask {
		s.runqueue.Enqueue(s.current.task)
	}

	s.current.toRemove = false
	s.current.task = s.runqueue.Dequeue()
	s.current.hasTask = true
	klog.Statsf("sched", "select_next_task: now running %v", s.current.task)
	return s.current.task, true
}

// Current returns the currently-running task, if any, without advancing
// the scheduler.
func (s *Scheduler[T]) Current() (T, bool) {
	return s.current.task, s.current.hasTask
}
