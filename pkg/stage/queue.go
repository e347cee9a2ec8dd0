package stage

import (
	"math"
	"time"
)

// Priority selects a call-later lane.
type Priority int

const (
	// PriorityImmediate tasks all run at the start of the next tick.
	PriorityImmediate Priority = iota
	// PriorityHigh is the first timed lane.
	PriorityHigh
	// PriorityNormal is the second timed lane.
	PriorityNormal
	// PriorityLow is the last timed lane.
	PriorityLow

	priorityCount = int(PriorityLow) + 1
)

var defaultAllocations = [priorityCount]time.Duration{
	time.Duration(math.MaxInt64),
	300 * time.Millisecond,
	200 * time.Millisecond,
	100 * time.Millisecond,
}

func (p Priority) String() string {
	switch p {
	case PriorityImmediate:
		return "immediate"
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}

func (p Priority) valid() bool {
	return p >= PriorityImmediate && p <= PriorityLow
}

type task struct {
	context any
	fn      func()
}

// CallLater queues fn to run on a later tick. The task is skipped if ctx has
// been disposed by the time its turn comes.
func (s *Stage) CallLater(ctx any, fn func(), priority Priority) {
	if fn == nil {
		s.logger.Warn("stage usage error", "op", "CallLater", "reason", "nil function")
		return
	}
	if !priority.valid() {
		s.logger.Warn("stage usage error", "op", "CallLater", "reason", "unknown priority", "priority", int(priority))
		return
	}
	s.queues[priority] = append(s.queues[priority], task{context: ctx, fn: fn})
}

// Pending returns the number of tasks waiting in a lane.
func (s *Stage) Pending(p Priority) int {
	if !p.valid() {
		return 0
	}
	return len(s.queues[p])
}

// TaskPriorityTimeAllocation returns the budget of a lane.
func (s *Stage) TaskPriorityTimeAllocation(p Priority) time.Duration {
	if !p.valid() {
		return 0
	}
	return s.allocated[p]
}

// SetTaskPriorityTimeAllocation changes the budget of a lane, never below
// MinTaskPriorityTimeAllocation.
func (s *Stage) SetTaskPriorityTimeAllocation(p Priority, d time.Duration) {
	if !p.valid() {
		s.logger.Warn("stage usage error", "op", "SetTaskPriorityTimeAllocation", "reason", "unknown priority", "priority", int(p))
		return
	}
	s.allocated[p] = max(d, MinTaskPriorityTimeAllocation)
}

func (s *Stage) pop(p Priority) task {
	q := s.queues[p]
	t := q[0]
	// release the slot so the closure can be collected
	q[0] = task{}
	if len(q) == 1 {
		s.queues[p] = q[:0]
	} else {
		s.queues[p] = q[1:]
	}
	return t
}

func (s *Stage) runTask(t task) {
	if t.context != nil && s.isDisposed != nil && s.isDisposed(t.context) {
		return
	}
	t.fn()
}

// laneBudget scales a lane allocation by the current frame budget.
func (s *Stage) laneBudget(p Priority) time.Duration {
	alloc := s.allocated[p]
	switch {
	case s.deactivated:
		return time.Duration(float64(alloc) * float64(s.maxDeactivated) / float64(s.maxFrame))
	case !s.userActivity:
		return time.Duration(float64(alloc) * float64(s.maxNoActivity) / float64(s.maxFrame))
	default:
		return alloc
	}
}

// handleCallLater is the first tick callback. The immediate lane drains
// first; the timed lanes then share the rest of the frame round-robin,
// resuming the lane that ran out of time on the previous frame.
func (s *Stage) handleCallLater() {
	if s.lastFrameElapsed > slowFrameThreshold {
		s.logger.Warn("previous frame was slow", "elapsed", s.lastFrameElapsed)
	}

	allStop := s.frameStart.Add(s.frameBudget())

	// countdown skips tasks queued by the tasks themselves
	for countdown := len(s.queues[PriorityImmediate]); countdown > 0; countdown-- {
		if s.clock.Now().After(allStop) {
			return
		}
		s.runTask(s.pop(PriorityImmediate))
	}

	minPriority := PriorityHigh
	lastPriority := s.activePriority - 1
	if s.activePriority == minPriority {
		lastPriority = PriorityLow
	}

	pStart := s.clock.Now()
	pStop := minTime(allStop, pStart.Add(s.laneBudget(s.activePriority)-s.activeElapsed))
	countdown := len(s.queues[s.activePriority])
	for {
		now := s.clock.Now()
		if countdown == 0 || now.After(pStop) {
			s.activeElapsed += now.Sub(pStart)

			if now.After(allStop) || s.activePriority == lastPriority {
				return
			}

			remaining := 0
			for p := minPriority; p <= PriorityLow; p++ {
				remaining += len(s.queues[p])
			}
			if remaining == 0 {
				return
			}

			s.activePriority++
			if s.activePriority > PriorityLow {
				s.activePriority = minPriority
			}
			s.activeElapsed = 0
			pStart = now
			pStop = minTime(allStop, pStart.Add(s.laneBudget(s.activePriority)))
			countdown = len(s.queues[s.activePriority])
			continue
		}

		countdown--
		s.runTask(s.pop(s.activePriority))
	}
}

func minTime(a, b time.Time) time.Time {
	if b.Before(a) {
		return b
	}
	return a
}
