package linesim

import (
	"container/heap"
)

// scheduler is the cooperative discrete-event core. It advances a
// monotonically non-decreasing virtual clock (in minutes) and runs the
// activities spawned onto it one at a time: exactly one goroutine executes
// between two suspension points, and the baton is handed back to the
// scheduler loop over a channel at every sleep, resource wait, or
// completion. This keeps every run with a fixed seed fully deterministic
// without any locking inside the resource managers.
//
// Activities suspend in exactly three ways:
//   - Sleep: a virtual-time delay, served from the timer heap,
//   - park: an open-ended wait on a resource queue, ended by unpark,
//   - completion: the activity function returns.
//
// When the clock would pass the horizon, the run stops: every parked and
// sleeping activity is resumed with an abort flag so it can unwind its
// stack (releasing whatever it holds) without emitting further events.
type scheduler struct {
	yield   chan struct{}
	parked  map[*proc]struct{}
	ready   []*proc
	timers  timerHeap
	now     float64
	horizon float64
	seq     uint64
	stopped bool
}

// proc is one cooperative activity. The resume channel carries true for a
// normal wake-up and false when the run is shutting down.
type proc struct {
	s      *scheduler
	resume chan bool
}

type timerEntry struct {
	p   *proc
	at  float64
	seq uint64
}

type timerHeap []timerEntry

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].at != h[j].at {
		return h[i].at < h[j].at
	}
	return h[i].seq < h[j].seq
}
func (h timerHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *timerHeap) Push(x any)        { *h = append(*h, x.(timerEntry)) }
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

func newScheduler(horizon float64) *scheduler {
	return &scheduler{
		yield:   make(chan struct{}),
		parked:  make(map[*proc]struct{}),
		horizon: horizon,
	}
}

// Now returns the current virtual time in minutes.
func (s *scheduler) Now() float64 { return s.now }

// Horizon returns the run's time budget.
func (s *scheduler) Horizon() float64 { return s.horizon }

// Stopped reports whether the horizon has been reached.
func (s *scheduler) Stopped() bool { return s.stopped }

// Spawn schedules fn as a new activity, runnable at the current virtual
// time. It may be called before Run or from a running activity; the new
// activity does not execute until the scheduler hands it the baton.
func (s *scheduler) Spawn(fn func(p *proc)) {
	p := &proc{s: s, resume: make(chan bool, 1)}
	s.ready = append(s.ready, p)
	go func() {
		if !<-p.resume {
			s.yield <- struct{}{}
			return
		}
		fn(p)
		s.yield <- struct{}{}
	}()
}

// Run drives the event loop until no activity remains runnable or the
// virtual clock reaches the horizon, then unwinds everything still
// suspended. Returns the final virtual time.
func (s *scheduler) Run() float64 {
	for {
		for len(s.ready) > 0 {
			p := s.ready[0]
			s.ready = s.ready[1:]
			p.resume <- true
			<-s.yield
		}
		if s.timers.Len() == 0 {
			break
		}
		e := heap.Pop(&s.timers).(timerEntry)
		if e.at > s.horizon {
			s.now = s.horizon
			s.ready = append(s.ready, e.p) // unwound below
			break
		}
		s.now = e.at
		s.ready = append(s.ready, e.p)
	}
	s.shutdown()
	if s.now > s.horizon {
		s.now = s.horizon
	}
	return s.now
}

// shutdown aborts every remaining activity. Unwinding activities may
// release resources and move waiters back onto the ready queue, so the
// loop drains all three pools until quiescent.
func (s *scheduler) shutdown() {
	s.stopped = true
	for {
		var p *proc
		switch {
		case len(s.ready) > 0:
			p = s.ready[0]
			s.ready = s.ready[1:]
		case s.timers.Len() > 0:
			p = heap.Pop(&s.timers).(timerEntry).p
		case len(s.parked) > 0:
			for q := range s.parked {
				p = q
				break
			}
			delete(s.parked, p)
		default:
			return
		}
		p.resume <- false
		<-s.yield
	}
}

// Now returns the current virtual time as seen by the activity.
func (p *proc) Now() float64 { return p.s.now }

// Sleep suspends the activity for d virtual minutes. A non-positive d
// still yields the baton so equal-time activities interleave fairly.
// Returns ErrHorizon if the run ends before the delay elapses.
func (p *proc) Sleep(d float64) error {
	if p.s.stopped {
		return ErrHorizon
	}
	if d < 0 {
		d = 0
	}
	p.s.seq++
	heap.Push(&p.s.timers, timerEntry{at: p.s.now + d, seq: p.s.seq, p: p})
	p.s.yield <- struct{}{}
	if !<-p.resume {
		return ErrHorizon
	}
	return nil
}

// park suspends the activity until another activity calls unpark, or the
// run shuts down. The caller must already have registered itself on the
// queue it is waiting for.
func (p *proc) park() error {
	if p.s.stopped {
		return ErrHorizon
	}
	p.s.parked[p] = struct{}{}
	p.s.yield <- struct{}{}
	if !<-p.resume {
		return ErrHorizon
	}
	return nil
}

// unpark moves a parked activity onto the ready queue at the current
// virtual time. Called by the activity that satisfied the wait; the woken
// activity runs only after the caller next suspends.
func (p *proc) unpark() {
	if _, ok := p.s.parked[p]; !ok {
		return
	}
	delete(p.s.parked, p)
	p.s.ready = append(p.s.ready, p)
}
