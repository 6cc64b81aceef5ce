package linesim

import (
	"fmt"
	"sort"
)

// WorkerState is a worker's instantaneous activity.
type WorkerState string

// Worker states.
const (
	WorkerIdle    WorkerState = "IDLE"
	WorkerWorking WorkerState = "WORKING"
	WorkerResting WorkerState = "RESTING"
)

// FatigueSample is one point of a worker's fatigue history.
type FatigueSample struct {
	Time  float64 `json:"time"`
	Level float64 `json:"level"`
}

// Worker is one member of the pool. All fields are bookkeeping for the
// current run; workers live from driver start to result assembly.
type Worker struct {
	ID                  string          `json:"id"`
	State               WorkerState     `json:"state"`
	ConsecutiveWorkTime float64         `json:"consecutive_work_time"`
	TotalWorkTime       float64         `json:"total_work_time"`
	TotalRestTime       float64         `json:"total_rest_time"`
	TasksCompleted      int             `json:"tasks_completed"`
	FatigueLevel        float64         `json:"fatigue_level"`
	HighIntensityCount  int             `json:"high_intensity_count"`
	FatigueHistory      []FatigueSample `json:"fatigue_history"`

	index int // position in the pool, tie-break for selection
}

// needsTimeRest reports whether rule A fires for this worker.
func (w *Worker) needsTimeRest(threshold float64) bool {
	return w.ConsecutiveWorkTime >= threshold
}

// addWorkTime accrues a worked interval: consecutive and total work
// time, fatigue at duration*(load/10)*0.5 capped at 100, the
// high-intensity counter for REBA >= 7, and one history sample.
func (w *Worker) addWorkTime(duration float64, loadScore int, start float64) {
	w.ConsecutiveWorkTime += duration
	w.TotalWorkTime += duration

	increase := duration * (float64(loadScore) / 10.0) * 0.5
	w.FatigueLevel += increase
	if w.FatigueLevel > 100 {
		w.FatigueLevel = 100
	}
	if loadScore >= 7 {
		w.HighIntensityCount++
	}
	w.FatigueHistory = append(w.FatigueHistory, FatigueSample{Time: start + duration, Level: w.FatigueLevel})
}

// applyRest books a completed rest: total rest time accrues, the
// consecutive-work clock resets, and fatigue recovers two points per
// rested minute, floored at zero.
func (w *Worker) applyRest(duration, start float64) {
	w.TotalRestTime += duration
	w.ConsecutiveWorkTime = 0
	recovery := duration * 2
	if recovery > w.FatigueLevel {
		recovery = w.FatigueLevel
	}
	w.FatigueLevel -= recovery
	w.FatigueHistory = append(w.FatigueHistory, FatigueSample{Time: start + duration, Level: w.FatigueLevel})
}

// IdleTime derives the time not spent working or resting.
func (w *Worker) IdleTime(simDuration float64) float64 {
	idle := simDuration - w.TotalWorkTime - w.TotalRestTime
	if idle < 0 {
		return 0
	}
	return idle
}

// Utilization is the worked share of the run, clamped to [0,1].
func (w *Worker) Utilization(simDuration float64) float64 {
	if simDuration <= 0 {
		return 0
	}
	u := w.TotalWorkTime / simDuration
	if u > 1 {
		return 1
	}
	return u
}

type workerWaiter struct {
	p       *proc
	count   int
	granted []*Worker
}

// WorkerPool holds the run's workers and serves crew acquisitions.
// Blocked acquirers are served strictly FIFO; within one grant the
// least-loaded idle workers are picked first (ties by pool position).
// During a rest the crew stays held by its task: resting workers are
// never visible to other acquirers.
type WorkerPool struct {
	s       *scheduler
	workers []*Worker
	waiters []*workerWaiter
}

// NewWorkerPool creates count workers named Worker_01..Worker_NN, all
// idle.
func NewWorkerPool(s *scheduler, count int) *WorkerPool {
	pool := &WorkerPool{s: s}
	for i := 0; i < count; i++ {
		pool.workers = append(pool.workers, &Worker{
			ID:    fmt.Sprintf("Worker_%02d", i+1),
			State: WorkerIdle,
			index: i,
		})
	}
	return pool
}

// Workers returns the pool members in id order.
func (pool *WorkerPool) Workers() []*Worker { return pool.workers }

// Worker returns the member with the given id, or nil.
func (pool *WorkerPool) Worker(id string) *Worker {
	for _, w := range pool.workers {
		if w.ID == id {
			return w
		}
	}
	return nil
}

// IdleCount returns how many workers are currently idle.
func (pool *WorkerPool) IdleCount() int {
	n := 0
	for _, w := range pool.workers {
		if w.State == WorkerIdle {
			n++
		}
	}
	return n
}

// WorkingCount returns how many workers are currently on a task.
func (pool *WorkerPool) WorkingCount() int {
	n := 0
	for _, w := range pool.workers {
		if w.State == WorkerWorking {
			n++
		}
	}
	return n
}

// RestingCount returns how many workers are currently resting.
func (pool *WorkerPool) RestingCount() int {
	n := 0
	for _, w := range pool.workers {
		if w.State == WorkerResting {
			n++
		}
	}
	return n
}

// selectIdle picks count idle workers, least-loaded first. The caller
// has verified availability.
func (pool *WorkerPool) selectIdle(count int) []*Worker {
	var idle []*Worker
	for _, w := range pool.workers {
		if w.State == WorkerIdle {
			idle = append(idle, w)
		}
	}
	sort.SliceStable(idle, func(i, j int) bool {
		if idle[i].TotalWorkTime != idle[j].TotalWorkTime {
			return idle[i].TotalWorkTime < idle[j].TotalWorkTime
		}
		return idle[i].index < idle[j].index
	})
	picked := idle[:count]
	for _, w := range picked {
		w.State = WorkerWorking
	}
	return append([]*Worker(nil), picked...)
}

// Acquire blocks the calling activity until count workers are idle, then
// transitions them idle→working and returns them. Returns ErrHorizon if
// the run ends first.
func (pool *WorkerPool) Acquire(p *proc, count int) ([]*Worker, error) {
	if len(pool.waiters) == 0 && pool.IdleCount() >= count {
		return pool.selectIdle(count), nil
	}
	wt := &workerWaiter{p: p, count: count}
	pool.waiters = append(pool.waiters, wt)
	if err := p.park(); err != nil {
		pool.removeWaiter(wt)
		if wt.granted != nil {
			for _, w := range wt.granted {
				w.State = WorkerIdle
			}
		}
		return nil, err
	}
	return wt.granted, nil
}

// Release transitions each worker working→idle and serves as many
// blocked acquirers, in FIFO order, as the idle set now allows.
func (pool *WorkerPool) Release(workers []*Worker) {
	for _, w := range workers {
		w.State = WorkerIdle
	}
	pool.drainWaiters()
}

// drainWaiters grants queued acquisitions from the head while the idle
// set can satisfy them. The head blocks everyone behind it: skipping
// ahead would break the FIFO contract.
func (pool *WorkerPool) drainWaiters() {
	for len(pool.waiters) > 0 {
		head := pool.waiters[0]
		if pool.IdleCount() < head.count {
			return
		}
		head.granted = pool.selectIdle(head.count)
		pool.waiters = pool.waiters[1:]
		head.p.unpark()
	}
}

func (pool *WorkerPool) removeWaiter(wt *workerWaiter) {
	for i, cand := range pool.waiters {
		if cand == wt {
			pool.waiters = append(pool.waiters[:i], pool.waiters[i+1:]...)
			return
		}
	}
}

// EnterRest transitions the crew to resting, sleeps the rest duration in
// virtual time, then books the rest and returns the crew to working —
// not idle: the task still holds them, so no other task can take them
// mid-rest. An aborted rest books nothing.
func (pool *WorkerPool) EnterRest(p *proc, workers []*Worker, duration float64) error {
	for _, w := range workers {
		w.State = WorkerResting
	}
	start := p.Now()
	if err := p.Sleep(duration); err != nil {
		return err
	}
	for _, w := range workers {
		w.applyRest(duration, start)
		w.State = WorkerWorking
	}
	return nil
}

// AddWorkTime accrues a completed work interval on every crew member.
func (pool *WorkerPool) AddWorkTime(workers []*Worker, duration float64, loadScore int, start float64) {
	for _, w := range workers {
		w.addWorkTime(duration, loadScore, start)
	}
}

// NeedsTimeRest reports whether rule A fires for any crew member.
func (pool *WorkerPool) NeedsTimeRest(workers []*Worker, threshold float64) bool {
	for _, w := range workers {
		if w.needsTimeRest(threshold) {
			return true
		}
	}
	return false
}

// IncrementTasksCompleted bumps the per-worker completion tally.
func (pool *WorkerPool) IncrementTasksCompleted(workers []*Worker) {
	for _, w := range workers {
		w.TasksCompleted++
	}
}

func workerIDs(workers []*Worker) []string {
	ids := make([]string, len(workers))
	for i, w := range workers {
		ids[i] = w.ID
	}
	return ids
}
