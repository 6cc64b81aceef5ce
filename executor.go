package linesim

import (
	"context"
	"fmt"

	"github.com/zoobzio/metricz"
)

// taskExecutor runs single task instances through their full lifecycle:
//
//	wait (acquire crew + all critical equipment)
//	rule A rest, if any crew member's consecutive work clock tripped
//	work (truncated-normal duration)
//	quality check on M tasks — a failure voids the interval, releases
//	  everything and re-queues from scratch
//	rule B rest, if the task's load score exceeds the threshold
//	release and log
//
// Rework deliberately re-acquires from scratch so other ready tasks can
// overtake while the failed one waits its turn again; that is what lets
// the two rest rules compose with re-entry.
type taskExecutor struct {
	cfg       *Config
	pool      *WorkerPool
	equipment *EquipmentManager
	log       *Log
	rng       *rng
	metrics   *metricz.Registry
}

// run executes one instance of task t for the given unit. It returns the
// final rework count, or ErrHorizon when the run ended mid-lifecycle —
// in which case no event for the unfinished phase was emitted.
func (x *taskExecutor) run(ctx context.Context, p *proc, engineID int, t *Task) (int, error) {
	reworkCount := 0
	for {
		waitStart := p.Now()

		workers, err := x.pool.Acquire(p, t.RequiredWorkers)
		if err != nil {
			return reworkCount, err
		}
		acq, criticalTools, err := x.equipment.Request(p, t.RequiredTools, 1)
		if err != nil {
			x.pool.Release(workers)
			return reworkCount, err
		}

		if waitEnd := p.Now(); waitEnd > waitStart {
			x.log.Append(Event{
				EngineID: engineID,
				StepID:   t.StepID,
				TaskName: fmt.Sprintf("%s (waiting)", t.TaskName),
				OpType:   t.OpType,
				Start:    waitStart,
				End:      waitEnd,
				Kind:     EventWaiting,
			})
		}

		for _, name := range criticalTools {
			x.equipment.BeginUsage(name)
		}

		// Rule A: time-triggered rest, before the work interval.
		if x.pool.NeedsTimeRest(workers, x.cfg.RestTimeThreshold) {
			restStart := p.Now()
			if err := x.pool.EnterRest(p, workers, x.cfg.RestDurationTime); err != nil {
				x.releaseAll(acq, criticalTools, workers)
				return reworkCount, err
			}
			x.log.Append(Event{
				EngineID:  engineID,
				StepID:    t.StepID,
				TaskName:  fmt.Sprintf("%s (rest: time)", t.TaskName),
				OpType:    t.OpType,
				Start:     restStart,
				End:       p.Now(),
				Kind:      EventRest,
				WorkerIDs: workerIDs(workers),
				Equipment: criticalTools,
			})
			x.metrics.Counter(MetricRestsTotal).Inc()
		}

		workStart := p.Now()
		duration := x.rng.duration(t.StdDuration, t.TimeVariance)
		if err := p.Sleep(duration); err != nil {
			x.releaseAll(acq, criticalTools, workers)
			return reworkCount, err
		}
		x.pool.AddWorkTime(workers, duration, t.WorkLoadScore, workStart)
		workEnd := p.Now()

		// Quality check: M tasks only.
		if t.CanRework() && x.rng.bernoulli(t.ReworkProb) {
			reworkCount++
			x.log.Append(Event{
				EngineID:    engineID,
				StepID:      t.StepID,
				TaskName:    fmt.Sprintf("%s (rework #%d)", t.TaskName, reworkCount),
				OpType:      t.OpType,
				Start:       workStart,
				End:         workEnd,
				Kind:        EventRework,
				WorkerIDs:   workerIDs(workers),
				Equipment:   criticalTools,
				ReworkCount: reworkCount,
			})
			x.metrics.Counter(MetricReworksTotal).Inc()
			signalRework(ctx, engineID, t.StepID, reworkCount)
			x.releaseAll(acq, criticalTools, workers)
			continue
		}

		// Rule B: load-triggered rest, after the work interval. Its event
		// is logged after the NORMAL one so the log keeps occurrence order.
		var loadRest *Event
		if t.WorkLoadScore > x.cfg.RestLoadThreshold {
			restStart := p.Now()
			if err := x.pool.EnterRest(p, workers, x.cfg.RestDurationLoad); err != nil {
				x.releaseAll(acq, criticalTools, workers)
				return reworkCount, err
			}
			loadRest = &Event{
				EngineID:  engineID,
				StepID:    t.StepID,
				TaskName:  fmt.Sprintf("%s (rest: load)", t.TaskName),
				OpType:    t.OpType,
				Start:     restStart,
				End:       p.Now(),
				Kind:      EventRest,
				WorkerIDs: workerIDs(workers),
				Equipment: criticalTools,
			}
			x.metrics.Counter(MetricRestsTotal).Inc()
		}

		for _, name := range criticalTools {
			x.equipment.EndUsage(name)
		}
		x.equipment.Release(acq)
		x.pool.IncrementTasksCompleted(workers)
		x.pool.Release(workers)

		x.log.Append(Event{
			EngineID:    engineID,
			StepID:      t.StepID,
			TaskName:    t.TaskName,
			OpType:      t.OpType,
			Start:       workStart,
			End:         workEnd,
			Kind:        EventNormal,
			WorkerIDs:   workerIDs(workers),
			Equipment:   criticalTools,
			ReworkCount: reworkCount,
		})
		if loadRest != nil {
			x.log.Append(*loadRest)
		}
		x.metrics.Counter(MetricTasksCompleted).Inc()
		return reworkCount, nil
	}
}

// releaseAll closes usage intervals and returns every held resource;
// used on both the rework path and horizon unwinding.
func (x *taskExecutor) releaseAll(acq *acquisition, criticalTools []string, workers []*Worker) {
	for _, name := range criticalTools {
		x.equipment.EndUsage(name)
	}
	x.equipment.Release(acq)
	x.pool.Release(workers)
}
