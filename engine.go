package linesim

import (
	"context"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
)

// epsilonYield is the per-UUP engine's dispatch pause. It is not a busy
// loop: under the cooperative scheduler it hands control to the running
// task executors and only advances time when nothing else is runnable.
const epsilonYield = 0.1

// pipelineBackoff is how long the pipeline controller waits before
// re-checking worker headroom when a new unit cannot be admitted.
const pipelineBackoff = 10.0

// runState is the mutable heart of one run: the scheduler, the resource
// managers, the event log, and the unit bookkeeping. It lives inside a
// single Run invocation; the kernel keeps no state between runs.
type runState struct {
	ctx       context.Context
	cfg       *Config
	sched     *scheduler
	dag       *DAG
	pool      *WorkerPool
	equipment *EquipmentManager
	log       *Log
	exec      *taskExecutor
	metrics   *metricz.Registry
	hooks     *hookz.Hooks[RunEvent]
	simID     string

	engineStarts     map[int]float64
	engineEnds       map[int]float64
	enginesCompleted int
	spawned          int
}

// runUnit dispatches one unit under production across the DAG: every
// task whose predecessors have completed is launched as its own
// executor activity, and the engine re-computes the ready set after a
// small yield. The unit is done when every task has completed normally.
func (st *runState) runUnit(p *proc, engineID int) {
	completed := make(map[string]bool, st.dag.Len())
	running := make(map[string]bool)
	total := st.dag.Len()

	for len(completed) < total {
		if p.Now() >= st.sched.Horizon() {
			return
		}
		for _, id := range st.dag.Ready(completed) {
			if running[id] {
				continue
			}
			running[id] = true
			t := st.dag.Task(id)
			st.sched.Spawn(func(tp *proc) {
				if _, err := st.exec.run(st.ctx, tp, engineID, t); err != nil {
					return
				}
				delete(running, id)
				completed[id] = true
			})
		}
		if err := p.Sleep(epsilonYield); err != nil {
			return
		}
	}

	st.engineEnds[engineID] = p.Now()
	st.enginesCompleted++
	st.metrics.Counter(MetricEnginesDone).Inc()
	capitan.Info(st.ctx, SignalEngineCompleted,
		FieldSimID.Field(st.simID),
		FieldEngineID.Field(engineID),
		FieldVirtualTime.Field(p.Now()),
	)
	_ = st.hooks.Emit(st.ctx, HookEngineCompleted, RunEvent{ //nolint:errcheck
		SimID:            st.simID,
		EngineID:         engineID,
		EnginesCompleted: st.enginesCompleted,
		VirtualTime:      p.Now(),
	})
}

// startUnit books a new unit and spawns its engine activity.
func (st *runState) startUnit(p *proc, engineID int) {
	st.spawned++
	st.engineStarts[engineID] = p.Now()
	st.metrics.Counter(MetricEnginesSpawned).Inc()
	capitan.Info(st.ctx, SignalEngineStarted,
		FieldSimID.Field(st.simID),
		FieldEngineID.Field(engineID),
		FieldVirtualTime.Field(p.Now()),
	)
	st.sched.Spawn(func(up *proc) {
		st.runUnit(up, engineID)
	})
}

// pipelineController admits up to target+2 overlapping units. A new unit
// starts whenever enough workers are idle for the graph's first task;
// admissions are staggered by half that task's nominal duration, and a
// full pool backs off ten virtual minutes before re-checking.
func (st *runState) pipelineController(p *proc) {
	maxEngines := st.cfg.TargetOutput + 2

	starts := st.dag.StartNodes()
	if len(starts) == 0 {
		return
	}
	first := st.dag.Task(starts[0])

	engineID := 0
	for st.spawned < maxEngines && p.Now() < st.sched.Horizon() {
		if st.pool.IdleCount() >= first.RequiredWorkers {
			engineID++
			st.startUnit(p, engineID)
			if err := p.Sleep(first.StdDuration * 0.5); err != nil {
				return
			}
		} else {
			if err := p.Sleep(pipelineBackoff); err != nil {
				return
			}
		}
	}
}

// sequentialController produces units one at a time, back to back, until
// the unit counter reaches target+1 or the budget runs out.
func (st *runState) sequentialController(p *proc) {
	for engineID := 1; engineID < st.cfg.TargetOutput+1; engineID++ {
		if p.Now() >= st.sched.Horizon() {
			return
		}
		st.spawned++
		st.engineStarts[engineID] = p.Now()
		st.metrics.Counter(MetricEnginesSpawned).Inc()
		capitan.Info(st.ctx, SignalEngineStarted,
			FieldSimID.Field(st.simID),
			FieldEngineID.Field(engineID),
			FieldVirtualTime.Field(p.Now()),
		)
		st.runUnit(p, engineID)
	}
}
