// Package linesim is a discrete-event simulator for manual assembly
// lines with human-factor rules.
//
// # Overview
//
// linesim schedules a directed-acyclic process graph across a bounded
// pool of workers and a set of capacity-limited shared equipment. Two
// rest rules and stochastic rework shape the schedule: rule A inserts a
// rest before a work interval once a worker's consecutive work time
// trips a threshold, and rule B inserts a rest after any task whose
// REBA load score exceeds a threshold. Measurement tasks can fail their
// quality check and re-queue from scratch. Every interval each worker
// and equipment unit spends in each state lands on an append-only
// timeline from which throughput, utilisation, quality, and fatigue
// statistics are derived.
//
// # Core Concepts
//
//   - Config: the immutable per-run tunables (calendar, pool size,
//     critical equipment capacities, rest rules, target output, seed)
//   - Process / Task: the immutable process graph
//   - Runner: drives a run and carries the observability plumbing
//   - Result: counters, per-resource statistics, and the full timeline
//
// The kernel executes on a single-threaded cooperative discrete-event
// scheduler: one activity runs at a time and yields at virtual-time
// sleeps and resource waits, so a seeded run is fully reproducible.
// Virtual time is measured in minutes; the budget is one contiguous
// interval of work_hours_per_day x 60 x work_days_per_month.
//
// # Usage Example
//
//	cfg := linesim.DefaultConfig()
//	cfg.CriticalEquipment = map[string]int{"balancing machine": 1}
//
//	pr := linesim.ParseProcessCSV(file)
//	if !pr.OK() {
//	    // handle pr.Errors
//	}
//
//	result, err := linesim.Run(ctx, cfg, pr.Process)
//	if err != nil {
//	    // validation failed; result carries the diagnosis
//	}
//
// RunNoRest executes the same inputs with both rest rules disabled for
// delta reporting against the human-factors run.
//
// # Observability
//
// Runners emit capitan signals (run/engine lifecycle, reworks,
// bottlenecks), keep metricz counters and gauges, record tracez spans
// around the validate/simulate/collect phases, and expose hookz hooks
// for engine completion, run completion, and bottleneck flags. Wall
// clocks only stamp results; tests inject clockz fake clocks.
package linesim
