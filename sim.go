package linesim

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Runner drives one or more simulation runs over a fixed configuration
// and process graph. All simulation state lives inside each Run call;
// the Runner itself only carries the immutable inputs and the
// observability plumbing, so one Runner can execute any number of runs
// with disjoint state.
//
// Example:
//
//	runner := linesim.NewRunner(cfg, process)
//	result, err := runner.Run(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.EnginesCompleted)
type Runner struct {
	cfg     Config
	process *Process
	clock   clockz.Clock
	metrics *metricz.Registry
	tracer  *tracez.Tracer
	hooks   *hookz.Hooks[RunEvent]
}

// NewRunner creates a Runner for the given configuration and process.
func NewRunner(cfg Config, process *Process) *Runner {
	registry := metricz.New()
	registry.Gauge(MetricEventsTotal)
	registry.Counter(MetricReworksTotal)
	registry.Counter(MetricRestsTotal)
	registry.Counter(MetricTasksCompleted)
	registry.Counter(MetricEnginesSpawned)
	registry.Counter(MetricEnginesDone)
	registry.Gauge(MetricVirtualMinutes)

	return &Runner{
		cfg:     cfg,
		process: process,
		metrics: registry,
		tracer:  tracez.New(),
		hooks:   hookz.New[RunEvent](),
	}
}

// WithClock sets the wall clock used for result timestamps. Virtual time
// is the scheduler's own; the clock only stamps created/completed.
func (r *Runner) WithClock(clock clockz.Clock) *Runner {
	r.clock = clock
	return r
}

func (r *Runner) getClock() clockz.Clock {
	if r.clock == nil {
		return clockz.RealClock
	}
	return r.clock
}

// Metrics exposes the Runner's metric registry.
func (r *Runner) Metrics() *metricz.Registry { return r.metrics }

// Tracer exposes the Runner's tracer for span collection.
func (r *Runner) Tracer() *tracez.Tracer { return r.tracer }

// OnEngineCompleted registers a handler fired whenever a unit finishes
// its full task graph. Handlers run asynchronously.
func (r *Runner) OnEngineCompleted(handler func(context.Context, RunEvent) error) error {
	_, err := r.hooks.Hook(HookEngineCompleted, handler)
	return err
}

// OnRunCompleted registers a handler fired when a run finishes.
func (r *Runner) OnRunCompleted(handler func(context.Context, RunEvent) error) error {
	_, err := r.hooks.Hook(HookRunCompleted, handler)
	return err
}

// OnBottleneck registers a handler fired per equipment whose utilisation
// ended above the bottleneck threshold.
func (r *Runner) OnBottleneck(handler func(context.Context, RunEvent) error) error {
	_, err := r.hooks.Hook(HookBottleneck, handler)
	return err
}

// Close releases hook resources. The Runner must not be used afterwards.
func (r *Runner) Close() {
	r.hooks.Close()
}

// Run executes the simulation. Validation failures return a failed
// Result alongside a *Error wrapping the matching sentinel; an exhausted
// time budget is not a failure — it returns a completed Result with
// truthful counters and a partial timeline.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	simID := uuid.NewString()
	createdAt := r.getClock().Now()

	capitan.Info(ctx, SignalRunStarted, FieldSimID.Field(simID))

	_, span := r.tracer.StartSpan(ctx, SpanValidate)
	span.SetTag(TagSimID, simID)
	diagnosis := r.validateInputs()
	span.Finish()
	if diagnosis != "" {
		return r.failRun(ctx, simID, createdAt, diagnosis)
	}

	cfg := r.cfg
	process := r.process
	if cfg.StationConstraintMode {
		cfg, process = withStationConstraints(cfg, process)
	}

	st := &runState{
		ctx:          ctx,
		cfg:          &cfg,
		sched:        newScheduler(cfg.TimeBudget()),
		dag:          NewDAG(process),
		log:          NewLog(),
		metrics:      r.metrics,
		hooks:        r.hooks,
		simID:        simID,
		engineStarts: make(map[int]float64),
		engineEnds:   make(map[int]float64),
	}
	st.pool = NewWorkerPool(st.sched, cfg.NumWorkers)
	st.equipment = NewEquipmentManager(st.sched, cfg.CriticalEquipment)
	st.exec = &taskExecutor{
		cfg:       &cfg,
		pool:      st.pool,
		equipment: st.equipment,
		log:       st.log,
		rng:       newRNG(cfg.Seed),
		metrics:   r.metrics,
	}

	_, span = r.tracer.StartSpan(ctx, SpanSimulate)
	span.SetTag(TagSimID, simID)
	if cfg.PipelineMode {
		st.sched.Spawn(st.pipelineController)
	} else {
		st.sched.Spawn(st.sequentialController)
	}
	simDuration := st.sched.Run()
	span.Finish()

	_, span = r.tracer.StartSpan(ctx, SpanCollect)
	span.SetTag(TagSimID, simID)
	result := r.collect(ctx, st, simID, simDuration, createdAt)
	span.SetTag(TagStatus, string(result.Status))
	span.Finish()

	r.metrics.Gauge(MetricVirtualMinutes).Set(simDuration)
	r.metrics.Gauge(MetricEventsTotal).Set(float64(len(result.Events)))

	capitan.Info(ctx, SignalRunCompleted,
		FieldSimID.Field(simID),
		FieldCompleted.Field(result.EnginesCompleted),
		FieldSimDuration.Field(simDuration),
	)
	_ = r.hooks.Emit(ctx, HookRunCompleted, RunEvent{ //nolint:errcheck
		SimID:            simID,
		EnginesCompleted: result.EnginesCompleted,
		VirtualTime:      simDuration,
	})

	return result, nil
}

// validateInputs runs every pre-flight check and returns a diagnosis
// string, empty when the run may proceed.
func (r *Runner) validateInputs() string {
	if errs, _ := r.process.Validate(); len(errs) > 0 {
		return strings.Join(errs, "; ")
	}
	if err := NewDAG(r.process).Validate(); err != nil {
		return err.Error()
	}
	if err := r.cfg.Validate(r.process); err != nil {
		return err.Error()
	}
	return ""
}

// failRun assembles the failed result: diagnosis, no events, zeroed
// counters.
func (r *Runner) failRun(ctx context.Context, simID string, createdAt time.Time, diagnosis string) (*Result, error) {
	capitan.Error(ctx, SignalRunFailed,
		FieldSimID.Field(simID),
		FieldDiagnosis.Field(diagnosis),
	)
	result := &Result{
		SimID:     simID,
		Status:    StatusFailed,
		Diagnosis: diagnosis,
		Config:    r.cfg,
		Quality:   QualityStats{FirstPassRate: 1},
		CreatedAt: createdAt.Format(time.RFC3339),
	}
	err := &Error{
		Timestamp: createdAt,
		SimID:     simID,
		Phase:     "validate",
		Diagnosis: diagnosis,
		Err:       r.sentinelFor(diagnosis),
	}
	return result, err
}

// sentinelFor maps a diagnosis back onto the sentinel that produced it.
func (r *Runner) sentinelFor(diagnosis string) error {
	switch {
	case strings.Contains(diagnosis, ErrInfeasible.Error()):
		return ErrInfeasible
	case strings.Contains(diagnosis, ErrInvalidConfig.Error()):
		return ErrInvalidConfig
	default:
		return ErrInvalidGraph
	}
}

// collect assembles the successful result from the run state.
func (r *Runner) collect(ctx context.Context, st *runState, simID string, simDuration float64, createdAt time.Time) *Result {
	// Sum in unit order so a seeded run reproduces the average exactly.
	engineIDs := make([]int, 0, len(st.engineEnds))
	for engineID := range st.engineEnds {
		engineIDs = append(engineIDs, engineID)
	}
	sort.Ints(engineIDs)
	var cycleTimes []float64
	for _, engineID := range engineIDs {
		end := st.engineEnds[engineID]
		if start, ok := st.engineStarts[engineID]; ok {
			cycleTimes = append(cycleTimes, end-start)
		}
	}
	var avgCycle float64
	for _, ct := range cycleTimes {
		avgCycle += ct
	}
	if len(cycleTimes) > 0 {
		avgCycle /= float64(len(cycleTimes))
	}

	var workerStats []WorkerStat
	var totalRest float64
	var totalHighIntensity int
	var fatigueSum, fatigueMax float64
	workers := st.pool.Workers()
	for _, w := range workers {
		workerStats = append(workerStats, WorkerStat{
			WorkerID:           w.ID,
			State:              w.State,
			TotalTime:          simDuration,
			WorkTime:           w.TotalWorkTime,
			RestTime:           w.TotalRestTime,
			IdleTime:           w.IdleTime(simDuration),
			UtilizationRate:    w.Utilization(simDuration),
			TasksCompleted:     w.TasksCompleted,
			FatigueLevel:       w.FatigueLevel,
			HighIntensityCount: w.HighIntensityCount,
			FatigueHistory:     w.FatigueHistory,
		})
		totalRest += w.TotalRestTime
		totalHighIntensity += w.HighIntensityCount
		fatigueSum += w.FatigueLevel
		if w.FatigueLevel > fatigueMax {
			fatigueMax = w.FatigueLevel
		}
	}
	var avgFatigue float64
	if len(workers) > 0 {
		avgFatigue = fatigueSum / float64(len(workers))
	}

	equipmentStats := st.equipment.Stats(simDuration)
	for _, es := range equipmentStats {
		if !es.IsBottleneck {
			continue
		}
		capitan.Warn(ctx, SignalEquipmentBottleneck,
			FieldSimID.Field(simID),
			FieldEquipment.Field(es.Name),
			FieldUtilization.Field(es.UtilizationRate),
		)
		_ = r.hooks.Emit(ctx, HookBottleneck, RunEvent{ //nolint:errcheck
			SimID:       simID,
			Equipment:   es.Name,
			Utilization: es.UtilizationRate,
		})
	}

	events := st.log.Events()
	restEvents := 0
	for i := range events {
		if events[i].Kind == EventRest {
			restEvents++
		}
	}

	return &Result{
		SimID:                 simID,
		Status:                StatusCompleted,
		Config:                r.cfg,
		SimDuration:           simDuration,
		EnginesCompleted:      st.enginesCompleted,
		TargetAchievementRate: float64(st.enginesCompleted) / float64(r.cfg.TargetOutput),
		AvgCycleTime:          avgCycle,
		WorkerStats:           workerStats,
		EquipmentStats:        equipmentStats,
		Quality:               st.log.Quality(),
		HumanFactors: HumanFactorsStats{
			TotalRestTime:              totalRest,
			AvgFatigueLevel:            avgFatigue,
			MaxFatigueLevel:            fatigueMax,
			TotalHighIntensityExposure: totalHighIntensity,
			RestEventsCount:            restEvents,
		},
		Events: events,
		TimeMapping: TimeMapping{
			MinutesPerDay:   r.cfg.MinutesPerDay(),
			TotalDays:       r.cfg.WorkDaysPerMonth,
			TotalMinutes:    r.cfg.TimeBudget(),
			WorkHoursPerDay: r.cfg.WorkHoursPerDay,
		},
		CreatedAt:   createdAt.Format(time.RFC3339),
		CompletedAt: r.getClock().Now().Format(time.RFC3339),
	}
}

// Run executes one simulation with a fresh Runner.
func Run(ctx context.Context, cfg Config, process *Process) (*Result, error) {
	return NewRunner(cfg, process).Run(ctx)
}

// RunNoRest executes the comparison run: identical inputs with both rest
// rules disabled and a shifted seed, reduced to a Summary for delta
// reporting against the human-factors run.
func RunNoRest(ctx context.Context, cfg Config, process *Process) (*Summary, error) {
	noRest := cfg.noRest()
	if cfg.Seed != nil {
		shifted := *cfg.Seed + 1000
		noRest.Seed = &shifted
	}
	result, err := NewRunner(noRest, process).Run(ctx)
	if err != nil {
		return nil, err
	}

	var utilSum float64
	for _, ws := range result.WorkerStats {
		utilSum += ws.UtilizationRate
	}
	var avgUtil float64
	if len(result.WorkerStats) > 0 {
		avgUtil = utilSum / float64(len(result.WorkerStats))
	}

	return &Summary{
		EnginesCompleted:     result.EnginesCompleted,
		AvgCycleTime:         result.AvgCycleTime,
		SimDuration:          result.SimDuration,
		AvgWorkerUtilization: avgUtil,
		TotalRestTime:        result.HumanFactors.TotalRestTime,
		FirstPassRate:        result.Quality.FirstPassRate,
	}, nil
}
