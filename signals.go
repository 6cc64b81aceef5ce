package linesim

import (
	"context"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Signal constants for kernel events.
// Signals follow the pattern: <component>.<event>.
const (
	SignalRunStarted   capitan.Signal = "run.started"
	SignalRunCompleted capitan.Signal = "run.completed"
	SignalRunFailed    capitan.Signal = "run.failed"

	SignalEngineStarted   capitan.Signal = "engine.started"
	SignalEngineCompleted capitan.Signal = "engine.completed"

	SignalReworkTriggered     capitan.Signal = "executor.rework"
	SignalEquipmentBottleneck capitan.Signal = "equipment.bottleneck"
)

// Common field keys using capitan primitive types.
var (
	FieldSimID       = capitan.NewStringKey("sim_id")
	FieldEngineID    = capitan.NewIntKey("engine_id")
	FieldStepID      = capitan.NewStringKey("step_id")
	FieldEquipment   = capitan.NewStringKey("equipment")
	FieldReworkCount = capitan.NewIntKey("rework_count")
	FieldCompleted   = capitan.NewIntKey("engines_completed")
	FieldSimDuration = capitan.NewFloat64Key("sim_duration")
	FieldUtilization = capitan.NewFloat64Key("utilization")
	FieldDiagnosis   = capitan.NewStringKey("diagnosis")
	FieldVirtualTime = capitan.NewFloat64Key("virtual_time")
)

// Metric keys registered on every Runner.
const (
	MetricEventsTotal    = metricz.Key("run.events.total")
	MetricReworksTotal   = metricz.Key("run.reworks.total")
	MetricRestsTotal     = metricz.Key("run.rests.total")
	MetricTasksCompleted = metricz.Key("run.tasks.completed")
	MetricEnginesSpawned = metricz.Key("run.engines.spawned")
	MetricEnginesDone    = metricz.Key("run.engines.completed")
	MetricVirtualMinutes = metricz.Key("run.virtual.minutes")
)

// Trace span and tag keys for the run phases.
const (
	SpanValidate = tracez.Key("run.validate")
	SpanSimulate = tracez.Key("run.simulate")
	SpanCollect  = tracez.Key("run.collect")

	TagSimID     = tracez.Tag("run.sim_id")
	TagStatus    = tracez.Tag("run.status")
	TagEngines   = tracez.Tag("run.engines_completed")
	TagDiagnosis = tracez.Tag("run.diagnosis")
)

// Hook event keys for Runner lifecycle hooks.
const (
	HookEngineCompleted = hookz.Key("run.engine-completed")
	HookRunCompleted    = hookz.Key("run.completed")
	HookBottleneck      = hookz.Key("run.bottleneck")
)

// RunEvent is the payload delivered to Runner lifecycle hooks.
type RunEvent struct {
	SimID            string
	EngineID         int
	Equipment        string
	Utilization      float64
	EnginesCompleted int
	VirtualTime      float64
}

func signalRework(ctx context.Context, engineID int, stepID string, count int) {
	capitan.Warn(ctx, SignalReworkTriggered,
		FieldEngineID.Field(engineID),
		FieldStepID.Field(stepID),
		FieldReworkCount.Field(count),
	)
}
