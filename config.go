package linesim

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the shared struct validator for configs and processes.
var validate = validator.New(validator.WithRequiredStructEnabled())

func validateStruct(v any) error {
	return validate.Struct(v)
}

// Config holds every tunable of a run. It is immutable once handed to a
// Runner; the no-rest comparison derives a copy rather than mutating it.
//
// The virtual time budget is WorkHoursPerDay*60*WorkDaysPerMonth minutes:
// one contiguous interval, no shifts or breaks inside it.
type Config struct {
	WorkHoursPerDay  int            `json:"work_hours_per_day" mapstructure:"work_hours_per_day" validate:"gte=1,lte=24"`
	WorkDaysPerMonth int            `json:"work_days_per_month" mapstructure:"work_days_per_month" validate:"gte=1,lte=31"`
	NumWorkers       int            `json:"num_workers" mapstructure:"num_workers" validate:"gte=1"`

	// CriticalEquipment maps equipment name to capacity. Tools used by
	// the process but absent here are treated as unlimited.
	CriticalEquipment map[string]int `json:"critical_equipment" mapstructure:"critical_equipment"`

	// Rest rule A: a worker whose consecutive work time has reached
	// RestTimeThreshold rests RestDurationTime minutes before the crew's
	// next work interval.
	RestTimeThreshold float64 `json:"rest_time_threshold" mapstructure:"rest_time_threshold" validate:"gte=0"`
	RestDurationTime  float64 `json:"rest_duration_time" mapstructure:"rest_duration_time" validate:"gte=0"`

	// Rest rule B: a task whose REBA load score exceeds
	// RestLoadThreshold is followed by a RestDurationLoad-minute rest.
	RestLoadThreshold int     `json:"rest_load_threshold" mapstructure:"rest_load_threshold" validate:"gte=1,lte=10"`
	RestDurationLoad  float64 `json:"rest_duration_load" mapstructure:"rest_duration_load" validate:"gte=0"`

	TargetOutput          int  `json:"target_output" mapstructure:"target_output" validate:"gte=1"`
	PipelineMode          bool `json:"pipeline_mode" mapstructure:"pipeline_mode"`
	StationConstraintMode bool `json:"station_constraint_mode" mapstructure:"station_constraint_mode"`

	// Seed makes a single-threaded cooperative run reproducible. Nil
	// seeds from entropy, trading reproducibility away.
	Seed *int64 `json:"seed,omitempty" mapstructure:"seed"`
}

// DefaultConfig mirrors the stock line setup: 8-hour days, 22 working
// days, 6 workers, rule A at 50/5 minutes, rule B at REBA 7 for 3
// minutes, target of 3 units with pipelining on.
func DefaultConfig() Config {
	return Config{
		WorkHoursPerDay:   8,
		WorkDaysPerMonth:  22,
		NumWorkers:        6,
		CriticalEquipment: map[string]int{},
		RestTimeThreshold: 50,
		RestDurationTime:  5,
		RestLoadThreshold: 7,
		RestDurationLoad:  3,
		TargetOutput:      3,
		PipelineMode:      true,
	}
}

// TimeBudget returns the run horizon T in virtual minutes.
func (c *Config) TimeBudget() float64 {
	return float64(c.WorkHoursPerDay) * 60 * float64(c.WorkDaysPerMonth)
}

// MinutesPerDay returns the length of one virtual working day.
func (c *Config) MinutesPerDay() int {
	return c.WorkHoursPerDay * 60
}

// Validate checks the config against its ranges and, when a process is
// given, cross-checks feasibility: every task's crew must fit the pool.
func (c *Config) Validate(process *Process) error {
	if err := validateStruct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	for name, capacity := range c.CriticalEquipment {
		if capacity < 1 {
			return fmt.Errorf("%w: equipment %q capacity %d below 1", ErrInvalidConfig, name, capacity)
		}
	}
	if process != nil {
		if need := process.MaxRequiredWorkers(); need > c.NumWorkers {
			return fmt.Errorf("%w: a task requires %d workers but the pool holds %d", ErrInfeasible, need, c.NumWorkers)
		}
	}
	return nil
}

// noRest returns a copy with both rest rules disabled: rule A's
// threshold is pushed beyond any reachable consecutive work time and
// rule B's threshold to the legal maximum, with zero durations.
func (c *Config) noRest() Config {
	out := *c
	out.RestTimeThreshold = 999999
	out.RestDurationTime = 0
	out.RestLoadThreshold = 10
	out.RestDurationLoad = 0
	return out
}

// withStationConstraints returns the config and process adjusted for
// station-constraint mode: every station becomes a capacity-1 critical
// resource (unless the config already pins a capacity for it) and is
// appended to the tool list of each task at that station. The inputs are
// not mutated; the run works on the copies.
func withStationConstraints(cfg Config, process *Process) (Config, *Process) {
	equipment := make(map[string]int, len(cfg.CriticalEquipment))
	for name, capacity := range cfg.CriticalEquipment {
		equipment[name] = capacity
	}

	tasks := make([]*Task, len(process.Tasks))
	for i, t := range process.Tasks {
		dup := *t
		dup.RequiredTools = append([]string(nil), t.RequiredTools...)
		if dup.Station != "" {
			if _, ok := equipment[dup.Station]; !ok {
				equipment[dup.Station] = 1
			}
			hasStation := false
			for _, tool := range dup.RequiredTools {
				if tool == dup.Station {
					hasStation = true
					break
				}
			}
			if !hasStation {
				dup.RequiredTools = append(dup.RequiredTools, dup.Station)
			}
		}
		tasks[i] = &dup
	}

	cfg.CriticalEquipment = equipment
	return cfg, &Process{Name: process.Name, Description: process.Description, Tasks: tasks}
}
