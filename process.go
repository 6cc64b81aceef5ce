package linesim

import (
	"fmt"
	"strings"
)

// OpType classifies a task by the kind of operation it performs. Only M
// (measurement) tasks carry a meaningful rework probability.
type OpType string

// Operation types recognised in process definitions.
const (
	OpHandling    OpType = "H" // material handling
	OpAssembly    OpType = "A" // assembly
	OpMeasurement OpType = "M" // measurement / inspection
	OpTest        OpType = "T" // test-cell operation
	OpDocument    OpType = "D" // documentation
)

// ParseOpType normalises s (case-insensitive) into an OpType.
func ParseOpType(s string) (OpType, error) {
	switch OpType(strings.ToUpper(strings.TrimSpace(s))) {
	case OpHandling:
		return OpHandling, nil
	case OpAssembly:
		return OpAssembly, nil
	case OpMeasurement:
		return OpMeasurement, nil
	case OpTest:
		return OpTest, nil
	case OpDocument:
		return OpDocument, nil
	default:
		return "", fmt.Errorf("unknown op type %q", s)
	}
}

// Task is one step of the process graph. Predecessors holds the raw
// ";"-separated form as it appears in CSV; PredecessorList parses it.
type Task struct {
	StepID          string   `json:"step_id" validate:"required"`
	TaskName        string   `json:"task_name" validate:"required"`
	OpType          OpType   `json:"op_type" validate:"required,oneof=H A M T D"`
	Predecessors    string   `json:"predecessors"`
	StdDuration     float64  `json:"std_duration" validate:"gte=0"`
	TimeVariance    float64  `json:"time_variance" validate:"gte=0"`
	WorkLoadScore   int      `json:"work_load_score" validate:"gte=1,lte=10"`
	ReworkProb      float64  `json:"rework_prob" validate:"gte=0,lte=1"`
	RequiredWorkers int      `json:"required_workers" validate:"gte=1"`
	RequiredTools   []string `json:"required_tools"`
	Station         string   `json:"station"`
}

// PredecessorList parses the ";"-separated predecessor field.
func (t *Task) PredecessorList() []string {
	if strings.TrimSpace(t.Predecessors) == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(t.Predecessors, ";") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsMeasurement reports whether the task is an inspection step.
func (t *Task) IsMeasurement() bool { return t.OpType == OpMeasurement }

// CanRework reports whether a quality check on this task can fail.
func (t *Task) CanRework() bool { return t.IsMeasurement() && t.ReworkProb > 0 }

// IsHighLoad reports whether the task's REBA score exceeds threshold.
func (t *Task) IsHighLoad(threshold int) bool { return t.WorkLoadScore > threshold }

// Process is a complete process definition: the immutable task graph a
// run executes once per unit under production.
type Process struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Tasks       []*Task `json:"tasks" validate:"min=1,dive"`
}

// TaskMap returns step ID → task for every task in the process.
func (p *Process) TaskMap() map[string]*Task {
	m := make(map[string]*Task, len(p.Tasks))
	for _, t := range p.Tasks {
		m[t.StepID] = t
	}
	return m
}

// Task returns the task with the given step ID, or nil.
func (p *Process) Task(stepID string) *Task {
	for _, t := range p.Tasks {
		if t.StepID == stepID {
			return t
		}
	}
	return nil
}

// StartTasks returns tasks with no predecessors, in definition order.
func (p *Process) StartTasks() []*Task {
	var out []*Task
	for _, t := range p.Tasks {
		if len(t.PredecessorList()) == 0 {
			out = append(out, t)
		}
	}
	return out
}

// EndTasks returns tasks no other task depends on, in definition order.
func (p *Process) EndTasks() []*Task {
	depended := make(map[string]bool)
	for _, t := range p.Tasks {
		for _, pred := range t.PredecessorList() {
			depended[pred] = true
		}
	}
	var out []*Task
	for _, t := range p.Tasks {
		if !depended[t.StepID] {
			out = append(out, t)
		}
	}
	return out
}

// MeasurementTasks returns every M-type task in definition order.
func (p *Process) MeasurementTasks() []*Task {
	var out []*Task
	for _, t := range p.Tasks {
		if t.IsMeasurement() {
			out = append(out, t)
		}
	}
	return out
}

// HighLoadTasks returns tasks whose REBA score exceeds threshold, in
// definition order.
func (p *Process) HighLoadTasks(threshold int) []*Task {
	var out []*Task
	for _, t := range p.Tasks {
		if t.IsHighLoad(threshold) {
			out = append(out, t)
		}
	}
	return out
}

// AllTools returns the set of tool names referenced by any task.
func (p *Process) AllTools() map[string]bool {
	tools := make(map[string]bool)
	for _, t := range p.Tasks {
		for _, name := range t.RequiredTools {
			tools[name] = true
		}
	}
	return tools
}

// TotalStdDuration sums the nominal durations of every task.
func (p *Process) TotalStdDuration() float64 {
	var sum float64
	for _, t := range p.Tasks {
		sum += t.StdDuration
	}
	return sum
}

// MaxRequiredWorkers returns the largest crew any single task needs.
func (p *Process) MaxRequiredWorkers() int {
	maxw := 0
	for _, t := range p.Tasks {
		if t.RequiredWorkers > maxw {
			maxw = t.RequiredWorkers
		}
	}
	return maxw
}

// Validate checks structural properties of the definition that do not
// need the DAG index: non-empty, unique step IDs, resolvable
// predecessors, and field ranges via the struct tags. Warnings flag
// suspicious but legal definitions (an M task that can never fail its
// check, a rework probability above one half, σ exceeding μ).
func (p *Process) Validate() (errs []string, warnings []string) {
	if len(p.Tasks) == 0 {
		return []string{"process has no tasks"}, nil
	}

	seen := make(map[string]bool, len(p.Tasks))
	for _, t := range p.Tasks {
		if seen[t.StepID] {
			errs = append(errs, fmt.Sprintf("duplicate step id %q", t.StepID))
		}
		seen[t.StepID] = true
	}

	ids := p.TaskMap()
	for _, t := range p.Tasks {
		for _, pred := range t.PredecessorList() {
			if _, ok := ids[pred]; !ok {
				errs = append(errs, fmt.Sprintf("step %q references missing predecessor %q", t.StepID, pred))
			}
		}
	}

	if err := validateStruct(p); err != nil {
		errs = append(errs, err.Error())
	}

	for _, t := range p.Tasks {
		if t.IsMeasurement() {
			switch {
			case t.ReworkProb == 0:
				warnings = append(warnings, fmt.Sprintf("measurement step %q has zero rework probability", t.StepID))
			case t.ReworkProb > 0.5:
				warnings = append(warnings, fmt.Sprintf("measurement step %q has rework probability %.2f above 0.5", t.StepID, t.ReworkProb))
			}
		}
		if t.TimeVariance > t.StdDuration && t.StdDuration > 0 {
			warnings = append(warnings, fmt.Sprintf("step %q variance %.1f exceeds nominal duration %.1f", t.StepID, t.TimeVariance, t.StdDuration))
		}
	}
	return errs, warnings
}
