package linesim

import (
	"fmt"
	"sort"
	"strings"
)

// DAG is the immutable dependency index built once per run from the
// process definition. Task order follows definition order everywhere a
// set is returned as a slice, which keeps ready-set iteration — and with
// it the whole run — deterministic.
type DAG struct {
	process      *Process
	order        []string            // step IDs in definition order
	tasks        map[string]*Task
	predecessors map[string][]string
	successors   map[string][]string
}

// NewDAG indexes the process graph. The graph is not validated here;
// call Validate before scheduling anything on it.
func NewDAG(process *Process) *DAG {
	d := &DAG{
		process:      process,
		tasks:        process.TaskMap(),
		predecessors: make(map[string][]string, len(process.Tasks)),
		successors:   make(map[string][]string, len(process.Tasks)),
	}
	for _, t := range process.Tasks {
		d.order = append(d.order, t.StepID)
	}
	for _, t := range process.Tasks {
		for _, pred := range t.PredecessorList() {
			if _, ok := d.tasks[pred]; !ok {
				// Recorded so Validate can report it; no edge is added.
				d.predecessors[t.StepID] = append(d.predecessors[t.StepID], pred)
				continue
			}
			d.predecessors[t.StepID] = append(d.predecessors[t.StepID], pred)
			d.successors[pred] = append(d.successors[pred], t.StepID)
		}
	}
	return d
}

// Len returns the number of tasks in the graph.
func (d *DAG) Len() int { return len(d.order) }

// Task returns the task for a step ID, or nil.
func (d *DAG) Task(stepID string) *Task { return d.tasks[stepID] }

// Predecessors returns the direct predecessors of a step.
func (d *DAG) Predecessors(stepID string) []string { return d.predecessors[stepID] }

// Successors returns the direct successors of a step.
func (d *DAG) Successors(stepID string) []string { return d.successors[stepID] }

// Validate rejects missing predecessors, cycles (self-loops included),
// and graphs with no start node. The returned error wraps
// ErrInvalidGraph and names the offending path.
func (d *DAG) Validate() error {
	if len(d.order) == 0 {
		return fmt.Errorf("%w: process has no tasks", ErrInvalidGraph)
	}
	for _, id := range d.order {
		for _, pred := range d.predecessors[id] {
			if _, ok := d.tasks[pred]; !ok {
				return fmt.Errorf("%w: step %q references missing predecessor %q", ErrInvalidGraph, id, pred)
			}
		}
	}
	if cycle := d.findCycle(); cycle != nil {
		return fmt.Errorf("%w: dependency cycle %s", ErrInvalidGraph, strings.Join(cycle, " -> "))
	}
	if len(d.StartNodes()) == 0 {
		return fmt.Errorf("%w: no start node, every task has predecessors", ErrInvalidGraph)
	}
	return nil
}

// findCycle returns one dependency cycle as a step-ID path, or nil.
func (d *DAG) findCycle() []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(d.order))
	var stack []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		stack = append(stack, id)
		for _, succ := range d.successors[id] {
			switch color[succ] {
			case white:
				if visit(succ) {
					return true
				}
			case gray:
				for i, s := range stack {
					if s == succ {
						cycle = append(append([]string(nil), stack[i:]...), succ)
						return true
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
		return false
	}

	for _, id := range d.order {
		if color[id] == white && visit(id) {
			return cycle
		}
	}
	return nil
}

// StartNodes returns steps with no predecessors, in definition order.
func (d *DAG) StartNodes() []string {
	var out []string
	for _, id := range d.order {
		if len(d.predecessors[id]) == 0 {
			out = append(out, id)
		}
	}
	return out
}

// EndNodes returns steps with no successors, in definition order.
func (d *DAG) EndNodes() []string {
	var out []string
	for _, id := range d.order {
		if len(d.successors[id]) == 0 {
			out = append(out, id)
		}
	}
	return out
}

// Ready returns the steps not yet completed whose predecessors are all
// in completed, in definition order.
func (d *DAG) Ready(completed map[string]bool) []string {
	var out []string
	for _, id := range d.order {
		if completed[id] {
			continue
		}
		ok := true
		for _, pred := range d.predecessors[id] {
			if !completed[pred] {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, id)
		}
	}
	return out
}

// TopologicalOrder returns a dependency-respecting order, or nil when
// the graph has a cycle. Ties break toward definition order.
func (d *DAG) TopologicalOrder() []string {
	indeg := make(map[string]int, len(d.order))
	for _, id := range d.order {
		indeg[id] = len(d.predecessors[id])
	}
	var queue []string
	for _, id := range d.order {
		if indeg[id] == 0 {
			queue = append(queue, id)
		}
	}
	var out []string
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		out = append(out, id)
		for _, succ := range d.successors[id] {
			indeg[succ]--
			if indeg[succ] == 0 {
				queue = append(queue, succ)
			}
		}
	}
	if len(out) != len(d.order) {
		return nil
	}
	return out
}

// CriticalPath returns the longest chain through the graph by nominal
// duration and its total length. Ties break toward the lexicographically
// smaller step ID.
func (d *DAG) CriticalPath() ([]string, float64) {
	topo := d.TopologicalOrder()
	if topo == nil {
		return nil, 0
	}

	earliest := make(map[string]float64, len(topo))
	for _, id := range topo {
		var start float64
		for _, pred := range d.predecessors[id] {
			if v := earliest[pred] + d.tasks[pred].StdDuration; v > start {
				start = v
			}
		}
		earliest[id] = start
	}

	var endID string
	var total float64
	for _, id := range d.EndNodes() {
		finish := earliest[id] + d.tasks[id].StdDuration
		if finish > total || (finish == total && (endID == "" || id < endID)) {
			total = finish
			endID = id
		}
	}
	if endID == "" {
		return nil, 0
	}

	path := []string{endID}
	current := endID
	for len(d.predecessors[current]) > 0 {
		preds := append([]string(nil), d.predecessors[current]...)
		sort.Strings(preds)
		best := ""
		var bestFinish float64
		for _, pred := range preds {
			finish := earliest[pred] + d.tasks[pred].StdDuration
			if best == "" || finish > bestFinish {
				best = pred
				bestFinish = finish
			}
		}
		path = append([]string{best}, path...)
		current = best
	}
	return path, total
}

// ParallelGroups returns waves of tasks that could run concurrently:
// iterated ready-set computation assuming each wave completes together.
func (d *DAG) ParallelGroups() [][]string {
	var groups [][]string
	completed := make(map[string]bool, len(d.order))
	for len(completed) < len(d.order) {
		ready := d.Ready(completed)
		if len(ready) == 0 {
			break
		}
		groups = append(groups, ready)
		for _, id := range ready {
			completed[id] = true
		}
	}
	return groups
}
