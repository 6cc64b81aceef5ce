package linesim

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ProcessCSVHeaders is the required column order for process CSV files.
// A trailing "station" column is optional; further columns are ignored.
var ProcessCSVHeaders = []string{
	"step_id",
	"task_name",
	"op_type",
	"predecessors",
	"std_duration",
	"time_variance",
	"work_load_score",
	"rework_prob",
	"required_workers",
	"required_tools",
}

// EventCSVHeaders is the column order of the exported event timeline.
var EventCSVHeaders = []string{
	"engine_id",
	"step_id",
	"task_name",
	"op_type",
	"start_day",
	"start_hour",
	"end_day",
	"end_hour",
	"duration_minutes",
	"event_type",
	"workers",
	"equipment",
	"rework_count",
}

// defaultStation is assumed when a process CSV has no station column.
const defaultStation = "ST01"

// ParseResult carries a parsed process plus everything worth telling the
// uploader: per-row errors, non-fatal warnings, and the parsed count.
type ParseResult struct {
	Process     *Process `json:"process,omitempty"`
	Errors      []string `json:"errors,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
	ParsedCount int      `json:"parsed_count"`
}

// OK reports whether parsing produced a usable process without errors.
func (pr *ParseResult) OK() bool {
	return pr.Process != nil && len(pr.Errors) == 0
}

// ParseProcessCSV reads a UTF-8 process definition, tolerating a leading
// BOM. The header row is required and must carry the expected columns in
// order; op_type is case-normalised; predecessors and required_tools
// split on ";".
func ParseProcessCSV(r io.Reader) *ParseResult {
	result := &ParseResult{}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("missing header row: %v", err))
		return result
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	hasStation, err := checkHeader(header)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	var tasks []*Task
	for row := 2; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", row, err))
			continue
		}
		if len(record) == 0 || (len(record) == 1 && strings.TrimSpace(record[0]) == "") {
			continue
		}
		if len(record) < len(ProcessCSVHeaders) {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: expected at least %d columns, got %d", row, len(ProcessCSVHeaders), len(record)))
			continue
		}

		task, warnings, err := parseTaskRow(record, hasStation)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", row, err))
			continue
		}
		for _, w := range warnings {
			result.Warnings = append(result.Warnings, fmt.Sprintf("row %d: %s", row, w))
		}
		tasks = append(tasks, task)
		result.ParsedCount++
	}

	if len(tasks) == 0 {
		result.Errors = append(result.Errors, "no tasks parsed")
		return result
	}
	result.Process = &Process{Tasks: tasks}
	return result
}

// checkHeader verifies the required columns appear in the documented
// order and reports whether an optional station column follows them.
func checkHeader(header []string) (hasStation bool, err error) {
	if len(header) < len(ProcessCSVHeaders) {
		return false, fmt.Errorf("header has %d columns, expected at least %d", len(header), len(ProcessCSVHeaders))
	}
	for i, want := range ProcessCSVHeaders {
		got := strings.ToLower(strings.TrimSpace(header[i]))
		if got != want {
			return false, fmt.Errorf("header column %d is %q, expected %q", i+1, header[i], want)
		}
	}
	if len(header) > len(ProcessCSVHeaders) {
		next := strings.ToLower(strings.TrimSpace(header[len(ProcessCSVHeaders)]))
		hasStation = next == "station"
	}
	return hasStation, nil
}

func parseTaskRow(record []string, hasStation bool) (*Task, []string, error) {
	var warnings []string
	get := func(i int) string { return strings.TrimSpace(record[i]) }

	stepID := get(0)
	if stepID == "" {
		return nil, nil, fmt.Errorf("step_id is empty")
	}
	name := get(1)
	if name == "" {
		return nil, nil, fmt.Errorf("task_name is empty")
	}

	opType, err := ParseOpType(get(2))
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("%v, defaulting to A", err))
		opType = OpAssembly
	}

	duration, err := parseFloatField(get(4), "std_duration", 0)
	if err != nil {
		return nil, nil, err
	}
	variance, err := parseFloatField(get(5), "time_variance", 0)
	if err != nil {
		return nil, nil, err
	}
	load, err := parseIntField(get(6), "work_load_score", 5)
	if err != nil {
		return nil, nil, err
	}
	reworkProb, err := parseFloatField(get(7), "rework_prob", 0)
	if err != nil {
		return nil, nil, err
	}
	requiredWorkers, err := parseIntField(get(8), "required_workers", 1)
	if err != nil {
		return nil, nil, err
	}

	var tools []string
	for _, t := range strings.Split(get(9), ";") {
		if t = strings.TrimSpace(t); t != "" {
			tools = append(tools, t)
		}
	}

	station := defaultStation
	if hasStation && len(record) > len(ProcessCSVHeaders) {
		if s := strings.TrimSpace(record[len(ProcessCSVHeaders)]); s != "" {
			station = s
		}
	}

	return &Task{
		StepID:          stepID,
		TaskName:        name,
		OpType:          opType,
		Predecessors:    get(3),
		StdDuration:     duration,
		TimeVariance:    variance,
		WorkLoadScore:   load,
		ReworkProb:      reworkProb,
		RequiredWorkers: requiredWorkers,
		RequiredTools:   tools,
		Station:         station,
	}, warnings, nil
}

func parseFloatField(s, name string, def float64) (float64, error) {
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %v", name, err)
	}
	return v, nil
}

func parseIntField(s, name string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %v", name, err)
	}
	return v, nil
}

// WriteProcessCSV exports a process in the upload format, station column
// included.
func WriteProcessCSV(w io.Writer, process *Process) error {
	cw := csv.NewWriter(w)
	header := append(append([]string(nil), ProcessCSVHeaders...), "station")
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, t := range process.Tasks {
		row := []string{
			t.StepID,
			t.TaskName,
			string(t.OpType),
			t.Predecessors,
			strconv.FormatFloat(t.StdDuration, 'f', -1, 64),
			strconv.FormatFloat(t.TimeVariance, 'f', -1, 64),
			strconv.Itoa(t.WorkLoadScore),
			strconv.FormatFloat(t.ReworkProb, 'f', -1, 64),
			strconv.Itoa(t.RequiredWorkers),
			strings.Join(t.RequiredTools, ";"),
			t.Station,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteEventCSV exports the timeline with virtual times mapped onto the
// working calendar.
func WriteEventCSV(w io.Writer, events []Event, workHoursPerDay int) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(EventCSVHeaders); err != nil {
		return err
	}
	for i := range events {
		e := &events[i]
		startDay, startHour := MinutesToDayHour(e.Start, workHoursPerDay)
		endDay, endHour := MinutesToDayHour(e.End, workHoursPerDay)
		row := []string{
			strconv.Itoa(e.EngineID),
			e.StepID,
			e.TaskName,
			string(e.OpType),
			strconv.Itoa(startDay),
			fmt.Sprintf("%.2f", startHour),
			strconv.Itoa(endDay),
			fmt.Sprintf("%.2f", endHour),
			fmt.Sprintf("%.2f", e.Duration()),
			string(e.Kind),
			strings.Join(e.WorkerIDs, ";"),
			strings.Join(e.Equipment, ";"),
			strconv.Itoa(e.ReworkCount),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// TemplateProcess returns the sample ten-step engine assembly flow used
// for the CSV template.
func TemplateProcess() *Process {
	return &Process{
		Name: "engine assembly sample",
		Tasks: []*Task{
			{StepID: "S001", TaskName: "Pick compressor rotor", OpType: OpHandling, StdDuration: 5, TimeVariance: 1, WorkLoadScore: 4, RequiredWorkers: 2, RequiredTools: []string{"hoist"}, Station: "ST01"},
			{StepID: "S002", TaskName: "Incoming inspection", OpType: OpMeasurement, Predecessors: "S001", StdDuration: 10, TimeVariance: 2, WorkLoadScore: 3, ReworkProb: 0.05, RequiredWorkers: 1, RequiredTools: []string{"inspection bench"}, Station: "ST01"},
			{StepID: "S003", TaskName: "Fit front bearing", OpType: OpAssembly, Predecessors: "S002", StdDuration: 15, TimeVariance: 3, WorkLoadScore: 6, RequiredWorkers: 2, RequiredTools: []string{"assembly rig"}, Station: "ST02"},
			{StepID: "S004", TaskName: "Fit rear bearing", OpType: OpAssembly, Predecessors: "S002", StdDuration: 15, TimeVariance: 3, WorkLoadScore: 6, RequiredWorkers: 2, RequiredTools: []string{"assembly rig"}, Station: "ST02"},
			{StepID: "S005", TaskName: "Install seals", OpType: OpAssembly, Predecessors: "S003;S004", StdDuration: 8, TimeVariance: 1.5, WorkLoadScore: 5, RequiredWorkers: 1, Station: "ST02"},
			{StepID: "S006", TaskName: "Balance test", OpType: OpMeasurement, Predecessors: "S005", StdDuration: 30, TimeVariance: 5, WorkLoadScore: 4, ReworkProb: 0.1, RequiredWorkers: 1, RequiredTools: []string{"balancing machine"}, Station: "ST03"},
			{StepID: "S007", TaskName: "Record test data", OpType: OpDocument, Predecessors: "S006", StdDuration: 5, TimeVariance: 0.5, WorkLoadScore: 2, RequiredWorkers: 1, Station: "ST03"},
			{StepID: "S008", TaskName: "Final assembly", OpType: OpAssembly, Predecessors: "S007", StdDuration: 20, TimeVariance: 4, WorkLoadScore: 7, RequiredWorkers: 2, RequiredTools: []string{"assembly rig"}, Station: "ST04"},
			{StepID: "S009", TaskName: "Test-cell preparation", OpType: OpTest, Predecessors: "S008", StdDuration: 10, TimeVariance: 2, WorkLoadScore: 5, RequiredWorkers: 2, RequiredTools: []string{"test cell"}, Station: "ST05"},
			{StepID: "S010", TaskName: "Full engine test", OpType: OpMeasurement, Predecessors: "S009", StdDuration: 60, TimeVariance: 10, WorkLoadScore: 6, ReworkProb: 0.15, RequiredWorkers: 2, RequiredTools: []string{"test cell"}, Station: "ST05"},
		},
	}
}
