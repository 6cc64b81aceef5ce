package linesim

import (
	"math"
	"testing"
)

func sampleLog() *Log {
	l := NewLog()
	l.Append(Event{EngineID: 1, StepID: "S001", OpType: OpHandling, Start: 0, End: 5, Kind: EventNormal, WorkerIDs: []string{"Worker_01"}})
	l.Append(Event{EngineID: 1, StepID: "S002", OpType: OpMeasurement, Start: 5, End: 15, Kind: EventRework, WorkerIDs: []string{"Worker_02"}, Equipment: []string{"bench"}, ReworkCount: 1})
	l.Append(Event{EngineID: 1, StepID: "S002", OpType: OpMeasurement, Start: 15, End: 25, Kind: EventNormal, WorkerIDs: []string{"Worker_02"}, Equipment: []string{"bench"}, ReworkCount: 1})
	l.Append(Event{EngineID: 2, StepID: "S001", OpType: OpHandling, Start: 10, End: 16, Kind: EventNormal, WorkerIDs: []string{"Worker_01"}})
	l.Append(Event{EngineID: 2, StepID: "S001", OpType: OpHandling, Start: 16, End: 19, Kind: EventRest, WorkerIDs: []string{"Worker_01"}})
	return l
}

func TestLog(t *testing.T) {
	t.Run("Counts And Kinds", func(t *testing.T) {
		l := sampleLog()
		if l.Len() != 5 {
			t.Errorf("expected 5 events, got %d", l.Len())
		}
		counts := l.KindCounts()
		if counts[EventNormal] != 3 || counts[EventRework] != 1 || counts[EventRest] != 1 {
			t.Errorf("unexpected kind counts: %v", counts)
		}
	})

	t.Run("Window Query Uses Overlap", func(t *testing.T) {
		l := sampleLog()
		got := l.InRange(14, 16)
		if len(got) != 3 {
			t.Errorf("expected 3 overlapping events, got %d", len(got))
		}
	})

	t.Run("By Worker And Equipment", func(t *testing.T) {
		l := sampleLog()
		if got := l.ByWorker("Worker_01"); len(got) != 3 {
			t.Errorf("expected 3 events for Worker_01, got %d", len(got))
		}
		if got := l.ByEquipment("bench"); len(got) != 2 {
			t.Errorf("expected 2 events for bench, got %d", len(got))
		}
	})

	t.Run("Engine Ids And Completion Times", func(t *testing.T) {
		l := sampleLog()
		ids := l.EngineIDs()
		if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
			t.Errorf("expected [1 2], got %v", ids)
		}
		done, ok := l.CompletionTime(1)
		if !ok || done != 25 {
			t.Errorf("expected completion 25 for engine 1, got %v (%v)", done, ok)
		}
		if _, ok := l.CompletionTime(9); ok {
			t.Error("unknown engine should report no completion")
		}
	})

	t.Run("Quality Stats", func(t *testing.T) {
		l := sampleLog()
		q := l.Quality()
		if q.TotalInspections != 1 {
			t.Errorf("expected 1 inspection (M-type NORMAL), got %d", q.TotalInspections)
		}
		if q.TotalReworks != 1 {
			t.Errorf("expected 1 rework, got %d", q.TotalReworks)
		}
		if q.ReworkTimeTotal != 10 {
			t.Errorf("expected 10 rework minutes, got %v", q.ReworkTimeTotal)
		}
		if q.FirstPassRate != 0 {
			t.Errorf("1 inspection with 1 rework should give first-pass 0, got %v", q.FirstPassRate)
		}
	})

	t.Run("Quality Defaults To Perfect With No Inspections", func(t *testing.T) {
		q := NewLog().Quality()
		if q.FirstPassRate != 1 {
			t.Errorf("expected first-pass 1.0, got %v", q.FirstPassRate)
		}
	})

	t.Run("Total Time By Kind", func(t *testing.T) {
		l := sampleLog()
		if got := l.TotalTime(EventNormal); math.Abs(got-21) > 1e-9 {
			t.Errorf("expected 21 NORMAL minutes, got %v", got)
		}
		if got := l.TotalTime(EventRest); math.Abs(got-3) > 1e-9 {
			t.Errorf("expected 3 REST minutes, got %v", got)
		}
	})
}
