package linesim

import (
	"math"
	"testing"
)

func TestWorkerPool(t *testing.T) {
	t.Run("Immediate Acquire Picks Least Loaded", func(t *testing.T) {
		s := newScheduler(100)
		pool := NewWorkerPool(s, 3)
		pool.Workers()[0].TotalWorkTime = 50
		pool.Workers()[1].TotalWorkTime = 10
		pool.Workers()[2].TotalWorkTime = 30

		var got []string
		s.Spawn(func(p *proc) {
			workers, err := pool.Acquire(p, 2)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			got = workerIDs(workers)
		})
		s.Run()

		if len(got) != 2 || got[0] != "Worker_02" || got[1] != "Worker_03" {
			t.Errorf("expected least-loaded [Worker_02 Worker_03], got %v", got)
		}
	})

	t.Run("Equal Load Ties Break By Id", func(t *testing.T) {
		s := newScheduler(100)
		pool := NewWorkerPool(s, 3)

		var got []string
		s.Spawn(func(p *proc) {
			workers, _ := pool.Acquire(p, 2)
			got = workerIDs(workers)
		})
		s.Run()

		if len(got) != 2 || got[0] != "Worker_01" || got[1] != "Worker_02" {
			t.Errorf("expected id-ordered pick, got %v", got)
		}
	})

	t.Run("Blocked Acquirers Are Served FIFO", func(t *testing.T) {
		s := newScheduler(100)
		pool := NewWorkerPool(s, 1)
		var order []string

		s.Spawn(func(p *proc) {
			workers, _ := pool.Acquire(p, 1)
			_ = p.Sleep(10)
			pool.Release(workers)
		})
		s.Spawn(func(p *proc) {
			workers, err := pool.Acquire(p, 1)
			if err != nil {
				return
			}
			order = append(order, "first-waiter")
			_ = p.Sleep(5)
			pool.Release(workers)
		})
		s.Spawn(func(p *proc) {
			workers, err := pool.Acquire(p, 1)
			if err != nil {
				return
			}
			order = append(order, "second-waiter")
			pool.Release(workers)
		})

		s.Run()
		if len(order) != 2 || order[0] != "first-waiter" || order[1] != "second-waiter" {
			t.Errorf("expected FIFO service order, got %v", order)
		}
	})

	t.Run("Head Waiter Blocks Smaller Requests Behind It", func(t *testing.T) {
		s := newScheduler(100)
		pool := NewWorkerPool(s, 2)
		var order []string

		s.Spawn(func(p *proc) {
			workers, _ := pool.Acquire(p, 2)
			_ = p.Sleep(10)
			pool.Release(workers)
		})
		s.Spawn(func(p *proc) { // needs both, queues first
			workers, err := pool.Acquire(p, 2)
			if err != nil {
				return
			}
			order = append(order, "big")
			_ = p.Sleep(5)
			pool.Release(workers)
		})
		s.Spawn(func(p *proc) { // needs one, queues second
			workers, err := pool.Acquire(p, 1)
			if err != nil {
				return
			}
			order = append(order, "small")
			pool.Release(workers)
		})

		s.Run()
		if len(order) != 2 || order[0] != "big" || order[1] != "small" {
			t.Errorf("expected the queue head served first, got %v", order)
		}
	})

	t.Run("Rest Holds Workers For The Task", func(t *testing.T) {
		s := newScheduler(100)
		pool := NewWorkerPool(s, 1)
		stolen := false

		s.Spawn(func(p *proc) {
			workers, _ := pool.Acquire(p, 1)
			if err := pool.EnterRest(p, workers, 10); err != nil {
				return
			}
			if workers[0].State != WorkerWorking {
				t.Errorf("expected worker back to WORKING after rest, got %s", workers[0].State)
			}
			pool.Release(workers)
		})
		s.Spawn(func(p *proc) {
			_ = p.Sleep(5) // mid-rest
			if pool.IdleCount() != 0 {
				stolen = true
			}
		})

		s.Run()
		if stolen {
			t.Error("resting worker was visible to other acquirers")
		}
	})

	t.Run("Rest Bookkeeping", func(t *testing.T) {
		s := newScheduler(100)
		pool := NewWorkerPool(s, 1)

		s.Spawn(func(p *proc) {
			workers, _ := pool.Acquire(p, 1)
			pool.AddWorkTime(workers, 40, 8, 0)
			_ = pool.EnterRest(p, workers, 10)
			pool.Release(workers)
		})
		s.Run()

		w := pool.Workers()[0]
		if w.TotalWorkTime != 40 {
			t.Errorf("expected 40 work minutes, got %v", w.TotalWorkTime)
		}
		if w.TotalRestTime != 10 {
			t.Errorf("expected 10 rest minutes, got %v", w.TotalRestTime)
		}
		if w.ConsecutiveWorkTime != 0 {
			t.Errorf("expected consecutive work reset, got %v", w.ConsecutiveWorkTime)
		}
	})

	t.Run("Fatigue Accrual And Recovery", func(t *testing.T) {
		w := &Worker{ID: "Worker_01", State: WorkerIdle}

		// 40 minutes at REBA 8: 40 * 0.8 * 0.5 = 16 points.
		w.addWorkTime(40, 8, 0)
		if math.Abs(w.FatigueLevel-16) > 1e-9 {
			t.Errorf("expected fatigue 16, got %v", w.FatigueLevel)
		}
		if w.HighIntensityCount != 1 {
			t.Errorf("expected one high-intensity exposure, got %d", w.HighIntensityCount)
		}

		// 5 minutes of rest recovers 10 points.
		w.applyRest(5, 40)
		if math.Abs(w.FatigueLevel-6) > 1e-9 {
			t.Errorf("expected fatigue 6 after rest, got %v", w.FatigueLevel)
		}

		// Recovery floors at zero.
		w.applyRest(60, 45)
		if w.FatigueLevel != 0 {
			t.Errorf("expected fatigue floored at 0, got %v", w.FatigueLevel)
		}

		if len(w.FatigueHistory) != 3 {
			t.Errorf("expected 3 fatigue samples, got %d", len(w.FatigueHistory))
		}
	})

	t.Run("Fatigue Caps At 100", func(t *testing.T) {
		w := &Worker{ID: "Worker_01"}
		w.addWorkTime(1000, 10, 0)
		if w.FatigueLevel != 100 {
			t.Errorf("expected fatigue capped at 100, got %v", w.FatigueLevel)
		}
	})

	t.Run("Needs Time Rest At Threshold", func(t *testing.T) {
		w := &Worker{ID: "Worker_01", ConsecutiveWorkTime: 50}
		if !w.needsTimeRest(50) {
			t.Error("threshold reached exactly should trigger rule A")
		}
		if w.needsTimeRest(50.1) {
			t.Error("below threshold should not trigger rule A")
		}
	})

	t.Run("Time Accounting Invariant", func(t *testing.T) {
		s := newScheduler(60)
		pool := NewWorkerPool(s, 2)

		s.Spawn(func(p *proc) {
			workers, _ := pool.Acquire(p, 1)
			_ = p.Sleep(20)
			pool.AddWorkTime(workers, 20, 5, 0)
			_ = pool.EnterRest(p, workers, 5)
			pool.Release(workers)
		})
		end := s.Run()

		for _, w := range pool.Workers() {
			total := w.TotalWorkTime + w.TotalRestTime + w.IdleTime(end)
			if math.Abs(total-end) > 1e-9 {
				t.Errorf("worker %s: work+rest+idle = %v, want %v", w.ID, total, end)
			}
		}
	})
}
