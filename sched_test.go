package linesim

import (
	"errors"
	"testing"
)

func TestScheduler(t *testing.T) {
	t.Run("Sleep Orders By Deadline", func(t *testing.T) {
		s := newScheduler(100)
		var order []string

		s.Spawn(func(p *proc) {
			_ = p.Sleep(30)
			order = append(order, "slow")
		})
		s.Spawn(func(p *proc) {
			_ = p.Sleep(10)
			order = append(order, "fast")
		})

		end := s.Run()
		if end != 30 {
			t.Errorf("expected final time 30, got %v", end)
		}
		if len(order) != 2 || order[0] != "fast" || order[1] != "slow" {
			t.Errorf("expected [fast slow], got %v", order)
		}
	})

	t.Run("Equal Deadlines Keep Spawn Order", func(t *testing.T) {
		s := newScheduler(100)
		var order []int
		for i := 0; i < 5; i++ {
			s.Spawn(func(p *proc) {
				_ = p.Sleep(10)
				order = append(order, i)
			})
		}
		s.Run()
		for i, got := range order {
			if got != i {
				t.Fatalf("expected spawn order preserved, got %v", order)
			}
		}
	})

	t.Run("Clock Is Monotone Across Nested Sleeps", func(t *testing.T) {
		s := newScheduler(1000)
		var stamps []float64
		s.Spawn(func(p *proc) {
			for i := 0; i < 10; i++ {
				_ = p.Sleep(float64(i))
				stamps = append(stamps, p.Now())
			}
		})
		s.Run()
		for i := 1; i < len(stamps); i++ {
			if stamps[i] < stamps[i-1] {
				t.Fatalf("clock went backwards: %v", stamps)
			}
		}
	})

	t.Run("Horizon Abandons Pending Sleeps", func(t *testing.T) {
		s := newScheduler(50)
		completed := false
		aborted := false
		s.Spawn(func(p *proc) {
			if err := p.Sleep(80); err != nil {
				aborted = errors.Is(err, ErrHorizon)
				return
			}
			completed = true
		})

		end := s.Run()
		if end != 50 {
			t.Errorf("expected clock capped at horizon 50, got %v", end)
		}
		if completed {
			t.Error("sleep past the horizon should not complete")
		}
		if !aborted {
			t.Error("expected ErrHorizon from abandoned sleep")
		}
	})

	t.Run("Run Ends Early When Nothing Remains", func(t *testing.T) {
		s := newScheduler(1000)
		s.Spawn(func(p *proc) {
			_ = p.Sleep(5)
			_ = p.Sleep(7)
		})
		if end := s.Run(); end != 12 {
			t.Errorf("expected final time 12, got %v", end)
		}
	})

	t.Run("Spawn From Running Activity", func(t *testing.T) {
		s := newScheduler(100)
		var order []string
		s.Spawn(func(p *proc) {
			order = append(order, "parent")
			s.Spawn(func(cp *proc) {
				order = append(order, "child")
				_ = cp.Sleep(5)
				order = append(order, "child-done")
			})
			_ = p.Sleep(10)
			order = append(order, "parent-done")
		})
		s.Run()
		want := []string{"parent", "child", "child-done", "parent-done"}
		if len(order) != len(want) {
			t.Fatalf("expected %v, got %v", want, order)
		}
		for i := range want {
			if order[i] != want[i] {
				t.Fatalf("expected %v, got %v", want, order)
			}
		}
	})

	t.Run("Park And Unpark Hand Off Deterministically", func(t *testing.T) {
		s := newScheduler(100)
		var waiter *proc
		woken := false

		s.Spawn(func(p *proc) {
			waiter = p
			if err := p.park(); err != nil {
				return
			}
			woken = true
		})
		s.Spawn(func(p *proc) {
			_ = p.Sleep(20)
			waiter.unpark()
		})

		s.Run()
		if !woken {
			t.Error("parked activity was never woken")
		}
	})

	t.Run("Parked Activity Aborts At Shutdown", func(t *testing.T) {
		s := newScheduler(10)
		var err error
		s.Spawn(func(p *proc) {
			err = p.park()
		})
		s.Run()
		if !errors.Is(err, ErrHorizon) {
			t.Errorf("expected ErrHorizon for abandoned park, got %v", err)
		}
	})
}
