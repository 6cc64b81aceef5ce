package linesim

import (
	"math"
	"testing"
)

func TestEquipmentManager(t *testing.T) {
	t.Run("Capacity Limits Concurrent Holders", func(t *testing.T) {
		s := newScheduler(100)
		m := NewEquipmentManager(s, map[string]int{"rig": 1})
		var order []string

		for _, name := range []string{"first", "second"} {
			s.Spawn(func(p *proc) {
				acq, _, err := m.Request(p, []string{"rig"}, 1)
				if err != nil {
					return
				}
				order = append(order, name+"-in")
				_ = p.Sleep(10)
				order = append(order, name+"-out")
				m.Release(acq)
			})
		}
		s.Run()

		want := []string{"first-in", "first-out", "second-in", "second-out"}
		if len(order) != len(want) {
			t.Fatalf("expected %v, got %v", want, order)
		}
		for i := range want {
			if order[i] != want[i] {
				t.Fatalf("expected serialised access %v, got %v", want, order)
			}
		}
	})

	t.Run("Waiters Are Served FIFO Within Priority", func(t *testing.T) {
		s := newScheduler(200)
		m := NewEquipmentManager(s, map[string]int{"bench": 1})
		var order []string

		s.Spawn(func(p *proc) {
			acq, _, _ := m.Request(p, []string{"bench"}, 1)
			_ = p.Sleep(10)
			m.Release(acq)
		})
		for _, name := range []string{"w1", "w2", "w3"} {
			s.Spawn(func(p *proc) {
				acq, _, err := m.Request(p, []string{"bench"}, 1)
				if err != nil {
					return
				}
				order = append(order, name)
				_ = p.Sleep(5)
				m.Release(acq)
			})
		}
		s.Run()

		if len(order) != 3 || order[0] != "w1" || order[1] != "w2" || order[2] != "w3" {
			t.Errorf("expected FIFO [w1 w2 w3], got %v", order)
		}
	})

	t.Run("Lower Priority Number Wins The Queue", func(t *testing.T) {
		s := newScheduler(200)
		m := NewEquipmentManager(s, map[string]int{"bench": 1})
		var order []string

		s.Spawn(func(p *proc) {
			acq, _, _ := m.Request(p, []string{"bench"}, 1)
			_ = p.Sleep(10)
			m.Release(acq)
		})
		s.Spawn(func(p *proc) {
			acq, _, err := m.Request(p, []string{"bench"}, 5)
			if err != nil {
				return
			}
			order = append(order, "late-low-priority")
			m.Release(acq)
		})
		s.Spawn(func(p *proc) {
			_ = p.Sleep(1)
			acq, _, err := m.Request(p, []string{"bench"}, 1)
			if err != nil {
				return
			}
			order = append(order, "urgent")
			m.Release(acq)
		})
		s.Run()

		if len(order) != 2 || order[0] != "urgent" {
			t.Errorf("expected the priority-1 waiter first, got %v", order)
		}
	})

	t.Run("Conjunction Waits For Every Tool", func(t *testing.T) {
		s := newScheduler(200)
		m := NewEquipmentManager(s, map[string]int{"rig": 1, "bench": 1})
		var grantedAt float64

		s.Spawn(func(p *proc) {
			acq, _, _ := m.Request(p, []string{"rig"}, 1)
			_ = p.Sleep(10)
			m.Release(acq)
		})
		s.Spawn(func(p *proc) {
			acq, _, _ := m.Request(p, []string{"bench"}, 1)
			_ = p.Sleep(25)
			m.Release(acq)
		})
		s.Spawn(func(p *proc) {
			acq, critical, err := m.Request(p, []string{"rig", "bench"}, 1)
			if err != nil {
				return
			}
			if len(critical) != 2 {
				t.Errorf("expected 2 critical tools, got %v", critical)
			}
			grantedAt = p.Now()
			m.Release(acq)
		})
		s.Run()

		if grantedAt != 25 {
			t.Errorf("conjunction should complete when the last tool frees at 25, got %v", grantedAt)
		}
	})

	t.Run("Unlimited Tools Never Wait", func(t *testing.T) {
		s := newScheduler(100)
		m := NewEquipmentManager(s, map[string]int{})
		var waited bool

		for i := 0; i < 4; i++ {
			s.Spawn(func(p *proc) {
				start := p.Now()
				acq, critical, _ := m.Request(p, []string{"torque wrench"}, 1)
				if p.Now() != start {
					waited = true
				}
				if len(critical) != 0 {
					t.Errorf("unlimited tool reported as critical: %v", critical)
				}
				_ = p.Sleep(10)
				m.Release(acq)
			})
		}
		s.Run()

		if waited {
			t.Error("an unlimited tool introduced a wait")
		}
		stats := m.Stats(100)
		if len(stats) != 1 || !stats[0].IsUnlimited {
			t.Fatalf("expected one unlimited stat, got %+v", stats)
		}
		if stats[0].MaxConcurrentUsage != 4 {
			t.Errorf("expected max concurrency 4, got %d", stats[0].MaxConcurrentUsage)
		}
		if stats[0].UtilizationRate != 0 {
			t.Errorf("unlimited tools carry no utilisation, got %v", stats[0].UtilizationRate)
		}
	})

	t.Run("Utilisation And Bottleneck Flag", func(t *testing.T) {
		s := newScheduler(100)
		m := NewEquipmentManager(s, map[string]int{"rig": 1, "bench": 2})

		s.Spawn(func(p *proc) {
			acq, critical, _ := m.Request(p, []string{"rig"}, 1)
			for _, name := range critical {
				m.BeginUsage(name)
			}
			_ = p.Sleep(90)
			for _, name := range critical {
				m.EndUsage(name)
			}
			m.Release(acq)
		})
		s.Spawn(func(p *proc) {
			acq, critical, _ := m.Request(p, []string{"bench"}, 1)
			for _, name := range critical {
				m.BeginUsage(name)
			}
			_ = p.Sleep(40)
			for _, name := range critical {
				m.EndUsage(name)
			}
			m.Release(acq)
		})
		s.Run()

		util := m.Utilization(100)
		if math.Abs(util["rig"]-0.9) > 1e-9 {
			t.Errorf("expected rig utilisation 0.9, got %v", util["rig"])
		}
		if math.Abs(util["bench"]-0.2) > 1e-9 {
			t.Errorf("expected bench utilisation 0.2, got %v", util["bench"])
		}

		for _, es := range m.Stats(100) {
			switch es.Name {
			case "rig":
				if !es.IsBottleneck {
					t.Error("rig above 0.8 should be flagged bottleneck")
				}
				if es.TasksServed != 1 {
					t.Errorf("expected 1 task served, got %d", es.TasksServed)
				}
			case "bench":
				if es.IsBottleneck {
					t.Error("bench below 0.8 should not be flagged")
				}
			}
		}
	})

	t.Run("Usage Never Exceeds Capacity Times Horizon", func(t *testing.T) {
		s := newScheduler(50)
		m := NewEquipmentManager(s, map[string]int{"rig": 2})
		for i := 0; i < 5; i++ {
			s.Spawn(func(p *proc) {
				acq, critical, err := m.Request(p, []string{"rig"}, 1)
				if err != nil {
					return
				}
				for _, name := range critical {
					m.BeginUsage(name)
				}
				if err := p.Sleep(15); err == nil {
					for _, name := range critical {
						m.EndUsage(name)
					}
				}
				m.Release(acq)
			})
		}
		end := s.Run()

		for _, es := range m.Stats(end) {
			if es.WorkTime > float64(es.Capacity)*end+1e-9 {
				t.Errorf("%s: work time %v exceeds capacity*horizon %v", es.Name, es.WorkTime, float64(es.Capacity)*end)
			}
		}
	})
}
