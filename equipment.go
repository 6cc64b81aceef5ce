package linesim

import "sort"

// UsageInterval is one holder's span on a resource. End is negative
// while the span is still open; statistics close open spans at the
// current clock.
type UsageInterval struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type equipWaiter struct {
	acq      *acquisition
	resource *equipmentResource
	priority int
	seq      uint64
}

type equipmentResource struct {
	name     string
	capacity int
	inUse    int
	waiters  []*equipWaiter
	usage    []UsageInterval
}

func (r *equipmentResource) available() bool {
	return r.inUse < r.capacity
}

// enqueue inserts by ascending priority; equal priorities keep arrival
// order.
func (r *equipmentResource) enqueue(w *equipWaiter) {
	pos := len(r.waiters)
	for i, cand := range r.waiters {
		if w.priority < cand.priority {
			pos = i
			break
		}
	}
	r.waiters = append(r.waiters, nil)
	copy(r.waiters[pos+1:], r.waiters[pos:])
	r.waiters[pos] = w
}

func (r *equipmentResource) removeWaiter(w *equipWaiter) {
	for i, cand := range r.waiters {
		if cand == w {
			r.waiters = append(r.waiters[:i], r.waiters[i+1:]...)
			return
		}
	}
}

type unlimitedTally struct {
	name      string
	intervals []UsageInterval
	current   int
}

func (u *unlimitedTally) open(now float64) {
	u.intervals = append(u.intervals, UsageInterval{Start: now, End: -1})
	u.current++
}

func (u *unlimitedTally) close(now float64) {
	for i := len(u.intervals) - 1; i >= 0; i-- {
		if u.intervals[i].End < 0 {
			u.intervals[i].End = now
			break
		}
	}
	if u.current > 0 {
		u.current--
	}
}

// acquisition is one task's conjunction of critical-equipment requests.
// The task does not begin work until every requested token is held.
type acquisition struct {
	p         *proc
	held      []string
	pending   []*equipWaiter
	unlimited []string
}

// EquipmentManager serves the run's capacity-limited resources and
// tallies the unlimited ones. Critical equipment queues by priority,
// FIFO within a priority; unlimited tools never wait — their tally is
// reporting only.
type EquipmentManager struct {
	s         *scheduler
	resources map[string]*equipmentResource
	names     []string // critical names, sorted
	unlimited map[string]*unlimitedTally
	seq       uint64
}

// NewEquipmentManager builds a resource per critical equipment entry.
func NewEquipmentManager(s *scheduler, critical map[string]int) *EquipmentManager {
	m := &EquipmentManager{
		s:         s,
		resources: make(map[string]*equipmentResource, len(critical)),
		unlimited: make(map[string]*unlimitedTally),
	}
	for name := range critical {
		m.names = append(m.names, name)
	}
	sort.Strings(m.names)
	for _, name := range m.names {
		m.resources[name] = &equipmentResource{name: name, capacity: critical[name]}
	}
	return m
}

// IsCritical reports whether a tool name is capacity-limited.
func (m *EquipmentManager) IsCritical(name string) bool {
	_, ok := m.resources[name]
	return ok
}

// CriticalNames returns the critical equipment names, sorted.
func (m *EquipmentManager) CriticalNames() []string {
	return append([]string(nil), m.names...)
}

// UnlimitedNames returns unlimited tools seen so far, sorted.
func (m *EquipmentManager) UnlimitedNames() []string {
	var out []string
	for name := range m.unlimited {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// QueueLength returns the number of waiters on a critical resource.
func (m *EquipmentManager) QueueLength(name string) int {
	if r, ok := m.resources[name]; ok {
		return len(r.waiters)
	}
	return 0
}

// AvailableCapacity returns free slots on a critical resource; -1 means
// the tool is unlimited.
func (m *EquipmentManager) AvailableCapacity(name string) int {
	r, ok := m.resources[name]
	if !ok {
		return -1
	}
	return r.capacity - r.inUse
}

func (m *EquipmentManager) tally(name string) *unlimitedTally {
	u, ok := m.unlimited[name]
	if !ok {
		u = &unlimitedTally{name: name}
		m.unlimited[name] = u
	}
	return u
}

// Request acquires every critical tool in tools as a single conjunction,
// blocking until all are held; unlimited tools just open a tally sample
// and never wait. Returns the acquisition token and the critical subset
// in request order. Ties between waiters of equal priority resolve FIFO.
// On ErrHorizon everything partially held is returned.
func (m *EquipmentManager) Request(p *proc, tools []string, priority int) (*acquisition, []string, error) {
	acq := &acquisition{p: p}
	var critical []string
	for _, name := range tools {
		r, ok := m.resources[name]
		if !ok {
			m.tally(name).open(m.s.Now())
			acq.unlimited = append(acq.unlimited, name)
			continue
		}
		critical = append(critical, name)
		if r.available() && len(r.waiters) == 0 {
			r.inUse++
			acq.held = append(acq.held, name)
			continue
		}
		m.seq++
		w := &equipWaiter{acq: acq, resource: r, priority: priority, seq: m.seq}
		r.enqueue(w)
		acq.pending = append(acq.pending, w)
	}

	for len(acq.pending) > 0 {
		if err := p.park(); err != nil {
			m.abort(acq)
			return nil, critical, err
		}
	}
	return acq, critical, nil
}

// Release returns every critical token of the acquisition and closes the
// unlimited samples, waking the next waiters in queue order.
func (m *EquipmentManager) Release(acq *acquisition) {
	if acq == nil {
		return
	}
	for _, name := range acq.held {
		if r, ok := m.resources[name]; ok {
			r.inUse--
			m.serve(r)
		}
	}
	acq.held = nil
	for _, name := range acq.unlimited {
		m.tally(name).close(m.s.Now())
	}
	acq.unlimited = nil
}

// serve grants freed capacity to the queue head. A grant may complete
// the head's conjunction, in which case its activity is woken.
func (m *EquipmentManager) serve(r *equipmentResource) {
	for r.available() && len(r.waiters) > 0 {
		w := r.waiters[0]
		r.waiters = r.waiters[1:]
		r.inUse++
		w.acq.held = append(w.acq.held, r.name)
		w.acq.dropPending(w)
		if len(w.acq.pending) == 0 {
			w.acq.p.unpark()
		}
	}
}

// abort unwinds a partially granted conjunction when the run ends:
// outstanding waiters leave their queues, held tokens free up, open
// tally samples close.
func (m *EquipmentManager) abort(acq *acquisition) {
	for _, w := range acq.pending {
		w.resource.removeWaiter(w)
	}
	acq.pending = nil
	m.Release(acq)
}

func (a *acquisition) dropPending(w *equipWaiter) {
	for i, cand := range a.pending {
		if cand == w {
			a.pending = append(a.pending[:i], a.pending[i+1:]...)
			return
		}
	}
}

// BeginUsage opens a usage interval on a critical resource. The executor
// calls it once the full conjunction is held, so holding-while-waiting
// does not count as utilisation.
func (m *EquipmentManager) BeginUsage(name string) {
	if r, ok := m.resources[name]; ok {
		r.usage = append(r.usage, UsageInterval{Start: m.s.Now(), End: -1})
	}
}

// EndUsage closes the most recent open usage interval on a resource.
func (m *EquipmentManager) EndUsage(name string) {
	r, ok := m.resources[name]
	if !ok {
		return
	}
	for i := len(r.usage) - 1; i >= 0; i-- {
		if r.usage[i].End < 0 {
			r.usage[i].End = m.s.Now()
			return
		}
	}
}

func closedTime(intervals []UsageInterval, now float64) (busy float64, closed int) {
	for _, iv := range intervals {
		if iv.End >= 0 {
			busy += iv.End - iv.Start
			closed++
		} else {
			busy += now - iv.Start
		}
	}
	return busy, closed
}

// Utilization returns per-resource busy share over [0, totalTime]:
// Σ(end-start) / (capacity · totalTime). Open intervals count up to the
// current clock.
func (m *EquipmentManager) Utilization(totalTime float64) map[string]float64 {
	out := make(map[string]float64, len(m.resources))
	for name, r := range m.resources {
		capTime := totalTime * float64(r.capacity)
		if capTime <= 0 {
			out[name] = 0
			continue
		}
		busy, _ := closedTime(r.usage, m.s.Now())
		out[name] = busy / capTime
	}
	return out
}

// Stats assembles the per-equipment report: critical resources with
// utilisation and the 0.8 bottleneck flag, then unlimited tools with
// their concurrency tally and no utilisation.
func (m *EquipmentManager) Stats(totalTime float64) []EquipmentStat {
	now := m.s.Now()
	var stats []EquipmentStat
	util := m.Utilization(totalTime)
	for _, name := range m.names {
		r := m.resources[name]
		capTime := totalTime * float64(r.capacity)
		busy, closed := closedTime(r.usage, now)
		stats = append(stats, EquipmentStat{
			Name:            name,
			Capacity:        r.capacity,
			TotalTime:       capTime,
			WorkTime:        busy,
			IdleTime:        capTime - busy,
			UtilizationRate: util[name],
			TasksServed:     closed,
			IsBottleneck:    util[name] > 0.8,
		})
	}
	for _, name := range m.UnlimitedNames() {
		u := m.unlimited[name]
		busy, closed := closedTime(u.intervals, now)
		stats = append(stats, EquipmentStat{
			Name:               name,
			TotalTime:          totalTime,
			WorkTime:           busy,
			TasksServed:        closed,
			IsUnlimited:        true,
			MaxConcurrentUsage: maxConcurrent(u.intervals, now),
		})
	}
	return stats
}

// maxConcurrent sweeps interval endpoints for the peak overlap.
func maxConcurrent(intervals []UsageInterval, now float64) int {
	type edge struct {
		at    float64
		delta int
	}
	var edges []edge
	for _, iv := range intervals {
		end := iv.End
		if end < 0 {
			end = now
		}
		edges = append(edges, edge{iv.Start, 1}, edge{end, -1})
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].at != edges[j].at {
			return edges[i].at < edges[j].at
		}
		return edges[i].delta < edges[j].delta
	})
	current, peak := 0, 0
	for _, e := range edges {
		current += e.delta
		if current > peak {
			peak = current
		}
	}
	return peak
}
