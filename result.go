package linesim

// Status is the terminal state of a run.
type Status string

// Run statuses.
const (
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// WorkerStat is the per-worker slice of the result.
type WorkerStat struct {
	WorkerID            string          `json:"worker_id"`
	State               WorkerState     `json:"state"`
	TotalTime           float64         `json:"total_time"`
	WorkTime            float64         `json:"work_time"`
	RestTime            float64         `json:"rest_time"`
	IdleTime            float64         `json:"idle_time"`
	UtilizationRate     float64         `json:"utilization_rate"`
	TasksCompleted      int             `json:"tasks_completed"`
	FatigueLevel        float64         `json:"fatigue_level"`
	HighIntensityCount  int             `json:"high_intensity_count"`
	FatigueHistory      []FatigueSample `json:"fatigue_history"`
}

// EquipmentStat is the per-equipment slice of the result. Unlimited
// tools report concurrency instead of utilisation.
type EquipmentStat struct {
	Name               string  `json:"equipment_name"`
	Capacity           int     `json:"capacity"`
	TotalTime          float64 `json:"total_time"`
	WorkTime           float64 `json:"work_time"`
	IdleTime           float64 `json:"idle_time"`
	UtilizationRate    float64 `json:"utilization_rate"`
	TasksServed        int     `json:"tasks_served"`
	IsBottleneck       bool    `json:"is_bottleneck"`
	IsUnlimited        bool    `json:"is_unlimited"`
	MaxConcurrentUsage int     `json:"max_concurrent_usage,omitempty"`
}

// QualityStats aggregates inspection outcomes over the run.
type QualityStats struct {
	TotalInspections int     `json:"total_inspections"`
	TotalReworks     int     `json:"total_reworks"`
	FirstPassRate    float64 `json:"first_pass_rate"`
	ReworkTimeTotal  float64 `json:"rework_time_total"`
}

// HumanFactorsStats aggregates the rest and fatigue picture.
type HumanFactorsStats struct {
	TotalRestTime              float64 `json:"total_rest_time"`
	AvgFatigueLevel            float64 `json:"avg_fatigue_level"`
	MaxFatigueLevel            float64 `json:"max_fatigue_level"`
	TotalHighIntensityExposure int     `json:"total_high_intensity_exposure"`
	RestEventsCount            int     `json:"rest_events_count"`
}

// TimeMapping relates virtual minutes to the working calendar.
type TimeMapping struct {
	MinutesPerDay   int     `json:"minutes_per_day"`
	TotalDays       int     `json:"total_days"`
	TotalMinutes    float64 `json:"total_minutes"`
	WorkHoursPerDay int     `json:"work_hours_per_day"`
}

// Result is the full outcome of one run: configuration echo, headline
// counters, per-resource statistics, and the complete event timeline.
type Result struct {
	SimID                 string            `json:"sim_id"`
	Status                Status            `json:"status"`
	Diagnosis             string            `json:"diagnosis,omitempty"`
	Config                Config            `json:"config"`
	SimDuration           float64           `json:"sim_duration"`
	EnginesCompleted      int               `json:"engines_completed"`
	TargetAchievementRate float64           `json:"target_achievement_rate"`
	AvgCycleTime          float64           `json:"avg_cycle_time"`
	WorkerStats           []WorkerStat      `json:"worker_stats"`
	EquipmentStats        []EquipmentStat   `json:"equipment_stats"`
	Quality               QualityStats      `json:"quality_stats"`
	HumanFactors          HumanFactorsStats `json:"human_factors_stats"`
	Events                []Event           `json:"events"`
	TimeMapping           TimeMapping       `json:"time_mapping"`
	CreatedAt             string            `json:"created_at"`
	CompletedAt           string            `json:"completed_at,omitempty"`
}

// Summary is the reduced outcome of a no-rest comparison run.
type Summary struct {
	EnginesCompleted     int     `json:"engines_completed"`
	AvgCycleTime         float64 `json:"avg_cycle_time"`
	SimDuration          float64 `json:"sim_duration"`
	AvgWorkerUtilization float64 `json:"avg_worker_utilization"`
	TotalRestTime        float64 `json:"total_rest_time"`
	FirstPassRate        float64 `json:"first_pass_rate"`
}
