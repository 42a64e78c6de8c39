package monitor

import "time"

// OpMetrics describes one coordinated operation, successful or not.
type OpMetrics struct {
	Op        string        `json:"op"`
	Attempts  int           `json:"attempts"`
	Conflicts int           `json:"conflicts"`
	Duration  time.Duration `json:"duration"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
}

type OpSummary struct {
	Count         int           `json:"count"`
	Successes     int           `json:"successes"`
	Failures      int           `json:"failures"`
	Attempts      int           `json:"attempts"`
	Conflicts     int           `json:"conflicts"`
	TotalDuration time.Duration `json:"total_duration"`
	AvgDuration   time.Duration `json:"avg_duration"`
	LastError     string        `json:"last_error,omitempty"`
}

type Summary struct {
	Ops   map[string]OpSummary `json:"ops"`
	Since time.Time            `json:"since"`
	Until time.Time            `json:"until"`
}
