package recorder

import (
	"ems_simulator/internal/simulator"
)

// RunInfo describes a completed simulation run of one strategy.
type RunInfo struct {
	Strategy   string
	Start      int64 // unix seconds of the first simulated hour
	End        int64 // unix seconds of the last simulated hour
	SummedCost float64
	Failed     bool
	Error      string
}

// Recorder persists simulation results for later analysis.
type Recorder interface {
	RecordRun(info *RunInfo, records []simulator.HourlyRecord) error
	Close() error
}
