package recorder

import "ems_simulator/internal/simulator"

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordRun(_ *RunInfo, _ []simulator.HourlyRecord) error { return nil }
func (n *NoopRecorder) Close() error                                           { return nil }
