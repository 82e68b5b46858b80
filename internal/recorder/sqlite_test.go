package recorder

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ems_simulator/internal/simulator"
)

func openTestRecorder(t *testing.T) *SQLiteRecorder {
	t.Helper()
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestSQLiteRecorder_RecordRun(t *testing.T) {
	r := openTestRecorder(t)

	start := time.Date(2020, 9, 4, 5, 0, 0, 0, time.UTC)
	records := []simulator.HourlyRecord{
		{Timestamp: start, Consumption: 1.0, Price: 0.5, GridKWh: 1.0, PeriodCost: 0.5},
		{Timestamp: start.Add(time.Hour), Consumption: 1.2, Price: 0.4, GridKWh: 1.2, PeriodCost: 0.48},
	}
	info := &RunInfo{
		Strategy:   "bare",
		Start:      start.Unix(),
		End:        start.Add(time.Hour).Unix(),
		SummedCost: 0.98,
	}
	require.NoError(t, r.RecordRun(info, records))

	var runs, rows int
	require.NoError(t, r.db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&runs))
	require.NoError(t, r.db.QueryRow("SELECT COUNT(*) FROM hourly_records").Scan(&rows))
	assert.Equal(t, 1, runs)
	assert.Equal(t, 2, rows)

	var strategy string
	var cost float64
	require.NoError(t, r.db.QueryRow("SELECT strategy, summed_cost FROM runs").Scan(&strategy, &cost))
	assert.Equal(t, "bare", strategy)
	assert.InDelta(t, 0.98, cost, 0.001)
}

func TestSQLiteRecorder_FailedRun(t *testing.T) {
	r := openTestRecorder(t)

	info := &RunInfo{Strategy: "smart", Failed: true, Error: "missing sample"}
	require.NoError(t, r.RecordRun(info, nil))

	var failed int
	var errText string
	require.NoError(t, r.db.QueryRow("SELECT failed, error FROM runs").Scan(&failed, &errText))
	assert.Equal(t, 1, failed)
	assert.Equal(t, "missing sample", errText)
}

func TestSQLiteRecorder_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")

	r, err := NewSQLiteRecorder(path)
	require.NoError(t, err)
	require.NoError(t, r.RecordRun(&RunInfo{Strategy: "pv"}, nil))
	require.NoError(t, r.Close())

	r2, err := NewSQLiteRecorder(path)
	require.NoError(t, err)
	defer r2.Close()

	var runs int
	require.NoError(t, r2.db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&runs))
	assert.Equal(t, 1, runs)
}
