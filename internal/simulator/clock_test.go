package simulator

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ems_simulator/internal/model"
	"ems_simulator/internal/store"
)

type recordingCallback struct {
	mu      sync.Mutex
	states  []State
	records map[string][]HourlyRecord
	results []Result
}

func newRecordingCallback() *recordingCallback {
	return &recordingCallback{records: make(map[string][]HourlyRecord)}
}

func (c *recordingCallback) OnState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states = append(c.states, s)
}

func (c *recordingCallback) OnRecord(strategy string, rec HourlyRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records[strategy] = append(c.records[strategy], rec)
}

func (c *recordingCallback) OnResult(r Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, r)
}

func clockRange(hours int) ClockConfig {
	return ClockConfig{
		Start: t0,
		End:   t0.Add(time.Duration(hours-1) * time.Hour),
	}
}

func TestClock_BareConstantPrice(t *testing.T) {
	cons := []float64{1.0, 2.0, 3.0}
	src := seedStore(cons, nil, []float64{0.5, 0.5, 0.5})

	cb := newRecordingCallback()
	clock, err := NewClock(clockRange(3), src, []Strategy{NewBare(src)}, cb)
	require.NoError(t, err)
	require.Equal(t, PhaseIdle, clock.Phase())

	results, err := clock.Run()
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, PhaseCompleted, clock.Phase())

	res := results[0]
	require.Len(t, res.Records, 3)
	// summed_cost == p × Σc
	assert.InDelta(t, 0.5*(1+2+3), res.SummedCost, 0.001)

	for i, rec := range res.Records {
		assert.Equal(t, t0.Add(time.Duration(i)*time.Hour), rec.Timestamp)
		assert.InDelta(t, cons[i], rec.GridKWh, 0.001)
		assert.InDelta(t, 0, rec.Production, 0.001)
		assert.InDelta(t, 0, rec.StorageDeltaKWh, 0.001)
		assert.InDelta(t, 0, rec.OperationCost, 0.001)
	}
}

func TestClock_PVSurplusHourIsASale(t *testing.T) {
	src := seedStore([]float64{1.0}, []float64{2.5}, []float64{0.5})

	clock, err := NewClock(clockRange(1), src, []Strategy{NewPV(src)}, nil)
	require.NoError(t, err)

	results, err := clock.Run()
	require.NoError(t, err)

	rec := results[0].Records[0]
	assert.Negative(t, rec.GridKWh)
	assert.InDelta(t, 0, rec.StorageDeltaKWh, 0.001)
	assert.InDelta(t, -0.75, rec.PeriodCost, 0.001)
}

func TestClock_RawFullChargesWearCost(t *testing.T) {
	src := seedStore([]float64{0}, []float64{2.0}, []float64{0.5})
	bank, err := NewBank(BankConfig{
		CapacityKWh:     5.0,
		InitialLevelKWh: 1.0,
		PurchaseCost:    500,
		RatedCycles:     8000,
	})
	require.NoError(t, err)

	clock, err := NewClock(clockRange(1), src, []Strategy{NewRawFull(src, bank)}, nil)
	require.NoError(t, err)

	results, err := clock.Run()
	require.NoError(t, err)

	rec := results[0].Records[0]
	assert.InDelta(t, 2.0, rec.StorageDeltaKWh, 0.001)
	assert.InDelta(t, 3.0, rec.BankLevelKWh, 0.001)
	// (2 / (2·5)) · (500 / 8000) = 0.0125, rounded to 0.01.
	assert.InDelta(t, 0.01, rec.OperationCost, 0.001)
	assert.InDelta(t, 0.01, rec.PeriodCost, 0.001)
}

func TestClock_FailureIsStrategyLocal(t *testing.T) {
	// Production data ends after one hour: the PV strategy fails in hour
	// two, the bare strategy finishes the whole range.
	src := seedStore([]float64{1, 1, 1}, []float64{2}, []float64{0.5, 0.5, 0.5})

	cb := newRecordingCallback()
	clock, err := NewClock(clockRange(3), src, []Strategy{NewBare(src), NewPV(src)}, cb)
	require.NoError(t, err)

	results, err := clock.Run()
	require.NoError(t, err)
	assert.Equal(t, PhaseCompleted, clock.Phase())

	bare, pv := results[0], results[1]
	require.False(t, bare.Failed())
	assert.Len(t, bare.Records, 3)
	assert.InDelta(t, 1.5, bare.SummedCost, 0.001)

	require.True(t, pv.Failed())
	assert.ErrorIs(t, pv.Err, store.ErrMissingSample)
	// Partial results are discarded for the failed strategy only.
	assert.Empty(t, pv.Records)
	assert.InDelta(t, 0, pv.SummedCost, 0.001)
}

func TestClock_FailFastAbortsRun(t *testing.T) {
	src := seedStore([]float64{1, 1}, []float64{2}, []float64{0.5, 0.5})

	cfg := clockRange(2)
	cfg.FailFast = true
	clock, err := NewClock(cfg, src, []Strategy{NewPV(src)}, nil)
	require.NoError(t, err)

	_, err = clock.Run()
	require.Error(t, err)
	assert.Equal(t, PhaseFailed, clock.Phase())
}

func TestClock_MissingPriceFailsStrategy(t *testing.T) {
	src := seedStore([]float64{1}, nil, nil)

	clock, err := NewClock(clockRange(1), src, []Strategy{NewBare(src)}, nil)
	require.NoError(t, err)

	results, err := clock.Run()
	require.NoError(t, err)
	assert.True(t, results[0].Failed())
	assert.ErrorIs(t, results[0].Err, store.ErrMissingSample)
}

func TestClock_CannotRunTwice(t *testing.T) {
	src := seedStore([]float64{1}, nil, []float64{0.5})

	clock, err := NewClock(clockRange(1), src, []Strategy{NewBare(src)}, nil)
	require.NoError(t, err)

	_, err = clock.Run()
	require.NoError(t, err)

	_, err = clock.Run()
	assert.Error(t, err)
}

func TestClock_RejectsBadConfig(t *testing.T) {
	src := seedStore([]float64{1}, nil, []float64{0.5})

	_, err := NewClock(ClockConfig{Start: t0, End: t0.Add(-time.Hour)}, src, []Strategy{NewBare(src)}, nil)
	assert.Error(t, err)

	_, err = NewClock(clockRange(1), src, nil, nil)
	assert.Error(t, err)

	_, err = NewClock(clockRange(1), nil, []Strategy{NewBare(src)}, nil)
	assert.Error(t, err)
}

func TestClock_StateProgression(t *testing.T) {
	src := seedStore([]float64{1, 1}, nil, []float64{0.5, 0.5})

	cb := newRecordingCallback()
	clock, err := NewClock(clockRange(2), src, []Strategy{NewBare(src)}, cb)
	require.NoError(t, err)

	_, err = clock.Run()
	require.NoError(t, err)

	require.NotEmpty(t, cb.states)
	assert.Equal(t, PhaseRunning, cb.states[0].Phase)
	assert.Equal(t, PhaseCompleted, cb.states[len(cb.states)-1].Phase)
}

func TestClock_ResidualFoldsIntoGrid(t *testing.T) {
	// A strategy that knowingly over-asks the bank: the clock folds the
	// unsatisfied residual into the grid exchange before pricing.
	src := seedStore([]float64{1}, nil, []float64{1.0})
	bank, err := NewBank(BankConfig{CapacityKWh: 2.0, InitialLevelKWh: 1.0, RatedCycles: 1000, PurchaseCost: 1})
	require.NoError(t, err)

	clock, err := NewClock(clockRange(1), src, []Strategy{&greedyStrategy{src: src, bank: bank}}, nil)
	require.NoError(t, err)

	results, err := clock.Run()
	require.NoError(t, err)

	rec := results[0].Records[0]
	// Asked to release 3.0 with only 1.0 available: realized delta -1.0,
	// the missing 2.0 is bought on top of the planned exchange.
	assert.InDelta(t, -1.0, rec.StorageDeltaKWh, 0.001)
	assert.InDelta(t, 0, rec.GridKWh, 0.001)
	assert.InDelta(t, 0, rec.BankLevelKWh, 0.001)
}

// greedyStrategy deliberately requests more than its bank holds.
type greedyStrategy struct {
	src  *store.Store
	bank *EnergyBank
}

func (s *greedyStrategy) Name() string      { return "greedy" }
func (s *greedyStrategy) Bank() *EnergyBank { return s.bank }

func (s *greedyStrategy) Decide(t time.Time) (Action, error) {
	cons, err := s.src.At(model.SignalConsumption, t)
	if err != nil {
		return Action{}, err
	}
	return Action{
		StorageDeltaKWh: -3.0,
		GridKWh:         cons - 3.0,
		Consumption:     cons,
	}, nil
}
