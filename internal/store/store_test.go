package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ems_simulator/internal/model"
)

var (
	startTime = time.Date(2020, 9, 4, 5, 0, 0, 0, time.UTC)
	hour      = time.Hour
)

func makeSamples(signal model.SignalType, values []float64, start time.Time) []model.Sample {
	samples := make([]model.Sample, len(values))
	for i, v := range values {
		samples[i] = model.Sample{
			Timestamp: start.Add(time.Duration(i) * hour),
			Signal:    signal,
			Value:     v,
		}
	}
	return samples
}

func TestStore_AddAndCount(t *testing.T) {
	s := New()
	s.AddSamples(makeSamples(model.SignalPrice, []float64{0.4, 0.5, 0.6}, startTime))

	assert.Equal(t, 3, s.SampleCount(model.SignalPrice))
	assert.Equal(t, 0, s.SampleCount(model.SignalProduction))
}

func TestStore_AtExactTimestamp(t *testing.T) {
	s := New()
	s.AddSamples(makeSamples(model.SignalConsumption, []float64{1.0, 2.0, 3.0}, startTime))

	v, err := s.At(model.SignalConsumption, startTime.Add(hour))
	require.NoError(t, err)
	assert.InDelta(t, 2.0, v, 0.001)
}

func TestStore_AtMissingSampleFails(t *testing.T) {
	s := New()
	s.AddSamples(makeSamples(model.SignalConsumption, []float64{1.0, 2.0}, startTime))

	// Between samples — exact lookup must not interpolate or default.
	_, err := s.At(model.SignalConsumption, startTime.Add(30*time.Minute))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingSample)

	// Outside the range.
	_, err = s.At(model.SignalConsumption, startTime.Add(-hour))
	assert.ErrorIs(t, err, ErrMissingSample)

	// Unknown signal.
	_, err = s.At(model.SignalPrice, startTime)
	assert.ErrorIs(t, err, ErrMissingSample)
}

func TestStore_Has(t *testing.T) {
	s := New()
	s.AddSamples(makeSamples(model.SignalPrice, []float64{0.4}, startTime))

	assert.True(t, s.Has(model.SignalPrice, startTime))
	assert.False(t, s.Has(model.SignalPrice, startTime.Add(hour)))
}

func TestStore_RangeInclusive(t *testing.T) {
	s := New()
	s.AddSamples(makeSamples(model.SignalPrice, []float64{1, 2, 3, 4, 5}, startTime))

	result := s.Range(model.SignalPrice, startTime.Add(hour), startTime.Add(3*hour))
	require.Len(t, result, 3)
	assert.InDelta(t, 2.0, result[0].Value, 0.001)
	assert.InDelta(t, 4.0, result[2].Value, 0.001)

	assert.Empty(t, s.Range(model.SignalPrice, startTime.Add(10*hour), startTime.Add(11*hour)))
	assert.Empty(t, s.Range(model.SignalConsumption, startTime, startTime.Add(hour)))
}

func TestStore_TimeRange(t *testing.T) {
	s := New()
	s.AddSamples(makeSamples(model.SignalProduction, []float64{0, 1, 2}, startTime))

	tr, ok := s.TimeRange(model.SignalProduction)
	require.True(t, ok)
	assert.Equal(t, startTime, tr.Start)
	assert.Equal(t, startTime.Add(2*hour), tr.End)

	_, ok = s.TimeRange(model.SignalPrice)
	assert.False(t, ok)
}

func TestStore_CommonTimeRange(t *testing.T) {
	s := New()

	_, ok := s.CommonTimeRange()
	assert.False(t, ok)

	// consumption: 05:00 – 08:00
	// price:       06:00 – 10:00
	// intersection: 06:00 – 08:00
	s.AddSamples(makeSamples(model.SignalConsumption, []float64{1, 1, 1, 1}, startTime))
	s.AddSamples(makeSamples(model.SignalPrice, []float64{1, 1, 1, 1, 1}, startTime.Add(hour)))

	tr, ok := s.CommonTimeRange()
	require.True(t, ok)
	assert.Equal(t, startTime.Add(hour), tr.Start)
	assert.Equal(t, startTime.Add(3*hour), tr.End)
}

func TestStore_CommonTimeRange_Disjoint(t *testing.T) {
	s := New()
	s.AddSamples(makeSamples(model.SignalConsumption, []float64{1, 1}, startTime))
	s.AddSamples(makeSamples(model.SignalPrice, []float64{1, 1}, startTime.Add(10*hour)))

	_, ok := s.CommonTimeRange()
	assert.False(t, ok)
}

func TestStore_AddSamplesUnsorted(t *testing.T) {
	s := New()
	s.AddSamples([]model.Sample{
		{Timestamp: startTime.Add(2 * hour), Signal: model.SignalPrice, Value: 3},
		{Timestamp: startTime, Signal: model.SignalPrice, Value: 1},
		{Timestamp: startTime.Add(hour), Signal: model.SignalPrice, Value: 2},
	})

	result := s.Range(model.SignalPrice, startTime, startTime.Add(2*hour))
	require.Len(t, result, 3)
	assert.InDelta(t, 1.0, result[0].Value, 0.001)
	assert.InDelta(t, 2.0, result[1].Value, 0.001)
	assert.InDelta(t, 3.0, result[2].Value, 0.001)
}

func TestStore_LastTimestamp(t *testing.T) {
	s := New()
	s.AddSamples(makeSamples(model.SignalPrice, []float64{1, 2}, startTime))

	last, ok := s.LastTimestamp(model.SignalPrice)
	require.True(t, ok)
	assert.Equal(t, startTime.Add(hour), last)

	_, ok = s.LastTimestamp(model.SignalProduction)
	assert.False(t, ok)
}
