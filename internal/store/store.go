package store

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"ems_simulator/internal/model"
)

// ErrMissingSample is returned when a signal has no sample at the
// requested timestamp. Gaps are errors, never silent defaults.
var ErrMissingSample = errors.New("missing sample")

// Store holds hourly signal samples in memory, indexed by signal type.
// Loaded before a simulation starts and treated as immutable during a run.
type Store struct {
	mu      sync.RWMutex
	samples map[model.SignalType][]model.Sample // sorted by timestamp
}

func New() *Store {
	return &Store{
		samples: make(map[model.SignalType][]model.Sample),
	}
}

// AddSamples adds samples, then re-sorts each affected signal.
func (s *Store) AddSamples(samples []model.Sample) {
	if len(samples) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sm := range samples {
		s.samples[sm.Signal] = append(s.samples[sm.Signal], sm)
	}

	seen := make(map[model.SignalType]bool)
	for _, sm := range samples {
		if !seen[sm.Signal] {
			seen[sm.Signal] = true
			sort.Slice(s.samples[sm.Signal], func(i, j int) bool {
				return s.samples[sm.Signal][i].Timestamp.Before(s.samples[sm.Signal][j].Timestamp)
			})
		}
	}
}

// SampleCount returns the number of samples held for a signal.
func (s *Store) SampleCount(signal model.SignalType) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.samples[signal])
}

// At returns the signal value at exactly t. A timestamp not present in
// the backing data yields ErrMissingSample.
func (s *Store) At(signal model.SignalType, t time.Time) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.samples[signal]
	idx := sort.Search(len(all), func(i int) bool {
		return !all[i].Timestamp.Before(t)
	})
	if idx < len(all) && all[idx].Timestamp.Equal(t) {
		return all[idx].Value, nil
	}
	return 0, fmt.Errorf("%s at %s: %w", signal, t.Format(time.RFC3339), ErrMissingSample)
}

// Has reports whether the signal holds a sample at exactly t.
func (s *Store) Has(signal model.SignalType, t time.Time) bool {
	_, err := s.At(signal, t)
	return err == nil
}

// Range returns samples between start and end, both inclusive.
func (s *Store) Range(signal model.SignalType, start, end time.Time) []model.Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.samples[signal]
	if len(all) == 0 {
		return nil
	}

	startIdx := sort.Search(len(all), func(i int) bool {
		return !all[i].Timestamp.Before(start)
	})
	endIdx := sort.Search(len(all), func(i int) bool {
		return all[i].Timestamp.After(end)
	})

	if startIdx >= endIdx {
		return nil
	}

	result := make([]model.Sample, endIdx-startIdx)
	copy(result, all[startIdx:endIdx])
	return result
}

// TimeRange returns the time range covered by a signal's samples.
func (s *Store) TimeRange(signal model.SignalType) (model.TimeRange, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.samples[signal]
	if len(all) == 0 {
		return model.TimeRange{}, false
	}
	return model.TimeRange{
		Start: all[0].Timestamp,
		End:   all[len(all)-1].Timestamp,
	}, true
}

// CommonTimeRange returns the intersection of all signals' time ranges,
// i.e. the widest range over which every loaded signal has data.
func (s *Store) CommonTimeRange() (model.TimeRange, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var start, end time.Time
	first := true

	for _, all := range s.samples {
		if len(all) == 0 {
			continue
		}
		sStart := all[0].Timestamp
		sEnd := all[len(all)-1].Timestamp

		if first || sStart.After(start) {
			start = sStart
		}
		if first || sEnd.Before(end) {
			end = sEnd
		}
		first = false
	}

	if first || end.Before(start) {
		return model.TimeRange{}, false
	}
	return model.TimeRange{Start: start, End: end}, true
}

// LastTimestamp returns the timestamp of the newest sample for a signal.
func (s *Store) LastTimestamp(signal model.SignalType) (time.Time, bool) {
	tr, ok := s.TimeRange(signal)
	if !ok {
		return time.Time{}, false
	}
	return tr.End, true
}
