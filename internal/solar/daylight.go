// Package solar provides daylight boundaries for a fixed location,
// used to decide when PV production starts and stops.
package solar

import (
	"time"

	"github.com/sixdouglas/suncalc"
)

// Location is a geographic point for daylight calculations.
type Location struct {
	Latitude  float64
	Longitude float64
}

// DefaultLocation is central Poland, matching the PSE market area the
// reference data comes from.
var DefaultLocation = Location{Latitude: 52.23, Longitude: 21.01}

// ProductionStop returns the hour (truncated) at which PV production
// stops on t's day: the sunset time for the location.
func (l Location) ProductionStop(t time.Time) time.Time {
	times := suncalc.GetTimes(t, l.Latitude, l.Longitude)
	return times["sunset"].Value.In(t.Location()).Truncate(time.Hour)
}

// ProductionStart returns the hour (truncated) at which PV production
// starts on t's day: the sunrise time for the location.
func (l Location) ProductionStart(t time.Time) time.Time {
	times := suncalc.GetTimes(t, l.Latitude, l.Longitude)
	return times["sunrise"].Value.In(t.Location()).Truncate(time.Hour)
}

// NextProductionStop returns the first production stop at or after t,
// looking at t's day first and falling back to the next day.
func (l Location) NextProductionStop(t time.Time) time.Time {
	stop := l.ProductionStop(t)
	if !stop.Before(t) {
		return stop
	}
	return l.ProductionStop(t.Add(24 * time.Hour))
}
