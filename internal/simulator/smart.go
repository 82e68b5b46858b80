package simulator

import (
	"fmt"
	"time"

	"ems_simulator/internal/model"
	"ems_simulator/internal/solar"
	"ems_simulator/internal/store"
)

// DispatchMode selects the Smart strategy's planning horizon.
type DispatchMode string

const (
	// ModeFullBank plans over the rest of the current day and keeps the
	// bank as full as reachable at the end of it.
	ModeFullBank DispatchMode = "full_bank"

	// ModeInterval plans over the window between now and the earlier of
	// the next production stop (sunset) and the end of published price
	// data, leaving the terminal level free.
	ModeInterval DispatchMode = "interval"
)

// maxHorizonHours bounds the planning window so a long price series
// cannot blow up the horizon search.
const maxHorizonHours = 48

// Smart is the forecast-aware strategy: each hour it re-plans the
// cheapest storage schedule over its horizon and commits only the first
// step (receding-horizon control).
type Smart struct {
	src      *store.Store
	bank     *EnergyBank
	mode     DispatchMode
	location solar.Location
}

func NewSmart(src *store.Store, bank *EnergyBank, mode DispatchMode, loc solar.Location) (*Smart, error) {
	switch mode {
	case ModeFullBank, ModeInterval:
	default:
		return nil, fmt.Errorf("unknown dispatch mode %q", mode)
	}
	return &Smart{src: src, bank: bank, mode: mode, location: loc}, nil
}

func (s *Smart) Name() string      { return "smart_" + string(s.mode) }
func (s *Smart) Bank() *EnergyBank { return s.bank }

func (s *Smart) Decide(t time.Time) (Action, error) {
	hours, err := s.horizon(t)
	if err != nil {
		return Action{}, err
	}

	deltas, err := planHorizon(s.bank, s.bank.Level(), hours, s.mode == ModeFullBank)
	if err != nil {
		return Action{}, fmt.Errorf("planning at %s: %w", t.Format(time.RFC3339), err)
	}

	delta := deltas[0]
	fallback := false
	if !s.feasible(delta) {
		// A plan head the bank cannot absorb means the planner's level
		// grid and the live bank disagree; cover the hour locally instead
		// of forcing the level outside its bounds, and flag the hour so
		// the deviation shows up in the ledger.
		delta = s.localFallback(hours[0])
		fallback = true
	}

	return Action{
		StorageDeltaKWh: delta,
		GridKWh:         round2(hours[0].Consumption - hours[0].Production + delta),
		Consumption:     hours[0].Consumption,
		Production:      hours[0].Production,
		Fallback:        fallback,
	}, nil
}

// horizon materializes forecast hours from t to the mode's boundary.
// The first hour is the current one; a missing sample there is a hard
// failure. Later hours extend the horizon only as far as data reaches.
func (s *Smart) horizon(t time.Time) ([]planHour, error) {
	end := s.horizonEnd(t)

	var hours []planHour
	for ts := t; !ts.After(end) && len(hours) < maxHorizonHours; ts = ts.Add(time.Hour) {
		hr, err := s.hourAt(ts)
		if err != nil {
			if len(hours) == 0 {
				return nil, err
			}
			break
		}
		hours = append(hours, hr)
	}
	if len(hours) == 0 {
		return nil, fmt.Errorf("no forecast data at %s: %w", t.Format(time.RFC3339), store.ErrMissingSample)
	}
	return hours, nil
}

func (s *Smart) horizonEnd(t time.Time) time.Time {
	switch s.mode {
	case ModeInterval:
		end := s.location.NextProductionStop(t)
		if lastPrice, ok := s.src.LastTimestamp(model.SignalPrice); ok && lastPrice.Before(end) {
			// Prices run out before sunset; no point planning past them.
			end = lastPrice
		}
		return end
	default:
		// Full-bank mode plans through the end of the current day.
		return time.Date(t.Year(), t.Month(), t.Day(), 23, 0, 0, 0, t.Location())
	}
}

func (s *Smart) hourAt(ts time.Time) (planHour, error) {
	cons, err := consumptionAt(s.src, ts)
	if err != nil {
		return planHour{}, err
	}
	prod, err := productionAt(s.src, ts)
	if err != nil {
		return planHour{}, err
	}
	price, err := s.src.At(model.SignalPrice, ts)
	if err != nil {
		return planHour{}, fmt.Errorf("price lookup: %w", err)
	}
	return planHour{Consumption: cons, Production: prod, Price: price}, nil
}

// feasibilityEps tolerates two-decimal rounding noise only; a plan head
// off by more than that would push the level outside its bounds.
const feasibilityEps = 0.005

func (s *Smart) feasible(delta float64) bool {
	if delta > 0 {
		return delta <= s.bank.Headroom()+feasibilityEps
	}
	return -delta <= s.bank.Available()+feasibilityEps
}

// localFallback covers the current hour with the bank alone: store what
// fits of a surplus, release what is available against a deficit.
func (s *Smart) localFallback(hr planHour) float64 {
	balance := hr.Production - hr.Consumption
	if balance >= 0 {
		if balance > s.bank.Headroom() {
			balance = s.bank.Headroom()
		}
		return round2(balance)
	}
	release := -balance
	if release > s.bank.Available() {
		release = s.bank.Available()
	}
	return round2(-release)
}
