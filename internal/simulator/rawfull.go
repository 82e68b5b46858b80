package simulator

import (
	"time"

	"ems_simulator/internal/model"
	"ems_simulator/internal/store"
)

// reserveFraction of the usable range is kept in the bank unless the
// rest of the day's surplus is certain to refill what extra is taken.
const reserveFraction = 0.2

// RawFull is the naive full-bank policy: it routes every surplus into the
// bank first and covers deficits from the bank first, but aims to end
// each day with the bank full. Energy below a reserve floor is released
// only when the remaining hours of the day are already known to produce
// enough surplus to refill the bank; when that is uncertain the deficit
// is bought from the grid instead.
type RawFull struct {
	src  *store.Store
	bank *EnergyBank
}

func NewRawFull(src *store.Store, bank *EnergyBank) *RawFull {
	return &RawFull{src: src, bank: bank}
}

func (s *RawFull) Name() string      { return "raw_full" }
func (s *RawFull) Bank() *EnergyBank { return s.bank }

func (s *RawFull) Decide(t time.Time) (Action, error) {
	consumption, err := consumptionAt(s.src, t)
	if err != nil {
		return Action{}, err
	}
	production, err := productionAt(s.src, t)
	if err != nil {
		return Action{}, err
	}

	balance := round2(production - consumption)
	if balance >= 0 {
		// Surplus charges the bank first; the overflow is sold.
		delta := balance
		if delta > s.bank.Headroom() {
			delta = s.bank.Headroom()
		}
		return Action{
			StorageDeltaKWh: delta,
			GridKWh:         round2(consumption - production + delta),
			Consumption:     consumption,
			Production:      production,
		}, nil
	}

	deficit := -balance
	release := deficit
	if release > s.bank.Available() {
		release = s.bank.Available()
	}

	// Above the reserve the bank discharges freely. Below it, only the
	// part of the deficit that the rest of the day can restore on top of
	// refilling the bank is released; ties buy from the grid.
	reserve := s.bank.MinLevel() + reserveFraction*(s.bank.Capacity()-s.bank.MinLevel())
	aboveReserve := s.bank.Level() - reserve
	if aboveReserve < 0 {
		aboveReserve = 0
	}
	if release > aboveReserve {
		spare := s.rechargeSpare(t)
		allowed := aboveReserve
		if spare > aboveReserve {
			allowed = spare
		}
		if release > allowed {
			release = round2(allowed)
		}
	}

	return Action{
		StorageDeltaKWh: -release,
		GridKWh:         round2(deficit - release),
		Consumption:     consumption,
		Production:      production,
	}, nil
}

// rechargeSpare returns how much energy the bank could give up right now
// and still certainly be full again by the end of the day: the known
// remaining surplus of the day minus the headroom that refilling already
// requires. Hours with missing samples contribute nothing, so unknown
// production is never counted on.
func (s *RawFull) rechargeSpare(t time.Time) float64 {
	var surplus float64
	for ts := t.Add(time.Hour); ts.Day() == t.Day(); ts = ts.Add(time.Hour) {
		prod, err := s.src.At(model.SignalProduction, ts)
		if err != nil {
			continue
		}
		cons, err := s.src.At(model.SignalConsumption, ts)
		if err != nil {
			continue
		}
		if prod > cons {
			surplus += prod - cons
		}
	}

	spare := surplus - s.bank.Headroom()
	if spare < 0 {
		return 0
	}
	return spare
}
