package simulator

import (
	"fmt"
	"time"

	"ems_simulator/internal/model"
	"ems_simulator/internal/store"
)

// Action is one hour's dispatch decision. StorageDeltaKWh is positive
// when energy goes into the bank, negative when it is released.
// GridKWh is positive when energy is bought, negative when sold.
// Consumption and Production echo the inputs the strategy observed for
// the hour (production stays 0 for strategies without PV), so the ledger
// can record them without a second lookup.
type Action struct {
	StorageDeltaKWh float64
	GridKWh         float64
	Consumption     float64
	Production      float64

	// Fallback marks an hour where the strategy abandoned its planned
	// action for a locally feasible one.
	Fallback bool
}

// Strategy decides one hour's storage action and grid exchange. A
// strategy owns its bank (or none) and must account for the bank bounds
// when deciding; any residual the clock still gets back from the bank is
// folded into the grid exchange before pricing.
type Strategy interface {
	Name() string
	Decide(t time.Time) (Action, error)
	Bank() *EnergyBank // nil for storage-less strategies
}

func consumptionAt(src *store.Store, t time.Time) (float64, error) {
	v, err := src.At(model.SignalConsumption, t)
	if err != nil {
		return 0, fmt.Errorf("consumption lookup: %w", err)
	}
	return v, nil
}

func productionAt(src *store.Store, t time.Time) (float64, error) {
	v, err := src.At(model.SignalProduction, t)
	if err != nil {
		return 0, fmt.Errorf("production lookup: %w", err)
	}
	return v, nil
}

// Bare models a household with no storage and no production: every
// consumed kWh is bought from the grid.
type Bare struct {
	src *store.Store
}

func NewBare(src *store.Store) *Bare {
	return &Bare{src: src}
}

func (s *Bare) Name() string      { return "bare" }
func (s *Bare) Bank() *EnergyBank { return nil }

func (s *Bare) Decide(t time.Time) (Action, error) {
	consumption, err := consumptionAt(s.src, t)
	if err != nil {
		return Action{}, err
	}
	return Action{GridKWh: consumption, Consumption: consumption}, nil
}

// PV models production without storage: surplus hours sell to the grid,
// deficit hours buy from it.
type PV struct {
	src *store.Store
}

func NewPV(src *store.Store) *PV {
	return &PV{src: src}
}

func (s *PV) Name() string      { return "pv" }
func (s *PV) Bank() *EnergyBank { return nil }

func (s *PV) Decide(t time.Time) (Action, error) {
	consumption, err := consumptionAt(s.src, t)
	if err != nil {
		return Action{}, err
	}
	production, err := productionAt(s.src, t)
	if err != nil {
		return Action{}, err
	}
	return Action{
		GridKWh:     round2(consumption - production),
		Consumption: consumption,
		Production:  production,
	}, nil
}
