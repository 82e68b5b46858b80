package simulator

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrLevelOutOfRange is returned by SetLevel for values outside
	// [MinLevelKWh, CapacityKWh].
	ErrLevelOutOfRange = errors.New("bank level out of range")

	// ErrInvalidCostParams is returned by OperationCost when the bank was
	// configured with a negative purchase cost or cycle count.
	ErrInvalidCostParams = errors.New("invalid bank cost parameters")
)

// BankConfig holds the user-configurable energy bank parameters.
type BankConfig struct {
	CapacityKWh     float64 `json:"capacity_kwh"`
	MinLevelKWh     float64 `json:"min_level_kwh"`
	InitialLevelKWh float64 `json:"initial_level_kwh"`
	PurchaseCost    float64 `json:"purchase_cost"`
	RatedCycles     int     `json:"rated_cycles"`
}

// Validate checks the physical parameters. Cost parameters are checked
// lazily by OperationCost, matching the error taxonomy: a bad geometry
// prevents construction, a bad cost surfaces on first cost calculation.
func (c BankConfig) Validate() error {
	if c.CapacityKWh <= 0 {
		return fmt.Errorf("capacity %.2f kWh must be > 0", c.CapacityKWh)
	}
	if c.MinLevelKWh < 0 || c.MinLevelKWh >= c.CapacityKWh {
		return fmt.Errorf("min level %.2f kWh must be in [0, capacity)", c.MinLevelKWh)
	}
	if c.InitialLevelKWh < c.MinLevelKWh || c.InitialLevelKWh > c.CapacityKWh {
		return fmt.Errorf("initial level %.2f kWh outside [%.2f, %.2f]",
			c.InitialLevelKWh, c.MinLevelKWh, c.CapacityKWh)
	}
	return nil
}

// EnergyBank simulates a bounded household energy reservoir. The level is
// only ever mutated through Manage and SetLevel, both of which keep it
// inside [MinLevelKWh, CapacityKWh] and rounded to two decimals.
type EnergyBank struct {
	config BankConfig
	level  float64
}

// NewBank creates a bank at the configured initial level.
func NewBank(cfg BankConfig) (*EnergyBank, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &EnergyBank{
		config: cfg,
		level:  round2(cfg.InitialLevelKWh),
	}, nil
}

func (b *EnergyBank) Config() BankConfig { return b.config }

// Level returns the current level in kWh.
func (b *EnergyBank) Level() float64 { return b.level }

// Capacity returns the bank capacity in kWh.
func (b *EnergyBank) Capacity() float64 { return b.config.CapacityKWh }

// MinLevel returns the lowest allowed level in kWh.
func (b *EnergyBank) MinLevel() float64 { return b.config.MinLevelKWh }

// Headroom returns the energy that can still be stored before hitting
// capacity.
func (b *EnergyBank) Headroom() float64 { return round2(b.config.CapacityKWh - b.level) }

// Available returns the energy that can still be released before hitting
// the minimum level.
func (b *EnergyBank) Available() float64 { return round2(b.level - b.config.MinLevelKWh) }

// SetLevel sets the level directly. Unlike Manage it never clamps: a
// value outside [MinLevelKWh, CapacityKWh] is rejected.
func (b *EnergyBank) SetLevel(value float64) error {
	rounded := round2(value)
	if rounded < b.config.MinLevelKWh || rounded > b.config.CapacityKWh {
		return fmt.Errorf("level %.2f outside [%.2f, %.2f]: %w",
			value, b.config.MinLevelKWh, b.config.CapacityKWh, ErrLevelOutOfRange)
	}
	b.level = rounded
	return nil
}

// Manage stores delta kWh when delta >= 0 and releases |delta| kWh when
// delta < 0. It returns the unsatisfied residual, signed like the input:
// energy that could not be stored because the bank filled up, or could
// not be released because the bank drained to its minimum. The level
// invariant holds on return; zero input is a no-op.
func (b *EnergyBank) Manage(delta float64) float64 {
	if delta < 0 {
		return round2(b.release(delta))
	}
	return round2(b.store(delta))
}

func (b *EnergyBank) store(given float64) float64 {
	headroom := b.config.CapacityKWh - b.level
	if headroom >= given {
		b.level = round2(b.level + given)
		return 0
	}
	b.level = b.config.CapacityKWh
	return given - headroom
}

func (b *EnergyBank) release(requested float64) float64 {
	available := b.level - b.config.MinLevelKWh
	if -requested <= available {
		b.level = round2(b.level + requested)
		return 0
	}
	b.level = b.config.MinLevelKWh
	return requested + available
}

// OperationCost returns the wear-amortization cost of moving netEnergy
// kWh through the bank in one hour. Direction does not matter: a full
// cycle is one charge plus one discharge of the whole capacity, so the
// moved energy is divided by twice the capacity before amortizing the
// purchase cost over the rated cycle count.
func (b *EnergyBank) OperationCost(netEnergy float64) (float64, error) {
	if b.config.PurchaseCost < 0 || b.config.RatedCycles < 0 {
		return 0, fmt.Errorf("purchase cost %.2f, rated cycles %d: %w",
			b.config.PurchaseCost, b.config.RatedCycles, ErrInvalidCostParams)
	}
	if b.config.RatedCycles == 0 {
		return 0, nil
	}
	cyclePart := math.Abs(netEnergy) / (2 * b.config.CapacityKWh)
	singleCycleCost := b.config.PurchaseCost / float64(b.config.RatedCycles)
	return round2(cyclePart * singleCycleCost), nil
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
