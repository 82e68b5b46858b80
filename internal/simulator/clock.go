package simulator

import (
	"errors"
	"fmt"
	"time"

	"ems_simulator/internal/model"
	"ems_simulator/internal/store"
)

// Phase is the clock lifecycle state. Transitions only move forward:
// Idle -> Running -> Completed or Failed. A new run needs a new clock.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseRunning   Phase = "running"
	PhaseCompleted Phase = "completed"
	PhaseFailed    Phase = "failed"
)

// State is a progress snapshot emitted while the clock runs.
type State struct {
	Phase Phase     `json:"phase"`
	Time  time.Time `json:"time"`
}

// Callback receives run events. All calls happen on the Run goroutine,
// one hour fully resolved before the next.
type Callback interface {
	OnState(State)
	OnRecord(strategy string, rec HourlyRecord)
	OnResult(Result)
}

// NopCallback is a Callback that ignores every event.
type NopCallback struct{}

func (NopCallback) OnState(State)                 {}
func (NopCallback) OnRecord(string, HourlyRecord) {}
func (NopCallback) OnResult(Result)               {}

// ClockConfig holds the simulated range. Start and end are inclusive,
// stepped hourly. With FailFast a single strategy failure aborts the
// whole run; otherwise failures stay strategy-local.
type ClockConfig struct {
	Start    time.Time
	End      time.Time
	FailFast bool
}

// Clock drives the hourly simulation across its configured range,
// invoking every strategy once per hour and collecting ledgers.
type Clock struct {
	cfg        ClockConfig
	src        *store.Store
	strategies []Strategy
	callback   Callback
	phase      Phase
}

func NewClock(cfg ClockConfig, src *store.Store, strategies []Strategy, cb Callback) (*Clock, error) {
	if cfg.End.Before(cfg.Start) {
		return nil, fmt.Errorf("range end %s before start %s",
			cfg.End.Format(time.RFC3339), cfg.Start.Format(time.RFC3339))
	}
	if len(strategies) == 0 {
		return nil, errors.New("no strategies configured")
	}
	if cb == nil {
		cb = NopCallback{}
	}
	if src == nil {
		return nil, errors.New("no series source configured")
	}
	return &Clock{
		cfg:        cfg,
		src:        src,
		strategies: strategies,
		callback:   cb,
		phase:      PhaseIdle,
	}, nil
}

func (c *Clock) Phase() Phase { return c.phase }

// runner tracks one strategy's progress through the range.
type runner struct {
	strategy Strategy
	records  []HourlyRecord
	summed   float64
	err      error
}

// Run steps through the range hour by hour and returns one Result per
// strategy, in configuration order. It can be called once.
func (c *Clock) Run() ([]Result, error) {
	if c.phase != PhaseIdle {
		return nil, fmt.Errorf("clock already %s, a new run needs a fresh clock", c.phase)
	}
	c.phase = PhaseRunning

	runners := make([]*runner, len(c.strategies))
	for i, s := range c.strategies {
		runners[i] = &runner{strategy: s}
	}

	for ts := c.cfg.Start; !ts.After(c.cfg.End); ts = ts.Add(time.Hour) {
		c.callback.OnState(State{Phase: c.phase, Time: ts})

		for _, r := range runners {
			if r.err != nil {
				continue
			}
			rec, err := c.step(r.strategy, ts)
			if err != nil {
				// Strategy-local failure: drop its partial ledger and
				// keep the siblings running.
				r.err = fmt.Errorf("%s at %s: %w", r.strategy.Name(), ts.Format(time.RFC3339), err)
				r.records = nil
				r.summed = 0
				if c.cfg.FailFast {
					c.phase = PhaseFailed
					c.callback.OnState(State{Phase: c.phase, Time: ts})
					return nil, r.err
				}
				continue
			}
			r.records = append(r.records, rec)
			r.summed = round2(r.summed + rec.PeriodCost)
			c.callback.OnRecord(r.strategy.Name(), rec)
		}
	}

	c.phase = PhaseCompleted
	c.callback.OnState(State{Phase: c.phase, Time: c.cfg.End})

	results := make([]Result, len(runners))
	for i, r := range runners {
		results[i] = Result{
			Strategy:   r.strategy.Name(),
			Records:    r.records,
			SummedCost: r.summed,
			Err:        r.err,
		}
		c.callback.OnResult(results[i])
	}
	return results, nil
}

// step resolves one hour for one strategy: decide, apply the storage
// action, fold any residual into the grid exchange, price the hour.
func (c *Clock) step(s Strategy, ts time.Time) (HourlyRecord, error) {
	action, err := s.Decide(ts)
	if err != nil {
		return HourlyRecord{}, err
	}

	var delta, grid, opCost, level float64
	grid = action.GridKWh

	if bank := s.Bank(); bank != nil {
		residual := bank.Manage(action.StorageDeltaKWh)
		delta = round2(action.StorageDeltaKWh - residual)
		// A residual to store must be sold instead; a residual to
		// release must be bought instead.
		grid = round2(action.GridKWh - residual)
		level = bank.Level()
		opCost, err = bank.OperationCost(delta)
		if err != nil {
			return HourlyRecord{}, err
		}
	} else if action.StorageDeltaKWh != 0 {
		return HourlyRecord{}, fmt.Errorf("strategy %s has no bank but requested a storage delta", s.Name())
	}

	price, err := c.src.At(model.SignalPrice, ts)
	if err != nil {
		return HourlyRecord{}, fmt.Errorf("price lookup: %w", err)
	}

	return HourlyRecord{
		Timestamp:       ts,
		Consumption:     action.Consumption,
		Production:      action.Production,
		Price:           price,
		GridKWh:         grid,
		StorageDeltaKWh: delta,
		BankLevelKWh:    level,
		OperationCost:   opCost,
		PeriodCost:      round2(price*grid + opCost),
		Fallback:        action.Fallback,
	}, nil
}
