package simulator

import (
	"errors"
	"math"
)

// levelStep is the bank-level discretization used by the planner, in kWh.
const levelStep = 0.05

// planHour is one hour of forecast data inside the planning horizon.
type planHour struct {
	Consumption float64
	Production  float64
	Price       float64
}

var errEmptyHorizon = errors.New("empty planning horizon")

// planHorizon computes the cheapest storage schedule across the horizon
// for a bank currently at startLevel. Dynamic programming over bank
// levels discretized to levelStep: every transition respects the
// capacity bounds, so the plan can never borrow energy from the future
// or overflow the bank. When fillAtEnd is set the terminal level is
// forced to the highest level reachable at all (keeping the bank full
// outranks cost); otherwise the terminal level is free.
//
// The returned slice holds one storage delta per horizon hour.
func planHorizon(bank *EnergyBank, startLevel float64, hours []planHour, fillAtEnd bool) ([]float64, error) {
	if len(hours) == 0 {
		return nil, errEmptyHorizon
	}

	// Floor keeps the whole grid inside [min, capacity] when the range is
	// not a multiple of levelStep; the epsilon absorbs float noise for
	// ranges that are.
	minLvl := bank.MinLevel()
	steps := int(math.Floor((bank.Capacity()-minLvl)/levelStep + 1e-9))
	levelOf := func(idx int) float64 { return minLvl + float64(idx)*levelStep }
	indexOf := func(lvl float64) int {
		idx := int(math.Round((lvl - minLvl) / levelStep))
		if idx < 0 {
			idx = 0
		}
		if idx > steps {
			idx = steps
		}
		return idx
	}

	const inf = math.MaxFloat64
	n := len(hours)

	// cost[h][i]: cheapest cost of the first h hours ending at level i.
	cost := make([][]float64, n+1)
	from := make([][]int, n+1)
	for h := range cost {
		cost[h] = make([]float64, steps+1)
		from[h] = make([]int, steps+1)
		for i := range cost[h] {
			cost[h][i] = inf
			from[h][i] = -1
		}
	}
	cost[0][indexOf(startLevel)] = 0

	for h, hr := range hours {
		for i := 0; i <= steps; i++ {
			if cost[h][i] == inf {
				continue
			}
			for j := 0; j <= steps; j++ {
				delta := levelOf(j) - levelOf(i)
				grid := hr.Consumption - hr.Production + delta
				opCost, err := bank.OperationCost(delta)
				if err != nil {
					return nil, err
				}
				c := cost[h][i] + hr.Price*grid + opCost
				if c < cost[h+1][j] {
					cost[h+1][j] = c
					from[h+1][j] = i
				}
			}
		}
	}

	// Pick the terminal level.
	end := -1
	if fillAtEnd {
		for i := steps; i >= 0; i-- {
			if cost[n][i] < inf {
				end = i
				break
			}
		}
	} else {
		best := inf
		for i := 0; i <= steps; i++ {
			if cost[n][i] < best {
				best = cost[n][i]
				end = i
			}
		}
	}
	if end < 0 {
		return nil, errEmptyHorizon
	}

	// Walk the path backwards and emit the deltas.
	deltas := make([]float64, n)
	cur := end
	for h := n; h > 0; h-- {
		prev := from[h][cur]
		deltas[h-1] = round2(levelOf(cur) - levelOf(prev))
		cur = prev
	}
	return deltas, nil
}
