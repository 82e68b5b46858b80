package simulator

import "time"

// HourlyRecord is one hour's economic outcome for one strategy.
type HourlyRecord struct {
	Timestamp       time.Time `json:"timestamp"`
	Consumption     float64   `json:"consumption"`
	Production      float64   `json:"production"`
	Price           float64   `json:"price"`
	GridKWh         float64   `json:"net_grid_exchange"` // positive = bought, negative = sold
	StorageDeltaKWh float64   `json:"storage_delta"`     // positive = stored, negative = released
	BankLevelKWh    float64   `json:"bank_level"`
	OperationCost   float64   `json:"operation_cost"`
	PeriodCost      float64   `json:"period_cost"`
	Fallback        bool      `json:"fallback,omitempty"` // planned action was infeasible, a local one ran instead
}

// Result is one strategy's run outcome: its ordered hourly records and
// total cost, or the error that aborted it (in which case the partial
// records are discarded).
type Result struct {
	Strategy   string         `json:"strategy"`
	Records    []HourlyRecord `json:"records"`
	SummedCost float64        `json:"summed_cost"`
	Err        error          `json:"-"`
}

// Failed reports whether the strategy's run was aborted.
func (r Result) Failed() bool { return r.Err != nil }
