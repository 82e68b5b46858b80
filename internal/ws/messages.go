package ws

import (
	"encoding/json"
	"time"

	"ems_simulator/internal/simulator"
)

// Envelope wraps all WebSocket messages with a type discriminator.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message type constants
const (
	// Client -> Server
	TypeRunStart = "run:start"

	// Server -> Client
	TypeRunState       = "run:state"
	TypeStrategyRecord = "strategy:record"
	TypeStrategyResult = "strategy:result"
	TypeDataLoaded     = "data:loaded"
	TypeError          = "error"
)

// Client -> Server messages

type RunStartPayload struct {
	Start           string   `json:"start"` // RFC3339
	End             string   `json:"end"`   // RFC3339
	Strategies      []string `json:"strategies,omitempty"`
	Mode            string   `json:"mode,omitempty"`
	CapacityKWh     float64  `json:"capacity_kwh,omitempty"`
	MinLevelKWh     float64  `json:"min_level_kwh,omitempty"`
	InitialLevelKWh float64  `json:"initial_level_kwh,omitempty"`
	FailFast        bool     `json:"fail_fast,omitempty"`
}

// Server -> Client messages

type RunStatePayload struct {
	Phase string `json:"phase"`
	Time  string `json:"time"`
}

type StrategyRecordPayload struct {
	Strategy string                 `json:"strategy"`
	Record   simulator.HourlyRecord `json:"record"`
}

type StrategyResultPayload struct {
	Strategy   string                   `json:"strategy"`
	SummedCost float64                  `json:"summed_cost"`
	Failed     bool                     `json:"failed"`
	Error      string                   `json:"error,omitempty"`
	Records    []simulator.HourlyRecord `json:"records"`
}

type SignalInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Unit    string `json:"unit"`
	Samples int    `json:"samples"`
}

type TimeRangeInfo struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type DataLoadedPayload struct {
	Signals   []SignalInfo  `json:"signals"`
	TimeRange TimeRangeInfo `json:"time_range"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func NewEnvelope(msgType string, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		if err != nil {
			return nil, err
		}
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}

func RunStateFromClock(s simulator.State) RunStatePayload {
	return RunStatePayload{
		Phase: string(s.Phase),
		Time:  s.Time.Format(time.RFC3339),
	}
}
