package ws

import (
	"log"

	"ems_simulator/internal/simulator"
)

// Bridge implements simulator.Callback and broadcasts clock events to
// the WebSocket hub.
type Bridge struct {
	hub *Hub
}

func NewBridge(hub *Hub) *Bridge {
	return &Bridge{hub: hub}
}

func (b *Bridge) OnState(s simulator.State) {
	msg, err := NewEnvelope(TypeRunState, RunStateFromClock(s))
	if err != nil {
		log.Printf("Error marshaling run state: %v", err)
		return
	}
	b.hub.Broadcast(msg)
}

func (b *Bridge) OnRecord(strategy string, rec simulator.HourlyRecord) {
	msg, err := NewEnvelope(TypeStrategyRecord, StrategyRecordPayload{
		Strategy: strategy,
		Record:   rec,
	})
	if err != nil {
		log.Printf("Error marshaling hourly record: %v", err)
		return
	}
	b.hub.Broadcast(msg)
}

func (b *Bridge) OnResult(res simulator.Result) {
	payload := StrategyResultPayload{
		Strategy:   res.Strategy,
		SummedCost: res.SummedCost,
		Failed:     res.Failed(),
		Records:    res.Records,
	}
	if res.Err != nil {
		payload.Error = res.Err.Error()
	}
	msg, err := NewEnvelope(TypeStrategyResult, payload)
	if err != nil {
		log.Printf("Error marshaling strategy result: %v", err)
		return
	}
	b.hub.Broadcast(msg)
}
