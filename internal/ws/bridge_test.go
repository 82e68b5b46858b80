package ws

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ems_simulator/internal/simulator"
)

var bridgeTime = time.Date(2020, 9, 4, 5, 0, 0, 0, time.UTC)

func newTestBridge() (*Bridge, *Client) {
	hub := NewHub()
	client := &Client{hub: hub, out: make(chan []byte, 256)}
	hub.Register(client)
	bridge := NewBridge(hub)
	return bridge, client
}

func receiveEnvelope(t *testing.T, c *Client) Envelope {
	t.Helper()
	msg := <-c.out
	var env Envelope
	require.NoError(t, json.Unmarshal(msg, &env))
	return env
}

func TestBridge_OnState(t *testing.T) {
	bridge, client := newTestBridge()

	bridge.OnState(simulator.State{
		Phase: simulator.PhaseRunning,
		Time:  bridgeTime,
	})

	env := receiveEnvelope(t, client)
	assert.Equal(t, TypeRunState, env.Type)

	var p RunStatePayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, "running", p.Phase)
	assert.Equal(t, "2020-09-04T05:00:00Z", p.Time)
}

func TestBridge_OnRecord(t *testing.T) {
	bridge, client := newTestBridge()

	bridge.OnRecord("raw_full", simulator.HourlyRecord{
		Timestamp:       bridgeTime,
		Consumption:     1.2,
		Production:      0.5,
		Price:           0.4,
		GridKWh:         0.7,
		StorageDeltaKWh: 0,
		BankLevelKWh:    1.0,
		PeriodCost:      0.28,
	})

	env := receiveEnvelope(t, client)
	assert.Equal(t, TypeStrategyRecord, env.Type)

	var p StrategyRecordPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, "raw_full", p.Strategy)
	assert.InDelta(t, 1.2, p.Record.Consumption, 0.001)
	assert.InDelta(t, 0.7, p.Record.GridKWh, 0.001)
	assert.InDelta(t, 0.28, p.Record.PeriodCost, 0.001)
}

func TestBridge_OnResult(t *testing.T) {
	bridge, client := newTestBridge()

	bridge.OnResult(simulator.Result{
		Strategy:   "pv",
		SummedCost: 3.15,
		Records: []simulator.HourlyRecord{
			{Timestamp: bridgeTime, GridKWh: 0.9, PeriodCost: 0.36},
		},
	})

	env := receiveEnvelope(t, client)
	assert.Equal(t, TypeStrategyResult, env.Type)

	var p StrategyResultPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, "pv", p.Strategy)
	assert.InDelta(t, 3.15, p.SummedCost, 0.001)
	assert.False(t, p.Failed)
	assert.Empty(t, p.Error)
	require.Len(t, p.Records, 1)
	assert.InDelta(t, 0.36, p.Records[0].PeriodCost, 0.001)
}

func TestBridge_OnResult_Failed(t *testing.T) {
	bridge, client := newTestBridge()

	bridge.OnResult(simulator.Result{
		Strategy: "smart_interval",
		Err:      errors.New("missing sample"),
	})

	env := receiveEnvelope(t, client)

	var p StrategyResultPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.True(t, p.Failed)
	assert.Equal(t, "missing sample", p.Error)
	assert.Empty(t, p.Records)
}
