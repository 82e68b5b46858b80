package ws

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"ems_simulator/internal/config"
	"ems_simulator/internal/model"
	"ems_simulator/internal/recorder"
	"ems_simulator/internal/simulator"
	"ems_simulator/internal/solar"
	"ems_simulator/internal/store"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler manages WebSocket connections and launches simulation runs.
type Handler struct {
	hub *Hub
	src *store.Store
	cfg *config.Config
	rec recorder.Recorder

	mu      sync.Mutex
	running bool
}

func NewHandler(hub *Hub, src *store.Store, cfg *config.Config, rec recorder.Recorder) *Handler {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Handler{hub: hub, src: src, cfg: cfg, rec: rec}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := newClient(h.hub, conn)
	h.hub.Register(client)
	go client.writePump()

	// Send initial data:loaded message
	h.sendDataLoaded(client)

	// Read messages from client
	h.readPump(client)
}

func (h *Handler) readPump(c *Client) {
	defer func() {
		h.hub.Unregister(c)
		c.conn.Close()
	}()

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket read error: %v", err)
			}
			return
		}

		h.handleMessage(msg)
	}
}

func (h *Handler) handleMessage(msg []byte) {
	var env Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		log.Printf("Invalid message: %v", err)
		return
	}

	switch env.Type {
	case TypeRunStart:
		var p RunStartPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			h.broadcastError(fmt.Sprintf("invalid run:start payload: %v", err))
			return
		}
		if err := h.startRun(p); err != nil {
			h.broadcastError(err.Error())
		}

	default:
		log.Printf("Unknown message type: %s", env.Type)
	}
}

func (h *Handler) startRun(p RunStartPayload) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return fmt.Errorf("a run is already in progress")
	}

	start, err := time.Parse(time.RFC3339, p.Start)
	if err != nil {
		return fmt.Errorf("invalid start timestamp: %w", err)
	}
	end, err := time.Parse(time.RFC3339, p.End)
	if err != nil {
		return fmt.Errorf("invalid end timestamp: %w", err)
	}

	strategies, err := h.buildStrategies(p)
	if err != nil {
		return err
	}

	clock, err := simulator.NewClock(simulator.ClockConfig{
		Start:    start,
		End:      end,
		FailFast: p.FailFast,
	}, h.src, strategies, multiCallback{
		NewBridge(h.hub),
		&recordingCallback{rec: h.rec, start: start, end: end},
	})
	if err != nil {
		return err
	}

	h.running = true
	go func() {
		if _, err := clock.Run(); err != nil {
			log.Printf("run failed: %v", err)
		}
		h.mu.Lock()
		h.running = false
		h.mu.Unlock()
	}()

	return nil
}

func (h *Handler) buildStrategies(p RunStartPayload) ([]simulator.Strategy, error) {
	names := p.Strategies
	if len(names) == 0 {
		names = []string{"bare", "pv", "raw_full", "smart"}
	}

	bankCfg := simulator.BankConfig{
		CapacityKWh:     h.cfg.Bank.CapacityKWh,
		MinLevelKWh:     h.cfg.Bank.MinLevelKWh,
		InitialLevelKWh: h.cfg.Bank.InitialLevelKWh,
		PurchaseCost:    h.cfg.Bank.PurchaseCost,
		RatedCycles:     h.cfg.Bank.RatedCycles,
	}
	if p.CapacityKWh > 0 {
		bankCfg.CapacityKWh = p.CapacityKWh
	}
	if p.MinLevelKWh > 0 {
		bankCfg.MinLevelKWh = p.MinLevelKWh
	}
	if p.InitialLevelKWh > 0 {
		bankCfg.InitialLevelKWh = p.InitialLevelKWh
	}

	mode := simulator.DispatchMode(h.cfg.Smart.Mode)
	if p.Mode != "" {
		mode = simulator.DispatchMode(p.Mode)
	}
	loc := solar.Location{
		Latitude:  h.cfg.Smart.Latitude,
		Longitude: h.cfg.Smart.Longitude,
	}

	strategies := make([]simulator.Strategy, 0, len(names))
	for _, name := range names {
		switch name {
		case "bare":
			strategies = append(strategies, simulator.NewBare(h.src))
		case "pv":
			strategies = append(strategies, simulator.NewPV(h.src))
		case "raw_full":
			bank, err := simulator.NewBank(bankCfg)
			if err != nil {
				return nil, err
			}
			strategies = append(strategies, simulator.NewRawFull(h.src, bank))
		case "smart":
			bank, err := simulator.NewBank(bankCfg)
			if err != nil {
				return nil, err
			}
			smart, err := simulator.NewSmart(h.src, bank, mode, loc)
			if err != nil {
				return nil, err
			}
			strategies = append(strategies, smart)
		default:
			return nil, fmt.Errorf("unknown strategy: %s", name)
		}
	}
	return strategies, nil
}

func (h *Handler) broadcastError(message string) {
	msg, err := NewEnvelope(TypeError, ErrorPayload{Message: message})
	if err != nil {
		return
	}
	h.hub.Broadcast(msg)
}

func (h *Handler) dataLoadedMessage() ([]byte, error) {
	order := []model.SignalType{model.SignalConsumption, model.SignalProduction, model.SignalPrice}
	signals := make([]SignalInfo, 0, len(order))
	for _, sig := range order {
		info := model.SignalCatalog[sig]
		signals = append(signals, SignalInfo{
			ID:      string(sig),
			Name:    info.Name,
			Unit:    info.Unit,
			Samples: h.src.SampleCount(sig),
		})
	}

	payload := DataLoadedPayload{Signals: signals}
	if tr, ok := h.src.CommonTimeRange(); ok {
		payload.TimeRange = TimeRangeInfo{
			Start: tr.Start.Format(time.RFC3339),
			End:   tr.End.Format(time.RFC3339),
		}
	}

	return NewEnvelope(TypeDataLoaded, payload)
}

func (h *Handler) sendDataLoaded(c *Client) {
	msg, err := h.dataLoadedMessage()
	if err != nil {
		log.Printf("Error creating data:loaded message: %v", err)
		return
	}

	select {
	case c.out <- msg:
	default:
	}
}

// multiCallback fans clock events out to several callbacks in order.
type multiCallback []simulator.Callback

func (m multiCallback) OnState(s simulator.State) {
	for _, cb := range m {
		cb.OnState(s)
	}
}

func (m multiCallback) OnRecord(strategy string, rec simulator.HourlyRecord) {
	for _, cb := range m {
		cb.OnRecord(strategy, rec)
	}
}

func (m multiCallback) OnResult(res simulator.Result) {
	for _, cb := range m {
		cb.OnResult(res)
	}
}

// recordingCallback persists each strategy result as it completes.
type recordingCallback struct {
	rec   recorder.Recorder
	start time.Time
	end   time.Time
}

func (r *recordingCallback) OnState(simulator.State)                  {}
func (r *recordingCallback) OnRecord(string, simulator.HourlyRecord) {}

func (r *recordingCallback) OnResult(res simulator.Result) {
	info := &recorder.RunInfo{
		Strategy:   res.Strategy,
		Start:      r.start.Unix(),
		End:        r.end.Unix(),
		SummedCost: res.SummedCost,
		Failed:     res.Failed(),
	}
	if res.Err != nil {
		info.Error = res.Err.Error()
	}
	if err := r.rec.RecordRun(info, res.Records); err != nil {
		log.Printf("Error persisting run: %v", err)
	}
}
