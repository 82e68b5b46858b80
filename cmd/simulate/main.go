package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"ems_simulator/internal/config"
	"ems_simulator/internal/ingest"
	"ems_simulator/internal/recorder"
	"ems_simulator/internal/simulator"
	"ems_simulator/internal/solar"
	"ems_simulator/internal/store"
)

// collector implements simulator.Callback, keeping finished results.
type collector struct {
	results []simulator.Result
}

func (c *collector) OnState(simulator.State)                  {}
func (c *collector) OnRecord(string, simulator.HourlyRecord) {}
func (c *collector) OnResult(r simulator.Result)             { c.results = append(c.results, r) }

func main() {
	configPath := flag.String("config", "config.yml", "path to YAML config file")
	startFlag := flag.String("start", "", "first simulated hour (overrides config, format 02.01.2006 15:04:05)")
	endFlag := flag.String("end", "", "last simulated hour (overrides config)")
	mode := flag.String("mode", "", "smart dispatch mode: full_bank or interval (overrides config)")
	capacity := flag.Float64("capacity", 0, "storage capacity in kWh (overrides config)")
	failFast := flag.Bool("fail-fast", false, "abort the whole run on the first strategy failure")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *mode != "" {
		cfg.Smart.Mode = *mode
	}
	if *capacity > 0 {
		cfg.Bank.CapacityKWh = *capacity
	}
	if *startFlag != "" {
		cfg.Run.Start = *startFlag
	}
	if *endFlag != "" {
		cfg.Run.End = *endFlag
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	dataStore, err := ingest.LoadStore(cfg)
	if err != nil {
		log.Fatalf("Failed to load data: %v", err)
	}

	start, end, err := runRange(cfg, dataStore)
	if err != nil {
		log.Fatalf("Failed to resolve run range: %v", err)
	}
	log.Printf("Simulating %s to %s", start.Format(config.TimeLayout), end.Format(config.TimeLayout))

	strategies, err := buildStrategies(cfg, dataStore)
	if err != nil {
		log.Fatalf("Failed to build strategies: %v", err)
	}

	cb := &collector{}
	clock, err := simulator.NewClock(simulator.ClockConfig{
		Start:    start,
		End:      end,
		FailFast: *failFast,
	}, dataStore, strategies, cb)
	if err != nil {
		log.Fatalf("Failed to build clock: %v", err)
	}

	if _, err := clock.Run(); err != nil {
		log.Fatalf("Run failed: %v", err)
	}

	printTable(cb.results)

	if cfg.Database.SQLitePath != "" {
		if err := persistResults(cfg.Database.SQLitePath, start, end, cb.results); err != nil {
			log.Fatalf("Failed to persist results: %v", err)
		}
	}

	for _, r := range cb.results {
		if r.Failed() {
			os.Exit(1)
		}
	}
}

// runRange resolves the simulated range from config, falling back to
// the widest range covered by all three signals.
func runRange(cfg *config.Config, src *store.Store) (time.Time, time.Time, error) {
	if cfg.Run.Start != "" && cfg.Run.End != "" {
		return cfg.RunRange()
	}
	tr, ok := src.CommonTimeRange()
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("loaded signals share no common range")
	}
	return tr.Start, tr.End, nil
}

func buildStrategies(cfg *config.Config, src *store.Store) ([]simulator.Strategy, error) {
	bankCfg := simulator.BankConfig{
		CapacityKWh:     cfg.Bank.CapacityKWh,
		MinLevelKWh:     cfg.Bank.MinLevelKWh,
		InitialLevelKWh: cfg.Bank.InitialLevelKWh,
		PurchaseCost:    cfg.Bank.PurchaseCost,
		RatedCycles:     cfg.Bank.RatedCycles,
	}

	rawBank, err := simulator.NewBank(bankCfg)
	if err != nil {
		return nil, err
	}
	smartBank, err := simulator.NewBank(bankCfg)
	if err != nil {
		return nil, err
	}
	smart, err := simulator.NewSmart(src, smartBank, simulator.DispatchMode(cfg.Smart.Mode), solar.Location{
		Latitude:  cfg.Smart.Latitude,
		Longitude: cfg.Smart.Longitude,
	})
	if err != nil {
		return nil, err
	}

	return []simulator.Strategy{
		simulator.NewBare(src),
		simulator.NewPV(src),
		simulator.NewRawFull(src, rawBank),
		smart,
	}, nil
}

func printTable(results []simulator.Result) {
	fmt.Printf("%-18s %10s %12s %12s %12s %10s\n",
		"strategy", "hours", "grid in", "grid out", "wear cost", "total")
	for _, r := range results {
		if r.Failed() {
			fmt.Printf("%-18s failed: %v\n", r.Strategy, r.Err)
			continue
		}
		var boughtKWh, soldKWh, wear float64
		for _, rec := range r.Records {
			if rec.GridKWh > 0 {
				boughtKWh += rec.GridKWh
			} else {
				soldKWh -= rec.GridKWh
			}
			wear += rec.OperationCost
		}
		fmt.Printf("%-18s %10d %9.2f kWh %9.2f kWh %12.2f %10.2f\n",
			r.Strategy, len(r.Records), boughtKWh, soldKWh, wear, r.SummedCost)
	}
}

func persistResults(path string, start, end time.Time, results []simulator.Result) error {
	rec, err := recorder.NewSQLiteRecorder(path)
	if err != nil {
		return err
	}
	defer rec.Close()

	for _, r := range results {
		info := &recorder.RunInfo{
			Strategy:   r.Strategy,
			Start:      start.Unix(),
			End:        end.Unix(),
			SummedCost: r.SummedCost,
			Failed:     r.Failed(),
		}
		if r.Err != nil {
			info.Error = r.Err.Error()
		}
		if err := rec.RecordRun(info, r.Records); err != nil {
			return err
		}
	}
	return nil
}
