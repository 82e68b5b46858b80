package ingest

import (
	"fmt"
	"os"

	"ems_simulator/internal/config"
	"ems_simulator/internal/model"
	"ems_simulator/internal/store"
)

// Default column names of the CSV exports.
const (
	DateColumn        = "Date"
	ConsumptionColumn = "Consumption (kW)"
	ProductionColumn  = "PV gen (kW)"
	PriceColumn       = "RCE"
)

// LoadStore reads the three configured series files into a fresh
// store. The prices file uses the same Date column as the others,
// holding already-converted PLN/kWh values.
func LoadStore(cfg *config.Config) (*store.Store, error) {
	st := store.New()

	files := []struct {
		path   string
		parser Parser
	}{
		{cfg.Data.ConsumptionCSV, NewSeriesParser(model.SignalConsumption, DateColumn, ConsumptionColumn)},
		{cfg.Data.ProductionCSV, NewSeriesParser(model.SignalProduction, DateColumn, ProductionColumn)},
		{cfg.Data.PricesCSV, NewSeriesParser(model.SignalPrice, DateColumn, PriceColumn)},
	}

	for _, f := range files {
		file, err := os.Open(f.path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.path, err)
		}
		samples, err := f.parser.Parse(file)
		file.Close()
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", f.path, err)
		}
		st.AddSamples(samples)
	}

	return st, nil
}
