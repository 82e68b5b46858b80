package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// TimeLayout is the timestamp format used in config files and data
// files, matching the reference CSV exports.
const TimeLayout = "02.01.2006 15:04:05"

// Config holds all application configuration.
type Config struct {
	Data struct {
		ConsumptionCSV string `yaml:"consumption_csv"`
		ProductionCSV  string `yaml:"production_csv"`
		PricesCSV      string `yaml:"prices_csv"`
	} `yaml:"data"`
	Bank struct {
		CapacityKWh     float64 `yaml:"capacity_kwh"`
		MinLevelKWh     float64 `yaml:"min_level_kwh"`
		InitialLevelKWh float64 `yaml:"initial_level_kwh"`
		PurchaseCost    float64 `yaml:"purchase_cost"`
		RatedCycles     int     `yaml:"rated_cycles"`
	} `yaml:"bank"`
	Smart struct {
		Mode      string  `yaml:"mode"` // full_bank or interval
		Latitude  float64 `yaml:"latitude"`
		Longitude float64 `yaml:"longitude"`
	} `yaml:"smart"`
	Run struct {
		Start    string `yaml:"start"` // TimeLayout, inclusive
		End      string `yaml:"end"`   // TimeLayout, inclusive
		FailFast bool   `yaml:"fail_fast"`
	} `yaml:"run"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Server struct {
		Addr        string `yaml:"addr"`
		FrontendDir string `yaml:"frontend_dir"`
	} `yaml:"server"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. A missing file is not an error: defaults apply.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("EMS_CONSUMPTION_CSV"); v != "" {
		cfg.Data.ConsumptionCSV = v
	}
	if v := os.Getenv("EMS_PRODUCTION_CSV"); v != "" {
		cfg.Data.ProductionCSV = v
	}
	if v := os.Getenv("EMS_PRICES_CSV"); v != "" {
		cfg.Data.PricesCSV = v
	}
	if v := os.Getenv("EMS_BANK_CAPACITY"); v != "" {
		if capacity, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Bank.CapacityKWh = capacity
		}
	}
	if v := os.Getenv("EMS_SMART_MODE"); v != "" {
		cfg.Smart.Mode = v
	}
	if v := os.Getenv("EMS_SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("EMS_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}

	// Defaults
	if cfg.Data.ConsumptionCSV == "" {
		cfg.Data.ConsumptionCSV = "data/energy_usage.csv"
	}
	if cfg.Data.ProductionCSV == "" {
		cfg.Data.ProductionCSV = "data/energy_production.csv"
	}
	if cfg.Data.PricesCSV == "" {
		cfg.Data.PricesCSV = "data/prices.csv"
	}
	if cfg.Bank.CapacityKWh == 0 {
		cfg.Bank.CapacityKWh = 3.0
	}
	if cfg.Bank.InitialLevelKWh == 0 {
		cfg.Bank.InitialLevelKWh = 1.0
	}
	if cfg.Bank.PurchaseCost == 0 {
		cfg.Bank.PurchaseCost = 500.0
	}
	if cfg.Bank.RatedCycles == 0 {
		cfg.Bank.RatedCycles = 8000
	}
	if cfg.Smart.Mode == "" {
		cfg.Smart.Mode = "full_bank"
	}
	if cfg.Smart.Latitude == 0 && cfg.Smart.Longitude == 0 {
		cfg.Smart.Latitude = 52.23
		cfg.Smart.Longitude = 21.01
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.FrontendDir == "" {
		cfg.Server.FrontendDir = "frontend/build"
	}

	return cfg, nil
}

// Validate checks the cross-field constraints that Load cannot default
// away.
func (c *Config) Validate() error {
	if c.Bank.CapacityKWh <= 0 {
		return fmt.Errorf("bank.capacity_kwh must be positive")
	}
	if c.Bank.MinLevelKWh < 0 || c.Bank.MinLevelKWh >= c.Bank.CapacityKWh {
		return fmt.Errorf("bank.min_level_kwh must be in [0, capacity)")
	}
	if c.Smart.Mode != "full_bank" && c.Smart.Mode != "interval" {
		return fmt.Errorf("smart.mode must be full_bank or interval, got %q", c.Smart.Mode)
	}
	if c.Run.Start != "" || c.Run.End != "" {
		start, end, err := c.RunRange()
		if err != nil {
			return err
		}
		if end.Before(start) {
			return fmt.Errorf("run.end before run.start")
		}
	}
	return nil
}

// RunRange parses the configured simulation range.
func (c *Config) RunRange() (start, end time.Time, err error) {
	start, err = time.Parse(TimeLayout, c.Run.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("run.start: %w", err)
	}
	end, err = time.Parse(TimeLayout, c.Run.End)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("run.end: %w", err)
	}
	return start, end, nil
}
