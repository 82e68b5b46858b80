package model

import "time"

type SignalType string

const (
	SignalConsumption SignalType = "consumption"
	SignalProduction  SignalType = "production"
	SignalPrice       SignalType = "price"
)

// SignalInfo holds display name and unit for a signal type.
type SignalInfo struct {
	Name string
	Unit string
}

// SignalCatalog maps every known SignalType to its display name and unit.
var SignalCatalog = map[SignalType]SignalInfo{
	SignalConsumption: {Name: "Consumption", Unit: "kWh"},
	SignalProduction:  {Name: "PV Production", Unit: "kWh"},
	SignalPrice:       {Name: "Energy Price", Unit: "PLN/kWh"},
}

// Sample is one hourly value of a signal.
type Sample struct {
	Timestamp time.Time
	Signal    SignalType
	Value     float64
}

type TimeRange struct {
	Start time.Time
	End   time.Time
}
