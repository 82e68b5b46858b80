package ingest

import (
	"io"

	"ems_simulator/internal/model"
)

// Parser reads time series data from a source and returns samples.
type Parser interface {
	Parse(r io.Reader) ([]model.Sample, error)
}
