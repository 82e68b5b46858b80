package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"ems_simulator/internal/config"
	"ems_simulator/internal/model"
)

// SeriesParser reads a CSV export with a Date column and one value
// column per row, producing hourly samples of a single signal.
type SeriesParser struct {
	signal      model.SignalType
	dateColumn  string
	valueColumn string
}

func NewSeriesParser(signal model.SignalType, dateColumn, valueColumn string) *SeriesParser {
	return &SeriesParser{signal: signal, dateColumn: dateColumn, valueColumn: valueColumn}
}

// Parse reads the CSV stream. Rows with an empty or non-numeric value
// are skipped; a missing column in the header is an error.
func (p *SeriesParser) Parse(r io.Reader) ([]model.Sample, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	dateIdx, valueIdx := -1, -1
	for i, col := range header {
		switch strings.TrimSpace(col) {
		case p.dateColumn:
			dateIdx = i
		case p.valueColumn:
			valueIdx = i
		}
	}
	if dateIdx < 0 {
		return nil, fmt.Errorf("column %q not found in header", p.dateColumn)
	}
	if valueIdx < 0 {
		return nil, fmt.Errorf("column %q not found in header", p.valueColumn)
	}

	var samples []model.Sample
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}

		value, err := strconv.ParseFloat(strings.TrimSpace(record[valueIdx]), 64)
		if err != nil {
			continue
		}

		ts, err := time.Parse(config.TimeLayout, strings.TrimSpace(record[dateIdx]))
		if err != nil {
			return nil, fmt.Errorf("parse timestamp %q: %w", record[dateIdx], err)
		}

		samples = append(samples, model.Sample{
			Timestamp: ts,
			Signal:    p.signal,
			Value:     value,
		})
	}

	return samples, nil
}
