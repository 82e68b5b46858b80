package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ems_simulator/internal/model"
)

// DefaultPriceURL is the PSE market price export endpoint. Day and
// range paths are appended to it.
const DefaultPriceURL = "https://www.pse.pl/getcsv/-/export/csv/PL_CENY_RYN_EN/"

// PriceClient downloads Polish day-ahead market prices (RCE) from
// www.pse.pl. The export is a semicolon-separated CSV with comma
// decimals and prices in PLN/MWh; samples are returned in PLN/kWh.
type PriceClient struct {
	baseURL string
	client  *http.Client
}

func NewPriceClient(baseURL string) *PriceClient {
	if baseURL == "" {
		baseURL = DefaultPriceURL
	}
	return &PriceClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// DownloadDay fetches prices for a single day.
func (c *PriceClient) DownloadDay(ctx context.Context, day time.Time) ([]model.Sample, error) {
	url := c.baseURL + "data/" + day.Format("20060102")
	return c.fetch(ctx, url)
}

// DownloadRange fetches prices for an inclusive day range.
func (c *PriceClient) DownloadRange(ctx context.Context, start, end time.Time) ([]model.Sample, error) {
	if start.Format("20060102") == end.Format("20060102") {
		return c.DownloadDay(ctx, start)
	}
	url := c.baseURL + "data_od/" + start.Format("20060102") + "/data_do/" + end.Format("20060102")
	return c.fetch(ctx, url)
}

// NextDayAvailable reports whether the exchange has published prices
// for the day after the given one yet.
func (c *PriceClient) NextDayAvailable(ctx context.Context, day time.Time) bool {
	samples, err := c.DownloadDay(ctx, day.AddDate(0, 0, 1))
	return err == nil && len(samples) > 0
}

func (c *PriceClient) fetch(ctx context.Context, url string) ([]model.Sample, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch prices: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch prices: status %d", resp.StatusCode)
	}
	return ParsePriceCSV(resp.Body)
}

// ParsePriceCSV parses the PSE export format: columns Data (YYYYMMDD),
// Godzina (1-24) and RCE (PLN/MWh, comma decimal). Hour N maps to the
// sample at N-1 o'clock, so the first row of a day lands on midnight.
func ParsePriceCSV(r io.Reader) ([]model.Sample, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	dateIdx, hourIdx, priceIdx := -1, -1, -1
	for i, col := range header {
		switch strings.TrimSpace(col) {
		case "Data":
			dateIdx = i
		case "Godzina":
			hourIdx = i
		case "RCE":
			priceIdx = i
		}
	}
	if dateIdx < 0 || hourIdx < 0 || priceIdx < 0 {
		return nil, fmt.Errorf("missing Data, Godzina or RCE column")
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

		day, err := time.Parse("20060102", strings.TrimSpace(record[dateIdx]))
		if err != nil {
			return nil, fmt.Errorf("parse date %q: %w", record[dateIdx], err)
		}
		hour, err := strconv.Atoi(strings.TrimSpace(record[hourIdx]))
		if err != nil || hour < 1 || hour > 24 {
			return nil, fmt.Errorf("parse hour %q", record[hourIdx])
		}
		raw := strings.ReplaceAll(strings.TrimSpace(record[priceIdx]), ",", ".")
		mwhPrice, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("parse price %q: %w", record[priceIdx], err)
		}

		samples = append(samples, model.Sample{
			Timestamp: day.Add(time.Duration(hour-1) * time.Hour),
			Signal:    model.SignalPrice,
			Value:     math.Round(mwhPrice/1000*100) / 100,
		})
	}

	return samples, nil
}

// SimulateNegativePrices flips the sign of two consecutive hourly
// prices, modelling oversupply periods on historical data that
// predates negative pricing. Only 24 or 48 hour series are supported;
// on a two-day series the second day is altered.
func SimulateNegativePrices(samples []model.Sample) ([]model.Sample, error) {
	const startIdx, amount = 10, 2

	if len(samples) != 24 && len(samples) != 48 {
		return nil, fmt.Errorf("negative price simulation needs a 24 or 48 hour series, got %d", len(samples))
	}

	idx := startIdx
	if len(samples) == 48 {
		idx += 24
	}

	out := make([]model.Sample, len(samples))
	copy(out, samples)
	for i := idx; i < idx+amount; i++ {
		out[i].Value = -out[i].Value
	}
	return out, nil
}
