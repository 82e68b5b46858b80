package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"ems_simulator/internal/config"
	"ems_simulator/internal/ingest"
	"ems_simulator/internal/model"
)

func main() {
	out := flag.String("out", "data/prices.csv", "output CSV file")
	dateFlag := flag.String("date", "", "day to fetch, format 2006-01-02 (default today)")
	endFlag := flag.String("end", "", "last day of an inclusive range, format 2006-01-02")
	negative := flag.Bool("negative", false, "flip two midday hours to negative prices")
	cronSpec := flag.String("cron", "", "cron expression; when set, fetch on schedule instead of once")
	baseURL := flag.String("url", ingest.DefaultPriceURL, "price export base URL")
	flag.Parse()

	client := ingest.NewPriceClient(*baseURL)

	day := time.Now().Truncate(24 * time.Hour)
	if *dateFlag != "" {
		parsed, err := time.Parse("2006-01-02", *dateFlag)
		if err != nil {
			log.Fatalf("Invalid -date: %v", err)
		}
		day = parsed
	}

	fetch := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		var samples []model.Sample
		var err error
		if *endFlag != "" {
			end, perr := time.Parse("2006-01-02", *endFlag)
			if perr != nil {
				return fmt.Errorf("invalid -end: %w", perr)
			}
			samples, err = client.DownloadRange(ctx, day, end)
		} else {
			samples, err = client.DownloadDay(ctx, day)
		}
		if err != nil {
			return err
		}
		if *negative {
			samples, err = ingest.SimulateNegativePrices(samples)
			if err != nil {
				return err
			}
		}
		if err := appendCSV(*out, samples); err != nil {
			return err
		}
		log.Printf("Wrote %d prices to %s", len(samples), *out)
		return nil
	}

	if *cronSpec == "" {
		if err := fetch(); err != nil {
			log.Fatalf("Fetch failed: %v", err)
		}
		return
	}

	// On a schedule the job collects the next day's prices; the exchange
	// publishes them in the afternoon, so check availability first.
	c := cron.New()
	if _, err := c.AddFunc(*cronSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		today := time.Now().Truncate(24 * time.Hour)
		if !client.NextDayAvailable(ctx, today) {
			log.Printf("[INFO] prices for %s not published yet",
				today.AddDate(0, 0, 1).Format("2006-01-02"))
			return
		}
		day = today.AddDate(0, 0, 1)
		if err := fetch(); err != nil {
			log.Printf("[ERROR] scheduled fetch: %v", err)
		}
	}); err != nil {
		log.Fatalf("Invalid -cron expression: %v", err)
	}
	c.Start()
	log.Printf("Fetching on schedule %q, press Ctrl-C to stop", *cronSpec)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	c.Stop()
}

// appendCSV writes samples in the local Date/RCE format, creating the
// file with a header when it does not exist yet.
func appendCSV(path string, samples []model.Sample) error {
	_, statErr := os.Stat(path)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if os.IsNotExist(statErr) {
		if _, err := fmt.Fprintf(f, "%s,%s\n", ingest.DateColumn, ingest.PriceColumn); err != nil {
			return err
		}
	}
	for _, s := range samples {
		if _, err := fmt.Fprintf(f, "%s,%.2f\n", s.Timestamp.Format(config.TimeLayout), s.Value); err != nil {
			return err
		}
	}
	return nil
}
