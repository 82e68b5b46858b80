package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	"ems_simulator/internal/config"
	"ems_simulator/internal/ingest"
	"ems_simulator/internal/recorder"
	"ems_simulator/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yml", "path to YAML config file")
	addr := flag.String("addr", "", "listen address (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	dataStore, err := ingest.LoadStore(cfg)
	if err != nil {
		log.Fatalf("Failed to load CSV data: %v", err)
	}
	tr, ok := dataStore.CommonTimeRange()
	if !ok {
		log.Fatal("Loaded signals share no common range")
	}
	log.Printf("Data loaded: %s to %s", tr.Start.Format("2006-01-02 15:04"), tr.End.Format("2006-01-02 15:04"))

	var rec recorder.Recorder = recorder.NewNoopRecorder()
	if cfg.Database.SQLitePath != "" {
		sqlite, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			log.Fatalf("Failed to open recorder: %v", err)
		}
		defer sqlite.Close()
		rec = sqlite
	}

	hub := ws.NewHub()
	handler := ws.NewHandler(hub, dataStore, cfg, rec)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	mux.Handle("/ws", handler)

	// Serve frontend static files
	if _, err := os.Stat(cfg.Server.FrontendDir); err == nil {
		log.Printf("Serving frontend from %s", cfg.Server.FrontendDir)
		mux.Handle("/", http.FileServer(http.Dir(cfg.Server.FrontendDir)))
	}

	log.Printf("Starting server on %s", cfg.Server.Addr)
	if err := http.ListenAndServe(cfg.Server.Addr, mux); err != nil {
		log.Fatal(err)
	}
}
