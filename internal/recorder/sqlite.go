package recorder

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"ems_simulator/internal/simulator"
)

// SQLiteRecorder persists simulation runs to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so readers can inspect results while a run is in progress.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at  INTEGER NOT NULL,
			strategy    TEXT NOT NULL,
			start_ts    INTEGER,
			end_ts      INTEGER,
			summed_cost REAL,
			failed      INTEGER NOT NULL DEFAULT 0,
			error       TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at)`,

		`CREATE TABLE IF NOT EXISTS hourly_records (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id         INTEGER NOT NULL REFERENCES runs(id),
			timestamp      INTEGER NOT NULL,
			consumption    REAL,
			production     REAL,
			price          REAL,
			grid_kwh       REAL,
			storage_delta  REAL,
			bank_level     REAL,
			operation_cost REAL,
			period_cost    REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_run ON hourly_records(run_id, timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordRun(info *RunInfo, records []simulator.HourlyRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	failed := 0
	if info.Failed {
		failed = 1
	}
	res, err := tx.Exec(`INSERT INTO runs
		(created_at, strategy, start_ts, end_ts, summed_cost, failed, error)
		VALUES (?,?,?,?,?,?,?)`,
		time.Now().Unix(), info.Strategy, info.Start, info.End,
		info.SummedCost, failed, info.Error,
	)
	if err != nil {
		return err
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO hourly_records
		(run_id, timestamp, consumption, production, price,
		 grid_kwh, storage_delta, bank_level, operation_cost, period_cost)
		VALUES (?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.Exec(runID, rec.Timestamp.Unix(),
			rec.Consumption, rec.Production, rec.Price,
			rec.GridKWh, rec.StorageDeltaKWh, rec.BankLevelKWh,
			rec.OperationCost, rec.PeriodCost,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *SQLiteRecorder) Close() error {
	log.Println("[INFO] closing sqlite recorder")
	return r.db.Close()
}
