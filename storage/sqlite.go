package storage

import (
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"rentscout/models"
)

// SQLiteStore keeps local bookkeeping: fetch runs, their logs, and the
// command queue read by the scheduler.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS fetch_runs (
		id TEXT PRIMARY KEY,
		generation INTEGER,
		store TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		attempts INTEGER DEFAULT 0,
		records_fetched INTEGER DEFAULT 0,
		records_dropped INTEGER DEFAULT 0,
		invalid_location INTEGER DEFAULT 0,
		listings_loaded INTEGER DEFAULT 0,
		error_message TEXT
	);

	CREATE TABLE IF NOT EXISTS fetch_logs (
		id INTEGER PRIMARY KEY,
		run_id TEXT,
		timestamp DATETIME,
		level TEXT,
		message TEXT
	);

	CREATE TABLE IF NOT EXISTS commands (
		id INTEGER PRIMARY KEY,
		command TEXT,
		params JSON,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		processed_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_commands_pending ON commands(processed_at) WHERE processed_at IS NULL;
	CREATE INDEX IF NOT EXISTS idx_logs_run ON fetch_logs(run_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON fetch_runs(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) CreateRun(run *models.FetchRun) error {
	_, err := s.db.Exec(`
		INSERT INTO fetch_runs (id, generation, store, started_at, status)
		VALUES (?, ?, ?, ?, ?)`,
		run.ID.String(), run.Generation, run.Store, run.StartedAt, run.Status)
	return err
}

func (s *SQLiteStore) UpdateRun(run *models.FetchRun) error {
	_, err := s.db.Exec(`
		UPDATE fetch_runs SET generation = ?, finished_at = ?, status = ?, attempts = ?,
			records_fetched = ?, records_dropped = ?, invalid_location = ?,
			listings_loaded = ?, error_message = ?
		WHERE id = ?`,
		run.Generation, run.FinishedAt, run.Status, run.Attempts,
		run.RecordsFetched, run.RecordsDropped, run.InvalidLocation,
		run.ListingsLoaded, run.ErrorMessage, run.ID.String())
	return err
}

// RecentRuns returns the latest runs, newest first.
func (s *SQLiteStore) RecentRuns(limit int) ([]models.FetchRun, error) {
	rows, err := s.db.Query(`
		SELECT id, generation, store, started_at, finished_at, status, attempts,
			records_fetched, records_dropped, invalid_location, listings_loaded, error_message
		FROM fetch_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.FetchRun
	for rows.Next() {
		var run models.FetchRun
		var errMsg sql.NullString
		if err := rows.Scan(&run.ID, &run.Generation, &run.Store, &run.StartedAt, &run.FinishedAt,
			&run.Status, &run.Attempts, &run.RecordsFetched, &run.RecordsDropped,
			&run.InvalidLocation, &run.ListingsLoaded, &errMsg); err != nil {
			return nil, err
		}
		run.ErrorMessage = errMsg.String
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) Log(runID string, level models.LogLevel, message string) error {
	_, err := s.db.Exec(`
		INSERT INTO fetch_logs (run_id, timestamp, level, message)
		VALUES (?, ?, ?, ?)`,
		runID, time.Now(), level, message)
	return err
}

func (s *SQLiteStore) GetPendingCommands() ([]models.Command, error) {
	rows, err := s.db.Query(`
		SELECT id, command, params, created_at, processed_at
		FROM commands WHERE processed_at IS NULL ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cmds []models.Command
	for rows.Next() {
		var cmd models.Command
		var params sql.NullString
		if err := rows.Scan(&cmd.ID, &cmd.Command, &params, &cmd.CreatedAt, &cmd.ProcessedAt); err != nil {
			return nil, err
		}
		if params.Valid {
			cmd.Params = json.RawMessage(params.String)
		}
		cmds = append(cmds, cmd)
	}
	return cmds, rows.Err()
}

func (s *SQLiteStore) MarkCommandProcessed(id int64) error {
	_, err := s.db.Exec(`UPDATE commands SET processed_at = ? WHERE id = ?`, time.Now(), id)
	return err
}

// EnqueueCommand queues a command for a running daemon to pick up.
func (s *SQLiteStore) EnqueueCommand(cmd models.CommandType, params models.CommandParams) error {
	data, err := json.Marshal(params)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO commands (command, params, created_at)
		VALUES (?, ?, ?)`,
		cmd, string(data), time.Now())
	return err
}

func (s *SQLiteStore) ParseCommandParams(cmd *models.Command) (*models.CommandParams, error) {
	if cmd.Params == nil || string(cmd.Params) == "null" {
		return &models.CommandParams{}, nil
	}
	var params models.CommandParams
	if err := json.Unmarshal(cmd.Params, &params); err != nil {
		return nil, err
	}
	return &params, nil
}
