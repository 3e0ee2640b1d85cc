package db

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Client reads the daemon's SQLite bookkeeping and writes to its command
// queue. It never creates tables; the daemon owns the schema.
type Client struct {
	sqlite *sql.DB
}

type RunStats struct {
	TotalRuns     int
	OKRuns        int
	FallbackRuns  int
	SkippedRuns   int
	LastRunAt     *time.Time
	LastRunStatus *string
	LastLoaded    int
	AvgDurationMs int
}

type FetchRun struct {
	ID              string
	Store           string
	StartedAt       time.Time
	FinishedAt      *time.Time
	Status          string
	Attempts        int
	RecordsFetched  int
	RecordsDropped  int
	InvalidLocation int
	ListingsLoaded  int
	ErrorMessage    string
}

type FetchLog struct {
	ID        int64
	RunID     *string
	Timestamp time.Time
	Level     string
	Message   string
}

func New(sqlitePath string) (*Client, error) {
	sqliteDB, err := sql.Open("sqlite", sqlitePath)
	if err != nil {
		return nil, err
	}
	if err := sqliteDB.Ping(); err != nil {
		sqliteDB.Close()
		return nil, err
	}
	return &Client{sqlite: sqliteDB}, nil
}

func (c *Client) Close() error {
	return c.sqlite.Close()
}

func (c *Client) GetRunStats() (RunStats, error) {
	var s RunStats
	err := c.sqlite.QueryRow(`
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'ok' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'fallback' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'skipped' THEN 1 ELSE 0 END), 0)
		FROM fetch_runs
	`).Scan(&s.TotalRuns, &s.OKRuns, &s.FallbackRuns, &s.SkippedRuns)
	if err != nil {
		return s, err
	}

	runs, err := c.GetRecentRuns(20)
	if err != nil {
		return s, err
	}
	if len(runs) > 0 {
		last := runs[0]
		s.LastRunAt = &last.StartedAt
		s.LastRunStatus = &last.Status
		s.LastLoaded = last.ListingsLoaded
	}

	var total time.Duration
	var finished int
	for _, r := range runs {
		if r.FinishedAt == nil {
			continue
		}
		total += r.FinishedAt.Sub(r.StartedAt)
		finished++
	}
	if finished > 0 {
		s.AvgDurationMs = int((total / time.Duration(finished)).Milliseconds())
	}
	return s, nil
}

func (c *Client) GetRecentRuns(limit int) ([]FetchRun, error) {
	rows, err := c.sqlite.Query(`
		SELECT id, COALESCE(store, ''), started_at, finished_at, COALESCE(status, ''),
			COALESCE(attempts, 0), COALESCE(records_fetched, 0), COALESCE(records_dropped, 0),
			COALESCE(invalid_location, 0), COALESCE(listings_loaded, 0), COALESCE(error_message, '')
		FROM fetch_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []FetchRun
	for rows.Next() {
		var r FetchRun
		var started string
		var finished sql.NullString
		err := rows.Scan(&r.ID, &r.Store, &started, &finished, &r.Status,
			&r.Attempts, &r.RecordsFetched, &r.RecordsDropped,
			&r.InvalidLocation, &r.ListingsLoaded, &r.ErrorMessage)
		if err != nil {
			return nil, err
		}
		r.StartedAt = parseTime(started)
		if finished.Valid && finished.String != "" {
			t := parseTime(finished.String)
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (c *Client) GetRecentLogs(limit int, level *string) ([]FetchLog, error) {
	var rows *sql.Rows
	var err error

	if level != nil && *level != "ALL" {
		rows, err = c.sqlite.Query(`
			SELECT id, run_id, timestamp, level, message
			FROM fetch_logs
			WHERE UPPER(level) = UPPER(?)
			ORDER BY timestamp DESC
			LIMIT ?
		`, *level, limit)
	} else {
		rows, err = c.sqlite.Query(`
			SELECT id, run_id, timestamp, level, message
			FROM fetch_logs
			ORDER BY timestamp DESC
			LIMIT ?
		`, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []FetchLog
	for rows.Next() {
		var l FetchLog
		var ts string
		err := rows.Scan(&l.ID, &l.RunID, &ts, &l.Level, &l.Message)
		if err != nil {
			return nil, err
		}
		l.Timestamp = parseTime(ts)
		l.Level = strings.ToUpper(l.Level)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// SendCommand queues a command for the daemon's command poller.
func (c *Client) SendCommand(command string, params map[string]string) error {
	data := []byte("{}")
	if len(params) > 0 {
		var err error
		if data, err = json.Marshal(params); err != nil {
			return err
		}
	}
	_, err := c.sqlite.Exec(`
		INSERT INTO commands (command, params, created_at)
		VALUES (?, ?, ?)
	`, command, string(data), time.Now().Format(timeLayouts[1]))
	return err
}

func (c *Client) Refetch() error {
	return c.SendCommand("refetch", nil)
}

func (c *Client) Pause() error {
	return c.SendCommand("pause", nil)
}

func (c *Client) Resume() error {
	return c.SendCommand("resume", nil)
}

func (c *Client) SelectArea(id string) error {
	return c.SendCommand("area", map[string]string{"area": id})
}

// The daemon writes times through go-sqlite3, which uses its own layout.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func parseTime(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
