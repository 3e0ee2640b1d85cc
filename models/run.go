package models

import (
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusOK       RunStatus = "ok"
	RunStatusFallback RunStatus = "fallback"
	RunStatusFailed   RunStatus = "failed"
	RunStatusSkipped  RunStatus = "skipped"
)

// FetchRun records one FetchAll cycle of the listing repository
type FetchRun struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	Generation      uint64     `json:"generation" db:"generation"`
	Store           string     `json:"store" db:"store"`
	StartedAt       time.Time  `json:"started_at" db:"started_at"`
	FinishedAt      *time.Time `json:"finished_at" db:"finished_at"`
	Status          RunStatus  `json:"status" db:"status"`
	Attempts        int        `json:"attempts" db:"attempts"`
	RecordsFetched  int        `json:"records_fetched" db:"records_fetched"`
	RecordsDropped  int        `json:"records_dropped" db:"records_dropped"`
	InvalidLocation int        `json:"invalid_location" db:"invalid_location"`
	ListingsLoaded  int        `json:"listings_loaded" db:"listings_loaded"`
	ErrorMessage    string     `json:"error_message" db:"error_message"`
}
