package model

import (
	"time"

	"github.com/google/uuid"
)

// ImportRun status enum constants
const (
	ImportRunning   = "running"
	ImportSucceeded = "succeeded"
	ImportFailed    = "failed"
)

// ImportRun represents one ingestion attempt. Created at the start of an
// import with status running, mutated to a terminal status on completion.
// The stale-run sweeper force-fails runs stuck past a threshold.
type ImportRun struct {
	ID            uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Source        string     `gorm:"type:varchar(100);not null;index" json:"source"`
	Job           string     `gorm:"type:varchar(100);not null;index" json:"job"`
	Params        string     `gorm:"type:jsonb" json:"params"` // serialized request options
	StartedAt     time.Time  `gorm:"not null;index" json:"started_at"`
	FinishedAt    *time.Time `gorm:"index" json:"finished_at"`
	Status        string     `gorm:"type:varchar(15);not null;index" json:"status"` // running, succeeded, failed
	InsertedCount int        `gorm:"not null;default:0" json:"inserted_count"`
	Error         string     `gorm:"type:text" json:"error,omitempty"`
}

// ProvenanceRecord links one ingested row to its source document and import
// run, for auditing and age-based pruning.
type ProvenanceRecord struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ImportRunID uuid.UUID `gorm:"type:uuid;not null;index" json:"import_run_id"`
	SourceURL   string    `gorm:"type:text" json:"source_url"`
	RawRowHash  string    `gorm:"type:varchar(64);not null;index" json:"raw_row_hash"` // sha256 hex
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

// JobLock is the lease row behind the named per-job mutual exclusion service.
// Acquisition inserts the key or takes over an expired lease; a live row for
// the same key means another import holds the job.
type JobLock struct {
	Key        string    `gorm:"type:varchar(120);primaryKey" json:"key"`
	RunID      uuid.UUID `gorm:"type:uuid;not null" json:"run_id"`
	AcquiredAt time.Time `gorm:"not null" json:"acquired_at"`
	ExpiresAt  time.Time `gorm:"not null;index" json:"expires_at"`
}
