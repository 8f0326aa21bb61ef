package service

import (
	"errors"
	"time"
)

var (
	// ErrEmptySource aborts an import before any mutation when zero rows
	// survive normalization.
	ErrEmptySource = errors.New("source normalized to zero valid rows")
	// ErrImportAlreadyRunning is raised at lock-acquisition time when the
	// same job key is held by a live run; no partial work is performed.
	ErrImportAlreadyRunning = errors.New("import already running for this job")
	// ErrUnknownEntity marks a client-side reference the store cannot
	// resolve (category key, ISO2 code, currency).
	ErrUnknownEntity = errors.New("unknown entity")
	// ErrUpstreamFetch wraps an external source failure; the run is recorded
	// failed and the scheduler owns the retry policy.
	ErrUpstreamFetch = errors.New("upstream fetch failed")
)

// LookupStatus tags every resolution result. Lookup failures are values the
// quote orchestrator branches on, never exceptions.
type LookupStatus string

const (
	StatusOK         LookupStatus = "ok"
	StatusNoMatch    LookupStatus = "no_match"
	StatusNoDataset  LookupStatus = "no_dataset"
	StatusOutOfScope LookupStatus = "out_of_scope"
	StatusError      LookupStatus = "error"
)

// ResolutionMeta is the provenance metadata every resolved component carries
// back to the caller, a returned value rather than a log side effect.
type ResolutionMeta struct {
	Status        LookupStatus `json:"status"`
	Dataset       string       `json:"dataset,omitempty"`
	EffectiveFrom *time.Time   `json:"effective_from,omitempty"`
}
