package repository

import "time"

// UpsertOutcome classifies the effect of applying one canonical record.
type UpsertOutcome int

const (
	// UpsertInserted means a new record was created with no prior current
	// record for the natural key.
	UpsertInserted UpsertOutcome = iota
	// UpsertSuperseded means a prior record's window was closed at the new
	// record's effective_from before insertion.
	UpsertSuperseded
	// UpsertUnchanged means an identical key+window+payload record already
	// exists; re-import is a no-op.
	UpsertUnchanged
)

func (o UpsertOutcome) String() string {
	switch o {
	case UpsertInserted:
		return "inserted"
	case UpsertSuperseded:
		return "superseded"
	case UpsertUnchanged:
		return "unchanged"
	}
	return "unknown"
}

// sameWindow compares two effective windows, nil meaning open-ended.
func sameWindow(aFrom time.Time, aTo *time.Time, bFrom time.Time, bTo *time.Time) bool {
	if !aFrom.Equal(bFrom) {
		return false
	}
	if (aTo == nil) != (bTo == nil) {
		return false
	}
	if aTo != nil && !aTo.Equal(*bTo) {
		return false
	}
	return true
}

func strPtrEq(a, b *string) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return a == nil || *a == *b
}
