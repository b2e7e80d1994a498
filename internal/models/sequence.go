package models

import "time"

// MaxYearlySequence is the hard per-year ceiling implied by the 5-digit
// zero-padded number format. A deliberate business limit, not a technicality.
const MaxYearlySequence = 99999

// WorkOrderSequence is the single per-year counter row backing number
// generation. Monotonic, never decreases.
type WorkOrderSequence struct {
	Year        int       `db:"year" json:"year"`
	Sequence    int       `db:"sequence" json:"sequence"`
	LastUpdated time.Time `db:"last_updated" json:"last_updated"`
}
