// Package types contains transport-neutral types shared by the service and
// its adapters.
package types

// Ack acknowledges an accepted attempt.
type Ack struct {
	ID        string `json:"id"`
	Duplicate bool   `json:"duplicate"`
}

// ImportReport summarizes a bulk import.
type ImportReport struct {
	Accepted   int      `json:"accepted"`
	Duplicates int      `json:"duplicates"`
	Invalid    int      `json:"invalid"`
	Errors     []string `json:"errors,omitempty"`
}

// Total returns the number of attempts the import looked at.
func (r ImportReport) Total() int { return r.Accepted + r.Duplicates + r.Invalid }

// Merge adds other's counts and errors to r.
func (r *ImportReport) Merge(other ImportReport) {
	r.Accepted += other.Accepted
	r.Duplicates += other.Duplicates
	r.Invalid += other.Invalid
	r.Errors = append(r.Errors, other.Errors...)
}
