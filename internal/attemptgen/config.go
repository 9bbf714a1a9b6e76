// Package attemptgen generates synthetic attempts, posts them to a running
// server concurrently and verifies the server's summaries against summaries
// computed locally from the same attempts.
package attemptgen

import "time"

// Config holds configuration for a generation run.
type Config struct {
	BaseURL       string        // Base URL of the service
	NumAttempts   int           // Number of distinct attempts to generate
	Users         int           // Number of synthetic users
	Subjects      int           // Number of subjects per user
	DuplicateRate float64       // Fraction of attempts posted a second time
	InvalidRate   float64       // Fraction of extra attempts that must be rejected
	Workers       int           // Number of concurrent submitters
	Timeout       time.Duration // HTTP request timeout
	SettleTimeout time.Duration // How long to wait for summaries to converge
	Seed          uint64        // Generator seed; equal seeds give equal attempts
	OutputFile    string        // Optional JSON dump of the generated attempts
	Verbose       bool          // Log every mismatch
}

// Payload is the wire form of an attempt accepted by POST /attempts.
type Payload struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	SubjectID string `json:"subject_id"`
	Category  string `json:"category,omitempty"`
	Score     int    `json:"score"`
	Total     int    `json:"total"`
	Answers   []bool `json:"answers,omitempty"`
	TS        string `json:"ts"`
}

// AckResponse represents the response from attempt submission.
type AckResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
	ID        string `json:"id"`
}

// Stats holds run statistics.
type Stats struct {
	Generated  int
	Submitted  int
	Accepted   int
	Duplicates int
	Rejected   int
	Failed     int
	Checked    int
	Mismatches int
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
}
