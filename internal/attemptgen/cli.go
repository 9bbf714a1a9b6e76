package attemptgen

import "os"

// ShowHelp prints usage information for the attempt-gen tool.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`attempt-gen
===========

Generates synthetic attempts, posts them concurrently to a tally server and
checks that every per-subject summary the server reports matches the summary
computed locally from the same attempts.

Usage:
  attempt-gen [options]

Options:
  -url string          Base URL of the service (default "http://localhost:9080")
  -attempts int        Distinct attempts to generate (default 5000)
  -users int           Synthetic users (default 20)
  -subjects int        Subjects per user (default 5)
  -duplicates float    Fraction of attempts resubmitted (default 0.05)
  -invalid float       Fraction of extra invalid attempts (default 0.02)
  -workers int         Concurrent submitters (default CPU cores * 2)
  -timeout duration    HTTP request timeout (default 30s)
  -settle duration     Time allowed for summaries to converge (default 30s)
  -seed uint           Generator seed (default: current time)
  -output string       Write the generated attempts as a JSON document dump
  -verbose             Log every mismatch
  -help                Show this help message
`)
}
