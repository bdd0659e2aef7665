package models

import "time"

// FetchOutcome classifies the result of one upstream attempt.
type FetchOutcome string

const (
	OutcomeSuccess     FetchOutcome = "success"
	OutcomeTransport   FetchOutcome = "transport"
	OutcomeProtocol    FetchOutcome = "protocol"
	OutcomeApplication FetchOutcome = "application"
	OutcomeDecode      FetchOutcome = "decode"
)

// FetchEntry records a single upstream attempt.
type FetchEntry struct {
	ID         string       `json:"id"`
	Category   string       `json:"category"`
	Country    string       `json:"country,omitempty"`
	Outcome    FetchOutcome `json:"outcome"`
	StatusCode int          `json:"status_code,omitempty"`
	Records    int          `json:"records"`
	LatencyMs  int64        `json:"latency_ms"`
	Error      string       `json:"error,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}

// FetchQueryOpts specifies filters for querying fetch entries.
type FetchQueryOpts struct {
	Category string
	Outcome  FetchOutcome
	Since    time.Time
	Limit    int
}

// FetchStat holds aggregate counts for a category/outcome/day combination.
type FetchStat struct {
	Category string
	Outcome  FetchOutcome
	Day      string
	Count    int
}
