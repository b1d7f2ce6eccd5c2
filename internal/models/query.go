package models

import "time"

// QueryRequest is a natural-language question about an optional dataset
type QueryRequest struct {
	Query            string
	DatasetID        string
	Provider         string
	EnableFallback   bool
	FallbackProvider string
	QueryType        string
	SessionID        string
}

// QueryResult is the outcome of a dispatched query. Provider names the
// provider whose text is in Response.
type QueryResult struct {
	QueryID        string        `json:"query_id"`
	Query          string        `json:"query"`
	Response       string        `json:"response"`
	Provider       string        `json:"llm_provider"`
	FallbackUsed   bool          `json:"fallback_used"`
	DatasetID      string        `json:"dataset_id,omitempty"`
	Elapsed        time.Duration `json:"-"`
	ProcessingTime float64       `json:"processing_time"`
	Timestamp      time.Time     `json:"timestamp"`
}
