package models

// SearchResult is one ranked chunk returned to a caller.
type SearchResult struct {
	ChunkID int     `json:"chunk_id"`
	Score   float64 `json:"score"`
	Rank    int     `json:"rank"`
	Chunk   Chunk   `json:"chunk"`
}

// QueryResponse is the response for a query request.
type QueryResponse struct {
	Query     string          `json:"query"`
	Engine    string          `json:"engine"`
	Results   []*SearchResult `json:"results"`
	QueryTime int64           `json:"query_time_ms"`
	// Exhaustive is set when the corpus had no more than k chunks and every
	// chunk was returned without ranking.
	Exhaustive bool `json:"exhaustive,omitempty"`
}

// UpdateResponse summarizes one synchronization of the index with the corpus.
type UpdateResponse struct {
	Added      int    `json:"added"`
	Removed    int    `json:"removed"`
	Files      int    `json:"files"`
	Chunks     int    `json:"chunks"`
	Snapshot   string `json:"snapshot,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}
