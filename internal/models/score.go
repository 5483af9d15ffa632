package models

// ScoreEntry pairs a relevance score with a chunk id. Lists of entries are
// ordered by descending score unless documented otherwise.
type ScoreEntry struct {
	Score   float64 `json:"score"`
	ChunkID int     `json:"chunk_id"`
}
