package domain

// SearchFilter restricts both store queries to chunks whose tags match
// every listed key/value pair.
type SearchFilter struct {
	Tags map[string]string
}

// RankedHit is one entry of a ranked result list from either store, or of
// the fused output.
type RankedHit struct {
	DocID   string  `json:"doc_id"`
	ChunkID string  `json:"chunk_id"`
	Text    string  `json:"text"`
	Score   float64 `json:"score"`
}

func (h RankedHit) Key() string {
	return h.DocID + ":" + h.ChunkID
}

// IndexStats reports per-store row counts for one document after indexing.
// Keyword and vector counts must agree; a mismatch is a parity violation.
type IndexStats struct {
	KeywordCount int `json:"keyword_count"`
	VectorCount  int `json:"vector_count"`
}
