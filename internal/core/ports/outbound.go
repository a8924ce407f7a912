package ports

import (
	"context"

	"github.com/kirillkom/docindex/internal/core/domain"
)

// ObjectStorage fetches source document bytes from an allow-listed
// location set and looks up optional sidecar metadata files.
type ObjectStorage interface {
	// Allowed reports whether the location passes the allowlist without
	// touching the backend.
	Allowed(location string) bool
	Fetch(ctx context.Context, location string) ([]byte, error)
	// Sidecar returns (tags, true, nil) when a sidecar file exists next to
	// the blob, (nil, false, nil) when absent, and an error only when a
	// sidecar is present but malformed.
	Sidecar(ctx context.Context, location string) (map[string]string, bool, error)
}

// DocumentParser extracts structural elements from raw source bytes.
type DocumentParser interface {
	Parse(ctx context.Context, data []byte, contentType string) ([]domain.Element, error)
}

// SentenceSegmenter splits narrative text into ordered sentences.
type SentenceSegmenter interface {
	Segment(text string) []string
}

// KeywordIndex is the BM25-style store. Record ids are "{doc_id}:{chunk_id}";
// re-writing the same id is replacement, never duplication. The physical
// index is versioned and addressed only through a stable alias.
type KeywordIndex interface {
	BulkUpsert(ctx context.Context, chunks []domain.Chunk) (int, error)
	// DeleteStale removes records for docID whose id is not in keep.
	DeleteStale(ctx context.Context, docID string, keep []string) error
	Count(ctx context.Context, docID string) (int, error)
	Search(ctx context.Context, query string, filter domain.SearchFilter, topN int) ([]domain.RankedHit, error)
}

// VectorIndex is the ANN store. It has no upsert-by-key primitive;
// replacement is an unconditional delete-then-insert per document.
type VectorIndex interface {
	DeleteByDocID(ctx context.Context, docID string) error
	Insert(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error
	Count(ctx context.Context, docID string) (int, error)
	Search(ctx context.Context, vector []float32, filter domain.SearchFilter, topN int) ([]domain.RankedHit, error)
}

// DualIndexer drives the two-store replacement saga for one document.
// Keyword indexing runs strictly before vector indexing so that a
// keyword-only success remains cheaply visible and retryable.
type DualIndexer interface {
	IndexKeyword(ctx context.Context, docID string, chunks []domain.Chunk) (int, error)
	IndexVector(ctx context.Context, docID string, chunks []domain.Chunk) (int, error)
	// VerifyParity compares per-store row counts and returns an error of
	// kind ErrPartialIndex on mismatch. Never swallowed into success.
	VerifyParity(ctx context.Context, docID string) (domain.IndexStats, error)
}

// JobStore persists whole job status records with a bounded TTL.
// Get returns domain.ErrNotFound for unknown or expired ids.
type JobStore interface {
	Put(ctx context.Context, job *domain.Job) error
	Get(ctx context.Context, jobID string) (*domain.Job, error)
}

// MessageQueue delivers ingestion jobs to workers at least once.
type MessageQueue interface {
	PublishIngestJob(ctx context.Context, msg domain.IngestMessage) error
	SubscribeIngestJobs(ctx context.Context, handler func(context.Context, domain.IngestMessage) error) error
}
