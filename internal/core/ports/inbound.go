package ports

import (
	"context"

	"github.com/kirillkom/docindex/internal/core/domain"
)

// SubmitRequest is the inbound payload for ingest submission.
type SubmitRequest struct {
	SourceLocation string
	DocID          string
	Tags           map[string]string
}

// IngestSubmitter validates a submission, creates the job record, and
// enqueues it. Validation failures are rejected synchronously, before a
// job exists.
type IngestSubmitter interface {
	Submit(ctx context.Context, req SubmitRequest) (*domain.Job, error)
}

// JobReader is the read-only status view exposed to polling callers.
type JobReader interface {
	Get(ctx context.Context, jobID string) (*domain.Job, error)
}

// JobProcessor executes one ingestion attempt end to end. It must be safe
// under at-least-once redelivery of the same message.
type JobProcessor interface {
	ProcessJob(ctx context.Context, msg domain.IngestMessage) error
}

// SearchService runs the hybrid query path: both stores queried
// independently, results fused into one ordering.
type SearchService interface {
	Search(ctx context.Context, query string, topK int, filter domain.SearchFilter) ([]domain.RankedHit, error)
}
