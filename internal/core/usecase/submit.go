package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/docindex/internal/core/domain"
	"github.com/kirillkom/docindex/internal/core/ports"
)

// SubmitIngestUseCase validates a submission synchronously, creates the
// job status record, and enqueues the job for a worker.
type SubmitIngestUseCase struct {
	storage ports.ObjectStorage
	jobs    ports.JobStore
	queue   ports.MessageQueue
}

func NewSubmitIngestUseCase(
	storage ports.ObjectStorage,
	jobs ports.JobStore,
	queue ports.MessageQueue,
) *SubmitIngestUseCase {
	return &SubmitIngestUseCase{
		storage: storage,
		jobs:    jobs,
		queue:   queue,
	}
}

func (uc *SubmitIngestUseCase) Submit(ctx context.Context, req ports.SubmitRequest) (*domain.Job, error) {
	location := strings.TrimSpace(req.SourceLocation)
	if location == "" {
		return nil, domain.WrapError(domain.ErrValidation, "submit ingest",
			fmt.Errorf("source_location is required"))
	}
	if !uc.storage.Allowed(location) {
		return nil, domain.WrapError(domain.ErrValidation, "submit ingest",
			fmt.Errorf("source location %q is not allow-listed", location))
	}
	if err := validateTagSyntax(req.Tags); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	job := &domain.Job{
		ID:        uuid.NewString(),
		DocID:     req.DocID,
		State:     domain.JobQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.jobs.Put(ctx, job); err != nil {
		return nil, fmt.Errorf("create job record: %w", err)
	}

	msg := domain.IngestMessage{
		JobID:          job.ID,
		SourceLocation: location,
		DocID:          req.DocID,
		Tags:           req.Tags,
		SubmittedAt:    now,
	}
	if err := uc.queue.PublishIngestJob(ctx, msg); err != nil {
		return nil, fmt.Errorf("publish ingest job: %w", err)
	}
	return job, nil
}

// validateTagSyntax rejects tag values that can never pass resolution,
// before a job is created. Full required-tag validation needs the blob
// (sidecar, path) and happens in the worker.
func validateTagSyntax(tags map[string]string) error {
	for k, v := range tags {
		if strings.TrimSpace(k) == "" {
			return domain.WrapError(domain.ErrValidation, "submit ingest",
				fmt.Errorf("empty tag key"))
		}
		if k == "confidentiality" {
			switch v {
			case "public", "internal", "confidential":
			default:
				return domain.WrapError(domain.ErrValidation, "submit ingest",
					fmt.Errorf("invalid confidentiality: %q", v))
			}
		}
	}
	return nil
}
