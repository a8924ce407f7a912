package usecase

import (
	"context"
	"testing"

	"github.com/kirillkom/docindex/internal/core/domain"
	"github.com/kirillkom/docindex/internal/core/ports"
)

func TestSubmitCreatesJobAndPublishes(t *testing.T) {
	jobs := newJobStoreFake()
	queue := &queueFake{}
	uc := NewSubmitIngestUseCase(newStorageFake(), jobs, queue)

	job, err := uc.Submit(context.Background(), ports.SubmitRequest{
		SourceLocation: "acme/reports/q3.pdf",
		Tags:           map[string]string{"doc_type": "report"},
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if job.State != domain.JobQueued {
		t.Fatalf("state = %s, want queued", job.State)
	}
	if _, err := jobs.Get(context.Background(), job.ID); err != nil {
		t.Fatalf("job record not created: %v", err)
	}
	if len(queue.published) != 1 || queue.published[0].JobID != job.ID {
		t.Fatalf("message not published: %+v", queue.published)
	}
}

func TestSubmitRejectsEmptyLocation(t *testing.T) {
	uc := NewSubmitIngestUseCase(newStorageFake(), newJobStoreFake(), &queueFake{})
	_, err := uc.Submit(context.Background(), ports.SubmitRequest{SourceLocation: "   "})
	if !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestSubmitRejectsDisallowedLocationBeforeJobCreation(t *testing.T) {
	storage := newStorageFake()
	storage.disallowAll = true
	jobs := newJobStoreFake()
	queue := &queueFake{}
	uc := NewSubmitIngestUseCase(storage, jobs, queue)

	_, err := uc.Submit(context.Background(), ports.SubmitRequest{SourceLocation: "outside/evil.pdf"})
	if !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if len(jobs.jobs) != 0 {
		t.Fatalf("job record created despite rejection")
	}
	if len(queue.published) != 0 {
		t.Fatalf("message published despite rejection")
	}
}

func TestSubmitRejectsInvalidConfidentiality(t *testing.T) {
	uc := NewSubmitIngestUseCase(newStorageFake(), newJobStoreFake(), &queueFake{})
	_, err := uc.Submit(context.Background(), ports.SubmitRequest{
		SourceLocation: "a/b/c.pdf",
		Tags:           map[string]string{"confidentiality": "top-secret"},
	})
	if !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
