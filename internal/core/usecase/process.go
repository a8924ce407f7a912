package usecase

import (
	"context"
	"fmt"
	"mime"
	"path"
	"time"

	"github.com/kirillkom/docindex/internal/core/chunking"
	"github.com/kirillkom/docindex/internal/core/domain"
	"github.com/kirillkom/docindex/internal/core/lifecycle"
	"github.com/kirillkom/docindex/internal/core/metadata"
	"github.com/kirillkom/docindex/internal/core/normalize"
	"github.com/kirillkom/docindex/internal/core/ports"
)

// ProcessJobUseCase runs one ingestion attempt: download, metadata
// resolution, parse, normalize, chunk, dual-store indexing. Every stage
// effect is safe to repeat, so at-least-once redelivery of the same
// message converges to the same indexed state.
type ProcessJobUseCase struct {
	storage  ports.ObjectStorage
	parser   ports.DocumentParser
	chunker  *chunking.Chunker
	indexer  ports.DualIndexer
	jobs     ports.JobStore
	defaults map[string]string
}

func NewProcessJobUseCase(
	storage ports.ObjectStorage,
	parser ports.DocumentParser,
	chunker *chunking.Chunker,
	indexer ports.DualIndexer,
	jobs ports.JobStore,
	defaultTags map[string]string,
) *ProcessJobUseCase {
	return &ProcessJobUseCase{
		storage:  storage,
		parser:   parser,
		chunker:  chunker,
		indexer:  indexer,
		jobs:     jobs,
		defaults: defaultTags,
	}
}

func (uc *ProcessJobUseCase) ProcessJob(ctx context.Context, msg domain.IngestMessage) error {
	tracker, err := lifecycle.NewAttempt(ctx, uc.jobs, msg.JobID)
	if err != nil {
		return fmt.Errorf("start job attempt: %w", err)
	}

	if err := uc.pipeline(ctx, tracker, msg); err != nil {
		if failErr := tracker.Fail(ctx, err); failErr != nil {
			return fmt.Errorf("%w; record failure: %v", err, failErr)
		}
		return err
	}
	if err := tracker.Done(ctx); err != nil {
		return fmt.Errorf("record completion: %w", err)
	}
	return nil
}

func (uc *ProcessJobUseCase) pipeline(ctx context.Context, tracker *lifecycle.Tracker, msg domain.IngestMessage) error {
	identity, content, err := uc.download(ctx, tracker, msg)
	if err != nil {
		return err
	}

	elements, err := uc.parse(ctx, tracker, msg.SourceLocation, content)
	if err != nil {
		return err
	}

	elements = uc.normalizeElements(ctx, tracker, elements)

	chunks, err := uc.chunk(ctx, tracker, identity, elements)
	if err != nil {
		return err
	}

	return uc.index(ctx, tracker, identity.DocID, chunks)
}

func (uc *ProcessJobUseCase) download(ctx context.Context, tracker *lifecycle.Tracker, msg domain.IngestMessage) (domain.Identity, []byte, error) {
	if err := tracker.Enter(ctx, domain.JobDownloading); err != nil {
		return domain.Identity{}, nil, err
	}

	content, err := uc.storage.Fetch(ctx, msg.SourceLocation)
	if err != nil {
		return domain.Identity{}, nil, fmt.Errorf("fetch source: %w", err)
	}
	tracker.Count("bytes", int64(len(content)))

	sidecar, present, err := uc.storage.Sidecar(ctx, msg.SourceLocation)
	if err != nil {
		// Absent sidecars never fail a job; malformed ones always do.
		return domain.Identity{}, nil, fmt.Errorf("load sidecar: %w", err)
	}

	tags, err := metadata.Resolve(metadata.Sources{
		Request:        msg.Tags,
		Sidecar:        sidecar,
		SidecarPresent: present,
		Path:           msg.SourceLocation,
		Defaults:       uc.defaults,
	})
	if err != nil {
		return domain.Identity{}, nil, err
	}

	identity, err := metadata.Identity(msg.SourceLocation, content, msg.DocID, tags, time.Now())
	if err != nil {
		return domain.Identity{}, nil, err
	}
	tracker.SetDocID(identity.DocID)
	return identity, content, nil
}

func (uc *ProcessJobUseCase) parse(ctx context.Context, tracker *lifecycle.Tracker, location string, content []byte) ([]domain.Element, error) {
	if err := tracker.Enter(ctx, domain.JobParsing); err != nil {
		return nil, err
	}
	elements, err := uc.parser.Parse(ctx, content, contentTypeForLocation(location))
	if err != nil {
		return nil, fmt.Errorf("parse source: %w", err)
	}
	tracker.Count("elements", int64(len(elements)))
	return elements, nil
}

func (uc *ProcessJobUseCase) normalizeElements(ctx context.Context, tracker *lifecycle.Tracker, elements []domain.Element) []domain.Element {
	if err := tracker.Enter(ctx, domain.JobNormalizing); err != nil {
		return elements
	}
	out := normalize.Elements(elements)
	tracker.Count("elements", int64(len(out)))
	return out
}

func (uc *ProcessJobUseCase) chunk(ctx context.Context, tracker *lifecycle.Tracker, identity domain.Identity, elements []domain.Element) ([]domain.Chunk, error) {
	if err := tracker.Enter(ctx, domain.JobChunking); err != nil {
		return nil, err
	}
	// Zero chunks from an empty document is a valid job outcome; the
	// indexing stages then clear any rows from a previous version.
	chunks := uc.chunker.Chunk(identity.DocID, chunkTags(identity), elements)
	tracker.Count("chunks", int64(len(chunks)))
	return chunks, nil
}

func (uc *ProcessJobUseCase) index(ctx context.Context, tracker *lifecycle.Tracker, docID string, chunks []domain.Chunk) error {
	if err := tracker.Enter(ctx, domain.JobIndexingKeyword); err != nil {
		return err
	}
	kwRows, err := uc.indexer.IndexKeyword(ctx, docID, chunks)
	if err != nil {
		return fmt.Errorf("index keyword store: %w", err)
	}
	tracker.Count("rows", int64(kwRows))

	if err := tracker.Enter(ctx, domain.JobIndexingVector); err != nil {
		return err
	}
	vecRows, err := uc.indexer.IndexVector(ctx, docID, chunks)
	if err != nil {
		return fmt.Errorf("index vector store: %w", err)
	}
	tracker.Count("rows", int64(vecRows))

	stats, err := uc.indexer.VerifyParity(ctx, docID)
	if err != nil {
		return err
	}
	tracker.Count("keyword_rows", int64(stats.KeywordCount))
	tracker.Count("vector_rows", int64(stats.VectorCount))
	return nil
}

// chunkTags merges the resolved tag set with derived document fields so
// every chunk carries full provenance.
func chunkTags(identity domain.Identity) map[string]string {
	tags := make(map[string]string, len(identity.Tags)+4)
	for k, v := range identity.Tags {
		tags[k] = v
	}
	tags["filename"] = identity.Filename
	tags["file_type"] = identity.FileType
	tags["sha256"] = identity.SHA256
	tags["ingested_at"] = identity.IngestedAt.Format(time.RFC3339)
	return tags
}

func contentTypeForLocation(location string) string {
	ext := path.Ext(location)
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	switch ext {
	case ".md", ".txt", "":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
