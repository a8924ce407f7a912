// Package indexer coordinates the two-store replacement saga for one
// document. Keyword indexing always completes before vector indexing
// starts, and a final parity check keeps divergence visible.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/docindex/internal/core/domain"
	"github.com/kirillkom/docindex/internal/core/ports"
	"github.com/kirillkom/docindex/internal/infrastructure/resilience"
)

type DualStore struct {
	keyword   ports.KeywordIndex
	vector    ports.VectorIndex
	exec      *resilience.Executor
	timeout   time.Duration
	vectorDim int
}

func NewDualStore(
	keyword ports.KeywordIndex,
	vector ports.VectorIndex,
	exec *resilience.Executor,
	timeout time.Duration,
	vectorDim int,
) *DualStore {
	if exec == nil {
		exec = resilience.NewExecutor(resilience.DefaultConfig())
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &DualStore{
		keyword:   keyword,
		vector:    vector,
		exec:      exec,
		timeout:   timeout,
		vectorDim: vectorDim,
	}
}

// IndexKeyword replaces the document's keyword records. Stale rows are
// removed before the upsert so a shrinking chunk set leaves no orphans;
// the upsert itself is idempotent because record ids are stable.
func (d *DualStore) IndexKeyword(ctx context.Context, docID string, chunks []domain.Chunk) (int, error) {
	keep := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		keep = append(keep, chunk.Key())
	}

	if err := d.run(ctx, "keyword_delete_stale", func(ctx context.Context) error {
		return d.keyword.DeleteStale(ctx, docID, keep)
	}); err != nil {
		return 0, err
	}

	if err := d.run(ctx, "keyword_bulk_upsert", func(ctx context.Context) error {
		_, err := d.keyword.BulkUpsert(ctx, chunks)
		return err
	}); err != nil {
		return 0, err
	}

	var rows int
	if err := d.run(ctx, "keyword_count", func(ctx context.Context) error {
		n, err := d.keyword.Count(ctx, docID)
		rows = n
		return err
	}); err != nil {
		return 0, err
	}
	return rows, nil
}

// IndexVector replaces the document's vectors with delete-then-insert.
// A failure here strands the keyword side ahead of the vector side, so
// everything but timeouts is reported as a partial index.
func (d *DualStore) IndexVector(ctx context.Context, docID string, chunks []domain.Chunk) (int, error) {
	if err := d.run(ctx, "vector_delete", func(ctx context.Context) error {
		return d.vector.DeleteByDocID(ctx, docID)
	}); err != nil {
		return 0, d.partial("vector delete", err)
	}

	vectors := d.placeholderVectors(len(chunks))
	if err := d.run(ctx, "vector_insert", func(ctx context.Context) error {
		return d.vector.Insert(ctx, chunks, vectors)
	}); err != nil {
		return 0, d.partial("vector insert", err)
	}

	var rows int
	if err := d.run(ctx, "vector_count", func(ctx context.Context) error {
		n, err := d.vector.Count(ctx, docID)
		rows = n
		return err
	}); err != nil {
		return 0, d.partial("vector count", err)
	}
	return rows, nil
}

func (d *DualStore) VerifyParity(ctx context.Context, docID string) (domain.IndexStats, error) {
	var stats domain.IndexStats

	if err := d.run(ctx, "parity_keyword_count", func(ctx context.Context) error {
		n, err := d.keyword.Count(ctx, docID)
		stats.KeywordCount = n
		return err
	}); err != nil {
		return stats, err
	}
	if err := d.run(ctx, "parity_vector_count", func(ctx context.Context) error {
		n, err := d.vector.Count(ctx, docID)
		stats.VectorCount = n
		return err
	}); err != nil {
		return stats, err
	}

	if stats.KeywordCount != stats.VectorCount {
		return stats, domain.WrapError(domain.ErrPartialIndex, "verify parity",
			fmt.Errorf("doc %s: keyword=%d vector=%d", docID, stats.KeywordCount, stats.VectorCount))
	}
	return stats, nil
}

// Placeholder embeddings: zero vectors of the configured dimensionality
// until a real embedder is wired in.
func (d *DualStore) placeholderVectors(n int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		out[i] = make([]float32, d.vectorDim)
	}
	return out
}

func (d *DualStore) run(ctx context.Context, operation string, fn func(context.Context) error) error {
	err := d.exec.Execute(ctx, operation, func(ctx context.Context) error {
		cctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()
		return fn(cctx)
	}, classifyStoreError)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.WrapError(domain.ErrTimeout, operation, err)
	}
	return err
}

func (d *DualStore) partial(op string, err error) error {
	if domain.IsKind(err, domain.ErrTimeout) || domain.IsKind(err, domain.ErrPartialIndex) {
		return err
	}
	return domain.WrapError(domain.ErrPartialIndex, op, err)
}

func classifyStoreError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) {
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}
	// Remote store failures are transient far more often than not.
	return resilience.ErrorClassification{
		Retryable:     true,
		RecordFailure: true,
	}
}
