package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/docindex/internal/core/domain"
	"github.com/kirillkom/docindex/internal/core/fusion"
	"github.com/kirillkom/docindex/internal/core/normalize"
	"github.com/kirillkom/docindex/internal/core/ports"
)

type SearchConfig struct {
	// TopN bounds each store's candidate list before fusion.
	TopN int
	// TopK bounds the fused output when the caller does not ask for one.
	TopK int
	// RRFK is the rank-flattening constant of reciprocal rank fusion.
	RRFK int
	// StoreTimeout applies to each store query independently.
	StoreTimeout time.Duration
	// VectorDim sizes the placeholder query vector.
	VectorDim int
	// DegradedHook is invoked with "keyword" or "vector" when that store
	// failed and the query was served from the other one.
	DegradedHook func(store string)
}

func (c SearchConfig) normalized() SearchConfig {
	if c.TopN <= 0 {
		c.TopN = 50
	}
	if c.TopK <= 0 {
		c.TopK = 10
	}
	if c.RRFK <= 0 {
		c.RRFK = fusion.DefaultK
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = 5 * time.Second
	}
	if c.VectorDim <= 0 {
		c.VectorDim = 768
	}
	return c
}

// HybridSearchUseCase queries the keyword and vector stores concurrently
// and fuses their rankings. A single-store failure degrades ranking
// quality but does not fail the query; both stores failing does.
type HybridSearchUseCase struct {
	keyword ports.KeywordIndex
	vector  ports.VectorIndex
	cfg     SearchConfig
	log     *slog.Logger
}

func NewHybridSearchUseCase(
	keyword ports.KeywordIndex,
	vector ports.VectorIndex,
	cfg SearchConfig,
	log *slog.Logger,
) *HybridSearchUseCase {
	if log == nil {
		log = slog.Default()
	}
	return &HybridSearchUseCase{
		keyword: keyword,
		vector:  vector,
		cfg:     cfg.normalized(),
		log:     log,
	}
}

type storeResult struct {
	hits []domain.RankedHit
	err  error
}

func (uc *HybridSearchUseCase) Search(ctx context.Context, query string, topK int, filter domain.SearchFilter) ([]domain.RankedHit, error) {
	normalized := normalize.Query(query)
	if normalized == "" {
		return nil, domain.WrapError(domain.ErrValidation, "hybrid search",
			fmt.Errorf("query is empty after normalization"))
	}
	if topK <= 0 {
		topK = uc.cfg.TopK
	}

	keywordCh := make(chan storeResult, 1)
	vectorCh := make(chan storeResult, 1)

	go func() {
		qctx, cancel := context.WithTimeout(ctx, uc.cfg.StoreTimeout)
		defer cancel()
		hits, err := uc.keyword.Search(qctx, normalized, filter, uc.cfg.TopN)
		keywordCh <- storeResult{hits: hits, err: err}
	}()
	go func() {
		qctx, cancel := context.WithTimeout(ctx, uc.cfg.StoreTimeout)
		defer cancel()
		// Placeholder embedding: queries carry a zero vector of the
		// agreed dimensionality until a real embedder is wired in.
		hits, err := uc.vector.Search(qctx, make([]float32, uc.cfg.VectorDim), filter, uc.cfg.TopN)
		vectorCh <- storeResult{hits: hits, err: err}
	}()

	keyword := <-keywordCh
	vector := <-vectorCh

	if keyword.err != nil && vector.err != nil {
		return nil, fmt.Errorf("both stores failed: keyword: %w; vector: %v", keyword.err, vector.err)
	}
	if keyword.err != nil {
		uc.log.Warn("keyword search degraded", "error", keyword.err)
		uc.degraded("keyword")
		keyword.hits = nil
	}
	if vector.err != nil {
		uc.log.Warn("vector search degraded", "error", vector.err)
		uc.degraded("vector")
		vector.hits = nil
	}

	fused := fusion.ReciprocalRank(keyword.hits, vector.hits, uc.cfg.RRFK)
	return fusion.Trim(fused, topK), nil
}

func (uc *HybridSearchUseCase) degraded(store string) {
	if uc.cfg.DegradedHook != nil {
		uc.cfg.DegradedHook(store)
	}
}
