package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/kirillkom/docindex/internal/core/domain"
)

type storageFake struct {
	blobs        map[string][]byte
	sidecars     map[string]map[string]string
	sidecarErr   error
	fetchErr     error
	disallowAll  bool
}

func newStorageFake() *storageFake {
	return &storageFake{
		blobs:    map[string][]byte{},
		sidecars: map[string]map[string]string{},
	}
}

func (f *storageFake) Allowed(string) bool { return !f.disallowAll }

func (f *storageFake) Fetch(_ context.Context, location string) ([]byte, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	data, ok := f.blobs[location]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "fetch", errors.New(location))
	}
	return data, nil
}

func (f *storageFake) Sidecar(_ context.Context, location string) (map[string]string, bool, error) {
	if f.sidecarErr != nil {
		return nil, true, f.sidecarErr
	}
	tags, ok := f.sidecars[location]
	return tags, ok, nil
}

type parserFake struct {
	elements []domain.Element
	err      error
}

func (f *parserFake) Parse(context.Context, []byte, string) ([]domain.Element, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.elements, nil
}

// dotSegmenter splits on ". " which is enough for pipeline tests.
type dotSegmenter struct{}

func (dotSegmenter) Segment(text string) []string {
	var out []string
	for _, s := range strings.SplitAfter(text, ". ") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// indexerFake simulates both stores with in-memory row sets keyed the way
// the real stores key them.
type indexerFake struct {
	mu          sync.Mutex
	keywordRows map[string]map[string]domain.Chunk // docID -> chunkID -> chunk
	vectorRows  map[string][]domain.Chunk
	keywordErr  error
	vectorErr   error
	parityErr   error
	calls       []string
}

func newIndexerFake() *indexerFake {
	return &indexerFake{
		keywordRows: map[string]map[string]domain.Chunk{},
		vectorRows:  map[string][]domain.Chunk{},
	}
}

func (f *indexerFake) IndexKeyword(_ context.Context, docID string, chunks []domain.Chunk) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "keyword")
	if f.keywordErr != nil {
		return 0, f.keywordErr
	}
	rows := map[string]domain.Chunk{}
	for _, c := range chunks {
		rows[c.ChunkID] = c
	}
	f.keywordRows[docID] = rows
	return len(rows), nil
}

func (f *indexerFake) IndexVector(_ context.Context, docID string, chunks []domain.Chunk) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "vector")
	if f.vectorErr != nil {
		return 0, f.vectorErr
	}
	f.vectorRows[docID] = append([]domain.Chunk(nil), chunks...)
	return len(chunks), nil
}

func (f *indexerFake) VerifyParity(_ context.Context, docID string) (domain.IndexStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.parityErr != nil {
		return domain.IndexStats{}, f.parityErr
	}
	stats := domain.IndexStats{
		KeywordCount: len(f.keywordRows[docID]),
		VectorCount:  len(f.vectorRows[docID]),
	}
	return stats, nil
}

func (f *indexerFake) keywordChunkIDs(docID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id := range f.keywordRows[docID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type jobStoreFake struct {
	mu   sync.Mutex
	jobs map[string]domain.Job
}

func newJobStoreFake() *jobStoreFake {
	return &jobStoreFake{jobs: map[string]domain.Job{}}
}

func (f *jobStoreFake) Put(_ context.Context, job *domain.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *job
	copied.Stages = append([]domain.StageEntry(nil), job.Stages...)
	f.jobs[job.ID] = copied
	return nil
}

func (f *jobStoreFake) Get(_ context.Context, jobID string) (*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get job", errors.New(jobID))
	}
	return &job, nil
}

type queueFake struct {
	published []domain.IngestMessage
	err       error
}

func (f *queueFake) PublishIngestJob(_ context.Context, msg domain.IngestMessage) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, msg)
	return nil
}

func (f *queueFake) SubscribeIngestJobs(context.Context, func(context.Context, domain.IngestMessage) error) error {
	return nil
}

type keywordSearchFake struct {
	hits []domain.RankedHit
	err  error
}

func (f *keywordSearchFake) BulkUpsert(context.Context, []domain.Chunk) (int, error) { return 0, nil }
func (f *keywordSearchFake) DeleteStale(context.Context, string, []string) error     { return nil }
func (f *keywordSearchFake) Count(context.Context, string) (int, error)              { return 0, nil }

func (f *keywordSearchFake) Search(context.Context, string, domain.SearchFilter, int) ([]domain.RankedHit, error) {
	return f.hits, f.err
}

type vectorSearchFake struct {
	hits []domain.RankedHit
	err  error
}

func (f *vectorSearchFake) DeleteByDocID(context.Context, string) error { return nil }
func (f *vectorSearchFake) Insert(context.Context, []domain.Chunk, [][]float32) error {
	return nil
}
func (f *vectorSearchFake) Count(context.Context, string) (int, error) { return 0, nil }

func (f *vectorSearchFake) Search(context.Context, []float32, domain.SearchFilter, int) ([]domain.RankedHit, error) {
	return f.hits, f.err
}
