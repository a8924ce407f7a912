package usecase

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/kirillkom/docindex/internal/core/chunking"
	"github.com/kirillkom/docindex/internal/core/domain"
)

func newProcessUC(storage *storageFake, parser *parserFake, indexer *indexerFake, jobs *jobStoreFake) *ProcessJobUseCase {
	chunker := chunking.New(chunking.Config{TargetTokens: 40}, dotSegmenter{})
	return NewProcessJobUseCase(storage, parser, chunker, indexer, jobs, map[string]string{"language": "en"})
}

func narrative(n int) []domain.Element {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = strings.Repeat("word ", 10) + "sentence ends."
	}
	return []domain.Element{{Kind: domain.ElementParagraph, Text: strings.Join(parts, " "), Page: 1}}
}

func TestProcessJobSuccessRecordsAllStages(t *testing.T) {
	storage := newStorageFake()
	storage.blobs["acme/reports/q3.txt"] = []byte("file bytes")
	indexer := newIndexerFake()
	jobs := newJobStoreFake()
	uc := newProcessUC(storage, &parserFake{elements: narrative(8)}, indexer, jobs)

	msg := domain.IngestMessage{JobID: "job-1", SourceLocation: "acme/reports/q3.txt"}
	if err := uc.ProcessJob(context.Background(), msg); err != nil {
		t.Fatalf("ProcessJob() error = %v", err)
	}

	job, err := jobs.Get(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("job missing: %v", err)
	}
	if job.State != domain.JobDone {
		t.Fatalf("state = %s, want done (error: %s)", job.State, job.Error)
	}
	wantStages := []string{"downloading", "parsing", "normalizing", "chunking", "indexing_keyword", "indexing_vector"}
	var gotStages []string
	for _, s := range job.Stages {
		gotStages = append(gotStages, s.Name)
	}
	if !reflect.DeepEqual(gotStages, wantStages) {
		t.Fatalf("stages = %v, want %v", gotStages, wantStages)
	}
	if job.DocID == "" || !strings.HasPrefix(job.DocID, "q3-") {
		t.Fatalf("derived doc id = %q", job.DocID)
	}
	if got := indexer.calls; len(got) != 2 || got[0] != "keyword" || got[1] != "vector" {
		t.Fatalf("store write order = %v, want keyword before vector", got)
	}
}

func TestProcessJobDerivesTenantAndDatasetFromPath(t *testing.T) {
	storage := newStorageFake()
	storage.blobs["acme/contracts/nda.txt"] = []byte("content")
	indexer := newIndexerFake()
	jobs := newJobStoreFake()
	uc := newProcessUC(storage, &parserFake{elements: narrative(2)}, indexer, jobs)

	if err := uc.ProcessJob(context.Background(), domain.IngestMessage{
		JobID: "job-1", SourceLocation: "acme/contracts/nda.txt",
	}); err != nil {
		t.Fatalf("ProcessJob() error = %v", err)
	}

	job, _ := jobs.Get(context.Background(), "job-1")
	rows := indexer.keywordRows[job.DocID]
	if len(rows) == 0 {
		t.Fatalf("no keyword rows indexed")
	}
	for _, c := range rows {
		if c.Tags["tenant"] != "acme" || c.Tags["dataset"] != "contracts" {
			t.Fatalf("chunk tags = %v", c.Tags)
		}
		if c.Tags["language"] != "en" {
			t.Fatalf("default tag missing: %v", c.Tags)
		}
	}
}

func TestProcessJobFailsOnMissingRequiredTags(t *testing.T) {
	storage := newStorageFake()
	storage.blobs["flat.txt"] = []byte("content")
	jobs := newJobStoreFake()
	uc := newProcessUC(storage, &parserFake{}, newIndexerFake(), jobs)

	err := uc.ProcessJob(context.Background(), domain.IngestMessage{JobID: "job-1", SourceLocation: "flat.txt"})
	if !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	job, _ := jobs.Get(context.Background(), "job-1")
	if job.State != domain.JobFailed || job.FailedStage != "downloading" || job.ErrorKind != "validation" {
		t.Fatalf("failure not recorded: %+v", job)
	}
}

func TestProcessJobFailsOnMissingBlob(t *testing.T) {
	jobs := newJobStoreFake()
	uc := newProcessUC(newStorageFake(), &parserFake{}, newIndexerFake(), jobs)

	err := uc.ProcessJob(context.Background(), domain.IngestMessage{JobID: "job-1", SourceLocation: "a/b/missing.txt"})
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	job, _ := jobs.Get(context.Background(), "job-1")
	if job.ErrorKind != "not_found" {
		t.Fatalf("error kind = %s", job.ErrorKind)
	}
}

func TestProcessJobFailsOnParseError(t *testing.T) {
	storage := newStorageFake()
	storage.blobs["a/b/doc.txt"] = []byte("content")
	jobs := newJobStoreFake()
	parseErr := domain.WrapError(domain.ErrParse, "parse", context.DeadlineExceeded)
	uc := newProcessUC(storage, &parserFake{err: parseErr}, newIndexerFake(), jobs)

	err := uc.ProcessJob(context.Background(), domain.IngestMessage{JobID: "job-1", SourceLocation: "a/b/doc.txt"})
	if !domain.IsKind(err, domain.ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
	job, _ := jobs.Get(context.Background(), "job-1")
	if job.FailedStage != "parsing" {
		t.Fatalf("failed stage = %s", job.FailedStage)
	}
}

func TestProcessJobSurfacesParityViolation(t *testing.T) {
	storage := newStorageFake()
	storage.blobs["a/b/doc.txt"] = []byte("content")
	jobs := newJobStoreFake()
	indexer := newIndexerFake()
	indexer.parityErr = domain.WrapError(domain.ErrPartialIndex, "verify parity", context.Canceled)
	uc := newProcessUC(storage, &parserFake{elements: narrative(2)}, indexer, jobs)

	err := uc.ProcessJob(context.Background(), domain.IngestMessage{JobID: "job-1", SourceLocation: "a/b/doc.txt"})
	if !domain.IsKind(err, domain.ErrPartialIndex) {
		t.Fatalf("expected ErrPartialIndex, got %v", err)
	}
	job, _ := jobs.Get(context.Background(), "job-1")
	if job.State != domain.JobFailed || job.ErrorKind != "partial_index" {
		t.Fatalf("parity violation not surfaced: %+v", job)
	}
}

func TestProcessJobReplayConverges(t *testing.T) {
	storage := newStorageFake()
	storage.blobs["acme/ds/doc.txt"] = []byte("stable content")
	indexer := newIndexerFake()
	jobs := newJobStoreFake()
	uc := newProcessUC(storage, &parserFake{elements: narrative(8)}, indexer, jobs)

	msg := domain.IngestMessage{JobID: "job-1", SourceLocation: "acme/ds/doc.txt"}
	if err := uc.ProcessJob(context.Background(), msg); err != nil {
		t.Fatalf("first delivery error = %v", err)
	}
	job, _ := jobs.Get(context.Background(), "job-1")
	firstIDs := indexer.keywordChunkIDs(job.DocID)
	firstVec := len(indexer.vectorRows[job.DocID])

	// Redelivery of the identical message must converge to identical rows.
	if err := uc.ProcessJob(context.Background(), msg); err != nil {
		t.Fatalf("redelivery error = %v", err)
	}
	if got := indexer.keywordChunkIDs(job.DocID); !reflect.DeepEqual(got, firstIDs) {
		t.Fatalf("keyword rows diverged after replay: %v vs %v", got, firstIDs)
	}
	if got := len(indexer.vectorRows[job.DocID]); got != firstVec {
		t.Fatalf("vector rows diverged after replay: %d vs %d", got, firstVec)
	}
	job, _ = jobs.Get(context.Background(), "job-1")
	if job.State != domain.JobDone {
		t.Fatalf("replayed job state = %s", job.State)
	}
}

func TestProcessJobShrinkingChunkSetLeavesNoOrphans(t *testing.T) {
	storage := newStorageFake()
	storage.blobs["acme/ds/doc.txt"] = []byte("v1")
	indexer := newIndexerFake()
	jobs := newJobStoreFake()
	parser := &parserFake{elements: narrative(30)}
	uc := newProcessUC(storage, parser, indexer, jobs)

	msg := domain.IngestMessage{JobID: "job-1", SourceLocation: "acme/ds/doc.txt", DocID: "doc-fixed"}
	if err := uc.ProcessJob(context.Background(), msg); err != nil {
		t.Fatalf("first ingest error = %v", err)
	}
	before := len(indexer.keywordChunkIDs("doc-fixed"))
	if before < 2 {
		t.Fatalf("expected multiple chunks initially, got %d", before)
	}

	parser.elements = narrative(2)
	msg.JobID = "job-2"
	if err := uc.ProcessJob(context.Background(), msg); err != nil {
		t.Fatalf("re-ingest error = %v", err)
	}
	after := indexer.keywordChunkIDs("doc-fixed")
	if len(after) >= before {
		t.Fatalf("chunk set did not shrink: %d -> %d", before, len(after))
	}
	if got := len(indexer.vectorRows["doc-fixed"]); got != len(after) {
		t.Fatalf("store counts diverged: keyword %d vector %d", len(after), got)
	}
	for i, id := range after {
		if want := []rune(after[i]); len(want) != 4 {
			t.Fatalf("chunk id %q not zero-padded to width 4", id)
		}
	}
}

func TestProcessJobEmptyDocumentIsValid(t *testing.T) {
	storage := newStorageFake()
	storage.blobs["acme/ds/empty.txt"] = []byte{}
	jobs := newJobStoreFake()
	uc := newProcessUC(storage, &parserFake{}, newIndexerFake(), jobs)

	if err := uc.ProcessJob(context.Background(), domain.IngestMessage{
		JobID: "job-1", SourceLocation: "acme/ds/empty.txt",
	}); err != nil {
		t.Fatalf("empty document should succeed, got %v", err)
	}
	job, _ := jobs.Get(context.Background(), "job-1")
	if job.State != domain.JobDone {
		t.Fatalf("state = %s", job.State)
	}
}
