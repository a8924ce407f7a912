package metadata

import (
	"testing"
	"time"

	"github.com/kirillkom/docindex/internal/core/domain"
)

func TestResolvePrecedenceRequestWins(t *testing.T) {
	tags, err := Resolve(Sources{
		Request:  map[string]string{"tenant": "acme", "doc_type": "contract"},
		Sidecar:  map[string]string{"tenant": "side", "department": "legal"},
		Path:     "/pathco/contracts/2024/doc.pdf",
		Defaults: map[string]string{"language": "en"},
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if tags["tenant"] != "acme" {
		t.Fatalf("expected request tenant to win, got %q", tags["tenant"])
	}
	if tags["dataset"] != "contracts" {
		t.Fatalf("expected dataset from path, got %q", tags["dataset"])
	}
	if tags["department"] != "legal" || tags["language"] != "en" || tags["doc_type"] != "contract" {
		t.Fatalf("merged tags incomplete: %v", tags)
	}
}

func TestResolveSidecarOverridesPath(t *testing.T) {
	tags, err := Resolve(Sources{
		Sidecar:        map[string]string{"dataset": "reports"},
		SidecarPresent: true,
		Path:           "/acme/contracts/doc.pdf",
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if tags["dataset"] != "reports" {
		t.Fatalf("expected sidecar dataset, got %q", tags["dataset"])
	}
}

func TestResolveMissingRequiredTags(t *testing.T) {
	_, err := Resolve(Sources{Path: "flat-file.pdf"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestResolveInvalidConfidentiality(t *testing.T) {
	_, err := Resolve(Sources{
		Request: map[string]string{"tenant": "a", "dataset": "b", "confidentiality": "secret"},
	})
	if !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestResolveNormalizesRequiredTags(t *testing.T) {
	tags, err := Resolve(Sources{
		Request: map[string]string{"tenant": "  ACME ", "dataset": "Contracts"},
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if tags["tenant"] != "acme" || tags["dataset"] != "contracts" {
		t.Fatalf("expected lowercased trimmed tags, got %v", tags)
	}
}

func TestDeriveStableForIdenticalInput(t *testing.T) {
	a, shaA := Derive("/acme/contracts/report.pdf", []byte("same bytes"), "")
	b, shaB := Derive("/acme/contracts/report.pdf", []byte("same bytes"), "")
	if a != b || shaA != shaB {
		t.Fatalf("identity not stable: %s/%s vs %s/%s", a, shaA, b, shaB)
	}
	if got := a[:len("report-")]; got != "report-" {
		t.Fatalf("expected filename-stem prefix, got %q", a)
	}
	if len(a) != len("report-")+8 {
		t.Fatalf("expected 8 hex chars after stem, got %q", a)
	}
}

func TestDeriveExplicitDocIDWins(t *testing.T) {
	id, _ := Derive("/acme/x/report.pdf", []byte("bytes"), "doc-42")
	if id != "doc-42" {
		t.Fatalf("expected explicit id, got %q", id)
	}
}

func TestIdentityFields(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	id, err := Identity("/acme/ds/Report.PDF", []byte("abc"), "", map[string]string{"tenant": "acme"}, now)
	if err != nil {
		t.Fatalf("Identity() error = %v", err)
	}
	if id.Filename != "Report.PDF" || id.FileType != "pdf" || id.FileSize != 3 {
		t.Fatalf("unexpected identity: %+v", id)
	}
	if !id.IngestedAt.Equal(now) {
		t.Fatalf("expected ingested_at %v, got %v", now, id.IngestedAt)
	}
}
