package config

import "testing"

func TestLoadIncludesRetrievalDefaults(t *testing.T) {
	t.Setenv("SEARCH_TOP_N", "")
	t.Setenv("SEARCH_TOP_K", "")
	t.Setenv("FUSION_RRF_K", "")
	t.Setenv("VECTOR_DIM", "")
	t.Setenv("CHUNK_TARGET_TOKENS", "")
	t.Setenv("CHUNK_OVERLAP_PCT", "")

	cfg := Load()
	if cfg.SearchTopN != 50 {
		t.Fatalf("expected default top n 50, got %d", cfg.SearchTopN)
	}
	if cfg.SearchTopK != 10 {
		t.Fatalf("expected default top k 10, got %d", cfg.SearchTopK)
	}
	if cfg.FusionRRFK != 60 {
		t.Fatalf("expected default rrf k 60, got %d", cfg.FusionRRFK)
	}
	if cfg.VectorDim != 768 {
		t.Fatalf("expected default vector dim 768, got %d", cfg.VectorDim)
	}
	if cfg.ChunkTargetTokens != 1000 || cfg.ChunkOverlapPct != 15 {
		t.Fatalf("expected chunking defaults 1000/15, got %d/%d", cfg.ChunkTargetTokens, cfg.ChunkOverlapPct)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("SEARCH_TOP_N", "80")
	t.Setenv("FUSION_RRF_K", "75")
	t.Setenv("ALLOWED_PREFIXES", "acme/, globex , ")
	t.Setenv("INGEST_RATE_PER_SECOND", "2.5")
	t.Setenv("OPENAPI_VALIDATION", "false")

	cfg := Load()
	if cfg.SearchTopN != 80 {
		t.Fatalf("expected top n 80, got %d", cfg.SearchTopN)
	}
	if cfg.FusionRRFK != 75 {
		t.Fatalf("expected rrf k 75, got %d", cfg.FusionRRFK)
	}
	if len(cfg.AllowedPrefixes) != 2 || cfg.AllowedPrefixes[0] != "acme/" || cfg.AllowedPrefixes[1] != "globex" {
		t.Fatalf("expected trimmed prefix list, got %v", cfg.AllowedPrefixes)
	}
	if cfg.IngestRatePerSecond != 2.5 {
		t.Fatalf("expected ingest rate 2.5, got %v", cfg.IngestRatePerSecond)
	}
	if cfg.OpenAPIValidation {
		t.Fatalf("expected validation disabled")
	}
}

func TestLoadFallsBackOnMalformedNumbers(t *testing.T) {
	t.Setenv("SEARCH_TOP_K", "not-a-number")
	t.Setenv("INGEST_RATE_PER_SECOND", "fast")

	cfg := Load()
	if cfg.SearchTopK != 10 {
		t.Fatalf("expected fallback top k 10, got %d", cfg.SearchTopK)
	}
	if cfg.IngestRatePerSecond != 5 {
		t.Fatalf("expected fallback rate 5, got %v", cfg.IngestRatePerSecond)
	}
}
