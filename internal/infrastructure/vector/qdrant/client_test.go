package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/kirillkom/docindex/internal/core/domain"
)

func testChunks() []domain.Chunk {
	return []domain.Chunk{
		{DocID: "report-ab12cd34", ChunkID: "0000", Text: "alpha", Tags: map[string]string{"tenant": "acme"}},
		{DocID: "report-ab12cd34", ChunkID: "0001", Text: "bravo", Tags: map[string]string{"tenant": "acme"}},
	}
}

func zeroVectors(n, dim int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		out[i] = make([]float32, dim)
	}
	return out
}

func TestInsertEnsuresCollectionOnce(t *testing.T) {
	var ensureCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/chunks":
			atomic.AddInt32(&ensureCalls, 1)
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/chunks/points":
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, "chunks", 4)
	if err := client.Insert(context.Background(), testChunks(), zeroVectors(2, 4)); err != nil {
		t.Fatalf("first Insert() error = %v", err)
	}
	if err := client.Insert(context.Background(), testChunks(), zeroVectors(2, 4)); err != nil {
		t.Fatalf("second Insert() error = %v", err)
	}
	if got := atomic.LoadInt32(&ensureCalls); got != 1 {
		t.Fatalf("expected ensure collection called once, got %d", got)
	}
}

func TestInsertRejectsVectorCountMismatch(t *testing.T) {
	client := New("http://unused", "chunks", 4)
	err := client.Insert(context.Background(), testChunks(), zeroVectors(1, 4))
	if err == nil || !strings.Contains(err.Error(), "mismatch") {
		t.Fatalf("expected mismatch error, got %v", err)
	}
}

func TestDeleteByDocIDFiltersOnDocID(t *testing.T) {
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/chunks":
			w.WriteHeader(http.StatusConflict)
		case r.Method == http.MethodPost && r.URL.Path == "/collections/chunks/points/delete":
			if r.URL.Query().Get("wait") != "true" {
				t.Errorf("delete must wait for completion")
			}
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			raw, _ := json.Marshal(body)
			gotBody = string(raw)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, "chunks", 4)
	if err := client.DeleteByDocID(context.Background(), "report-ab12cd34"); err != nil {
		t.Fatalf("DeleteByDocID() error = %v", err)
	}
	if !strings.Contains(gotBody, `"value":"report-ab12cd34"`) {
		t.Fatalf("missing doc_id filter: %s", gotBody)
	}
}

func TestCountUsesExactMode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/chunks/points/count" {
			http.NotFound(w, r)
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["exact"] != true {
			t.Errorf("count must be exact, got %v", body["exact"])
		}
		_, _ = w.Write([]byte(`{"result":{"count":5}}`))
	}))
	defer server.Close()

	client := New(server.URL, "chunks", 4)
	count, err := client.Count(context.Background(), "report-ab12cd34")
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 5 {
		t.Fatalf("count = %d, want 5", count)
	}
}

func TestSearchMapsPayloadToHits(t *testing.T) {
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/chunks/points/search" {
			http.NotFound(w, r)
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		raw, _ := json.Marshal(body)
		gotBody = string(raw)
		_, _ = w.Write([]byte(`{"result":[
			{"score":0.91,"payload":{"doc_id":"report-ab12cd34","chunk_id":"0001","text":"bravo"}}
		]}`))
	}))
	defer server.Close()

	client := New(server.URL, "chunks", 4)
	hits, err := client.Search(context.Background(), make([]float32, 4), domain.SearchFilter{
		Tags: map[string]string{"tenant": "acme"},
	}, 50)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 1 || hits[0].DocID != "report-ab12cd34" || hits[0].ChunkID != "0001" {
		t.Fatalf("hits = %+v", hits)
	}
	if !strings.Contains(gotBody, `"key":"tags.tenant"`) {
		t.Fatalf("missing tag filter: %s", gotBody)
	}
}
