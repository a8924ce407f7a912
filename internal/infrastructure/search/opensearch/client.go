// Package opensearch is a thin JSON/HTTP client for the keyword store.
// It talks to a versioned physical index through a stable alias so the
// mapping can be rebuilt without touching readers or writers.
package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/docindex/internal/core/domain"
)

type Client struct {
	baseURL    string
	index      string
	alias      string
	httpClient *http.Client
}

func New(baseURL, index, alias string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		index:      index,
		alias:      alias,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// EnsureIndexAndAlias creates the physical index with its mapping and
// points the read/write alias at it. Safe to call from every startup.
func (c *Client) EnsureIndexAndAlias(ctx context.Context) error {
	mapping := map[string]any{
		"settings": map[string]any{
			"number_of_shards":   1,
			"number_of_replicas": 0,
		},
		"mappings": map[string]any{
			"dynamic": false,
			"properties": map[string]any{
				"doc_id":       map[string]any{"type": "keyword"},
				"chunk_id":     map[string]any{"type": "keyword"},
				"text":         map[string]any{"type": "text"},
				"is_table":     map[string]any{"type": "boolean"},
				"page_start":   map[string]any{"type": "integer"},
				"page_end":     map[string]any{"type": "integer"},
				"section_path": map[string]any{"type": "keyword"},
				"tokens_est":   map[string]any{"type": "integer"},
				"sha256":       map[string]any{"type": "keyword"},
				"tags":         map[string]any{"type": "object", "dynamic": true},
			},
		},
	}

	status, body, err := c.do(ctx, http.MethodPut, "/"+c.index, mapping)
	if err != nil {
		return err
	}
	if status >= 300 && !strings.Contains(string(body), "resource_already_exists_exception") {
		return fmt.Errorf("opensearch create index status %d: %s", status, strings.TrimSpace(string(body)))
	}

	aliases := map[string]any{
		"actions": []map[string]any{
			{"add": map[string]any{"index": c.index, "alias": c.alias}},
		},
	}
	status, body, err = c.do(ctx, http.MethodPost, "/_aliases", aliases)
	if err != nil {
		return err
	}
	if status >= 300 {
		return fmt.Errorf("opensearch alias status %d: %s", status, strings.TrimSpace(string(body)))
	}
	return nil
}

// BulkUpsert writes every chunk under its stable record id, so replays
// overwrite rather than duplicate. The bulk request refreshes the index
// because parity counting runs immediately afterwards.
func (c *Client) BulkUpsert(ctx context.Context, chunks []domain.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, chunk := range chunks {
		action := map[string]any{
			"index": map[string]any{"_index": c.alias, "_id": chunk.Key()},
		}
		if err := enc.Encode(action); err != nil {
			return 0, fmt.Errorf("encode bulk action: %w", err)
		}
		record := map[string]any{
			"doc_id":       chunk.DocID,
			"chunk_id":     chunk.ChunkID,
			"text":         chunk.Text,
			"is_table":     chunk.IsTable,
			"page_start":   chunk.PageStart,
			"page_end":     chunk.PageEnd,
			"section_path": chunk.SectionPath,
			"tokens_est":   chunk.TokensEst,
			"sha256":       chunk.SHA256,
			"tags":         chunk.Tags,
		}
		if err := enc.Encode(record); err != nil {
			return 0, fmt.Errorf("encode bulk record: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/_bulk?refresh=true", &buf)
	if err != nil {
		return 0, fmt.Errorf("create bulk request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-ndjson")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("opensearch bulk request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return 0, fmt.Errorf("opensearch bulk status: %s", resp.Status)
	}

	var bulkResp struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			Status int    `json:"status"`
			Error  any    `json:"error"`
			ID     string `json:"_id"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&bulkResp); err != nil {
		return 0, fmt.Errorf("decode bulk response: %w", err)
	}
	if bulkResp.Errors {
		for _, item := range bulkResp.Items {
			for _, res := range item {
				if res.Status >= 300 {
					return 0, fmt.Errorf("opensearch bulk item %s status %d", res.ID, res.Status)
				}
			}
		}
		return 0, fmt.Errorf("opensearch bulk reported errors")
	}
	return len(chunks), nil
}

// DeleteStale removes every record of docID whose id is not in keep.
// With an empty keep list it clears the document entirely.
func (c *Client) DeleteStale(ctx context.Context, docID string, keep []string) error {
	boolQuery := map[string]any{
		"filter": []map[string]any{
			{"term": map[string]any{"doc_id": docID}},
		},
	}
	if len(keep) > 0 {
		boolQuery["must_not"] = []map[string]any{
			{"ids": map[string]any{"values": keep}},
		}
	}
	body := map[string]any{"query": map[string]any{"bool": boolQuery}}

	status, respBody, err := c.do(ctx, http.MethodPost, "/"+c.alias+"/_delete_by_query?refresh=true", body)
	if err != nil {
		return err
	}
	if status >= 300 {
		return fmt.Errorf("opensearch delete stale status %d: %s", status, strings.TrimSpace(string(respBody)))
	}
	return nil
}

func (c *Client) Count(ctx context.Context, docID string) (int, error) {
	body := map[string]any{
		"query": map[string]any{"term": map[string]any{"doc_id": docID}},
	}
	status, respBody, err := c.do(ctx, http.MethodPost, "/"+c.alias+"/_count", body)
	if err != nil {
		return 0, err
	}
	if status >= 300 {
		return 0, fmt.Errorf("opensearch count status %d: %s", status, strings.TrimSpace(string(respBody)))
	}

	var countResp struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(respBody, &countResp); err != nil {
		return 0, fmt.Errorf("decode count response: %w", err)
	}
	return countResp.Count, nil
}

func (c *Client) Search(ctx context.Context, query string, filter domain.SearchFilter, topN int) ([]domain.RankedHit, error) {
	boolQuery := map[string]any{
		"must": []map[string]any{
			{"match": map[string]any{"text": query}},
		},
	}
	if len(filter.Tags) > 0 {
		filters := make([]map[string]any, 0, len(filter.Tags))
		for key, value := range filter.Tags {
			filters = append(filters, map[string]any{
				"term": map[string]any{"tags." + key: value},
			})
		}
		boolQuery["filter"] = filters
	}
	body := map[string]any{
		"size":  topN,
		"query": map[string]any{"bool": boolQuery},
	}

	status, respBody, err := c.do(ctx, http.MethodPost, "/"+c.alias+"/_search", body)
	if err != nil {
		return nil, err
	}
	if status >= 300 {
		return nil, fmt.Errorf("opensearch search status %d: %s", status, strings.TrimSpace(string(respBody)))
	}

	var searchResp struct {
		Hits struct {
			Hits []struct {
				Score  float64 `json:"_score"`
				Source struct {
					DocID   string `json:"doc_id"`
					ChunkID string `json:"chunk_id"`
					Text    string `json:"text"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.Unmarshal(respBody, &searchResp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]domain.RankedHit, 0, len(searchResp.Hits.Hits))
	for _, hit := range searchResp.Hits.Hits {
		out = append(out, domain.RankedHit{
			DocID:   hit.Source.DocID,
			ChunkID: hit.Source.ChunkID,
			Text:    hit.Source.Text,
			Score:   hit.Score,
		})
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("opensearch request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("read response body: %w", err)
	}
	return resp.StatusCode, respBody, nil
}
