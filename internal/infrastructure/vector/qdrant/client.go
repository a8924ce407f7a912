// Package qdrant implements the vector store over Qdrant's JSON HTTP
// API. The store has no upsert-by-key primitive, so document replacement
// is an unconditional delete-then-insert.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/docindex/internal/core/domain"
)

type Client struct {
	baseURL    string
	collection string
	vectorDim  int
	httpClient *http.Client

	ensureMu sync.Mutex
	ensured  bool
}

func New(baseURL, collection string, vectorDim int) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		vectorDim:  vectorDim,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// DeleteByDocID removes every point carrying the document id. Deleting
// an unknown id is a no-op, which keeps replays safe.
func (c *Client) DeleteByDocID(ctx context.Context, docID string) error {
	if err := c.ensureCollection(ctx); err != nil {
		return err
	}

	reqBody := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": "doc_id", "match": map[string]any{"value": docID}},
			},
		},
	}
	status, body, err := c.do(ctx, http.MethodPost, "/collections/"+c.collection+"/points/delete?wait=true", reqBody)
	if err != nil {
		return err
	}
	if status >= 300 {
		return fmt.Errorf("qdrant delete status %d: %s", status, strings.TrimSpace(string(body)))
	}
	return nil
}

func (c *Client) Insert(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks/vectors mismatch: %d != %d", len(chunks), len(vectors))
	}
	if err := c.ensureCollection(ctx); err != nil {
		return err
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  []float32      `json:"vector"`
		Payload map[string]any `json:"payload"`
	}

	points := make([]point, 0, len(chunks))
	for i, chunk := range chunks {
		points = append(points, point{
			ID:     uuid.NewString(),
			Vector: vectors[i],
			Payload: map[string]any{
				"doc_id":   chunk.DocID,
				"chunk_id": chunk.ChunkID,
				"text":     chunk.Text,
				"tags":     chunk.Tags,
			},
		})
	}

	status, body, err := c.do(ctx, http.MethodPut, "/collections/"+c.collection+"/points?wait=true", map[string]any{"points": points})
	if err != nil {
		return err
	}
	if status >= 300 {
		return fmt.Errorf("qdrant upsert status %d: %s", status, strings.TrimSpace(string(body)))
	}
	return nil
}

func (c *Client) Count(ctx context.Context, docID string) (int, error) {
	reqBody := map[string]any{
		"exact": true,
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": "doc_id", "match": map[string]any{"value": docID}},
			},
		},
	}
	status, body, err := c.do(ctx, http.MethodPost, "/collections/"+c.collection+"/points/count", reqBody)
	if err != nil {
		return 0, err
	}
	if status >= 300 {
		return 0, fmt.Errorf("qdrant count status %d: %s", status, strings.TrimSpace(string(body)))
	}

	var countResp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &countResp); err != nil {
		return 0, fmt.Errorf("decode count response: %w", err)
	}
	return countResp.Result.Count, nil
}

func (c *Client) Search(ctx context.Context, vector []float32, filter domain.SearchFilter, topN int) ([]domain.RankedHit, error) {
	reqBody := map[string]any{
		"vector":       vector,
		"limit":        topN,
		"with_payload": true,
	}
	if len(filter.Tags) > 0 {
		must := make([]map[string]any, 0, len(filter.Tags))
		for key, value := range filter.Tags {
			must = append(must, map[string]any{
				"key":   "tags." + key,
				"match": map[string]any{"value": value},
			})
		}
		reqBody["filter"] = map[string]any{"must": must}
	}

	status, body, err := c.do(ctx, http.MethodPost, "/collections/"+c.collection+"/points/search", reqBody)
	if err != nil {
		return nil, err
	}
	if status >= 300 {
		return nil, fmt.Errorf("qdrant search status %d: %s", status, strings.TrimSpace(string(body)))
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &searchResp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]domain.RankedHit, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, domain.RankedHit{
			DocID:   getStringPayload(r.Payload, "doc_id"),
			ChunkID: getStringPayload(r.Payload, "chunk_id"),
			Text:    getStringPayload(r.Payload, "text"),
			Score:   r.Score,
		})
	}
	return out, nil
}

func (c *Client) ensureCollection(ctx context.Context) error {
	c.ensureMu.Lock()
	if c.ensured {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     c.vectorDim,
			"distance": "Cosine",
		},
	}

	status, body, err := c.do(ctx, http.MethodPut, "/collections/"+c.collection, reqBody)
	if err != nil {
		return err
	}
	// 200/201 for create, 409 if already exists (depends on version/config).
	if status == http.StatusConflict {
		c.markEnsured()
		return nil
	}
	if status >= 300 {
		return fmt.Errorf("qdrant ensure collection status %d: %s", status, strings.TrimSpace(string(body)))
	}
	c.markEnsured()
	return nil
}

func (c *Client) markEnsured() {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensured = true
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
		return 0, nil, fmt.Errorf("qdrant request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("read response body: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
