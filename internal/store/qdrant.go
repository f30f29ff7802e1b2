package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

const (
	payloadTypeArticle = "article"
	payloadTypeChunk   = "chunk"
)

// QdrantStore talks to a Qdrant instance over its REST API. It assumes cosine
// distance and creates the collection on demand.
type QdrantStore struct {
	url        string
	collection string
	dimension  int
	client     *http.Client
}

func NewQdrantStore(url, collection string, dimension int) *QdrantStore {
	return &QdrantStore{
		url:        url,
		collection: collection,
		dimension:  dimension,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

// EnsureCollection creates the collection if it does not exist yet. Safe to
// call repeatedly; an existing collection with the same schema is left alone.
func (s *QdrantStore) EnsureCollection(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/collections/%s", s.url, s.collection), nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", s.collection, err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}
	if resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("failed to check collection %s: %s", s.collection, resp.Status)
	}

	log.Printf("Creating collection %s...", s.collection)
	body := map[string]any{
		"vectors": map[string]any{
			"size":     s.dimension,
			"distance": "Cosine",
		},
	}
	if err := s.putJSON(ctx, fmt.Sprintf("%s/collections/%s", s.url, s.collection), body); err != nil {
		return fmt.Errorf("failed to create collection %s: %w", s.collection, err)
	}
	log.Printf("Collection %s created successfully", s.collection)
	return nil
}

// Upsert writes the given records, overwriting any existing point with the
// same id. Every vector must match the collection dimension.
func (s *QdrantStore) Upsert(ctx context.Context, records []VectorRecord) error {
	points := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		if len(rec.Vector) != s.dimension {
			return fmt.Errorf("vector for point %s has dimension %d, collection expects %d", rec.ID, len(rec.Vector), s.dimension)
		}
		payload, err := marshalPayload(rec.Payload)
		if err != nil {
			return err
		}
		points = append(points, map[string]any{
			"id":      rec.ID,
			"vector":  rec.Vector,
			"payload": payload,
		})
	}
	body := map[string]any{"points": points}
	if err := s.putJSON(ctx, fmt.Sprintf("%s/collections/%s/points?wait=true", s.url, s.collection), body); err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}
	return nil
}

// Search returns the limit nearest points by cosine similarity, payloads
// included, vectors omitted. Hits arrive in descending score order.
func (s *QdrantStore) Search(ctx context.Context, vector []float32, limit int) ([]SearchHit, error) {
	body := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
		"with_vectors": false,
	}
	var out struct {
		Result []struct {
			Score   float32         `json:"score"`
			Payload json.RawMessage `json:"payload"`
		} `json:"result"`
	}
	if err := s.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/search", s.url, s.collection), body, &out); err != nil {
		return nil, fmt.Errorf("failed to search vector database: %w", err)
	}

	hits := make([]SearchHit, 0, len(out.Result))
	for _, r := range out.Result {
		payload, err := unmarshalPayload(r.Payload)
		if err != nil {
			return nil, err
		}
		hits = append(hits, SearchHit{Payload: payload, Score: r.Score})
	}
	return hits, nil
}

func marshalPayload(p Payload) (json.RawMessage, error) {
	switch v := p.(type) {
	case ArticlePayload:
		return json.Marshal(struct {
			Type string `json:"type"`
			ArticlePayload
		}{payloadTypeArticle, v})
	case ChunkPayload:
		return json.Marshal(struct {
			Type string `json:"type"`
			ChunkPayload
		}{payloadTypeChunk, v})
	default:
		return nil, fmt.Errorf("unknown payload kind %T", p)
	}
}

func unmarshalPayload(data json.RawMessage) (Payload, error) {
	var kind struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &kind); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	switch kind.Type {
	case payloadTypeArticle:
		var p ArticlePayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to decode article payload: %w", err)
		}
		return p, nil
	case payloadTypeChunk:
		var p ChunkPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to decode chunk payload: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown payload type %q", kind.Type)
	}
}

func (s *QdrantStore) putJSON(ctx context.Context, url string, body any) error {
	return s.doJSON(ctx, http.MethodPut, url, body, nil)
}

func (s *QdrantStore) postJSON(ctx context.Context, url string, body any, out any) error {
	return s.doJSON(ctx, http.MethodPost, url, body, out)
}

func (s *QdrantStore) doJSON(ctx context.Context, method, url string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("qdrant %s %s failed: %s: %s", method, url, resp.Status, bytes.TrimSpace(detail))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}
