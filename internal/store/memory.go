package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemorySessionStore keeps session state in process memory. It mirrors the
// Redis layout (history and createdAt tracked independently) so it can stand
// in for RedisStore in tests and single-process setups.
type MemorySessionStore struct {
	mu        sync.RWMutex
	histories map[string][]Message
	createdAt map[string]int64
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		histories: make(map[string][]Message),
		createdAt: make(map[string]int64),
	}
}

func (s *MemorySessionStore) CreateSession(ctx context.Context) (string, error) {
	sessionID := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.histories[sessionID] = []Message{}
	s.createdAt[sessionID] = time.Now().UnixMilli()
	return sessionID, nil
}

func (s *MemorySessionStore) IsValidSession(ctx context.Context, sessionID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, hasHistory := s.histories[sessionID]
	_, hasCreatedAt := s.createdAt[sessionID]
	return hasHistory && hasCreatedAt, nil
}

func (s *MemorySessionStore) AddMessageToHistory(ctx context.Context, sessionID string, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg.Timestamp = time.Now().UnixMilli()
	s.histories[sessionID] = append(s.histories[sessionID], msg)
	return nil
}

func (s *MemorySessionStore) GetSessionHistory(ctx context.Context, sessionID string) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history, ok := s.histories[sessionID]
	if !ok {
		return []Message{}, nil
	}
	out := make([]Message, len(history))
	copy(out, history)
	return out, nil
}

func (s *MemorySessionStore) ClearSessionHistory(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.histories[sessionID]; ok {
		s.histories[sessionID] = []Message{}
	}
	return nil
}

func (s *MemorySessionStore) CleanupOldSessions(ctx context.Context, maxAgeMinutes int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UnixMilli()
	maxAgeMs := int64(maxAgeMinutes) * 60 * 1000
	cleaned := 0
	for sessionID, createdAt := range s.createdAt {
		if now-createdAt > maxAgeMs {
			delete(s.histories, sessionID)
			delete(s.createdAt, sessionID)
			cleaned++
		}
	}
	return cleaned, nil
}

// MemoryVectorStore is a brute-force cosine-similarity vector store. It backs
// tests and offline runs that have no Qdrant at hand.
type MemoryVectorStore struct {
	mu        sync.RWMutex
	dimension int
	records   map[string]VectorRecord
}

func NewMemoryVectorStore(dimension int) *MemoryVectorStore {
	return &MemoryVectorStore{
		dimension: dimension,
		records:   make(map[string]VectorRecord),
	}
}

func (s *MemoryVectorStore) EnsureCollection(ctx context.Context) error {
	if s.dimension <= 0 {
		return fmt.Errorf("invalid collection dimension %d", s.dimension)
	}
	return nil
}

func (s *MemoryVectorStore) Upsert(ctx context.Context, records []VectorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		if len(rec.Vector) != s.dimension {
			return fmt.Errorf("vector for point %s has dimension %d, collection expects %d", rec.ID, len(rec.Vector), s.dimension)
		}
	}
	for _, rec := range records {
		s.records[rec.ID] = rec
	}
	return nil
}

func (s *MemoryVectorStore) Search(ctx context.Context, vector []float32, limit int) ([]SearchHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hits := make([]SearchHit, 0, len(s.records))
	for _, rec := range s.records {
		hits = append(hits, SearchHit{Payload: rec.Payload, Score: cosineSimilarity(vector, rec.Vector)})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if limit < len(hits) {
		hits = hits[:limit]
	}
	return hits, nil
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, magA, magB float32
	for i := range a {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (float32(math.Sqrt(float64(magA))) * float32(math.Sqrt(float64(magB))))
}
