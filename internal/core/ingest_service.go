package core

import (
	"context"
	"fmt"
	"log"

	"github.com/Atmalviya/news-rag-be/internal/store"
)

// Embedder converts text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorStore persists vector records in a named collection.
type VectorStore interface {
	EnsureCollection(ctx context.Context) error
	Upsert(ctx context.Context, records []store.VectorRecord) error
}

// upsertBatchSize bounds the size of a single upsert request.
const upsertBatchSize = 5

// IngestService turns raw articles into stored vector records.
type IngestService struct {
	embedder Embedder
	vectors  VectorStore
}

func NewIngestService(embedder Embedder, vectors VectorStore) *IngestService {
	return &IngestService{embedder: embedder, vectors: vectors}
}

// Ingest embeds the articles and stores them. Embedding is fail-fast: the
// first failure aborts the whole run before anything is written. A storage
// failure mid-run leaves earlier batches persisted; there is no rollback.
func (s *IngestService) Ingest(ctx context.Context, articles []store.Article) error {
	embedded, err := s.embedArticles(ctx, articles)
	if err != nil {
		return err
	}
	log.Printf("Created embeddings for %d articles", len(embedded))
	return s.storeEmbeddings(ctx, embedded)
}

func (s *IngestService) embedArticles(ctx context.Context, articles []store.Article) ([]store.EmbeddedArticle, error) {
	embedded := make([]store.EmbeddedArticle, 0, len(articles))
	for _, article := range articles {
		input := article.Title + "\n\n" + article.Content
		vector, err := s.embedder.Embed(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to embed article %s: %w", article.ID, err)
		}
		embedded = append(embedded, store.EmbeddedArticle{
			Article:   article,
			Embedding: vector,
		})
	}
	return embedded, nil
}

func (s *IngestService) storeEmbeddings(ctx context.Context, articles []store.EmbeddedArticle) error {
	if err := s.vectors.EnsureCollection(ctx); err != nil {
		return err
	}

	var records []store.VectorRecord
	for _, article := range articles {
		records = append(records, store.VectorRecord{
			ID:     article.ID,
			Vector: article.Embedding,
			Payload: store.ArticlePayload{
				ID:          article.ID,
				Title:       article.Title,
				Content:     article.Content,
				Link:        article.Link,
				PublishDate: article.PublishDate,
				Source:      article.Source,
			},
		})
		for _, chunk := range article.Chunks {
			records = append(records, store.VectorRecord{
				ID:     chunk.ID,
				Vector: chunk.Embedding,
				Payload: store.ChunkPayload{
					ID:        chunk.ID,
					ArticleID: article.ID,
					Text:      chunk.Text,
					Title:     article.Title,
					Link:      article.Link,
				},
			})
		}
	}

	batches := (len(records) + upsertBatchSize - 1) / upsertBatchSize
	for i := 0; i < len(records); i += upsertBatchSize {
		end := i + upsertBatchSize
		if end > len(records) {
			end = len(records)
		}
		if err := s.vectors.Upsert(ctx, records[i:end]); err != nil {
			return fmt.Errorf("failed to store batch %d of %d: %w", i/upsertBatchSize+1, batches, err)
		}
		log.Printf("Stored batch %d of %d", i/upsertBatchSize+1, batches)
	}
	log.Printf("Successfully stored %d points", len(records))
	return nil
}
