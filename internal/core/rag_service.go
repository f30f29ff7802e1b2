package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/Atmalviya/news-rag-be/internal/store"
)

// DefaultTopK is the number of passages retrieved for a chat query.
const DefaultTopK = 5

// VectorSearcher answers nearest-neighbor queries by cosine similarity.
type VectorSearcher interface {
	Search(ctx context.Context, vector []float32, limit int) ([]store.SearchHit, error)
}

// RetrievalResult pairs the formatted context block with the deduplicated
// citation list. The n-th article is the one referenced as [n] in Context.
type RetrievalResult struct {
	Context  string
	Articles []store.CitedArticle
}

// RAGService retrieves passages relevant to a query. The embedder must be the
// same one used at ingestion time; mixing embedding spaces breaks similarity.
type RAGService struct {
	embedder Embedder
	vectors  VectorSearcher
}

func NewRAGService(embedder Embedder, vectors VectorSearcher) *RAGService {
	return &RAGService{embedder: embedder, vectors: vectors}
}

// Retrieve embeds the query, fetches the topK nearest passages and assembles
// the numbered context block plus citation list. The store's score ordering is
// trusted as-is. topK <= 0 yields an empty result, not an error.
func (s *RAGService) Retrieve(ctx context.Context, query string, topK int) (*RetrievalResult, error) {
	if topK <= 0 {
		return &RetrievalResult{Articles: []store.CitedArticle{}}, nil
	}

	queryEmbedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	hits, err := s.vectors.Search(ctx, queryEmbedding, topK)
	if err != nil {
		return nil, fmt.Errorf("failed to search for relevant passages: %w", err)
	}

	return &RetrievalResult{
		Context:  formatRetrievedContext(hits),
		Articles: extractUniqueArticles(hits),
	}, nil
}

// formatRetrievedContext numbers each hit in store order; the numbers line up
// with the citation legend built from extractUniqueArticles.
func formatRetrievedContext(hits []store.SearchHit) string {
	lines := make([]string, 0, len(hits))
	for i, hit := range hits {
		switch p := hit.Payload.(type) {
		case store.ArticlePayload:
			lines = append(lines, fmt.Sprintf("[%d] Article: %q\n%s\n", i+1, p.Title, p.Content))
		case store.ChunkPayload:
			lines = append(lines, fmt.Sprintf("[%d] From article %q:\n%s\n", i+1, p.Title, p.Text))
		}
	}
	return strings.Join(lines, "\n")
}

// extractUniqueArticles deduplicates hits into a citation list keyed by the
// owning article id: a chunk cites its parent article, an article cites
// itself. First hit per id wins; hits with neither title nor link cannot be
// cited and are dropped.
func extractUniqueArticles(hits []store.SearchHit) []store.CitedArticle {
	seen := make(map[string]bool)
	articles := make([]store.CitedArticle, 0, len(hits))
	for _, hit := range hits {
		var cited store.CitedArticle
		switch p := hit.Payload.(type) {
		case store.ArticlePayload:
			cited = store.CitedArticle{
				ID:          p.ID,
				Title:       p.Title,
				Link:        p.Link,
				Source:      p.Source,
				PublishDate: p.PublishDate,
			}
		case store.ChunkPayload:
			cited = store.CitedArticle{
				ID:    p.ArticleID,
				Title: p.Title,
				Link:  p.Link,
			}
		default:
			continue
		}
		if seen[cited.ID] {
			continue
		}
		if cited.Title == "" && cited.Link == "" {
			continue
		}
		if cited.Source == "" {
			cited.Source = "Unknown Source"
		}
		seen[cited.ID] = true
		articles = append(articles, cited)
	}
	return articles
}
