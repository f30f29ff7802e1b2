package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ArticleFile is the flat JSON snapshot of ingested articles backing the
// /api/articles read path. It is independent of the vector store.
type ArticleFile struct {
	path string
}

func NewArticleFile(path string) *ArticleFile {
	return &ArticleFile{path: path}
}

func (f *ArticleFile) Save(articles []Article) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	data, err := json.MarshalIndent(articles, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode articles: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write articles file: %w", err)
	}
	return nil
}

func (f *ArticleFile) Load() ([]Article, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read articles file: %w", err)
	}
	var articles []Article
	if err := json.Unmarshal(data, &articles); err != nil {
		return nil, fmt.Errorf("failed to decode articles file: %w", err)
	}
	return articles, nil
}
