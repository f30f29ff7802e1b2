package feed

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"

	"github.com/Atmalviya/news-rag-be/internal/store"
)

// maxArticles caps the snapshot at the newest items across all feeds.
const maxArticles = 50

// Fetcher pulls articles from RSS feeds. A feed that fails to parse is logged
// and skipped rather than failing the whole fetch.
type Fetcher struct {
	parser *gofeed.Parser
	urls   []string
}

func NewFetcher(urls []string) *Fetcher {
	return &Fetcher{
		parser: gofeed.NewParser(),
		urls:   urls,
	}
}

type datedArticle struct {
	article   store.Article
	published time.Time
}

func (f *Fetcher) FetchArticles(ctx context.Context) ([]store.Article, error) {
	var dated []datedArticle
	for _, url := range f.urls {
		parsed, err := f.parser.ParseURLWithContext(url, ctx)
		if err != nil {
			log.Printf("Error fetching feed %s: %v", url, err)
			continue
		}
		log.Printf("Fetched %d items from %s", len(parsed.Items), url)

		source := parsed.Title
		if source == "" {
			source = "Unknown Source"
		}
		for _, item := range parsed.Items {
			var published time.Time
			if item.PublishedParsed != nil {
				published = *item.PublishedParsed
			}
			dated = append(dated, datedArticle{
				article: store.Article{
					ID:          articleID(item.Title, item.Published),
					Title:       item.Title,
					Link:        item.Link,
					PublishDate: item.Published,
					Content:     itemContent(item),
					Source:      source,
				},
				published: published,
			})
		}
	}

	// Newest first; items without a parsable date sort last.
	sort.SliceStable(dated, func(i, j int) bool {
		return dated[i].published.After(dated[j].published)
	})
	if len(dated) > maxArticles {
		dated = dated[:maxArticles]
	}

	articles := make([]store.Article, 0, len(dated))
	for _, d := range dated {
		articles = append(articles, d.article)
	}
	return articles, nil
}

// articleID derives a stable id from the item identity, so re-fetching the
// same item upserts rather than duplicates.
func articleID(title, published string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(title+"|"+published)).String()
}

func itemContent(item *gofeed.Item) string {
	if item.Description != "" {
		return item.Description
	}
	return item.Content
}
