package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const feedTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
<title>%s</title>
%s
</channel>
</rss>`

func item(title, link, pubDate, description string) string {
	return fmt.Sprintf(`<item><title>%s</title><link>%s</link><pubDate>%s</pubDate><description>%s</description></item>`,
		title, link, pubDate, description)
}

func serveFeed(t *testing.T, channelTitle string, items ...string) *httptest.Server {
	t.Helper()
	body := ""
	for _, it := range items {
		body += it
	}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprintf(w, feedTemplate, channelTitle, body)
	}))
}

func TestFetchArticlesMapsFeedItems(t *testing.T) {
	srv := serveFeed(t, "Example Wire",
		item("Elections held", "https://news.example/1", "Tue, 10 Jun 2025 08:30:00 +0000", "Voters went to the polls."),
	)
	defer srv.Close()

	articles, err := NewFetcher([]string{srv.URL}).FetchArticles(context.Background())
	require.NoError(t, err)
	require.Len(t, articles, 1)

	a := articles[0]
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, "Elections held", a.Title)
	assert.Equal(t, "https://news.example/1", a.Link)
	assert.Equal(t, "Tue, 10 Jun 2025 08:30:00 +0000", a.PublishDate)
	assert.Equal(t, "Voters went to the polls.", a.Content)
	assert.Equal(t, "Example Wire", a.Source)
}

func TestFetchArticlesStableIDs(t *testing.T) {
	srv := serveFeed(t, "Example Wire",
		item("Same story", "https://news.example/1", "Tue, 10 Jun 2025 08:30:00 +0000", "body"),
	)
	defer srv.Close()

	fetcher := NewFetcher([]string{srv.URL})
	first, err := fetcher.FetchArticles(context.Background())
	require.NoError(t, err)
	second, err := fetcher.FetchArticles(context.Background())
	require.NoError(t, err)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID, "re-fetching the same item must yield the same id")
}

func TestFetchArticlesSortsNewestFirst(t *testing.T) {
	srv := serveFeed(t, "Example Wire",
		item("Older", "https://news.example/1", "Mon, 09 Jun 2025 08:00:00 +0000", "old"),
		item("Newer", "https://news.example/2", "Tue, 10 Jun 2025 08:00:00 +0000", "new"),
	)
	defer srv.Close()

	articles, err := NewFetcher([]string{srv.URL}).FetchArticles(context.Background())
	require.NoError(t, err)
	require.Len(t, articles, 2)
	assert.Equal(t, "Newer", articles[0].Title)
	assert.Equal(t, "Older", articles[1].Title)
}

func TestFetchArticlesSkipsBrokenFeed(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer broken.Close()
	good := serveFeed(t, "Example Wire",
		item("Story", "https://news.example/1", "Tue, 10 Jun 2025 08:30:00 +0000", "body"),
	)
	defer good.Close()

	articles, err := NewFetcher([]string{broken.URL, good.URL}).FetchArticles(context.Background())
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "Story", articles[0].Title)
}
