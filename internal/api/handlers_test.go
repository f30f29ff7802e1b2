package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Atmalviya/news-rag-be/internal/core"
	"github.com/Atmalviya/news-rag-be/internal/store"
)

// keywordEmbedder embeds any text mentioning elections next to the seeded
// election article and everything else orthogonal to it.
type keywordEmbedder struct{}

func (keywordEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.Contains(strings.ToLower(text), "election") || strings.Contains(strings.ToLower(text), "happened") {
		return []float32{1, 0}, nil
	}
	return []float32{0, 1}, nil
}

type stubSynthesizer struct {
	answer string
}

func (s stubSynthesizer) Synthesize(ctx context.Context, query, contextBlock string, citedArticles []store.CitedArticle) (string, error) {
	return s.answer, nil
}

type testEnv struct {
	router   http.Handler
	sessions *store.MemorySessionStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	vectors := store.NewMemoryVectorStore(2)
	ctx := context.Background()
	require.NoError(t, vectors.EnsureCollection(ctx))
	require.NoError(t, vectors.Upsert(ctx, []store.VectorRecord{{
		ID:     "a1",
		Vector: []float32{1, 0},
		Payload: store.ArticlePayload{
			ID:          "a1",
			Title:       "Elections held nationwide",
			Content:     "Voters went to the polls today.",
			Link:        "https://news.example/elections",
			PublishDate: "Tue, 10 Jun 2025 08:30:00 +0000",
			Source:      "Example News",
		},
	}}))

	sessions := store.NewMemorySessionStore()
	ragService := core.NewRAGService(keywordEmbedder{}, vectors)
	chatService := core.NewChatService(sessions, ragService, stubSynthesizer{answer: "Here is the answer [1]."})
	chatService.TokenDelay = 0

	articleFile := store.NewArticleFile(filepath.Join(t.TempDir(), "articles.json"))
	require.NoError(t, articleFile.Save([]store.Article{{
		ID:          "a1",
		Title:       "Elections held nationwide",
		Link:        "https://news.example/elections",
		PublishDate: "Tue, 10 Jun 2025 08:30:00 +0000",
		Content:     strings.Repeat("Voters went to the polls today. ", 10),
		Source:      "Example News",
	}}))

	return &testEnv{
		router:   NewRouter(NewAPIHandler(chatService, articleFile)),
		sessions: sessions,
	}
}

func (e *testEnv) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func (e *testEnv) createSession(t *testing.T) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/session")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success   bool   `json:"success"`
		SessionID string `json:"sessionId"`
		Message   string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.NotEmpty(t, resp.SessionID)
	assert.Equal(t, "New session created", resp.Message)
	return resp.SessionID
}

type sseEvent struct {
	name string
	data string
}

func parseSSE(t *testing.T, body string) []sseEvent {
	t.Helper()
	var events []sseEvent
	for _, block := range strings.Split(strings.TrimSpace(body), "\n\n") {
		var ev sseEvent
		for _, line := range strings.Split(block, "\n") {
			switch {
			case strings.HasPrefix(line, "event: "):
				ev.name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				ev.data = strings.TrimPrefix(line, "data: ")
			}
		}
		if ev.data != "" {
			events = append(events, ev)
		}
	}
	return events
}

func TestChatEndToEndStream(t *testing.T) {
	env := newTestEnv(t)
	sessionID := env.createSession(t)

	rec := env.do(t, http.MethodGet, "/api/chat?sessionId="+sessionID+"&message=What+happened+today%3F")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	events := parseSSE(t, rec.Body.String())
	require.NotEmpty(t, events)

	var tokens []string
	var sourcesEvent, completeEvent *sseEvent
	for i := range events {
		switch events[i].name {
		case "":
			var chunk struct {
				Chunk string `json:"chunk"`
			}
			require.NoError(t, json.Unmarshal([]byte(events[i].data), &chunk))
			tokens = append(tokens, chunk.Chunk)
		case "sources":
			sourcesEvent = &events[i]
		case "complete":
			completeEvent = &events[i]
		default:
			t.Fatalf("unexpected event %q", events[i].name)
		}
	}

	assert.Equal(t, "Here is the answer [1].", strings.Join(tokens, " "))

	require.NotNil(t, sourcesEvent)
	var sources struct {
		Sources []store.CitedArticle `json:"sources"`
	}
	require.NoError(t, json.Unmarshal([]byte(sourcesEvent.data), &sources))
	require.Len(t, sources.Sources, 1)
	assert.Equal(t, "a1", sources.Sources[0].ID)
	assert.Equal(t, "Elections held nationwide", sources.Sources[0].Title)

	require.NotNil(t, completeEvent)
	assert.JSONEq(t, `{"success":true}`, completeEvent.data)

	// Order: all chunks, then sources, then complete.
	assert.Equal(t, "sources", events[len(events)-2].name)
	assert.Equal(t, "complete", events[len(events)-1].name)
}

func TestChatMissingMessageEmitsSingleErrorEvent(t *testing.T) {
	env := newTestEnv(t)
	sessionID := env.createSession(t)

	rec := env.do(t, http.MethodGet, "/api/chat?sessionId="+sessionID)
	events := parseSSE(t, rec.Body.String())
	require.Len(t, events, 1)
	assert.Equal(t, "error", events[0].name)
	assert.JSONEq(t, `{"message":"Invalid message format"}`, events[0].data)

	// No history mutation happened.
	hist := env.do(t, http.MethodGet, "/api/session/"+sessionID+"/history")
	var resp struct {
		History []store.Message `json:"history"`
	}
	require.NoError(t, json.Unmarshal(hist.Body.Bytes(), &resp))
	assert.Empty(t, resp.History)
}

func TestChatUnknownSessionEmitsErrorEvent(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/chat?sessionId=missing&message=hi")
	events := parseSSE(t, rec.Body.String())
	require.Len(t, events, 1)
	assert.Equal(t, "error", events[0].name)
	assert.JSONEq(t, `{"message":"Session not found"}`, events[0].data)
}

func TestSessionHistoryRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	sessionID := env.createSession(t)

	rec := env.do(t, http.MethodGet, "/api/chat?sessionId="+sessionID+"&message=What+happened+today%3F")
	require.Equal(t, http.StatusOK, rec.Code)

	hist := env.do(t, http.MethodGet, "/api/session/"+sessionID+"/history")
	require.Equal(t, http.StatusOK, hist.Code)

	var resp struct {
		Success bool            `json:"success"`
		History []store.Message `json:"history"`
	}
	require.NoError(t, json.Unmarshal(hist.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Len(t, resp.History, 2)
	assert.Equal(t, "user", resp.History[0].Role)
	assert.Equal(t, "assistant", resp.History[1].Role)
	require.Len(t, resp.History[1].Sources, 1)
}

func TestSessionHistoryUnknownSessionIs404(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/session/missing/history")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"Session not found"}`, rec.Body.String())
}

func TestDeleteHistoryClearsAndIs404ForUnknown(t *testing.T) {
	env := newTestEnv(t)
	sessionID := env.createSession(t)

	env.do(t, http.MethodGet, "/api/chat?sessionId="+sessionID+"&message=What+happened+today%3F")

	rec := env.do(t, http.MethodDelete, "/api/session/"+sessionID+"/history")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"message":"Session history cleared"}`, rec.Body.String())

	hist := env.do(t, http.MethodGet, "/api/session/"+sessionID+"/history")
	var resp struct {
		History []store.Message `json:"history"`
	}
	require.NoError(t, json.Unmarshal(hist.Body.Bytes(), &resp))
	assert.Empty(t, resp.History)

	missing := env.do(t, http.MethodDelete, "/api/session/missing/history")
	require.Equal(t, http.StatusNotFound, missing.Code)
}

func TestListArticlesReturnsSnippets(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/articles")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success  bool `json:"success"`
		Articles []struct {
			ID      string `json:"id"`
			Title   string `json:"title"`
			Snippet string `json:"snippet"`
		} `json:"articles"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Len(t, resp.Articles, 1)
	assert.Equal(t, "a1", resp.Articles[0].ID)
	assert.True(t, strings.HasSuffix(resp.Articles[0].Snippet, "..."))
	assert.LessOrEqual(t, len(resp.Articles[0].Snippet), 153)
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
