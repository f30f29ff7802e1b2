package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Atmalviya/news-rag-be/internal/core"
	"github.com/Atmalviya/news-rag-be/internal/store"
)

type APIHandler struct {
	chatService *core.ChatService
	articles    *store.ArticleFile
}

func NewAPIHandler(cs *core.ChatService, articles *store.ArticleFile) *APIHandler {
	return &APIHandler{chatService: cs, articles: articles}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "message": message})
}

func (h *APIHandler) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	sessionID, err := h.chatService.CreateSession(r.Context())
	if err != nil {
		log.Printf("Error creating session: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"sessionId": sessionID,
		"message":   "New session created",
	})
}

func (h *APIHandler) GetSessionHistoryHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	history, err := h.chatService.SessionHistory(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, core.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		log.Printf("Error fetching history for session %s: %v", sessionID, err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch session history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "history": history})
}

func (h *APIHandler) ClearSessionHistoryHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	err := h.chatService.ClearHistory(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, core.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		log.Printf("Error clearing history for session %s: %v", sessionID, err)
		writeError(w, http.StatusInternalServerError, "Failed to clear session history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Session history cleared"})
}

// ChatHandler streams an answer over SSE: data events carrying one token
// each, then a sources event, then complete. Any failure ends the stream with
// a single error event; the connection is never left hanging.
func (h *APIHandler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	writer, err := newSSEWriter(w)
	if err != nil {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	sessionID := r.URL.Query().Get("sessionId")
	message := r.URL.Query().Get("message")

	if err := h.chatService.Chat(r.Context(), sessionID, message, sseSink{w: writer}); err != nil {
		writer.event("error", map[string]string{"message": chatErrorMessage(err)})
		if !errors.Is(err, core.ErrInvalidMessage) && !errors.Is(err, core.ErrSessionNotFound) {
			log.Printf("Error processing chat message for session %s: %v", sessionID, err)
		}
	}
}

func chatErrorMessage(err error) string {
	switch {
	case errors.Is(err, core.ErrInvalidMessage):
		return "Invalid message format"
	case errors.Is(err, core.ErrSessionNotFound):
		return "Session not found"
	default:
		return "Failed to process your message"
	}
}

const snippetLength = 150

type articleSummary struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Link        string `json:"link"`
	PublishDate string `json:"publishDate"`
	Source      string `json:"source"`
	Snippet     string `json:"snippet"`
}

func (h *APIHandler) ListArticlesHandler(w http.ResponseWriter, r *http.Request) {
	articles, err := h.articles.Load()
	if err != nil {
		log.Printf("Error fetching articles: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch articles")
		return
	}

	summaries := make([]articleSummary, 0, len(articles))
	for _, article := range articles {
		summaries = append(summaries, articleSummary{
			ID:          article.ID,
			Title:       article.Title,
			Link:        article.Link,
			PublishDate: article.PublishDate,
			Source:      article.Source,
			Snippet:     snippet(article.Content),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "articles": summaries})
}

func snippet(content string) string {
	runes := []rune(content)
	if len(runes) > snippetLength {
		runes = runes[:snippetLength]
	}
	return string(runes) + "..."
}
