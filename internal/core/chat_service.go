package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Atmalviya/news-rag-be/internal/store"
)

var (
	// ErrInvalidMessage marks a chat request missing a usable message.
	ErrInvalidMessage = errors.New("invalid message format")
	// ErrSessionNotFound marks an unknown (never created or swept) session.
	ErrSessionNotFound = errors.New("session not found")
)

// SessionStore persists per-session conversation state.
type SessionStore interface {
	CreateSession(ctx context.Context) (string, error)
	IsValidSession(ctx context.Context, sessionID string) (bool, error)
	AddMessageToHistory(ctx context.Context, sessionID string, msg store.Message) error
	GetSessionHistory(ctx context.Context, sessionID string) ([]store.Message, error)
	ClearSessionHistory(ctx context.Context, sessionID string) error
	CleanupOldSessions(ctx context.Context, maxAgeMinutes int) (int, error)
}

// Retriever produces the context block and citations for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) (*RetrievalResult, error)
}

// Synthesizer turns a query plus retrieved context into a complete answer.
type Synthesizer interface {
	Synthesize(ctx context.Context, query, contextBlock string, citedArticles []store.CitedArticle) (string, error)
}

// StreamSink receives the three-part chat stream: answer chunks, then the
// citation list, then completion.
type StreamSink interface {
	Chunk(token string) error
	Sources(articles []store.CitedArticle) error
	Complete() error
}

// ChatService ties retrieval, synthesis and session state together per
// request. Answers are synthesized in one shot and paced out token by token;
// TokenDelay controls the pacing and only the pacing.
type ChatService struct {
	sessions    SessionStore
	retriever   Retriever
	synthesizer Synthesizer

	TokenDelay time.Duration
}

func NewChatService(sessions SessionStore, retriever Retriever, synthesizer Synthesizer) *ChatService {
	return &ChatService{
		sessions:    sessions,
		retriever:   retriever,
		synthesizer: synthesizer,
		TokenDelay:  50 * time.Millisecond,
	}
}

func (s *ChatService) CreateSession(ctx context.Context) (string, error) {
	return s.sessions.CreateSession(ctx)
}

// SessionHistory returns the ordered history of a valid session.
func (s *ChatService) SessionHistory(ctx context.Context, sessionID string) ([]store.Message, error) {
	if err := s.requireValidSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.sessions.GetSessionHistory(ctx, sessionID)
}

// ClearHistory empties a valid session's history and verifies the result. A
// clear that leaves messages behind is a hard failure, not something to
// silently accept.
func (s *ChatService) ClearHistory(ctx context.Context, sessionID string) error {
	if err := s.requireValidSession(ctx, sessionID); err != nil {
		return err
	}
	if err := s.sessions.ClearSessionHistory(ctx, sessionID); err != nil {
		return err
	}
	history, err := s.sessions.GetSessionHistory(ctx, sessionID)
	if err != nil {
		return err
	}
	if len(history) != 0 {
		return fmt.Errorf("history not empty after clearing session %s", sessionID)
	}
	return nil
}

func (s *ChatService) CleanupOldSessions(ctx context.Context, maxAgeMinutes int) (int, error) {
	return s.sessions.CleanupOldSessions(ctx, maxAgeMinutes)
}

// Chat runs one full exchange: validate, append the user message, retrieve,
// synthesize, append the assistant message with its sources, then stream the
// answer into sink. Validation failures mutate nothing; a failure after the
// user append leaves that append in place.
func (s *ChatService) Chat(ctx context.Context, sessionID, message string, sink StreamSink) error {
	if strings.TrimSpace(message) == "" {
		return ErrInvalidMessage
	}
	if err := s.requireValidSession(ctx, sessionID); err != nil {
		return err
	}

	if err := s.sessions.AddMessageToHistory(ctx, sessionID, store.Message{
		Role:    "user",
		Content: message,
	}); err != nil {
		return err
	}

	result, err := s.retriever.Retrieve(ctx, message, DefaultTopK)
	if err != nil {
		return err
	}

	answer, err := s.synthesizer.Synthesize(ctx, message, result.Context, result.Articles)
	if err != nil {
		return err
	}

	if err := s.sessions.AddMessageToHistory(ctx, sessionID, store.Message{
		Role:    "assistant",
		Content: answer,
		Sources: result.Articles,
	}); err != nil {
		return err
	}

	if err := s.streamAnswer(ctx, answer, sink); err != nil {
		return err
	}
	if err := sink.Sources(result.Articles); err != nil {
		return err
	}
	return sink.Complete()
}

// streamAnswer paces a fully-materialized answer out as whitespace-delimited
// tokens. It is deliberately separate from synthesis so an incremental model
// backend could replace it without touching the Synthesize contract.
func (s *ChatService) streamAnswer(ctx context.Context, answer string, sink StreamSink) error {
	for _, token := range strings.Fields(answer) {
		if err := sink.Chunk(token); err != nil {
			return err
		}
		if s.TokenDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.TokenDelay):
			}
		}
	}
	return nil
}

func (s *ChatService) requireValidSession(ctx context.Context, sessionID string) error {
	valid, err := s.sessions.IsValidSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if !valid {
		return ErrSessionNotFound
	}
	return nil
}
