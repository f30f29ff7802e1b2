package core

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/Atmalviya/news-rag-be/internal/store"
)

const (
	defaultAnswerModelName = "gemini-1.5-pro"

	answerPromptTemplate = `You are a helpful news assistant that answers questions based on recent news articles.

Question: %s

Below are relevant passages from news articles to help answer this question:

%s

Sources for citation:
%s

Instructions:
1. Answer the question accurately based ONLY on the provided article passages.
2. If the provided passages don't contain enough information to answer, acknowledge this limitation.
3. When referring to information from articles, cite the source using numbers in square brackets [1], [2], etc.
4. Make your response conversational and helpful.
5. Keep your answer concise but comprehensive.

Please provide a well-formed answer with appropriate citations:
`
)

// LLMService generates cited answers with Gemini. The client is created on
// first use so a missing credential fails the first synthesis call instead of
// process startup.
type LLMService struct {
	apiKey string
	model  string

	mu     sync.Mutex
	client *genai.Client
}

func NewLLMService(apiKey string) *LLMService {
	return &LLMService{
		apiKey: apiKey,
		model:  defaultAnswerModelName,
	}
}

func (s *LLMService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			log.Printf("Error closing GenAI client: %v", err)
		}
		s.client = nil
	}
}

func (s *LLMService) ensureClient(ctx context.Context) (*genai.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return s.client, nil
	}
	if s.apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is not set")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(s.apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	s.client = client
	return client, nil
}

// Synthesize asks the model for a complete answer to query, grounded in the
// retrieved context block and citing articles by their position in
// citedArticles. The numbering in the rendered legend matches the retriever's
// citation list, so bracket references in the answer resolve downstream.
func (s *LLMService) Synthesize(ctx context.Context, query, contextBlock string, citedArticles []store.CitedArticle) (string, error) {
	client, err := s.ensureClient(ctx)
	if err != nil {
		return "", err
	}

	model := client.GenerativeModel(s.model)
	temp := float32(0.2)
	topK := int32(40)
	topP := float32(0.95)
	maxTokens := int32(1024)
	model.GenerationConfig = genai.GenerationConfig{
		Temperature:     &temp,
		TopK:            &topK,
		TopP:            &topP,
		MaxOutputTokens: &maxTokens,
	}

	prompt := buildAnswerPrompt(query, contextBlock, citedArticles)
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini answer generation failed: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("unexpected response format from Gemini API")
	}

	var answer strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			answer.WriteString(string(txt))
		}
	}
	if answer.Len() == 0 {
		return "", fmt.Errorf("unexpected response format from Gemini API")
	}
	return answer.String(), nil
}

func buildAnswerPrompt(query, contextBlock string, citedArticles []store.CitedArticle) string {
	return fmt.Sprintf(answerPromptTemplate, query, contextBlock, formatCitations(citedArticles))
}

// formatCitations renders the citation legend, one numbered entry per cited
// article, in list order.
func formatCitations(citedArticles []store.CitedArticle) string {
	entries := make([]string, 0, len(citedArticles))
	for i, article := range citedArticles {
		entries = append(entries, fmt.Sprintf("[%d] %q - %s (%s)\n%s",
			i+1, article.Title, article.Source, formatPublishDate(article.PublishDate), article.Link))
	}
	return strings.Join(entries, "\n\n")
}

var publishDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	"2006-01-02",
}

func formatPublishDate(value string) string {
	if value == "" {
		return "Unknown Date"
	}
	for _, layout := range publishDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format("Jan 2, 2006")
		}
	}
	return "Unknown Date"
}
