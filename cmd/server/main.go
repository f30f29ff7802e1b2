package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Atmalviya/news-rag-be/internal/api"
	"github.com/Atmalviya/news-rag-be/internal/config"
	"github.com/Atmalviya/news-rag-be/internal/core"
	"github.com/Atmalviya/news-rag-be/internal/feed"
	"github.com/Atmalviya/news-rag-be/internal/store"
)

func main() {
	// Load configuration
	config.LoadConfig()

	// Setup logging
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if config.AppConfig.LogLevel == "DEBUG" {
		log.Println("Service starting in DEBUG mode")
	}

	// Command line flags for maintenance operations
	ingestFlag := flag.Bool("ingest", false, "Fetch RSS feeds, ingest articles into the vector store and exit")
	cleanupFlag := flag.Bool("cleanup", false, "Sweep expired sessions and exit")
	flag.Parse()

	// Initialize stores
	sessionStore, err := store.NewRedisStore(config.AppConfig.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to conversation store: %v", err)
	}
	defer sessionStore.Close()

	vectorStore := store.NewQdrantStore(
		config.AppConfig.QdrantURL,
		config.AppConfig.QdrantCollection,
		config.AppConfig.EmbeddingDimension,
	)
	articleFile := store.NewArticleFile(config.AppConfig.ArticlesFile)

	// Initialize services
	embeddingService := core.NewEmbeddingService(core.EmbeddingConfig{APIKey: config.AppConfig.OpenAIAPIKey})
	llmService := core.NewLLMService(config.AppConfig.GeminiAPIKey)
	defer llmService.Close()

	if *ingestFlag {
		runIngestion(vectorStore, articleFile, embeddingService)
		os.Exit(0)
	}

	if *cleanupFlag {
		count, err := sessionStore.CleanupOldSessions(context.Background(), config.AppConfig.SessionMaxAgeMinutes)
		if err != nil {
			log.Fatalf("Session cleanup failed: %v", err)
		}
		log.Printf("Session cleanup complete. Removed %d sessions. Exiting.", count)
		os.Exit(0)
	}

	if err := vectorStore.EnsureCollection(context.Background()); err != nil {
		log.Fatalf("Failed to initialize vector collection: %v", err)
	}
	log.Println("Vector collection initialized successfully")

	ragService := core.NewRAGService(embeddingService, vectorStore)
	chatService := core.NewChatService(sessionStore, ragService, llmService)

	// Initialize API Handler and Router
	apiHandler := api.NewAPIHandler(chatService, articleFile)
	router := api.NewRouter(apiHandler)

	// Periodic session sweep, independent of request handling
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go runSessionSweeper(sweepCtx, chatService)

	// Start HTTP server
	serverAddr := fmt.Sprintf(":%s", config.AppConfig.HTTPPort)

	srv := &http.Server{
		Addr:        serverAddr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 120 * time.Second,
		// No WriteTimeout: chat responses stream over SSE for as long as the
		// model and token pacing take.
	}

	// Graceful shutdown handling
	go func() {
		log.Printf("Starting server on %s. Press Ctrl+C to quit.", serverAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", serverAddr, err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting gracefully")
}

func runIngestion(vectorStore *store.QdrantStore, articleFile *store.ArticleFile, embedder core.Embedder) {
	log.Println("Starting data ingestion pipeline...")
	ctx := context.Background()

	log.Println("Fetching articles from RSS feeds...")
	fetcher := feed.NewFetcher(config.AppConfig.RSSFeeds)
	articles, err := fetcher.FetchArticles(ctx)
	if err != nil {
		log.Fatalf("Failed to fetch articles: %v", err)
	}
	log.Printf("Fetched %d articles successfully.", len(articles))
	if len(articles) == 0 {
		log.Fatal("No articles fetched. Aborting ingestion.")
	}

	if err := articleFile.Save(articles); err != nil {
		log.Fatalf("Failed to save article snapshot: %v", err)
	}

	ingestService := core.NewIngestService(embedder, vectorStore)
	if err := ingestService.Ingest(ctx, articles); err != nil {
		log.Fatalf("Data ingestion failed: %v", err)
	}
	log.Println("Data ingestion completed successfully. Exiting.")
}

func runSessionSweeper(ctx context.Context, chatService *core.ChatService) {
	interval := time.Duration(config.AppConfig.SessionSweepIntervalMinutes) * time.Minute
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := chatService.CleanupOldSessions(ctx, config.AppConfig.SessionMaxAgeMinutes)
			if err != nil {
				log.Printf("Session sweep failed: %v", err)
				continue
			}
			if count > 0 {
				log.Printf("Session sweep removed %d sessions", count)
			}
		}
	}
}
