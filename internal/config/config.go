package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	OpenAIAPIKey string
	GeminiAPIKey string
	QdrantURL    string
	RedisURL     string
	HTTPPort     string
	LogLevel     string

	QdrantCollection   string
	EmbeddingDimension int

	ArticlesFile string
	RSSFeeds     []string

	SessionMaxAgeMinutes        int
	SessionSweepIntervalMinutes int
}

var AppConfig Config

// LoadConfig populates AppConfig from the environment. API keys are not
// required at startup; a missing credential fails the first call that needs it.
func LoadConfig() {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = Config{
		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		QdrantURL:    getEnv("QDRANT_URL", "http://localhost:6333"),
		RedisURL:     getEnv("REDIS_URL", "redis://localhost:6379"),
		HTTPPort:     getEnv("HTTP_PORT", "8080"),
		LogLevel:     getEnv("LOG_LEVEL", "INFO"),

		QdrantCollection:   getEnv("QDRANT_COLLECTION", "news_articles"),
		EmbeddingDimension: getEnvAsInt("EMBEDDING_DIMENSION", 1536),

		ArticlesFile: getEnv("ARTICLES_FILE", "data/articles.json"),
		RSSFeeds:     getEnvAsList("RSS_FEEDS", defaultRSSFeeds),

		SessionMaxAgeMinutes:        getEnvAsInt("SESSION_MAX_AGE_MINUTES", 60),
		SessionSweepIntervalMinutes: getEnvAsInt("SESSION_SWEEP_INTERVAL_MINUTES", 30),
	}
}

var defaultRSSFeeds = []string{
	"https://rss.app/feeds/t4Qy9rzx18tClHXo.xml",
	"https://rss.app/feeds/tX5rkoDovj47fkir.xml",
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			values = append(values, p)
		}
	}
	return values
}
