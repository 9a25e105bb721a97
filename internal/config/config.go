package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Ai       AIConfig
	Review   ReviewSettings
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type DatabaseConfig struct {
	Connection string
}

type AIConfig struct {
	OllamaBaseURL     string
	OpenAIBaseURL     string
	OpenAIAPIKey      string
	PerplexityBaseURL string
	PerplexityAPIKey  string
	SearchModel       string
	ModelRegistryPath string
}

// ReviewSettings is the immutable tuning of the pipeline. It is copied by
// value into the orchestrator and gateways at construction time.
type ReviewSettings struct {
	MaxConcurrentCalls    int
	MaxConcurrentSearches int
	LLMTimeout            time.Duration
	SearchTimeout         time.Duration
	JobDeadline           time.Duration
	JobTTL                time.Duration
	RetryAttempts         int
	BreakerFailures       int
	ContextSentences      int
	RewriteBatchSize      int
	Temperature           float64

	EnableClarity   bool
	EnableRigor     bool
	EnableEvidence  bool
	EnableAdversary bool

	PanelReconcileWithModel bool
	StrictSentenceOverlap   bool
}

func DefaultReviewSettings() ReviewSettings {
	return ReviewSettings{
		MaxConcurrentCalls:    4,
		MaxConcurrentSearches: 3,
		LLMTimeout:            120 * time.Second,
		SearchTimeout:         30 * time.Second,
		JobDeadline:           10 * time.Minute,
		JobTTL:                time.Hour,
		RetryAttempts:         3,
		BreakerFailures:       5,
		ContextSentences:      3,
		RewriteBatchSize:      8,
		Temperature:           0,
		EnableClarity:         true,
		EnableRigor:           true,
		EnableEvidence:        true,
		EnableAdversary:       true,
	}
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	def := DefaultReviewSettings()

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/review.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Ai: AIConfig{
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
			PerplexityBaseURL: getEnv("PERPLEXITY_BASE_URL", "https://api.perplexity.ai"),
			PerplexityAPIKey:  getEnv("PERPLEXITY_API_KEY", ""),
			SearchModel:       getEnv("SEARCH_MODEL", "sonar"),
			ModelRegistryPath: getEnv("MODEL_REGISTRY_PATH", ""),
		},
		Review: ReviewSettings{
			MaxConcurrentCalls:      getEnvAsInt("MAX_CONCURRENT_CALLS", def.MaxConcurrentCalls),
			MaxConcurrentSearches:   getEnvAsInt("MAX_CONCURRENT_SEARCHES", def.MaxConcurrentSearches),
			LLMTimeout:              getEnvAsDuration("LLM_TIMEOUT", def.LLMTimeout),
			SearchTimeout:           getEnvAsDuration("SEARCH_TIMEOUT", def.SearchTimeout),
			JobDeadline:             getEnvAsDuration("JOB_DEADLINE", def.JobDeadline),
			JobTTL:                  getEnvAsDuration("JOB_TTL", def.JobTTL),
			RetryAttempts:           getEnvAsInt("LLM_RETRY_ATTEMPTS", def.RetryAttempts),
			BreakerFailures:         getEnvAsInt("LLM_BREAKER_FAILURES", def.BreakerFailures),
			ContextSentences:        getEnvAsInt("CONTEXT_OVERLAP_SENTENCES", def.ContextSentences),
			RewriteBatchSize:        getEnvAsInt("REWRITE_BATCH_SIZE", def.RewriteBatchSize),
			Temperature:             getEnvAsFloat("LLM_TEMPERATURE", def.Temperature),
			EnableClarity:           getEnvAsBool("ENABLE_CLARITY", def.EnableClarity),
			EnableRigor:             getEnvAsBool("ENABLE_RIGOR", def.EnableRigor),
			EnableEvidence:          getEnvAsBool("ENABLE_EVIDENCE", def.EnableEvidence),
			EnableAdversary:         getEnvAsBool("ENABLE_ADVERSARY", def.EnableAdversary),
			PanelReconcileWithModel: getEnvAsBool("PANEL_RECONCILE_WITH_MODEL", false),
			StrictSentenceOverlap:   getEnvAsBool("STRICT_SENTENCE_OVERLAP", false),
		},
	}
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("90s") or plain seconds ("90").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}
	if d, err := time.ParseDuration(strValue); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(strValue); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
