package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App     AppConfig
	Ai      AIConfig
	Session SessionConfig
	Files   FileConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	RedisURL           string
	PublicDir          string
}

type AIConfig struct {
	Provider      string // "openai", "ollama" or "none"
	Model         string
	OpenAIKey     string
	OllamaBaseURL string
	TokenLimit    int // estimated tokens per batch
}

type SessionConfig struct {
	TTL          time.Duration
	Grace        time.Duration
	RecoveryScan bool
}

type FileConfig struct {
	TempDir         string
	MaxUploadBytes  int
	MaxAge          time.Duration
	CleanupInterval time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
			RedisURL:           getEnv("REDIS_URL", ""),
			PublicDir:          getEnv("PUBLIC_DIR", "./public"),
		},
		Ai: AIConfig{
			Provider:      getEnv("LLM_PROVIDER", "openai"),
			Model:         getEnv("LLM_MODEL", "gpt-4o-mini"),
			OpenAIKey:     getEnv("OPENAI_API_KEY", ""),
			OllamaBaseURL: getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			TokenLimit:    getEnvAsInt("BATCH_TOKEN_LIMIT", 3000),
		},
		Session: SessionConfig{
			TTL:          time.Duration(getEnvAsInt("SESSION_TTL_MINUTES", 120)) * time.Minute,
			Grace:        time.Duration(getEnvAsInt("SESSION_GRACE_MINUTES", 10)) * time.Minute,
			RecoveryScan: getEnvAsBool("SESSION_RECOVERY_SCAN", true),
		},
		Files: FileConfig{
			TempDir:         getEnv("TEMP_DIR", "temp_uploads"),
			MaxUploadBytes:  getEnvAsInt("FILE_SIZE_LIMIT", 50*1024*1024),
			MaxAge:          time.Duration(getEnvAsInt("TEMP_FILE_MAX_AGE_MINUTES", 120)) * time.Minute,
			CleanupInterval: time.Duration(getEnvAsInt("CLEANUP_INTERVAL_MINUTES", 60)) * time.Minute,
		},
	}
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

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}
