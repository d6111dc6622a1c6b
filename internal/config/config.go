package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Ai        AIConfig
	Operator  OperatorConfig
	SMTP      SMTPConfig
	RateLimit RateLimitConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
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
	Provider string // "ollama" or "gemini"
	Model    string
	BaseURL  string // ollama only
	APIKey   string // gemini only; empty degrades to a fixed unavailable reply
	Timeout  time.Duration
}

// OperatorConfig holds the human-operator channel credentials. Every field is
// optional: without a bot token, notifications degrade to the SMTP fallback or
// a logged no-op.
type OperatorConfig struct {
	BotToken      string
	ChatId        string
	WebhookSecret string
	NotifyEmail   string
	Timeout       time.Duration
}

type SMTPConfig struct {
	Host       string
	Port       int
	Email      string
	Password   string
	SenderName string
}

type RateLimitConfig struct {
	Window       time.Duration
	VisitorCap   int
	IPCap        int
	GlobalCap    int
	BanThreshold int
	BanDuration  time.Duration
	SweepEvery   time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system env")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Ai: AIConfig{
			Provider: getEnv("LLM_PROVIDER", "ollama"),
			Model:    getEnv("LLM_MODEL", "llama3.1:8b"),
			BaseURL:  getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			APIKey:   getEnv("GOOGLE_GEMINI_API_KEY", ""),
			Timeout:  getEnvAsDuration("LLM_TIMEOUT", 25*time.Second),
		},
		Operator: OperatorConfig{
			BotToken:      getEnv("OPERATOR_BOT_TOKEN", ""),
			ChatId:        getEnv("OPERATOR_CHAT_ID", ""),
			WebhookSecret: getEnv("OPERATOR_WEBHOOK_SECRET", ""),
			NotifyEmail:   getEnv("OPERATOR_NOTIFY_EMAIL", ""),
			Timeout:       getEnvAsDuration("OPERATOR_TIMEOUT", 5*time.Second),
		},
		SMTP: SMTPConfig{
			Host:       getEnv("SMTP_HOST", ""),
			Port:       getEnvAsInt("SMTP_PORT", 587),
			Email:      getEnv("SMTP_EMAIL", ""),
			Password:   getEnv("SMTP_PASSWORD", ""),
			SenderName: getEnv("SMTP_SENDER_NAME", "HupperMotors Support"),
		},
		RateLimit: RateLimitConfig{
			Window:       getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),
			VisitorCap:   getEnvAsInt("RATE_LIMIT_VISITOR_CAP", 10),
			IPCap:        getEnvAsInt("RATE_LIMIT_IP_CAP", 8),
			GlobalCap:    getEnvAsInt("RATE_LIMIT_GLOBAL_CAP", 120),
			BanThreshold: getEnvAsInt("RATE_LIMIT_BAN_THRESHOLD", 3),
			BanDuration:  getEnvAsDuration("RATE_LIMIT_BAN_DURATION", 5*time.Minute),
			SweepEvery:   getEnvAsDuration("RATE_LIMIT_SWEEP_EVERY", 5*time.Minute),
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

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
