package main

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds everything the server and the operator commands read from the environment.
type Config struct {
	Port          string
	DatabaseURL   string // sqlite path or postgres:// URL
	SecureCookies bool
	AllowOrigins  []string

	RedisAddr     string // empty disables redis
	RedisPassword string

	JWTSecret string

	GroqAPIKey   string
	LLMBaseURL   string
	QuizModel    string
	InfoModel    string
	LLMTimeout   time.Duration
	RPCURL       string // empty disables the chain client
	ChainID      int64
	OperatorKey  string // hex private key, operator commands only
	ReceiptWait  time.Duration
	StartBalance decimal.Decimal
	PlayDeposit  decimal.Decimal
}

// LoadConfig reads .env (if present) and then the process environment.
func LoadConfig() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file, using process environment")
	}

	cfg := Config{
		Port:          getEnv("PORT", "3000"),
		DatabaseURL:   getEnv("DATABASE_URL", "quizdrop.db"),
		SecureCookies: getEnv("SECURE_COOKIES", "false") == "true",
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		JWTSecret:     getEnv("JWT_SECRET", "dev-secret-change-me"),
		GroqAPIKey:    getEnv("GROQ_API_KEY", ""),
		LLMBaseURL:    getEnv("LLM_BASE_URL", "https://api.groq.com/openai/v1"),
		QuizModel:     getEnv("QUIZ_MODEL", "llama3-70b-8192"),
		InfoModel:     getEnv("INFO_MODEL", "qwen/qwen3-32b"),
		LLMTimeout:    getEnvDuration("LLM_TIMEOUT", 60*time.Second),
		RPCURL:        getEnv("RPC_URL", ""),
		ChainID:       getEnvInt64("CHAIN_ID", HyperionTestnetID),
		OperatorKey:   strings.TrimPrefix(getEnv("OPERATOR_PRIVATE_KEY", ""), "0x"),
		ReceiptWait:   getEnvDuration("RECEIPT_TIMEOUT", 2*time.Minute),
		StartBalance:  getEnvDecimal("START_BALANCE", decimal.NewFromInt(1000)),
		PlayDeposit:   getEnvDecimal("PLAY_DEPOSIT", decimal.NewFromInt(50)),
	}

	origins := getEnv("ALLOW_ORIGINS", "")
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowOrigins = append(cfg.AllowOrigins, o)
		}
	}
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	v, err := strconv.ParseInt(getEnv(key, ""), 10, 64)
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	d, err := decimal.NewFromString(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return d
}
