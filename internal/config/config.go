package config

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment variables
type Config struct {
	GoogleClientID     string
	GoogleClientSecret string
	GoogleCallbackURL  string
	SessionSecret      string
	EncryptionKey      string
	Env                string
	Port               string

	DatabaseURL string
	RedisURL    string

	// GeneratorURL is the base URL of the briefing generation endpoint,
	// chosen by environment (GENERATOR_URL_PRODUCTION in production).
	GeneratorURL     string
	GeneratorSecret  string
	GeneratorStub    bool
	GeneratorTimeout time.Duration

	// GenerateRatePerMinute caps generation requests per session; 0 disables.
	GenerateRatePerMinute int

	Locale         string
	LogLevel       string
	LogFormat      string
	EmbeddedWorker bool
}

// Load reads configuration from environment variables, after merging an
// optional .env file from the working directory.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("WARNING: failed to read .env file: %v", err)
	}

	env := getEnvWithDefault("ENV", "development")
	cfg := &Config{
		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleCallbackURL:  os.Getenv("GOOGLE_CALLBACK_URL"),
		SessionSecret:      os.Getenv("SESSION_SECRET"),
		EncryptionKey:      os.Getenv("ENCRYPTION_KEY"),
		Env:                env,
		Port:               getEnvWithDefault("PORT", "8080"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    getEnvWithDefault("REDIS_URL", "redis://localhost:6379/0"),

		GeneratorURL:     generatorURL(env),
		GeneratorSecret:  os.Getenv("GENERATOR_SECRET"),
		GeneratorStub:    getEnvBool("GENERATOR_STUB", false),
		GeneratorTimeout: getEnvDuration("GENERATOR_TIMEOUT", 0),

		GenerateRatePerMinute: getEnvInt("GENERATE_RATE_PER_MINUTE", 10),

		Locale:         getEnvWithDefault("LOCALE", "en"),
		LogLevel:       getEnvWithDefault("LOG_LEVEL", "info"),
		LogFormat:      getEnvWithDefault("LOG_FORMAT", "text"),
		EmbeddedWorker: getEnvBool("EMBEDDED_WORKER", true),
	}

	// Warn if using default session secret (insecure for production)
	if cfg.SessionSecret == "" {
		cfg.SessionSecret = "dev-secret-change-in-production-use-openssl-rand-hex-32"
		log.Println("WARNING: Using default SESSION_SECRET. Generate a secure secret with: openssl rand -hex 32")
	}

	if cfg.GeneratorURL == "" && !cfg.GeneratorStub && !cfg.IsProduction() {
		log.Println("WARNING: GENERATOR_URL not set, falling back to the stub generator")
		cfg.GeneratorStub = true
	}

	return cfg
}

// ErrNoGenerator is returned by Validate when production has no real
// generation endpoint configured.
var ErrNoGenerator = errors.New("production requires GENERATOR_URL_PRODUCTION and no stub generator")

// Validate checks settings the processes that generate briefings cannot run
// without.
func (c *Config) Validate() error {
	if c.IsProduction() && (c.GeneratorURL == "" || c.GeneratorStub) {
		return ErrNoGenerator
	}
	return nil
}

// IsProduction reports whether the app runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func generatorURL(env string) string {
	if env == "production" {
		return os.Getenv("GENERATOR_URL_PRODUCTION")
	}
	return os.Getenv("GENERATOR_URL")
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("WARNING: invalid boolean for %s=%q, using %t", key, value, defaultValue)
		return defaultValue
	}
	return b
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("WARNING: invalid integer for %s=%q, using %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("WARNING: invalid duration for %s=%q, using %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}
