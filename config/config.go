package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every runtime setting. Values come from the environment;
// main loads .env first outside production.
type Config struct {
	Env  string
	Port string

	Storage     string // "postgres" or "memory"
	DatabaseURL string
	// SeedFile preloads the memory store from a JSON or YAML fixture
	SeedFile string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	DeliveryTokenSecret string
	DeliveryTokenTTL    time.Duration

	PlansConfigPath string

	AssetCacheDir         string
	AssetBaseDir          string
	GoogleCredentialsPath string
	FontDir               string

	PDFEngine  string // "native" or "chrome"
	ChromePath string

	EditorDebounce    time.Duration
	EditorEchoWindow  time.Duration
	EditorIdleTimeout time.Duration
	EditorMaxRetries  int

	VerifyMaxAttempts int
	VerifyWindow      time.Duration

	ExportWorkers int

	LogLevel  string
	LogFormat string
}

// Load reads the configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Env:                   getEnv("ENV", "development"),
		Port:                  strings.TrimPrefix(getEnv("PORT", "8080"), ":"),
		Storage:               getEnv("STORAGE", "postgres"),
		SeedFile:              os.Getenv("SEED_FILE"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		DeliveryTokenSecret:   os.Getenv("DELIVERY_TOKEN_SECRET"),
		PlansConfigPath:       getEnv("PLANS_CONFIG", "config/plans.json"),
		AssetCacheDir:         getEnv("ASSET_CACHE_DIR", "cache/assets"),
		AssetBaseDir:          getEnv("ASSET_BASE_DIR", "assets"),
		GoogleCredentialsPath: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		FontDir:               os.Getenv("FONT_DIR"),
		PDFEngine:             getEnv("PDF_ENGINE", "native"),
		ChromePath:            os.Getenv("CHROME_PATH"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFormat:             getEnv("LOG_FORMAT", "json"),
	}

	var err error
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.DeliveryTokenTTL, err = getDuration("DELIVERY_TOKEN_TTL", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.EditorDebounce, err = getDuration("EDITOR_DEBOUNCE", 400*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.EditorEchoWindow, err = getDuration("EDITOR_ECHO_WINDOW", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.EditorIdleTimeout, err = getDuration("EDITOR_IDLE_TIMEOUT", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.EditorMaxRetries, err = getInt("EDITOR_MAX_RETRIES", 3); err != nil {
		return nil, err
	}
	if cfg.VerifyMaxAttempts, err = getInt("VERIFY_MAX_ATTEMPTS", 10); err != nil {
		return nil, err
	}
	if cfg.VerifyWindow, err = getDuration("VERIFY_WINDOW", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ExportWorkers, err = getInt("EXPORT_WORKERS", 4); err != nil {
		return nil, err
	}

	cfg.DatabaseURL = databaseURL()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage {
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("database connection variables not set. Set DATABASE_URL or DB_HOST, DB_USER, DB_NAME")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown STORAGE %q (expected postgres or memory)", c.Storage)
	}
	switch c.PDFEngine {
	case "native", "chrome":
	default:
		return fmt.Errorf("unknown PDF_ENGINE %q (expected native or chrome)", c.PDFEngine)
	}
	if c.DeliveryTokenSecret == "" {
		if c.IsProduction() {
			return fmt.Errorf("DELIVERY_TOKEN_SECRET must be set in production")
		}
		c.DeliveryTokenSecret = "dev-only-delivery-secret"
	}
	if c.ExportWorkers < 1 {
		c.ExportWorkers = 1
	}
	return nil
}

// IsProduction reports whether ENV=production
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// databaseURL prefers DATABASE_URL and otherwise builds a DSN from DB_* parts
func databaseURL() string {
	if connStr := os.Getenv("DATABASE_URL"); connStr != "" {
		return connStr
	}
	host := os.Getenv("DB_HOST")
	user := os.Getenv("DB_USER")
	dbname := os.Getenv("DB_NAME")
	if host == "" || user == "" || dbname == "" {
		return ""
	}
	port := getEnv("DB_PORT", "5432")
	sslmode := getEnv("DB_SSLMODE", "disable")
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, os.Getenv("DB_PASSWORD"), dbname, sslmode)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
