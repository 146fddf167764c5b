package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	Env            string
	LogLevel       string
	StoreAPIURL    string
	StoreAPIToken  string
	CatalogSheet   string
	HTTPTimeout    time.Duration
	CurrencySymbol string
	Placeholder    string
	CartStore      string
	DatabaseDSN    string
	SQLitePath     string
	RedisAddr      string
	RedisPass      string
	CartTTL        time.Duration
	SessionIdle    time.Duration
	SessionKey     string
	AdminAPIKey    string
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:           getenv("PORT", "8080"),
		Env:            strings.ToLower(getenv("APP_ENV", "development")),
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		StoreAPIURL:    strings.TrimSpace(os.Getenv("STORE_API_URL")),
		StoreAPIToken:  strings.TrimSpace(os.Getenv("STORE_API_TOKEN")),
		CatalogSheet:   strings.TrimSpace(os.Getenv("CATALOG_SHEET")),
		CurrencySymbol: getenv("CURRENCY_SYMBOL", "₹"),
		Placeholder:    getenv("PLACEHOLDER_IMAGE", "/placeholder.png"),
		CartStore:      strings.ToLower(getenv("CART_STORE", "memory")),
		DatabaseDSN:    databaseDSN(),
		SQLitePath:     getenv("SQLITE_PATH", "attarstore.db"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPass:      os.Getenv("REDIS_PASS"),
		SessionKey:     os.Getenv("SESSION_KEY"),
		AdminAPIKey:    strings.TrimSpace(os.Getenv("ADMIN_API_KEY")),
	}

	var err error
	if cfg.HTTPTimeout, err = duration("HTTP_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.CartTTL, err = duration("CART_TTL", 30*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.SessionIdle, err = duration("SESSION_IDLE", time.Hour); err != nil {
		return nil, err
	}
	if cfg.SessionIdle <= 0 {
		return nil, fmt.Errorf("SESSION_IDLE must be positive")
	}

	switch cfg.CartStore {
	case "memory", "postgres", "sqlite":
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("REDIS_ADDR is required when CART_STORE=redis")
		}
	default:
		return nil, fmt.Errorf("CART_STORE %q: want memory, postgres, sqlite or redis", cfg.CartStore)
	}
	if cfg.StoreAPIURL == "" && cfg.CatalogSheet == "" {
		return nil, fmt.Errorf("STORE_API_URL or CATALOG_SHEET is required")
	}
	if cfg.SessionKey == "" {
		if cfg.IsProduction() {
			return nil, fmt.Errorf("SESSION_KEY is required in production")
		}
		cfg.SessionKey = "dev-insecure"
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool { return c.Env == "production" || c.Env == "prod" }

// databaseDSN prefers DB_DSN and otherwise assembles one from the DB_* and
// POSTGRES_* variables.
func databaseDSN() string {
	if dsn := strings.TrimSpace(os.Getenv("DB_DSN")); dsn != "" {
		return dsn
	}
	host := getenv("DB_HOST", "localhost")
	port := getenv("DB_PORT", "5432")
	user := firstNonEmpty(os.Getenv("DB_USER"), os.Getenv("POSTGRES_USER"), "postgres")
	pass := firstNonEmpty(os.Getenv("DB_PASSWORD"), os.Getenv("POSTGRES_PASSWORD"), "postgres")
	name := firstNonEmpty(os.Getenv("DB_NAME"), os.Getenv("POSTGRES_DB"), "attarstore")
	ssl := getenv("DB_SSLMODE", "disable")
	return "host=" + host + " user=" + user + " password=" + pass + " dbname=" + name + " port=" + port + " sslmode=" + ssl
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func duration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
