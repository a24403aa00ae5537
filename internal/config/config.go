package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/maltedev/amazon-price-tracker/internal/storage"
)

type Config struct {
	Search   SearchConfig
	Output   OutputConfig
	Browser  BrowserConfig
	Scraper  ScraperConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Server   ServerConfig
	Logging  LoggingConfig
}

type SearchConfig struct {
	Title      string
	SearchTerm string
	MinPrice   float64
	MaxPrice   float64
	Currency   string
	BaseURL    string
}

type OutputConfig struct {
	Directory   string
	DateStyle   string
	EmptyPolicy string
}

type BrowserConfig struct {
	// Engine is "playwright" for a real Chromium session or "static" for
	// plain HTTP fetching of server-rendered pages.
	Engine            string
	Headless          bool
	IgnoreHTTPSErrors bool
	Timeout           time.Duration
	UserAgent         string
	ViewportWidth     int
	ViewportHeight    int
	AcceptLanguage    string
	Locale            string
	ProxyServer       string
}

type ScraperConfig struct {
	SettleMin   time.Duration
	SettleMax   time.Duration
	Language    string
	PriceFormat string
	Dedupe      bool
	DedupeSize  int
}

type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Stream   string
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads configuration from the environment. Values from a .env file in
// the working directory are used for variables that are not already set.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		Search: SearchConfig{
			Title:      getEnvOrDefault("SEARCH_NAME", ""),
			SearchTerm: getEnvOrDefault("SEARCH_TERM", ""),
			MinPrice:   getFloatOrDefault("SEARCH_MIN_PRICE", 0),
			MaxPrice:   getFloatOrDefault("SEARCH_MAX_PRICE", 0),
			Currency:   getEnvOrDefault("SEARCH_CURRENCY", "£"),
			BaseURL:    getEnvOrDefault("SEARCH_BASE_URL", "https://www.amazon.co.uk/"),
		},
		Output: OutputConfig{
			Directory:   getEnvOrDefault("REPORT_DIRECTORY", "reports"),
			DateStyle:   getEnvOrDefault("REPORT_DATE_STYLE", "legacy"),
			EmptyPolicy: getEnvOrDefault("REPORT_EMPTY_POLICY", "write"),
		},
		Browser: BrowserConfig{
			Engine:            getEnvOrDefault("BROWSER_ENGINE", "playwright"),
			Headless:          getBoolOrDefault("BROWSER_HEADLESS", true),
			IgnoreHTTPSErrors: getBoolOrDefault("BROWSER_IGNORE_HTTPS_ERRORS", true),
			Timeout:           getDurationOrDefault("BROWSER_TIMEOUT", 30*time.Second),
			UserAgent:         getEnvOrDefault("BROWSER_USER_AGENT", defaultUserAgent),
			ViewportWidth:     getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight:    getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			AcceptLanguage:    getEnvOrDefault("BROWSER_ACCEPT_LANGUAGE", "en-GB,en;q=0.9"),
			Locale:            getEnvOrDefault("BROWSER_LOCALE", "en-GB"),
			ProxyServer:       getEnvOrDefault("BROWSER_PROXY", ""),
		},
		Scraper: ScraperConfig{
			SettleMin:   getDurationOrDefault("SCRAPER_SETTLE_MIN", 2*time.Second),
			SettleMax:   getDurationOrDefault("SCRAPER_SETTLE_MAX", 2*time.Second),
			Language:    getEnvOrDefault("SCRAPER_LANGUAGE", "en_GB"),
			PriceFormat: getEnvOrDefault("SCRAPER_PRICE_FORMAT", "split"),
			Dedupe:      getBoolOrDefault("SCRAPER_DEDUPE", false),
			DedupeSize:  getIntOrDefault("SCRAPER_DEDUPE_SIZE", 1024),
		},
		Database: DatabaseConfig{
			Enabled:  getBoolOrDefault("DB_ENABLED", false),
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			DBName:   getEnvOrDefault("DB_NAME", "price_tracker"),
			SSLMode:  getEnvOrDefault("DB_SSL_MODE", "disable"),
			MaxConns: getIntOrDefault("DB_MAX_CONNS", 5),
		},
		Redis: RedisConfig{
			Enabled:  getBoolOrDefault("REDIS_ENABLED", false),
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
			Stream:   getEnvOrDefault("REDIS_STREAM", "stream:price_reports"),
		},
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8080"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 10*time.Minute),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  getStringSliceOrDefault("SERVER_ALLOWED_ORIGINS", []string{"*"}),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

// Validate checks everything except the search section, which the API
// receives per request.
func (c *Config) Validate() error {
	if c.Output.Directory == "" {
		return fmt.Errorf("REPORT_DIRECTORY is required")
	}

	switch c.Output.DateStyle {
	case "legacy", "full":
	default:
		return fmt.Errorf("REPORT_DATE_STYLE must be legacy or full, got %q", c.Output.DateStyle)
	}

	switch c.Output.EmptyPolicy {
	case "write", "skip":
	default:
		return fmt.Errorf("REPORT_EMPTY_POLICY must be write or skip, got %q", c.Output.EmptyPolicy)
	}

	switch c.Browser.Engine {
	case "playwright", "static":
	default:
		return fmt.Errorf("BROWSER_ENGINE must be playwright or static, got %q", c.Browser.Engine)
	}

	if c.Scraper.SettleMin < 0 {
		return fmt.Errorf("SCRAPER_SETTLE_MIN cannot be negative")
	}

	if c.Scraper.SettleMin > c.Scraper.SettleMax {
		return fmt.Errorf("SCRAPER_SETTLE_MIN cannot be greater than SCRAPER_SETTLE_MAX")
	}

	switch c.Scraper.PriceFormat {
	case "split", "locale":
	default:
		return fmt.Errorf("SCRAPER_PRICE_FORMAT must be split or locale, got %q", c.Scraper.PriceFormat)
	}

	if c.Scraper.Dedupe && c.Scraper.DedupeSize < 1 {
		return fmt.Errorf("SCRAPER_DEDUPE_SIZE must be at least 1")
	}

	if c.Database.Enabled && c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required when DB_ENABLED is set")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("REDIS_ADDR is required when REDIS_ENABLED is set")
	}

	return nil
}

// ValidateSearch checks the search section used by one-shot runs.
func (c *Config) ValidateSearch() error {
	if strings.TrimSpace(c.Search.Title) == "" {
		return fmt.Errorf("SEARCH_NAME is required")
	}

	if err := storage.ValidateName(c.Search.Title); err != nil {
		return fmt.Errorf("SEARCH_NAME: %w", err)
	}

	if strings.TrimSpace(c.Search.SearchTerm) == "" {
		return fmt.Errorf("SEARCH_TERM is required")
	}

	if c.Search.MinPrice < 0 || c.Search.MaxPrice < 0 {
		return fmt.Errorf("SEARCH_MIN_PRICE and SEARCH_MAX_PRICE cannot be negative")
	}

	if c.Search.MinPrice > c.Search.MaxPrice {
		return fmt.Errorf("SEARCH_MIN_PRICE cannot be greater than SEARCH_MAX_PRICE")
	}

	if c.Search.BaseURL == "" {
		return fmt.Errorf("SEARCH_BASE_URL is required")
	}

	return nil
}

// DSN builds a Postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s&pool_max_conns=%d",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode, d.MaxConns)
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
